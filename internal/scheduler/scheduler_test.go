package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func newTestScheduler(t *testing.T, cb Callbacks) *Scheduler {
	t.Helper()
	return New(Config{
		TickInterval: 50 * time.Millisecond,
		MaxConcJobs:  5,
		LockPath:     t.TempDir() + "/test.lock",
	}, cb)
}

func waitFor(t *testing.T, counter *atomic.Int32, want int32) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if counter.Load() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected counter %d, got %d", want, counter.Load())
}

func TestWarnThenClose(t *testing.T) {
	var warned, closed atomic.Int32
	s := newTestScheduler(t, Callbacks{
		Warn:  func(ctx context.Context, token string) { warned.Add(1) },
		Close: func(ctx context.Context, token string) { closed.Add(1) },
	})

	s.Install("tok", 5*time.Minute, 10*time.Minute)
	ctx := context.Background()
	now := time.Now()

	// Before the warning deadline nothing fires.
	s.tick(ctx, now.Add(4*time.Minute))
	time.Sleep(20 * time.Millisecond)
	if warned.Load() != 0 || closed.Load() != 0 {
		t.Fatalf("nothing should fire yet: warned=%d closed=%d", warned.Load(), closed.Load())
	}

	// Warning fires once, then never again.
	s.tick(ctx, now.Add(6*time.Minute))
	waitFor(t, &warned, 1)
	s.tick(ctx, now.Add(7*time.Minute))
	time.Sleep(20 * time.Millisecond)
	if warned.Load() != 1 {
		t.Fatalf("warning must fire once, got %d", warned.Load())
	}

	// Close fires and removes the entry.
	s.tick(ctx, now.Add(11*time.Minute))
	waitFor(t, &closed, 1)
	if s.Has("tok") {
		t.Error("expected timer entry removed after close")
	}
}

func TestRestartPushesDeadlines(t *testing.T) {
	var warned atomic.Int32
	s := newTestScheduler(t, Callbacks{
		Warn: func(ctx context.Context, token string) { warned.Add(1) },
	})

	s.Install("tok", 50*time.Minute, 100*time.Minute)
	s.Restart("tok", 5*time.Minute, 10*time.Minute)

	ctx := context.Background()
	s.tick(ctx, time.Now().Add(6*time.Minute))
	waitFor(t, &warned, 1)
}

func TestCancelStopsTimers(t *testing.T) {
	var fired atomic.Int32
	s := newTestScheduler(t, Callbacks{
		Warn:  func(ctx context.Context, token string) { fired.Add(1) },
		Close: func(ctx context.Context, token string) { fired.Add(1) },
	})

	s.Install("tok", time.Minute, 2*time.Minute)
	s.Cancel("tok")
	// Cancelling twice is fine.
	s.Cancel("tok")

	s.tick(context.Background(), time.Now().Add(time.Hour))
	time.Sleep(30 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatalf("cancelled timers must not fire, got %d", fired.Load())
	}
	if s.Has("tok") {
		t.Error("expected no entry after cancel")
	}
}

func TestReminderRepeats(t *testing.T) {
	var reminded atomic.Int32
	s := newTestScheduler(t, Callbacks{
		Remind: func(ctx context.Context, token string) { reminded.Add(1) },
	})

	s.InstallReminder("tok", 5*time.Minute)
	ctx := context.Background()

	s.tick(ctx, time.Now().Add(6*time.Minute))
	waitFor(t, &reminded, 1)
	s.tick(ctx, time.Now().Add(12*time.Minute))
	waitFor(t, &reminded, 2)

	s.CancelReminder("tok")
	s.tick(ctx, time.Now().Add(time.Hour))
	time.Sleep(30 * time.Millisecond)
	if reminded.Load() != 2 {
		t.Fatalf("cancelled reminder must not fire, got %d", reminded.Load())
	}
}

func TestRunAfterFiresOnce(t *testing.T) {
	var ran atomic.Int32
	s := newTestScheduler(t, Callbacks{})

	s.RunAfter("delete:123", 30*time.Second, func(ctx context.Context) { ran.Add(1) })
	ctx := context.Background()

	s.tick(ctx, time.Now().Add(10*time.Second))
	time.Sleep(20 * time.Millisecond)
	if ran.Load() != 0 {
		t.Fatal("one-shot fired early")
	}

	s.tick(ctx, time.Now().Add(time.Minute))
	waitFor(t, &ran, 1)
	s.tick(ctx, time.Now().Add(2*time.Minute))
	time.Sleep(20 * time.Millisecond)
	if ran.Load() != 1 {
		t.Fatalf("one-shot must fire once, got %d", ran.Load())
	}
}

func TestDueCloseRetriedWhenBusy(t *testing.T) {
	var closed atomic.Int32
	release := make(chan struct{})
	s := New(Config{
		TickInterval: 50 * time.Millisecond,
		MaxConcJobs:  1,
		LockPath:     t.TempDir() + "/test.lock",
	}, Callbacks{
		Close: func(ctx context.Context, token string) { closed.Add(1) },
	})
	ctx := context.Background()

	// Occupy the only slot with a blocking one-shot.
	s.RunAfter("hold", 0, func(ctx context.Context) { <-release })
	s.tick(ctx, time.Now())
	time.Sleep(20 * time.Millisecond)

	s.Install("tok", time.Minute, 2*time.Minute)
	due := time.Now().Add(3 * time.Minute)
	s.tick(ctx, due)
	time.Sleep(20 * time.Millisecond)
	if closed.Load() != 0 {
		t.Fatalf("close must not run while the slot is held, got %d", closed.Load())
	}
	if !s.Has("tok") {
		t.Fatal("due close dropped instead of re-armed")
	}

	close(release)
	deadline := time.Now().Add(2 * time.Second)
	for closed.Load() == 0 && time.Now().Before(deadline) {
		s.tick(ctx, due)
		time.Sleep(5 * time.Millisecond)
	}
	if closed.Load() != 1 {
		t.Fatalf("re-armed close never fired, got %d", closed.Load())
	}
}

func TestOneShotRetriedWhenBusy(t *testing.T) {
	var ran atomic.Int32
	release := make(chan struct{})
	s := New(Config{
		TickInterval: 50 * time.Millisecond,
		MaxConcJobs:  1,
		LockPath:     t.TempDir() + "/test.lock",
	}, Callbacks{})
	ctx := context.Background()

	s.RunAfter("hold", 0, func(ctx context.Context) { <-release })
	s.tick(ctx, time.Now())
	time.Sleep(20 * time.Millisecond)

	s.RunAfter("cleanup", 10*time.Millisecond, func(ctx context.Context) { ran.Add(1) })
	due := time.Now().Add(time.Second)
	s.tick(ctx, due)
	time.Sleep(20 * time.Millisecond)
	if ran.Load() != 0 {
		t.Fatalf("one-shot must not run while the slot is held, got %d", ran.Load())
	}

	close(release)
	deadline := time.Now().Add(2 * time.Second)
	for ran.Load() == 0 && time.Now().Before(deadline) {
		s.tick(ctx, due)
		time.Sleep(5 * time.Millisecond)
	}
	if ran.Load() != 1 {
		t.Fatalf("retained one-shot never fired, got %d", ran.Load())
	}
}

func TestCronDispatch(t *testing.T) {
	var ran atomic.Int32
	s := newTestScheduler(t, Callbacks{})

	cron, _ := ParseCron("* * * * *")
	s.RegisterCron(&CronJob{
		Name: "pair-sweep",
		Cron: cron,
		Fn:   func(ctx context.Context) { ran.Add(1) },
	})

	ctx := context.Background()
	now := time.Now().Truncate(time.Minute)

	s.tick(ctx, now)
	waitFor(t, &ran, 1)

	// Same minute: no second dispatch.
	s.tick(ctx, now.Add(10*time.Second))
	time.Sleep(30 * time.Millisecond)
	if ran.Load() != 1 {
		t.Fatalf("cron must run once per minute, got %d", ran.Load())
	}

	// Next minute fires again.
	s.tick(ctx, now.Add(time.Minute))
	waitFor(t, &ran, 2)
}

func TestCronLockPreventsOverlap(t *testing.T) {
	lockPath := t.TempDir() + "/overlap.lock"

	s1 := New(Config{TickInterval: 50 * time.Millisecond, LockPath: lockPath}, Callbacks{})
	s2 := New(Config{TickInterval: 50 * time.Millisecond, LockPath: lockPath}, Callbacks{})

	acquired, err := s1.lock.TryLock()
	if err != nil || !acquired {
		t.Fatal("s1 should acquire lock")
	}

	acquired2, err := s2.lock.TryLock()
	if err != nil {
		t.Fatal("unexpected error on s2 lock:", err)
	}
	if acquired2 {
		t.Error("s2 should NOT acquire lock while s1 holds it")
		s2.lock.Unlock()
	}

	s1.lock.Unlock()

	acquired3, err := s2.lock.TryLock()
	if err != nil {
		t.Fatal("unexpected error on s2 retry:", err)
	}
	if !acquired3 {
		t.Error("s2 should acquire lock after s1 released")
	}
	s2.lock.Unlock()
}

func TestSemaphoreConcurrencyLimit(t *testing.T) {
	sem := NewSemaphore(2)

	if !sem.TryAcquire() {
		t.Error("first acquire should succeed")
	}
	if !sem.TryAcquire() {
		t.Error("second acquire should succeed")
	}
	if sem.TryAcquire() {
		t.Error("third acquire should fail (cap=2)")
	}
	if sem.Available() != 0 {
		t.Errorf("Available() = %d, want 0", sem.Available())
	}
	sem.Release()
	if !sem.TryAcquire() {
		t.Error("acquire after release should succeed")
	}
}
