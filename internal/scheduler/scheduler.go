package scheduler

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Callbacks are invoked when a question's deadlines fire. They run on their
// own goroutines; implementations re-read the question and no-op when the
// state has moved on.
type Callbacks struct {
	Warn   func(ctx context.Context, token string)
	Close  func(ctx context.Context, token string)
	Remind func(ctx context.Context, token string)
}

// timerState tracks the two inactivity deadlines of one question.
type timerState struct {
	warnAt  time.Time
	closeAt time.Time
	warned  bool
}

// oneShot is a delayed one-off action (ephemeral message deletion,
// fired-topic removal).
type oneShot struct {
	at time.Time
	fn func(ctx context.Context)
}

// reminder periodically nudges the forum about an unclaimed question.
type reminder struct {
	nextAt time.Time
	every  time.Duration
}

// CronJob is a recurring maintenance job (old-question sweep, pair sweep).
type CronJob struct {
	Name string
	Cron *CronExpr
	Fn   func(ctx context.Context)
}

// Config holds scheduler settings.
type Config struct {
	TickInterval time.Duration `json:"tickInterval"`
	MaxConcJobs  int           `json:"maxConcJobs"`
	LockPath     string        `json:"lockPath"`
}

// DefaultConfig returns sensible scheduler defaults.
func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		TickInterval: time.Second,
		MaxConcJobs:  5,
		LockPath:     filepath.Join(home, ".questioner", "scheduler.lock"),
	}
}

// Scheduler owns the in-memory timer map keyed by question token. The map is
// the sole authority for pending timers; on process restart it is rebuilt
// from the set of active questions. Cron jobs additionally take a file lock
// so only one process dispatches them.
type Scheduler struct {
	cfg  Config
	cb   Callbacks
	mu   sync.Mutex
	sem  *Semaphore
	lock *FileLock

	timers    map[string]*timerState
	reminders map[string]*reminder
	oneShots  map[string]*oneShot
	crons     map[string]*CronJob

	lastCronMinute time.Time
}

// New creates a Scheduler.
func New(cfg Config, cb Callbacks) *Scheduler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.MaxConcJobs <= 0 {
		cfg.MaxConcJobs = 5
	}
	if cfg.LockPath == "" {
		cfg.LockPath = DefaultConfig().LockPath
	}
	_ = os.MkdirAll(filepath.Dir(cfg.LockPath), 0755)
	return &Scheduler{
		cfg:       cfg,
		cb:        cb,
		sem:       NewSemaphore(cfg.MaxConcJobs),
		lock:      NewFileLock(cfg.LockPath),
		timers:    make(map[string]*timerState),
		reminders: make(map[string]*reminder),
		oneShots:  make(map[string]*oneShot),
		crons:     make(map[string]*CronJob),
	}
}

// Install arms the warning and close deadlines for a token, measured from
// now. Installing over an existing entry re-arms it.
func (s *Scheduler) Install(token string, warn, close time.Duration) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timers[token] = &timerState{
		warnAt:  now.Add(warn),
		closeAt: now.Add(close),
	}
}

// Cancel drops the deadlines for a token. Cancelling an absent token is a
// no-op.
func (s *Scheduler) Cancel(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.timers, token)
}

// Restart is cancel-then-install from now.
func (s *Scheduler) Restart(token string, warn, close time.Duration) {
	s.Install(token, warn, close)
}

// Has reports whether the token has armed deadlines.
func (s *Scheduler) Has(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[token]
	return ok
}

// InstallReminder arms a periodic unclaimed-question reminder.
func (s *Scheduler) InstallReminder(token string, every time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reminders[token] = &reminder{nextAt: time.Now().Add(every), every: every}
}

// CancelReminder drops the reminder for a token.
func (s *Scheduler) CancelReminder(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reminders, token)
}

// RunAfter schedules fn once after delay. A second call with the same name
// replaces the pending action.
func (s *Scheduler) RunAfter(name string, delay time.Duration, fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.oneShots[name] = &oneShot{at: time.Now().Add(delay), fn: fn}
}

// CancelRun drops a pending one-shot action.
func (s *Scheduler) CancelRun(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.oneShots, name)
}

// RegisterCron adds a recurring maintenance job.
func (s *Scheduler) RegisterCron(job *CronJob) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.crons[job.Name] = job
	slog.Info("Scheduler cron registered", "name", job.Name)
}

// Run starts the scheduler tick loop. Blocks until context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	slog.Info("Scheduler started", "tick", s.cfg.TickInterval)
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Scheduler stopped")
			return ctx.Err()
		case t := <-ticker.C:
			s.tick(ctx, t)
		}
	}
}

// tick fires every due deadline, reminder, one-shot and cron job. A job
// refused by the semaphore is re-armed and retried on later ticks, so a due
// auto-close is never lost under load.
func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	type fire struct {
		name  string
		fn    func(ctx context.Context)
		rearm func()
	}
	var due []fire

	s.mu.Lock()
	for token, st := range s.timers {
		token, st := token, st
		if !st.warned && !now.Before(st.warnAt) {
			st.warned = true
			if s.cb.Warn != nil {
				due = append(due, fire{
					name:  "warn:" + token,
					fn:    func(ctx context.Context) { s.cb.Warn(ctx, token) },
					rearm: func() { st.warned = false },
				})
			}
		}
		if !now.Before(st.closeAt) {
			delete(s.timers, token)
			if s.cb.Close != nil {
				due = append(due, fire{
					name: "close:" + token,
					fn:   func(ctx context.Context) { s.cb.Close(ctx, token) },
					rearm: func() {
						if _, ok := s.timers[token]; !ok {
							s.timers[token] = st
						}
					},
				})
			}
		}
	}
	for token, r := range s.reminders {
		token, r := token, r
		if !now.Before(r.nextAt) {
			prev := r.nextAt
			r.nextAt = now.Add(r.every)
			if s.cb.Remind != nil {
				due = append(due, fire{
					name:  "remind:" + token,
					fn:    func(ctx context.Context) { s.cb.Remind(ctx, token) },
					rearm: func() { r.nextAt = prev },
				})
			}
		}
	}
	for name, shot := range s.oneShots {
		name, shot := name, shot
		if !now.Before(shot.at) {
			delete(s.oneShots, name)
			due = append(due, fire{
				name: name,
				fn:   shot.fn,
				rearm: func() {
					if _, ok := s.oneShots[name]; !ok {
						s.oneShots[name] = shot
					}
				},
			})
		}
	}
	s.mu.Unlock()

	for _, f := range due {
		if s.dispatch(ctx, f.name, f.fn) {
			continue
		}
		s.mu.Lock()
		f.rearm()
		s.mu.Unlock()
	}

	s.runCrons(ctx, now)
}

// runCrons dispatches matching cron jobs under the cross-process file lock.
func (s *Scheduler) runCrons(ctx context.Context, now time.Time) {
	minute := now.Truncate(time.Minute)

	s.mu.Lock()
	if minute.Equal(s.lastCronMinute) {
		s.mu.Unlock()
		return
	}
	s.lastCronMinute = minute
	var matched []*CronJob
	for _, job := range s.crons {
		if job.Cron.Matches(now) {
			matched = append(matched, job)
		}
	}
	s.mu.Unlock()

	if len(matched) == 0 {
		return
	}

	acquired, err := s.lock.TryLock()
	if err != nil {
		slog.Warn("Scheduler lock error", "error", err)
		return
	}
	if !acquired {
		slog.Debug("Scheduler cron skipped: lock held by another process")
		return
	}
	defer s.lock.Unlock()

	for _, job := range matched {
		s.dispatch(ctx, job.Name, job.Fn)
	}
}

// dispatch runs fn on its own goroutine if a semaphore slot is available.
// Returns false when the slot was refused and the caller should retry.
func (s *Scheduler) dispatch(ctx context.Context, name string, fn func(ctx context.Context)) bool {
	if !s.sem.TryAcquire() {
		slog.Warn("Scheduler job deferred: concurrency limit", "job", name)
		return false
	}
	go func() {
		defer s.sem.Release()
		fn(ctx)
	}()
	return true
}
