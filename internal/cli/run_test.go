package cli

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stpbots/questioner/internal/bus"
	"github.com/stpbots/questioner/internal/config"
	"github.com/stpbots/questioner/internal/directory"
	"github.com/stpbots/questioner/internal/engine"
	"github.com/stpbots/questioner/internal/messenger"
	"github.com/stpbots/questioner/internal/relay"
	"github.com/stpbots/questioner/internal/scheduler"
	"github.com/stpbots/questioner/internal/store"
)

func TestDispatchRoutesUserMessages(t *testing.T) {
	dir := t.TempDir()

	st, err := store.Open(filepath.Join(dir, "questioner.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	d, err := directory.Open(filepath.Join(dir, "employees.db"), directory.Options{})
	if err != nil {
		t.Fatalf("open directory: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if _, err := d.DB().Exec(`INSERT INTO employees (chat_id, fullname, role, division, boss, username)
		VALUES (?, ?, ?, ?, ?, ?)`, 100, "Иванов Иван Иванович", directory.RoleSpecialist, "НТП", "", "user"); err != nil {
		t.Fatalf("seed employee: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.Forums.NTPMainForumID = -1001

	schedCfg := scheduler.DefaultConfig()
	schedCfg.LockPath = filepath.Join(dir, "scheduler.lock")
	sched := scheduler.New(schedCfg, scheduler.Callbacks{})
	msgr := messenger.NewFake()

	eng := engine.New(engine.Options{
		Store: st, Directory: d, Scheduler: sched, Messenger: msgr, Config: cfg,
	})
	rel := relay.New(relay.Options{
		Store: st, Directory: d, Engine: eng, Messenger: msgr, Scheduler: sched, Config: cfg,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := bus.NewEventBus()
	done := make(chan struct{})
	go func() {
		dispatch(ctx, events, eng, rel)
		close(done)
	}()

	events.Publish(&bus.Event{
		Kind:      bus.KindUserMessage,
		ChatID:    100,
		SenderID:  100,
		MessageID: 1,
		Text:      "Как оформить заявку?",
	})

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := st.GetActiveQuestionByEmployee(100); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("question never created by the dispatch loop")
		}
		time.Sleep(10 * time.Millisecond)
	}

	events.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch loop did not stop")
	}
}

func TestRegisterSweepsParsesCron(t *testing.T) {
	if _, err := scheduler.ParseCron(sweepCron); err != nil {
		t.Fatalf("sweep cron invalid: %v", err)
	}
}
