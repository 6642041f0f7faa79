package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/stpbots/questioner/internal/bus"
	"github.com/stpbots/questioner/internal/config"
	"github.com/stpbots/questioner/internal/directory"
	"github.com/stpbots/questioner/internal/engine"
	"github.com/stpbots/questioner/internal/journal"
	"github.com/stpbots/questioner/internal/messenger"
	"github.com/stpbots/questioner/internal/relay"
	"github.com/stpbots/questioner/internal/scheduler"
	"github.com/stpbots/questioner/internal/store"
)

// sweepCron runs both retention sweeps twice a day.
const sweepCron = "0 */12 * * *"

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the question broker",
	Run:   runBroker,
}

var runSignalNotify = signal.Notify
var runSignalStop = signal.Stop

// newGateway builds the messenger client for the process. Overridable so
// tests can plug the recording fake in front of the full loop.
var newGateway = func(cfg *config.Config) (messenger.Messenger, error) {
	return messenger.NewFake(), nil
}

func runBroker(cmd *cobra.Command, args []string) {
	printHeader("📨 Questioner Broker")
	fmt.Println("Starting question broker...")

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}

	st, err := store.Open(cfg.Database.QuestionerPath)
	if err != nil {
		fmt.Printf("Failed to open question store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	dirOpts := directory.Options{}
	if cfg.Bot.UseRedis {
		dirOpts.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		dirOpts.CacheTTL = time.Hour
	}
	dir, err := directory.Open(cfg.Database.MainPath, dirOpts)
	if err != nil {
		fmt.Printf("Failed to open employee directory: %v\n", err)
		os.Exit(1)
	}
	defer dir.Close()

	msgr, err := newGateway(cfg)
	if err != nil {
		fmt.Printf("Failed to build messenger client: %v\n", err)
		os.Exit(1)
	}

	var rec engine.Recorder
	j := journal.New(cfg.Journal)
	if j != nil {
		rec = j
		defer j.Close()
	}

	// The scheduler fires into the engine; callbacks are bound after both
	// exist.
	var eng *engine.Engine
	sched := scheduler.New(scheduler.DefaultConfig(), scheduler.Callbacks{
		Warn:   func(ctx context.Context, token string) { eng.InactivityWarn(ctx, token) },
		Close:  func(ctx context.Context, token string) { eng.InactivityClose(ctx, token) },
		Remind: func(ctx context.Context, token string) { eng.AttentionRemind(ctx, token) },
	})
	eng = engine.New(engine.Options{
		Store:     st,
		Directory: dir,
		Scheduler: sched,
		Messenger: msgr,
		Config:    cfg,
		Journal:   rec,
	})
	rel := relay.New(relay.Options{
		Store:     st,
		Directory: dir,
		Engine:    eng,
		Messenger: msgr,
		Scheduler: sched,
		Config:    cfg,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := eng.Rearm(ctx); err != nil {
		fmt.Printf("Failed to rearm timers: %v\n", err)
		os.Exit(1)
	}
	registerSweeps(sched, eng, cfg)

	events := bus.NewEventBus()
	go sched.Run(ctx)
	go dispatch(ctx, events, eng, rel)

	fmt.Printf("Broker is running (division %s). Press Ctrl+C to stop.\n", cfg.Bot.Division)
	slog.Info("Broker started", "division", cfg.Bot.Division, "store", cfg.Database.QuestionerPath)

	sigChan := make(chan os.Signal, 1)
	runSignalNotify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer runSignalStop(sigChan)
	<-sigChan

	fmt.Println("\nShutting down...")
	events.Stop()
	cancel()
}

// dispatch routes inbound events to the relay and the engine, one at a
// time, which keeps per-topic ordering.
func dispatch(ctx context.Context, events *bus.EventBus, eng *engine.Engine, rel *relay.Relay) {
	for {
		ev, err := events.Consume(ctx)
		if err != nil {
			return
		}
		switch ev.Kind {
		case bus.KindUserMessage:
			rel.HandleUserMessage(ctx, *ev)
		case bus.KindTopicMessage:
			rel.HandleTopicMessage(ctx, *ev)
		case bus.KindEditedMessage:
			rel.HandleEdit(ctx, *ev)
		case bus.KindCallback:
			eng.HandleCallback(ctx, *ev)
		default:
			slog.Debug("Unhandled event kind", "kind", ev.Kind)
		}
	}
}

func registerSweeps(sched *scheduler.Scheduler, eng *engine.Engine, cfg *config.Config) {
	expr, err := scheduler.ParseCron(sweepCron)
	if err != nil {
		slog.Error("Sweep cron parse failed", "expr", sweepCron, "error", err)
		return
	}
	sched.RegisterCron(&scheduler.CronJob{
		Name: "sweep-pairs",
		Cron: expr,
		Fn: func(ctx context.Context) {
			if _, err := eng.SweepPairs(ctx); err != nil {
				slog.Error("Pair sweep failed", "error", err)
			}
		},
	})
	if cfg.Questioner.RemoveOldQuestions {
		sched.RegisterCron(&scheduler.CronJob{
			Name: "sweep-questions",
			Cron: expr,
			Fn: func(ctx context.Context) {
				if _, err := eng.DeleteOld(ctx); err != nil {
					slog.Error("Question sweep failed", "error", err)
				}
			},
		})
	}
}
