package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/securefront/compliance-scheduler/internal/clock"
	"github.com/securefront/compliance-scheduler/internal/config"
	"github.com/securefront/compliance-scheduler/internal/db"
	"github.com/securefront/compliance-scheduler/internal/scheduler"
	"github.com/securefront/compliance-scheduler/internal/service"
)

// app holds the wired components shared by every command.
type app struct {
	cfg    config.Config
	logger zerolog.Logger
	store  db.Gateway
	sched  *scheduler.Scheduler
	close  func()
}

func newLogger(cfg config.Config) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return log.Level(level).With().Str("service", "compliance-scheduler").Logger()
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg)

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	sched, err := newScheduler(cfg, store, clock.Real{}, logger)
	if err != nil {
		closeStore()
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, store: store, sched: sched, close: closeStore}, nil
}

// openStore connects the configured backend and bounds every call with the
// store timeout.
func openStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) (db.Gateway, func(), error) {
	var (
		g       db.Gateway
		closeFn func()
	)
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		store, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("apply schema: %w", err)
		}
		g, closeFn = store, store.Close
	case config.DriverSQLite:
		store, err := db.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		g, closeFn = store, func() { _ = store.Close() }
	case config.DriverMemory:
		logger.Warn().Msg("using in-memory store, nothing is persisted")
		g, closeFn = db.NewMemoryStore(), func() {}
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	logger.Info().Str("driver", cfg.StoreDriver).Dur("timeout", cfg.StoreTimeout).Msg("store ready")
	return db.WithTimeout(g, cfg.StoreTimeout), closeFn, nil
}

// newScheduler registers every evaluator on its configured cadence.
func newScheduler(cfg config.Config, store db.Gateway, clk clock.Clock, logger zerolog.Logger) (*scheduler.Scheduler, error) {
	schedules := cfg.Schedules()
	env := service.NewEnv(store, clk, logger)
	var jobs []scheduler.Job
	for _, e := range service.All(env) {
		job, err := scheduler.EvaluatorJob(e, schedules[e.Name()])
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return scheduler.New(store, clk, logger, jobs...)
}
