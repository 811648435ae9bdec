package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/events"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/kvstore"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/notification"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/scheduler"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/calendar"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/sequence/dates"
	"github.com/grobenmarketing/7th-level-dialer-sub000/platform/config"
	"github.com/grobenmarketing/7th-level-dialer-sub000/platform/db"
	"github.com/grobenmarketing/7th-level-dialer-sub000/platform/logger"
	"github.com/grobenmarketing/7th-level-dialer-sub000/platform/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting sweeper", "env", cfg.Env, "store", cfg.StoreBackend, "interval", cfg.SweepInterval)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore := openStore(ctx, cfg, log)
	if closeStore != nil {
		defer closeStore()
	}

	cal := loadCalendar(cfg, log)

	eventBus := events.NewInMemoryBus(log)

	notificationModule := notification.NewModule(cfg, log)
	notificationModule.Register(eventBus)
	defer notificationModule.Flush()

	sequenceModule := sequence.NewModule(store, cal, dates.System(), eventBus, cfg, validator.New(), log)

	if cfg.RedisURL == "" {
		log.Warn("REDIS_URL not configured; running interval sweeps only")
		ticker := scheduler.NewSweepTicker(sequenceModule.Engine(), nil, log, cfg.SweepInterval)
		ticker.Run(ctx)
		return
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer client.Close()

	worker, err := scheduler.NewWorker(cfg, sequenceModule.Engine(), sequenceModule.Repository(), client, log)
	if err != nil {
		log.Error("failed to initialize sweep worker", "error", err)
		panic("failed to initialize sweep worker: " + err.Error())
	}

	ticker := scheduler.NewSweepTicker(sequenceModule.Engine(), client, log, cfg.SweepInterval)
	go ticker.Run(ctx)
	worker.Run(ctx)
}

func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (kvstore.Store, func()) {
	switch cfg.StoreBackend {
	case "postgres":
		var pool *pgxpool.Pool
		if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
			p, err := db.NewPool(ctx, cfg)
			if err != nil {
				return err
			}
			pool = p
			return nil
		}); err != nil {
			log.Error("failed to connect to database", "error", err)
			panic("failed to connect to database: " + err.Error())
		}
		return kvstore.NewPostgresStore(pool), pool.Close

	case "redis":
		store, err := kvstore.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Error("failed to connect to redis", "error", err)
			panic("failed to connect to redis: " + err.Error())
		}
		return store, func() { _ = store.Close() }

	default:
		log.Warn("using in-memory store; sweeper sees no shared data")
		return kvstore.NewMemoryStore(), nil
	}
}

func loadCalendar(cfg config.CalendarConfig, log *logger.Logger) *calendar.Definition {
	path := cfg.GetCalendarFile()
	if path == "" {
		return calendar.Default()
	}
	cal, err := calendar.Load(path)
	if err != nil {
		log.Error("failed to load touch plan", "error", err, "path", path)
		panic("failed to load touch plan: " + err.Error())
	}
	return cal
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
