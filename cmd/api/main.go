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
	apphttp "github.com/grobenmarketing/7th-level-dialer-sub000/internal/http"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/http/router"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/kvstore"
	"github.com/grobenmarketing/7th-level-dialer-sub000/internal/notification"
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
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr, "store", cfg.StoreBackend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, health, closeStore := openStore(ctx, cfg, log)
	if closeStore != nil {
		defer closeStore()
	}

	cal := loadCalendar(cfg, log)
	log.Info("touch plan loaded", "days", cal.Length(), "touches", cal.TotalTouches())

	eventBus := events.NewInMemoryBus(log)

	notificationModule := notification.NewModule(cfg, log)
	notificationModule.Register(eventBus)

	val := validator.New()

	sequenceModule := sequence.NewModule(store, cal, dates.System(), eventBus, cfg, val, log)

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   health,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			sequenceModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		notificationModule.Flush()
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// openStore builds the persistence backend selected by STORE_BACKEND.
// The returned health checker may be nil for the memory backend.
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (kvstore.Store, apphttp.HealthChecker, func()) {
	switch cfg.StoreBackend {
	case "postgres":
		if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
			return db.RunMigrations(ctx, cfg, "migrations")
		}); err != nil {
			log.Error("failed to run database migrations", "error", err)
			panic("failed to run database migrations: " + err.Error())
		}
		log.Info("database migrations complete")

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
		log.Info("database connection established")
		return kvstore.NewPostgresStore(pool), pool, pool.Close

	case "redis":
		store, err := kvstore.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Error("failed to connect to redis", "error", err)
			panic("failed to connect to redis: " + err.Error())
		}
		if err := store.Ping(ctx); err != nil {
			log.Error("redis ping failed", "error", err)
			panic("redis ping failed: " + err.Error())
		}
		log.Info("redis connection established")
		return store, store, func() { _ = store.Close() }

	default:
		log.Warn("using in-memory store; data is lost on restart")
		return kvstore.NewMemoryStore(), nil, nil
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
