// Package app builds the deletion stack shared by the API server and storectl.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"storeops/internal/cascade"
	"storeops/internal/cleanup"
	"storeops/internal/config"
	"storeops/internal/database"
	"storeops/internal/lock"
	"storeops/internal/metrics"
	"storeops/internal/objectstore"
	"storeops/internal/ratelimit"
	"storeops/internal/scheduler"
	"storeops/internal/search"
)

// App holds the wired components.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Data    cascade.DataStore
	Engine  *cascade.Engine
	Service *cleanup.Service
	Limiter *ratelimit.Limiter

	// nil when the database is accessed without GORM (postgres-sql)
	DB        *gorm.DB
	Queue     *scheduler.Queue
	Worker    *scheduler.Worker
	Scheduler *scheduler.Scheduler

	closers []func() error
}

// New connects every backend named in cfg. reg may be nil to skip metrics.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger, reg prometheus.Registerer) (a *App, err error) {
	if log == nil {
		log = zap.NewNop()
	}
	a = &App{Config: cfg, Logger: log}
	defer func() {
		if err != nil {
			_ = a.Close()
			a = nil
		}
	}()

	if reg != nil {
		a.Metrics = metrics.New("storeops", reg)
	}

	if err := a.openDatabase(); err != nil {
		return nil, err
	}

	objects, err := objectstore.New(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create object store: %w", err)
	}
	if objects == nil {
		log.Warn("No object storage configured; deletions of stores with files will fail")
	}

	locker, err := a.newLocker(ctx)
	if err != nil {
		return nil, err
	}

	opts := cleanup.Options{
		Locker:  locker,
		Metrics: a.Metrics,
		Logger:  log,
	}
	if a.DB != nil {
		opts.Audit = cleanup.NewGormAuditLog(a.DB)
		a.Queue = scheduler.NewQueue(a.DB).WithLease(cfg.Deletion.Queue.Lease)
		opts.Retry = a.Queue
	}

	ms := cfg.Search.Meilisearch
	if ms.Enabled {
		index := search.NewStoreIndex(ms.Host, ms.APIKey, ms.Index)
		if err := index.InitIndex(); err != nil {
			// search removal is best-effort; the index may come up later
			log.Warn("Failed to initialize search index", zap.Error(err))
		}
		opts.Search = index
	}

	a.Engine = cascade.NewEngine(a.Data, objects, cascade.DefaultManifest(), cascade.Config{
		Concurrency: cfg.Deletion.PlanConcurrency,
		SampleSize:  cfg.Deletion.SampleSize,
	}, log)

	a.Service = cleanup.NewService(a.Data, a.Engine, cleanup.Config{
		WriteAuditLog:    cfg.Deletion.WriteAuditLog,
		DeleteFromSearch: cfg.Deletion.DeleteFromSearch,
	}, opts)

	rl := cfg.Deletion.RateLimit
	a.Limiter = ratelimit.New(rl.Limits, rl.Enabled)

	if a.Queue != nil {
		a.Worker = scheduler.NewWorker(a.Queue, a.Service, a.Metrics, log)
		a.Scheduler = scheduler.New(a.Worker, a.Queue, cfg.Deletion.Queue, log)
	}
	return a, nil
}

func (a *App) openDatabase() error {
	cfg := a.Config.Database
	if cfg.Type == "postgres-sql" {
		store, err := database.OpenSQL(cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		a.Data = store
		a.Logger.Info("Database connected", zap.String("type", cfg.Type))
		return nil
	}

	db, err := database.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	a.closers = append(a.closers, func() error { return database.Close(db) })
	if err := database.InitSchema(db); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	a.DB = db
	a.Data = database.NewGormStore(db)
	a.Logger.Info("Database connected", zap.String("type", cfg.Type))
	return nil
}

func (a *App) newLocker(ctx context.Context) (lock.Locker, error) {
	cfg := a.Config.Lock
	if cfg.Provider != "redis" {
		return lock.NewLocal(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	a.closers = append(a.closers, client.Close)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	a.Logger.Info("Redis connected", zap.String("addr", cfg.Addr))
	return lock.NewRedis(client, cfg.TTL), nil
}

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
