package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	_ "modernc.org/sqlite"

	"github.com/eduxora/stageflow/internal/config"
	"github.com/eduxora/stageflow/internal/lifecycle"
	"github.com/eduxora/stageflow/internal/logging"
	"github.com/eduxora/stageflow/internal/persistence"
	"github.com/eduxora/stageflow/internal/remote"
	"github.com/eduxora/stageflow/internal/taskqueue"
	"github.com/eduxora/stageflow/internal/telemetry"
	"github.com/eduxora/stageflow/pkg/api"
	"github.com/eduxora/stageflow/pkg/progress"
	"github.com/eduxora/stageflow/pkg/worker"
)

// app is the wired object graph shared by serve and progress.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	lifecycle *lifecycle.Lifecycle
	queue     taskqueue.Queue
	worker    *worker.Worker

	closers []func() error
}

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	p, err := a.openPersistence(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	if a.queue, err = a.openQueue(); err != nil {
		_ = a.Close()
		return nil, err
	}

	metrics, err := telemetry.NewMetricsObserver(nil)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("metrics observer: %w", err)
	}
	observer := api.NewCompositeObserver(api.NewLoggingObserver(logger), metrics)

	client := remote.New(cfg.Remote.BaseURL,
		remote.WithToken(cfg.Remote.Token),
		remote.WithTimeout(cfg.Remote.Timeout),
	)
	a.lifecycle, err = lifecycle.New(lifecycle.Config{
		Remote:      client,
		Persistence: p,
		Engine:      progress.New(progress.WithObserver(observer)),
		Observer:    observer,
		Logger:      logger,
		Queue:       a.queue,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	if a.queue != nil {
		a.worker = worker.NewWithConfig(a.lifecycle, a.queue, worker.Config{
			MaxAttempts: cfg.Worker.MaxAttempts,
			Backoff:     cfg.Worker.Backoff,
			Logger:      logger,
		})
	}
	return a, nil
}

func (a *app) openPersistence(ctx context.Context) (persistence.Persistence, error) {
	sc := a.cfg.Store
	switch sc.Driver {
	case config.StoreMemory:
		return persistence.NewInMemory(), nil

	case config.StoreSQLite:
		db, err := a.openDB("sqlite", sc.DSN)
		if err != nil {
			return persistence.Persistence{}, err
		}
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
		snaps, err := persistence.NewSQLiteSnapshotStore(db)
		if err != nil {
			return persistence.Persistence{}, err
		}
		p := persistence.Persistence{Snapshots: snaps, Events: persistence.NoopEventStore{}}
		if sc.Events {
			if p.Events, err = persistence.NewSQLiteEventStore(db); err != nil {
				return persistence.Persistence{}, err
			}
		}
		return p, nil

	case config.StorePostgres:
		db, err := a.openDB("pgx", sc.DSN)
		if err != nil {
			return persistence.Persistence{}, err
		}
		snaps, err := persistence.NewPostgresSnapshotStore(db)
		if err != nil {
			return persistence.Persistence{}, err
		}
		return persistence.Persistence{Snapshots: snaps, Events: a.memoryEvents()}, nil

	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     sc.Redis.Addr,
			Password: sc.Redis.Password,
			DB:       sc.Redis.DB,
		})
		a.closers = append(a.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return persistence.Persistence{}, fmt.Errorf("redis ping %s: %w", sc.Redis.Addr, err)
		}
		snaps := persistence.NewRedisSnapshotStore(client, sc.Redis.Prefix, sc.Redis.TTL)
		return persistence.Persistence{Snapshots: snaps, Events: a.memoryEvents()}, nil

	case config.StoreMongo:
		cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		client, err := mongo.Connect(cctx, options.Client().ApplyURI(sc.Mongo.URI))
		if err != nil {
			return persistence.Persistence{}, fmt.Errorf("mongo connect: %w", err)
		}
		a.closers = append(a.closers, func() error { return client.Disconnect(context.Background()) })
		if err := client.Ping(cctx, nil); err != nil {
			return persistence.Persistence{}, fmt.Errorf("mongo ping: %w", err)
		}
		snaps := persistence.NewMongoSnapshotStore(client, sc.Mongo.Database, sc.Mongo.Collection)
		return persistence.Persistence{Snapshots: snaps, Events: a.memoryEvents()}, nil
	}
	return persistence.Persistence{}, fmt.Errorf("unknown store driver %q", sc.Driver)
}

func (a *app) memoryEvents() persistence.EventStore {
	if !a.cfg.Store.Events {
		return persistence.NoopEventStore{}
	}
	return persistence.NewInMemoryEventStore()
}

func (a *app) openQueue() (taskqueue.Queue, error) {
	switch a.cfg.Queue.Driver {
	case config.QueueNone:
		return nil, nil
	case config.QueueMemory:
		return taskqueue.NewInMemoryQueue(1024), nil
	case config.QueueSQLite:
		db, err := a.openDB("sqlite", a.cfg.Queue.DSN)
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(1)
		return taskqueue.NewSQLiteQueue(db)
	}
	return nil, fmt.Errorf("unknown queue driver %q", a.cfg.Queue.Driver)
}

func (a *app) openDB(driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	a.closers = append(a.closers, db.Close)
	return db, nil
}

// Close releases backend connections in reverse order of opening.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
