package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	"github.com/xraph/cocoa"
	"github.com/xraph/cocoa/lock"
	"github.com/xraph/cocoa/natsbus"
	"github.com/xraph/cocoa/store"
	"github.com/xraph/cocoa/store/memory"
	"github.com/xraph/cocoa/store/mongo"
	"github.com/xraph/cocoa/store/postgres"
	"github.com/xraph/cocoa/store/sqlite"
	"github.com/xraph/cocoa/store/sqlstore"
)

// OpenStore connects the configured backend. The caller owns the store;
// Ledger.Stop closes it.
func OpenStore(ctx context.Context, cfg StoreConfig, logger *slog.Logger) (store.Store, error) {
	sqlOpts := []sqlstore.Option{
		sqlstore.WithLogger(logger),
		sqlstore.WithPool(cfg.MaxOpenConns, cfg.MaxIdleConns, cfg.ConnMaxLifetime),
	}
	if cfg.ConnectTimeout > 0 {
		sqlOpts = append(sqlOpts, sqlstore.WithConnectTimeout(cfg.ConnectTimeout))
	}
	if cfg.LogQueries {
		sqlOpts = append(sqlOpts, sqlstore.WithQueryLogging())
	}

	switch cfg.Driver {
	case DriverMemory, "":
		return memory.New(), nil
	case DriverSQLite:
		return sqlite.Open(ctx, cfg.DSN, sqlOpts...)
	case DriverPostgres:
		return postgres.Open(ctx, cfg.DSN, sqlOpts...)
	case DriverMongo:
		return openMongo(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("config: unknown store driver %q", cfg.Driver)
	}
}

// openMongo retries the initial connect the same way sqlstore.Open does.
func openMongo(ctx context.Context, cfg StoreConfig, logger *slog.Logger) (*mongo.Store, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = timeout

	var s *mongo.Store
	err := backoff.RetryNotify(func() error {
		var err error
		s, err = mongo.Open(ctx, cfg.DSN, cfg.Database)
		return err
	}, backoff.WithContext(bo, ctx), func(err error, wait time.Duration) {
		logger.Warn("mongo not ready, retrying", "error", err, "wait", wait)
	})
	if err != nil {
		return nil, fmt.Errorf("config: open mongo: %w", err)
	}
	return s, nil
}

// Runtime is everything Open built besides the store. Close releases what
// the ledger does not own.
type Runtime struct {
	Store   store.Store
	Options []cocoa.Option

	redis *redis.Client
	bus   *natsbus.Bus
}

// Close releases the redis client. The bus drains in its OnShutdown hook
// and the store closes with the ledger.
func (r *Runtime) Close() error {
	if r.redis == nil {
		return nil
	}
	return r.redis.Close()
}

// Open builds the store, the optional redis locker and the optional NATS
// bus, and returns the ledger options that wire them.
func Open(ctx context.Context, cfg *Config, logger *slog.Logger) (*Runtime, error) {
	rt, err := Wire(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	rt.Store, err = OpenStore(ctx, cfg.Store, logger)
	if err != nil {
		if rt.bus != nil {
			_ = rt.bus.OnShutdown(ctx)
		}
		return nil, errors.Join(err, rt.Close())
	}
	logger.Info("store opened", "driver", cfg.Store.Driver)
	return rt, nil
}

// Wire is Open without the store, for hosts that bring their own.
func Wire(ctx context.Context, cfg *Config, logger *slog.Logger) (*Runtime, error) {
	rt := &Runtime{}
	opts := []cocoa.Option{cocoa.WithLogger(logger)}

	if cfg.Currency != "" {
		opts = append(opts, cocoa.WithCurrency(cfg.Currency))
	}
	if cfg.OperatorName != "" {
		opts = append(opts, cocoa.WithOperatorName(cfg.OperatorName))
	}
	if cfg.LenientFilters {
		opts = append(opts, cocoa.WithLenientFilters())
	}
	bagKg, err := capacity("bag_capacity_kg", cfg.BagCapacityKg)
	if err != nil {
		return nil, err
	}
	if !bagKg.IsZero() {
		opts = append(opts, cocoa.WithBagCapacity(bagKg))
	}
	batchKg, err := capacity("batch_capacity_kg", cfg.BatchCapacityKg)
	if err != nil {
		return nil, err
	}
	if !batchKg.IsZero() {
		opts = append(opts, cocoa.WithBatchCapacity(batchKg))
	}

	if cfg.Redis.Addr != "" {
		rt.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rt.redis.Ping(ctx).Err(); err != nil {
			_ = rt.redis.Close()
			return nil, fmt.Errorf("config: redis: %w", err)
		}
		lockOpts := []lock.RedisOption{lock.WithLogger(logger)}
		if cfg.Redis.LockTTL > 0 {
			lockOpts = append(lockOpts, lock.WithTTL(cfg.Redis.LockTTL))
		}
		opts = append(opts, cocoa.WithLocker(lock.NewRedis(rt.redis, lockOpts...)))
		logger.Info("using redis ledger lock", "addr", cfg.Redis.Addr)
	}

	if cfg.NATS.URL != "" {
		busOpts := []natsbus.Option{natsbus.WithLogger(logger)}
		if cfg.NATS.Prefix != "" {
			busOpts = append(busOpts, natsbus.WithPrefix(cfg.NATS.Prefix))
		}
		rt.bus, err = natsbus.Connect(ctx, cfg.NATS.Config, busOpts...)
		if err != nil {
			return nil, errors.Join(err, rt.Close())
		}
		opts = append(opts, cocoa.WithPlugin(rt.bus))
		logger.Info("publishing ledger events", "url", cfg.NATS.URL, "stream", cfg.NATS.Stream)
	}

	rt.Options = opts
	return rt, nil
}
