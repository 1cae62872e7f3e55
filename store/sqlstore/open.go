package sqlstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Option configures Open.
type Option func(*openConfig)

type openConfig struct {
	logger          *slog.Logger
	logQueries      bool
	maxOpenConns    int
	maxIdleConns    int
	connMaxLifetime time.Duration
	connectTimeout  time.Duration
	tracing         bool
}

// WithLogger routes connection and query logs to l.
func WithLogger(l *slog.Logger) Option {
	return func(c *openConfig) { c.logger = l }
}

// WithQueryLogging logs every statement at debug level.
func WithQueryLogging() Option {
	return func(c *openConfig) { c.logQueries = true }
}

// WithPool tunes the database/sql pool. Zero values keep the defaults.
func WithPool(maxOpen, maxIdle int, maxLifetime time.Duration) Option {
	return func(c *openConfig) {
		c.maxOpenConns = maxOpen
		c.maxIdleConns = maxIdle
		c.connMaxLifetime = maxLifetime
	}
}

// WithConnectTimeout bounds how long Open keeps retrying.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *openConfig) { c.connectTimeout = d }
}

// WithoutTracing skips the OpenTelemetry plugin.
func WithoutTracing() Option {
	return func(c *openConfig) { c.tracing = false }
}

// Open connects through dialector, retrying with exponential backoff until
// the database answers a ping or the connect timeout passes.
func Open(ctx context.Context, dialector gorm.Dialector, opts ...Option) (*Store, error) {
	cfg := openConfig{
		logger:         slog.Default(),
		connectTimeout: 30 * time.Second,
		tracing:        true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	level := logger.Warn
	if cfg.logQueries {
		level = logger.Info
	}
	gormCfg := &gorm.Config{
		Logger: logger.NewSlogLogger(cfg.logger, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
		TranslateError: true,
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = cfg.connectTimeout

	var db *gorm.DB
	attempt := 0
	operation := func() error {
		attempt++
		opened, err := gorm.Open(dialector, gormCfg)
		if err != nil {
			return err
		}
		sqlDB, err := opened.DB()
		if err != nil {
			return backoff.Permanent(err)
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			_ = sqlDB.Close()
			return err
		}
		db = opened
		return nil
	}
	notify := func(err error, next time.Duration) {
		cfg.logger.Warn("database not ready, retrying",
			slog.String("dialect", dialector.Name()),
			slog.Int("attempt", attempt),
			slog.Duration("next_retry_in", next),
			slog.String("error", err.Error()),
		)
	}
	if err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, fmt.Errorf("cocoa/sql: connect %s after %d attempts: %w", dialector.Name(), attempt, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.maxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.maxOpenConns)
	}
	if cfg.maxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.maxIdleConns)
	}
	if cfg.connMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.connMaxLifetime)
	}

	if cfg.tracing {
		if err := db.Use(otelgorm.NewPlugin()); err != nil {
			cfg.logger.Warn("database connected but tracing plugin failed", slog.String("error", err.Error()))
		}
	}

	cfg.logger.Info("database connected", slog.String("dialect", dialector.Name()), slog.Int("attempt", attempt))
	return New(db), nil
}
