package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// Redis is a distributed Locker backed by redislock. Held locks are
// refreshed in the background until released, so long settlements keep
// exclusivity.
type Redis struct {
	client  *redislock.Client
	prefix  string
	ttl     time.Duration
	backoff time.Duration
	retries int
	logger  *slog.Logger
}

// RedisOption configures a Redis locker.
type RedisOption func(*Redis)

// WithTTL sets the lease of a lock between refreshes.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) { r.ttl = ttl }
}

// WithRetry sets how often and how far apart Obtain retries a taken lock.
func WithRetry(backoff time.Duration, retries int) RedisOption {
	return func(r *Redis) {
		r.backoff = backoff
		r.retries = retries
	}
}

// WithKeyPrefix namespaces lock keys.
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *Redis) { r.prefix = prefix }
}

// WithLogger sets the logger used for refresh failures.
func WithLogger(logger *slog.Logger) RedisOption {
	return func(r *Redis) { r.logger = logger }
}

// NewRedis returns a Locker using client.
func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{
		client:  redislock.New(client),
		prefix:  "cocoa:lock:",
		ttl:     30 * time.Second,
		backoff: 100 * time.Millisecond,
		retries: 50,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Obtain acquires key, retrying with a linear backoff.
func (r *Redis) Obtain(ctx context.Context, key string) (Lock, error) {
	lk, err := r.client.Obtain(ctx, r.prefix+key, r.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(r.backoff), r.retries),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%w: %s", ErrNotObtained, key)
	}
	if err != nil {
		return nil, fmt.Errorf("lock: obtain %s: %w", key, err)
	}

	held := &redisLock{lock: lk, stop: make(chan struct{})}
	held.wg.Add(1)
	go held.keepAlive(r.ttl, r.logger)
	return held, nil
}

type redisLock struct {
	lock *redislock.Lock
	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func (l *redisLock) keepAlive(ttl time.Duration, logger *slog.Logger) {
	defer l.wg.Done()
	ticker := time.NewTicker(ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			if err := l.lock.Refresh(context.Background(), ttl, nil); err != nil {
				logger.Warn("ledger lock refresh failed", "key", l.lock.Key(), "error", err)
				return
			}
		}
	}
}

func (l *redisLock) Release(ctx context.Context) error {
	l.once.Do(func() { close(l.stop) })
	l.wg.Wait()
	if err := l.lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
		return fmt.Errorf("lock: release %s: %w", l.lock.Key(), err)
	}
	return nil
}
