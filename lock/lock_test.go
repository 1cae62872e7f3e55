package lock

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_Exclusive(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	var (
		inside  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lk, err := l.Obtain(ctx, "ledger")
			if !assert.NoError(t, err) {
				return
			}
			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			assert.NoError(t, lk.Release(ctx))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load())
}

func TestLocal_ContextCancelled(t *testing.T) {
	l := NewLocal()
	held, err := l.Obtain(context.Background(), "ledger")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Obtain(ctx, "ledger")
	assert.True(t, errors.Is(err, ErrNotObtained))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	require.NoError(t, held.Release(context.Background()))
	again, err := l.Obtain(context.Background(), "ledger")
	require.NoError(t, err)
	require.NoError(t, again.Release(context.Background()))
}

func TestLocal_KeysIndependent(t *testing.T) {
	l := NewLocal()
	a, err := l.Obtain(context.Background(), "a")
	require.NoError(t, err)
	b, err := l.Obtain(context.Background(), "b")
	require.NoError(t, err)
	require.NoError(t, a.Release(context.Background()))
	require.NoError(t, b.Release(context.Background()))
	assert.Error(t, b.Release(context.Background()))
}

func TestRedis_ObtainRelease(t *testing.T) {
	addr := os.Getenv("COCOA_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("COCOA_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx := context.Background()
	l := NewRedis(client, WithKeyPrefix("cocoa:test:"), WithRetry(10*time.Millisecond, 3))

	first, err := l.Obtain(ctx, "ledger")
	require.NoError(t, err)

	_, err = l.Obtain(ctx, "ledger")
	assert.True(t, errors.Is(err, ErrNotObtained))

	require.NoError(t, first.Release(ctx))
	second, err := l.Obtain(ctx, "ledger")
	require.NoError(t, err)
	require.NoError(t, second.Release(ctx))
}
