package mongo_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xraph/cocoa/store"
	"github.com/xraph/cocoa/store/mongo"
	"github.com/xraph/cocoa/store/storetest"
)

// TestStore runs against COCOA_TEST_MONGO_URI, which must point at a
// replica set so transactions are available.
func TestStore(t *testing.T) {
	uri := os.Getenv("COCOA_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("COCOA_TEST_MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	s, err := mongo.Open(ctx, uri, fmt.Sprintf("cocoa_test_%d", time.Now().UnixNano()))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.DB().Drop(context.Background())
		_ = s.Close()
	})

	storetest.Run(t, func(t *testing.T) store.Store {
		require.NoError(t, s.DB().Drop(ctx))
		require.NoError(t, s.Migrate(ctx))
		return s
	})
}
