package postgres_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xraph/cocoa/store"
	"github.com/xraph/cocoa/store/postgres"
	"github.com/xraph/cocoa/store/sqlstore"
	"github.com/xraph/cocoa/store/storetest"
)

var (
	testDSN   string
	skipWhy   string
	container *tcpostgres.PostgresContainer
)

// TestMain starts a PostgreSQL container unless COCOA_TEST_POSTGRES_DSN
// points at an existing database. Tests skip when neither is available.
func TestMain(m *testing.M) {
	ctx := context.Background()

	testDSN = os.Getenv("COCOA_TEST_POSTGRES_DSN")
	if testDSN == "" {
		var err error
		container, err = tcpostgres.Run(ctx,
			"postgres:18-alpine",
			tcpostgres.WithDatabase("cocoa_test"),
			tcpostgres.WithUsername("postgres"),
			tcpostgres.WithPassword("postgres"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		if err != nil {
			skipWhy = fmt.Sprintf("postgres container unavailable: %v", err)
		} else if testDSN, err = container.ConnectionString(ctx, "sslmode=disable"); err != nil {
			skipWhy = fmt.Sprintf("postgres connection string: %v", err)
		}
	}

	code := m.Run()

	if container != nil {
		if err := container.Terminate(ctx); err != nil {
			fmt.Printf("failed to terminate postgres container: %v\n", err)
		}
	}
	os.Exit(code)
}

func TestStore(t *testing.T) {
	if skipWhy != "" {
		t.Skip(skipWhy)
	}
	ctx := context.Background()
	s, err := postgres.Open(ctx, testDSN,
		sqlstore.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		sqlstore.WithPool(5, 2, time.Minute),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	storetest.Run(t, func(t *testing.T) store.Store {
		require.NoError(t, s.DB().Migrator().DropTable(sqlstore.Models...))
		require.NoError(t, s.Migrate(ctx))
		return s
	})
}
