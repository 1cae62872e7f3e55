package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/cocoa/store/memory"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		configFile  string
		env         map[string]string
		expectError bool
		validate    func(*testing.T, *Config)
	}{
		{
			name: "valid config file",
			configFile: `
debug: true
currency: USD
operator_name: Coop Ltd
bag_capacity_kg: "50"
server:
  port: 9090
  request_timeout: 5s
store:
  driver: sqlite
  dsn: /tmp/cocoa.db
  max_open_conns: 4
redis:
  addr: localhost:6379
  lock_ttl: 10s
nats:
  url: nats://localhost:4222
  stream: TEST
  prefix: test
  max_reconnects: 3
`,
			validate: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.Debug)
				assert.Equal(t, "USD", cfg.Currency)
				assert.Equal(t, "Coop Ltd", cfg.OperatorName)
				assert.Equal(t, "50", cfg.BagCapacityKg)
				assert.Equal(t, "60000", cfg.BatchCapacityKg)
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, 5*time.Second, cfg.Server.RequestTimeout)
				assert.Equal(t, DriverSQLite, cfg.Store.Driver)
				assert.Equal(t, "/tmp/cocoa.db", cfg.Store.DSN)
				assert.Equal(t, 4, cfg.Store.MaxOpenConns)
				assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
				assert.Equal(t, 10*time.Second, cfg.Redis.LockTTL)
				assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
				assert.Equal(t, "TEST", cfg.NATS.Stream)
				assert.Equal(t, "test", cfg.NATS.Prefix)
				assert.Equal(t, 3, cfg.NATS.MaxReconnects)
			},
		},
		{
			name:       "defaults",
			configFile: "debug: false\n",
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "ngn", cfg.Currency)
				assert.Equal(t, "EcoWise Enterprise", cfg.OperatorName)
				assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
				assert.Equal(t, DriverMemory, cfg.Store.Driver)
				assert.Equal(t, 30*time.Second, cfg.Store.ConnectTimeout)
				assert.Equal(t, "COCOA", cfg.NATS.Stream)
				assert.Equal(t, "cocoa", cfg.NATS.Prefix)
				assert.Equal(t, 2*time.Second, cfg.NATS.ReconnectWait)
				assert.Empty(t, cfg.Redis.Addr)
			},
		},
		{
			name:       "environment overrides file",
			configFile: "store:\n  driver: memory\n",
			env: map[string]string{
				"COCOA_STORE_DRIVER": "Postgres",
				"COCOA_STORE_DSN":    "postgres://localhost/cocoa",
				"COCOA_SERVER_PORT":  "7000",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, DriverPostgres, cfg.Store.Driver)
				assert.Equal(t, "postgres://localhost/cocoa", cfg.Store.DSN)
				assert.Equal(t, 7000, cfg.Server.Port)
			},
		},
		{
			name:        "unknown driver",
			configFile:  "store:\n  driver: cassandra\n",
			expectError: true,
		},
		{
			name:        "postgres without dsn",
			configFile:  "store:\n  driver: postgres\n",
			expectError: true,
		},
		{
			name:        "zero bag capacity",
			configFile:  "bag_capacity_kg: \"0\"\n",
			expectError: true,
		},
		{
			name:        "malformed batch capacity",
			configFile:  "batch_capacity_kg: sixty\n",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := Load(writeConfig(t, tt.configFile), t.TempDir())
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.validate(t, cfg)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), t.TempDir())
	assert.Error(t, err)
}

func TestLoad_DotEnv(t *testing.T) {
	envDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(envDir, ".env"), []byte("COCOA_CURRENCY=ghs\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("COCOA_CURRENCY") })

	cfg, err := Load(writeConfig(t, "debug: true\n"), envDir)
	require.NoError(t, err)
	assert.Equal(t, "ghs", cfg.Currency)
}

func TestOpen_Memory(t *testing.T) {
	cfg, err := Load(writeConfig(t, "operator_name: Coop\nlenient_filters: true\n"), t.TempDir())
	require.NoError(t, err)

	rt, err := Open(t.Context(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })

	assert.IsType(t, &memory.Store{}, rt.Store)
	// logger, currency, operator, lenient filters, bag and batch capacity
	assert.Len(t, rt.Options, 6)
}
