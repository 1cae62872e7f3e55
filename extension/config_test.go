package extension

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/xraph/cocoa/config"
)

func TestMergeWithDefaults(t *testing.T) {
	cfg := mergeWithDefaults(Config{OperatorName: "Coop"})

	assert.Equal(t, "/cocoa", cfg.BasePath)
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "ngn", cfg.Currency)
	assert.Equal(t, config.DriverMemory, cfg.Store.Driver)
	assert.Equal(t, "Coop", cfg.OperatorName)
}

func TestMergeConfigurations(t *testing.T) {
	yaml := Config{
		BasePath: "/supply",
		Store:    config.StoreConfig{Driver: config.DriverSQLite, DSN: "cocoa.db"},
	}
	programmatic := Config{
		BasePath:       "/ignored",
		Currency:       "ghs",
		DisableMigrate: true,
		Redis:          config.RedisConfig{Addr: "localhost:6379"},
		Store:          config.StoreConfig{Driver: config.DriverPostgres},
	}

	cfg := mergeConfigurations(yaml, programmatic)

	assert.Equal(t, "/supply", cfg.BasePath)
	assert.Equal(t, "ghs", cfg.Currency)
	assert.True(t, cfg.DisableMigrate)
	assert.False(t, cfg.DisableRoutes)
	assert.Equal(t, config.DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "cocoa.db", cfg.Store.DSN)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
}

func TestRuntimeConfig(t *testing.T) {
	cfg := mergeWithDefaults(Config{LenientFilters: true})
	rc := cfg.runtimeConfig()

	assert.Equal(t, "ngn", rc.Currency)
	assert.True(t, rc.LenientFilters)
	assert.Equal(t, config.DriverMemory, rc.Store.Driver)
	assert.Empty(t, rc.BagCapacityKg)
}
