package extension

import (
	"time"

	"github.com/xraph/cocoa/config"
)

// Config holds the cocoa extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.cocoa" or "cocoa" keys).
type Config struct {
	// DisableRoutes skips providing the HTTP handler.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// BasePath is the URL prefix the host should mount the handler under
	// (default: "/cocoa").
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path"`

	// RequestTimeout bounds each API request (default: 60s).
	RequestTimeout time.Duration `json:"request_timeout" mapstructure:"request_timeout" yaml:"request_timeout"`

	// Currency is the settlement currency (default: "ngn").
	Currency string `json:"currency" mapstructure:"currency" yaml:"currency"`

	// OperatorName names the operator farmer record.
	OperatorName string `json:"operator_name" mapstructure:"operator_name" yaml:"operator_name"`

	// LenientFilters logs unknown bundle filter keys instead of rejecting them.
	LenientFilters bool `json:"lenient_filters" mapstructure:"lenient_filters" yaml:"lenient_filters"`

	// Store selects the backend when no store was given with WithStore.
	// An empty driver means the in-memory store.
	Store config.StoreConfig `json:"store" mapstructure:"store" yaml:"store"`

	// Redis enables the distributed ledger lock when Addr is set.
	Redis config.RedisConfig `json:"redis" mapstructure:"redis" yaml:"redis"`

	// NATS enables event publishing when URL is set.
	NATS config.NATSConfig `json:"nats" mapstructure:"nats" yaml:"nats"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BasePath:       "/cocoa",
		RequestTimeout: 60 * time.Second,
		Currency:       "ngn",
		Store:          config.StoreConfig{Driver: config.DriverMemory},
	}
}

// runtimeConfig converts the extension settings into the daemon shape
// config.Open understands.
func (c Config) runtimeConfig() *config.Config {
	return &config.Config{
		Currency:       c.Currency,
		OperatorName:   c.OperatorName,
		LenientFilters: c.LenientFilters,
		Store:          c.Store,
		Redis:          c.Redis,
		NATS:           c.NATS,
	}
}
