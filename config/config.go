// Package config loads cocoad settings from a YAML file, .env files and
// COCOA_* environment variables, and turns them into a running store,
// locker and event bus.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/xraph/cocoa/natsbus"
)

// EnvPrefix is prepended to every environment variable, with dots in keys
// replaced by underscores (store.dsn becomes COCOA_STORE_DSN).
const EnvPrefix = "COCOA"

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `json:"host" mapstructure:"host" yaml:"host"`
	Port            int           `json:"port" mapstructure:"port" yaml:"port"`
	ReadTimeout     time.Duration `json:"read_timeout" mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout" mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout" mapstructure:"idle_timeout" yaml:"idle_timeout"`
	RequestTimeout  time.Duration `json:"request_timeout" mapstructure:"request_timeout" yaml:"request_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StoreConfig selects and tunes the persistence backend.
type StoreConfig struct {
	// Driver is one of memory, sqlite, postgres or mongo.
	Driver string `json:"driver" mapstructure:"driver" yaml:"driver"`
	// DSN is the sqlite path, the postgres DSN or the mongo URI.
	DSN string `json:"dsn" mapstructure:"dsn" yaml:"dsn"`
	// Database names the mongo database.
	Database        string        `json:"database" mapstructure:"database" yaml:"database"`
	MaxOpenConns    int           `json:"max_open_conns" mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `json:"connect_timeout" mapstructure:"connect_timeout" yaml:"connect_timeout"`
	LogQueries      bool          `json:"log_queries" mapstructure:"log_queries" yaml:"log_queries"`
}

// RedisConfig enables the distributed ledger lock when Addr is set.
type RedisConfig struct {
	Addr     string        `json:"addr" mapstructure:"addr" yaml:"addr"`
	Password string        `json:"password" mapstructure:"password" yaml:"password"`
	DB       int           `json:"db" mapstructure:"db" yaml:"db"`
	LockTTL  time.Duration `json:"lock_ttl" mapstructure:"lock_ttl" yaml:"lock_ttl"`
}

// NATSConfig enables event publishing when URL is set.
type NATSConfig struct {
	natsbus.Config `mapstructure:",squash" yaml:",inline"`
	Prefix         string `json:"prefix" mapstructure:"prefix" yaml:"prefix"`
}

// Config is the full cocoad configuration.
type Config struct {
	Debug           bool         `json:"debug" mapstructure:"debug" yaml:"debug"`
	Currency        string       `json:"currency" mapstructure:"currency" yaml:"currency"`
	OperatorName    string       `json:"operator_name" mapstructure:"operator_name" yaml:"operator_name"`
	LenientFilters  bool         `json:"lenient_filters" mapstructure:"lenient_filters" yaml:"lenient_filters"`
	BagCapacityKg   string       `json:"bag_capacity_kg" mapstructure:"bag_capacity_kg" yaml:"bag_capacity_kg"`
	BatchCapacityKg string       `json:"batch_capacity_kg" mapstructure:"batch_capacity_kg" yaml:"batch_capacity_kg"`
	Server          ServerConfig `json:"server" mapstructure:"server" yaml:"server"`
	Store           StoreConfig  `json:"store" mapstructure:"store" yaml:"store"`
	Redis           RedisConfig  `json:"redis" mapstructure:"redis" yaml:"redis"`
	NATS            NATSConfig   `json:"nats" mapstructure:"nats" yaml:"nats"`
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("config: store.dsn is required for driver %q", c.Store.Driver)
		}
	case DriverMongo:
		if c.Store.DSN == "" || c.Store.Database == "" {
			return errors.New("config: store.dsn and store.database are required for driver \"mongo\"")
		}
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if _, err := capacity("bag_capacity_kg", c.BagCapacityKg); err != nil {
		return err
	}
	if _, err := capacity("batch_capacity_kg", c.BatchCapacityKg); err != nil {
		return err
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server.port %d", c.Server.Port)
	}
	return nil
}

// Load reads configFile (or config.yaml from the working directory and
// config/), the .env files under envPath and the environment, in
// increasing order of precedence. A missing config file is not an error.
func Load(configFile, envPath string) (*Config, error) {
	v := newViper(configFile, envPath)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.Store.Driver = strings.ToLower(cfg.Store.Driver)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func newViper(configFile, envPath string) *viper.Viper {
	v := viper.New()

	loadEnv(envPath)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("config/")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// setDefaults registers every key so AutomaticEnv can override keys that
// appear in no config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("currency", "ngn")
	v.SetDefault("operator_name", "EcoWise Enterprise")
	v.SetDefault("lenient_filters", false)
	v.SetDefault("bag_capacity_kg", "63")
	v.SetDefault("batch_capacity_kg", "60000")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "10s")
	v.SetDefault("server.write_timeout", "2m")
	v.SetDefault("server.idle_timeout", "2m")
	v.SetDefault("server.request_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "15s")

	v.SetDefault("store.driver", DriverMemory)
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.database", "cocoa")
	v.SetDefault("store.max_open_conns", 0)
	v.SetDefault("store.max_idle_conns", 0)
	v.SetDefault("store.conn_max_lifetime", "0s")
	v.SetDefault("store.connect_timeout", "30s")
	v.SetDefault("store.log_queries", false)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_ttl", "30s")

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.stream", "COCOA")
	v.SetDefault("nats.connection_name", "cocoad")
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.prefix", natsbus.DefaultPrefix)
}

// loadEnv loads envPath/.env then envPath/.env.local, the latter winning.
// Variables already set in the process are never overwritten.
func loadEnv(envPath string) {
	if envPath == "" {
		envPath = "."
	}
	local := filepath.Join(envPath, ".env.local")
	if _, err := os.Stat(local); err == nil {
		_ = godotenv.Load(local)
	}
	base := filepath.Join(envPath, ".env")
	if _, err := os.Stat(base); err == nil {
		_ = godotenv.Load(base)
	}
}

// capacity parses a kilogram setting. Empty means the ledger default.
func capacity(key, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	kg, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("config: %s: %w", key, err)
	}
	if !kg.IsPositive() {
		return decimal.Zero, fmt.Errorf("config: %s must be positive", key)
	}
	return kg, nil
}
