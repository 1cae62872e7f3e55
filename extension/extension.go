// Package extension provides the Forge extension adapter for the cocoa
// ledger.
//
// It implements the forge.Extension interface to integrate the ledger
// into a Forge application with DI registration and lifecycle management.
// The ledger and, unless routes are disabled, its *api.Handler are
// provided through the container for the host to mount.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.cocoa" or "cocoa" keys.
package extension

import (
	"context"
	"errors"
	"log/slog"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/cocoa"
	"github.com/xraph/cocoa/api"
	"github.com/xraph/cocoa/config"
	"github.com/xraph/cocoa/store"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "cocoa"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Cocoa supply-chain traceability and financing ledger"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the cocoa ledger as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *cocoa.Ledger
	handler    *api.Handler
	store      store.Store
	runtime    *config.Runtime
	ledgerOpts []cocoa.Option
	logger     *slog.Logger
}

// New creates a new cocoa Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying ledger.
// This is nil until Register is called.
func (e *Extension) Engine() *cocoa.Ledger { return e.engine }

// Handler returns the HTTP handler, or nil when routes are disabled.
func (e *Extension) Handler() *api.Handler { return e.handler }

// BasePath is the resolved URL prefix for the handler.
func (e *Extension) BasePath() string { return e.config.BasePath }

// Register implements [forge.Extension]. It loads configuration,
// connects the store, lock and event bus, and registers the ledger in the
// DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	ctx := context.Background()
	rc := e.config.runtimeConfig()
	rt, err := config.Wire(ctx, rc, e.logger)
	if err != nil {
		return err
	}
	e.runtime = rt

	// Connect the configured store if none was provided programmatically.
	if e.store == nil {
		e.store, err = config.OpenStore(ctx, rc.Store, e.logger)
		if err != nil {
			return errors.Join(err, rt.Close())
		}
	}

	opts := make([]cocoa.Option, 0, len(rt.Options)+len(e.ledgerOpts))
	opts = append(opts, rt.Options...)
	opts = append(opts, e.ledgerOpts...)
	e.engine = cocoa.New(e.store, opts...)

	if err := vessel.Provide(fapp.Container(), func() (*cocoa.Ledger, error) {
		return e.engine, nil
	}); err != nil {
		return err
	}

	if e.config.DisableRoutes {
		return nil
	}
	e.handler = api.New(e.engine, api.WithLogger(e.logger), api.WithTimeout(e.config.RequestTimeout))
	return vessel.Provide(fapp.Container(), func() (*api.Handler, error) {
		return e.handler, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("cocoa: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	var errs []error
	if e.engine != nil {
		errs = append(errs, e.engine.Stop())
	}
	if e.runtime != nil {
		errs = append(errs, e.runtime.Close())
	}
	e.MarkStopped()
	return errors.Join(errs...)
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("cocoa: store not initialized")
	}
	return e.store.Ping(ctx)
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("cocoa: configuration is required but not found in config files; " +
				"ensure 'extensions.cocoa' or 'cocoa' key exists in your config")
		}
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("cocoa: configuration loaded",
		forge.F("disable_routes", e.config.DisableRoutes),
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("base_path", e.config.BasePath),
		forge.F("currency", e.config.Currency),
		forge.F("store_driver", e.config.Store.Driver),
		forge.F("redis_lock", e.config.Redis.Addr != ""),
		forge.F("nats", e.config.NATS.URL != ""),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.cocoa", "cocoa"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("cocoa: loaded config from file", forge.F("key", key))
			return cfg, true
		}
		e.Logger().Warn("cocoa: failed to bind config", forge.F("key", key))
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.BasePath == "" {
		cfg.BasePath = defaults.BasePath
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = defaults.RequestTimeout
	}
	if cfg.Currency == "" {
		cfg.Currency = defaults.Currency
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = defaults.Store.Driver
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableRoutes {
		yamlConfig.DisableRoutes = true
	}
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.LenientFilters {
		yamlConfig.LenientFilters = true
	}

	if yamlConfig.BasePath == "" {
		yamlConfig.BasePath = programmaticConfig.BasePath
	}
	if yamlConfig.Currency == "" {
		yamlConfig.Currency = programmaticConfig.Currency
	}
	if yamlConfig.OperatorName == "" {
		yamlConfig.OperatorName = programmaticConfig.OperatorName
	}
	if yamlConfig.RequestTimeout == 0 {
		yamlConfig.RequestTimeout = programmaticConfig.RequestTimeout
	}
	if yamlConfig.Store.Driver == "" {
		yamlConfig.Store = programmaticConfig.Store
	}
	if yamlConfig.Redis.Addr == "" {
		yamlConfig.Redis = programmaticConfig.Redis
	}
	if yamlConfig.NATS.URL == "" {
		yamlConfig.NATS = programmaticConfig.NATS
	}

	return mergeWithDefaults(yamlConfig)
}
