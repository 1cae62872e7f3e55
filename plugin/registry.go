package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/cocoa/bag"
	"github.com/xraph/cocoa/batch"
	"github.com/xraph/cocoa/bundle"
	"github.com/xraph/cocoa/farmer"
	"github.com/xraph/cocoa/invoice"
	"github.com/xraph/cocoa/lender"
	"github.com/xraph/cocoa/sack"
	"github.com/xraph/cocoa/tip"
	"github.com/xraph/cocoa/token"
	"github.com/xraph/cocoa/types"
	"github.com/xraph/cocoa/warrant"
)

// DefaultTimeout bounds a single hook call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// Hook lists are cached per interface at registration time.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	onInit             []OnInit
	onShutdown         []OnShutdown
	onFarmerRegistered []OnFarmerRegistered
	onSackDelivered    []OnSackDelivered
	onBagsPacked       []OnBagsPacked
	onBatchesCreated   []OnBatchesCreated
	onWarrantIssued    []OnWarrantIssued
	onLenderRegistered []OnLenderRegistered
	onBundleCreated    []OnBundleCreated
	onBundleFunded     []OnBundleFunded
	onBatchSettled     []OnBatchSettled
	onInvoiceSettled   []OnInvoiceSettled
	onSettlementFailed []OnSettlementFailed
	onTokensRecorded   []OnTokensRecorded
	onTipRecorded      []OnTipRecorded
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	r.timeout = d
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	var hooks []string

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
		hooks = append(hooks, "OnInit")
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
		hooks = append(hooks, "OnShutdown")
	}
	if v, ok := p.(OnFarmerRegistered); ok {
		r.onFarmerRegistered = append(r.onFarmerRegistered, v)
		hooks = append(hooks, "OnFarmerRegistered")
	}
	if v, ok := p.(OnSackDelivered); ok {
		r.onSackDelivered = append(r.onSackDelivered, v)
		hooks = append(hooks, "OnSackDelivered")
	}
	if v, ok := p.(OnBagsPacked); ok {
		r.onBagsPacked = append(r.onBagsPacked, v)
		hooks = append(hooks, "OnBagsPacked")
	}
	if v, ok := p.(OnBatchesCreated); ok {
		r.onBatchesCreated = append(r.onBatchesCreated, v)
		hooks = append(hooks, "OnBatchesCreated")
	}
	if v, ok := p.(OnWarrantIssued); ok {
		r.onWarrantIssued = append(r.onWarrantIssued, v)
		hooks = append(hooks, "OnWarrantIssued")
	}
	if v, ok := p.(OnLenderRegistered); ok {
		r.onLenderRegistered = append(r.onLenderRegistered, v)
		hooks = append(hooks, "OnLenderRegistered")
	}
	if v, ok := p.(OnBundleCreated); ok {
		r.onBundleCreated = append(r.onBundleCreated, v)
		hooks = append(hooks, "OnBundleCreated")
	}
	if v, ok := p.(OnBundleFunded); ok {
		r.onBundleFunded = append(r.onBundleFunded, v)
		hooks = append(hooks, "OnBundleFunded")
	}
	if v, ok := p.(OnBatchSettled); ok {
		r.onBatchSettled = append(r.onBatchSettled, v)
		hooks = append(hooks, "OnBatchSettled")
	}
	if v, ok := p.(OnInvoiceSettled); ok {
		r.onInvoiceSettled = append(r.onInvoiceSettled, v)
		hooks = append(hooks, "OnInvoiceSettled")
	}
	if v, ok := p.(OnSettlementFailed); ok {
		r.onSettlementFailed = append(r.onSettlementFailed, v)
		hooks = append(hooks, "OnSettlementFailed")
	}
	if v, ok := p.(OnTokensRecorded); ok {
		r.onTokensRecorded = append(r.onTokensRecorded, v)
		hooks = append(hooks, "OnTokensRecorded")
	}
	if v, ok := p.(OnTipRecorded); ok {
		r.onTipRecorded = append(r.onTipRecorded, v)
		hooks = append(hooks, "OnTipRecorded")
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"hooks", hooks,
	)

	return nil
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// emit calls fn for every plugin in hooks. Failures are logged and never
// propagate back into the ledger.
func emit[T Plugin](ctx context.Context, r *Registry, hook string, hooks []T, fn func(T) error) {
	for _, p := range hooks {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return fn(p)
		}); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

func snapshot[T any](r *Registry, list *[]T) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return *list
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, l any) {
	emit(ctx, r, "OnInit", snapshot(r, &r.onInit), func(p OnInit) error {
		return p.OnInit(ctx, l)
	})
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	emit(ctx, r, "OnShutdown", snapshot(r, &r.onShutdown), func(p OnShutdown) error {
		return p.OnShutdown(ctx)
	})
}

// EmitFarmerRegistered emits a farmer registered event.
func (r *Registry) EmitFarmerRegistered(ctx context.Context, f *farmer.Farmer) {
	emit(ctx, r, "OnFarmerRegistered", snapshot(r, &r.onFarmerRegistered), func(p OnFarmerRegistered) error {
		return p.OnFarmerRegistered(ctx, f)
	})
}

// EmitSackDelivered emits a sack delivered event.
func (r *Registry) EmitSackDelivered(ctx context.Context, s *sack.Sack, debt *token.Entry) {
	emit(ctx, r, "OnSackDelivered", snapshot(r, &r.onSackDelivered), func(p OnSackDelivered) error {
		return p.OnSackDelivered(ctx, s, debt)
	})
}

// EmitBagsPacked emits a bags packed event.
func (r *Registry) EmitBagsPacked(ctx context.Context, bags []*bag.Bag) {
	emit(ctx, r, "OnBagsPacked", snapshot(r, &r.onBagsPacked), func(p OnBagsPacked) error {
		return p.OnBagsPacked(ctx, bags)
	})
}

// EmitBatchesCreated emits a batches created event.
func (r *Registry) EmitBatchesCreated(ctx context.Context, batches []*batch.Batch) {
	emit(ctx, r, "OnBatchesCreated", snapshot(r, &r.onBatchesCreated), func(p OnBatchesCreated) error {
		return p.OnBatchesCreated(ctx, batches)
	})
}

// EmitWarrantIssued emits a warrant issued event.
func (r *Registry) EmitWarrantIssued(ctx context.Context, rc *warrant.Receipt) {
	emit(ctx, r, "OnWarrantIssued", snapshot(r, &r.onWarrantIssued), func(p OnWarrantIssued) error {
		return p.OnWarrantIssued(ctx, rc)
	})
}

// EmitLenderRegistered emits a lender registered event.
func (r *Registry) EmitLenderRegistered(ctx context.Context, l *lender.Lender) {
	emit(ctx, r, "OnLenderRegistered", snapshot(r, &r.onLenderRegistered), func(p OnLenderRegistered) error {
		return p.OnLenderRegistered(ctx, l)
	})
}

// EmitBundleCreated emits a bundle created event.
func (r *Registry) EmitBundleCreated(ctx context.Context, b *bundle.Bundle) {
	emit(ctx, r, "OnBundleCreated", snapshot(r, &r.onBundleCreated), func(p OnBundleCreated) error {
		return p.OnBundleCreated(ctx, b)
	})
}

// EmitBundleFunded emits a bundle funded event.
func (r *Registry) EmitBundleFunded(ctx context.Context, b *bundle.Bundle, l *lender.Lender, amount types.Money) {
	emit(ctx, r, "OnBundleFunded", snapshot(r, &r.onBundleFunded), func(p OnBundleFunded) error {
		return p.OnBundleFunded(ctx, b, l, amount)
	})
}

// EmitBatchSettled emits a batch settled event.
func (r *Registry) EmitBatchSettled(ctx context.Context, inv *invoice.Invoice, bs *invoice.BatchSettlement) {
	emit(ctx, r, "OnBatchSettled", snapshot(r, &r.onBatchSettled), func(p OnBatchSettled) error {
		return p.OnBatchSettled(ctx, inv, bs)
	})
}

// EmitInvoiceSettled emits an invoice settled event.
func (r *Registry) EmitInvoiceSettled(ctx context.Context, inv *invoice.Invoice) {
	emit(ctx, r, "OnInvoiceSettled", snapshot(r, &r.onInvoiceSettled), func(p OnInvoiceSettled) error {
		return p.OnInvoiceSettled(ctx, inv)
	})
}

// EmitSettlementFailed emits a settlement failure event.
func (r *Registry) EmitSettlementFailed(ctx context.Context, inv *invoice.Invoice, cause error) {
	emit(ctx, r, "OnSettlementFailed", snapshot(r, &r.onSettlementFailed), func(p OnSettlementFailed) error {
		return p.OnSettlementFailed(ctx, inv, cause)
	})
}

// EmitTokensRecorded emits a tokens recorded event.
func (r *Registry) EmitTokensRecorded(ctx context.Context, entries []*token.Entry) {
	if len(entries) == 0 {
		return
	}
	emit(ctx, r, "OnTokensRecorded", snapshot(r, &r.onTokensRecorded), func(p OnTokensRecorded) error {
		return p.OnTokensRecorded(ctx, entries)
	})
}

// EmitTipRecorded emits a tip recorded event.
func (r *Registry) EmitTipRecorded(ctx context.Context, t *tip.Tip) {
	emit(ctx, r, "OnTipRecorded", snapshot(r, &r.onTipRecorded), func(p OnTipRecorded) error {
		return p.OnTipRecorded(ctx, t)
	})
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the ledger.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(r.timeout):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
