// Package plugin provides an extensible plugin system for the cocoa ledger.
// Plugins hook into supply-chain events to add metrics, auditing or
// outbound messaging without touching the engine.
package plugin

import (
	"context"

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

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the ledger starts. l is the *cocoa.Ledger.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, l any) error
}

// OnShutdown is called when the ledger stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Intake hooks
// ──────────────────────────────────────────────────

// OnFarmerRegistered is called after a farmer is created.
type OnFarmerRegistered interface {
	Plugin
	OnFarmerRegistered(ctx context.Context, f *farmer.Farmer) error
}

// OnSackDelivered is called after a sack and its debt mint are stored.
type OnSackDelivered interface {
	Plugin
	OnSackDelivered(ctx context.Context, s *sack.Sack, debt *token.Entry) error
}

// ──────────────────────────────────────────────────
// Aggregation hooks
// ──────────────────────────────────────────────────

// OnBagsPacked is called after one or more bags are created.
type OnBagsPacked interface {
	Plugin
	OnBagsPacked(ctx context.Context, bags []*bag.Bag) error
}

// OnBatchesCreated is called after one or more batches are created.
type OnBatchesCreated interface {
	Plugin
	OnBatchesCreated(ctx context.Context, batches []*batch.Batch) error
}

// OnWarrantIssued is called after a warrant receipt is stored.
type OnWarrantIssued interface {
	Plugin
	OnWarrantIssued(ctx context.Context, r *warrant.Receipt) error
}

// ──────────────────────────────────────────────────
// Financing hooks
// ──────────────────────────────────────────────────

// OnLenderRegistered is called after a lender is created.
type OnLenderRegistered interface {
	Plugin
	OnLenderRegistered(ctx context.Context, l *lender.Lender) error
}

// OnBundleCreated is called after a bundle is created.
type OnBundleCreated interface {
	Plugin
	OnBundleCreated(ctx context.Context, b *bundle.Bundle) error
}

// OnBundleFunded is called after a lender funds a bundle.
type OnBundleFunded interface {
	Plugin
	OnBundleFunded(ctx context.Context, b *bundle.Bundle, l *lender.Lender, amount types.Money) error
}

// ──────────────────────────────────────────────────
// Settlement hooks
// ──────────────────────────────────────────────────

// OnBatchSettled is called after each batch of an invoice commits.
type OnBatchSettled interface {
	Plugin
	OnBatchSettled(ctx context.Context, inv *invoice.Invoice, bs *invoice.BatchSettlement) error
}

// OnInvoiceSettled is called when every covered batch has been walked.
type OnInvoiceSettled interface {
	Plugin
	OnInvoiceSettled(ctx context.Context, inv *invoice.Invoice) error
}

// OnSettlementFailed is called when a batch of an invoice fails to commit.
type OnSettlementFailed interface {
	Plugin
	OnSettlementFailed(ctx context.Context, inv *invoice.Invoice, err error) error
}

// ──────────────────────────────────────────────────
// Token hooks
// ──────────────────────────────────────────────────

// OnTokensRecorded is called after token entries are appended.
type OnTokensRecorded interface {
	Plugin
	OnTokensRecorded(ctx context.Context, entries []*token.Entry) error
}

// OnTipRecorded is called after a tip and its mint are stored.
type OnTipRecorded interface {
	Plugin
	OnTipRecorded(ctx context.Context, t *tip.Tip) error
}
