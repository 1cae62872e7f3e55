package store

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/xraph/cocoa/bag"
	"github.com/xraph/cocoa/batch"
	"github.com/xraph/cocoa/bundle"
	"github.com/xraph/cocoa/farmer"
	"github.com/xraph/cocoa/id"
	"github.com/xraph/cocoa/invoice"
	"github.com/xraph/cocoa/lender"
	"github.com/xraph/cocoa/sack"
	"github.com/xraph/cocoa/tip"
	"github.com/xraph/cocoa/token"
	"github.com/xraph/cocoa/types"
	"github.com/xraph/cocoa/warrant"
)

// TxFunc runs inside a transaction. It must use tx, not the outer store.
type TxFunc func(ctx context.Context, tx Store) error

// Store is the unified storage interface for all cocoa entities.
// Methods are declared explicitly rather than embedded per entity so
// names stay unambiguous.
//
// Lookups that miss return the entity's not-found sentinel from the root
// package. Listings return oldest first unless noted.
type Store interface {
	// Farmer methods
	CreateFarmer(ctx context.Context, f *farmer.Farmer) error
	GetFarmer(ctx context.Context, farmerID id.FarmerID) (*farmer.Farmer, error)
	GetOperator(ctx context.Context) (*farmer.Farmer, error)
	ListFarmers(ctx context.Context, opts farmer.ListOpts) ([]*farmer.Farmer, error)

	// Sack methods
	CreateSack(ctx context.Context, s *sack.Sack) error
	GetSack(ctx context.Context, sackID id.SackID) (*sack.Sack, error)
	ListSacks(ctx context.Context, opts sack.ListOpts) ([]*sack.Sack, error)
	// AllocatedWeights sums bag allocations per sack id string. An empty
	// sackIDs covers every sack with at least one allocation.
	AllocatedWeights(ctx context.Context, sackIDs []id.SackID) (map[string]decimal.Decimal, error)

	// Bag methods
	CreateBag(ctx context.Context, b *bag.Bag) error
	GetBag(ctx context.Context, bagID id.BagID) (*bag.Bag, error)
	ListBags(ctx context.Context, opts bag.ListOpts) ([]*bag.Bag, error)

	// Batch methods. A bag joins at most one batch.
	CreateBatch(ctx context.Context, b *batch.Batch) error
	GetBatch(ctx context.Context, batchID id.BatchID) (*batch.Batch, error)
	ListBatches(ctx context.Context, opts batch.ListOpts) ([]*batch.Batch, error)

	// Warrant methods. An id is covered by at most one receipt per type.
	CreateWarrant(ctx context.Context, r *warrant.Receipt) error
	GetWarrant(ctx context.Context, warrantID id.WarrantID) (*warrant.Receipt, error)
	ListWarrants(ctx context.Context, opts warrant.ListOpts) ([]*warrant.Receipt, error)

	// Lender methods. Wallet addresses are unique.
	CreateLender(ctx context.Context, l *lender.Lender) error
	GetLender(ctx context.Context, lenderID id.LenderID) (*lender.Lender, error)
	ListLenders(ctx context.Context, opts lender.ListOpts) ([]*lender.Lender, error)
	UpdateLenderPosition(ctx context.Context, lenderID id.LenderID, position types.Money) error

	// Bundle methods. A sack joins at most one bundle.
	CreateBundle(ctx context.Context, b *bundle.Bundle) error
	GetBundle(ctx context.Context, bundleID id.BundleID) (*bundle.Bundle, error)
	ListBundles(ctx context.Context, opts bundle.ListOpts) ([]*bundle.Bundle, error)
	// AddFunding accumulates f into the (bundle, lender) funding row.
	AddFunding(ctx context.Context, bundleID id.BundleID, f bundle.Funding) error
	UpdateBundleStatus(ctx context.Context, bundleID id.BundleID, status bundle.Status) error

	// Token methods. The token ledger is append-only.
	AppendTokens(ctx context.Context, entries ...*token.Entry) error
	ListTokens(ctx context.Context, opts token.ListOpts) ([]*token.Entry, error)
	// Balances sums a farmer's entries per kind. Kinds without entries
	// are absent.
	Balances(ctx context.Context, farmerID id.FarmerID) (map[token.Kind]types.Money, error)

	// Tip methods
	CreateTip(ctx context.Context, t *tip.Tip) error
	ListTips(ctx context.Context, opts tip.ListOpts) ([]*tip.Tip, error)

	// Invoice methods
	CreateInvoice(ctx context.Context, inv *invoice.Invoice) error
	GetInvoice(ctx context.Context, invoiceID id.InvoiceID) (*invoice.Invoice, error)
	ListInvoices(ctx context.Context, opts invoice.ListOpts) ([]*invoice.Invoice, error)
	UpdateInvoice(ctx context.Context, inv *invoice.Invoice) error

	// Core methods
	Tx(ctx context.Context, fn TxFunc) error
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
