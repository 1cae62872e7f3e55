// Package memory is an in-process store.Store for tests and single-node
// deployments. Transactions snapshot the whole state and swap it back on
// success.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/cocoa"
	"github.com/xraph/cocoa/bag"
	"github.com/xraph/cocoa/batch"
	"github.com/xraph/cocoa/bundle"
	"github.com/xraph/cocoa/farmer"
	"github.com/xraph/cocoa/id"
	"github.com/xraph/cocoa/invoice"
	"github.com/xraph/cocoa/lender"
	"github.com/xraph/cocoa/sack"
	"github.com/xraph/cocoa/store"
	"github.com/xraph/cocoa/tip"
	"github.com/xraph/cocoa/token"
	"github.com/xraph/cocoa/types"
	"github.com/xraph/cocoa/warrant"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex
	// txMu serialises writers so a committing transaction never
	// overwrites a concurrent write.
	txMu sync.Mutex
	inTx bool
	data *state
}

type state struct {
	farmers    map[string]*farmer.Farmer
	sacks      map[string]*sack.Sack
	bags       map[string]*bag.Bag
	batches    map[string]*batch.Batch
	batchOfBag map[string]string

	warrants map[string]*warrant.Receipt
	// covered maps a covered id to its receipt, per receipt type.
	covered map[warrant.Type]map[string]string

	lenders      map[string]*lender.Lender
	bundles      map[string]*bundle.Bundle
	bundleOfSack map[string]string

	tokens   []*token.Entry
	tips     map[string]*tip.Tip
	invoices map[string]*invoice.Invoice
}

func New() *Store {
	return &Store{data: &state{
		farmers:      make(map[string]*farmer.Farmer),
		sacks:        make(map[string]*sack.Sack),
		bags:         make(map[string]*bag.Bag),
		batches:      make(map[string]*batch.Batch),
		batchOfBag:   make(map[string]string),
		warrants:     make(map[string]*warrant.Receipt),
		covered:      make(map[warrant.Type]map[string]string),
		lenders:      make(map[string]*lender.Lender),
		bundles:      make(map[string]*bundle.Bundle),
		bundleOfSack: make(map[string]string),
		tips:         make(map[string]*tip.Tip),
		invoices:     make(map[string]*invoice.Invoice),
	}}
}

func (s *Store) write(fn func(d *state) error) error {
	if !s.inTx {
		s.txMu.Lock()
		defer s.txMu.Unlock()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

func (s *Store) read() (*state, func()) {
	s.mu.RLock()
	return s.data, s.mu.RUnlock
}

// Farmer Store implementation
func (s *Store) CreateFarmer(_ context.Context, f *farmer.Farmer) error {
	return s.write(func(d *state) error {
		if _, exists := d.farmers[f.ID.String()]; exists {
			return cocoa.ErrAlreadyExists
		}
		if f.Operator {
			for _, existing := range d.farmers {
				if existing.Operator {
					return fmt.Errorf("operator farmer: %w", cocoa.ErrAlreadyExists)
				}
			}
		}
		d.farmers[f.ID.String()] = cloneFarmer(f)
		return nil
	})
}

func (s *Store) GetFarmer(_ context.Context, farmerID id.FarmerID) (*farmer.Farmer, error) {
	d, done := s.read()
	defer done()

	if f, ok := d.farmers[farmerID.String()]; ok {
		return cloneFarmer(f), nil
	}
	return nil, cocoa.ErrFarmerNotFound
}

func (s *Store) GetOperator(_ context.Context) (*farmer.Farmer, error) {
	d, done := s.read()
	defer done()

	for _, f := range d.farmers {
		if f.Operator {
			return cloneFarmer(f), nil
		}
	}
	return nil, cocoa.ErrFarmerNotFound
}

func (s *Store) ListFarmers(_ context.Context, opts farmer.ListOpts) ([]*farmer.Farmer, error) {
	d, done := s.read()
	defer done()

	result := make([]*farmer.Farmer, 0)
	for _, f := range d.farmers {
		if opts.Matches(f) {
			result = append(result, cloneFarmer(f))
		}
	}
	sortByCreated(result, func(f *farmer.Farmer) (time.Time, string) { return f.CreatedAt, f.ID.String() })
	return page(result, opts.Limit, opts.Offset), nil
}

// Sack Store implementation
func (s *Store) CreateSack(_ context.Context, sk *sack.Sack) error {
	return s.write(func(d *state) error {
		if _, exists := d.sacks[sk.ID.String()]; exists {
			return cocoa.ErrAlreadyExists
		}
		d.sacks[sk.ID.String()] = cloneSack(sk)
		return nil
	})
}

func (s *Store) GetSack(_ context.Context, sackID id.SackID) (*sack.Sack, error) {
	d, done := s.read()
	defer done()

	if sk, ok := d.sacks[sackID.String()]; ok {
		return cloneSack(sk), nil
	}
	return nil, cocoa.ErrSackNotFound
}

func (s *Store) ListSacks(_ context.Context, opts sack.ListOpts) ([]*sack.Sack, error) {
	d, done := s.read()
	defer done()

	ids := idSet(opts.IDs)
	result := make([]*sack.Sack, 0)
	for _, sk := range d.sacks {
		if !opts.FarmerID.IsNil() && sk.FarmerID.String() != opts.FarmerID.String() {
			continue
		}
		if ids != nil && !ids[sk.ID.String()] {
			continue
		}
		result = append(result, cloneSack(sk))
	}
	sortByCreated(result, func(sk *sack.Sack) (time.Time, string) { return sk.DeliveredAt, sk.ID.String() })
	return page(result, opts.Limit, opts.Offset), nil
}

func (s *Store) AllocatedWeights(_ context.Context, sackIDs []id.SackID) (map[string]decimal.Decimal, error) {
	d, done := s.read()
	defer done()

	want := idSet(sackIDs)
	out := make(map[string]decimal.Decimal)
	for _, b := range d.bags {
		for _, a := range b.Allocations {
			k := a.SackID.String()
			if want != nil && !want[k] {
				continue
			}
			out[k] = out[k].Add(a.WeightKg)
		}
	}
	return out, nil
}

// Bag Store implementation
func (s *Store) CreateBag(_ context.Context, b *bag.Bag) error {
	return s.write(func(d *state) error {
		if _, exists := d.bags[b.ID.String()]; exists {
			return cocoa.ErrAlreadyExists
		}
		d.bags[b.ID.String()] = cloneBag(b)
		return nil
	})
}

func (s *Store) GetBag(_ context.Context, bagID id.BagID) (*bag.Bag, error) {
	d, done := s.read()
	defer done()

	if b, ok := d.bags[bagID.String()]; ok {
		return cloneBag(b), nil
	}
	return nil, cocoa.ErrBagNotFound
}

func (s *Store) ListBags(_ context.Context, opts bag.ListOpts) ([]*bag.Bag, error) {
	d, done := s.read()
	defer done()

	ids := idSet(opts.IDs)
	result := make([]*bag.Bag, 0)
	for k, b := range d.bags {
		if ids != nil && !ids[k] {
			continue
		}
		if !opts.SackID.IsNil() && !b.Contains(opts.SackID) {
			continue
		}
		if _, batched := d.batchOfBag[k]; opts.Unbatched && batched {
			continue
		}
		result = append(result, cloneBag(b))
	}
	sortByCreated(result, func(b *bag.Bag) (time.Time, string) { return b.CreatedAt, b.ID.String() })
	return page(result, opts.Limit, opts.Offset), nil
}

// Batch Store implementation
func (s *Store) CreateBatch(_ context.Context, b *batch.Batch) error {
	return s.write(func(d *state) error {
		if _, exists := d.batches[b.ID.String()]; exists {
			return cocoa.ErrAlreadyExists
		}
		for _, bagID := range b.BagIDs {
			if _, ok := d.bags[bagID.String()]; !ok {
				return fmt.Errorf("%w: %s", cocoa.ErrBagNotFound, bagID)
			}
			if _, batched := d.batchOfBag[bagID.String()]; batched {
				return fmt.Errorf("%w: %s", cocoa.ErrBagAlreadyBatched, bagID)
			}
		}
		d.batches[b.ID.String()] = cloneBatch(b)
		for _, bagID := range b.BagIDs {
			d.batchOfBag[bagID.String()] = b.ID.String()
		}
		return nil
	})
}

func (s *Store) GetBatch(_ context.Context, batchID id.BatchID) (*batch.Batch, error) {
	d, done := s.read()
	defer done()

	if b, ok := d.batches[batchID.String()]; ok {
		return cloneBatch(b), nil
	}
	return nil, cocoa.ErrBatchNotFound
}

func (s *Store) ListBatches(_ context.Context, opts batch.ListOpts) ([]*batch.Batch, error) {
	d, done := s.read()
	defer done()

	ids := idSet(opts.IDs)
	result := make([]*batch.Batch, 0)
	for k, b := range d.batches {
		if ids != nil && !ids[k] {
			continue
		}
		if !opts.BagID.IsNil() && d.batchOfBag[opts.BagID.String()] != k {
			continue
		}
		result = append(result, cloneBatch(b))
	}
	sortByCreated(result, func(b *batch.Batch) (time.Time, string) { return b.CreatedAt, b.ID.String() })
	return page(result, opts.Limit, opts.Offset), nil
}

// Warrant Store implementation
func (s *Store) CreateWarrant(_ context.Context, r *warrant.Receipt) error {
	return s.write(func(d *state) error {
		if _, exists := d.warrants[r.ID.String()]; exists {
			return cocoa.ErrAlreadyExists
		}
		covered := d.covered[r.Type]
		if covered == nil {
			covered = make(map[string]string)
			d.covered[r.Type] = covered
		}
		for _, c := range r.CoveredIDs {
			if _, taken := covered[c.String()]; taken {
				return fmt.Errorf("%w: %s", cocoa.ErrAlreadyCovered, c)
			}
		}
		d.warrants[r.ID.String()] = cloneWarrant(r)
		for _, c := range r.CoveredIDs {
			covered[c.String()] = r.ID.String()
		}
		return nil
	})
}

func (s *Store) GetWarrant(_ context.Context, warrantID id.WarrantID) (*warrant.Receipt, error) {
	d, done := s.read()
	defer done()

	if r, ok := d.warrants[warrantID.String()]; ok {
		return cloneWarrant(r), nil
	}
	return nil, cocoa.ErrWarrantNotFound
}

func (s *Store) ListWarrants(_ context.Context, opts warrant.ListOpts) ([]*warrant.Receipt, error) {
	d, done := s.read()
	defer done()

	result := make([]*warrant.Receipt, 0)
	for _, r := range d.warrants {
		if opts.Type == "" || r.Type == opts.Type {
			result = append(result, cloneWarrant(r))
		}
	}
	sortByCreated(result, func(r *warrant.Receipt) (time.Time, string) { return r.CreatedAt, r.ID.String() })
	return page(result, opts.Limit, opts.Offset), nil
}

// Lender Store implementation
func (s *Store) CreateLender(_ context.Context, l *lender.Lender) error {
	return s.write(func(d *state) error {
		if _, exists := d.lenders[l.ID.String()]; exists {
			return cocoa.ErrAlreadyExists
		}
		for _, existing := range d.lenders {
			if strings.EqualFold(existing.WalletAddress, l.WalletAddress) {
				return fmt.Errorf("wallet %s: %w", l.WalletAddress, cocoa.ErrAlreadyExists)
			}
		}
		d.lenders[l.ID.String()] = cloneLender(l)
		return nil
	})
}

func (s *Store) GetLender(_ context.Context, lenderID id.LenderID) (*lender.Lender, error) {
	d, done := s.read()
	defer done()

	if l, ok := d.lenders[lenderID.String()]; ok {
		return cloneLender(l), nil
	}
	return nil, cocoa.ErrLenderNotFound
}

func (s *Store) ListLenders(_ context.Context, opts lender.ListOpts) ([]*lender.Lender, error) {
	d, done := s.read()
	defer done()

	result := make([]*lender.Lender, 0)
	for _, l := range d.lenders {
		if opts.WalletAddress == "" || strings.EqualFold(l.WalletAddress, opts.WalletAddress) {
			result = append(result, cloneLender(l))
		}
	}
	sortByCreated(result, func(l *lender.Lender) (time.Time, string) { return l.CreatedAt, l.ID.String() })
	return page(result, opts.Limit, opts.Offset), nil
}

func (s *Store) UpdateLenderPosition(_ context.Context, lenderID id.LenderID, position types.Money) error {
	return s.write(func(d *state) error {
		l, ok := d.lenders[lenderID.String()]
		if !ok {
			return cocoa.ErrLenderNotFound
		}
		c := cloneLender(l)
		c.Position = position
		c.UpdatedAt = time.Now().UTC()
		d.lenders[lenderID.String()] = c
		return nil
	})
}

// Bundle Store implementation
func (s *Store) CreateBundle(_ context.Context, b *bundle.Bundle) error {
	return s.write(func(d *state) error {
		if _, exists := d.bundles[b.ID.String()]; exists {
			return cocoa.ErrAlreadyExists
		}
		for _, sackID := range b.SackIDs {
			if _, taken := d.bundleOfSack[sackID.String()]; taken {
				return fmt.Errorf("%w: %s already bundled", cocoa.ErrSackNotEligible, sackID)
			}
		}
		d.bundles[b.ID.String()] = cloneBundle(b)
		for _, sackID := range b.SackIDs {
			d.bundleOfSack[sackID.String()] = b.ID.String()
		}
		return nil
	})
}

func (s *Store) GetBundle(_ context.Context, bundleID id.BundleID) (*bundle.Bundle, error) {
	d, done := s.read()
	defer done()

	if b, ok := d.bundles[bundleID.String()]; ok {
		return cloneBundle(b), nil
	}
	return nil, cocoa.ErrBundleNotFound
}

func (s *Store) ListBundles(_ context.Context, opts bundle.ListOpts) ([]*bundle.Bundle, error) {
	d, done := s.read()
	defer done()

	var want map[string]bool
	if len(opts.SackIDs) > 0 {
		want = make(map[string]bool)
		for _, sackID := range opts.SackIDs {
			if bid, ok := d.bundleOfSack[sackID.String()]; ok {
				want[bid] = true
			}
		}
	}
	result := make([]*bundle.Bundle, 0)
	for k, b := range d.bundles {
		if want != nil && !want[k] {
			continue
		}
		if opts.Status != "" && b.Status != opts.Status {
			continue
		}
		result = append(result, cloneBundle(b))
	}
	sortByCreated(result, func(b *bundle.Bundle) (time.Time, string) { return b.CreatedAt, b.ID.String() })
	return page(result, opts.Limit, opts.Offset), nil
}

func (s *Store) AddFunding(_ context.Context, bundleID id.BundleID, f bundle.Funding) error {
	return s.write(func(d *state) error {
		b, ok := d.bundles[bundleID.String()]
		if !ok {
			return cocoa.ErrBundleNotFound
		}
		c := cloneBundle(b)
		merged := false
		for i := range c.Fundings {
			if c.Fundings[i].LenderID.String() == f.LenderID.String() {
				c.Fundings[i].Amount = c.Fundings[i].Amount.Add(f.Amount)
				c.Fundings[i].FundedAt = f.FundedAt
				merged = true
				break
			}
		}
		if !merged {
			c.Fundings = append(c.Fundings, f)
		}
		c.UpdatedAt = time.Now().UTC()
		d.bundles[bundleID.String()] = c
		return nil
	})
}

func (s *Store) UpdateBundleStatus(_ context.Context, bundleID id.BundleID, status bundle.Status) error {
	return s.write(func(d *state) error {
		b, ok := d.bundles[bundleID.String()]
		if !ok {
			return cocoa.ErrBundleNotFound
		}
		c := cloneBundle(b)
		c.Status = status
		c.UpdatedAt = time.Now().UTC()
		d.bundles[bundleID.String()] = c
		return nil
	})
}

// Token Store implementation
func (s *Store) AppendTokens(_ context.Context, entries ...*token.Entry) error {
	return s.write(func(d *state) error {
		for _, e := range entries {
			d.tokens = append(d.tokens, cloneToken(e))
		}
		return nil
	})
}

func (s *Store) ListTokens(_ context.Context, opts token.ListOpts) ([]*token.Entry, error) {
	d, done := s.read()
	defer done()

	result := make([]*token.Entry, 0)
	for _, e := range d.tokens {
		if !opts.FarmerID.IsNil() && e.FarmerID.String() != opts.FarmerID.String() {
			continue
		}
		if opts.Kind != "" && e.Kind != opts.Kind {
			continue
		}
		result = append(result, cloneToken(e))
	}
	return page(result, opts.Limit, opts.Offset), nil
}

func (s *Store) Balances(_ context.Context, farmerID id.FarmerID) (map[token.Kind]types.Money, error) {
	d, done := s.read()
	defer done()

	out := make(map[token.Kind]types.Money)
	for _, e := range d.tokens {
		if e.FarmerID.String() != farmerID.String() {
			continue
		}
		if cur, ok := out[e.Kind]; ok {
			out[e.Kind] = cur.Add(e.Amount)
		} else {
			out[e.Kind] = e.Amount
		}
	}
	return out, nil
}

// Tip Store implementation
func (s *Store) CreateTip(_ context.Context, t *tip.Tip) error {
	return s.write(func(d *state) error {
		if _, exists := d.tips[t.ID.String()]; exists {
			return cocoa.ErrAlreadyExists
		}
		d.tips[t.ID.String()] = cloneTip(t)
		return nil
	})
}

func (s *Store) ListTips(_ context.Context, opts tip.ListOpts) ([]*tip.Tip, error) {
	d, done := s.read()
	defer done()

	result := make([]*tip.Tip, 0)
	for _, t := range d.tips {
		if opts.FarmerID.IsNil() || t.FarmerID.String() == opts.FarmerID.String() {
			result = append(result, cloneTip(t))
		}
	}
	sortByCreated(result, func(t *tip.Tip) (time.Time, string) { return t.CreatedAt, t.ID.String() })
	return page(result, opts.Limit, opts.Offset), nil
}

// Invoice Store implementation
func (s *Store) CreateInvoice(_ context.Context, inv *invoice.Invoice) error {
	return s.write(func(d *state) error {
		if _, exists := d.invoices[inv.ID.String()]; exists {
			return cocoa.ErrAlreadyExists
		}
		d.invoices[inv.ID.String()] = cloneInvoice(inv)
		return nil
	})
}

func (s *Store) GetInvoice(_ context.Context, invoiceID id.InvoiceID) (*invoice.Invoice, error) {
	d, done := s.read()
	defer done()

	if inv, ok := d.invoices[invoiceID.String()]; ok {
		return cloneInvoice(inv), nil
	}
	return nil, cocoa.ErrInvoiceNotFound
}

func (s *Store) ListInvoices(_ context.Context, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	d, done := s.read()
	defer done()

	result := make([]*invoice.Invoice, 0)
	for _, inv := range d.invoices {
		if opts.Status == "" || inv.Status == opts.Status {
			result = append(result, cloneInvoice(inv))
		}
	}
	sortByCreated(result, func(inv *invoice.Invoice) (time.Time, string) { return inv.CreatedAt, inv.ID.String() })
	return page(result, opts.Limit, opts.Offset), nil
}

func (s *Store) UpdateInvoice(_ context.Context, inv *invoice.Invoice) error {
	return s.write(func(d *state) error {
		if _, exists := d.invoices[inv.ID.String()]; !exists {
			return cocoa.ErrInvoiceNotFound
		}
		d.invoices[inv.ID.String()] = cloneInvoice(inv)
		return nil
	})
}

// Tx runs fn against a snapshot and publishes it only if fn succeeds.
func (s *Store) Tx(ctx context.Context, fn store.TxFunc) error {
	if s.inTx {
		return fn(ctx, s)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	tx := &Store{inTx: true, data: snapshot}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = tx.data
	s.mu.Unlock()
	return nil
}

func (s *Store) Migrate(_ context.Context) error {
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	return nil
}

func (s *Store) Close() error {
	return nil
}

func idSet(ids []id.ID) map[string]bool {
	if len(ids) == 0 {
		return nil
	}
	out := make(map[string]bool, len(ids))
	for _, i := range ids {
		out[i.String()] = true
	}
	return out
}

func sortByCreated[T any](items []*T, key func(*T) (time.Time, string)) {
	slices.SortStableFunc(items, func(a, b *T) int {
		ta, ia := key(a)
		tb, ib := key(b)
		if c := ta.Compare(tb); c != 0 {
			return c
		}
		return strings.Compare(ia, ib)
	})
}

func page[T any](items []T, limit, offset int) []T {
	start := offset
	if start > len(items) {
		start = len(items)
	}
	end := start + limit
	if limit == 0 || end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
