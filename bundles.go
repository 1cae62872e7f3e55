package cocoa

import (
	"context"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/xraph/cocoa/bundle"
	"github.com/xraph/cocoa/farmer"
	"github.com/xraph/cocoa/id"
	"github.com/xraph/cocoa/lender"
	"github.com/xraph/cocoa/sack"
	"github.com/xraph/cocoa/store"
	"github.com/xraph/cocoa/types"
	"github.com/xraph/cocoa/warrant"
)

// Eligible is the result of a bundle eligibility query.
type Eligible struct {
	Sacks []*sack.Sack `json:"sacks"`
	// Warnings lists filter problems ignored under lenient filtering.
	Warnings []string `json:"warnings,omitempty"`
}

// CreateBundleInput describes a new bundle.
type CreateBundleInput struct {
	Filter bundle.Filter `json:"filter"`
	// InterestRate is a percentage; 10 means 10%.
	InterestRate decimal.Decimal `json:"interest_rate"`
	SackIDs      []id.SackID     `json:"sack_ids"`
}

// BundleSummary reports a bundle's value and funding.
type BundleSummary struct {
	Bundle     *bundle.Bundle `json:"bundle"`
	TotalValue types.Money    `json:"total_value"`
	Funded     types.Money    `json:"funded"`
	// Status is the stored, event-driven status.
	Status bundle.Status `json:"status"`
	// Coverage is derived from Funded against TotalValue.
	Coverage  bundle.Status `json:"coverage"`
	SackCount int           `json:"sack_count"`
}

// EligibleSacks lists sacks that sit in a pre-processing warranted bag
// and belong to no bundle, narrowed by filter.
func (l *Ledger) EligibleSacks(ctx context.Context, filter bundle.Filter) (*Eligible, error) {
	filter, warnings, err := l.normalizeFilter(filter)
	if err != nil {
		return nil, err
	}
	sacks, err := l.eligibleSacks(ctx, l.store, filter)
	if err != nil {
		return nil, err
	}
	if len(sacks) == 0 {
		l.logger.Info("no sacks eligible for bundling", "filter", filter.String())
	}
	return &Eligible{Sacks: sacks, Warnings: warnings}, nil
}

// CreateBundle creates an unfunded bundle. Every sack must currently be
// eligible under the bundle's filter.
func (l *Ledger) CreateBundle(ctx context.Context, in CreateBundleInput) (*bundle.Bundle, error) {
	filter, _, err := l.normalizeFilter(in.Filter)
	if err != nil {
		return nil, err
	}
	if in.InterestRate.IsNegative() {
		return nil, ValidationError{Field: "interest_rate", Message: "must not be negative"}
	}
	sackIDs := dedupe(in.SackIDs)
	if len(sackIDs) == 0 {
		return nil, ValidationError{Field: "sack_ids", Message: "at least one sack is required"}
	}

	b := &bundle.Bundle{
		Entity:       l.stamp(),
		ID:           l.newID(id.PrefixBundle),
		Filter:       filter,
		InterestRate: in.InterestRate,
		Status:       bundle.StatusUnfunded,
		SackIDs:      sackIDs,
	}

	err = l.tx(ctx, func(ctx context.Context, tx store.Store) error {
		eligible, err := l.eligibleSacks(ctx, tx, filter)
		if err != nil {
			return err
		}
		ok := make(map[string]bool, len(eligible))
		for _, s := range eligible {
			ok[s.ID.String()] = true
		}
		for _, sackID := range sackIDs {
			if !ok[sackID.String()] {
				return fmt.Errorf("%w: %s", ErrSackNotEligible, sackID)
			}
		}
		return tx.CreateBundle(ctx, b)
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("bundle created",
		"bundle_id", b.ID.String(),
		"sacks", len(b.SackIDs),
		"interest_rate", b.InterestRate.String(),
		"filter", b.Filter.String(),
	)
	l.plugins.EmitBundleCreated(ctx, b)
	return b, nil
}

// FundBundle moves amount from a lender's position into a bundle. Funding
// by the same lender accumulates. The stored status becomes funded on any
// successful funding.
func (l *Ledger) FundBundle(ctx context.Context, lenderID id.LenderID, bundleID id.BundleID, amount types.Money) (*BundleSummary, error) {
	amount, err := l.positive("amount", amount)
	if err != nil {
		return nil, err
	}

	var (
		b  *bundle.Bundle
		ln *lender.Lender
	)
	err = l.tx(ctx, func(ctx context.Context, tx store.Store) error {
		var err error
		if ln, err = tx.GetLender(ctx, lenderID); err != nil {
			return err
		}
		if b, err = tx.GetBundle(ctx, bundleID); err != nil {
			return err
		}
		if b.Status == bundle.StatusPaid {
			return fmt.Errorf("%w: %s", ErrBundlePaid, bundleID)
		}
		if amount.GreaterThan(ln.Position) {
			return fmt.Errorf("%w: lender %s has %s, %s requested", ErrInsufficientPosition, lenderID, ln.Position, amount)
		}
		if err := tx.AddFunding(ctx, bundleID, bundle.Funding{LenderID: lenderID, Amount: amount, FundedAt: l.now().UTC()}); err != nil {
			return err
		}
		if err := tx.UpdateLenderPosition(ctx, lenderID, ln.Position.Subtract(amount)); err != nil {
			return err
		}
		if err := tx.UpdateBundleStatus(ctx, bundleID, bundle.StatusFunded); err != nil {
			return err
		}
		if ln, err = tx.GetLender(ctx, lenderID); err != nil {
			return err
		}
		b, err = tx.GetBundle(ctx, bundleID)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("bundle funded",
		"bundle_id", bundleID.String(),
		"lender_id", lenderID.String(),
		"amount", amount.String(),
		"position", ln.Position.String(),
	)
	l.plugins.EmitBundleFunded(ctx, b, ln, amount)
	return l.summarize(ctx, b)
}

// BundleSummary reports one bundle.
func (l *Ledger) BundleSummary(ctx context.Context, bundleID id.BundleID) (*BundleSummary, error) {
	b, err := l.store.GetBundle(ctx, bundleID)
	if err != nil {
		return nil, err
	}
	return l.summarize(ctx, b)
}

// ListBundleSummaries reports every bundle matching opts.
func (l *Ledger) ListBundleSummaries(ctx context.Context, opts bundle.ListOpts) ([]*BundleSummary, error) {
	bundles, err := l.store.ListBundles(ctx, opts)
	if err != nil {
		return nil, err
	}
	out := make([]*BundleSummary, 0, len(bundles))
	for _, b := range bundles {
		s, err := l.summarize(ctx, b)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// FundableBundles lists bundles that are neither paid nor fully covered.
func (l *Ledger) FundableBundles(ctx context.Context) ([]*BundleSummary, error) {
	all, err := l.ListBundleSummaries(ctx, bundle.ListOpts{})
	if err != nil {
		return nil, err
	}
	out := slices.DeleteFunc(all, func(s *BundleSummary) bool {
		return s.Status == bundle.StatusPaid || s.Coverage == bundle.StatusFunded
	})
	if len(out) == 0 {
		l.logger.Info("no fundable bundles")
	}
	return out, nil
}

func (l *Ledger) summarize(ctx context.Context, b *bundle.Bundle) (*BundleSummary, error) {
	sacks, err := l.store.ListSacks(ctx, sack.ListOpts{IDs: b.SackIDs})
	if err != nil {
		return nil, err
	}
	total := types.Zero(l.currency)
	for _, s := range sacks {
		total = total.Add(s.ValuePaid)
	}
	funded := b.Funded(l.currency)
	return &BundleSummary{
		Bundle:     b,
		TotalValue: total,
		Funded:     funded,
		Status:     b.Status,
		Coverage:   bundle.Coverage(total, funded),
		SackCount:  len(b.SackIDs),
	}, nil
}

// normalizeFilter rejects unknown filter keys, or drops them with a
// warning under lenient filtering.
func (l *Ledger) normalizeFilter(f bundle.Filter) (bundle.Filter, []string, error) {
	if f.Key.Valid() {
		if f.Key != bundle.FilterNone && f.Value == "" {
			return f, nil, fmt.Errorf("%w: %s requires a value", ErrInvalidFilter, f.Key)
		}
		return f, nil, nil
	}
	if !l.lenientFilters {
		return f, nil, fmt.Errorf("%w: unsupported key %q", ErrInvalidFilter, f.Key)
	}
	msg := fmt.Sprintf("unsupported filter key %q ignored", f.Key)
	l.logger.Warn("ignoring bundle filter", "key", string(f.Key), "value", f.Value)
	return bundle.Filter{}, []string{msg}, nil
}

func (l *Ledger) eligibleSacks(ctx context.Context, st store.Store, filter bundle.Filter) ([]*sack.Sack, error) {
	receipts, err := st.ListWarrants(ctx, warrant.ListOpts{Type: warrant.TypePreProcessing})
	if err != nil {
		return nil, err
	}
	var bagIDs []id.BagID
	for _, r := range receipts {
		bagIDs = append(bagIDs, r.CoveredIDs...)
	}
	if len(bagIDs) == 0 {
		return []*sack.Sack{}, nil
	}

	r := newResolver(st)
	bags, err := r.bags(ctx, bagIDs)
	if err != nil {
		return nil, err
	}
	candidates := make(map[string]bool)
	var candidateIDs []id.SackID
	for _, b := range bags {
		for _, a := range b.Allocations {
			if !candidates[a.SackID.String()] {
				candidates[a.SackID.String()] = true
				candidateIDs = append(candidateIDs, a.SackID)
			}
		}
	}

	if len(candidateIDs) == 0 {
		return []*sack.Sack{}, nil
	}

	bundled, err := st.ListBundles(ctx, bundle.ListOpts{SackIDs: candidateIDs})
	if err != nil {
		return nil, err
	}
	for _, b := range bundled {
		for _, sackID := range b.SackIDs {
			delete(candidates, sackID.String())
		}
	}

	sacks, err := st.ListSacks(ctx, sack.ListOpts{IDs: candidateIDs})
	if err != nil {
		return nil, err
	}

	var owners map[string]bool
	if !filter.IsZero() {
		farmers, err := st.ListFarmers(ctx, farmerFilter(filter))
		if err != nil {
			return nil, err
		}
		owners = make(map[string]bool, len(farmers))
		for _, f := range farmers {
			owners[f.ID.String()] = true
		}
	}

	out := make([]*sack.Sack, 0, len(sacks))
	for _, s := range sacks {
		if !candidates[s.ID.String()] {
			continue
		}
		if owners != nil && !owners[s.FarmerID.String()] {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func farmerFilter(f bundle.Filter) farmer.ListOpts {
	switch f.Key {
	case bundle.FilterCountry:
		return farmer.ListOpts{Country: f.Value}
	case bundle.FilterCity:
		return farmer.ListOpts{City: f.Value}
	case bundle.FilterGender:
		return farmer.ListOpts{Gender: f.Value}
	case bundle.FilterName:
		return farmer.ListOpts{NameContains: f.Value}
	}
	return farmer.ListOpts{}
}
