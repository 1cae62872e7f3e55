package cocoa

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xraph/cocoa/bag"
	"github.com/xraph/cocoa/batch"
	"github.com/xraph/cocoa/id"
	"github.com/xraph/cocoa/store"
	"github.com/xraph/cocoa/types"
	"github.com/xraph/cocoa/valuation"
	"github.com/xraph/cocoa/warrant"
)

// IssueWarrant pledges bags (pre-processing) or batches (post-processing)
// under a new receipt. Repeated ids are collapsed in first-seen order.
//
// A pre-processing receipt is worth the allocated value of every sack
// portion in its bags. A post-processing receipt is worth the full value
// paid for every distinct sack reachable from each batch.
func (l *Ledger) IssueWarrant(ctx context.Context, typ warrant.Type, coveredIDs []id.ID) (*warrant.Receipt, error) {
	if !typ.Valid() {
		return nil, ValidationError{Field: "type", Message: fmt.Sprintf("unknown warrant type %q", typ)}
	}
	ids := dedupe(coveredIDs)
	if len(ids) == 0 {
		return nil, ValidationError{Field: "covered_ids", Message: "at least one id is required"}
	}
	for _, c := range ids {
		if c.Prefix() != typ.CoveredPrefix() {
			return nil, ValidationError{Field: "covered_ids", Message: fmt.Sprintf("%q is not a %s id", c, typ.CoveredPrefix())}
		}
	}

	r := &warrant.Receipt{
		Entity:     l.stamp(),
		ID:         l.newID(id.PrefixWarrant),
		Type:       typ,
		CoveredIDs: ids,
	}

	err := l.tx(ctx, func(ctx context.Context, tx store.Store) error {
		covered, err := coveredSet(ctx, tx, typ)
		if err != nil {
			return err
		}
		for _, c := range ids {
			if w, ok := covered[c.String()]; ok {
				return fmt.Errorf("%w: %s is covered by %s", ErrAlreadyCovered, c, w)
			}
		}

		var total decimal.Decimal
		if typ == warrant.TypePreProcessing {
			total, err = preProcessingValue(ctx, tx, ids)
		} else {
			total, err = postProcessingValue(ctx, tx, ids)
		}
		if err != nil {
			return err
		}
		r.TotalValue = types.FromDecimal(total, l.currency)
		return tx.CreateWarrant(ctx, r)
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("warrant issued",
		"warrant_id", r.ID.String(),
		"type", string(r.Type),
		"covered", len(r.CoveredIDs),
		"total_value", r.TotalValue.String(),
	)
	l.plugins.EmitWarrantIssued(ctx, r)
	return r, nil
}

// EligibleForWarrant lists bag or batch ids not yet covered by a receipt
// of typ.
func (l *Ledger) EligibleForWarrant(ctx context.Context, typ warrant.Type) ([]id.ID, error) {
	if !typ.Valid() {
		return nil, ValidationError{Field: "type", Message: fmt.Sprintf("unknown warrant type %q", typ)}
	}
	covered, err := coveredSet(ctx, l.store, typ)
	if err != nil {
		return nil, err
	}

	var all []id.ID
	if typ == warrant.TypePreProcessing {
		bags, err := l.store.ListBags(ctx, bag.ListOpts{})
		if err != nil {
			return nil, err
		}
		for _, b := range bags {
			all = append(all, b.ID)
		}
	} else {
		batches, err := l.store.ListBatches(ctx, batch.ListOpts{})
		if err != nil {
			return nil, err
		}
		for _, b := range batches {
			all = append(all, b.ID)
		}
	}

	out := make([]id.ID, 0, len(all))
	for _, i := range all {
		if _, ok := covered[i.String()]; !ok {
			out = append(out, i)
		}
	}
	if len(out) == 0 {
		l.logger.Info("nothing eligible for warrant", "type", string(typ))
	}
	return out, nil
}

// GetWarrant retrieves a receipt by ID.
func (l *Ledger) GetWarrant(ctx context.Context, warrantID id.WarrantID) (*warrant.Receipt, error) {
	return l.store.GetWarrant(ctx, warrantID)
}

// ListWarrants lists receipts, optionally of one type.
func (l *Ledger) ListWarrants(ctx context.Context, opts warrant.ListOpts) ([]*warrant.Receipt, error) {
	return l.store.ListWarrants(ctx, opts)
}

// coveredSet maps every id covered by a receipt of typ to that receipt.
func coveredSet(ctx context.Context, st store.Store, typ warrant.Type) (map[string]id.WarrantID, error) {
	receipts, err := st.ListWarrants(ctx, warrant.ListOpts{Type: typ})
	if err != nil {
		return nil, err
	}
	out := make(map[string]id.WarrantID)
	for _, r := range receipts {
		for _, c := range r.CoveredIDs {
			out[c.String()] = r.ID
		}
	}
	return out, nil
}

func preProcessingValue(ctx context.Context, st store.Store, bagIDs []id.BagID) (decimal.Decimal, error) {
	r := newResolver(st)
	total := decimal.Zero
	for _, bagID := range bagIDs {
		b, err := st.GetBag(ctx, bagID)
		if err != nil {
			return total, fmt.Errorf("bag %s: %w", bagID, err)
		}
		for _, a := range b.Allocations {
			s, err := r.sack(ctx, a.SackID)
			if err != nil {
				return total, err
			}
			total = total.Add(valuation.AllocatedValue(a.WeightKg, s.WeightKg, s.ValuePaid))
		}
	}
	return total, nil
}

func postProcessingValue(ctx context.Context, st store.Store, batchIDs []id.BatchID) (decimal.Decimal, error) {
	r := newResolver(st)
	total := decimal.Zero
	for _, batchID := range batchIDs {
		bt, err := st.GetBatch(ctx, batchID)
		if err != nil {
			return total, fmt.Errorf("batch %s: %w", batchID, err)
		}
		bags, err := r.bags(ctx, bt.BagIDs)
		if err != nil {
			return total, err
		}
		seen := make(map[string]bool)
		for _, b := range bags {
			for _, a := range b.Allocations {
				if seen[a.SackID.String()] {
					continue
				}
				seen[a.SackID.String()] = true
				s, err := r.sack(ctx, a.SackID)
				if err != nil {
					return total, err
				}
				total = total.Add(s.ValuePaid.Decimal())
			}
		}
	}
	return total, nil
}

// dedupe drops repeated ids, keeping first-seen order.
func dedupe(ids []id.ID) []id.ID {
	seen := make(map[string]bool, len(ids))
	out := make([]id.ID, 0, len(ids))
	for _, i := range ids {
		if i.IsNil() || seen[i.String()] {
			continue
		}
		seen[i.String()] = true
		out = append(out, i)
	}
	return out
}
