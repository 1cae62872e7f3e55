package cocoa

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/xraph/cocoa/bag"
	"github.com/xraph/cocoa/batch"
	"github.com/xraph/cocoa/bundle"
	"github.com/xraph/cocoa/farmer"
	"github.com/xraph/cocoa/id"
	"github.com/xraph/cocoa/sack"
	"github.com/xraph/cocoa/types"
	"github.com/xraph/cocoa/valuation"
	"github.com/xraph/cocoa/warrant"
)

// Trace follows one sack through every aggregate that holds it.
type Trace struct {
	Sack     *sack.Sack         `json:"sack"`
	Farmer   *farmer.Farmer     `json:"farmer"`
	Bags     []TracedBag        `json:"bags"`
	Batches  []*batch.Batch     `json:"batches"`
	Bundle   *bundle.Bundle     `json:"bundle,omitempty"`
	Warrants []*warrant.Receipt `json:"warrants"`
}

// TracedBag is the part of the sack placed in one bag.
type TracedBag struct {
	BagID    id.BagID        `json:"bag_id"`
	BatchID  id.BatchID      `json:"batch_id,omitzero"`
	WeightKg decimal.Decimal `json:"weight_kg"`
	Value    types.Money     `json:"value"`
}

// SackTrace reports where a sack ended up: its bags with the allocated
// weight and value, the batches holding those bags, the bundle financing
// it and every warrant covering one of its bags or batches.
func (l *Ledger) SackTrace(ctx context.Context, sackID id.SackID) (*Trace, error) {
	s, err := l.store.GetSack(ctx, sackID)
	if err != nil {
		return nil, err
	}
	f, err := l.store.GetFarmer(ctx, s.FarmerID)
	if err != nil {
		return nil, err
	}

	bags, err := l.store.ListBags(ctx, bag.ListOpts{SackID: sackID})
	if err != nil {
		return nil, err
	}

	t := &Trace{
		Sack:     s,
		Farmer:   f,
		Bags:     make([]TracedBag, 0, len(bags)),
		Batches:  []*batch.Batch{},
		Warrants: []*warrant.Receipt{},
	}

	covered := make(map[string]bool)
	seenBatch := make(map[string]bool)
	for _, b := range bags {
		covered[b.ID.String()] = true
		tb := TracedBag{BagID: b.ID, WeightKg: decimal.Zero}
		for _, a := range b.Allocations {
			if a.SackID.String() == sackID.String() {
				tb.WeightKg = tb.WeightKg.Add(a.WeightKg)
			}
		}
		tb.Value = types.FromDecimal(valuation.AllocatedValue(tb.WeightKg, s.WeightKg, s.ValuePaid), l.currency)

		batches, err := l.store.ListBatches(ctx, batch.ListOpts{BagID: b.ID})
		if err != nil {
			return nil, err
		}
		for _, bt := range batches {
			tb.BatchID = bt.ID
			if !seenBatch[bt.ID.String()] {
				seenBatch[bt.ID.String()] = true
				covered[bt.ID.String()] = true
				t.Batches = append(t.Batches, bt)
			}
		}
		t.Bags = append(t.Bags, tb)
	}

	bundles, err := l.store.ListBundles(ctx, bundle.ListOpts{SackIDs: []id.SackID{sackID}})
	if err != nil {
		return nil, err
	}
	if len(bundles) > 0 {
		t.Bundle = bundles[0]
	}

	if len(covered) > 0 {
		receipts, err := l.store.ListWarrants(ctx, warrant.ListOpts{})
		if err != nil {
			return nil, err
		}
		for _, rc := range receipts {
			for _, c := range rc.CoveredIDs {
				if covered[c.String()] {
					t.Warrants = append(t.Warrants, rc)
					break
				}
			}
		}
	}

	return t, nil
}
