package cocoa

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/xraph/cocoa/bag"
	"github.com/xraph/cocoa/farmer"
	"github.com/xraph/cocoa/id"
	"github.com/xraph/cocoa/sack"
	"github.com/xraph/cocoa/store"
	"github.com/xraph/cocoa/types"
	"github.com/xraph/cocoa/valuation"
)

// Contribution is one contributor's share of a bag or batch. Percentages
// are derived on read and never stored.
type Contribution struct {
	SackID     id.SackID       `json:"sack_id,omitempty"`
	FarmerID   id.FarmerID     `json:"farmer_id"`
	FarmerName string          `json:"farmer_name"`
	WeightKg   decimal.Decimal `json:"weight_kg"`
	Value      types.Money     `json:"value"`
	WeightPct  decimal.Decimal `json:"weight_pct"`
	ValuePct   decimal.Decimal `json:"value_pct"`
}

// Composition breaks an aggregate down by contributor.
type Composition struct {
	ID            id.ID           `json:"id"`
	TotalWeightKg decimal.Decimal `json:"total_weight_kg"`
	TotalValue    types.Money     `json:"total_value"`
	Contributions []Contribution  `json:"contributions"`
}

// BagComposition reports each sack's share of a bag.
func (l *Ledger) BagComposition(ctx context.Context, bagID id.BagID) (*Composition, error) {
	b, err := l.store.GetBag(ctx, bagID)
	if err != nil {
		return nil, err
	}

	r := newResolver(l.store)
	lines := make([]valuation.Line, 0, len(b.Allocations))
	owners := make([]*farmer.Farmer, 0, len(b.Allocations))
	for _, a := range b.Allocations {
		s, err := r.sack(ctx, a.SackID)
		if err != nil {
			return nil, err
		}
		f, err := r.farmer(ctx, s.FarmerID)
		if err != nil {
			return nil, err
		}
		lines = append(lines, valuation.Line{
			Key:      s.ID.String(),
			WeightKg: a.WeightKg,
			Value:    valuation.AllocatedValue(a.WeightKg, s.WeightKg, s.ValuePaid),
		})
		owners = append(owners, f)
	}

	comp := valuation.Compose(lines)
	out := &Composition{
		ID:            b.ID,
		TotalWeightKg: comp.TotalWeightKg,
		TotalValue:    types.FromDecimal(comp.TotalValue, l.currency),
		Contributions: make([]Contribution, len(comp.Shares)),
	}
	values := shareValues(out.TotalValue, comp)
	for i, sh := range comp.Shares {
		out.Contributions[i] = Contribution{
			SackID:     b.Allocations[i].SackID,
			FarmerID:   owners[i].ID,
			FarmerName: owners[i].Name(),
			WeightKg:   sh.WeightKg,
			Value:      values[i],
			WeightPct:  sh.WeightPct,
			ValuePct:   sh.ValuePct,
		}
	}
	return out, nil
}

// BatchComposition reports each farmer's share of a batch, traversing
// its bags down to sack allocations.
func (l *Ledger) BatchComposition(ctx context.Context, batchID id.BatchID) (*Composition, error) {
	bt, err := l.store.GetBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}

	r := newResolver(l.store)
	lines, err := r.batchLines(ctx, bt.BagIDs)
	if err != nil {
		return nil, err
	}
	merged := valuation.Merge(lines)

	comp := valuation.Compose(merged)
	out := &Composition{
		ID:            bt.ID,
		TotalWeightKg: comp.TotalWeightKg,
		TotalValue:    types.FromDecimal(comp.TotalValue, l.currency),
		Contributions: make([]Contribution, len(comp.Shares)),
	}
	values := shareValues(out.TotalValue, comp)
	for i, sh := range comp.Shares {
		f := r.farmers[sh.Key]
		out.Contributions[i] = Contribution{
			FarmerID:   f.ID,
			FarmerName: f.Name(),
			WeightKg:   sh.WeightKg,
			Value:      values[i],
			WeightPct:  sh.WeightPct,
			ValuePct:   sh.ValuePct,
		}
	}
	return out, nil
}

// shareValues rounds each share so the parts add up to the rounded total.
func shareValues(total types.Money, comp valuation.Composition) []types.Money {
	weights := make([]decimal.Decimal, len(comp.Shares))
	for i, sh := range comp.Shares {
		weights[i] = sh.Value
	}
	return valuation.Split(total, weights)
}

// resolver memoizes sack and farmer lookups while walking aggregates.
type resolver struct {
	st      store.Store
	sacks   map[string]*sack.Sack
	farmers map[string]*farmer.Farmer
}

func newResolver(st store.Store) *resolver {
	return &resolver{
		st:      st,
		sacks:   make(map[string]*sack.Sack),
		farmers: make(map[string]*farmer.Farmer),
	}
}

func (r *resolver) sack(ctx context.Context, sackID id.SackID) (*sack.Sack, error) {
	if s, ok := r.sacks[sackID.String()]; ok {
		return s, nil
	}
	s, err := r.st.GetSack(ctx, sackID)
	if err != nil {
		return nil, err
	}
	r.sacks[sackID.String()] = s
	return s, nil
}

func (r *resolver) farmer(ctx context.Context, farmerID id.FarmerID) (*farmer.Farmer, error) {
	if f, ok := r.farmers[farmerID.String()]; ok {
		return f, nil
	}
	f, err := r.st.GetFarmer(ctx, farmerID)
	if err != nil {
		return nil, err
	}
	r.farmers[farmerID.String()] = f
	return f, nil
}

func (r *resolver) bags(ctx context.Context, bagIDs []id.BagID) ([]*bag.Bag, error) {
	out := make([]*bag.Bag, 0, len(bagIDs))
	for _, bagID := range bagIDs {
		b, err := r.st.GetBag(ctx, bagID)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// batchLines returns one line per sack allocation in the given bags,
// keyed by the owning farmer, in bag order.
func (r *resolver) batchLines(ctx context.Context, bagIDs []id.BagID) ([]valuation.Line, error) {
	bags, err := r.bags(ctx, bagIDs)
	if err != nil {
		return nil, err
	}
	var lines []valuation.Line
	for _, b := range bags {
		for _, a := range b.Allocations {
			s, err := r.sack(ctx, a.SackID)
			if err != nil {
				return nil, err
			}
			if _, err := r.farmer(ctx, s.FarmerID); err != nil {
				return nil, err
			}
			lines = append(lines, valuation.Line{
				Key:      s.FarmerID.String(),
				WeightKg: a.WeightKg,
				Value:    valuation.AllocatedValue(a.WeightKg, s.WeightKg, s.ValuePaid),
			})
		}
	}
	return lines, nil
}
