package cocoa

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/xraph/cocoa/bag"
	"github.com/xraph/cocoa/id"
	"github.com/xraph/cocoa/packer"
	"github.com/xraph/cocoa/sack"
	"github.com/xraph/cocoa/store"
)

// AutoPackBags fills bags with every sack that still has unallocated
// weight. Sacks are grouped by warehouse and UTC delivery day; groups
// never share a bag, and a sack may be split across consecutive bags.
func (l *Ledger) AutoPackBags(ctx context.Context) ([]*bag.Bag, error) {
	var bags []*bag.Bag

	err := l.tx(ctx, func(ctx context.Context, tx store.Store) error {
		sacks, err := tx.ListSacks(ctx, sack.ListOpts{})
		if err != nil {
			return err
		}
		allocated, err := tx.AllocatedWeights(ctx, nil)
		if err != nil {
			return err
		}

		type groupKey struct{ warehouse, day string }
		groups := make(map[groupKey][]*sack.Sack)
		byID := make(map[string]*sack.Sack)
		for _, s := range sacks {
			if !s.WeightKg.Sub(allocated[s.ID.String()]).IsPositive() {
				continue
			}
			k := groupKey{s.Warehouse, s.DeliveryDate()}
			groups[k] = append(groups[k], s)
			byID[s.ID.String()] = s
		}

		keys := make([]groupKey, 0, len(groups))
		for k := range groups {
			keys = append(keys, k)
		}
		slices.SortFunc(keys, func(a, b groupKey) int {
			return cmp.Or(cmp.Compare(a.warehouse, b.warehouse), cmp.Compare(a.day, b.day))
		})

		for _, k := range keys {
			members := groups[k]
			slices.SortFunc(members, func(a, b *sack.Sack) int {
				return cmp.Or(a.DeliveredAt.Compare(b.DeliveredAt), cmp.Compare(a.ID.String(), b.ID.String()))
			})
			items := make([]packer.Item, len(members))
			for i, s := range members {
				items[i] = packer.Item{Key: s.ID.String(), Weight: s.WeightKg.Sub(allocated[s.ID.String()])}
			}
			for _, g := range packer.Split(items, l.bagCapacity) {
				b := &bag.Bag{Entity: l.stamp(), ID: l.newID(id.PrefixBag)}
				for _, p := range g.Portions {
					b.Allocations = append(b.Allocations, bag.Allocation{SackID: byID[p.Key].ID, WeightKg: p.Weight})
				}
				if err := tx.CreateBag(ctx, b); err != nil {
					return err
				}
				bags = append(bags, b)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(bags) == 0 {
		l.logger.Info("no unbagged sacks to pack")
		return []*bag.Bag{}, nil
	}

	l.logger.Info("bags packed", "count", len(bags))
	l.plugins.EmitBagsPacked(ctx, bags)
	return bags, nil
}

// CreateBag creates a bag from explicit sack allocations. Each allocation
// must fit in its sack's unallocated weight and the bag must not exceed
// capacity.
func (l *Ledger) CreateBag(ctx context.Context, allocations []bag.Allocation) (*bag.Bag, error) {
	if len(allocations) == 0 {
		return nil, ValidationError{Field: "allocations", Message: "at least one allocation is required"}
	}
	seen := make(map[string]bool, len(allocations))
	total := decimal.Zero
	sackIDs := make([]id.SackID, 0, len(allocations))
	for _, a := range allocations {
		if a.SackID.IsNil() {
			return nil, ValidationError{Field: "sack_id", Message: "is required"}
		}
		if !a.WeightKg.IsPositive() {
			return nil, ValidationError{Field: "weight_kg", Message: fmt.Sprintf("allocation for %s must be greater than zero", a.SackID)}
		}
		if seen[a.SackID.String()] {
			return nil, ValidationError{Field: "sack_id", Message: fmt.Sprintf("duplicate sack %s", a.SackID)}
		}
		seen[a.SackID.String()] = true
		sackIDs = append(sackIDs, a.SackID)
		total = total.Add(a.WeightKg)
	}
	if total.GreaterThan(l.bagCapacity) {
		return nil, fmt.Errorf("%w: bag of %s kg exceeds %s kg", ErrCapacityExceeded, total, l.bagCapacity)
	}

	b := &bag.Bag{Entity: l.stamp(), ID: l.newID(id.PrefixBag), Allocations: slices.Clone(allocations)}

	err := l.tx(ctx, func(ctx context.Context, tx store.Store) error {
		allocated, err := tx.AllocatedWeights(ctx, sackIDs)
		if err != nil {
			return err
		}
		for _, a := range allocations {
			s, err := tx.GetSack(ctx, a.SackID)
			if err != nil {
				return fmt.Errorf("sack %s: %w", a.SackID, err)
			}
			free := s.WeightKg.Sub(allocated[s.ID.String()])
			if a.WeightKg.GreaterThan(free) {
				return fmt.Errorf("%w: sack %s has %s kg left, %s kg requested", ErrSackOverAllocated, s.ID, free, a.WeightKg)
			}
		}
		return tx.CreateBag(ctx, b)
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("bag created", "bag_id", b.ID.String(), "weight_kg", total.String())
	l.plugins.EmitBagsPacked(ctx, []*bag.Bag{b})
	return b, nil
}

// GetBag retrieves a bag by ID.
func (l *Ledger) GetBag(ctx context.Context, bagID id.BagID) (*bag.Bag, error) {
	return l.store.GetBag(ctx, bagID)
}

// ListBags lists bags.
func (l *Ledger) ListBags(ctx context.Context, opts bag.ListOpts) ([]*bag.Bag, error) {
	return l.store.ListBags(ctx, opts)
}
