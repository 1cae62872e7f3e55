package bag

import (
	"github.com/shopspring/decimal"

	"github.com/xraph/cocoa/id"
	"github.com/xraph/cocoa/types"
)

// Bag is a container of at most 63 kg of sack weight. A sack may be split
// across several bags.
type Bag struct {
	types.Entity
	ID          id.BagID     `json:"id"`
	Allocations []Allocation `json:"allocations"`
}

// Allocation is the portion of one sack placed in a bag.
type Allocation struct {
	SackID   id.SackID       `json:"sack_id"`
	WeightKg decimal.Decimal `json:"weight_kg"`
}

// TotalWeight sums the allocated weight of the bag.
func (b *Bag) TotalWeight() decimal.Decimal {
	total := decimal.Zero
	for _, a := range b.Allocations {
		total = total.Add(a.WeightKg)
	}
	return total
}

// Contains reports whether the bag holds part of sackID.
func (b *Bag) Contains(sackID id.SackID) bool {
	for _, a := range b.Allocations {
		if a.SackID.String() == sackID.String() {
			return true
		}
	}
	return false
}
