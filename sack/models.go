package sack

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/cocoa/id"
	"github.com/xraph/cocoa/types"
)

// Sack is one delivery of raw cocoa. It never changes after delivery;
// bag membership lives on the bag side.
type Sack struct {
	types.Entity
	ID          id.SackID       `json:"id"`
	FarmerID    id.FarmerID     `json:"farmer_id"`
	WeightKg    decimal.Decimal `json:"weight_kg"`
	ValuePaid   types.Money     `json:"value_paid"`
	Warehouse   string          `json:"warehouse"`
	DeliveredAt time.Time       `json:"delivered_at"`
}

// DeliveryDate is the UTC calendar day of delivery, used to group sacks
// into bags.
func (s *Sack) DeliveryDate() string {
	return s.DeliveredAt.UTC().Format(time.DateOnly)
}
