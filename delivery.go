package cocoa

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/cocoa/id"
	"github.com/xraph/cocoa/sack"
	"github.com/xraph/cocoa/store"
	"github.com/xraph/cocoa/token"
	"github.com/xraph/cocoa/types"
)

// DeliverSackInput records a farmer's delivery at a warehouse.
type DeliverSackInput struct {
	FarmerID  id.FarmerID     `json:"farmer_id"`
	WeightKg  decimal.Decimal `json:"weight_kg"`
	ValuePaid types.Money     `json:"value_paid"`
	Warehouse string          `json:"warehouse" validate:"required,max=100"`
	// DeliveredAt defaults to now.
	DeliveredAt time.Time `json:"delivered_at"`
}

// DeliverSack stores a sack and mints the farmer a debt token for its
// value in the same transaction.
func (l *Ledger) DeliverSack(ctx context.Context, in DeliverSackInput) (*sack.Sack, error) {
	if err := l.check(in); err != nil {
		return nil, err
	}
	if in.FarmerID.IsNil() {
		return nil, ValidationError{Field: "farmer_id", Message: "is required"}
	}
	if !in.WeightKg.IsPositive() {
		return nil, ValidationError{Field: "weight_kg", Message: "must be greater than zero"}
	}
	value, err := l.nonNegative("value_paid", in.ValuePaid)
	if err != nil {
		return nil, err
	}

	deliveredAt := in.DeliveredAt
	if deliveredAt.IsZero() {
		deliveredAt = l.now()
	}

	s := &sack.Sack{
		Entity:      l.stamp(),
		ID:          l.newID(id.PrefixSack),
		FarmerID:    in.FarmerID,
		WeightKg:    in.WeightKg,
		ValuePaid:   value,
		Warehouse:   strings.TrimSpace(in.Warehouse),
		DeliveredAt: deliveredAt.UTC(),
	}

	var debt *token.Entry
	if value.IsPositive() {
		debt = l.entry(s.FarmerID, token.KindDebt, value, fmt.Sprintf("Debt token minted for sack %s", s.ID))
	}

	err = l.tx(ctx, func(ctx context.Context, tx store.Store) error {
		if _, err := tx.GetFarmer(ctx, in.FarmerID); err != nil {
			return err
		}
		if err := tx.CreateSack(ctx, s); err != nil {
			return err
		}
		if debt != nil {
			return tx.AppendTokens(ctx, debt)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("sack delivered",
		"sack_id", s.ID.String(),
		"farmer_id", s.FarmerID.String(),
		"weight_kg", s.WeightKg.String(),
		"value_paid", s.ValuePaid.String(),
	)
	l.plugins.EmitSackDelivered(ctx, s, debt)
	if debt != nil {
		l.plugins.EmitTokensRecorded(ctx, []*token.Entry{debt})
	}
	return s, nil
}

// GetSack retrieves a sack by ID.
func (l *Ledger) GetSack(ctx context.Context, sackID id.SackID) (*sack.Sack, error) {
	return l.store.GetSack(ctx, sackID)
}

// ListSacks lists sacks, optionally for one farmer.
func (l *Ledger) ListSacks(ctx context.Context, opts sack.ListOpts) ([]*sack.Sack, error) {
	return l.store.ListSacks(ctx, opts)
}

// entry builds a token entry stamped now.
func (l *Ledger) entry(farmerID id.FarmerID, kind token.Kind, amount types.Money, desc string) *token.Entry {
	return &token.Entry{
		ID:          l.newID(id.PrefixToken),
		FarmerID:    farmerID,
		Kind:        kind,
		Amount:      amount,
		Description: desc,
		CreatedAt:   l.now().UTC(),
	}
}
