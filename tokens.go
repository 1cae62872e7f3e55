package cocoa

import (
	"context"
	"fmt"
	"strings"

	"github.com/xraph/cocoa/id"
	"github.com/xraph/cocoa/store"
	"github.com/xraph/cocoa/tip"
	"github.com/xraph/cocoa/token"
	"github.com/xraph/cocoa/types"
)

// TipInput describes a discretionary payment to a farmer.
type TipInput struct {
	FarmerID    id.FarmerID `json:"farmer_id"`
	Amount      types.Money `json:"amount"`
	Description string      `json:"description" validate:"max=500"`
}

// MintInternal credits a farmer's internal balance.
func (l *Ledger) MintInternal(ctx context.Context, farmerID id.FarmerID, amount types.Money, description string) (*token.Entry, error) {
	amount, err := l.positive("amount", amount)
	if err != nil {
		return nil, err
	}
	return l.record(ctx, l.entry(farmerID, token.KindInternal, amount, description))
}

// BurnDebt reduces a farmer's debt balance. The entry always stores a
// negative amount, whatever the sign given.
func (l *Ledger) BurnDebt(ctx context.Context, farmerID id.FarmerID, amount types.Money, description string) (*token.Entry, error) {
	return l.burn(ctx, farmerID, token.KindDebt, amount, description)
}

// BurnInternal reduces a farmer's internal balance.
func (l *Ledger) BurnInternal(ctx context.Context, farmerID id.FarmerID, amount types.Money, description string) (*token.Entry, error) {
	return l.burn(ctx, farmerID, token.KindInternal, amount, description)
}

func (l *Ledger) burn(ctx context.Context, farmerID id.FarmerID, kind token.Kind, amount types.Money, description string) (*token.Entry, error) {
	amount, err := l.money("amount", amount)
	if err != nil {
		return nil, err
	}
	if amount.IsZero() {
		return nil, ValidationError{Field: "amount", Message: "must not be zero"}
	}
	return l.record(ctx, l.entry(farmerID, kind, amount.Abs().Negate(), description))
}

func (l *Ledger) record(ctx context.Context, e *token.Entry) (*token.Entry, error) {
	if e.FarmerID.IsNil() {
		return nil, ValidationError{Field: "farmer_id", Message: "is required"}
	}
	if err := l.tx(ctx, func(ctx context.Context, tx store.Store) error {
		if _, err := tx.GetFarmer(ctx, e.FarmerID); err != nil {
			return err
		}
		return tx.AppendTokens(ctx, e)
	}); err != nil {
		return nil, err
	}

	l.logger.Info("token entry recorded",
		"token_id", e.ID.String(),
		"farmer_id", e.FarmerID.String(),
		"kind", string(e.Kind),
		"amount", e.Amount.String(),
	)
	l.plugins.EmitTokensRecorded(ctx, []*token.Entry{e})
	return e, nil
}

// Balances sums a farmer's token entries per kind.
func (l *Ledger) Balances(ctx context.Context, farmerID id.FarmerID) (*token.Balances, error) {
	if _, err := l.store.GetFarmer(ctx, farmerID); err != nil {
		return nil, err
	}
	sums, err := l.store.Balances(ctx, farmerID)
	if err != nil {
		return nil, err
	}
	out := &token.Balances{
		FarmerID: farmerID,
		Debt:     types.Zero(l.currency),
		Internal: types.Zero(l.currency),
	}
	if m, ok := sums[token.KindDebt]; ok {
		out.Debt = m
	}
	if m, ok := sums[token.KindInternal]; ok {
		out.Internal = m
	}
	return out, nil
}

// TokenHistory lists token entries oldest first.
func (l *Ledger) TokenHistory(ctx context.Context, opts token.ListOpts) ([]*token.Entry, error) {
	return l.store.ListTokens(ctx, opts)
}

// Tip records a tip and mints the matching internal credit atomically.
func (l *Ledger) Tip(ctx context.Context, in TipInput) (*tip.Tip, error) {
	if err := l.check(in); err != nil {
		return nil, err
	}
	if in.FarmerID.IsNil() {
		return nil, ValidationError{Field: "farmer_id", Message: "is required"}
	}
	amount, err := l.positive("amount", in.Amount)
	if err != nil {
		return nil, err
	}

	t := &tip.Tip{
		Entity:      l.stamp(),
		ID:          l.newID(id.PrefixTip),
		FarmerID:    in.FarmerID,
		Amount:      amount,
		Description: strings.TrimSpace(in.Description),
	}
	mint := l.entry(t.FarmerID, token.KindInternal, amount, fmt.Sprintf("Tip %s: %s", t.ID, t.Description))
	t.TokenID = mint.ID

	err = l.tx(ctx, func(ctx context.Context, tx store.Store) error {
		if _, err := tx.GetFarmer(ctx, t.FarmerID); err != nil {
			return err
		}
		if err := tx.CreateTip(ctx, t); err != nil {
			return err
		}
		return tx.AppendTokens(ctx, mint)
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("tip recorded", "tip_id", t.ID.String(), "farmer_id", t.FarmerID.String(), "amount", t.Amount.String())
	l.plugins.EmitTipRecorded(ctx, t)
	l.plugins.EmitTokensRecorded(ctx, []*token.Entry{mint})
	return t, nil
}

// ListTips lists tips.
func (l *Ledger) ListTips(ctx context.Context, opts tip.ListOpts) ([]*tip.Tip, error) {
	return l.store.ListTips(ctx, opts)
}
