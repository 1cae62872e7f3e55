package cocoa

import (
	"context"
	"strings"

	"github.com/xraph/cocoa/id"
	"github.com/xraph/cocoa/lender"
	"github.com/xraph/cocoa/store"
	"github.com/xraph/cocoa/types"
)

// RegisterLenderInput describes a new lender.
type RegisterLenderInput struct {
	WalletAddress string      `json:"wallet_address" validate:"required,max=128"`
	Position      types.Money `json:"position"`
}

// RegisterLender creates a lender with an opening position. Wallet
// addresses are unique.
func (l *Ledger) RegisterLender(ctx context.Context, in RegisterLenderInput) (*lender.Lender, error) {
	if err := l.check(in); err != nil {
		return nil, err
	}
	position, err := l.nonNegative("position", in.Position)
	if err != nil {
		return nil, err
	}

	ln := &lender.Lender{
		Entity:        l.stamp(),
		ID:            l.newID(id.PrefixLender),
		WalletAddress: strings.TrimSpace(in.WalletAddress),
		Position:      position,
	}

	if err := l.tx(ctx, func(ctx context.Context, tx store.Store) error {
		return tx.CreateLender(ctx, ln)
	}); err != nil {
		return nil, err
	}

	l.logger.Info("lender registered", "lender_id", ln.ID.String(), "position", ln.Position.String())
	l.plugins.EmitLenderRegistered(ctx, ln)
	return ln, nil
}

// SetLenderPosition overwrites a lender's position.
func (l *Ledger) SetLenderPosition(ctx context.Context, lenderID id.LenderID, position types.Money) (*lender.Lender, error) {
	position, err := l.nonNegative("position", position)
	if err != nil {
		return nil, err
	}

	var ln *lender.Lender
	err = l.tx(ctx, func(ctx context.Context, tx store.Store) error {
		if err := tx.UpdateLenderPosition(ctx, lenderID, position); err != nil {
			return err
		}
		var err error
		ln, err = tx.GetLender(ctx, lenderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("lender position set", "lender_id", lenderID.String(), "position", position.String())
	return ln, nil
}

// GetLender retrieves a lender by ID.
func (l *Ledger) GetLender(ctx context.Context, lenderID id.LenderID) (*lender.Lender, error) {
	return l.store.GetLender(ctx, lenderID)
}

// ListLenders lists lenders.
func (l *Ledger) ListLenders(ctx context.Context, opts lender.ListOpts) ([]*lender.Lender, error) {
	return l.store.ListLenders(ctx, opts)
}
