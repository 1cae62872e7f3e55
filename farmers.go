package cocoa

import (
	"context"
	"strings"

	"github.com/xraph/cocoa/farmer"
	"github.com/xraph/cocoa/id"
	"github.com/xraph/cocoa/store"
)

// RegisterFarmerInput describes a new farmer.
type RegisterFarmerInput struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Email     string `json:"email" validate:"omitempty,email"`
	Phone     string `json:"phone" validate:"max=32"`
	Country   string `json:"country" validate:"max=100"`
	City      string `json:"city" validate:"max=100"`
	Gender    string `json:"gender" validate:"max=32"`
}

// RegisterFarmer creates a farmer.
func (l *Ledger) RegisterFarmer(ctx context.Context, in RegisterFarmerInput) (*farmer.Farmer, error) {
	if err := l.check(in); err != nil {
		return nil, err
	}

	f := &farmer.Farmer{
		Entity:    l.stamp(),
		ID:        l.newID(id.PrefixFarmer),
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Email:     strings.TrimSpace(in.Email),
		Phone:     strings.TrimSpace(in.Phone),
		Country:   strings.TrimSpace(in.Country),
		City:      strings.TrimSpace(in.City),
		Gender:    strings.TrimSpace(in.Gender),
	}

	if err := l.tx(ctx, func(ctx context.Context, tx store.Store) error {
		return tx.CreateFarmer(ctx, f)
	}); err != nil {
		return nil, err
	}

	l.logger.Info("farmer registered", "farmer_id", f.ID.String())
	l.plugins.EmitFarmerRegistered(ctx, f)
	return f, nil
}

// GetFarmer retrieves a farmer by ID.
func (l *Ledger) GetFarmer(ctx context.Context, farmerID id.FarmerID) (*farmer.Farmer, error) {
	return l.store.GetFarmer(ctx, farmerID)
}

// ListFarmers lists farmers matching opts.
func (l *Ledger) ListFarmers(ctx context.Context, opts farmer.ListOpts) ([]*farmer.Farmer, error) {
	return l.store.ListFarmers(ctx, opts)
}

// Operator returns the operator farmer, creating it on first use.
func (l *Ledger) Operator(ctx context.Context) (*farmer.Farmer, error) {
	if op, err := l.store.GetOperator(ctx); err == nil {
		return op, nil
	} else if !IsNotFound(err) {
		return nil, err
	}

	var op *farmer.Farmer
	err := l.tx(ctx, func(ctx context.Context, tx store.Store) error {
		var err error
		op, err = l.operator(ctx, tx)
		return err
	})
	return op, err
}

// operator loads or creates the operator farmer inside tx.
func (l *Ledger) operator(ctx context.Context, tx store.Store) (*farmer.Farmer, error) {
	op, err := tx.GetOperator(ctx)
	if err == nil {
		return op, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}

	first, last, _ := strings.Cut(l.operatorName, " ")
	op = &farmer.Farmer{
		Entity:    l.stamp(),
		ID:        l.newID(id.PrefixFarmer),
		FirstName: first,
		LastName:  last,
		Operator:  true,
	}
	if err := tx.CreateFarmer(ctx, op); err != nil {
		return nil, err
	}
	l.logger.Info("operator farmer created", "farmer_id", op.ID.String(), "name", l.operatorName)
	return op, nil
}
