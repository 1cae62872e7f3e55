package cocoa

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xraph/cocoa/bag"
	"github.com/xraph/cocoa/batch"
	"github.com/xraph/cocoa/id"
	"github.com/xraph/cocoa/packer"
	"github.com/xraph/cocoa/store"
)

// AutoPackBatches groups every unbatched bag into batches of whole bags.
// A bag heavier than the batch capacity gets a batch of its own. An empty
// product type defaults to liquor.
func (l *Ledger) AutoPackBatches(ctx context.Context, productType batch.ProductType) ([]*batch.Batch, error) {
	if productType == "" {
		productType = batch.ProductLiquor
	}
	if !productType.Valid() {
		return nil, ValidationError{Field: "product_type", Message: fmt.Sprintf("unknown product type %q", productType)}
	}

	var batches []*batch.Batch

	err := l.tx(ctx, func(ctx context.Context, tx store.Store) error {
		bags, err := tx.ListBags(ctx, bag.ListOpts{Unbatched: true})
		if err != nil {
			return err
		}

		items := make([]packer.Item, len(bags))
		byID := make(map[string]*bag.Bag, len(bags))
		for i, b := range bags {
			items[i] = packer.Item{Key: b.ID.String(), Weight: b.TotalWeight()}
			byID[b.ID.String()] = b
		}

		for _, g := range packer.Atomic(items, l.batchCapacity) {
			bt := &batch.Batch{
				Entity:      l.stamp(),
				ID:          l.newID(id.PrefixBatch),
				ProductType: productType,
				WeightKg:    g.Weight,
			}
			for _, p := range g.Portions {
				bt.BagIDs = append(bt.BagIDs, byID[p.Key].ID)
			}
			if err := tx.CreateBatch(ctx, bt); err != nil {
				return err
			}
			batches = append(batches, bt)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(batches) == 0 {
		l.logger.Info("no unbatched bags to pack")
		return []*batch.Batch{}, nil
	}

	l.logger.Info("batches packed", "count", len(batches), "product_type", string(productType))
	l.plugins.EmitBatchesCreated(ctx, batches)
	return batches, nil
}

// CreateBatch creates a batch from explicit, unbatched bags.
func (l *Ledger) CreateBatch(ctx context.Context, productType batch.ProductType, bagIDs []id.BagID) (*batch.Batch, error) {
	if !productType.Valid() {
		return nil, ValidationError{Field: "product_type", Message: fmt.Sprintf("unknown product type %q", productType)}
	}
	if len(bagIDs) == 0 {
		return nil, ValidationError{Field: "bag_ids", Message: "at least one bag is required"}
	}
	seen := make(map[string]bool, len(bagIDs))
	for _, bagID := range bagIDs {
		if bagID.Prefix() != id.PrefixBag {
			return nil, ValidationError{Field: "bag_ids", Message: fmt.Sprintf("%q is not a bag id", bagID)}
		}
		if seen[bagID.String()] {
			return nil, ValidationError{Field: "bag_ids", Message: fmt.Sprintf("duplicate bag %s", bagID)}
		}
		seen[bagID.String()] = true
	}

	bt := &batch.Batch{
		Entity:      l.stamp(),
		ID:          l.newID(id.PrefixBatch),
		ProductType: productType,
		BagIDs:      append([]id.BagID(nil), bagIDs...),
	}

	err := l.tx(ctx, func(ctx context.Context, tx store.Store) error {
		total := decimal.Zero
		for _, bagID := range bagIDs {
			b, err := tx.GetBag(ctx, bagID)
			if err != nil {
				return fmt.Errorf("bag %s: %w", bagID, err)
			}
			existing, err := tx.ListBatches(ctx, batch.ListOpts{BagID: bagID, Limit: 1})
			if err != nil {
				return err
			}
			if len(existing) > 0 {
				return fmt.Errorf("%w: %s is in %s", ErrBagAlreadyBatched, bagID, existing[0].ID)
			}
			total = total.Add(b.TotalWeight())
		}
		if total.GreaterThan(l.batchCapacity) {
			return fmt.Errorf("%w: batch of %s kg exceeds %s kg", ErrCapacityExceeded, total, l.batchCapacity)
		}
		bt.WeightKg = total
		return tx.CreateBatch(ctx, bt)
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("batch created", "batch_id", bt.ID.String(), "weight_kg", bt.WeightKg.String())
	l.plugins.EmitBatchesCreated(ctx, []*batch.Batch{bt})
	return bt, nil
}

// GetBatch retrieves a batch by ID.
func (l *Ledger) GetBatch(ctx context.Context, batchID id.BatchID) (*batch.Batch, error) {
	return l.store.GetBatch(ctx, batchID)
}

// ListBatches lists batches.
func (l *Ledger) ListBatches(ctx context.Context, opts batch.ListOpts) ([]*batch.Batch, error) {
	return l.store.ListBatches(ctx, opts)
}
