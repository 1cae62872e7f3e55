package cocoa_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/cocoa"
	"github.com/xraph/cocoa/bag"
	"github.com/xraph/cocoa/batch"
	"github.com/xraph/cocoa/id"
	"github.com/xraph/cocoa/types"
)

func TestAutoPackBags_SplitsOversizedSack(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	f := registerFarmer(t, l, "Ada", "Nigeria")
	s := deliver(t, l, f, 70, types.NGN(700_00), "Ondo")

	bags, err := l.AutoPackBags(ctx)
	require.NoError(t, err)
	require.Len(t, bags, 2)

	assert.True(t, bags[0].TotalWeight().Equal(kg(63)), "first bag: %s", bags[0].TotalWeight())
	assert.True(t, bags[1].TotalWeight().Equal(kg(7)), "second bag: %s", bags[1].TotalWeight())
	for _, b := range bags {
		require.Len(t, b.Allocations, 1)
		assert.Equal(t, s.ID.String(), b.Allocations[0].SackID.String())
	}

	again, err := l.AutoPackBags(ctx)
	require.NoError(t, err)
	assert.Empty(t, again, "fully bagged sacks are not packed twice")
}

func TestAutoPackBags_CapacityAndConservation(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	a := registerFarmer(t, l, "Ada", "Nigeria")
	b := registerFarmer(t, l, "Bisi", "Nigeria")

	weights := map[string]int64{}
	for _, w := range []int64{40, 55, 12, 90} {
		s := deliver(t, l, a, w, types.NGN(w*1000), "Ondo")
		weights[s.ID.String()] = w
	}
	s := deliver(t, l, b, 30, types.NGN(30_000), "Ikeja")
	weights[s.ID.String()] = 30

	bags, err := l.AutoPackBags(ctx)
	require.NoError(t, err)

	allocated := map[string]decimal.Decimal{}
	for _, bg := range bags {
		assert.True(t, bg.TotalWeight().LessThanOrEqual(kg(cocoa.DefaultBagCapacityKg)), "bag %s holds %s kg", bg.ID, bg.TotalWeight())
		for _, al := range bg.Allocations {
			allocated[al.SackID.String()] = allocated[al.SackID.String()].Add(al.WeightKg)
		}
	}
	for sackID, w := range weights {
		assert.True(t, allocated[sackID].Equal(kg(w)), "sack %s allocated %s of %d kg", sackID, allocated[sackID], w)
	}

	// Warehouses never share a bag.
	for _, bg := range bags {
		warehouses := map[string]bool{}
		for _, al := range bg.Allocations {
			sk, err := l.GetSack(ctx, al.SackID)
			require.NoError(t, err)
			warehouses[sk.Warehouse] = true
		}
		assert.Len(t, warehouses, 1)
	}
}

func TestAutoPackBags_NothingToPack(t *testing.T) {
	l := newLedger(t)

	bags, err := l.AutoPackBags(context.Background())
	require.NoError(t, err)
	assert.Empty(t, bags)
}

func TestCreateBag(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	f := registerFarmer(t, l, "Ada", "Nigeria")
	s1 := deliver(t, l, f, 50, types.NGN(500_00), "Ondo")
	s2 := deliver(t, l, f, 20, types.NGN(200_00), "Ondo")

	t.Run("over capacity", func(t *testing.T) {
		_, err := l.CreateBag(ctx, []bag.Allocation{
			{SackID: s1.ID, WeightKg: kg(50)},
			{SackID: s2.ID, WeightKg: kg(20)},
		})
		assert.ErrorIs(t, err, cocoa.ErrCapacityExceeded)
	})

	t.Run("partial sacks", func(t *testing.T) {
		b, err := l.CreateBag(ctx, []bag.Allocation{
			{SackID: s1.ID, WeightKg: kg(45)},
			{SackID: s2.ID, WeightKg: kg(18)},
		})
		require.NoError(t, err)
		assert.True(t, b.TotalWeight().Equal(kg(63)))
	})

	t.Run("over allocated sack", func(t *testing.T) {
		_, err := l.CreateBag(ctx, []bag.Allocation{{SackID: s1.ID, WeightKg: kg(6)}})
		assert.ErrorIs(t, err, cocoa.ErrSackOverAllocated)
	})

	t.Run("duplicate sack", func(t *testing.T) {
		_, err := l.CreateBag(ctx, []bag.Allocation{
			{SackID: s1.ID, WeightKg: kg(1)},
			{SackID: s1.ID, WeightKg: kg(1)},
		})
		assert.True(t, cocoa.IsValidation(err))
	})

	t.Run("auto pack takes the rest", func(t *testing.T) {
		bags, err := l.AutoPackBags(ctx)
		require.NoError(t, err)
		require.Len(t, bags, 1)
		assert.True(t, bags[0].TotalWeight().Equal(kg(7)))
	})
}

func TestAutoPackBatches(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, cocoa.WithBatchCapacity(kg(100)))
	f := registerFarmer(t, l, "Ada", "Nigeria")
	for _, warehouse := range []string{"Ondo", "Ikeja", "Akure"} {
		deliver(t, l, f, 60, types.NGN(600_00), warehouse)
	}

	bags, err := l.AutoPackBags(ctx)
	require.NoError(t, err)
	require.Len(t, bags, 3)

	batches, err := l.AutoPackBatches(ctx, "")
	require.NoError(t, err)
	require.Len(t, batches, 3, "whole bags of 60 kg never share a 100 kg batch")

	seen := map[string]bool{}
	for _, bt := range batches {
		assert.Equal(t, batch.ProductLiquor, bt.ProductType)
		assert.True(t, bt.WeightKg.LessThanOrEqual(kg(100)))
		for _, bagID := range bt.BagIDs {
			assert.False(t, seen[bagID.String()], "bag %s batched twice", bagID)
			seen[bagID.String()] = true
		}
	}

	again, err := l.AutoPackBatches(ctx, batch.ProductButter)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestAutoPackBatches_OversizedBagGoesAlone(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, cocoa.WithBatchCapacity(kg(50)))
	f := registerFarmer(t, l, "Ada", "Nigeria")
	deliver(t, l, f, 60, types.NGN(600_00), "Ondo")

	_, err := l.AutoPackBags(ctx)
	require.NoError(t, err)

	batches, err := l.AutoPackBatches(ctx, batch.ProductPowder)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.True(t, batches[0].WeightKg.Equal(kg(60)))
}

func TestCreateBatch(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, cocoa.WithBatchCapacity(kg(100)))
	f := registerFarmer(t, l, "Ada", "Nigeria")
	deliver(t, l, f, 60, types.NGN(600_00), "Ondo")
	deliver(t, l, f, 60, types.NGN(600_00), "Ikeja")

	bags, err := l.AutoPackBags(ctx)
	require.NoError(t, err)
	require.Len(t, bags, 2)

	_, err = l.CreateBatch(ctx, batch.ProductButter, []id.BagID{bags[0].ID, bags[1].ID})
	assert.ErrorIs(t, err, cocoa.ErrCapacityExceeded)

	bt, err := l.CreateBatch(ctx, batch.ProductButter, []id.BagID{bags[0].ID})
	require.NoError(t, err)
	assert.True(t, bt.WeightKg.Equal(kg(60)))

	_, err = l.CreateBatch(ctx, batch.ProductButter, []id.BagID{bags[0].ID})
	assert.ErrorIs(t, err, cocoa.ErrBagAlreadyBatched)

	_, err = l.CreateBatch(ctx, batch.ProductButter, []id.BagID{id.NewBagID()})
	assert.True(t, cocoa.IsNotFound(err))

	_, err = l.CreateBatch(ctx, "chocolate", []id.BagID{bags[1].ID})
	assert.True(t, cocoa.IsValidation(err))
}
