package cocoa_test

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/cocoa"
	"github.com/xraph/cocoa/id"
	"github.com/xraph/cocoa/sack"
	"github.com/xraph/cocoa/tip"
	"github.com/xraph/cocoa/token"
	"github.com/xraph/cocoa/types"
)

func TestDeliverSack_MintsDebt(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	f := registerFarmer(t, l, "Ada", "Nigeria")

	s := deliver(t, l, f, 25, types.NGN(250_00), " Ondo ")
	assert.Equal(t, "Ondo", s.Warehouse)
	assert.True(t, harvestDay.Equal(s.DeliveredAt))

	history, err := l.TokenHistory(ctx, token.ListOpts{FarmerID: f.ID})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, token.KindDebt, history[0].Kind)
	assert.Equal(t, types.NGN(250_00), history[0].Amount)
	assert.Equal(t, "Debt token minted for sack "+s.ID.String(), history[0].Description)

	// A free delivery mints nothing.
	deliver(t, l, f, 5, types.NGN(0), "Ondo")
	assert.Equal(t, types.NGN(250_00), balances(t, l, f.ID).Debt)
}

func TestDeliverSack_Validation(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	f := registerFarmer(t, l, "Ada", "Nigeria")

	tests := []struct {
		name  string
		in    cocoa.DeliverSackInput
		field string
	}{
		{"missing warehouse", cocoa.DeliverSackInput{FarmerID: f.ID, WeightKg: kg(1), ValuePaid: types.NGN(1)}, "warehouse"},
		{"missing farmer", cocoa.DeliverSackInput{WeightKg: kg(1), ValuePaid: types.NGN(1), Warehouse: "Ondo"}, "farmer_id"},
		{"zero weight", cocoa.DeliverSackInput{FarmerID: f.ID, ValuePaid: types.NGN(1), Warehouse: "Ondo"}, "weight_kg"},
		{"negative value", cocoa.DeliverSackInput{FarmerID: f.ID, WeightKg: kg(1), ValuePaid: types.NGN(-1), Warehouse: "Ondo"}, "value_paid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.DeliverSack(ctx, tt.in)
			var ve cocoa.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	_, err := l.DeliverSack(ctx, cocoa.DeliverSackInput{
		FarmerID:  id.NewFarmerID(),
		WeightKg:  kg(1),
		ValuePaid: types.NGN(1),
		Warehouse: "Ondo",
	})
	assert.ErrorIs(t, err, cocoa.ErrFarmerNotFound)

	sacks, err := l.ListSacks(ctx, sack.ListOpts{FarmerID: f.ID})
	require.NoError(t, err)
	assert.Empty(t, sacks)
}

func TestTokenOperations(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	f := registerFarmer(t, l, "Ada", "Nigeria")

	_, err := l.MintInternal(ctx, f.ID, types.NGN(100_00), "harvest bonus")
	require.NoError(t, err)

	burn, err := l.BurnInternal(ctx, f.ID, types.NGN(30_00), "fertiliser")
	require.NoError(t, err)
	assert.Equal(t, types.NGN(-30_00), burn.Amount)

	burn, err = l.BurnDebt(ctx, f.ID, types.NGN(-20_00), "manual repayment")
	require.NoError(t, err)
	assert.Equal(t, types.NGN(-20_00), burn.Amount, "burns always store a negative amount")

	b := balances(t, l, f.ID)
	assert.Equal(t, types.NGN(70_00), b.Internal)
	assert.Equal(t, types.NGN(-20_00), b.Debt)

	_, err = l.MintInternal(ctx, f.ID, types.NGN(0), "nothing")
	assert.True(t, cocoa.IsValidation(err))
	_, err = l.BurnDebt(ctx, f.ID, types.NGN(0), "nothing")
	assert.True(t, cocoa.IsValidation(err))
	_, err = l.MintInternal(ctx, id.NewFarmerID(), types.NGN(1), "ghost")
	assert.True(t, cocoa.IsNotFound(err))

	_, err = l.Balances(ctx, id.NewFarmerID())
	assert.True(t, cocoa.IsNotFound(err))
}

func TestTip(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	f := registerFarmer(t, l, "Ada", "Nigeria")

	tp, err := l.Tip(ctx, cocoa.TipInput{FarmerID: f.ID, Amount: types.NGN(15_00), Description: "great beans"})
	require.NoError(t, err)

	history, err := l.TokenHistory(ctx, token.ListOpts{FarmerID: f.ID, Kind: token.KindInternal})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, tp.TokenID.String(), history[0].ID.String())
	assert.Equal(t, "Tip "+tp.ID.String()+": great beans", history[0].Description)
	assert.Equal(t, types.NGN(15_00), balances(t, l, f.ID).Internal)

	tips, err := l.ListTips(ctx, tip.ListOpts{FarmerID: f.ID})
	require.NoError(t, err)
	assert.Len(t, tips, 1)

	_, err = l.Tip(ctx, cocoa.TipInput{FarmerID: f.ID, Amount: types.NGN(1), Description: strings.Repeat("x", 501)})
	assert.True(t, cocoa.IsValidation(err))
}

func TestOperator_IsSingleton(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, cocoa.WithOperatorName("Cocoa Co-op"))

	first, err := l.Operator(ctx)
	require.NoError(t, err)
	second, err := l.Operator(ctx)
	require.NoError(t, err)

	assert.Equal(t, first.ID.String(), second.ID.String())
	assert.True(t, first.Operator)
	assert.Equal(t, "Cocoa Co-op", first.Name())
}

func TestBatchComposition_PercentagesSumTo100(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	ada := registerFarmer(t, l, "Ada", "Nigeria")
	kofi := registerFarmer(t, l, "Kofi", "Ghana")
	ama := registerFarmer(t, l, "Ama", "Ghana")
	deliver(t, l, ada, 13, types.NGN(131_11), "Ondo")
	deliver(t, l, kofi, 29, types.NGN(297_77), "Ondo")
	deliver(t, l, ama, 41, types.NGN(401_01), "Ondo")
	bags, batches := packAll(t, l)
	require.Len(t, batches, 1)

	comp, err := l.BatchComposition(ctx, batches[0].ID)
	require.NoError(t, err)
	require.Len(t, comp.Contributions, 3)
	assert.True(t, comp.TotalWeightKg.Equal(kg(83)))

	weightPct, valuePct := decimal.Zero, decimal.Zero
	value := types.Zero("ngn")
	for _, c := range comp.Contributions {
		weightPct = weightPct.Add(c.WeightPct)
		valuePct = valuePct.Add(c.ValuePct)
		value = value.Add(c.Value)
	}
	assert.True(t, weightPct.Sub(decimal.NewFromInt(100)).Abs().LessThanOrEqual(pct("0.01")), "weight pct %s", weightPct)
	assert.True(t, valuePct.Sub(decimal.NewFromInt(100)).Abs().LessThanOrEqual(pct("0.01")), "value pct %s", valuePct)
	assert.Equal(t, comp.TotalValue, value)
	assert.Equal(t, types.NGN(829_89), comp.TotalValue)

	for _, b := range bags {
		bc, err := l.BagComposition(ctx, b.ID)
		require.NoError(t, err)
		assert.True(t, bc.TotalWeightKg.Equal(b.TotalWeight()))
		for _, c := range bc.Contributions {
			assert.False(t, c.SackID.IsNil())
			assert.NotEmpty(t, c.FarmerName)
		}
	}
}

func TestSackTrace(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	f := registerFarmer(t, l, "Ada", "Nigeria")
	s := deliver(t, l, f, 70, types.NGN(700_00), "Ondo")
	_, batches := packAll(t, l)

	_, err := l.CreateBundle(ctx, cocoa.CreateBundleInput{SackIDs: []id.SackID{s.ID}})
	require.NoError(t, err)

	tr, err := l.SackTrace(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, f.ID.String(), tr.Farmer.ID.String())
	require.Len(t, tr.Bags, 2)

	weight := decimal.Zero
	value := types.Zero("ngn")
	for _, b := range tr.Bags {
		weight = weight.Add(b.WeightKg)
		value = value.Add(b.Value)
		assert.Equal(t, batches[0].ID.String(), b.BatchID.String())
	}
	assert.True(t, weight.Equal(kg(70)))
	assert.Equal(t, types.NGN(700_00), value)

	require.Len(t, tr.Batches, 1)
	require.NotNil(t, tr.Bundle)
	assert.Len(t, tr.Warrants, 1)

	_, err = l.SackTrace(ctx, id.NewSackID())
	assert.ErrorIs(t, err, cocoa.ErrSackNotFound)
}
