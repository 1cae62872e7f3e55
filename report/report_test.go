package report_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/xraph/cocoa"
	"github.com/xraph/cocoa/farmer"
	"github.com/xraph/cocoa/id"
	"github.com/xraph/cocoa/invoice"
	"github.com/xraph/cocoa/report"
	"github.com/xraph/cocoa/store/memory"
	"github.com/xraph/cocoa/token"
	"github.com/xraph/cocoa/types"
)

func render(t *testing.T, sheets ...report.Sheet) *excelize.File {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, report.Write(&buf, sheets...))
	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestWrite_NoSheets(t *testing.T) {
	assert.Error(t, report.Write(io.Discard))
}

func TestComposition(t *testing.T) {
	ctx := context.Background()
	l := cocoa.New(memory.New(), cocoa.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, l.Start(ctx))
	t.Cleanup(func() { _ = l.Stop() })

	ada, err := l.RegisterFarmer(ctx, cocoa.RegisterFarmerInput{FirstName: "Ada", LastName: "Okafor"})
	require.NoError(t, err)
	kemi, err := l.RegisterFarmer(ctx, cocoa.RegisterFarmerInput{FirstName: "Kemi", LastName: "Bello"})
	require.NoError(t, err)
	for _, f := range []*farmer.Farmer{ada, kemi} {
		_, err := l.DeliverSack(ctx, cocoa.DeliverSackInput{
			FarmerID:  f.ID,
			WeightKg:  decimal.NewFromInt(30),
			ValuePaid: types.NGN(300000),
			Warehouse: "Ondo-1",
		})
		require.NoError(t, err)
	}
	bags, err := l.AutoPackBags(ctx)
	require.NoError(t, err)
	require.Len(t, bags, 1)

	comp, err := l.BagComposition(ctx, bags[0].ID)
	require.NoError(t, err)

	f := render(t, report.Composition(comp))
	assert.Equal(t, []string{"Composition"}, f.GetSheetList())

	rows, err := f.GetRows("Composition")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Sack", rows[0][0])
	assert.Equal(t, "Ada Okafor", rows[1][2])
	assert.Equal(t, "50", rows[1][4])
	assert.Equal(t, "Total", rows[3][0])
	assert.Equal(t, "60", rows[3][3])
	assert.Equal(t, "6000", rows[3][5])
}

func TestBalances(t *testing.T) {
	f1 := &farmer.Farmer{ID: id.NewFarmerID(), FirstName: "Ada", LastName: "Okafor", Country: "Nigeria"}
	sheet := report.Balances([]report.FarmerBalance{{
		Farmer: f1,
		Balances: &token.Balances{
			FarmerID: f1.ID,
			Debt:     types.NGN(125050),
			Internal: types.NGN(-2500),
		},
	}})

	rows, err := render(t, sheet).GetRows("Balances")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{f1.ID.String(), "Ada Okafor", "Nigeria", "1250.5", "-25", "ngn"}, rows[1])
}

func TestSettlement(t *testing.T) {
	batchID := id.NewBatchID()
	inv := &invoice.Invoice{
		ID:               id.NewInvoiceID(),
		AmountPaid:       types.NGN(50000),
		AmountRemaining:  types.NGN(0),
		PercentToFarmers: decimal.RequireFromString("0.5"),
		CoveredBatches:   []id.BatchID{batchID},
		SettledBatches:   []id.BatchID{batchID},
		Status:           invoice.StatusSettled,
	}
	farmerID := id.NewFarmerID()
	s := &cocoa.Settlement{
		Invoice: inv,
		Batches: []*invoice.BatchSettlement{{
			BatchID:       batchID,
			BatchValue:    types.NGN(100000),
			Allocated:     types.NGN(50000),
			DebtBurned:    types.NGN(50000),
			PaidToLenders: types.NGN(0),
			ToFarmers:     types.NGN(25000),
			ToOperator:    types.NGN(25000),
			FarmerShares: []invoice.FarmerPayment{
				{FarmerID: farmerID, Burned: types.NGN(50000), Bonus: types.NGN(25000)},
			},
		}},
	}

	f := render(t, report.Settlement(s)...)
	assert.Equal(t, []string{"Invoice", "Batches", "Repayments", "Farmers"}, f.GetSheetList())

	header, err := f.GetRows("Invoice")
	require.NoError(t, err)
	require.Len(t, header, 2)
	assert.Equal(t, "settled", header[1][1])
	assert.Equal(t, batchID.String(), header[1][5])

	batches, err := f.GetRows("Batches")
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, "500", batches[1][4])
	assert.Equal(t, "250", batches[1][7])

	repayments, err := f.GetRows("Repayments")
	require.NoError(t, err)
	assert.Len(t, repayments, 1)

	farmers, err := f.GetRows("Farmers")
	require.NoError(t, err)
	require.Len(t, farmers, 2)
	assert.Equal(t, farmerID.String(), farmers[1][1])
	assert.Equal(t, "250", farmers[1][3])
}
