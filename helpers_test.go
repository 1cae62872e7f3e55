package cocoa_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/xraph/cocoa"
	"github.com/xraph/cocoa/bag"
	"github.com/xraph/cocoa/batch"
	"github.com/xraph/cocoa/farmer"
	"github.com/xraph/cocoa/id"
	"github.com/xraph/cocoa/lender"
	"github.com/xraph/cocoa/sack"
	"github.com/xraph/cocoa/store"
	"github.com/xraph/cocoa/store/memory"
	"github.com/xraph/cocoa/types"
	"github.com/xraph/cocoa/warrant"
)

var harvestDay = time.Date(2026, time.March, 3, 9, 0, 0, 0, time.UTC)

func kg(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func newLedger(t *testing.T, opts ...cocoa.Option) *cocoa.Ledger {
	t.Helper()
	return newLedgerOn(t, memory.New(), opts...)
}

func newLedgerOn(t *testing.T, st store.Store, opts ...cocoa.Option) *cocoa.Ledger {
	t.Helper()
	base := []cocoa.Option{
		cocoa.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		cocoa.WithClock(func() time.Time { return harvestDay }),
	}
	l := cocoa.New(st, append(base, opts...)...)
	require.NoError(t, l.Start(context.Background()))
	t.Cleanup(func() { _ = l.Stop() })
	return l
}

func registerFarmer(t *testing.T, l *cocoa.Ledger, first, country string) *farmer.Farmer {
	t.Helper()
	f, err := l.RegisterFarmer(context.Background(), cocoa.RegisterFarmerInput{
		FirstName: first,
		LastName:  "Adeyemi",
		Country:   country,
		City:      "Akure",
		Gender:    "female",
	})
	require.NoError(t, err)
	return f
}

func deliver(t *testing.T, l *cocoa.Ledger, f *farmer.Farmer, weight int64, value types.Money, warehouse string) *sack.Sack {
	t.Helper()
	s, err := l.DeliverSack(context.Background(), cocoa.DeliverSackInput{
		FarmerID:  f.ID,
		WeightKg:  kg(weight),
		ValuePaid: value,
		Warehouse: warehouse,
	})
	require.NoError(t, err)
	return s
}

func registerLender(t *testing.T, l *cocoa.Ledger, wallet string, position types.Money) *lender.Lender {
	t.Helper()
	ln, err := l.RegisterLender(context.Background(), cocoa.RegisterLenderInput{
		WalletAddress: wallet,
		Position:      position,
	})
	require.NoError(t, err)
	return ln
}

// packAll bags every sack, warrants the bags and batches them.
func packAll(t *testing.T, l *cocoa.Ledger) ([]*bag.Bag, []*batch.Batch) {
	t.Helper()
	ctx := context.Background()

	bags, err := l.AutoPackBags(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, bags)

	bagIDs := make([]id.ID, len(bags))
	for i, b := range bags {
		bagIDs[i] = b.ID
	}
	_, err = l.IssueWarrant(ctx, warrant.TypePreProcessing, bagIDs)
	require.NoError(t, err)

	batches, err := l.AutoPackBatches(ctx, batch.ProductLiquor)
	require.NoError(t, err)
	require.NotEmpty(t, batches)
	return bags, batches
}

func batchIDs(batches []*batch.Batch) []id.BatchID {
	out := make([]id.BatchID, len(batches))
	for i, b := range batches {
		out[i] = b.ID
	}
	return out
}
