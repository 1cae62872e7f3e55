package cocoa_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/cocoa"
	"github.com/xraph/cocoa/bundle"
	"github.com/xraph/cocoa/farmer"
	"github.com/xraph/cocoa/id"
	"github.com/xraph/cocoa/invoice"
	"github.com/xraph/cocoa/store"
	"github.com/xraph/cocoa/store/memory"
	"github.com/xraph/cocoa/token"
	"github.com/xraph/cocoa/types"
)

func pct(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// twoFarmerBatch delivers 600 + 400 into a single batch.
func twoFarmerBatch(t *testing.T, l *cocoa.Ledger) (ada, kofi *farmer.Farmer, batchID id.BatchID, sackIDs []id.SackID) {
	t.Helper()
	ada = registerFarmer(t, l, "Ada", "Nigeria")
	kofi = registerFarmer(t, l, "Kofi", "Ghana")
	s1 := deliver(t, l, ada, 40, types.NGN(600_00), "Ondo")
	s2 := deliver(t, l, kofi, 20, types.NGN(400_00), "Ondo")
	_, batches := packAll(t, l)
	require.Len(t, batches, 1)
	return ada, kofi, batches[0].ID, []id.SackID{s1.ID, s2.ID}
}

func balances(t *testing.T, l *cocoa.Ledger, farmerID id.FarmerID) *token.Balances {
	t.Helper()
	b, err := l.Balances(context.Background(), farmerID)
	require.NoError(t, err)
	return b
}

func TestSettleInvoice_NoLenders(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	ada, kofi, batchID, _ := twoFarmerBatch(t, l)

	res, err := l.SettleInvoice(ctx, cocoa.SettleInput{
		BatchIDs:         []id.BatchID{batchID},
		AmountPaid:       types.NGN(500_00),
		PercentToFarmers: pct("0.5"),
	})
	require.NoError(t, err)
	require.Len(t, res.Batches, 1)

	bs := res.Batches[0]
	assert.Equal(t, types.NGN(1000_00), bs.BatchValue)
	assert.Equal(t, types.NGN(500_00), bs.Allocated)
	assert.Equal(t, types.NGN(500_00), bs.DebtBurned)
	assert.True(t, bs.PaidToLenders.IsZero())
	assert.Empty(t, bs.Repayments)
	assert.Equal(t, types.NGN(250_00), bs.ToFarmers)
	assert.Equal(t, types.NGN(250_00), bs.ToOperator)

	// Burns and bonuses follow each farmer's 60/40 share of the batch.
	a := balances(t, l, ada.ID)
	assert.Equal(t, types.NGN(300_00), a.Debt)
	assert.Equal(t, types.NGN(150_00), a.Internal)
	k := balances(t, l, kofi.ID)
	assert.Equal(t, types.NGN(200_00), k.Debt)
	assert.Equal(t, types.NGN(100_00), k.Internal)

	op, err := l.Operator(ctx)
	require.NoError(t, err)
	assert.Equal(t, "EcoWise Enterprise", op.Name())
	assert.Equal(t, types.NGN(250_00), balances(t, l, op.ID).Internal)

	inv, err := l.GetInvoice(ctx, res.Invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusSettled, inv.Status)
	assert.True(t, inv.AmountRemaining.IsZero())
	require.Len(t, inv.SettledBatches, 1)
	assert.Equal(t, batchID.String(), inv.SettledBatches[0].String())

	history, err := l.TokenHistory(ctx, token.ListOpts{FarmerID: ada.ID, Kind: token.KindDebt})
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "Invoice "+inv.ID.String()+": debt burn for batch "+batchID.String(), history[1].Description)
	assert.Equal(t, types.NGN(-300_00), history[1].Amount)
}

func TestSettleInvoice_RepaysLenders(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	ada, _, batchID, sackIDs := twoFarmerBatch(t, l)

	b, err := l.CreateBundle(ctx, cocoa.CreateBundleInput{InterestRate: decimal.NewFromInt(10), SackIDs: sackIDs})
	require.NoError(t, err)
	alice := registerLender(t, l, "0xA11CE", types.NGN(1000_00))
	bob := registerLender(t, l, "0xB0B", types.NGN(1000_00))
	_, err = l.FundBundle(ctx, alice.ID, b.ID, types.NGN(300_00))
	require.NoError(t, err)
	_, err = l.FundBundle(ctx, bob.ID, b.ID, types.NGN(100_00))
	require.NoError(t, err)

	res, err := l.SettleInvoice(ctx, cocoa.SettleInput{
		BatchIDs:         []id.BatchID{batchID},
		AmountPaid:       types.NGN(200_00),
		PercentToFarmers: pct("0.5"),
	})
	require.NoError(t, err)
	bs := res.Batches[0]

	// Principal is split 3:1 and each lender earns 10% on top.
	require.Len(t, bs.Repayments, 2)
	byLender := map[string]invoice.Repayment{}
	for _, r := range bs.Repayments {
		byLender[r.LenderID.String()] = r
	}
	assert.Equal(t, types.NGN(150_00), byLender[alice.ID.String()].Principal)
	assert.Equal(t, types.NGN(15_00), byLender[alice.ID.String()].Interest)
	assert.Equal(t, types.NGN(50_00), byLender[bob.ID.String()].Principal)
	assert.Equal(t, types.NGN(5_00), byLender[bob.ID.String()].Interest)
	assert.Equal(t, types.NGN(220_00), bs.PaidToLenders)

	// Lenders took more than was allocated, so nothing is left over.
	assert.True(t, bs.ToFarmers.IsZero())
	assert.True(t, bs.ToOperator.IsZero())

	got, err := l.GetLender(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NGN(1000_00-300_00+165_00), got.Position)

	sum, err := l.BundleSummary(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, bundle.StatusPaid, sum.Status)
	require.Len(t, bs.BundlesPaid, 1)

	_, err = l.FundBundle(ctx, alice.ID, b.ID, types.NGN(1))
	assert.ErrorIs(t, err, cocoa.ErrBundlePaid)

	assert.Equal(t, types.NGN(600_00-120_00), balances(t, l, ada.ID).Debt)
}

func TestSettleInvoice_ZeroValueBatchClosesBundles(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	ada := registerFarmer(t, l, "Ada", "Nigeria")
	s := deliver(t, l, ada, 10, types.NGN(0), "Ondo")
	_, batches := packAll(t, l)
	require.Len(t, batches, 1)

	b, err := l.CreateBundle(ctx, cocoa.CreateBundleInput{InterestRate: decimal.NewFromInt(10), SackIDs: []id.SackID{s.ID}})
	require.NoError(t, err)
	alice := registerLender(t, l, "0xA11CE", types.NGN(100_00))
	_, err = l.FundBundle(ctx, alice.ID, b.ID, types.NGN(50_00))
	require.NoError(t, err)

	res, err := l.SettleInvoice(ctx, cocoa.SettleInput{
		BatchIDs:         batchIDs(batches),
		AmountPaid:       types.NGN(100_00),
		PercentToFarmers: pct("0.5"),
	})
	require.NoError(t, err)
	require.Len(t, res.Batches, 1)

	bs := res.Batches[0]
	assert.True(t, bs.BatchValue.IsZero())
	assert.True(t, bs.Allocated.IsZero())
	assert.Empty(t, bs.Repayments)
	require.Len(t, bs.BundlesPaid, 1)
	assert.Equal(t, b.ID.String(), bs.BundlesPaid[0].String())

	sum, err := l.BundleSummary(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, bundle.StatusPaid, sum.Status)

	// Nothing was allocated, so the payment and the lender are untouched.
	assert.Equal(t, types.NGN(100_00), res.Invoice.AmountRemaining)
	assert.Equal(t, invoice.StatusSettled, res.Invoice.Status)
	got, err := l.GetLender(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NGN(50_00), got.Position)
}

func TestSettleInvoice_RepaysEachBundleFundingSeparately(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	_, _, batchID, sackIDs := twoFarmerBatch(t, l)

	first, err := l.CreateBundle(ctx, cocoa.CreateBundleInput{SackIDs: sackIDs[:1]})
	require.NoError(t, err)
	second, err := l.CreateBundle(ctx, cocoa.CreateBundleInput{SackIDs: sackIDs[1:]})
	require.NoError(t, err)
	alice := registerLender(t, l, "0xA11CE", types.NGN(1000_00))
	bob := registerLender(t, l, "0xB0B", types.NGN(1000_00))

	// Alice puts the same amount into both bundles; each funding is its
	// own repayment row and counts in full.
	for _, f := range []struct {
		lender id.LenderID
		bundle id.BundleID
		amount types.Money
	}{
		{alice.ID, first.ID, types.NGN(100_00)},
		{alice.ID, second.ID, types.NGN(100_00)},
		{bob.ID, first.ID, types.NGN(200_00)},
	} {
		_, err := l.FundBundle(ctx, f.lender, f.bundle, f.amount)
		require.NoError(t, err)
	}

	res, err := l.SettleInvoice(ctx, cocoa.SettleInput{
		BatchIDs:   []id.BatchID{batchID},
		AmountPaid: types.NGN(400_00),
	})
	require.NoError(t, err)
	bs := res.Batches[0]

	require.Len(t, bs.Repayments, 3)
	rows := map[string]int{}
	principal := map[string]types.Money{}
	for _, r := range bs.Repayments {
		key := r.LenderID.String()
		rows[key]++
		if _, ok := principal[key]; !ok {
			principal[key] = types.Zero("ngn")
		}
		principal[key] = principal[key].Add(r.Principal)
		assert.True(t, r.Interest.IsZero())
	}
	assert.Equal(t, 2, rows[alice.ID.String()])
	assert.Equal(t, 1, rows[bob.ID.String()])
	assert.Equal(t, types.NGN(200_00), principal[alice.ID.String()])
	assert.Equal(t, types.NGN(200_00), principal[bob.ID.String()])
	assert.Len(t, bs.BundlesPaid, 2)
}

func TestSettleInvoice_Conservation(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, cocoa.WithBatchCapacity(kg(60)))
	ada := registerFarmer(t, l, "Ada", "Nigeria")
	kofi := registerFarmer(t, l, "Kofi", "Ghana")
	deliver(t, l, ada, 37, types.NGN(333_33), "Ondo")
	deliver(t, l, kofi, 23, types.NGN(777_77), "Ondo")
	deliver(t, l, ada, 50, types.NGN(1234_56), "Ikeja")
	_, batches := packAll(t, l)
	require.Len(t, batches, 2)

	paid := types.NGN(1500_01)
	res, err := l.SettleInvoice(ctx, cocoa.SettleInput{
		BatchIDs:         batchIDs(batches),
		AmountPaid:       paid,
		PercentToFarmers: pct("0.37"),
	})
	require.NoError(t, err)

	allocated := types.Zero("ngn")
	for _, bs := range res.Batches {
		burned := types.Zero("ngn")
		bonus := types.Zero("ngn")
		for _, fp := range bs.FarmerShares {
			burned = burned.Add(fp.Burned)
			bonus = bonus.Add(fp.Bonus)
		}
		assert.Equal(t, bs.Allocated, burned, "burns sum to the allocation")
		assert.Equal(t, bs.DebtBurned, burned)
		assert.Equal(t, bs.ToFarmers, bonus)
		assert.Equal(t, bs.Allocated.Max(bs.PaidToLenders), bs.PaidToLenders.Add(bs.ToFarmers).Add(bs.ToOperator))
		allocated = allocated.Add(bs.Allocated)
	}
	assert.True(t, allocated.LessThan(paid) || allocated.Equal(paid))
	assert.Equal(t, paid.Subtract(allocated), res.Invoice.AmountRemaining)
}

func TestSettleInvoice_StopsWhenPaymentIsConsumed(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t, cocoa.WithBatchCapacity(kg(60)))
	f := registerFarmer(t, l, "Ada", "Nigeria")
	deliver(t, l, f, 60, types.NGN(1000_00), "Ondo")
	deliver(t, l, f, 60, types.NGN(1000_00), "Ikeja")
	_, batches := packAll(t, l)
	require.Len(t, batches, 2)

	res, err := l.SettleInvoice(ctx, cocoa.SettleInput{
		BatchIDs:         batchIDs(batches),
		AmountPaid:       types.NGN(400_00),
		PercentToFarmers: pct("1"),
	})
	require.NoError(t, err)
	require.Len(t, res.Batches, 1)
	assert.Equal(t, invoice.StatusSettled, res.Invoice.Status)
	assert.Len(t, res.Invoice.SettledBatches, 1)
	assert.Equal(t, []string{batches[1].ID.String()}, id.Strings(res.Invoice.Pending()))
}

func TestSettleInvoice_Validation(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	_, _, batchID, _ := twoFarmerBatch(t, l)

	tests := []struct {
		name string
		in   cocoa.SettleInput
	}{
		{"zero amount", cocoa.SettleInput{BatchIDs: []id.BatchID{batchID}, AmountPaid: types.NGN(0)}},
		{"percent above one", cocoa.SettleInput{BatchIDs: []id.BatchID{batchID}, AmountPaid: types.NGN(1), PercentToFarmers: pct("1.5")}},
		{"negative percent", cocoa.SettleInput{BatchIDs: []id.BatchID{batchID}, AmountPaid: types.NGN(1), PercentToFarmers: pct("-0.1")}},
		{"no batches", cocoa.SettleInput{AmountPaid: types.NGN(1)}},
		{"wrong currency", cocoa.SettleInput{BatchIDs: []id.BatchID{batchID}, AmountPaid: types.GHS(1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.SettleInvoice(ctx, tt.in)
			assert.True(t, cocoa.IsValidation(err), "got %v", err)
		})
	}

	_, err := l.SettleInvoice(ctx, cocoa.SettleInput{BatchIDs: []id.BatchID{id.NewBatchID()}, AmountPaid: types.NGN(1)})
	assert.ErrorIs(t, err, cocoa.ErrBatchNotFound)

	invoices, err := l.ListInvoices(ctx, invoice.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, invoices, "rejected settlements write nothing")
}

// failingStore fails the invoice update that would record a second
// settled batch while armed.
type failingStore struct {
	store.Store
	armed *atomic.Bool
}

var errInjected = errors.New("injected failure")

func (s failingStore) Tx(ctx context.Context, fn store.TxFunc) error {
	return s.Store.Tx(ctx, func(ctx context.Context, tx store.Store) error {
		return fn(ctx, failingStore{Store: tx, armed: s.armed})
	})
}

func (s failingStore) UpdateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	if s.armed.Load() && len(inv.SettledBatches) == 2 {
		return errInjected
	}
	return s.Store.UpdateInvoice(ctx, inv)
}

func TestSettleInvoice_ResumeAfterPartialFailure(t *testing.T) {
	ctx := context.Background()
	armed := &atomic.Bool{}
	l := newLedgerOn(t, failingStore{Store: memory.New(), armed: armed}, cocoa.WithBatchCapacity(kg(60)))
	ada := registerFarmer(t, l, "Ada", "Nigeria")
	kofi := registerFarmer(t, l, "Kofi", "Ghana")
	deliver(t, l, ada, 60, types.NGN(1000_00), "Ondo")
	deliver(t, l, kofi, 60, types.NGN(1000_00), "Ikeja")
	_, batches := packAll(t, l)
	require.Len(t, batches, 2)

	armed.Store(true)
	res, err := l.SettleInvoice(ctx, cocoa.SettleInput{
		BatchIDs:   batchIDs(batches),
		AmountPaid: types.NGN(1500_00),
	})
	require.ErrorIs(t, err, errInjected)
	require.NotNil(t, res)
	require.Len(t, res.Batches, 1)

	inv, err := l.GetInvoice(ctx, res.Invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusOpen, inv.Status)
	assert.Equal(t, types.NGN(500_00), inv.AmountRemaining)
	require.Len(t, inv.SettledBatches, 1)

	// The failed batch left no trace.
	op, err := l.Operator(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.NGN(1000_00), balances(t, l, op.ID).Internal)

	armed.Store(false)
	resumed, err := l.ResumeSettlement(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, resumed.Batches, 1)
	assert.Equal(t, types.NGN(500_00), resumed.Batches[0].Allocated)
	assert.Equal(t, invoice.StatusSettled, resumed.Invoice.Status)
	assert.True(t, resumed.Invoice.AmountRemaining.IsZero())
	assert.Equal(t, types.NGN(1500_00), balances(t, l, op.ID).Internal)

	_, err = l.ResumeSettlement(ctx, inv.ID)
	assert.ErrorIs(t, err, cocoa.ErrInvoiceSettled)
}
