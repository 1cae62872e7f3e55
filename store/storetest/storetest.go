// Package storetest is a conformance suite every store.Store backend runs
// from its own tests.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/cocoa"
	"github.com/xraph/cocoa/bag"
	"github.com/xraph/cocoa/batch"
	"github.com/xraph/cocoa/bundle"
	"github.com/xraph/cocoa/farmer"
	"github.com/xraph/cocoa/id"
	"github.com/xraph/cocoa/invoice"
	"github.com/xraph/cocoa/lender"
	"github.com/xraph/cocoa/sack"
	"github.com/xraph/cocoa/store"
	"github.com/xraph/cocoa/tip"
	"github.com/xraph/cocoa/token"
	"github.com/xraph/cocoa/types"
	"github.com/xraph/cocoa/warrant"
)

// Factory returns an empty, migrated store. Cleanup is the factory's job.
type Factory func(t *testing.T) store.Store

// epoch is second-aligned so every backend round-trips it exactly.
var epoch = time.Date(2026, time.March, 3, 9, 0, 0, 0, time.UTC)

func at(minutes int) types.Entity {
	return types.EntityAt(epoch.Add(time.Duration(minutes) * time.Minute))
}

func kg(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// Run exercises every store method against a fresh store per subtest.
func Run(t *testing.T, newStore Factory) {
	t.Run("Farmers", func(t *testing.T) { testFarmers(t, newStore(t)) })
	t.Run("Sacks", func(t *testing.T) { testSacks(t, newStore(t)) })
	t.Run("BagsAndBatches", func(t *testing.T) { testBagsAndBatches(t, newStore(t)) })
	t.Run("Warrants", func(t *testing.T) { testWarrants(t, newStore(t)) })
	t.Run("LendersAndBundles", func(t *testing.T) { testLendersAndBundles(t, newStore(t)) })
	t.Run("Tokens", func(t *testing.T) { testTokens(t, newStore(t)) })
	t.Run("Invoices", func(t *testing.T) { testInvoices(t, newStore(t)) })
	t.Run("Tx", func(t *testing.T) { testTx(t, newStore(t)) })
}

func newFarmer(first, country string, minutes int) *farmer.Farmer {
	return &farmer.Farmer{
		Entity:    at(minutes),
		ID:        id.NewFarmerID(),
		FirstName: first,
		LastName:  "Mensah",
		Country:   country,
		City:      "Kumasi",
		Gender:    "male",
	}
}

func newSack(f *farmer.Farmer, weight string, value int64, minutes int) *sack.Sack {
	e := at(minutes)
	return &sack.Sack{
		Entity:      e,
		ID:          id.NewSackID(),
		FarmerID:    f.ID,
		WeightKg:    kg(weight),
		ValuePaid:   types.NGN(value),
		Warehouse:   "Ondo",
		DeliveredAt: e.CreatedAt,
	}
}

func testFarmers(t *testing.T, s store.Store) {
	ctx := context.Background()
	ama := newFarmer("Ama", "Ghana", 2)
	kwame := newFarmer("Kwame", "Ghana", 1)
	ngozi := newFarmer("Ngozi", "Nigeria", 3)
	for _, f := range []*farmer.Farmer{ama, kwame, ngozi} {
		require.NoError(t, s.CreateFarmer(ctx, f))
	}
	assert.ErrorIs(t, s.CreateFarmer(ctx, ama), cocoa.ErrAlreadyExists)

	got, err := s.GetFarmer(ctx, ama.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ama Mensah", got.Name())
	assert.True(t, got.CreatedAt.Equal(ama.CreatedAt))

	_, err = s.GetFarmer(ctx, id.NewFarmerID())
	assert.ErrorIs(t, err, cocoa.ErrFarmerNotFound)

	ghana, err := s.ListFarmers(ctx, farmer.ListOpts{Country: "Ghana"})
	require.NoError(t, err)
	require.Len(t, ghana, 2)
	assert.Equal(t, kwame.ID.String(), ghana[0].ID.String(), "oldest first")

	named, err := s.ListFarmers(ctx, farmer.ListOpts{NameContains: "NGOZI"})
	require.NoError(t, err)
	require.Len(t, named, 1)
	assert.Equal(t, ngozi.ID.String(), named[0].ID.String())

	paged, err := s.ListFarmers(ctx, farmer.ListOpts{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, ama.ID.String(), paged[0].ID.String())

	byID, err := s.ListFarmers(ctx, farmer.ListOpts{IDs: []id.FarmerID{ngozi.ID, kwame.ID}})
	require.NoError(t, err)
	assert.Len(t, byID, 2)

	_, err = s.GetOperator(ctx)
	assert.ErrorIs(t, err, cocoa.ErrFarmerNotFound)

	op := newFarmer("EcoWise", "", 4)
	op.Operator = true
	require.NoError(t, s.CreateFarmer(ctx, op))
	second := newFarmer("Other", "", 5)
	second.Operator = true
	assert.ErrorIs(t, s.CreateFarmer(ctx, second), cocoa.ErrAlreadyExists)

	gotOp, err := s.GetOperator(ctx)
	require.NoError(t, err)
	assert.Equal(t, op.ID.String(), gotOp.ID.String())
}

func testSacks(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := newFarmer("Ama", "Ghana", 0)
	require.NoError(t, s.CreateFarmer(ctx, f))

	late := newSack(f, "70", 700_00, 10)
	early := newSack(f, "12.5", 125_00, 5)
	require.NoError(t, s.CreateSack(ctx, late))
	require.NoError(t, s.CreateSack(ctx, early))
	assert.ErrorIs(t, s.CreateSack(ctx, early), cocoa.ErrAlreadyExists)

	got, err := s.GetSack(ctx, early.ID)
	require.NoError(t, err)
	assert.True(t, got.WeightKg.Equal(kg("12.5")))
	assert.Equal(t, types.NGN(125_00), got.ValuePaid)
	assert.Equal(t, "Ondo", got.Warehouse)

	_, err = s.GetSack(ctx, id.NewSackID())
	assert.ErrorIs(t, err, cocoa.ErrSackNotFound)

	sacks, err := s.ListSacks(ctx, sack.ListOpts{FarmerID: f.ID})
	require.NoError(t, err)
	require.Len(t, sacks, 2)
	assert.Equal(t, early.ID.String(), sacks[0].ID.String(), "ordered by delivery")

	weights, err := s.AllocatedWeights(ctx, []id.SackID{late.ID})
	require.NoError(t, err)
	assert.Empty(t, weights)
}

func testBagsAndBatches(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := newFarmer("Ama", "Ghana", 0)
	require.NoError(t, s.CreateFarmer(ctx, f))
	s1 := newSack(f, "70", 700_00, 1)
	s2 := newSack(f, "20", 200_00, 2)
	require.NoError(t, s.CreateSack(ctx, s1))
	require.NoError(t, s.CreateSack(ctx, s2))

	b1 := &bag.Bag{Entity: at(3), ID: id.NewBagID(), Allocations: []bag.Allocation{
		{SackID: s1.ID, WeightKg: kg("63")},
	}}
	b2 := &bag.Bag{Entity: at(4), ID: id.NewBagID(), Allocations: []bag.Allocation{
		{SackID: s1.ID, WeightKg: kg("7")},
		{SackID: s2.ID, WeightKg: kg("20")},
	}}
	require.NoError(t, s.CreateBag(ctx, b1))
	require.NoError(t, s.CreateBag(ctx, b2))
	assert.ErrorIs(t, s.CreateBag(ctx, b1), cocoa.ErrAlreadyExists)

	got, err := s.GetBag(ctx, b2.ID)
	require.NoError(t, err)
	require.Len(t, got.Allocations, 2)
	assert.Equal(t, s1.ID.String(), got.Allocations[0].SackID.String(), "allocation order kept")
	assert.True(t, got.TotalWeight().Equal(kg("27")))

	_, err = s.GetBag(ctx, id.NewBagID())
	assert.ErrorIs(t, err, cocoa.ErrBagNotFound)

	weights, err := s.AllocatedWeights(ctx, nil)
	require.NoError(t, err)
	assert.True(t, weights[s1.ID.String()].Equal(kg("70")))
	assert.True(t, weights[s2.ID.String()].Equal(kg("20")))

	withS2, err := s.ListBags(ctx, bag.ListOpts{SackID: s2.ID})
	require.NoError(t, err)
	require.Len(t, withS2, 1)
	assert.Equal(t, b2.ID.String(), withS2[0].ID.String())

	bt := &batch.Batch{Entity: at(5), ID: id.NewBatchID(), ProductType: batch.ProductLiquor, WeightKg: kg("63"), BagIDs: []id.BagID{b1.ID}}
	require.NoError(t, s.CreateBatch(ctx, bt))

	again := &batch.Batch{Entity: at(6), ID: id.NewBatchID(), ProductType: batch.ProductButter, WeightKg: kg("90"), BagIDs: []id.BagID{b2.ID, b1.ID}}
	assert.ErrorIs(t, s.CreateBatch(ctx, again), cocoa.ErrBagAlreadyBatched)

	ghost := &batch.Batch{Entity: at(6), ID: id.NewBatchID(), ProductType: batch.ProductButter, WeightKg: kg("1"), BagIDs: []id.BagID{id.NewBagID()}}
	assert.ErrorIs(t, s.CreateBatch(ctx, ghost), cocoa.ErrBagNotFound)

	unbatched, err := s.ListBags(ctx, bag.ListOpts{Unbatched: true})
	require.NoError(t, err)
	require.Len(t, unbatched, 1, "a failed batch leaves its bags free")
	assert.Equal(t, b2.ID.String(), unbatched[0].ID.String())

	gotBatch, err := s.GetBatch(ctx, bt.ID)
	require.NoError(t, err)
	assert.Equal(t, batch.ProductLiquor, gotBatch.ProductType)
	assert.True(t, gotBatch.WeightKg.Equal(kg("63")))
	require.Len(t, gotBatch.BagIDs, 1)

	ofBag, err := s.ListBatches(ctx, batch.ListOpts{BagID: b1.ID})
	require.NoError(t, err)
	require.Len(t, ofBag, 1)
	assert.Equal(t, bt.ID.String(), ofBag[0].ID.String())

	_, err = s.GetBatch(ctx, id.NewBatchID())
	assert.ErrorIs(t, err, cocoa.ErrBatchNotFound)
}

func testWarrants(t *testing.T, s store.Store) {
	ctx := context.Background()
	bagA, bagB := id.NewBagID(), id.NewBagID()

	pre := &warrant.Receipt{Entity: at(1), ID: id.NewWarrantID(), Type: warrant.TypePreProcessing, CoveredIDs: []id.ID{bagA}, TotalValue: types.NGN(630_00)}
	require.NoError(t, s.CreateWarrant(ctx, pre))

	overlap := &warrant.Receipt{Entity: at(2), ID: id.NewWarrantID(), Type: warrant.TypePreProcessing, CoveredIDs: []id.ID{bagB, bagA}, TotalValue: types.NGN(1)}
	assert.ErrorIs(t, s.CreateWarrant(ctx, overlap), cocoa.ErrAlreadyCovered)

	next := &warrant.Receipt{Entity: at(3), ID: id.NewWarrantID(), Type: warrant.TypePreProcessing, CoveredIDs: []id.ID{bagB}, TotalValue: types.NGN(70_00)}
	require.NoError(t, s.CreateWarrant(ctx, next), "rejected receipt left no coverage behind")

	post := &warrant.Receipt{Entity: at(4), ID: id.NewWarrantID(), Type: warrant.TypePostProcessing, CoveredIDs: []id.ID{id.NewBatchID()}, TotalValue: types.NGN(700_00)}
	require.NoError(t, s.CreateWarrant(ctx, post))

	got, err := s.GetWarrant(ctx, pre.ID)
	require.NoError(t, err)
	assert.True(t, got.Covers(bagA))
	assert.Equal(t, types.NGN(630_00), got.TotalValue)

	_, err = s.GetWarrant(ctx, id.NewWarrantID())
	assert.ErrorIs(t, err, cocoa.ErrWarrantNotFound)

	pres, err := s.ListWarrants(ctx, warrant.ListOpts{Type: warrant.TypePreProcessing})
	require.NoError(t, err)
	require.Len(t, pres, 2)
	assert.Equal(t, pre.ID.String(), pres[0].ID.String())

	all, err := s.ListWarrants(ctx, warrant.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func testLendersAndBundles(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := newFarmer("Ama", "Ghana", 0)
	require.NoError(t, s.CreateFarmer(ctx, f))
	s1 := newSack(f, "30", 1000_00, 1)
	s2 := newSack(f, "30", 2000_00, 2)
	require.NoError(t, s.CreateSack(ctx, s1))
	require.NoError(t, s.CreateSack(ctx, s2))

	alice := &lender.Lender{Entity: at(1), ID: id.NewLenderID(), WalletAddress: "0xA11CE", Position: types.NGN(5000_00)}
	require.NoError(t, s.CreateLender(ctx, alice))
	clash := &lender.Lender{Entity: at(2), ID: id.NewLenderID(), WalletAddress: "0xa11ce", Position: types.NGN(1)}
	assert.ErrorIs(t, s.CreateLender(ctx, clash), cocoa.ErrAlreadyExists)

	require.NoError(t, s.UpdateLenderPosition(ctx, alice.ID, types.NGN(3500_00)))
	got, err := s.GetLender(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NGN(3500_00), got.Position)
	assert.ErrorIs(t, s.UpdateLenderPosition(ctx, id.NewLenderID(), types.NGN(1)), cocoa.ErrLenderNotFound)

	byWallet, err := s.ListLenders(ctx, lender.ListOpts{WalletAddress: "0XA11CE"})
	require.NoError(t, err)
	assert.Len(t, byWallet, 1)

	b := &bundle.Bundle{
		Entity:       at(3),
		ID:           id.NewBundleID(),
		Filter:       bundle.Filter{Key: bundle.FilterCountry, Value: "Ghana"},
		InterestRate: kg("7.5"),
		Status:       bundle.StatusUnfunded,
		SackIDs:      []id.SackID{s1.ID},
	}
	require.NoError(t, s.CreateBundle(ctx, b))

	dup := &bundle.Bundle{Entity: at(4), ID: id.NewBundleID(), Status: bundle.StatusUnfunded, SackIDs: []id.SackID{s2.ID, s1.ID}}
	assert.ErrorIs(t, s.CreateBundle(ctx, dup), cocoa.ErrSackNotEligible)

	fundedAt := epoch.Add(time.Hour)
	require.NoError(t, s.AddFunding(ctx, b.ID, bundle.Funding{LenderID: alice.ID, Amount: types.NGN(600_00), FundedAt: fundedAt}))
	require.NoError(t, s.AddFunding(ctx, b.ID, bundle.Funding{LenderID: alice.ID, Amount: types.NGN(400_00), FundedAt: fundedAt}))
	assert.ErrorIs(t, s.AddFunding(ctx, id.NewBundleID(), bundle.Funding{LenderID: alice.ID, Amount: types.NGN(1)}), cocoa.ErrBundleNotFound)
	require.NoError(t, s.UpdateBundleStatus(ctx, b.ID, bundle.StatusFunded))
	assert.ErrorIs(t, s.UpdateBundleStatus(ctx, id.NewBundleID(), bundle.StatusPaid), cocoa.ErrBundleNotFound)

	gotB, err := s.GetBundle(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, bundle.StatusFunded, gotB.Status)
	assert.True(t, gotB.InterestRate.Equal(kg("7.5")))
	assert.Equal(t, bundle.FilterCountry, gotB.Filter.Key)
	require.Len(t, gotB.Fundings, 1, "same lender accumulates")
	assert.Equal(t, types.NGN(1000_00), gotB.Fundings[0].Amount)
	assert.True(t, gotB.HasSack(s1.ID))

	ofSack, err := s.ListBundles(ctx, bundle.ListOpts{SackIDs: []id.SackID{s1.ID, s2.ID}})
	require.NoError(t, err)
	require.Len(t, ofSack, 1)

	paid, err := s.ListBundles(ctx, bundle.ListOpts{Status: bundle.StatusPaid})
	require.NoError(t, err)
	assert.Empty(t, paid)

	_, err = s.GetBundle(ctx, id.NewBundleID())
	assert.ErrorIs(t, err, cocoa.ErrBundleNotFound)
}

func testTokens(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := newFarmer("Ama", "Ghana", 0)
	other := newFarmer("Kofi", "Ghana", 0)
	require.NoError(t, s.CreateFarmer(ctx, f))
	require.NoError(t, s.CreateFarmer(ctx, other))

	entry := func(farmerID id.FarmerID, kind token.Kind, amount int64, desc string) *token.Entry {
		return &token.Entry{ID: id.NewTokenID(), FarmerID: farmerID, Kind: kind, Amount: types.NGN(amount), Description: desc, CreatedAt: epoch}
	}
	require.NoError(t, s.AppendTokens(ctx,
		entry(f.ID, token.KindDebt, 700_00, "first"),
		entry(f.ID, token.KindInternal, 50_00, "second"),
		entry(other.ID, token.KindDebt, 10_00, "elsewhere"),
	))
	require.NoError(t, s.AppendTokens(ctx, entry(f.ID, token.KindDebt, -300_00, "third")))
	require.NoError(t, s.AppendTokens(ctx))

	history, err := s.ListTokens(ctx, token.ListOpts{FarmerID: f.ID})
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, []string{"first", "second", "third"},
		[]string{history[0].Description, history[1].Description, history[2].Description}, "append order")

	debt, err := s.ListTokens(ctx, token.ListOpts{FarmerID: f.ID, Kind: token.KindDebt})
	require.NoError(t, err)
	assert.Len(t, debt, 2)

	balances, err := s.Balances(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NGN(400_00), balances[token.KindDebt])
	assert.Equal(t, types.NGN(50_00), balances[token.KindInternal])

	empty, err := s.Balances(ctx, id.NewFarmerID())
	require.NoError(t, err)
	assert.Empty(t, empty)

	tp := &tip.Tip{Entity: at(1), ID: id.NewTipID(), FarmerID: f.ID, Amount: types.NGN(5_00), Description: "thanks", TokenID: history[1].ID}
	require.NoError(t, s.CreateTip(ctx, tp))
	assert.ErrorIs(t, s.CreateTip(ctx, tp), cocoa.ErrAlreadyExists)

	tips, err := s.ListTips(ctx, tip.ListOpts{FarmerID: f.ID})
	require.NoError(t, err)
	require.Len(t, tips, 1)
	assert.Equal(t, history[1].ID.String(), tips[0].TokenID.String())

	none, err := s.ListTips(ctx, tip.ListOpts{FarmerID: other.ID})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testInvoices(t *testing.T, s store.Store) {
	ctx := context.Background()
	b1, b2 := id.NewBatchID(), id.NewBatchID()

	inv := &invoice.Invoice{
		Entity:           at(1),
		ID:               id.NewInvoiceID(),
		AmountPaid:       types.NGN(1000_00),
		AmountRemaining:  types.NGN(1000_00),
		PercentToFarmers: kg("0.5"),
		CoveredBatches:   []id.BatchID{b1, b2},
		Status:           invoice.StatusOpen,
	}
	require.NoError(t, s.CreateInvoice(ctx, inv))
	assert.ErrorIs(t, s.CreateInvoice(ctx, inv), cocoa.ErrAlreadyExists)

	inv.SettledBatches = []id.BatchID{b1}
	inv.AmountRemaining = types.NGN(400_00)
	require.NoError(t, s.UpdateInvoice(ctx, inv))

	got, err := s.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NGN(400_00), got.AmountRemaining)
	assert.True(t, got.PercentToFarmers.Equal(kg("0.5")))
	require.Len(t, got.Pending(), 1)
	assert.Equal(t, b2.String(), got.Pending()[0].String())

	open, err := s.ListInvoices(ctx, invoice.ListOpts{Status: invoice.StatusOpen})
	require.NoError(t, err)
	assert.Len(t, open, 1)

	ghost := &invoice.Invoice{ID: id.NewInvoiceID(), Status: invoice.StatusOpen}
	assert.ErrorIs(t, s.UpdateInvoice(ctx, ghost), cocoa.ErrInvoiceNotFound)
	_, err = s.GetInvoice(ctx, ghost.ID)
	assert.ErrorIs(t, err, cocoa.ErrInvoiceNotFound)
}

func testTx(t *testing.T, s store.Store) {
	ctx := context.Background()
	f := newFarmer("Ama", "Ghana", 0)
	require.NoError(t, s.CreateFarmer(ctx, f))
	boom := errors.New("boom")

	committed := newSack(f, "10", 100_00, 1)
	err := s.Tx(ctx, func(ctx context.Context, tx store.Store) error {
		if err := tx.CreateSack(ctx, committed); err != nil {
			return err
		}
		return tx.AppendTokens(ctx, &token.Entry{ID: id.NewTokenID(), FarmerID: f.ID, Kind: token.KindDebt, Amount: types.NGN(100_00), CreatedAt: epoch})
	})
	require.NoError(t, err)

	discarded := newSack(f, "5", 50_00, 2)
	err = s.Tx(ctx, func(ctx context.Context, tx store.Store) error {
		if err := tx.CreateSack(ctx, discarded); err != nil {
			return err
		}
		// Nested calls join the outer transaction.
		if err := tx.Tx(ctx, func(ctx context.Context, inner store.Store) error {
			return inner.UpdateLenderPosition(ctx, id.NewLenderID(), types.NGN(1))
		}); !errors.Is(err, cocoa.ErrLenderNotFound) {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.GetSack(ctx, committed.ID)
	assert.NoError(t, err, "committed")
	_, err = s.GetSack(ctx, discarded.ID)
	assert.ErrorIs(t, err, cocoa.ErrSackNotFound, "rolled back")

	require.NoError(t, s.Ping(ctx))
}
