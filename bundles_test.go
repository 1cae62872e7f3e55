package cocoa_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/cocoa"
	"github.com/xraph/cocoa/bundle"
	"github.com/xraph/cocoa/id"
	"github.com/xraph/cocoa/types"
	"github.com/xraph/cocoa/warrant"
)

func TestIssueWarrant_Exclusive(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	f := registerFarmer(t, l, "Ada", "Nigeria")
	deliver(t, l, f, 70, types.NGN(700_00), "Ondo")

	bags, err := l.AutoPackBags(ctx)
	require.NoError(t, err)
	require.Len(t, bags, 2)

	rc, err := l.IssueWarrant(ctx, warrant.TypePreProcessing, []id.ID{bags[0].ID, bags[0].ID})
	require.NoError(t, err)
	assert.Len(t, rc.CoveredIDs, 1, "duplicates collapse")
	assert.Equal(t, types.NGN(630_00), rc.TotalValue)

	_, err = l.IssueWarrant(ctx, warrant.TypePreProcessing, []id.ID{bags[1].ID, bags[0].ID})
	assert.ErrorIs(t, err, cocoa.ErrAlreadyCovered)

	eligible, err := l.EligibleForWarrant(ctx, warrant.TypePreProcessing)
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	assert.Equal(t, bags[1].ID.String(), eligible[0].String())

	_, err = l.IssueWarrant(ctx, warrant.TypePostProcessing, []id.ID{bags[1].ID})
	assert.True(t, cocoa.IsValidation(err), "post-processing receipts cover batches only")

	batches, err := l.AutoPackBatches(ctx, "")
	require.NoError(t, err)
	require.Len(t, batches, 1)

	post, err := l.IssueWarrant(ctx, warrant.TypePostProcessing, []id.ID{batches[0].ID})
	require.NoError(t, err)
	assert.Equal(t, types.NGN(700_00), post.TotalValue, "post-processing counts each sack once")

	_, err = l.IssueWarrant(ctx, warrant.TypePostProcessing, []id.ID{batches[0].ID})
	assert.ErrorIs(t, err, cocoa.ErrAlreadyCovered)
}

// bundleFixture delivers two warranted sacks worth 1000 and 2000.
func bundleFixture(t *testing.T, l *cocoa.Ledger) []id.SackID {
	t.Helper()
	ada := registerFarmer(t, l, "Ada", "Nigeria")
	kofi := registerFarmer(t, l, "Kofi", "Ghana")
	s1 := deliver(t, l, ada, 30, types.NGN(1000_00), "Ondo")
	s2 := deliver(t, l, kofi, 30, types.NGN(2000_00), "Ondo")
	packAll(t, l)
	return []id.SackID{s1.ID, s2.ID}
}

func TestBundle_PartialFundingStatus(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	sackIDs := bundleFixture(t, l)

	b, err := l.CreateBundle(ctx, cocoa.CreateBundleInput{
		InterestRate: decimal.NewFromInt(10),
		SackIDs:      sackIDs,
	})
	require.NoError(t, err)
	assert.Equal(t, bundle.StatusUnfunded, b.Status)

	ln := registerLender(t, l, "0xA11CE", types.NGN(5000_00))
	sum, err := l.FundBundle(ctx, ln.ID, b.ID, types.NGN(1500_00))
	require.NoError(t, err)

	assert.Equal(t, types.NGN(3000_00), sum.TotalValue)
	assert.Equal(t, types.NGN(1500_00), sum.Funded)
	// Any funding event marks the bundle funded, while coverage is
	// derived from value and is only partial.
	assert.Equal(t, bundle.StatusFunded, sum.Status)
	assert.Equal(t, bundle.StatusPartiallyFunded, sum.Coverage)

	got, err := l.GetLender(ctx, ln.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NGN(3500_00), got.Position)

	fundable, err := l.FundableBundles(ctx)
	require.NoError(t, err)
	require.Len(t, fundable, 1)

	sum, err = l.FundBundle(ctx, ln.ID, b.ID, types.NGN(1500_00))
	require.NoError(t, err)
	assert.Equal(t, bundle.StatusFunded, sum.Coverage)
	require.Len(t, sum.Bundle.Fundings, 1, "same lender accumulates")

	fundable, err = l.FundableBundles(ctx)
	require.NoError(t, err)
	assert.Empty(t, fundable)
}

func TestFundBundle_InsufficientPosition(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	sackIDs := bundleFixture(t, l)

	b, err := l.CreateBundle(ctx, cocoa.CreateBundleInput{SackIDs: sackIDs})
	require.NoError(t, err)
	ln := registerLender(t, l, "0xB0B", types.NGN(1000_00))

	_, err = l.FundBundle(ctx, ln.ID, b.ID, types.NGN(2000_00))
	require.ErrorIs(t, err, cocoa.ErrInsufficientPosition)

	got, err := l.GetLender(ctx, ln.ID)
	require.NoError(t, err)
	assert.Equal(t, types.NGN(1000_00), got.Position, "position unchanged")

	sum, err := l.BundleSummary(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, bundle.StatusUnfunded, sum.Status)
	assert.True(t, sum.Funded.IsZero())

	_, err = l.FundBundle(ctx, ln.ID, b.ID, types.NGN(0))
	assert.True(t, cocoa.IsValidation(err))

	_, err = l.FundBundle(ctx, id.NewLenderID(), b.ID, types.NGN(1))
	assert.ErrorIs(t, err, cocoa.ErrLenderNotFound)
}

func TestBundle_Exclusivity(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	sackIDs := bundleFixture(t, l)

	_, err := l.CreateBundle(ctx, cocoa.CreateBundleInput{SackIDs: sackIDs[:1]})
	require.NoError(t, err)

	_, err = l.CreateBundle(ctx, cocoa.CreateBundleInput{SackIDs: sackIDs})
	assert.ErrorIs(t, err, cocoa.ErrSackNotEligible)

	eligible, err := l.EligibleSacks(ctx, bundle.Filter{})
	require.NoError(t, err)
	require.Len(t, eligible.Sacks, 1)
	assert.Equal(t, sackIDs[1].String(), eligible.Sacks[0].ID.String())
}

func TestBundle_RequiresWarrant(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	f := registerFarmer(t, l, "Ada", "Nigeria")
	s := deliver(t, l, f, 30, types.NGN(300_00), "Ondo")
	_, err := l.AutoPackBags(ctx)
	require.NoError(t, err)

	eligible, err := l.EligibleSacks(ctx, bundle.Filter{})
	require.NoError(t, err)
	assert.Empty(t, eligible.Sacks)

	_, err = l.CreateBundle(ctx, cocoa.CreateBundleInput{SackIDs: []id.SackID{s.ID}})
	assert.ErrorIs(t, err, cocoa.ErrSackNotEligible)
}

func TestEligibleSacks_Filters(t *testing.T) {
	ctx := context.Background()

	t.Run("country", func(t *testing.T) {
		l := newLedger(t)
		sackIDs := bundleFixture(t, l)

		eligible, err := l.EligibleSacks(ctx, bundle.Filter{Key: bundle.FilterCountry, Value: "Ghana"})
		require.NoError(t, err)
		require.Len(t, eligible.Sacks, 1)
		assert.Equal(t, sackIDs[1].String(), eligible.Sacks[0].ID.String())

		_, err = l.CreateBundle(ctx, cocoa.CreateBundleInput{
			Filter:  bundle.Filter{Key: bundle.FilterCountry, Value: "Ghana"},
			SackIDs: sackIDs,
		})
		assert.ErrorIs(t, err, cocoa.ErrSackNotEligible, "sacks must match the bundle filter")
	})

	t.Run("name substring", func(t *testing.T) {
		l := newLedger(t)
		sackIDs := bundleFixture(t, l)

		eligible, err := l.EligibleSacks(ctx, bundle.Filter{Key: bundle.FilterName, Value: "ada"})
		require.NoError(t, err)
		require.Len(t, eligible.Sacks, 1)
		assert.Equal(t, sackIDs[0].String(), eligible.Sacks[0].ID.String())
	})

	t.Run("unknown key is rejected", func(t *testing.T) {
		l := newLedger(t)
		bundleFixture(t, l)

		_, err := l.EligibleSacks(ctx, bundle.Filter{Key: "shoe_size", Value: "42"})
		assert.ErrorIs(t, err, cocoa.ErrInvalidFilter)
	})

	t.Run("empty value is rejected", func(t *testing.T) {
		l := newLedger(t)

		_, err := l.EligibleSacks(ctx, bundle.Filter{Key: bundle.FilterCity})
		assert.ErrorIs(t, err, cocoa.ErrInvalidFilter)
	})

	t.Run("lenient ignores unknown key", func(t *testing.T) {
		l := newLedger(t, cocoa.WithLenientFilters())
		bundleFixture(t, l)

		eligible, err := l.EligibleSacks(ctx, bundle.Filter{Key: "shoe_size", Value: "42"})
		require.NoError(t, err)
		assert.Len(t, eligible.Sacks, 2)
		require.Len(t, eligible.Warnings, 1)
		assert.Contains(t, eligible.Warnings[0], "shoe_size")
	})
}

func TestRegisterLender_UniqueWallet(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	registerLender(t, l, "0xCAFE", types.NGN(100))

	_, err := l.RegisterLender(ctx, cocoa.RegisterLenderInput{WalletAddress: "0xcafe", Position: types.NGN(1)})
	assert.ErrorIs(t, err, cocoa.ErrAlreadyExists)

	_, err = l.RegisterLender(ctx, cocoa.RegisterLenderInput{WalletAddress: "0xF00D", Position: types.NGN(-1)})
	assert.True(t, cocoa.IsValidation(err))

	_, err = l.RegisterLender(ctx, cocoa.RegisterLenderInput{Position: types.NGN(1)})
	assert.True(t, cocoa.IsValidation(err))
}
