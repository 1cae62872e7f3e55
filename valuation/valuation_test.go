package valuation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/cocoa/types"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestAllocatedValue(t *testing.T) {
	tests := []struct {
		name       string
		alloc, kg  string
		value      int64
		wantString string
	}{
		{"whole sack", "70", "70", 7000, "7000"},
		{"first bag of 70kg sack", "63", "70", 7000, "6300"},
		{"second bag of 70kg sack", "7", "70", 7000, "700"},
		{"zero sack weight", "5", "0", 7000, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AllocatedValue(d(tt.alloc), d(tt.kg), types.NGN(tt.value))
			assert.True(t, got.Equal(d(tt.wantString)), "got %s", got)
		})
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name    string
		total   int64
		weights []string
		want    []int64
	}{
		{"even", 500, []string{"1", "1"}, []int64{250, 250}},
		{"proportional", 500, []string{"1000", "3000"}, []int64{125, 375}},
		{"thirds keep every kobo", 100, []string{"1", "1", "1"}, []int64{34, 33, 33}},
		{"largest remainder wins", 10, []string{"0.34", "0.66"}, []int64{3, 7}},
		{"zero weights", 100, []string{"0", "0"}, []int64{0, 0}},
		{"zero weight skipped", 90, []string{"0", "2", "1"}, []int64{0, 60, 30}},
		{"negative total", -100, []string{"1", "1", "1"}, []int64{-34, -33, -33}},
		{"empty", 100, nil, []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			weights := make([]decimal.Decimal, len(tt.weights))
			for i, w := range tt.weights {
				weights[i] = d(w)
			}
			parts := Split(types.NGN(tt.total), weights)
			got := make([]int64, len(parts))
			for i, p := range parts {
				got[i] = p.Amount
				assert.Equal(t, "ngn", p.Currency)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplit_Conserves(t *testing.T) {
	weights := []decimal.Decimal{d("6300.123"), d("700.5"), d("1"), d("0.0001"), d("99999")}
	for _, total := range []int64{0, 1, 7, 999, 123457, 1000000007} {
		parts := Split(types.NGN(total), weights)
		require.Len(t, parts, len(weights))
		assert.Equal(t, total, types.Sum(parts...).Amount)
	}
}

func TestCompose(t *testing.T) {
	c := Compose([]Line{
		{Key: "a", WeightKg: d("21"), Value: d("2100")},
		{Key: "b", WeightKg: d("21"), Value: d("2100")},
		{Key: "c", WeightKg: d("21"), Value: d("4200")},
	})

	assert.True(t, c.TotalWeightKg.Equal(d("63")))
	assert.True(t, c.TotalValue.Equal(d("8400")))
	require.Len(t, c.Shares, 3)
	assert.True(t, c.Shares[2].ValuePct.Equal(d("50")))
	assert.True(t, c.Shares[0].ValuePct.Equal(d("25")))

	sumW, sumV := decimal.Zero, decimal.Zero
	for _, s := range c.Shares {
		sumW = sumW.Add(s.WeightPct)
		sumV = sumV.Add(s.ValuePct)
	}
	assert.True(t, sumW.Equal(d("100")), "weight pct sum %s", sumW)
	assert.True(t, sumV.Equal(d("100")), "value pct sum %s", sumV)
}

func TestCompose_Empty(t *testing.T) {
	c := Compose(nil)
	assert.Empty(t, c.Shares)
	assert.True(t, c.TotalValue.IsZero())
}

func TestMerge(t *testing.T) {
	got := Merge([]Line{
		{Key: "f1", WeightKg: d("10"), Value: d("100")},
		{Key: "f2", WeightKg: d("5"), Value: d("50")},
		{Key: "f1", WeightKg: d("3"), Value: d("30")},
	})
	require.Len(t, got, 2)
	assert.Equal(t, "f1", got[0].Key)
	assert.True(t, got[0].WeightKg.Equal(d("13")))
	assert.True(t, got[0].Value.Equal(d("130")))
}
