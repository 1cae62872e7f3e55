package packer

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	bagCap   = decimal.NewFromInt(63)
	batchCap = decimal.NewFromInt(60000)
)

func kg(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSplit_SeventyKgSack(t *testing.T) {
	groups := Split([]Item{{Key: "s1", Weight: kg("70")}}, bagCap)

	require.Len(t, groups, 2)
	assert.True(t, groups[0].Weight.Equal(kg("63")))
	assert.True(t, groups[1].Weight.Equal(kg("7")))
	assert.Equal(t, "s1", groups[0].Portions[0].Key)
	assert.Equal(t, "s1", groups[1].Portions[0].Key)
}

func TestSplit_FillsAcrossItems(t *testing.T) {
	items := []Item{
		{Key: "a", Weight: kg("40")},
		{Key: "b", Weight: kg("40")},
		{Key: "c", Weight: kg("10.5")},
	}
	groups := Split(items, bagCap)

	require.Len(t, groups, 2)
	require.Len(t, groups[0].Portions, 2)
	assert.True(t, groups[0].Portions[1].Weight.Equal(kg("23")), "b fills the rest of the first bag")
	require.Len(t, groups[1].Portions, 2)
	assert.True(t, groups[1].Portions[0].Weight.Equal(kg("17")))
	assert.True(t, groups[1].Weight.Equal(kg("27.5")))
}

func TestSplit_EmptyAndZeroWeight(t *testing.T) {
	assert.Empty(t, Split(nil, bagCap))
	assert.Empty(t, Split([]Item{{Key: "z", Weight: decimal.Zero}}, bagCap))
	assert.Empty(t, Split([]Item{{Key: "n", Weight: kg("-4")}}, bagCap))
}

func TestSplit_CapacityAndConservation(t *testing.T) {
	weights := []string{"12.5", "80", "63", "0.25", "44", "130.75", "1", "62.99"}
	items := make([]Item, len(weights))
	input := decimal.Zero
	for i, w := range weights {
		items[i] = Item{Key: fmt.Sprintf("s%d", i), Weight: kg(w)}
		input = input.Add(kg(w))
	}

	groups := Split(items, bagCap)

	perItem := map[string]decimal.Decimal{}
	for _, g := range groups {
		assert.True(t, g.Weight.LessThanOrEqual(bagCap), "group over capacity: %s", g.Weight)
		for _, p := range g.Portions {
			perItem[p.Key] = perItem[p.Key].Add(p.Weight)
		}
	}
	assert.True(t, Total(groups).Equal(input))
	for _, it := range items {
		assert.True(t, perItem[it.Key].Equal(it.Weight), "item %s not conserved", it.Key)
	}
}

func TestAtomic(t *testing.T) {
	tests := []struct {
		name    string
		weights []int64
		want    [][]string
	}{
		{"empty", nil, nil},
		{"single group", []int64{20000, 20000, 20000}, [][]string{{"b0", "b1", "b2"}}},
		{"closes on overflow", []int64{30000, 30001, 29999}, [][]string{{"b0"}, {"b1", "b2"}}},
		{"oversized alone", []int64{1000, 70000, 500}, [][]string{{"b0"}, {"b1"}, {"b2"}}},
		{"zero weight skipped", []int64{0, 100}, [][]string{{"b1"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items := make([]Item, len(tt.weights))
			for i, w := range tt.weights {
				items[i] = Item{Key: fmt.Sprintf("b%d", i), Weight: decimal.NewFromInt(w)}
			}
			groups := Atomic(items, batchCap)

			var got [][]string
			for _, g := range groups {
				var keys []string
				for _, p := range g.Portions {
					keys = append(keys, p.Key)
				}
				got = append(got, keys)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAtomic_NeverSplits(t *testing.T) {
	items := []Item{
		{Key: "a", Weight: kg("59999.5")},
		{Key: "b", Weight: kg("0.75")},
		{Key: "c", Weight: kg("61000")},
	}
	groups := Atomic(items, batchCap)

	seen := map[string]int{}
	for _, g := range groups {
		if len(g.Portions) > 1 {
			assert.True(t, g.Weight.LessThanOrEqual(batchCap))
		}
		for _, p := range g.Portions {
			seen[p.Key]++
		}
	}
	assert.Equal(t, map[string]int{"a": 1, "b": 1, "c": 1}, seen)
	assert.Len(t, groups, 3)
}
