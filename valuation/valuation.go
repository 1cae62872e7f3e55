// Package valuation attributes value to the portions of sacks that end up
// in bags and batches, and splits money pro rata without losing a kobo.
package valuation

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/xraph/cocoa/types"
)

var hundred = decimal.NewFromInt(100)

// AllocatedValue is the share of valuePaid carried by allocatedKg of a
// sack weighing sackKg, in unrounded minor units.
func AllocatedValue(allocatedKg, sackKg decimal.Decimal, valuePaid types.Money) decimal.Decimal {
	if !sackKg.IsPositive() {
		return decimal.Zero
	}
	return allocatedKg.Div(sackKg).Mul(valuePaid.Decimal())
}

// Split divides total in proportion to weights using the largest
// remainder method. The parts always sum to total. Non-positive weights
// receive nothing; if every weight is non-positive all parts are zero.
func Split(total types.Money, weights []decimal.Decimal) []types.Money {
	units := apportion(total.Amount, weights)
	out := make([]types.Money, len(units))
	for i, u := range units {
		out[i] = types.New(u, total.Currency)
	}
	return out
}

// Percentages expresses weights as percentages with two decimals that sum
// to exactly 100 when any weight is positive.
func Percentages(weights []decimal.Decimal) []decimal.Decimal {
	bp := apportion(10000, weights)
	out := make([]decimal.Decimal, len(bp))
	for i, b := range bp {
		out[i] = decimal.New(b, -2)
	}
	return out
}

func apportion(total int64, weights []decimal.Decimal) []int64 {
	out := make([]int64, len(weights))
	sum := decimal.Zero
	for _, w := range weights {
		if w.IsPositive() {
			sum = sum.Add(w)
		}
	}
	if total == 0 || !sum.IsPositive() {
		return out
	}

	neg := total < 0
	abs := total
	if neg {
		abs = -total
	}
	t := decimal.NewFromInt(abs)

	type rem struct {
		idx  int
		frac decimal.Decimal
	}
	rems := make([]rem, 0, len(weights))
	assigned := int64(0)
	for i, w := range weights {
		if !w.IsPositive() {
			continue
		}
		quota := t.Mul(w).Div(sum)
		floor := quota.Floor()
		out[i] = floor.IntPart()
		assigned += out[i]
		rems = append(rems, rem{idx: i, frac: quota.Sub(floor)})
	}

	sort.SliceStable(rems, func(a, b int) bool {
		return rems[a].frac.GreaterThan(rems[b].frac)
	})
	for left, k := abs-assigned, 0; left > 0 && len(rems) > 0; left, k = left-1, k+1 {
		out[rems[k%len(rems)].idx]++
	}

	if neg {
		for i := range out {
			out[i] = -out[i]
		}
	}
	return out
}
