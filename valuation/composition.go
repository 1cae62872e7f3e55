package valuation

import "github.com/shopspring/decimal"

// Line is one contributor to an aggregate: a sack portion in a bag, or a
// farmer's summed portions in a batch.
type Line struct {
	Key      string          `json:"key"`
	WeightKg decimal.Decimal `json:"weight_kg"`
	// Value is in unrounded minor units.
	Value decimal.Decimal `json:"value"`
}

// Share is a Line with its derived percentages.
type Share struct {
	Line
	WeightPct decimal.Decimal `json:"weight_pct"`
	ValuePct  decimal.Decimal `json:"value_pct"`
}

// Composition is the breakdown of an aggregate.
type Composition struct {
	Shares        []Share         `json:"shares"`
	TotalWeightKg decimal.Decimal `json:"total_weight_kg"`
	TotalValue    decimal.Decimal `json:"total_value"`
}

// Compose totals lines and derives weight and value percentages.
// Percentages are computed on demand and never persisted.
func Compose(lines []Line) Composition {
	c := Composition{TotalWeightKg: decimal.Zero, TotalValue: decimal.Zero}
	weights := make([]decimal.Decimal, len(lines))
	values := make([]decimal.Decimal, len(lines))
	for i, l := range lines {
		c.TotalWeightKg = c.TotalWeightKg.Add(l.WeightKg)
		c.TotalValue = c.TotalValue.Add(l.Value)
		weights[i] = l.WeightKg
		values[i] = l.Value
	}
	wp := Percentages(weights)
	vp := Percentages(values)
	c.Shares = make([]Share, len(lines))
	for i, l := range lines {
		c.Shares[i] = Share{Line: l, WeightPct: wp[i], ValuePct: vp[i]}
	}
	return c
}

// Merge folds lines sharing a key into one, keeping first-seen order.
func Merge(lines []Line) []Line {
	idx := make(map[string]int, len(lines))
	var out []Line
	for _, l := range lines {
		if i, ok := idx[l.Key]; ok {
			out[i].WeightKg = out[i].WeightKg.Add(l.WeightKg)
			out[i].Value = out[i].Value.Add(l.Value)
			continue
		}
		idx[l.Key] = len(out)
		out = append(out, l)
	}
	return out
}
