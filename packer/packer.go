// Package packer groups weighted items into capacity-limited groups.
//
// Split lets an item straddle consecutive groups and is used to fill
// bags from sacks. Atomic keeps every item whole and is used to fill
// batches from bags.
package packer

import "github.com/shopspring/decimal"

// Item is something to be packed, identified by Key.
type Item struct {
	Key    string
	Weight decimal.Decimal
}

// Portion is the share of an item placed in a group.
type Portion struct {
	Key    string
	Weight decimal.Decimal
}

// Group is one filled container.
type Group struct {
	Portions []Portion
	Weight   decimal.Decimal
}

func (g *Group) add(key string, w decimal.Decimal) {
	g.Portions = append(g.Portions, Portion{Key: key, Weight: w})
	g.Weight = g.Weight.Add(w)
}

// Split packs items in order, filling the current group to capacity and
// carrying any overflow of an item into the next group. Items with no
// weight are skipped.
func Split(items []Item, capacity decimal.Decimal) []Group {
	if !capacity.IsPositive() {
		return nil
	}
	var (
		groups []Group
		cur    Group
	)
	for _, it := range items {
		remaining := it.Weight
		for remaining.IsPositive() {
			space := capacity.Sub(cur.Weight)
			if !space.IsPositive() {
				groups = append(groups, cur)
				cur = Group{}
				space = capacity
			}
			portion := decimal.Min(space, remaining)
			cur.add(it.Key, portion)
			remaining = remaining.Sub(portion)
		}
	}
	if len(cur.Portions) > 0 {
		groups = append(groups, cur)
	}
	return groups
}

// Atomic packs whole items in order. The open group closes when the next
// item would overflow it; an item heavier than capacity is placed alone.
func Atomic(items []Item, capacity decimal.Decimal) []Group {
	var (
		groups []Group
		cur    Group
	)
	flush := func() {
		if len(cur.Portions) > 0 {
			groups = append(groups, cur)
		}
		cur = Group{}
	}
	for _, it := range items {
		if !it.Weight.IsPositive() {
			continue
		}
		if cur.Weight.Add(it.Weight).GreaterThan(capacity) {
			flush()
		}
		if it.Weight.GreaterThan(capacity) {
			var solo Group
			solo.add(it.Key, it.Weight)
			groups = append(groups, solo)
			continue
		}
		cur.add(it.Key, it.Weight)
	}
	flush()
	return groups
}

// Total sums the weight of every group.
func Total(groups []Group) decimal.Decimal {
	total := decimal.Zero
	for _, g := range groups {
		total = total.Add(g.Weight)
	}
	return total
}
