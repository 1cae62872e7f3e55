package memory

import (
	"maps"
	"slices"

	"github.com/xraph/cocoa/bag"
	"github.com/xraph/cocoa/batch"
	"github.com/xraph/cocoa/bundle"
	"github.com/xraph/cocoa/farmer"
	"github.com/xraph/cocoa/invoice"
	"github.com/xraph/cocoa/lender"
	"github.com/xraph/cocoa/sack"
	"github.com/xraph/cocoa/tip"
	"github.com/xraph/cocoa/token"
	"github.com/xraph/cocoa/warrant"
)

// Stored values are copied on the way in and out so callers can never
// mutate committed state, and so a transaction snapshot only needs to
// copy the maps.

func cloneFarmer(f *farmer.Farmer) *farmer.Farmer { c := *f; return &c }
func cloneSack(s *sack.Sack) *sack.Sack           { c := *s; return &c }
func cloneLender(l *lender.Lender) *lender.Lender { c := *l; return &c }
func cloneTip(t *tip.Tip) *tip.Tip                { c := *t; return &c }
func cloneToken(e *token.Entry) *token.Entry      { c := *e; return &c }

func cloneBag(b *bag.Bag) *bag.Bag {
	c := *b
	c.Allocations = slices.Clone(b.Allocations)
	return &c
}

func cloneBatch(b *batch.Batch) *batch.Batch {
	c := *b
	c.BagIDs = slices.Clone(b.BagIDs)
	return &c
}

func cloneWarrant(r *warrant.Receipt) *warrant.Receipt {
	c := *r
	c.CoveredIDs = slices.Clone(r.CoveredIDs)
	return &c
}

func cloneBundle(b *bundle.Bundle) *bundle.Bundle {
	c := *b
	c.SackIDs = slices.Clone(b.SackIDs)
	c.Fundings = slices.Clone(b.Fundings)
	return &c
}

func cloneInvoice(inv *invoice.Invoice) *invoice.Invoice {
	c := *inv
	c.CoveredBatches = slices.Clone(inv.CoveredBatches)
	c.SettledBatches = slices.Clone(inv.SettledBatches)
	return &c
}

func (d *state) clone() *state {
	c := &state{
		farmers:      maps.Clone(d.farmers),
		sacks:        maps.Clone(d.sacks),
		bags:         maps.Clone(d.bags),
		batches:      maps.Clone(d.batches),
		batchOfBag:   maps.Clone(d.batchOfBag),
		warrants:     maps.Clone(d.warrants),
		covered:      make(map[warrant.Type]map[string]string, len(d.covered)),
		lenders:      maps.Clone(d.lenders),
		bundles:      maps.Clone(d.bundles),
		bundleOfSack: maps.Clone(d.bundleOfSack),
		tokens:       slices.Clone(d.tokens),
		tips:         maps.Clone(d.tips),
		invoices:     maps.Clone(d.invoices),
	}
	for t, m := range d.covered {
		c.covered[t] = maps.Clone(m)
	}
	return c
}
