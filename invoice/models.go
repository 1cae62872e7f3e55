package invoice

import (
	"github.com/shopspring/decimal"

	"github.com/xraph/cocoa/id"
	"github.com/xraph/cocoa/types"
)

type Status string

const (
	StatusOpen    Status = "open"
	StatusSettled Status = "settled"
)

// Invoice is a buyer payment covering an ordered list of batches.
type Invoice struct {
	types.Entity
	ID               id.InvoiceID    `json:"id"`
	AmountPaid       types.Money     `json:"amount_paid"`
	AmountRemaining  types.Money     `json:"amount_remaining"`
	PercentToFarmers decimal.Decimal `json:"percent_to_farmers"`
	CoveredBatches   []id.BatchID    `json:"covered_batches"`
	SettledBatches   []id.BatchID    `json:"settled_batches"`
	Status           Status          `json:"status"`
}

// Pending returns the covered batches not yet settled, in order.
func (inv *Invoice) Pending() []id.BatchID {
	done := make(map[string]bool, len(inv.SettledBatches))
	for _, b := range inv.SettledBatches {
		done[b.String()] = true
	}
	var out []id.BatchID
	for _, b := range inv.CoveredBatches {
		if !done[b.String()] {
			out = append(out, b)
		}
	}
	return out
}
