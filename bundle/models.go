package bundle

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/cocoa/id"
	"github.com/xraph/cocoa/types"
)

// Status is a bundle funding state. The same values serve two concepts:
// the stored status written by funding and settlement events, and the
// coverage derived from funded against total value (see Coverage).
type Status string

const (
	StatusUnfunded        Status = "unfunded"
	StatusPartiallyFunded Status = "partially_funded"
	StatusFunded          Status = "funded"
	StatusPaid            Status = "paid"
)

// Bundle is a financing pool of sacks offered to lenders at a fixed
// interest rate. A sack joins at most one bundle, ever.
type Bundle struct {
	types.Entity
	ID     id.BundleID `json:"id"`
	Filter Filter      `json:"filter"`
	// InterestRate is a percentage: 10 means 10%.
	InterestRate decimal.Decimal `json:"interest_rate"`
	// Status is the event-driven status: funded on any funding, paid on
	// settlement. It is not recomputed from values.
	Status   Status      `json:"status"`
	SackIDs  []id.SackID `json:"sack_ids"`
	Fundings []Funding   `json:"fundings"`
}

// Funding is the accumulated contribution of one lender to a bundle.
type Funding struct {
	LenderID id.LenderID `json:"lender_id"`
	Amount   types.Money `json:"amount"`
	FundedAt time.Time   `json:"funded_at"`
}

// Funded sums the lender contributions.
func (b *Bundle) Funded(currency string) types.Money {
	total := types.Zero(currency)
	for _, f := range b.Fundings {
		total = total.Add(f.Amount)
	}
	return total
}

// HasSack reports whether sackID is a member.
func (b *Bundle) HasSack(sackID id.SackID) bool {
	for _, s := range b.SackIDs {
		if s.String() == sackID.String() {
			return true
		}
	}
	return false
}

// Coverage derives the funding state from value sums: unfunded when
// nothing is funded or the bundle is worth nothing, funded once funding
// reaches the total, partially funded in between.
func Coverage(total, funded types.Money) Status {
	switch {
	case total.Amount <= 0 || funded.Amount <= 0:
		return StatusUnfunded
	case funded.Amount >= total.Amount:
		return StatusFunded
	default:
		return StatusPartiallyFunded
	}
}
