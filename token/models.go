package token

import (
	"time"

	"github.com/xraph/cocoa/id"
	"github.com/xraph/cocoa/types"
)

// Kind is the token family an entry belongs to.
type Kind string

const (
	// KindDebt tracks what is owed to a farmer for delivered cocoa.
	KindDebt Kind = "debt"
	// KindInternal tracks bonus and discretionary credit.
	KindInternal Kind = "internal"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool { return k == KindDebt || k == KindInternal }

// Entry is one append-only ledger row. Burns carry negative amounts.
type Entry struct {
	ID          id.TokenID  `json:"id"`
	FarmerID    id.FarmerID `json:"farmer_id"`
	Kind        Kind        `json:"kind"`
	Amount      types.Money `json:"amount"`
	Description string      `json:"description"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Balances is the per-kind sum of a farmer's entries.
type Balances struct {
	FarmerID id.FarmerID `json:"farmer_id"`
	Debt     types.Money `json:"debt"`
	Internal types.Money `json:"internal"`
}
