package tip

import (
	"github.com/xraph/cocoa/id"
	"github.com/xraph/cocoa/types"
)

// Tip is a discretionary payment to a farmer, paired with the internal
// token mint that carries it.
type Tip struct {
	types.Entity
	ID          id.TipID    `json:"id"`
	FarmerID    id.FarmerID `json:"farmer_id"`
	Amount      types.Money `json:"amount"`
	Description string      `json:"description"`
	TokenID     id.TokenID  `json:"token_id"`
}
