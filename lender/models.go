package lender

import (
	"github.com/xraph/cocoa/id"
	"github.com/xraph/cocoa/types"
)

// Lender funds bundles out of its position. The position falls on funding
// and rises on repayment; it never goes negative.
type Lender struct {
	types.Entity
	ID            id.LenderID `json:"id"`
	WalletAddress string      `json:"wallet_address"`
	Position      types.Money `json:"position"`
}
