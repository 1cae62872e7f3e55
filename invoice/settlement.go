package invoice

import (
	"github.com/xraph/cocoa/id"
	"github.com/xraph/cocoa/types"
)

// BatchSettlement is how one batch's share of an invoice was paid out.
type BatchSettlement struct {
	BatchID id.BatchID `json:"batch_id"`
	// BatchValue is the rounded sum of allocated sack values in the batch.
	BatchValue    types.Money     `json:"batch_value"`
	Allocated     types.Money     `json:"allocated"`
	DebtBurned    types.Money     `json:"debt_burned"`
	Repayments    []Repayment     `json:"repayments,omitempty"`
	PaidToLenders types.Money     `json:"paid_to_lenders"`
	ToFarmers     types.Money     `json:"to_farmers"`
	ToOperator    types.Money     `json:"to_operator"`
	BundlesPaid   []id.BundleID   `json:"bundles_paid,omitempty"`
	FarmerShares  []FarmerPayment `json:"farmer_shares,omitempty"`
}

// Repayment is the principal and interest returned to one funding row.
type Repayment struct {
	BundleID  id.BundleID `json:"bundle_id"`
	LenderID  id.LenderID `json:"lender_id"`
	Principal types.Money `json:"principal"`
	Interest  types.Money `json:"interest"`
}

// Total is principal plus interest.
func (r Repayment) Total() types.Money { return r.Principal.Add(r.Interest) }

// FarmerPayment records the burn and bonus a farmer received for a batch.
type FarmerPayment struct {
	FarmerID id.FarmerID `json:"farmer_id"`
	Burned   types.Money `json:"burned"`
	Bonus    types.Money `json:"bonus"`
}
