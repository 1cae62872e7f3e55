package warrant

import (
	"github.com/xraph/cocoa/id"
	"github.com/xraph/cocoa/types"
)

// Type distinguishes what a receipt covers.
type Type string

const (
	// TypePreProcessing covers bags.
	TypePreProcessing Type = "pre_processing"
	// TypePostProcessing covers batches.
	TypePostProcessing Type = "post_processing"
)

// Valid reports whether t is a known receipt type.
func (t Type) Valid() bool {
	return t == TypePreProcessing || t == TypePostProcessing
}

// CoveredPrefix is the id prefix a receipt of this type covers.
func (t Type) CoveredPrefix() id.Prefix {
	if t == TypePostProcessing {
		return id.PrefixBatch
	}
	return id.PrefixBag
}

// Receipt attests that a set of bags or batches is pledged. Receipts are
// immutable once issued.
type Receipt struct {
	types.Entity
	ID         id.WarrantID `json:"id"`
	Type       Type         `json:"type"`
	CoveredIDs []id.ID      `json:"covered_ids"`
	TotalValue types.Money  `json:"total_value"`
}

// Covers reports whether the receipt includes target.
func (r *Receipt) Covers(target id.ID) bool {
	for _, c := range r.CoveredIDs {
		if c.String() == target.String() {
			return true
		}
	}
	return false
}
