package batch

import (
	"github.com/shopspring/decimal"

	"github.com/xraph/cocoa/id"
	"github.com/xraph/cocoa/types"
)

// ProductType is what a batch is processed into.
type ProductType string

const (
	ProductButter ProductType = "butter"
	ProductLiquor ProductType = "liquor"
	ProductPowder ProductType = "powder"
)

// Valid reports whether p is a known product type.
func (p ProductType) Valid() bool {
	switch p {
	case ProductButter, ProductLiquor, ProductPowder:
		return true
	}
	return false
}

// Batch groups whole bags for one production run.
type Batch struct {
	types.Entity
	ID          id.BatchID      `json:"id"`
	ProductType ProductType     `json:"product_type"`
	WeightKg    decimal.Decimal `json:"weight_kg"`
	BagIDs      []id.BagID      `json:"bag_ids"`
}

var kgPerTonne = decimal.NewFromInt(1000)

// WeightMT is the batch weight in metric tonnes.
func (b *Batch) WeightMT() decimal.Decimal {
	return b.WeightKg.Div(kgPerTonne)
}
