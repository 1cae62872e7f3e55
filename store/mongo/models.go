package mongo

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xraph/cocoa/bag"
	"github.com/xraph/cocoa/batch"
	"github.com/xraph/cocoa/bundle"
	"github.com/xraph/cocoa/farmer"
	"github.com/xraph/cocoa/id"
	"github.com/xraph/cocoa/invoice"
	"github.com/xraph/cocoa/lender"
	"github.com/xraph/cocoa/sack"
	"github.com/xraph/cocoa/tip"
	"github.com/xraph/cocoa/token"
	"github.com/xraph/cocoa/types"
	"github.com/xraph/cocoa/warrant"
)

// Collection name constants.
const (
	colFarmers  = "cocoa_farmers"
	colSacks    = "cocoa_sacks"
	colBags     = "cocoa_bags"
	colBatches  = "cocoa_batches"
	colWarrants = "cocoa_warrants"
	colLenders  = "cocoa_lenders"
	colBundles  = "cocoa_bundles"
	colTokens   = "cocoa_tokens"
	colTips     = "cocoa_tips"
	colInvoices = "cocoa_invoices"
	colCounters = "cocoa_counters"
)

type moneyModel struct {
	Amount   int64  `bson:"amount"`
	Currency string `bson:"currency"`
}

func toMoneyModel(m types.Money) moneyModel {
	return moneyModel{Amount: m.Amount, Currency: m.Currency}
}

func (m moneyModel) money() types.Money { return types.New(m.Amount, m.Currency) }

func parseDecimal(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("cocoa/mongo: parse %s %q: %w", field, s, err)
	}
	return d, nil
}

func entity(created, updated time.Time) types.Entity {
	return types.Entity{CreatedAt: created.UTC(), UpdatedAt: updated.UTC()}
}

// ==================== Farmer models ====================

type farmerModel struct {
	ID        string    `bson:"_id"`
	FirstName string    `bson:"first_name"`
	LastName  string    `bson:"last_name"`
	Email     string    `bson:"email,omitempty"`
	Phone     string    `bson:"phone,omitempty"`
	Country   string    `bson:"country"`
	City      string    `bson:"city"`
	Gender    string    `bson:"gender"`
	Operator  bool      `bson:"operator"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func toFarmerModel(f *farmer.Farmer) *farmerModel {
	return &farmerModel{
		ID:        f.ID.String(),
		FirstName: f.FirstName,
		LastName:  f.LastName,
		Email:     f.Email,
		Phone:     f.Phone,
		Country:   f.Country,
		City:      f.City,
		Gender:    f.Gender,
		Operator:  f.Operator,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

func fromFarmerModel(m *farmerModel) (*farmer.Farmer, error) {
	farmerID, err := id.ParseFarmerID(m.ID)
	if err != nil {
		return nil, err
	}
	return &farmer.Farmer{
		Entity:    entity(m.CreatedAt, m.UpdatedAt),
		ID:        farmerID,
		FirstName: m.FirstName,
		LastName:  m.LastName,
		Email:     m.Email,
		Phone:     m.Phone,
		Country:   m.Country,
		City:      m.City,
		Gender:    m.Gender,
		Operator:  m.Operator,
	}, nil
}

// ==================== Sack models ====================

type sackModel struct {
	ID          string     `bson:"_id"`
	FarmerID    string     `bson:"farmer_id"`
	WeightKg    string     `bson:"weight_kg"`
	ValuePaid   moneyModel `bson:"value_paid"`
	Warehouse   string     `bson:"warehouse"`
	DeliveredAt time.Time  `bson:"delivered_at"`
	CreatedAt   time.Time  `bson:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at"`
}

func toSackModel(s *sack.Sack) *sackModel {
	return &sackModel{
		ID:          s.ID.String(),
		FarmerID:    s.FarmerID.String(),
		WeightKg:    s.WeightKg.String(),
		ValuePaid:   toMoneyModel(s.ValuePaid),
		Warehouse:   s.Warehouse,
		DeliveredAt: s.DeliveredAt,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

func fromSackModel(m *sackModel) (*sack.Sack, error) {
	sackID, err := id.ParseSackID(m.ID)
	if err != nil {
		return nil, err
	}
	farmerID, err := id.ParseFarmerID(m.FarmerID)
	if err != nil {
		return nil, err
	}
	weight, err := parseDecimal("weight_kg", m.WeightKg)
	if err != nil {
		return nil, err
	}
	return &sack.Sack{
		Entity:      entity(m.CreatedAt, m.UpdatedAt),
		ID:          sackID,
		FarmerID:    farmerID,
		WeightKg:    weight,
		ValuePaid:   m.ValuePaid.money(),
		Warehouse:   m.Warehouse,
		DeliveredAt: m.DeliveredAt.UTC(),
	}, nil
}

// ==================== Bag models ====================

type allocationModel struct {
	SackID   string `bson:"sack_id"`
	WeightKg string `bson:"weight_kg"`
}

type bagModel struct {
	ID          string            `bson:"_id"`
	Allocations []allocationModel `bson:"allocations"`
	CreatedAt   time.Time         `bson:"created_at"`
	UpdatedAt   time.Time         `bson:"updated_at"`
}

func toBagModel(b *bag.Bag) *bagModel {
	allocs := make([]allocationModel, len(b.Allocations))
	for i, a := range b.Allocations {
		allocs[i] = allocationModel{SackID: a.SackID.String(), WeightKg: a.WeightKg.String()}
	}
	return &bagModel{ID: b.ID.String(), Allocations: allocs, CreatedAt: b.CreatedAt, UpdatedAt: b.UpdatedAt}
}

func fromBagModel(m *bagModel) (*bag.Bag, error) {
	bagID, err := id.ParseBagID(m.ID)
	if err != nil {
		return nil, err
	}
	b := &bag.Bag{
		Entity:      entity(m.CreatedAt, m.UpdatedAt),
		ID:          bagID,
		Allocations: make([]bag.Allocation, 0, len(m.Allocations)),
	}
	for _, a := range m.Allocations {
		sackID, err := id.ParseSackID(a.SackID)
		if err != nil {
			return nil, err
		}
		weight, err := parseDecimal("weight_kg", a.WeightKg)
		if err != nil {
			return nil, err
		}
		b.Allocations = append(b.Allocations, bag.Allocation{SackID: sackID, WeightKg: weight})
	}
	return b, nil
}

// ==================== Batch models ====================

type batchModel struct {
	ID          string    `bson:"_id"`
	ProductType string    `bson:"product_type"`
	WeightKg    string    `bson:"weight_kg"`
	BagIDs      []string  `bson:"bag_ids"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func toBatchModel(b *batch.Batch) *batchModel {
	return &batchModel{
		ID:          b.ID.String(),
		ProductType: string(b.ProductType),
		WeightKg:    b.WeightKg.String(),
		BagIDs:      id.Strings(b.BagIDs),
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

func fromBatchModel(m *batchModel) (*batch.Batch, error) {
	batchID, err := id.ParseBatchID(m.ID)
	if err != nil {
		return nil, err
	}
	weight, err := parseDecimal("weight_kg", m.WeightKg)
	if err != nil {
		return nil, err
	}
	bagIDs, err := id.ParseList(m.BagIDs, id.PrefixBag)
	if err != nil {
		return nil, err
	}
	return &batch.Batch{
		Entity:      entity(m.CreatedAt, m.UpdatedAt),
		ID:          batchID,
		ProductType: batch.ProductType(m.ProductType),
		WeightKg:    weight,
		BagIDs:      bagIDs,
	}, nil
}

// ==================== Warrant models ====================

type warrantModel struct {
	ID         string     `bson:"_id"`
	Type       string     `bson:"type"`
	CoveredIDs []string   `bson:"covered_ids"`
	TotalValue moneyModel `bson:"total_value"`
	CreatedAt  time.Time  `bson:"created_at"`
	UpdatedAt  time.Time  `bson:"updated_at"`
}

func toWarrantModel(r *warrant.Receipt) *warrantModel {
	return &warrantModel{
		ID:         r.ID.String(),
		Type:       string(r.Type),
		CoveredIDs: id.Strings(r.CoveredIDs),
		TotalValue: toMoneyModel(r.TotalValue),
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func fromWarrantModel(m *warrantModel) (*warrant.Receipt, error) {
	warrantID, err := id.ParseWarrantID(m.ID)
	if err != nil {
		return nil, err
	}
	typ := warrant.Type(m.Type)
	covered, err := id.ParseList(m.CoveredIDs, typ.CoveredPrefix())
	if err != nil {
		return nil, err
	}
	return &warrant.Receipt{
		Entity:     entity(m.CreatedAt, m.UpdatedAt),
		ID:         warrantID,
		Type:       typ,
		CoveredIDs: covered,
		TotalValue: m.TotalValue.money(),
	}, nil
}

// ==================== Lender models ====================

type lenderModel struct {
	ID            string     `bson:"_id"`
	WalletAddress string     `bson:"wallet_address"`
	WalletKey     string     `bson:"wallet_key"`
	Position      moneyModel `bson:"position"`
	CreatedAt     time.Time  `bson:"created_at"`
	UpdatedAt     time.Time  `bson:"updated_at"`
}

func toLenderModel(l *lender.Lender) *lenderModel {
	return &lenderModel{
		ID:            l.ID.String(),
		WalletAddress: l.WalletAddress,
		WalletKey:     walletKey(l.WalletAddress),
		Position:      toMoneyModel(l.Position),
		CreatedAt:     l.CreatedAt,
		UpdatedAt:     l.UpdatedAt,
	}
}

func fromLenderModel(m *lenderModel) (*lender.Lender, error) {
	lenderID, err := id.ParseLenderID(m.ID)
	if err != nil {
		return nil, err
	}
	return &lender.Lender{
		Entity:        entity(m.CreatedAt, m.UpdatedAt),
		ID:            lenderID,
		WalletAddress: m.WalletAddress,
		Position:      m.Position.money(),
	}, nil
}

// ==================== Bundle models ====================

type fundingModel struct {
	LenderID string     `bson:"lender_id"`
	Amount   moneyModel `bson:"amount"`
	FundedAt time.Time  `bson:"funded_at"`
}

type bundleModel struct {
	ID           string         `bson:"_id"`
	FilterKey    string         `bson:"filter_key,omitempty"`
	FilterValue  string         `bson:"filter_value,omitempty"`
	InterestRate string         `bson:"interest_rate"`
	Status       string         `bson:"status"`
	SackIDs      []string       `bson:"sack_ids"`
	Fundings     []fundingModel `bson:"fundings"`
	CreatedAt    time.Time      `bson:"created_at"`
	UpdatedAt    time.Time      `bson:"updated_at"`
}

func toBundleModel(b *bundle.Bundle) *bundleModel {
	fundings := make([]fundingModel, len(b.Fundings))
	for i, f := range b.Fundings {
		fundings[i] = fundingModel{LenderID: f.LenderID.String(), Amount: toMoneyModel(f.Amount), FundedAt: f.FundedAt}
	}
	return &bundleModel{
		ID:           b.ID.String(),
		FilterKey:    string(b.Filter.Key),
		FilterValue:  b.Filter.Value,
		InterestRate: b.InterestRate.String(),
		Status:       string(b.Status),
		SackIDs:      id.Strings(b.SackIDs),
		Fundings:     fundings,
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}
}

func fromBundleModel(m *bundleModel) (*bundle.Bundle, error) {
	bundleID, err := id.ParseBundleID(m.ID)
	if err != nil {
		return nil, err
	}
	rate, err := parseDecimal("interest_rate", m.InterestRate)
	if err != nil {
		return nil, err
	}
	sackIDs, err := id.ParseList(m.SackIDs, id.PrefixSack)
	if err != nil {
		return nil, err
	}
	b := &bundle.Bundle{
		Entity:       entity(m.CreatedAt, m.UpdatedAt),
		ID:           bundleID,
		Filter:       bundle.Filter{Key: bundle.FilterKey(m.FilterKey), Value: m.FilterValue},
		InterestRate: rate,
		Status:       bundle.Status(m.Status),
		SackIDs:      sackIDs,
	}
	for _, f := range m.Fundings {
		lenderID, err := id.ParseLenderID(f.LenderID)
		if err != nil {
			return nil, err
		}
		b.Fundings = append(b.Fundings, bundle.Funding{LenderID: lenderID, Amount: f.Amount.money(), FundedAt: f.FundedAt.UTC()})
	}
	return b, nil
}

// ==================== Token models ====================

type tokenModel struct {
	ID          string    `bson:"_id"`
	Seq         int64     `bson:"seq"`
	FarmerID    string    `bson:"farmer_id"`
	Kind        string    `bson:"kind"`
	Amount      int64     `bson:"amount"`
	Currency    string    `bson:"currency"`
	Description string    `bson:"description"`
	CreatedAt   time.Time `bson:"created_at"`
}

func toTokenModel(e *token.Entry, seq int64) *tokenModel {
	return &tokenModel{
		ID:          e.ID.String(),
		Seq:         seq,
		FarmerID:    e.FarmerID.String(),
		Kind:        string(e.Kind),
		Amount:      e.Amount.Amount,
		Currency:    e.Amount.Currency,
		Description: e.Description,
		CreatedAt:   e.CreatedAt,
	}
}

func fromTokenModel(m *tokenModel) (*token.Entry, error) {
	tokenID, err := id.ParseTokenID(m.ID)
	if err != nil {
		return nil, err
	}
	farmerID, err := id.ParseFarmerID(m.FarmerID)
	if err != nil {
		return nil, err
	}
	return &token.Entry{
		ID:          tokenID,
		FarmerID:    farmerID,
		Kind:        token.Kind(m.Kind),
		Amount:      types.New(m.Amount, m.Currency),
		Description: m.Description,
		CreatedAt:   m.CreatedAt.UTC(),
	}, nil
}

// ==================== Tip models ====================

type tipModel struct {
	ID          string     `bson:"_id"`
	FarmerID    string     `bson:"farmer_id"`
	Amount      moneyModel `bson:"amount"`
	Description string     `bson:"description"`
	TokenID     string     `bson:"token_id"`
	CreatedAt   time.Time  `bson:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at"`
}

func toTipModel(t *tip.Tip) *tipModel {
	return &tipModel{
		ID:          t.ID.String(),
		FarmerID:    t.FarmerID.String(),
		Amount:      toMoneyModel(t.Amount),
		Description: t.Description,
		TokenID:     t.TokenID.String(),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func fromTipModel(m *tipModel) (*tip.Tip, error) {
	tipID, err := id.ParseTipID(m.ID)
	if err != nil {
		return nil, err
	}
	farmerID, err := id.ParseFarmerID(m.FarmerID)
	if err != nil {
		return nil, err
	}
	tokenID, err := id.ParseTokenID(m.TokenID)
	if err != nil {
		return nil, err
	}
	return &tip.Tip{
		Entity:      entity(m.CreatedAt, m.UpdatedAt),
		ID:          tipID,
		FarmerID:    farmerID,
		Amount:      m.Amount.money(),
		Description: m.Description,
		TokenID:     tokenID,
	}, nil
}

// ==================== Invoice models ====================

type invoiceModel struct {
	ID               string     `bson:"_id"`
	AmountPaid       moneyModel `bson:"amount_paid"`
	AmountRemaining  moneyModel `bson:"amount_remaining"`
	PercentToFarmers string     `bson:"percent_to_farmers"`
	CoveredBatches   []string   `bson:"covered_batches"`
	SettledBatches   []string   `bson:"settled_batches"`
	Status           string     `bson:"status"`
	CreatedAt        time.Time  `bson:"created_at"`
	UpdatedAt        time.Time  `bson:"updated_at"`
}

func toInvoiceModel(inv *invoice.Invoice) *invoiceModel {
	return &invoiceModel{
		ID:               inv.ID.String(),
		AmountPaid:       toMoneyModel(inv.AmountPaid),
		AmountRemaining:  toMoneyModel(inv.AmountRemaining),
		PercentToFarmers: inv.PercentToFarmers.String(),
		CoveredBatches:   id.Strings(inv.CoveredBatches),
		SettledBatches:   id.Strings(inv.SettledBatches),
		Status:           string(inv.Status),
		CreatedAt:        inv.CreatedAt,
		UpdatedAt:        inv.UpdatedAt,
	}
}

func fromInvoiceModel(m *invoiceModel) (*invoice.Invoice, error) {
	invoiceID, err := id.ParseInvoiceID(m.ID)
	if err != nil {
		return nil, err
	}
	percent, err := parseDecimal("percent_to_farmers", m.PercentToFarmers)
	if err != nil {
		return nil, err
	}
	covered, err := id.ParseList(m.CoveredBatches, id.PrefixBatch)
	if err != nil {
		return nil, err
	}
	settled, err := id.ParseList(m.SettledBatches, id.PrefixBatch)
	if err != nil {
		return nil, err
	}
	return &invoice.Invoice{
		Entity:           entity(m.CreatedAt, m.UpdatedAt),
		ID:               invoiceID,
		AmountPaid:       m.AmountPaid.money(),
		AmountRemaining:  m.AmountRemaining.money(),
		PercentToFarmers: percent,
		CoveredBatches:   covered,
		SettledBatches:   settled,
		Status:           invoice.Status(m.Status),
	}, nil
}
