package sqlstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

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

// moneyColumns is embedded with a prefix wherever an entity carries money.
type moneyColumns struct {
	Amount   int64  `gorm:"column:amount;not null"`
	Currency string `gorm:"column:currency;size:8;not null"`
}

func toMoneyColumns(m types.Money) moneyColumns {
	return moneyColumns{Amount: m.Amount, Currency: m.Currency}
}

func (c moneyColumns) money() types.Money {
	return types.New(c.Amount, c.Currency)
}

// Decimals are kept as text so weights and rates survive both dialects
// without float rounding.
func parseDecimal(column, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("cocoa/sql: parse %s %q: %w", column, s, err)
	}
	return d, nil
}

func toJSONIDs(ids []id.ID) datatypes.JSON {
	raw, _ := json.Marshal(id.Strings(ids)) //nolint:errcheck // []string always marshals
	return datatypes.JSON(raw)
}

func fromJSONIDs(raw datatypes.JSON, prefix id.Prefix) ([]id.ID, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var ss []string
	if err := json.Unmarshal(raw, &ss); err != nil {
		return nil, fmt.Errorf("cocoa/sql: decode id list: %w", err)
	}
	if len(ss) == 0 {
		return nil, nil
	}
	return id.ParseList(ss, prefix)
}

// ==================== Farmer models ====================

type farmerModel struct {
	ID        string    `gorm:"column:id;primaryKey;size:64"`
	FirstName string    `gorm:"column:first_name;not null"`
	LastName  string    `gorm:"column:last_name;not null"`
	Email     string    `gorm:"column:email"`
	Phone     string    `gorm:"column:phone"`
	Country   string    `gorm:"column:country;index"`
	City      string    `gorm:"column:city;index"`
	Gender    string    `gorm:"column:gender"`
	Operator  bool      `gorm:"column:operator;not null;default:false;index"`
	CreatedAt time.Time `gorm:"column:created_at;not null;index"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (farmerModel) TableName() string { return "cocoa_farmers" }

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
		Entity:    types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
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
	ID          string       `gorm:"column:id;primaryKey;size:64"`
	FarmerID    string       `gorm:"column:farmer_id;size:64;not null;index"`
	WeightKg    string       `gorm:"column:weight_kg;size:64;not null"`
	ValuePaid   moneyColumns `gorm:"embedded;embeddedPrefix:value_"`
	Warehouse   string       `gorm:"column:warehouse;not null;index"`
	DeliveredAt time.Time    `gorm:"column:delivered_at;not null;index"`
	CreatedAt   time.Time    `gorm:"column:created_at;not null"`
	UpdatedAt   time.Time    `gorm:"column:updated_at;not null"`
}

func (sackModel) TableName() string { return "cocoa_sacks" }

func toSackModel(s *sack.Sack) *sackModel {
	return &sackModel{
		ID:          s.ID.String(),
		FarmerID:    s.FarmerID.String(),
		WeightKg:    s.WeightKg.String(),
		ValuePaid:   toMoneyColumns(s.ValuePaid),
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
		Entity:      types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		ID:          sackID,
		FarmerID:    farmerID,
		WeightKg:    weight,
		ValuePaid:   m.ValuePaid.money(),
		Warehouse:   m.Warehouse,
		DeliveredAt: m.DeliveredAt.UTC(),
	}, nil
}

// ==================== Bag models ====================

type bagModel struct {
	ID        string    `gorm:"column:id;primaryKey;size:64"`
	CreatedAt time.Time `gorm:"column:created_at;not null;index"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (bagModel) TableName() string { return "cocoa_bags" }

type bagAllocationModel struct {
	BagID    string `gorm:"column:bag_id;primaryKey;size:64"`
	Position int    `gorm:"column:position;primaryKey;autoIncrement:false"`
	SackID   string `gorm:"column:sack_id;size:64;not null;index"`
	WeightKg string `gorm:"column:weight_kg;size:64;not null"`
}

func (bagAllocationModel) TableName() string { return "cocoa_bag_allocations" }

func toBagModels(b *bag.Bag) (*bagModel, []bagAllocationModel) {
	allocs := make([]bagAllocationModel, len(b.Allocations))
	for i, a := range b.Allocations {
		allocs[i] = bagAllocationModel{
			BagID:    b.ID.String(),
			Position: i,
			SackID:   a.SackID.String(),
			WeightKg: a.WeightKg.String(),
		}
	}
	return &bagModel{ID: b.ID.String(), CreatedAt: b.CreatedAt, UpdatedAt: b.UpdatedAt}, allocs
}

func fromBagModel(m *bagModel, allocs []bagAllocationModel) (*bag.Bag, error) {
	bagID, err := id.ParseBagID(m.ID)
	if err != nil {
		return nil, err
	}
	b := &bag.Bag{
		Entity:      types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		ID:          bagID,
		Allocations: make([]bag.Allocation, 0, len(allocs)),
	}
	for _, a := range allocs {
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
	ID          string    `gorm:"column:id;primaryKey;size:64"`
	ProductType string    `gorm:"column:product_type;size:32;not null"`
	WeightKg    string    `gorm:"column:weight_kg;size:64;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;not null;index"`
	UpdatedAt   time.Time `gorm:"column:updated_at;not null"`
}

func (batchModel) TableName() string { return "cocoa_batches" }

// batchBagModel keys on bag_id so a bag can join only one batch.
type batchBagModel struct {
	BagID    string `gorm:"column:bag_id;primaryKey;size:64"`
	BatchID  string `gorm:"column:batch_id;size:64;not null;index"`
	Position int    `gorm:"column:position;not null"`
}

func (batchBagModel) TableName() string { return "cocoa_batch_bags" }

func toBatchModels(b *batch.Batch) (*batchModel, []batchBagModel) {
	links := make([]batchBagModel, len(b.BagIDs))
	for i, bagID := range b.BagIDs {
		links[i] = batchBagModel{BagID: bagID.String(), BatchID: b.ID.String(), Position: i}
	}
	return &batchModel{
		ID:          b.ID.String(),
		ProductType: string(b.ProductType),
		WeightKg:    b.WeightKg.String(),
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}, links
}

func fromBatchModel(m *batchModel, links []batchBagModel) (*batch.Batch, error) {
	batchID, err := id.ParseBatchID(m.ID)
	if err != nil {
		return nil, err
	}
	weight, err := parseDecimal("weight_kg", m.WeightKg)
	if err != nil {
		return nil, err
	}
	b := &batch.Batch{
		Entity:      types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		ID:          batchID,
		ProductType: batch.ProductType(m.ProductType),
		WeightKg:    weight,
		BagIDs:      make([]id.BagID, 0, len(links)),
	}
	for _, l := range links {
		bagID, err := id.ParseBagID(l.BagID)
		if err != nil {
			return nil, err
		}
		b.BagIDs = append(b.BagIDs, bagID)
	}
	return b, nil
}

// ==================== Warrant models ====================

type warrantModel struct {
	ID         string         `gorm:"column:id;primaryKey;size:64"`
	Type       string         `gorm:"column:type;size:32;not null;index"`
	CoveredIDs datatypes.JSON `gorm:"column:covered_ids"`
	TotalValue moneyColumns   `gorm:"embedded;embeddedPrefix:total_"`
	CreatedAt  time.Time      `gorm:"column:created_at;not null;index"`
	UpdatedAt  time.Time      `gorm:"column:updated_at;not null"`
}

func (warrantModel) TableName() string { return "cocoa_warrants" }

// warrantCoverageModel enforces one receipt per (type, covered id).
type warrantCoverageModel struct {
	Type      string `gorm:"column:type;primaryKey;size:32"`
	CoveredID string `gorm:"column:covered_id;primaryKey;size:64"`
	WarrantID string `gorm:"column:warrant_id;size:64;not null;index"`
}

func (warrantCoverageModel) TableName() string { return "cocoa_warrant_coverage" }

func toWarrantModels(r *warrant.Receipt) (*warrantModel, []warrantCoverageModel) {
	coverage := make([]warrantCoverageModel, len(r.CoveredIDs))
	for i, c := range r.CoveredIDs {
		coverage[i] = warrantCoverageModel{Type: string(r.Type), CoveredID: c.String(), WarrantID: r.ID.String()}
	}
	return &warrantModel{
		ID:         r.ID.String(),
		Type:       string(r.Type),
		CoveredIDs: toJSONIDs(r.CoveredIDs),
		TotalValue: toMoneyColumns(r.TotalValue),
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}, coverage
}

func fromWarrantModel(m *warrantModel) (*warrant.Receipt, error) {
	warrantID, err := id.ParseWarrantID(m.ID)
	if err != nil {
		return nil, err
	}
	typ := warrant.Type(m.Type)
	covered, err := fromJSONIDs(m.CoveredIDs, typ.CoveredPrefix())
	if err != nil {
		return nil, err
	}
	return &warrant.Receipt{
		Entity:     types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		ID:         warrantID,
		Type:       typ,
		CoveredIDs: covered,
		TotalValue: m.TotalValue.money(),
	}, nil
}

// ==================== Lender models ====================

type lenderModel struct {
	ID            string `gorm:"column:id;primaryKey;size:64"`
	WalletAddress string `gorm:"column:wallet_address;not null"`
	// WalletKey is the lowercased address; wallets compare case-insensitively.
	WalletKey string       `gorm:"column:wallet_key;not null;uniqueIndex"`
	Position  moneyColumns `gorm:"embedded;embeddedPrefix:position_"`
	CreatedAt time.Time    `gorm:"column:created_at;not null;index"`
	UpdatedAt time.Time    `gorm:"column:updated_at;not null"`
}

func (lenderModel) TableName() string { return "cocoa_lenders" }

func toLenderModel(l *lender.Lender) *lenderModel {
	return &lenderModel{
		ID:            l.ID.String(),
		WalletAddress: l.WalletAddress,
		WalletKey:     walletKey(l.WalletAddress),
		Position:      toMoneyColumns(l.Position),
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
		Entity:        types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		ID:            lenderID,
		WalletAddress: m.WalletAddress,
		Position:      m.Position.money(),
	}, nil
}

// ==================== Bundle models ====================

type bundleModel struct {
	ID           string    `gorm:"column:id;primaryKey;size:64"`
	FilterKey    string    `gorm:"column:filter_key;size:32"`
	FilterValue  string    `gorm:"column:filter_value"`
	InterestRate string    `gorm:"column:interest_rate;size:64;not null"`
	Status       string    `gorm:"column:status;size:32;not null;index"`
	CreatedAt    time.Time `gorm:"column:created_at;not null;index"`
	UpdatedAt    time.Time `gorm:"column:updated_at;not null"`
}

func (bundleModel) TableName() string { return "cocoa_bundles" }

// bundleSackModel keys on sack_id so a sack can join only one bundle.
type bundleSackModel struct {
	SackID   string `gorm:"column:sack_id;primaryKey;size:64"`
	BundleID string `gorm:"column:bundle_id;size:64;not null;index"`
	Position int    `gorm:"column:position;not null"`
}

func (bundleSackModel) TableName() string { return "cocoa_bundle_sacks" }

type bundleFundingModel struct {
	BundleID string       `gorm:"column:bundle_id;primaryKey;size:64"`
	LenderID string       `gorm:"column:lender_id;primaryKey;size:64"`
	Position int          `gorm:"column:position;not null"`
	Amount   moneyColumns `gorm:"embedded"`
	FundedAt time.Time    `gorm:"column:funded_at;not null"`
}

func (bundleFundingModel) TableName() string { return "cocoa_bundle_fundings" }

func toBundleModels(b *bundle.Bundle) (*bundleModel, []bundleSackModel) {
	sacks := make([]bundleSackModel, len(b.SackIDs))
	for i, sackID := range b.SackIDs {
		sacks[i] = bundleSackModel{SackID: sackID.String(), BundleID: b.ID.String(), Position: i}
	}
	return &bundleModel{
		ID:           b.ID.String(),
		FilterKey:    string(b.Filter.Key),
		FilterValue:  b.Filter.Value,
		InterestRate: b.InterestRate.String(),
		Status:       string(b.Status),
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}, sacks
}

func fromBundleModel(m *bundleModel, sacks []bundleSackModel, fundings []bundleFundingModel) (*bundle.Bundle, error) {
	bundleID, err := id.ParseBundleID(m.ID)
	if err != nil {
		return nil, err
	}
	rate, err := parseDecimal("interest_rate", m.InterestRate)
	if err != nil {
		return nil, err
	}
	b := &bundle.Bundle{
		Entity:       types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		ID:           bundleID,
		Filter:       bundle.Filter{Key: bundle.FilterKey(m.FilterKey), Value: m.FilterValue},
		InterestRate: rate,
		Status:       bundle.Status(m.Status),
		SackIDs:      make([]id.SackID, 0, len(sacks)),
	}
	for _, s := range sacks {
		sackID, err := id.ParseSackID(s.SackID)
		if err != nil {
			return nil, err
		}
		b.SackIDs = append(b.SackIDs, sackID)
	}
	for _, f := range fundings {
		lenderID, err := id.ParseLenderID(f.LenderID)
		if err != nil {
			return nil, err
		}
		b.Fundings = append(b.Fundings, bundle.Funding{
			LenderID: lenderID,
			Amount:   f.Amount.money(),
			FundedAt: f.FundedAt.UTC(),
		})
	}
	return b, nil
}

// ==================== Token models ====================

// tokenModel carries an autoincrement seq so listings keep append order.
type tokenModel struct {
	Seq         int64        `gorm:"column:seq;primaryKey;autoIncrement"`
	ID          string       `gorm:"column:id;size:64;not null;uniqueIndex"`
	FarmerID    string       `gorm:"column:farmer_id;size:64;not null;index"`
	Kind        string       `gorm:"column:kind;size:16;not null;index"`
	Amount      moneyColumns `gorm:"embedded"`
	Description string       `gorm:"column:description"`
	CreatedAt   time.Time    `gorm:"column:created_at;not null"`
}

func (tokenModel) TableName() string { return "cocoa_tokens" }

func toTokenModel(e *token.Entry) *tokenModel {
	return &tokenModel{
		ID:          e.ID.String(),
		FarmerID:    e.FarmerID.String(),
		Kind:        string(e.Kind),
		Amount:      toMoneyColumns(e.Amount),
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
		Amount:      m.Amount.money(),
		Description: m.Description,
		CreatedAt:   m.CreatedAt.UTC(),
	}, nil
}

// ==================== Tip models ====================

type tipModel struct {
	ID          string       `gorm:"column:id;primaryKey;size:64"`
	FarmerID    string       `gorm:"column:farmer_id;size:64;not null;index"`
	Amount      moneyColumns `gorm:"embedded"`
	Description string       `gorm:"column:description;size:500"`
	TokenID     string       `gorm:"column:token_id;size:64;not null"`
	CreatedAt   time.Time    `gorm:"column:created_at;not null;index"`
	UpdatedAt   time.Time    `gorm:"column:updated_at;not null"`
}

func (tipModel) TableName() string { return "cocoa_tips" }

func toTipModel(t *tip.Tip) *tipModel {
	return &tipModel{
		ID:          t.ID.String(),
		FarmerID:    t.FarmerID.String(),
		Amount:      toMoneyColumns(t.Amount),
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
		Entity:      types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		ID:          tipID,
		FarmerID:    farmerID,
		Amount:      m.Amount.money(),
		Description: m.Description,
		TokenID:     tokenID,
	}, nil
}

// ==================== Invoice models ====================

type invoiceModel struct {
	ID               string         `gorm:"column:id;primaryKey;size:64"`
	AmountPaid       moneyColumns   `gorm:"embedded;embeddedPrefix:paid_"`
	AmountRemaining  moneyColumns   `gorm:"embedded;embeddedPrefix:remaining_"`
	PercentToFarmers string         `gorm:"column:percent_to_farmers;size:64;not null"`
	CoveredBatches   datatypes.JSON `gorm:"column:covered_batches"`
	SettledBatches   datatypes.JSON `gorm:"column:settled_batches"`
	Status           string         `gorm:"column:status;size:16;not null;index"`
	CreatedAt        time.Time      `gorm:"column:created_at;not null;index"`
	UpdatedAt        time.Time      `gorm:"column:updated_at;not null"`
}

func (invoiceModel) TableName() string { return "cocoa_invoices" }

func toInvoiceModel(inv *invoice.Invoice) *invoiceModel {
	return &invoiceModel{
		ID:               inv.ID.String(),
		AmountPaid:       toMoneyColumns(inv.AmountPaid),
		AmountRemaining:  toMoneyColumns(inv.AmountRemaining),
		PercentToFarmers: inv.PercentToFarmers.String(),
		CoveredBatches:   toJSONIDs(inv.CoveredBatches),
		SettledBatches:   toJSONIDs(inv.SettledBatches),
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
	covered, err := fromJSONIDs(m.CoveredBatches, id.PrefixBatch)
	if err != nil {
		return nil, err
	}
	settled, err := fromJSONIDs(m.SettledBatches, id.PrefixBatch)
	if err != nil {
		return nil, err
	}
	return &invoice.Invoice{
		Entity:           types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		ID:               invoiceID,
		AmountPaid:       m.AmountPaid.money(),
		AmountRemaining:  m.AmountRemaining.money(),
		PercentToFarmers: percent,
		CoveredBatches:   covered,
		SettledBatches:   settled,
		Status:           invoice.Status(m.Status),
	}, nil
}
