// Package observability provides a metrics plugin for the cocoa ledger that
// records supply-chain event counts through a MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/cocoa/bag"
	"github.com/xraph/cocoa/batch"
	"github.com/xraph/cocoa/bundle"
	"github.com/xraph/cocoa/farmer"
	"github.com/xraph/cocoa/invoice"
	"github.com/xraph/cocoa/lender"
	"github.com/xraph/cocoa/plugin"
	"github.com/xraph/cocoa/sack"
	"github.com/xraph/cocoa/tip"
	"github.com/xraph/cocoa/token"
	"github.com/xraph/cocoa/types"
	"github.com/xraph/cocoa/warrant"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin             = (*MetricsExtension)(nil)
	_ plugin.OnFarmerRegistered = (*MetricsExtension)(nil)
	_ plugin.OnSackDelivered    = (*MetricsExtension)(nil)
	_ plugin.OnBagsPacked       = (*MetricsExtension)(nil)
	_ plugin.OnBatchesCreated   = (*MetricsExtension)(nil)
	_ plugin.OnWarrantIssued    = (*MetricsExtension)(nil)
	_ plugin.OnLenderRegistered = (*MetricsExtension)(nil)
	_ plugin.OnBundleCreated    = (*MetricsExtension)(nil)
	_ plugin.OnBundleFunded     = (*MetricsExtension)(nil)
	_ plugin.OnBatchSettled     = (*MetricsExtension)(nil)
	_ plugin.OnInvoiceSettled   = (*MetricsExtension)(nil)
	_ plugin.OnSettlementFailed = (*MetricsExtension)(nil)
	_ plugin.OnTokensRecorded   = (*MetricsExtension)(nil)
	_ plugin.OnTipRecorded      = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records ledger-wide supply-chain metrics. Money
// histograms are in minor units of the settlement currency.
type MetricsExtension struct {
	// Intake
	FarmersRegistered Counter
	SacksDelivered    Counter
	SackWeightKg      Histogram
	SackValue         Histogram

	// Packing
	BagsPacked     Counter
	BagWeightKg    Histogram
	BatchesCreated Counter
	BatchWeightKg  Histogram
	WarrantsIssued Counter

	// Financing
	LendersRegistered Counter
	BundlesCreated    Counter
	BundlesFunded     Counter
	FundingAmount     Histogram

	// Settlement
	BatchesSettled     Counter
	DebtBurned         Histogram
	PaidToLenders      Histogram
	PaidToFarmers      Histogram
	InvoicesSettled    Counter
	SettlementFailures Counter

	// Tokens
	DebtEntries     Counter
	InternalEntries Counter
	TipsRecorded    Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		FarmersRegistered: factory.Counter("cocoa.farmer.registered"),
		SacksDelivered:    factory.Counter("cocoa.sack.delivered"),
		SackWeightKg:      factory.Histogram("cocoa.sack.weight_kg"),
		SackValue:         factory.Histogram("cocoa.sack.value"),

		BagsPacked:     factory.Counter("cocoa.bag.packed"),
		BagWeightKg:    factory.Histogram("cocoa.bag.weight_kg"),
		BatchesCreated: factory.Counter("cocoa.batch.created"),
		BatchWeightKg:  factory.Histogram("cocoa.batch.weight_kg"),
		WarrantsIssued: factory.Counter("cocoa.warrant.issued"),

		LendersRegistered: factory.Counter("cocoa.lender.registered"),
		BundlesCreated:    factory.Counter("cocoa.bundle.created"),
		BundlesFunded:     factory.Counter("cocoa.bundle.funded"),
		FundingAmount:     factory.Histogram("cocoa.bundle.funding_amount"),

		BatchesSettled:     factory.Counter("cocoa.settlement.batches"),
		DebtBurned:         factory.Histogram("cocoa.settlement.debt_burned"),
		PaidToLenders:      factory.Histogram("cocoa.settlement.paid_to_lenders"),
		PaidToFarmers:      factory.Histogram("cocoa.settlement.paid_to_farmers"),
		InvoicesSettled:    factory.Counter("cocoa.invoice.settled"),
		SettlementFailures: factory.Counter("cocoa.invoice.failed"),

		DebtEntries:     factory.Counter("cocoa.token.debt.entries"),
		InternalEntries: factory.Counter("cocoa.token.internal.entries"),
		TipsRecorded:    factory.Counter("cocoa.tip.recorded"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnFarmerRegistered implements plugin.OnFarmerRegistered.
func (m *MetricsExtension) OnFarmerRegistered(_ context.Context, _ *farmer.Farmer) error {
	m.FarmersRegistered.Inc()
	return nil
}

// OnSackDelivered implements plugin.OnSackDelivered.
func (m *MetricsExtension) OnSackDelivered(_ context.Context, s *sack.Sack, _ *token.Entry) error {
	m.SacksDelivered.Inc()
	m.SackWeightKg.Observe(s.WeightKg.InexactFloat64())
	m.SackValue.Observe(minor(s.ValuePaid))
	return nil
}

// OnBagsPacked implements plugin.OnBagsPacked.
func (m *MetricsExtension) OnBagsPacked(_ context.Context, bags []*bag.Bag) error {
	m.BagsPacked.Add(float64(len(bags)))
	for _, b := range bags {
		m.BagWeightKg.Observe(b.TotalWeight().InexactFloat64())
	}
	return nil
}

// OnBatchesCreated implements plugin.OnBatchesCreated.
func (m *MetricsExtension) OnBatchesCreated(_ context.Context, batches []*batch.Batch) error {
	m.BatchesCreated.Add(float64(len(batches)))
	for _, b := range batches {
		m.BatchWeightKg.Observe(b.WeightKg.InexactFloat64())
	}
	return nil
}

// OnWarrantIssued implements plugin.OnWarrantIssued.
func (m *MetricsExtension) OnWarrantIssued(_ context.Context, _ *warrant.Receipt) error {
	m.WarrantsIssued.Inc()
	return nil
}

// OnLenderRegistered implements plugin.OnLenderRegistered.
func (m *MetricsExtension) OnLenderRegistered(_ context.Context, _ *lender.Lender) error {
	m.LendersRegistered.Inc()
	return nil
}

// OnBundleCreated implements plugin.OnBundleCreated.
func (m *MetricsExtension) OnBundleCreated(_ context.Context, _ *bundle.Bundle) error {
	m.BundlesCreated.Inc()
	return nil
}

// OnBundleFunded implements plugin.OnBundleFunded.
func (m *MetricsExtension) OnBundleFunded(_ context.Context, _ *bundle.Bundle, _ *lender.Lender, amount types.Money) error {
	m.BundlesFunded.Inc()
	m.FundingAmount.Observe(minor(amount))
	return nil
}

// OnBatchSettled implements plugin.OnBatchSettled.
func (m *MetricsExtension) OnBatchSettled(_ context.Context, _ *invoice.Invoice, bs *invoice.BatchSettlement) error {
	m.BatchesSettled.Inc()
	m.DebtBurned.Observe(minor(bs.DebtBurned))
	m.PaidToLenders.Observe(minor(bs.PaidToLenders))
	m.PaidToFarmers.Observe(minor(bs.ToFarmers))
	return nil
}

// OnInvoiceSettled implements plugin.OnInvoiceSettled.
func (m *MetricsExtension) OnInvoiceSettled(_ context.Context, _ *invoice.Invoice) error {
	m.InvoicesSettled.Inc()
	return nil
}

// OnSettlementFailed implements plugin.OnSettlementFailed.
func (m *MetricsExtension) OnSettlementFailed(_ context.Context, _ *invoice.Invoice, _ error) error {
	m.SettlementFailures.Inc()
	return nil
}

// OnTokensRecorded implements plugin.OnTokensRecorded.
func (m *MetricsExtension) OnTokensRecorded(_ context.Context, entries []*token.Entry) error {
	for _, e := range entries {
		switch e.Kind {
		case token.KindDebt:
			m.DebtEntries.Inc()
		case token.KindInternal:
			m.InternalEntries.Inc()
		}
	}
	return nil
}

// OnTipRecorded implements plugin.OnTipRecorded.
func (m *MetricsExtension) OnTipRecorded(_ context.Context, _ *tip.Tip) error {
	m.TipsRecorded.Inc()
	return nil
}

func minor(m types.Money) float64 { return float64(m.Amount) }
