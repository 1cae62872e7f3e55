// Package audithook bridges cocoa ledger events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not depend on
// any particular audit store. Callers inject a RecorderFunc adapter at
// wiring time.
package audithook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

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

// Compile-time interface checks.
var (
	_ plugin.Plugin             = (*Extension)(nil)
	_ plugin.OnFarmerRegistered = (*Extension)(nil)
	_ plugin.OnSackDelivered    = (*Extension)(nil)
	_ plugin.OnBagsPacked       = (*Extension)(nil)
	_ plugin.OnBatchesCreated   = (*Extension)(nil)
	_ plugin.OnWarrantIssued    = (*Extension)(nil)
	_ plugin.OnLenderRegistered = (*Extension)(nil)
	_ plugin.OnBundleCreated    = (*Extension)(nil)
	_ plugin.OnBundleFunded     = (*Extension)(nil)
	_ plugin.OnBatchSettled     = (*Extension)(nil)
	_ plugin.OnInvoiceSettled   = (*Extension)(nil)
	_ plugin.OnSettlementFailed = (*Extension)(nil)
	_ plugin.OnTokensRecorded   = (*Extension)(nil)
	_ plugin.OnTipRecorded      = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one entry in the audit trail.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges ledger events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Intake hooks
// ──────────────────────────────────────────────────

// OnFarmerRegistered implements plugin.OnFarmerRegistered.
func (e *Extension) OnFarmerRegistered(ctx context.Context, f *farmer.Farmer) error {
	return e.record(ctx, ActionFarmerRegistered, SeverityInfo, OutcomeSuccess,
		ResourceFarmer, f.ID.String(), CategoryIntake, nil,
		"country", f.Country,
	)
}

// OnSackDelivered implements plugin.OnSackDelivered.
func (e *Extension) OnSackDelivered(ctx context.Context, s *sack.Sack, debt *token.Entry) error {
	kv := []any{
		"farmer_id", s.FarmerID.String(),
		"weight_kg", s.WeightKg.String(),
		"value_paid", s.ValuePaid.String(),
		"warehouse", s.Warehouse,
	}
	if debt != nil {
		kv = append(kv, "debt_token_id", debt.ID.String())
	}
	return e.record(ctx, ActionSackDelivered, SeverityInfo, OutcomeSuccess,
		ResourceSack, s.ID.String(), CategoryIntake, nil, kv...)
}

// ──────────────────────────────────────────────────
// Packing hooks
// ──────────────────────────────────────────────────

// OnBagsPacked implements plugin.OnBagsPacked. One event is recorded per bag.
func (e *Extension) OnBagsPacked(ctx context.Context, bags []*bag.Bag) error {
	var errs []error
	for _, b := range bags {
		errs = append(errs, e.record(ctx, ActionBagPacked, SeverityInfo, OutcomeSuccess,
			ResourceBag, b.ID.String(), CategoryPacking, nil,
			"weight_kg", b.TotalWeight().String(),
			"sacks", len(b.Allocations),
		))
	}
	return errors.Join(errs...)
}

// OnBatchesCreated implements plugin.OnBatchesCreated.
func (e *Extension) OnBatchesCreated(ctx context.Context, batches []*batch.Batch) error {
	var errs []error
	for _, b := range batches {
		errs = append(errs, e.record(ctx, ActionBatchCreated, SeverityInfo, OutcomeSuccess,
			ResourceBatch, b.ID.String(), CategoryPacking, nil,
			"product_type", string(b.ProductType),
			"weight_kg", b.WeightKg.String(),
			"bags", len(b.BagIDs),
		))
	}
	return errors.Join(errs...)
}

// OnWarrantIssued implements plugin.OnWarrantIssued.
func (e *Extension) OnWarrantIssued(ctx context.Context, r *warrant.Receipt) error {
	return e.record(ctx, ActionWarrantIssued, SeverityInfo, OutcomeSuccess,
		ResourceWarrant, r.ID.String(), CategoryPacking, nil,
		"type", string(r.Type),
		"covered", len(r.CoveredIDs),
		"total_value", r.TotalValue.String(),
	)
}

// ──────────────────────────────────────────────────
// Financing hooks
// ──────────────────────────────────────────────────

// OnLenderRegistered implements plugin.OnLenderRegistered.
func (e *Extension) OnLenderRegistered(ctx context.Context, l *lender.Lender) error {
	return e.record(ctx, ActionLenderRegistered, SeverityInfo, OutcomeSuccess,
		ResourceLender, l.ID.String(), CategoryFinancing, nil,
		"wallet_address", l.WalletAddress,
	)
}

// OnBundleCreated implements plugin.OnBundleCreated.
func (e *Extension) OnBundleCreated(ctx context.Context, b *bundle.Bundle) error {
	return e.record(ctx, ActionBundleCreated, SeverityInfo, OutcomeSuccess,
		ResourceBundle, b.ID.String(), CategoryFinancing, nil,
		"filter_key", string(b.Filter.Key),
		"filter_value", b.Filter.Value,
		"interest_rate", b.InterestRate.String(),
		"sacks", len(b.SackIDs),
	)
}

// OnBundleFunded implements plugin.OnBundleFunded.
func (e *Extension) OnBundleFunded(ctx context.Context, b *bundle.Bundle, l *lender.Lender, amount types.Money) error {
	return e.record(ctx, ActionBundleFunded, SeverityInfo, OutcomeSuccess,
		ResourceBundle, b.ID.String(), CategoryFinancing, nil,
		"lender_id", l.ID.String(),
		"amount", amount.String(),
	)
}

// ──────────────────────────────────────────────────
// Settlement hooks
// ──────────────────────────────────────────────────

// OnBatchSettled implements plugin.OnBatchSettled.
func (e *Extension) OnBatchSettled(ctx context.Context, inv *invoice.Invoice, bs *invoice.BatchSettlement) error {
	return e.record(ctx, ActionBatchSettled, SeverityInfo, OutcomeSuccess,
		ResourceBatch, bs.BatchID.String(), CategorySettlement, nil,
		"invoice_id", inv.ID.String(),
		"allocated", bs.Allocated.String(),
		"debt_burned", bs.DebtBurned.String(),
		"paid_to_lenders", bs.PaidToLenders.String(),
		"to_farmers", bs.ToFarmers.String(),
		"to_operator", bs.ToOperator.String(),
	)
}

// OnInvoiceSettled implements plugin.OnInvoiceSettled.
func (e *Extension) OnInvoiceSettled(ctx context.Context, inv *invoice.Invoice) error {
	return e.record(ctx, ActionInvoiceSettled, SeverityInfo, OutcomeSuccess,
		ResourceInvoice, inv.ID.String(), CategorySettlement, nil,
		"amount_paid", inv.AmountPaid.String(),
		"amount_remaining", inv.AmountRemaining.String(),
		"batches", len(inv.SettledBatches),
	)
}

// OnSettlementFailed implements plugin.OnSettlementFailed. Batches already
// settled stay committed, so the outcome is partial when any exist.
func (e *Extension) OnSettlementFailed(ctx context.Context, inv *invoice.Invoice, cause error) error {
	outcome := OutcomeFailure
	if len(inv.SettledBatches) > 0 {
		outcome = OutcomePartial
	}
	return e.record(ctx, ActionSettlementFailed, SeverityCritical, outcome,
		ResourceInvoice, inv.ID.String(), CategorySettlement, cause,
		"settled", len(inv.SettledBatches),
		"pending", len(inv.Pending()),
	)
}

// ──────────────────────────────────────────────────
// Token hooks
// ──────────────────────────────────────────────────

// OnTokensRecorded implements plugin.OnTokensRecorded.
func (e *Extension) OnTokensRecorded(ctx context.Context, entries []*token.Entry) error {
	var errs []error
	for _, t := range entries {
		errs = append(errs, e.record(ctx, ActionTokensRecorded, SeverityInfo, OutcomeSuccess,
			ResourceToken, t.ID.String(), CategoryTokens, nil,
			"farmer_id", t.FarmerID.String(),
			"kind", string(t.Kind),
			"amount", t.Amount.String(),
			"description", t.Description,
		))
	}
	return errors.Join(errs...)
}

// OnTipRecorded implements plugin.OnTipRecorded.
func (e *Extension) OnTipRecorded(ctx context.Context, t *tip.Tip) error {
	return e.record(ctx, ActionTipRecorded, SeverityInfo, OutcomeSuccess,
		ResourceTip, t.ID.String(), CategoryTokens, nil,
		"farmer_id", t.FarmerID.String(),
		"amount", t.Amount.String(),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
		return fmt.Errorf("audit_hook: record %s %s: %w", action, resourceID, recErr)
	}
	return nil
}
