package cocoa

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xraph/cocoa/bundle"
	"github.com/xraph/cocoa/id"
	"github.com/xraph/cocoa/invoice"
	"github.com/xraph/cocoa/store"
	"github.com/xraph/cocoa/token"
	"github.com/xraph/cocoa/types"
	"github.com/xraph/cocoa/valuation"
)

var hundred = decimal.NewFromInt(100)

// SettleInput describes a buyer payment against batches.
type SettleInput struct {
	BatchIDs   []id.BatchID `json:"batch_ids"`
	AmountPaid types.Money  `json:"amount_paid"`
	// PercentToFarmers is the fraction in [0,1] of each batch remainder
	// paid to farmers as a bonus; the operator receives the rest.
	PercentToFarmers decimal.Decimal `json:"percent_to_farmers"`
}

// Settlement is the outcome of a settlement run.
type Settlement struct {
	Invoice *invoice.Invoice           `json:"invoice"`
	Batches []*invoice.BatchSettlement `json:"batches"`
}

// SettleInvoice records an invoice and walks its batches in order until
// the payment is consumed. For each batch it burns farmers' debt, repays
// lenders of bundles touching the batch with interest, and splits what
// is left between farmers and the operator.
//
// Each batch commits on its own. If a batch fails, earlier batches stay
// settled, the error is returned with the partial Settlement, and
// ResumeSettlement continues from the failed batch.
func (l *Ledger) SettleInvoice(ctx context.Context, in SettleInput) (*Settlement, error) {
	amount, err := l.positive("amount_paid", in.AmountPaid)
	if err != nil {
		return nil, err
	}
	if in.PercentToFarmers.IsNegative() || in.PercentToFarmers.GreaterThan(decimal.NewFromInt(1)) {
		return nil, ValidationError{Field: "percent_to_farmers", Message: "must be between 0 and 1"}
	}
	batchIDs := dedupe(in.BatchIDs)
	if len(batchIDs) == 0 {
		return nil, ValidationError{Field: "batch_ids", Message: "at least one batch is required"}
	}

	inv := &invoice.Invoice{
		Entity:           l.stamp(),
		ID:               l.newID(id.PrefixInvoice),
		AmountPaid:       amount,
		AmountRemaining:  amount,
		PercentToFarmers: in.PercentToFarmers,
		CoveredBatches:   batchIDs,
		SettledBatches:   []id.BatchID{},
		Status:           invoice.StatusOpen,
	}

	var result *Settlement
	err = l.exclusive(ctx, func(ctx context.Context) error {
		if err := l.store.Tx(ctx, func(ctx context.Context, tx store.Store) error {
			for _, batchID := range batchIDs {
				if _, err := tx.GetBatch(ctx, batchID); err != nil {
					return fmt.Errorf("batch %s: %w", batchID, err)
				}
			}
			return tx.CreateInvoice(ctx, inv)
		}); err != nil {
			return err
		}

		l.logger.Info("invoice recorded",
			"invoice_id", inv.ID.String(),
			"amount_paid", inv.AmountPaid.String(),
			"batches", len(inv.CoveredBatches),
		)

		var err error
		result, err = l.settle(ctx, inv)
		return err
	})
	return result, err
}

// ResumeSettlement continues an open invoice from its first unsettled
// batch.
func (l *Ledger) ResumeSettlement(ctx context.Context, invoiceID id.InvoiceID) (*Settlement, error) {
	var result *Settlement
	err := l.exclusive(ctx, func(ctx context.Context) error {
		inv, err := l.store.GetInvoice(ctx, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status == invoice.StatusSettled {
			return fmt.Errorf("%w: %s", ErrInvoiceSettled, invoiceID)
		}
		l.logger.Info("resuming settlement",
			"invoice_id", inv.ID.String(),
			"settled", len(inv.SettledBatches),
			"remaining", inv.AmountRemaining.String(),
		)
		result, err = l.settle(ctx, inv)
		return err
	})
	return result, err
}

// GetInvoice retrieves an invoice by ID.
func (l *Ledger) GetInvoice(ctx context.Context, invoiceID id.InvoiceID) (*invoice.Invoice, error) {
	return l.store.GetInvoice(ctx, invoiceID)
}

// ListInvoices lists invoices.
func (l *Ledger) ListInvoices(ctx context.Context, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	return l.store.ListInvoices(ctx, opts)
}

// settle runs the per-batch loop. The caller holds the ledger lock.
func (l *Ledger) settle(ctx context.Context, inv *invoice.Invoice) (*Settlement, error) {
	result := &Settlement{Invoice: inv, Batches: []*invoice.BatchSettlement{}}

	for _, batchID := range inv.Pending() {
		if !inv.AmountRemaining.IsPositive() {
			break
		}

		var (
			bs      *invoice.BatchSettlement
			entries []*token.Entry
			next    *invoice.Invoice
		)
		err := l.store.Tx(ctx, func(ctx context.Context, tx store.Store) error {
			var err error
			bs, entries, next, err = l.settleBatch(ctx, tx, inv, batchID)
			return err
		})
		if err != nil {
			err = fmt.Errorf("settle batch %s of invoice %s: %w", batchID, inv.ID, err)
			l.logger.Error("batch settlement failed",
				"invoice_id", inv.ID.String(),
				"batch_id", batchID.String(),
				"error", err,
			)
			l.plugins.EmitSettlementFailed(ctx, inv, err)
			return result, err
		}

		*inv = *next
		result.Batches = append(result.Batches, bs)

		l.logger.Info("batch settled",
			"invoice_id", inv.ID.String(),
			"batch_id", batchID.String(),
			"allocated", bs.Allocated.String(),
			"paid_to_lenders", bs.PaidToLenders.String(),
			"to_farmers", bs.ToFarmers.String(),
			"to_operator", bs.ToOperator.String(),
			"remaining", inv.AmountRemaining.String(),
		)
		l.plugins.EmitBatchSettled(ctx, inv, bs)
		l.plugins.EmitTokensRecorded(ctx, entries)
	}

	settled := *inv
	settled.Status = invoice.StatusSettled
	settled.UpdatedAt = l.now().UTC()
	if err := l.store.Tx(ctx, func(ctx context.Context, tx store.Store) error {
		return tx.UpdateInvoice(ctx, &settled)
	}); err != nil {
		return result, err
	}
	*inv = settled

	l.logger.Info("invoice settled",
		"invoice_id", inv.ID.String(),
		"settled_batches", len(inv.SettledBatches),
		"remaining", inv.AmountRemaining.String(),
	)
	l.plugins.EmitInvoiceSettled(ctx, inv)
	return result, nil
}

// fundingRow is one lender's principal in one bundle touching a batch.
type fundingRow struct {
	bundleID  id.BundleID
	lenderID  id.LenderID
	principal types.Money
	rate      decimal.Decimal
}

// settleBatch applies one batch of inv inside tx and returns the updated
// invoice without mutating inv.
func (l *Ledger) settleBatch(ctx context.Context, tx store.Store, inv *invoice.Invoice, batchID id.BatchID) (*invoice.BatchSettlement, []*token.Entry, *invoice.Invoice, error) {
	bt, err := tx.GetBatch(ctx, batchID)
	if err != nil {
		return nil, nil, nil, err
	}

	r := newResolver(tx)
	lines, err := r.batchLines(ctx, bt.BagIDs)
	if err != nil {
		return nil, nil, nil, err
	}
	farmers := valuation.Merge(lines)
	weights := make([]decimal.Decimal, len(farmers))
	batchValue := decimal.Zero
	for i, f := range farmers {
		weights[i] = f.Value
		batchValue = batchValue.Add(f.Value)
	}

	next := *inv
	next.SettledBatches = append(append([]id.BatchID(nil), inv.SettledBatches...), batchID)
	next.UpdatedAt = l.now().UTC()

	zero := types.Zero(l.currency)
	bs := &invoice.BatchSettlement{
		BatchID:       batchID,
		BatchValue:    types.FromDecimal(batchValue, l.currency),
		Allocated:     zero,
		DebtBurned:    zero,
		PaidToLenders: zero,
		ToFarmers:     zero,
		ToOperator:    zero,
	}

	// Every bundle holding a sack of this batch is closed by the invoice,
	// whatever the batch is worth.
	sackIDs := make([]id.SackID, 0, len(r.sacks))
	for _, s := range r.sacks {
		sackIDs = append(sackIDs, s.ID)
	}
	bundles, err := tx.ListBundles(ctx, bundle.ListOpts{SackIDs: sackIDs})
	if err != nil {
		return nil, nil, nil, err
	}
	for _, b := range bundles {
		if err := tx.UpdateBundleStatus(ctx, b.ID, bundle.StatusPaid); err != nil {
			return nil, nil, nil, err
		}
		bs.BundlesPaid = append(bs.BundlesPaid, b.ID)
	}

	if !bs.BatchValue.IsPositive() {
		l.logger.Info("batch has no value, skipping payouts", "invoice_id", inv.ID.String(), "batch_id", batchID.String())
		return bs, nil, &next, tx.UpdateInvoice(ctx, &next)
	}

	allocate := inv.AmountRemaining.Min(bs.BatchValue)
	next.AmountRemaining = inv.AmountRemaining.Subtract(allocate)
	bs.Allocated = allocate

	var entries []*token.Entry
	shares := make(map[string]*invoice.FarmerPayment, len(farmers))
	for _, f := range farmers {
		fid := r.farmers[f.Key].ID
		fp := &invoice.FarmerPayment{FarmerID: fid, Burned: zero, Bonus: zero}
		shares[f.Key] = fp
	}

	// Debt burn, pro rata to each farmer's value in the batch.
	for i, part := range valuation.Split(allocate, weights) {
		if part.IsZero() {
			continue
		}
		fp := shares[farmers[i].Key]
		fp.Burned = part
		bs.DebtBurned = bs.DebtBurned.Add(part)
		entries = append(entries, l.entry(fp.FarmerID, token.KindDebt, part.Negate(),
			fmt.Sprintf("Invoice %s: debt burn for batch %s", inv.ID, batchID)))
	}

	// Lender repayment, one row per (bundle, lender) funding.
	var rows []fundingRow
	principal := zero
	for _, b := range bundles {
		for _, f := range b.Fundings {
			rows = append(rows, fundingRow{bundleID: b.ID, lenderID: f.LenderID, principal: f.Amount, rate: b.InterestRate})
			principal = principal.Add(f.Amount)
		}
	}
	if len(rows) > 0 && principal.IsPositive() {
		principals := make([]decimal.Decimal, len(rows))
		for i, row := range rows {
			principals[i] = row.principal.Decimal()
		}
		for i, pay := range valuation.Split(allocate, principals) {
			row := rows[i]
			rep := invoice.Repayment{
				BundleID:  row.bundleID,
				LenderID:  row.lenderID,
				Principal: pay,
				Interest:  pay.MulRatio(row.rate.Div(hundred)),
			}
			ln, err := tx.GetLender(ctx, row.lenderID)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("lender %s: %w", row.lenderID, err)
			}
			if err := tx.UpdateLenderPosition(ctx, ln.ID, ln.Position.Add(rep.Total())); err != nil {
				return nil, nil, nil, err
			}
			bs.Repayments = append(bs.Repayments, rep)
			bs.PaidToLenders = bs.PaidToLenders.Add(rep.Total())
		}
	}

	// Remainder between farmers and the operator.
	remainder := allocate.Subtract(bs.PaidToLenders).Max(zero)
	if remainder.IsPositive() {
		bs.ToFarmers = remainder.MulRatio(inv.PercentToFarmers)
		bs.ToOperator = remainder.Subtract(bs.ToFarmers)

		for i, part := range valuation.Split(bs.ToFarmers, weights) {
			if part.IsZero() {
				continue
			}
			fp := shares[farmers[i].Key]
			fp.Bonus = part
			entries = append(entries, l.entry(fp.FarmerID, token.KindInternal, part,
				fmt.Sprintf("Invoice %s: bonus for batch %s", inv.ID, batchID)))
		}

		if bs.ToOperator.IsPositive() {
			op, err := l.operator(ctx, tx)
			if err != nil {
				return nil, nil, nil, err
			}
			entries = append(entries, l.entry(op.ID, token.KindInternal, bs.ToOperator,
				fmt.Sprintf("Invoice %s: EcoWise remainder for batch %s", inv.ID, batchID)))
		}
	}

	for _, f := range farmers {
		bs.FarmerShares = append(bs.FarmerShares, *shares[f.Key])
	}

	if len(entries) > 0 {
		if err := tx.AppendTokens(ctx, entries...); err != nil {
			return nil, nil, nil, err
		}
	}
	if err := tx.UpdateInvoice(ctx, &next); err != nil {
		return nil, nil, nil, err
	}
	return bs, entries, &next, nil
}
