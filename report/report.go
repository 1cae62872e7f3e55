// Package report renders ledger views as Excel workbooks.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/xraph/cocoa"
	"github.com/xraph/cocoa/farmer"
	"github.com/xraph/cocoa/token"
	"github.com/xraph/cocoa/types"
)

// ContentType is the MIME type of an .xlsx workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Sheet is one worksheet: a bold heading row followed by data rows.
type Sheet struct {
	Name     string
	Headings []string
	Rows     [][]any
}

// Write renders sheets into a single workbook. The first sheet replaces
// excelize's default "Sheet1".
func Write(w io.Writer, sheets ...Sheet) error {
	if len(sheets) == 0 {
		return fmt.Errorf("report: no sheets")
	}
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("report: style: %w", err)
	}

	for i, sh := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sh.Name); err != nil {
				return fmt.Errorf("report: rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sh.Name); err != nil {
			return fmt.Errorf("report: new sheet %s: %w", sh.Name, err)
		}

		headings := make([]any, len(sh.Headings))
		for j, h := range sh.Headings {
			headings[j] = h
		}
		if err := f.SetSheetRow(sh.Name, "A1", &headings); err != nil {
			return fmt.Errorf("report: %s headings: %w", sh.Name, err)
		}
		if err := f.SetRowStyle(sh.Name, 1, 1, bold); err != nil {
			return fmt.Errorf("report: %s heading style: %w", sh.Name, err)
		}

		for r, row := range sh.Rows {
			cell, err := excelize.CoordinatesToCellName(1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(sh.Name, cell, &row); err != nil {
				return fmt.Errorf("report: %s row %d: %w", sh.Name, r+2, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("report: write: %w", err)
	}
	return nil
}

// Composition lists each contributor of a bag or batch.
func Composition(c *cocoa.Composition) Sheet {
	sh := Sheet{
		Name:     "Composition",
		Headings: []string{"Sack", "Farmer ID", "Farmer", "Weight (kg)", "Weight %", "Value", "Value %", "Currency"},
	}
	for _, ct := range c.Contributions {
		sack := ""
		if !ct.SackID.IsNil() {
			sack = ct.SackID.String()
		}
		sh.Rows = append(sh.Rows, []any{
			sack,
			ct.FarmerID.String(),
			ct.FarmerName,
			number(ct.WeightKg),
			number(ct.WeightPct),
			major(ct.Value),
			number(ct.ValuePct),
			ct.Value.Currency,
		})
	}
	sh.Rows = append(sh.Rows, []any{
		"Total", "", c.ID.String(), number(c.TotalWeightKg), 100, major(c.TotalValue), 100, c.TotalValue.Currency,
	})
	return sh
}

// FarmerBalance pairs a farmer with their token balances.
type FarmerBalance struct {
	Farmer   *farmer.Farmer
	Balances *token.Balances
}

// Balances lists debt and internal balances per farmer.
func Balances(rows []FarmerBalance) Sheet {
	sh := Sheet{
		Name:     "Balances",
		Headings: []string{"Farmer ID", "Farmer", "Country", "Debt", "Internal", "Currency"},
	}
	for _, fb := range rows {
		sh.Rows = append(sh.Rows, []any{
			fb.Farmer.ID.String(),
			fb.Farmer.Name(),
			fb.Farmer.Country,
			major(fb.Balances.Debt),
			major(fb.Balances.Internal),
			fb.Balances.Debt.Currency,
		})
	}
	return sh
}

// Settlement breaks a settlement run into the invoice header, a per-batch
// summary, lender repayments and farmer payouts.
func Settlement(s *cocoa.Settlement) []Sheet {
	inv := s.Invoice
	settled := make([]string, len(inv.SettledBatches))
	for i, b := range inv.SettledBatches {
		settled[i] = b.String()
	}
	header := Sheet{
		Name:     "Invoice",
		Headings: []string{"Invoice", "Status", "Amount Paid", "Remaining", "Percent To Farmers", "Settled Batches", "Currency"},
		Rows: [][]any{{
			inv.ID.String(),
			string(inv.Status),
			major(inv.AmountPaid),
			major(inv.AmountRemaining),
			number(inv.PercentToFarmers),
			strings.Join(settled, ","),
			inv.AmountPaid.Currency,
		}},
	}
	summary := Sheet{
		Name: "Batches",
		Headings: []string{
			"Invoice", "Batch", "Batch Value", "Allocated", "Debt Burned",
			"Paid To Lenders", "To Farmers", "To Operator", "Currency",
		},
	}
	repayments := Sheet{
		Name:     "Repayments",
		Headings: []string{"Batch", "Bundle", "Lender", "Principal", "Interest", "Total"},
	}
	farmers := Sheet{
		Name:     "Farmers",
		Headings: []string{"Batch", "Farmer ID", "Debt Burned", "Bonus"},
	}

	for _, bs := range s.Batches {
		summary.Rows = append(summary.Rows, []any{
			inv.ID.String(),
			bs.BatchID.String(),
			major(bs.BatchValue),
			major(bs.Allocated),
			major(bs.DebtBurned),
			major(bs.PaidToLenders),
			major(bs.ToFarmers),
			major(bs.ToOperator),
			bs.BatchValue.Currency,
		})
		for _, r := range bs.Repayments {
			repayments.Rows = append(repayments.Rows, []any{
				bs.BatchID.String(),
				r.BundleID.String(),
				r.LenderID.String(),
				major(r.Principal),
				major(r.Interest),
				major(r.Total()),
			})
		}
		for _, fp := range bs.FarmerShares {
			farmers.Rows = append(farmers.Rows, []any{
				bs.BatchID.String(),
				fp.FarmerID.String(),
				major(fp.Burned),
				major(fp.Bonus),
			})
		}
	}
	return []Sheet{header, summary, repayments, farmers}
}

func number(d decimal.Decimal) float64 {
	return d.Round(4).InexactFloat64()
}

// major converts minor units to a major-unit number for display.
func major(m types.Money) float64 {
	d, err := decimal.NewFromString(m.FormatMajor())
	if err != nil {
		return float64(m.Amount)
	}
	return d.InexactFloat64()
}
