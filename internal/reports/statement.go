package reports

import (
	"fmt"
	"io"
	"time"

	"github.com/dvloznov/billflow/internal/aggregation"
	"github.com/dvloznov/billflow/internal/domain"
	"github.com/phpdave11/gofpdf"
	"github.com/shopspring/decimal"
)

// maxStatementRows caps the statement table.
const maxStatementRows = 500

// StatementPDF renders a filtered view as a period statement.
func StatementPDF(w io.Writer, view aggregation.View, org domain.Organization, from, to string, generated time.Time) error {
	currency := org.CurrencyOrDefault()

	income, expense := decimal.Zero, decimal.Zero
	for _, row := range view.Rows {
		if row.Record.Kind == domain.KindIncome {
			income = income.Add(row.Record.Extracted.TotalAmount)
		} else {
			expense = expense.Add(row.Record.Extracted.TotalAmount)
		}
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(14, 14, 14)
	pdf.AddPage()

	pdf.SetTextColor(20, 20, 20)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, tr(org.Name+" Statement"))
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(80, 80, 80)
	pdf.Cell(0, 6, "Period: "+orDash(from)+" to "+orDash(to))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Records: %d", view.Count))
	pdf.Ln(10)

	pdf.SetDrawColor(200, 200, 200)
	pdf.SetFillColor(248, 248, 248)
	pdf.SetTextColor(20, 20, 20)
	pdf.SetFont("Helvetica", "B", 11)

	sumW := []float64{60, 60, 62}
	pdf.CellFormat(sumW[0], 10, "Income ("+currency+")", "1", 0, "C", true, 0, "")
	pdf.CellFormat(sumW[1], 10, "Expense ("+currency+")", "1", 0, "C", true, 0, "")
	pdf.CellFormat(sumW[2], 10, "Net ("+currency+")", "1", 1, "C", true, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(sumW[0], 10, money(income), "1", 0, "C", false, 0, "")
	pdf.CellFormat(sumW[1], 10, money(expense), "1", 0, "C", false, 0, "")
	pdf.CellFormat(sumW[2], 10, money(view.Net), "1", 1, "C", false, 0, "")
	pdf.Ln(6)

	colW := []float64{22, 24, 76, 30, 30}
	header := func() {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetFillColor(245, 245, 245)
		pdf.CellFormat(colW[0], 8, "TYPE", "1", 0, "C", true, 0, "")
		pdf.CellFormat(colW[1], 8, "DATE", "1", 0, "C", true, 0, "")
		pdf.CellFormat(colW[2], 8, "COUNTERPARTY", "1", 0, "L", true, 0, "")
		pdf.CellFormat(colW[3], 8, "AMOUNT", "1", 0, "R", true, 0, "")
		pdf.CellFormat(colW[4], 8, "PAYMENT", "1", 1, "C", true, 0, "")
		pdf.SetFont("Helvetica", "", 9)
	}
	header()

	for i, row := range view.Rows {
		if i >= maxStatementRows {
			pdf.SetFont("Helvetica", "I", 9)
			pdf.CellFormat(0, 8, "...truncated (too many rows)", "1", 1, "C", false, 0, "")
			break
		}
		if pdf.GetY() > 270 {
			pdf.AddPage()
			header()
		}

		rec := row.Record
		pdf.CellFormat(colW[0], 8, string(rec.Kind), "1", 0, "C", false, 0, "")
		pdf.CellFormat(colW[1], 8, orDash(rec.Extracted.DocumentDate), "1", 0, "C", false, 0, "")
		pdf.CellFormat(colW[2], 8, tr(trimTo(rec.Extracted.CounterpartyOrUnknown(), 42)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(colW[3], 8, money(row.Signed), "1", 0, "R", false, 0, "")
		pdf.CellFormat(colW[4], 8, string(row.PaymentStatus), "1", 1, "C", false, 0, "")
	}

	pdf.SetY(-18)
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(120, 120, 120)
	pdf.CellFormat(0, 10, "Generated by billflow - "+generated.Format(time.RFC3339), "", 0, "C", false, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("reports: statement pdf: %w", err)
	}
	return nil
}
