package reports

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/dvloznov/billflow/internal/domain"
	"github.com/phpdave11/gofpdf"
)

// InvoicePDF renders the digital invoice for one record. For income the
// organization bills the counterparty; for expense the counterparty bills
// the organization.
func InvoicePDF(w io.Writer, rec domain.FinancialRecord, org domain.Organization, today time.Time) error {
	data := rec.Extracted
	currency := data.Currency
	if currency == "" {
		currency = org.CurrencyOrDefault()
	}

	from, to, title := data.CounterpartyOrUnknown(), org.Name, "PURCHASE BILL"
	if rec.Kind == domain.KindIncome {
		from, to, title = org.Name, data.CounterpartyOrUnknown(), "TAX INVOICE"
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(14, 14, 14)
	pdf.AddPage()

	pdf.SetTextColor(20, 20, 20)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(80, 80, 80)
	meta := [][2]string{
		{"Reference", shortID(rec.ID)},
		{"Date", orDash(data.DocumentDate)},
		{"Due", orDash(rec.DueDate)},
		{"Payment", string(domain.DisplayPaymentStatus(rec, today))},
		{"Status", string(rec.WorkflowStatus)},
	}
	for _, m := range meta {
		pdf.CellFormat(30, 6, m[0]+":", "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, m[1], "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetTextColor(20, 20, 20)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(91, 7, "From", "B", 0, "L", false, 0, "")
	pdf.CellFormat(91, 7, "Bill to", "B", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(91, 8, tr(trimTo(orDash(from), 45)), "", 0, "L", false, 0, "")
	pdf.CellFormat(91, 8, tr(trimTo(orDash(to), 45)), "", 1, "L", false, 0, "")
	if rec.Kind == domain.KindIncome && org.TaxID != "" {
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(91, 5, "Tax ID: "+org.TaxID, "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)

	colW := []float64{80, 20, 18, 32, 32}
	header := func() {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetFillColor(245, 245, 245)
		pdf.CellFormat(colW[0], 8, "DESCRIPTION", "1", 0, "L", true, 0, "")
		pdf.CellFormat(colW[1], 8, "QTY", "1", 0, "R", true, 0, "")
		pdf.CellFormat(colW[2], 8, "UNIT", "1", 0, "C", true, 0, "")
		pdf.CellFormat(colW[3], 8, "PRICE", "1", 0, "R", true, 0, "")
		pdf.CellFormat(colW[4], 8, "TOTAL", "1", 1, "R", true, 0, "")
		pdf.SetFont("Helvetica", "", 9)
	}
	header()

	mismatch := make(map[int]bool)
	for _, i := range domain.LineItemMismatches(data) {
		mismatch[i] = true
	}
	for i, li := range data.LineItems {
		if pdf.GetY() > 260 {
			pdf.AddPage()
			header()
		}
		total := money(li.Total)
		if mismatch[i] {
			total = "* " + total
		}
		pdf.CellFormat(colW[0], 8, tr(trimTo(orDash(li.Description), 48)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(colW[1], 8, li.Quantity.String(), "1", 0, "R", false, 0, "")
		pdf.CellFormat(colW[2], 8, tr(li.Unit), "1", 0, "C", false, 0, "")
		pdf.CellFormat(colW[3], 8, money(li.UnitPrice), "1", 0, "R", false, 0, "")
		pdf.CellFormat(colW[4], 8, total, "1", 1, "R", false, 0, "")
	}
	if len(data.LineItems) == 0 {
		pdf.SetFont("Helvetica", "I", 9)
		pdf.CellFormat(0, 8, "No line items", "1", 1, "C", false, 0, "")
	}
	pdf.Ln(4)

	label := colW[0] + colW[1] + colW[2] + colW[3]
	pdf.SetFont("Helvetica", "", 10)
	if data.TaxAmount != nil {
		pdf.CellFormat(label, 7, "Tax ("+currency+")", "", 0, "R", false, 0, "")
		pdf.CellFormat(colW[4], 7, money(*data.TaxAmount), "", 1, "R", false, 0, "")
	}
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(label, 9, "Total ("+currency+")", "T", 0, "R", false, 0, "")
	pdf.CellFormat(colW[4], 9, money(data.TotalAmount), "T", 1, "R", false, 0, "")

	if len(mismatch) > 0 {
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(180, 40, 40)
		pdf.CellFormat(0, 6, "* line total differs from quantity x unit price", "", 1, "L", false, 0, "")
		pdf.SetTextColor(20, 20, 20)
	}

	if len(data.CustomFields) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "B", 10)
		pdf.Cell(0, 7, "Additional fields")
		pdf.Ln(7)
		pdf.SetFont("Helvetica", "", 9)
		keys := make([]string, 0, len(data.CustomFields))
		for k := range data.CustomFields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v := data.CustomFields[k]
			text := "-"
			if v != nil {
				text = fmt.Sprint(v)
			}
			pdf.CellFormat(50, 6, tr(trimTo(k, 30)), "", 0, "L", false, 0, "")
			pdf.CellFormat(0, 6, tr(trimTo(text, 80)), "", 1, "L", false, 0, "")
		}
	}

	pdf.SetY(-18)
	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(120, 120, 120)
	pdf.CellFormat(0, 10, tr(fmt.Sprintf("Generated by billflow for %s", org.Name)), "", 0, "C", false, 0, "")

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("reports: invoice pdf: %w", err)
	}
	return nil
}
