package reports

import (
	"fmt"
	"io"

	"github.com/dvloznov/billflow/internal/aggregation"
	"github.com/xuri/excelize/v2"
)

// TransactionsSheet is the worksheet name of the XLSX export.
const TransactionsSheet = "Transactions"

var transactionHeaders = []string{"Date", "Type", "Counterparty", "Amount", "Currency", "Tax", "Payment", "Due", "Status", "Confidence", "ID"}

// TransactionsXLSX writes one row per record of view plus a net-value row.
// Payment shows the displayed status, so overdue records read OVERDUE.
func TransactionsXLSX(w io.Writer, view aggregation.View) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(TransactionsSheet)
	if err != nil {
		return fmt.Errorf("reports: create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("reports: drop default sheet: %w", err)
	}

	for i, h := range transactionHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(TransactionsSheet, cell, h)
	}

	for idx, row := range view.Rows {
		rec := row.Record
		r := idx + 2

		amount, _ := row.Signed.Float64()
		tax := ""
		if rec.Extracted.TaxAmount != nil {
			tax = rec.Extracted.TaxAmount.StringFixed(2)
		}

		values := []interface{}{
			rec.Extracted.DocumentDate,
			string(rec.Kind),
			rec.Extracted.CounterpartyOrUnknown(),
			amount,
			rec.Extracted.Currency,
			tax,
			string(row.PaymentStatus),
			rec.DueDate,
			string(rec.WorkflowStatus),
			rec.Extracted.ConfidenceScore,
			rec.ID,
		}
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, r)
			f.SetCellValue(TransactionsSheet, cell, v)
		}
	}

	net, _ := view.Net.Float64()
	last := len(view.Rows) + 3
	f.SetCellValue(TransactionsSheet, fmt.Sprintf("C%d", last), "Net value")
	f.SetCellValue(TransactionsSheet, fmt.Sprintf("D%d", last), net)

	f.SetColWidth(TransactionsSheet, "A", "A", 12)
	f.SetColWidth(TransactionsSheet, "B", "B", 10)
	f.SetColWidth(TransactionsSheet, "C", "C", 32)
	f.SetColWidth(TransactionsSheet, "D", "F", 14)
	f.SetColWidth(TransactionsSheet, "G", "I", 14)
	f.SetColWidth(TransactionsSheet, "K", "K", 38)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("reports: write xlsx: %w", err)
	}
	return nil
}
