package bqexport

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/billflow/internal/domain"
	"github.com/shopspring/decimal"
)

type ReceiptRow struct {
	ReceiptID string `bigquery:"receipt_id"` // REQUIRED, the record id
	Kind      string `bigquery:"kind"`       // REQUIRED, INCOME | EXPENSE

	DocumentRef string `bigquery:"document_ref"` // NULLABLE
	Filename    string `bigquery:"filename"`     // NULLABLE

	CounterpartyName string            `bigquery:"counterparty_name"` // NULLABLE
	DocumentDate     bigquery.NullDate `bigquery:"document_date"`     // DATE, NULLABLE

	TotalAmount float64              `bigquery:"total_amount"` // NUMERIC, REQUIRED
	TaxAmount   bigquery.NullFloat64 `bigquery:"tax_amount"`   // NUMERIC, NULLABLE
	Currency    string               `bigquery:"currency"`     // REQUIRED

	PaymentStatus   string            `bigquery:"payment_status"`   // REQUIRED, stored status
	DueDate         bigquery.NullDate `bigquery:"due_date"`         // DATE, NULLABLE
	ConfidenceScore int64             `bigquery:"confidence_score"` // INTEGER

	UploadedTS bigquery.NullTimestamp `bigquery:"uploaded_ts"` // TIMESTAMP, NULLABLE
	ExportedTS time.Time              `bigquery:"exported_ts"` // TIMESTAMP, REQUIRED

	Metadata bigquery.NullJSON `bigquery:"metadata"` // JSON, NULLABLE, custom fields
}

type ReceiptLineItemRow struct {
	LineItemID string `bigquery:"line_item_id"` // REQUIRED, <receipt_id>-<index>
	ReceiptID  string `bigquery:"receipt_id"`   // REQUIRED

	LineIndex int64 `bigquery:"line_index"`

	Description string `bigquery:"description"` // REQUIRED
	Unit        string `bigquery:"unit"`        // NULLABLE

	Quantity   bigquery.NullFloat64 `bigquery:"quantity"`    // NUMERIC, NULLABLE
	UnitPrice  bigquery.NullFloat64 `bigquery:"unit_price"`  // NUMERIC, NULLABLE
	TotalPrice bigquery.NullFloat64 `bigquery:"total_price"` // NUMERIC, NULLABLE

	Consistent bool `bigquery:"consistent"` // total matches quantity x unit price
}

// ReceiptRowFromRecord maps a record onto the receipts table.
func ReceiptRowFromRecord(rec domain.FinancialRecord, exported time.Time) (*ReceiptRow, error) {
	data := rec.Extracted

	row := &ReceiptRow{
		ReceiptID:        rec.ID,
		Kind:             string(rec.Kind),
		DocumentRef:      rec.DocumentRef,
		Filename:         rec.Filename,
		CounterpartyName: data.CounterpartyName,
		TotalAmount:      toFloat(data.TotalAmount),
		Currency:         data.Currency,
		PaymentStatus:    string(rec.PaymentStatus),
		ConfidenceScore:  int64(data.ConfidenceScore),
		ExportedTS:       exported.UTC(),
	}
	if row.PaymentStatus == "" {
		row.PaymentStatus = string(domain.PaymentUnpaid)
	}

	var err error
	if row.DocumentDate, err = nullDate(data.DocumentDate); err != nil {
		return nil, fmt.Errorf("ReceiptRowFromRecord: record %s document date: %w", rec.ID, err)
	}
	if row.DueDate, err = nullDate(rec.DueDate); err != nil {
		return nil, fmt.Errorf("ReceiptRowFromRecord: record %s due date: %w", rec.ID, err)
	}

	if data.TaxAmount != nil {
		row.TaxAmount = bigquery.NullFloat64{Float64: toFloat(*data.TaxAmount), Valid: true}
	}
	if !rec.UploadedAt.IsZero() {
		row.UploadedTS = bigquery.NullTimestamp{Timestamp: rec.UploadedAt.UTC(), Valid: true}
	}

	if len(data.CustomFields) > 0 {
		raw, err := json.Marshal(data.CustomFields)
		if err != nil {
			return nil, fmt.Errorf("ReceiptRowFromRecord: record %s metadata: %w", rec.ID, err)
		}
		row.Metadata = bigquery.NullJSON{JSONVal: string(raw), Valid: true}
	}

	return row, nil
}

// LineItemRowsFromRecord maps line items in document order.
func LineItemRowsFromRecord(rec domain.FinancialRecord) []*ReceiptLineItemRow {
	rows := make([]*ReceiptLineItemRow, 0, len(rec.Extracted.LineItems))
	for i, li := range rec.Extracted.LineItems {
		rows = append(rows, &ReceiptLineItemRow{
			LineItemID:  rec.ID + "-" + strconv.Itoa(i),
			ReceiptID:   rec.ID,
			LineIndex:   int64(i),
			Description: li.Description,
			Unit:        li.Unit,
			Quantity:    bigquery.NullFloat64{Float64: toFloat(li.Quantity), Valid: true},
			UnitPrice:   bigquery.NullFloat64{Float64: toFloat(li.UnitPrice), Valid: true},
			TotalPrice:  bigquery.NullFloat64{Float64: toFloat(li.Total), Valid: true},
			Consistent:  li.Consistent(),
		})
	}
	return rows
}

func nullDate(s string) (bigquery.NullDate, error) {
	if s == "" {
		return bigquery.NullDate{}, nil
	}
	d, err := civil.ParseDate(s)
	if err != nil {
		return bigquery.NullDate{}, err
	}
	return bigquery.NullDate{Date: d, Valid: true}, nil
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
