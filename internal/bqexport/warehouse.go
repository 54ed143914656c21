package bqexport

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/billflow/internal/domain"
	"google.golang.org/api/iterator"
)

const (
	receiptsTable  = "receipts"
	lineItemsTable = "receipt_line_items"
)

// Warehouse is the storage side of the export.
type Warehouse interface {
	// ExistingReceiptIDs returns the subset of ids already present in receipts.
	ExistingReceiptIDs(ctx context.Context, ids []string) (map[string]bool, error)

	// ReceiptIDsWithLineItems returns the subset of ids that have at least
	// one row in receipt_line_items.
	ReceiptIDsWithLineItems(ctx context.Context, ids []string) (map[string]bool, error)

	// InsertReceipts appends receipt rows.
	InsertReceipts(ctx context.Context, rows []*ReceiptRow) error

	// InsertLineItems appends line item rows.
	InsertLineItems(ctx context.Context, rows []*ReceiptLineItemRow) error
}

// BigQueryWarehouse is the Warehouse backed by a BigQuery dataset.
type BigQueryWarehouse struct {
	client    *bigquery.Client
	projectID string
	datasetID string
}

// NewBigQueryWarehouse creates a warehouse with a shared BigQuery client.
func NewBigQueryWarehouse(ctx context.Context, projectID, datasetID string) (*BigQueryWarehouse, error) {
	if projectID == "" || datasetID == "" {
		return nil, fmt.Errorf("NewBigQueryWarehouse: %w: bigquery project and dataset are required", domain.ErrConfiguration)
	}
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryWarehouse: creating client: %w", err)
	}
	return &BigQueryWarehouse{client: client, projectID: projectID, datasetID: datasetID}, nil
}

// Close closes the BigQuery client connection.
func (w *BigQueryWarehouse) Close() error {
	if w.client != nil {
		return w.client.Close()
	}
	return nil
}

func (w *BigQueryWarehouse) ExistingReceiptIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	existing, err := w.receiptIDsIn(ctx, receiptsTable, ids)
	if err != nil {
		return nil, fmt.Errorf("ExistingReceiptIDs: %w", err)
	}
	return existing, nil
}

func (w *BigQueryWarehouse) ReceiptIDsWithLineItems(ctx context.Context, ids []string) (map[string]bool, error) {
	existing, err := w.receiptIDsIn(ctx, lineItemsTable, ids)
	if err != nil {
		return nil, fmt.Errorf("ReceiptIDsWithLineItems: %w", err)
	}
	return existing, nil
}

// receiptIDsIn returns which of ids appear in the receipt_id column of table.
func (w *BigQueryWarehouse) receiptIDsIn(ctx context.Context, table string, ids []string) (map[string]bool, error) {
	existing := make(map[string]bool)
	if len(ids) == 0 {
		return existing, nil
	}

	q := w.client.Query(`
		SELECT DISTINCT receipt_id
		FROM ` + "`" + w.projectID + "." + w.datasetID + "." + table + "`" + `
		WHERE receipt_id IN UNNEST(@ids)
	`)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "ids", Value: ids},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading query: %w", err)
	}

	for {
		var row struct {
			ReceiptID string `bigquery:"receipt_id"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating: %w", err)
		}
		existing[row.ReceiptID] = true
	}

	return existing, nil
}

func (w *BigQueryWarehouse) InsertReceipts(ctx context.Context, rows []*ReceiptRow) error {
	if len(rows) == 0 {
		return nil
	}
	// insert ids let BigQuery drop rows repeated by a retried Put
	savers := make([]*bigquery.StructSaver, len(rows))
	for i, row := range rows {
		savers[i] = &bigquery.StructSaver{Struct: row, InsertID: row.ReceiptID}
	}
	inserter := w.client.Dataset(w.datasetID).Table(receiptsTable).Inserter()
	if err := inserter.Put(ctx, savers); err != nil {
		return fmt.Errorf("InsertReceipts: %w", err)
	}
	return nil
}

func (w *BigQueryWarehouse) InsertLineItems(ctx context.Context, rows []*ReceiptLineItemRow) error {
	if len(rows) == 0 {
		return nil
	}
	savers := make([]*bigquery.StructSaver, len(rows))
	for i, row := range rows {
		savers[i] = &bigquery.StructSaver{Struct: row, InsertID: row.LineItemID}
	}
	inserter := w.client.Dataset(w.datasetID).Table(lineItemsTable).Inserter()
	if err := inserter.Put(ctx, savers); err != nil {
		return fmt.Errorf("InsertLineItems: %w", err)
	}
	return nil
}

var _ Warehouse = (*BigQueryWarehouse)(nil)
