// Package bqexport mirrors verified records into BigQuery.
package bqexport

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/billflow/internal/domain"
	"github.com/rs/zerolog"
)

// Result summarizes one export.
type Result struct {
	Exported   int `json:"exported"`
	Skipped    int `json:"skipped"`    // already present in the warehouse
	Repaired   int `json:"repaired"`   // receipt present, missing line items re-inserted
	Unverified int `json:"unverified"` // not eligible yet
}

// Exporter writes verified records to a Warehouse.
type Exporter struct {
	warehouse Warehouse
	logger    zerolog.Logger
	now       func() time.Time
}

// NewExporter creates an exporter. A nil logger disables logging.
func NewExporter(warehouse Warehouse, logger *zerolog.Logger) *Exporter {
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	return &Exporter{warehouse: warehouse, logger: l, now: time.Now}
}

// ExportVerified inserts every VERIFIED record that is not already in the
// warehouse. Running it twice over the same records inserts nothing new.
// Receipts go in before their line items; a receipt found without line items
// on a later run gets them re-inserted.
func (e *Exporter) ExportVerified(ctx context.Context, records []domain.FinancialRecord) (Result, error) {
	var res Result
	if e.warehouse == nil {
		return res, fmt.Errorf("ExportVerified: %w: no warehouse configured", domain.ErrConfiguration)
	}

	var verified []domain.FinancialRecord
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		if rec.WorkflowStatus != domain.StatusVerified {
			res.Unverified++
			continue
		}
		verified = append(verified, rec)
		ids = append(ids, rec.ID)
	}

	existing, err := e.warehouse.ExistingReceiptIDs(ctx, ids)
	if err != nil {
		return res, fmt.Errorf("ExportVerified: listing existing receipts: %w", err)
	}

	var needItems []string
	for _, rec := range verified {
		if existing[rec.ID] && len(rec.Extracted.LineItems) > 0 {
			needItems = append(needItems, rec.ID)
		}
	}
	withItems := map[string]bool{}
	if len(needItems) > 0 {
		if withItems, err = e.warehouse.ReceiptIDsWithLineItems(ctx, needItems); err != nil {
			return res, fmt.Errorf("ExportVerified: listing existing line items: %w", err)
		}
	}

	exported := e.now()
	var receipts []*ReceiptRow
	var items []*ReceiptLineItemRow
	var repaired int
	for _, rec := range verified {
		if existing[rec.ID] {
			if len(rec.Extracted.LineItems) > 0 && !withItems[rec.ID] {
				items = append(items, LineItemRowsFromRecord(rec)...)
				repaired++
				continue
			}
			res.Skipped++
			continue
		}
		row, err := ReceiptRowFromRecord(rec, exported)
		if err != nil {
			return res, fmt.Errorf("ExportVerified: %w", err)
		}
		receipts = append(receipts, row)
		items = append(items, LineItemRowsFromRecord(rec)...)
	}

	if err := e.warehouse.InsertReceipts(ctx, receipts); err != nil {
		return res, fmt.Errorf("ExportVerified: %w", err)
	}
	if err := e.warehouse.InsertLineItems(ctx, items); err != nil {
		return res, fmt.Errorf("ExportVerified: %w", err)
	}
	res.Exported = len(receipts)
	res.Repaired = repaired

	e.logger.Info().
		Int("exported", res.Exported).
		Int("skipped", res.Skipped).
		Int("repaired", res.Repaired).
		Int("unverified", res.Unverified).
		Int("line_items", len(items)).
		Msg("BigQuery export complete")

	return res, nil
}
