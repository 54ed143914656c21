// Package notionsync mirrors verified records into a Notion database.
package notionsync

import (
	"context"
	"fmt"

	"github.com/dvloznov/billflow/internal/domain"
	"github.com/dvloznov/billflow/internal/logger"
	"github.com/jomei/notionapi"
)

// PageSize is the Notion query page size.
const PageSize = 100

// Result summarizes one sync.
type Result struct {
	Created  int `json:"created"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
	Archived int `json:"archived"`
	Failed   int `json:"failed"`
}

// SyncRecords creates a Notion page for every VERIFIED record not already
// present (matched on "Record ID"), updates pages whose mirrored properties
// have drifted from the record, and archives pages whose record no longer
// exists. Pages without a Record ID are left alone. Per-page
// failures are logged and counted; the sync continues.
func SyncRecords(ctx context.Context, records []domain.FinancialRecord, notionClient NotionService, notionDBID string, dryRun bool) (Result, error) {
	log := logger.FromContext(ctx)
	var res Result

	if notionDBID == "" {
		return res, fmt.Errorf("SyncRecords: %w: notion database id is not set", domain.ErrConfiguration)
	}

	log.Info().
		Int("record_count", len(records)).
		Bool("dry_run", dryRun).
		Msg("Starting record sync to Notion")

	known := make(map[string]bool, len(records))
	for _, rec := range records {
		known[rec.ID] = true
	}

	notionPages, err := queryAllNotionPages(ctx, notionClient, notionDBID)
	if err != nil {
		return res, fmt.Errorf("failed to query Notion pages: %w", err)
	}

	log.Info().Int("notion_page_count", len(notionPages)).Msg("Retrieved existing Notion pages")

	existing := make(map[string]notionapi.Page)
	for _, page := range notionPages {
		recordID := extractRecordID(page)
		if recordID == "" {
			continue
		}
		if _, dup := existing[recordID]; !dup {
			existing[recordID] = page
		}

		if known[recordID] {
			continue
		}
		if dryRun {
			log.Info().
				Str("record_id", recordID).
				Str("page_id", string(page.ID)).
				Msg("[DRY RUN] Would archive stale Notion page")
			res.Archived++
			continue
		}
		if err := notionClient.ArchivePage(ctx, string(page.ID)); err != nil {
			log.Warn().
				Err(err).
				Str("record_id", recordID).
				Str("page_id", string(page.ID)).
				Msg("Failed to archive stale Notion page")
			res.Failed++
			continue
		}
		res.Archived++
	}

	for _, rec := range records {
		if rec.WorkflowStatus != domain.StatusVerified {
			continue
		}
		if page, ok := existing[rec.ID]; ok {
			changed := changedProperties(page, rec)
			if changed == nil {
				res.Skipped++
				continue
			}
			if dryRun {
				log.Info().
					Str("record_id", rec.ID).
					Str("page_id", string(page.ID)).
					Int("changed_properties", len(changed)).
					Msg("[DRY RUN] Would update existing Notion page")
				res.Updated++
				continue
			}
			if _, err := notionClient.UpdatePage(ctx, string(page.ID), changed); err != nil {
				if ctx.Err() != nil {
					return res, fmt.Errorf("SyncRecords: %w", ctx.Err())
				}
				log.Warn().
					Err(err).
					Str("record_id", rec.ID).
					Str("page_id", string(page.ID)).
					Msg("Failed to update Notion page")
				res.Failed++
				continue
			}
			log.Info().
				Str("record_id", rec.ID).
				Str("page_id", string(page.ID)).
				Msg("Updated Notion page")
			res.Updated++
			continue
		}

		if dryRun {
			log.Info().
				Str("record_id", rec.ID).
				Msg("[DRY RUN] Would create new Notion page")
			res.Created++
			continue
		}

		page, err := notionClient.CreatePage(ctx, notionDBID, RecordToNotionProperties(rec))
		if err != nil {
			if ctx.Err() != nil {
				return res, fmt.Errorf("SyncRecords: %w", ctx.Err())
			}
			log.Warn().
				Err(err).
				Str("record_id", rec.ID).
				Msg("Failed to create Notion page")
			res.Failed++
			continue
		}
		log.Info().
			Str("record_id", rec.ID).
			Str("page_id", string(page.ID)).
			Msg("Created Notion page")
		res.Created++
	}

	log.Info().
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("skipped", res.Skipped).
		Int("archived", res.Archived).
		Int("failed", res.Failed).
		Msg("Record sync completed")

	return res, nil
}

// queryAllNotionPages queries all pages from a Notion database and returns them.
// Handles pagination automatically.
func queryAllNotionPages(ctx context.Context, notionClient NotionService, databaseID string) ([]notionapi.Page, error) {
	var allPages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{
			PageSize: PageSize,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notionClient.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}

		allPages = append(allPages, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return allPages, nil
}
