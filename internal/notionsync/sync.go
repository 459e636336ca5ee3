// Package notionsync exports a user's ledger into a Notion database.
package notionsync

import (
	"context"
	"fmt"
	"time"

	"github.com/jomei/notionapi"

	"github.com/zentry-app/zentry-api/internal/domain"
	"github.com/zentry-app/zentry-api/internal/logger"
)

// PageSize is the number of pages requested per database query.
const PageSize = 100

// Stats counts what a sync run did, or would do in dry-run mode.
type Stats struct {
	Created  int `json:"created"`
	Updated  int `json:"updated"`
	Archived int `json:"archived"`
	Failed   int `json:"failed"`
}

// Options controls a sync run.
type Options struct {
	DatabaseID string
	Range      domain.DateRange
	DryRun     bool
}

// SyncTransactions makes the owner's pages in the database mirror the owner's
// transactions within opts.Range. Pages are matched on the Transaction ID
// property, so repeated runs update in place. Pages whose transaction no
// longer exists, and duplicate pages for one transaction, are archived.
// Failures on single pages are logged and counted without stopping the run.
func SyncTransactions(ctx context.Context, ledger TransactionLister, notion NotionService, owner domain.Identity, opts Options) (Stats, error) {
	log := logger.FromContext(ctx).With().
		Str("owner_external_id", owner.ExternalID).
		Str("notion_db_id", opts.DatabaseID).
		Bool("dry_run", opts.DryRun).
		Logger()

	var stats Stats

	txs, err := ledger.List(ctx, owner, opts.Range)
	if err != nil {
		return stats, fmt.Errorf("SyncTransactions: list transactions: %w", err)
	}
	log.Info().Int("transaction_count", len(txs)).Msg("Retrieved transactions from ledger")

	pages, err := queryOwnerPages(ctx, notion, opts.DatabaseID, owner.ExternalID)
	if err != nil {
		return stats, fmt.Errorf("SyncTransactions: %w", err)
	}
	log.Info().Int("notion_page_count", len(pages)).Msg("Retrieved existing Notion pages")

	current := make(map[string]bool, len(txs))
	for _, tx := range txs {
		current[tx.ID] = true
	}

	// Map each transaction to the first page carrying its id; every other
	// page in range is archived.
	pageFor := make(map[string]string)
	var stale []notionapi.Page
	for _, page := range pages {
		txID := pageTransactionID(page)
		switch {
		case txID != "" && current[txID] && pageFor[txID] == "":
			pageFor[txID] = string(page.ID)
		case inRange(page, opts.Range):
			stale = append(stale, page)
		}
	}

	for _, page := range stale {
		pageLog := log.With().
			Str("transaction_id", pageTransactionID(page)).
			Str("page_id", string(page.ID)).
			Logger()
		if opts.DryRun {
			pageLog.Info().Msg("[DRY RUN] Would archive stale Notion page")
			stats.Archived++
			continue
		}
		if err := notion.ArchivePage(ctx, string(page.ID)); err != nil {
			pageLog.Warn().Err(err).Msg("Failed to archive stale Notion page")
			stats.Failed++
			continue
		}
		pageLog.Info().Msg("Archived stale Notion page")
		stats.Archived++
	}

	for _, tx := range txs {
		pageID := pageFor[tx.ID]
		txLog := log.With().Str("transaction_id", tx.ID).Str("page_id", pageID).Logger()

		if opts.DryRun {
			if pageID != "" {
				txLog.Info().Msg("[DRY RUN] Would update Notion page")
				stats.Updated++
			} else {
				txLog.Info().Msg("[DRY RUN] Would create Notion page")
				stats.Created++
			}
			continue
		}

		props := TransactionToNotionProperties(tx)
		if pageID != "" {
			if _, err := notion.UpdatePage(ctx, pageID, props); err != nil {
				txLog.Warn().Err(err).Msg("Failed to update Notion page")
				stats.Failed++
				continue
			}
			txLog.Debug().Msg("Updated Notion page")
			stats.Updated++
			continue
		}

		page, err := notion.CreatePage(ctx, opts.DatabaseID, props)
		if err != nil {
			txLog.Warn().Err(err).Msg("Failed to create Notion page")
			stats.Failed++
			continue
		}
		txLog.Info().Str("page_id", string(page.ID)).Msg("Created Notion page")
		stats.Created++
	}

	log.Info().
		Int("created", stats.Created).
		Int("updated", stats.Updated).
		Int("archived", stats.Archived).
		Int("failed", stats.Failed).
		Int("total", len(txs)).
		Msg("Transaction sync completed")

	return stats, nil
}

// queryOwnerPages pages through every database entry whose Owner property
// equals ownerID.
func queryOwnerPages(ctx context.Context, notion NotionService, databaseID, ownerID string) ([]notionapi.Page, error) {
	var (
		all    []notionapi.Page
		cursor notionapi.Cursor
	)
	for {
		req := &notionapi.DatabaseQueryRequest{
			Filter: notionapi.PropertyFilter{
				Property: PropOwner,
				RichText: &notionapi.TextFilterCondition{Equals: ownerID},
			},
			PageSize: PageSize,
		}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := notion.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryOwnerPages: %w", err)
		}
		all = append(all, resp.Results...)

		if !resp.HasMore || resp.NextCursor == "" {
			return all, nil
		}
		cursor = resp.NextCursor
	}
}

// inRange reports whether a page's Date falls inside r. Pages without a date
// are only in an unbounded range.
func inRange(page notionapi.Page, r domain.DateRange) bool {
	if r.Start == nil && r.End == nil {
		return true
	}
	prop, ok := page.Properties[PropDate].(*notionapi.DateProperty)
	if !ok || prop.Date == nil || prop.Date.Start == nil {
		return false
	}
	return r.Contains(time.Time(*prop.Date.Start))
}
