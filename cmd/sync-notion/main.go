package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/zentry-app/zentry-api/internal/config"
	"github.com/zentry-app/zentry-api/internal/domain"
	"github.com/zentry-app/zentry-api/internal/infra/postgres"
	"github.com/zentry-app/zentry-api/internal/ledger"
	"github.com/zentry-app/zentry-api/internal/logger"
	"github.com/zentry-app/zentry-api/internal/notionsync"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	// Parse CLI flags
	externalID := flag.String("user", "", "External (Clerk) id of the user to export (required)")
	startDateStr := flag.String("start-date", "", "Start date in YYYY-MM-DD format (optional)")
	endDateStr := flag.String("end-date", "", "End date in YYYY-MM-DD format, inclusive (optional)")
	notionToken := flag.String("notion-token", cfg.NotionToken, "Notion API token (or set NOTION_TOKEN)")
	notionDBID := flag.String("notion-db-id", cfg.NotionDatabaseID, "Notion database ID (or set NOTION_DATABASE_ID)")
	dryRun := flag.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	flag.Parse()

	// Validate required flags
	if *externalID == "" {
		log.Fatal().Msg("Error: --user is required")
	}
	if *notionToken == "" {
		log.Fatal().Msg("Error: --notion-token is required")
	}
	if *notionDBID == "" {
		log.Fatal().Msg("Error: --notion-db-id is required")
	}
	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("Error: DATABASE_URL is required")
	}

	var r domain.DateRange
	if *startDateStr != "" {
		start, err := time.Parse(time.DateOnly, *startDateStr)
		if err != nil {
			log.Fatal().Err(err).Str("start_date", *startDateStr).Msg("Error: invalid start-date format, expected YYYY-MM-DD")
		}
		r.Start = &start
	}
	if *endDateStr != "" {
		end, err := time.Parse(time.DateOnly, *endDateStr)
		if err != nil {
			log.Fatal().Err(err).Str("end_date", *endDateStr).Msg("Error: invalid end-date format, expected YYYY-MM-DD")
		}
		end = end.Add(24*time.Hour - time.Nanosecond)
		r.End = &end
	}
	if r.Start != nil && r.End != nil && r.End.Before(*r.Start) {
		log.Fatal().
			Str("start_date", *startDateStr).
			Str("end_date", *endDateStr).
			Msg("Error: end-date must be after start-date")
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, 2)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Postgres")
	}
	defer pool.Close()
	store := postgres.NewStore(pool)

	user, err := store.FindUserByExternalID(ctx, *externalID)
	if err != nil {
		log.Fatal().Err(err).Str("external_id", *externalID).Msg("User lookup failed")
	}

	stats, err := notionsync.SyncTransactions(ctx,
		ledger.NewService(store, log),
		notionsync.NewNotionClient(*notionToken),
		domain.Identity{UserID: user.ID, ExternalID: user.ExternalID},
		notionsync.Options{DatabaseID: *notionDBID, Range: r, DryRun: *dryRun},
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	fmt.Printf("Sync completed: %d created, %d updated, %d archived, %d failed.\n",
		stats.Created, stats.Updated, stats.Archived, stats.Failed)
}
