package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/zentry-app/zentry-api/internal/config"
	"github.com/zentry-app/zentry-api/internal/domain"
	infraFS "github.com/zentry-app/zentry-api/internal/infra/firestore"
	"github.com/zentry-app/zentry-api/internal/infra/postgres"
	"github.com/zentry-app/zentry-api/internal/ledger"
	"github.com/zentry-app/zentry-api/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "list":
		runList(cfg, log)
	case "inspect":
		runInspect(cfg, log)
	case "image":
		runImage(cfg, log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Zentry operator CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  list      List a user's transactions and their summary")
	fmt.Println("  inspect   Show one transaction with its memories")
	fmt.Println("  image     Show the image record for an uploaded asset")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// openLedger connects to Postgres and resolves the user to act as.
func openLedger(ctx context.Context, cfg *config.Config, log zerolog.Logger, externalID string) (*ledger.Service, domain.Identity, func()) {
	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("Error: DATABASE_URL is required")
	}
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, 2)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Postgres")
	}
	store := postgres.NewStore(pool)

	user, err := store.FindUserByExternalID(ctx, externalID)
	if err != nil {
		pool.Close()
		log.Fatal().Err(err).Str("external_id", externalID).Msg("User lookup failed")
	}
	return ledger.NewService(store, log), domain.Identity{UserID: user.ID, ExternalID: user.ExternalID}, pool.Close
}

func runList(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	externalID := fs.String("user", "", "External (Clerk) id of the user")
	startDate := fs.String("start-date", "", "Start date in YYYY-MM-DD format (optional)")
	endDate := fs.String("end-date", "", "End date in YYYY-MM-DD format, inclusive (optional)")
	fs.Parse(os.Args[2:])

	if *externalID == "" {
		log.Fatal().Msg("Error: --user is required")
	}

	var r domain.DateRange
	if *startDate != "" {
		t, err := time.Parse(time.DateOnly, *startDate)
		if err != nil {
			log.Fatal().Err(err).Msg("Error: invalid start-date format, expected YYYY-MM-DD")
		}
		r.Start = &t
	}
	if *endDate != "" {
		t, err := time.Parse(time.DateOnly, *endDate)
		if err != nil {
			log.Fatal().Err(err).Msg("Error: invalid end-date format, expected YYYY-MM-DD")
		}
		t = t.Add(24*time.Hour - time.Nanosecond)
		r.End = &t
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	svc, owner, closeFn := openLedger(ctx, cfg, log, *externalID)
	defer closeFn()

	txs, err := svc.List(ctx, owner, r)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list transactions")
	}
	summary, err := svc.Summary(ctx, owner, r)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to summarize transactions")
	}

	fmt.Printf("\n=== Transactions (%d) ===\n", len(txs))
	for i, tx := range txs {
		fmt.Printf("\n%d. %s\n", i+1, tx.Description)
		fmt.Printf("   ID:       %s\n", tx.ID)
		fmt.Printf("   Created:  %s\n", tx.CreatedAt.Format(time.RFC3339))
		fmt.Printf("   Amount:   %s\n", tx.Amount.StringFixed(domain.AmountScale))
		fmt.Printf("   Memories: %d\n", len(tx.Memories))
	}

	fmt.Println("\n=== Summary ===")
	fmt.Printf("Income:  %s\n", summary.Income.StringFixed(domain.AmountScale))
	fmt.Printf("Expense: %s\n", summary.Expense.StringFixed(domain.AmountScale))
	fmt.Printf("Net:     %s\n", summary.Net.StringFixed(domain.AmountScale))
	fmt.Println()
}

func runInspect(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	externalID := fs.String("user", "", "External (Clerk) id of the owning user")
	transactionID := fs.String("transaction-id", "", "Transaction ID to inspect")
	fs.Parse(os.Args[2:])

	if *externalID == "" || *transactionID == "" {
		log.Fatal().Msg("Usage: cli inspect -user EXTERNAL_ID -transaction-id ID")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	svc, owner, closeFn := openLedger(ctx, cfg, log, *externalID)
	defer closeFn()

	tx, err := svc.Get(ctx, owner, *transactionID)
	if err != nil {
		log.Fatal().Err(err).Str("transaction_id", *transactionID).Msg("Failed to load transaction")
	}

	fmt.Println("\n=== Transaction Details ===")
	fmt.Printf("ID:          %s\n", tx.ID)
	fmt.Printf("Description: %s\n", tx.Description)
	fmt.Printf("Amount:      %s\n", tx.Amount.StringFixed(domain.AmountScale))
	fmt.Printf("Owner:       %s\n", tx.UserID)
	fmt.Printf("Created:     %s\n", tx.CreatedAt.Format(time.RFC3339))

	fmt.Printf("\n=== Memories (%d) ===\n", len(tx.Memories))
	for i, m := range tx.Memories {
		fmt.Printf("\n%d. %s\n", i+1, m.Title)
		if m.Description != "" {
			fmt.Printf("   Description: %s\n", m.Description)
		}
		if m.ImageURL != nil {
			fmt.Printf("   Image:       %s\n", *m.ImageURL)
		}
	}
	fmt.Println()
}

func runImage(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("image", flag.ExitOnError)
	assetID := fs.String("asset-id", "", "Object store asset ID of the upload")
	fs.Parse(os.Args[2:])

	if *assetID == "" {
		log.Fatal().Msg("Error: --asset-id is required")
	}
	if cfg.GCPProjectID == "" {
		log.Fatal().Msg("Error: GCP_PROJECT_ID is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	client, err := infraFS.NewClient(ctx, cfg.GCPProjectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Firestore client")
	}
	defer client.Close()

	rec, err := infraFS.NewImageStore(client, cfg.FirestoreCollection).GetImageRecord(ctx, *assetID)
	if err != nil {
		log.Fatal().Err(err).Str("asset_id", *assetID).Msg("Failed to load image record")
	}

	fmt.Println("\n=== Image Record ===")
	fmt.Printf("Asset ID:  %s\n", rec.AssetID)
	fmt.Printf("URL:       %s\n", rec.URL)
	fmt.Printf("Owner:     %s (%s)\n", rec.ExternalID, rec.UserID)
	fmt.Printf("Uploaded:  %s\n", rec.UploadedAt.Format(time.RFC3339))
	if rec.Title != "" {
		fmt.Printf("Title:     %s\n", rec.Title)
	}
	fmt.Println()
}
