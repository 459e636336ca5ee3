package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"

	"github.com/zentry-app/zentry-api/internal/analysis"
	"github.com/zentry-app/zentry-api/internal/config"
	"github.com/zentry-app/zentry-api/internal/domain"
	"github.com/zentry-app/zentry-api/internal/gcsuploader"
	infraBQ "github.com/zentry-app/zentry-api/internal/infra/bigquery"
	infraFS "github.com/zentry-app/zentry-api/internal/infra/firestore"
	"github.com/zentry-app/zentry-api/internal/infra/postgres"
	"github.com/zentry-app/zentry-api/internal/ledger"
	"github.com/zentry-app/zentry-api/internal/logger"
	"github.com/zentry-app/zentry-api/internal/upload"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	var (
		externalID string
		filePath   string
	)
	flag.StringVar(&externalID, "user", "", "External (Clerk) id of the owning user (required)")
	flag.StringVar(&filePath, "file", "", "Path to local receipt image (required)")
	flag.Parse()

	if externalID == "" || filePath == "" {
		log.Fatal().Msg("Usage: upload-receipt -user EXTERNAL_ID -file /path/to/receipt.jpg")
	}
	if cfg.DatabaseURL == "" || cfg.GCSBucket == "" || cfg.GCPProjectID == "" {
		log.Fatal().Msg("DATABASE_URL, GCS_BUCKET and GCP_PROJECT_ID must be set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ObjectStoreTimeout+cfg.AnalysisTimeout+time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, 2)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Postgres")
	}
	defer pool.Close()
	store := postgres.NewStore(pool)

	user, err := store.FindUserByExternalID(ctx, externalID)
	if err != nil {
		log.Fatal().Err(err).Str("external_id", externalID).Msg("User lookup failed")
	}
	owner := domain.Identity{UserID: user.ID, ExternalID: user.ExternalID}

	fsClient, err := infraFS.NewClient(ctx, cfg.GCPProjectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create Firestore client")
	}
	defer fsClient.Close()

	bqClient, err := infraBQ.NewClient(ctx, cfg.GCPProjectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer bqClient.Close()

	gcsClient, err := storage.NewClient(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create GCS client")
	}
	defer gcsClient.Close()

	genaiClient, err := analysis.NewClient(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create GenAI client")
	}

	orchestrator := upload.New(
		store,
		gcsuploader.New(gcsClient, cfg.GCSBucket),
		analysis.NewGeminiAnalyzer(genaiClient, cfg.GeminiModel),
		ledger.NewService(store, log),
		infraFS.NewImageStore(fsClient, cfg.FirestoreCollection),
		log,
		upload.WithAuditLog(infraBQ.NewAuditLog(bqClient, cfg.BigQueryDataset)),
		upload.WithMaxBytes(cfg.UploadMaxBytes),
		upload.WithTimeouts(upload.Timeouts{
			ObjectStore: cfg.ObjectStoreTimeout,
			Analysis:    cfg.AnalysisTimeout,
			Index:       cfg.IndexTimeout,
		}),
	)

	file, err := os.Open(filePath)
	if err != nil {
		log.Fatal().Err(err).Str("file", filePath).Msg("Failed to open file")
	}
	defer file.Close()

	log.Info().
		Str("file", filePath).
		Str("external_id", externalID).
		Msg("Uploading receipt")

	res, err := orchestrator.Process(ctx, owner, &upload.File{
		Name:   filepath.Base(filePath),
		Reader: file,
	})
	orchestrator.Wait()

	// No retry queue here: an index failure leaves the transaction in place
	// and is reported so the operator can rerun indexing.
	if err != nil && !errors.Is(err, domain.ErrImageIndex) {
		log.Fatal().Err(err).Msg("Upload failed")
	}
	if err != nil {
		log.Error().Err(err).Str("transaction_id", res.Transaction.ID).Msg("Transaction saved but image record was not written")
	}

	out, _ := json.MarshalIndent(res, "", "  ")
	fmt.Println(string(out))
	if err != nil {
		os.Exit(2)
	}
}
