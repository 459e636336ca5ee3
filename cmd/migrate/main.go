package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/zentry-app/zentry-api/internal/config"
	"github.com/zentry-app/zentry-api/internal/logger"
)

func main() {
	var (
		target        = flag.String("target", "postgres", "Migration target: postgres or bigquery")
		projectID     = flag.String("project", "", "GCP project ID (bigquery target; defaults to GCP_PROJECT_ID)")
		datasetID     = flag.String("dataset", "", "BigQuery dataset ID (defaults to BIGQUERY_DATASET)")
		appliedBy     = flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
		migrationsDir = flag.String("migrations", "", "Path to migrations directory (defaults to migrations/<target>)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	ctx := logger.WithContext(context.Background(), log)
	if *projectID == "" {
		*projectID = cfg.GCPProjectID
	}
	if *datasetID == "" {
		*datasetID = cfg.BigQueryDataset
	}
	if *migrationsDir == "" {
		*migrationsDir = "migrations/" + *target
	}

	var (
		t            Target
		placeholders map[string]string
	)
	switch *target {
	case "postgres":
		if cfg.DatabaseURL == "" {
			log.Fatal().Msg("Error: DATABASE_URL is required for the postgres target")
		}
		t, err = newPostgresTarget(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Postgres")
		}
		log.Info().Msg("Connected to Postgres")
	case "bigquery":
		if *projectID == "" {
			log.Fatal().Msg("Error: -project flag or GCP_PROJECT_ID is required for the bigquery target")
		}
		t, err = newBigQueryTarget(ctx, *projectID, *datasetID)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery client")
		}
		placeholders = map[string]string{
			"{{PROJECT_ID}}": *projectID,
			"{{DATASET_ID}}": *datasetID,
		}
		log.Info().Str("project_id", *projectID).Str("dataset_id", *datasetID).Msg("Connected to BigQuery")
	default:
		log.Fatal().Str("target", *target).Msg("Error: unknown target (want postgres or bigquery)")
	}
	defer t.Close()

	count, err := run(ctx, t, *migrationsDir, placeholders, *appliedBy)
	if err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
	if count == 0 {
		log.Info().Msg("No new migrations to apply. Database is up to date.")
	} else {
		log.Info().Int("count", count).Msg("Successfully applied migrations")
	}
}
