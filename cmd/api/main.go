package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"

	"github.com/zentry-app/zentry-api/internal/analysis"
	"github.com/zentry-app/zentry-api/internal/api/handlers"
	"github.com/zentry-app/zentry-api/internal/api/middleware"
	"github.com/zentry-app/zentry-api/internal/auth"
	"github.com/zentry-app/zentry-api/internal/config"
	"github.com/zentry-app/zentry-api/internal/domain"
	"github.com/zentry-app/zentry-api/internal/gcsuploader"
	infraBQ "github.com/zentry-app/zentry-api/internal/infra/bigquery"
	infraFS "github.com/zentry-app/zentry-api/internal/infra/firestore"
	"github.com/zentry-app/zentry-api/internal/infra/memory"
	"github.com/zentry-app/zentry-api/internal/infra/postgres"
	"github.com/zentry-app/zentry-api/internal/jobs/inmemory"
	"github.com/zentry-app/zentry-api/internal/ledger"
	"github.com/zentry-app/zentry-api/internal/logger"
	"github.com/zentry-app/zentry-api/internal/upload"
	"github.com/zentry-app/zentry-api/internal/webhook"
)

// appStore is the relational side of the API: users plus the ledger.
type appStore interface {
	ledger.Store
	FindUserByExternalID(ctx context.Context, externalID string) (domain.User, error)
	UpsertUser(ctx context.Context, u domain.User) (domain.User, error)
	DeleteUserByExternalID(ctx context.Context, externalID string) (bool, error)
}

var (
	_ appStore = (*memory.Store)(nil)
	_ appStore = (*postgres.Store)(nil)
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// Parse command-line flags
	var (
		port      = flag.String("port", cfg.Port, "HTTP server port (or set PORT env)")
		storeMode = flag.String("store", "postgres", "relational store: postgres or memory (local development)")
	)
	flag.Parse()

	// Initialize logger
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	if *storeMode != "postgres" && *storeMode != "memory" {
		log.Fatal().Str("store", *storeMode).Msg("Unknown store mode")
	}
	if err := cfg.ValidateAPI(*storeMode); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx := context.Background()

	// Process-wide clients, created once and shared by every request
	var (
		store    appStore
		images   upload.ImageRecordStore
		auditLog upload.AuditLog
	)
	switch *storeMode {
	case "memory":
		log.Warn().Msg("Using in-memory stores - data is lost on restart")
		mem := memory.NewStore()
		store, images = mem, mem

	default:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Postgres")
		}
		defer pool.Close()
		store = postgres.NewStore(pool)

		fsClient, err := infraFS.NewClient(ctx, cfg.GCPProjectID)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create Firestore client")
		}
		defer fsClient.Close()
		images = infraFS.NewImageStore(fsClient, cfg.FirestoreCollection)

		bqClient, err := infraBQ.NewClient(ctx, cfg.GCPProjectID)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery client")
		}
		defer bqClient.Close()
		auditLog = infraBQ.NewAuditLog(bqClient, cfg.BigQueryDataset)
	}

	gcsClient, err := storage.NewClient(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create GCS client")
	}
	defer gcsClient.Close()

	genaiClient, err := analysis.NewClient(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create GenAI client")
	}

	verifier, err := auth.NewClerkVerifier(cfg.ClerkJWTKey, cfg.ClerkIssuer, cfg.ClerkAuthorizedParties)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load Clerk verification key")
	}
	resolver := auth.NewResolver(verifier, store, cfg.AuthTimeout)

	// Initialize job infrastructure for image index retries
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	if err := jobQueue.Start(workerCtx, upload.IndexJobHandler(images, cfg.IndexTimeout, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job queue")
	}
	log.Info().Msg("Job worker started")

	svc := ledger.NewService(store, log)
	uploadOpts := []upload.Option{
		upload.WithIndexPublisher(jobQueue),
		upload.WithMaxBytes(cfg.UploadMaxBytes),
		upload.WithTimeouts(upload.Timeouts{
			ObjectStore: cfg.ObjectStoreTimeout,
			Analysis:    cfg.AnalysisTimeout,
			Index:       cfg.IndexTimeout,
		}),
	}
	if auditLog != nil {
		uploadOpts = append(uploadOpts, upload.WithAuditLog(auditLog))
	}
	orchestrator := upload.New(
		store,
		gcsuploader.New(gcsClient, cfg.GCSBucket),
		analysis.NewGeminiAnalyzer(genaiClient, cfg.GeminiModel),
		svc,
		images,
		log,
		uploadOpts...,
	)

	routes := handlers.Router{
		Transactions: handlers.NewTransactionsHandler(svc, log),
		Upload:       handlers.NewUploadHandler(orchestrator, cfg.UploadMaxBytes, log),
		Jobs:         handlers.NewJobsHandler(jobStore, log),
	}
	if cfg.ClerkWebhookSecret != "" {
		sigVerifier, err := webhook.NewSignatureVerifier(cfg.ClerkWebhookSecret)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid CLERK_WEBHOOK_SECRET")
		}
		routes.Webhook = handlers.NewWebhookHandler(webhook.NewProcessor(sigVerifier, store, log), log)
	} else {
		log.Warn().Msg("No CLERK_WEBHOOK_SECRET configured - user provisioning webhook is disabled")
	}

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(
					middleware.Auth(resolver, log, handlers.PublicPaths...)(handlers.NewRouter(routes)),
				),
			),
		),
	)

	// Create HTTP server. Uploads wait on the object store and the model, so
	// the write timeout covers both step timeouts.
	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: cfg.ObjectStoreTimeout + cfg.AnalysisTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", *port).Str("store", *storeMode).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdown(log, server, jobQueue, orchestrator, cancelWorker)
}

func shutdown(log zerolog.Logger, server *http.Server, jobQueue *inmemory.Queue, orchestrator *upload.Orchestrator, cancelWorker context.CancelFunc) {
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	// Let pending audit writes finish
	orchestrator.Wait()

	log.Info().Msg("Server exited")
}
