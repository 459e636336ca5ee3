// Package config loads service settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the binaries read at startup.
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	DatabaseURL string
	DBMaxConns  int32

	GCPProjectID        string
	GCSBucket           string
	FirestoreCollection string
	BigQueryDataset     string
	GeminiModel         string

	ClerkJWTKey            string
	ClerkIssuer            string
	ClerkAuthorizedParties []string
	ClerkWebhookSecret     string

	UploadMaxBytes int64

	NotionToken      string
	NotionDatabaseID string

	AuthTimeout        time.Duration
	ObjectStoreTimeout time.Duration
	AnalysisTimeout    time.Duration
	IndexTimeout       time.Duration
}

// Load reads a .env file if one exists and then the process environment.
// Variables already set in the environment take precedence over the file.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("Load: read env file: %w", err)
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from an arbitrary lookup function.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	r := reader{lookup: lookup}
	cfg := &Config{
		Port:      r.str("PORT", "8080"),
		LogLevel:  r.str("LOG_LEVEL", "info"),
		LogFormat: r.str("LOG_FORMAT", "console"),

		DatabaseURL: r.str("DATABASE_URL", ""),
		DBMaxConns:  int32(r.int("DB_MAX_CONNS", 10)),

		GCPProjectID:        r.str("GCP_PROJECT_ID", ""),
		GCSBucket:           r.str("GCS_BUCKET", ""),
		FirestoreCollection: r.str("FIRESTORE_COLLECTION", "images"),
		BigQueryDataset:     r.str("BIGQUERY_DATASET", "finance"),
		GeminiModel:         r.str("GEMINI_MODEL", "gemini-2.5-flash"),

		ClerkJWTKey:            r.str("CLERK_JWT_KEY", ""),
		ClerkIssuer:            r.str("CLERK_ISSUER", ""),
		ClerkAuthorizedParties: r.list("CLERK_AUTHORIZED_PARTIES"),
		ClerkWebhookSecret:     r.str("CLERK_WEBHOOK_SECRET", ""),

		UploadMaxBytes: int64(r.int("UPLOAD_MAX_BYTES", 10<<20)),

		NotionToken:      r.str("NOTION_TOKEN", ""),
		NotionDatabaseID: r.str("NOTION_DATABASE_ID", ""),

		AuthTimeout:        r.duration("AUTH_TIMEOUT", 5*time.Second),
		ObjectStoreTimeout: r.duration("OBJECT_STORE_TIMEOUT", 2*time.Minute),
		AnalysisTimeout:    r.duration("ANALYSIS_TIMEOUT", 90*time.Second),
		IndexTimeout:       r.duration("INDEX_TIMEOUT", 10*time.Second),
	}
	if len(r.errs) > 0 {
		return nil, errors.Join(r.errs...)
	}
	return cfg, nil
}

// ValidateAPI checks the settings cmd/api cannot run without.
func (c *Config) ValidateAPI(store string) error {
	var missing []string
	if store != "memory" && c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.ClerkJWTKey == "" {
		missing = append(missing, "CLERK_JWT_KEY")
	}
	if c.GCSBucket == "" {
		missing = append(missing, "GCS_BUCKET")
	}
	if c.GCPProjectID == "" {
		missing = append(missing, "GCP_PROJECT_ID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	if c.UploadMaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be positive")
	}
	return nil
}

type reader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (r *reader) str(key, def string) string {
	if v, ok := r.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (r *reader) int(key string, def int) int {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (r *reader) list(key string) []string {
	var out []string
	for _, p := range strings.Split(r.str(key, ""), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
