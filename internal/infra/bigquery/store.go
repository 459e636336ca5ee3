// Package bigquery records AI analysis attempts in BigQuery for later
// analytics. Writes are best-effort from the caller's point of view.
package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"

	"github.com/zentry-app/zentry-api/internal/domain"
)

// AuditLog writes analysis runs to a dataset through a shared client.
type AuditLog struct {
	client  *bigquery.Client
	dataset string
}

// NewClient creates a BigQuery client for projectID.
func NewClient(ctx context.Context, projectID string) (*bigquery.Client, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewClient: creating client: %w", err)
	}
	return client, nil
}

// NewAuditLog wraps a shared client. The caller owns the client's lifetime.
func NewAuditLog(client *bigquery.Client, dataset string) *AuditLog {
	return &AuditLog{client: client, dataset: dataset}
}

// RecordAnalysisRun inserts one audit entry.
func (l *AuditLog) RecordAnalysisRun(ctx context.Context, run domain.AnalysisRun) error {
	return InsertAnalysisRunWithClient(ctx, l.client, l.dataset, NewAnalysisRunRow(run))
}
