package bigquery

import (
	"cloud.google.com/go/bigquery"

	"github.com/zentry-app/zentry-api/internal/domain"
)

const analysisRunsTable = "analysis_runs"

// AnalysisRunRow mirrors one row of analysis_runs.
type AnalysisRunRow struct {
	RunID   string `bigquery:"run_id"`   // REQUIRED
	AssetID string `bigquery:"asset_id"` // REQUIRED
	UserID  string `bigquery:"user_id"`  // REQUIRED

	Model  bigquery.NullString `bigquery:"model"`  // NULLABLE
	Status string              `bigquery:"status"` // REQUIRED

	ExtractedText bigquery.NullString `bigquery:"extracted_text"` // NULLABLE
	Amount        bigquery.NullString `bigquery:"amount"`         // NULLABLE NUMERIC, sent as text
	AmountFound   bigquery.NullBool   `bigquery:"amount_found"`   // NULLABLE
	ErrorMessage  bigquery.NullString `bigquery:"error_message"`  // NULLABLE

	CreatedAt bigquery.NullTimestamp `bigquery:"created_at"` // REQUIRED
}

// NewAnalysisRunRow converts a domain audit entry into a row. The amount is
// only set when the analysis produced one.
func NewAnalysisRunRow(run domain.AnalysisRun) *AnalysisRunRow {
	row := &AnalysisRunRow{
		RunID:         run.RunID,
		AssetID:       run.AssetID,
		UserID:        run.UserID,
		Model:         nullString(run.Model),
		Status:        run.Status,
		ExtractedText: nullString(run.ExtractedText),
		ErrorMessage:  nullString(run.ErrorMessage),
		CreatedAt:     bigquery.NullTimestamp{Timestamp: run.CreatedAt.UTC(), Valid: !run.CreatedAt.IsZero()},
	}
	if run.Status == domain.AnalysisStatusSucceeded {
		row.AmountFound = bigquery.NullBool{Bool: run.AmountFound, Valid: true}
		if run.AmountFound {
			row.Amount = nullString(run.Amount.StringFixed(domain.AmountScale))
		}
	}
	return row
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}
