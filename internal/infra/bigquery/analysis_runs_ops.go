package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
)

// InsertAnalysisRunWithClient inserts a single AnalysisRunRow into
// <project>.<dataset>.analysis_runs using the provided BigQuery client.
// Uses DML INSERT to avoid streaming buffer issues.
func InsertAnalysisRunWithClient(ctx context.Context, client *bigquery.Client, dataset string, row *AnalysisRunRow) error {
	if row.RunID == "" || row.AssetID == "" || row.UserID == "" {
		return fmt.Errorf("InsertAnalysisRun: run_id, asset_id and user_id are required")
	}

	q := client.Query(`
		INSERT INTO ` + tableRef(client.Project(), dataset, analysisRunsTable) + ` (
			run_id, asset_id, user_id,
			model, status, extracted_text,
			amount, amount_found, error_message, created_at
		)
		VALUES (
			@run_id, @asset_id, @user_id,
			@model, @status, @extracted_text,
			CAST(@amount AS NUMERIC), @amount_found, @error_message,
			COALESCE(@created_at, CURRENT_TIMESTAMP())
		)
	`)

	q.Parameters = []bigquery.QueryParameter{
		{Name: "run_id", Value: row.RunID},
		{Name: "asset_id", Value: row.AssetID},
		{Name: "user_id", Value: row.UserID},
		{Name: "model", Value: row.Model},
		{Name: "status", Value: row.Status},
		{Name: "extracted_text", Value: row.ExtractedText},
		{Name: "amount", Value: row.Amount},
		{Name: "amount_found", Value: row.AmountFound},
		{Name: "error_message", Value: row.ErrorMessage},
		{Name: "created_at", Value: row.CreatedAt},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("InsertAnalysisRun: running insert query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("InsertAnalysisRun: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("InsertAnalysisRun: job error: %w", err)
	}

	return nil
}

func tableRef(project, dataset, table string) string {
	return "`" + project + "." + dataset + "." + table + "`"
}
