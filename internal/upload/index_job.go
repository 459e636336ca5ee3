package upload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/zentry-app/zentry-api/internal/domain"
	"github.com/zentry-app/zentry-api/internal/jobs"
)

// IndexJobHandler returns the queue handler that retries image record
// writes. A record that already exists counts as written.
func IndexJobHandler(images ImageRecordStore, timeout time.Duration, log zerolog.Logger) jobs.JobHandler {
	return func(ctx context.Context, job jobs.Job) error {
		indexJob, ok := job.(*jobs.IndexImageJob)
		if !ok {
			return fmt.Errorf("IndexJobHandler: unexpected job type %s", job.GetType())
		}

		ctx, cancel := withTimeout(ctx, timeout)
		defer cancel()

		_, err := images.CreateImageRecord(ctx, indexJob.Record)
		if errors.Is(err, domain.ErrDuplicateID) {
			err = nil
		}
		if err != nil {
			log.Warn().
				Err(err).
				Str("job_id", indexJob.JobID).
				Str("asset_id", indexJob.Record.AssetID).
				Int("retry_count", indexJob.RetryCount).
				Msg("Image index retry failed")
			return fmt.Errorf("IndexJobHandler: %w", err)
		}

		log.Info().
			Str("job_id", indexJob.JobID).
			Str("asset_id", indexJob.Record.AssetID).
			Str("transaction_id", indexJob.TransactionID).
			Msg("Image record indexed")
		return nil
	}
}
