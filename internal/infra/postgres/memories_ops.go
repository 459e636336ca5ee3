package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/zentry-app/zentry-api/internal/domain"
)

// InsertMemoriesWithClient inserts memories in one batch, keeping their order.
// The composite foreign key (transaction_id, user_id) rejects a memory whose
// owner differs from its parent transaction's owner.
func InsertMemoriesWithClient(ctx context.Context, db DBTX, memories []domain.Memory) error {
	if len(memories) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for i, m := range memories {
		batch.Queue(`
			INSERT INTO memories (id, title, description, image_url, user_id, transaction_id, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			m.ID, m.Title, m.Description, m.ImageURL, m.UserID, m.TransactionID, i,
		)
	}
	br := db.SendBatch(ctx, batch)
	for range memories {
		if _, err := br.Exec(); err != nil {
			br.Close()
			if pgCode(err) == codeForeignKeyViolation {
				return domain.ErrForbidden.Wrap(err)
			}
			return fmt.Errorf("InsertMemoriesWithClient: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("InsertMemoriesWithClient: close batch: %w", err)
	}
	return nil
}

// ListMemoriesWithClient returns the memories of the given transactions,
// grouped by transaction id and in insertion order.
func ListMemoriesWithClient(ctx context.Context, db DBTX, transactionIDs []string) (map[string][]domain.Memory, error) {
	rows, err := db.Query(ctx, `
		SELECT `+memoryColumns+`
		FROM memories
		WHERE transaction_id = ANY($1::uuid[])
		ORDER BY transaction_id, position`,
		transactionIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("ListMemoriesWithClient: query: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.Memory, len(transactionIDs))
	for rows.Next() {
		var row MemoryRow
		if err := rows.Scan(row.scanTargets()...); err != nil {
			return nil, fmt.Errorf("ListMemoriesWithClient: scan: %w", err)
		}
		out[row.TransactionID] = append(out[row.TransactionID], row.toDomain())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListMemoriesWithClient: rows: %w", err)
	}
	return out, nil
}
