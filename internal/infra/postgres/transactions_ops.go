package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/zentry-app/zentry-api/internal/domain"
)

// InsertTransactionWithClient inserts a transaction row. A missing owner
// surfaces as domain.ErrUserNotFound.
func InsertTransactionWithClient(ctx context.Context, db DBTX, tx domain.Transaction) error {
	_, err := db.Exec(ctx, `
		INSERT INTO transactions (id, description, amount, user_id, created_at)
		VALUES ($1, $2, $3::numeric, $4, $5)`,
		tx.ID, tx.Description, tx.Amount.StringFixed(domain.AmountScale), tx.UserID, tx.CreatedAt,
	)
	switch pgCode(err) {
	case "":
	case codeForeignKeyViolation:
		return domain.ErrUserNotFound.Wrap(err)
	case codeUniqueViolation:
		return domain.ErrDuplicateID.Wrap(err)
	}
	if err != nil {
		return fmt.Errorf("InsertTransactionWithClient: %w", err)
	}
	return nil
}

// LockTransactionOwnerWithClient returns the owner of a transaction and
// locks its row FOR UPDATE.
func LockTransactionOwnerWithClient(ctx context.Context, db DBTX, id string) (string, error) {
	var owner string
	err := db.QueryRow(ctx, `SELECT user_id FROM transactions WHERE id = $1 FOR UPDATE`, id).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrTransactionNotFound
	}
	if err != nil {
		return "", fmt.Errorf("LockTransactionOwnerWithClient: %w", err)
	}
	return owner, nil
}

// UpdateTransactionWithClient applies the non-nil fields of patch.
func UpdateTransactionWithClient(ctx context.Context, db DBTX, id string, patch domain.TransactionPatch) error {
	var amount *string
	if patch.Amount != nil {
		s := patch.Amount.StringFixed(domain.AmountScale)
		amount = &s
	}
	tag, err := db.Exec(ctx, `
		UPDATE transactions SET
			description = COALESCE($2, description),
			amount      = COALESCE($3::numeric, amount)
		WHERE id = $1`,
		id, patch.Description, amount,
	)
	if err != nil {
		return fmt.Errorf("UpdateTransactionWithClient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTransactionNotFound
	}
	return nil
}

// DeleteTransactionWithClient deletes a transaction; its memories are removed
// by ON DELETE CASCADE in the same statement.
func DeleteTransactionWithClient(ctx context.Context, db DBTX, id string) error {
	tag, err := db.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("DeleteTransactionWithClient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTransactionNotFound
	}
	return nil
}

// GetTransactionWithClient loads one transaction with its memories.
func GetTransactionWithClient(ctx context.Context, db DBTX, id string) (domain.Transaction, error) {
	var row TransactionRow
	err := db.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions t WHERE t.id = $1`, id).Scan(row.scanTargets()...)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Transaction{}, domain.ErrTransactionNotFound
	}
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("GetTransactionWithClient: %w", err)
	}
	tx, err := row.toDomain()
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("GetTransactionWithClient: %w", err)
	}

	memories, err := ListMemoriesWithClient(ctx, db, []string{id})
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("GetTransactionWithClient: %w", err)
	}
	if ms, ok := memories[id]; ok {
		tx.Memories = ms
	}
	return tx, nil
}

// ListTransactionsWithClient returns an owner's transactions inside r, newest
// first, with memories and the owner snapshot attached.
func ListTransactionsWithClient(ctx context.Context, db DBTX, ownerExternalID string, r domain.DateRange) ([]domain.Transaction, error) {
	rows, err := db.Query(ctx, `
		SELECT `+transactionColumns+`, u.external_id, u.display_name, u.email
		FROM transactions t
		JOIN users u ON u.external_id = t.user_id
		WHERE t.user_id = $1
		  AND ($2::timestamptz IS NULL OR t.created_at >= $2)
		  AND ($3::timestamptz IS NULL OR t.created_at <= $3)
		ORDER BY t.created_at DESC, t.id DESC`,
		ownerExternalID, r.Start, r.End,
	)
	if err != nil {
		return nil, fmt.Errorf("ListTransactionsWithClient: query: %w", err)
	}
	defer rows.Close()

	out := []domain.Transaction{}
	var ids []string
	for rows.Next() {
		var row TransactionRow
		var owner domain.OwnerSnapshot
		targets := append(row.scanTargets(), &owner.ExternalID, &owner.DisplayName, &owner.Email)
		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("ListTransactionsWithClient: scan: %w", err)
		}
		tx, err := row.toDomain()
		if err != nil {
			return nil, fmt.Errorf("ListTransactionsWithClient: %w", err)
		}
		tx.Owner = &owner
		out = append(out, tx)
		ids = append(ids, tx.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListTransactionsWithClient: rows: %w", err)
	}
	if len(ids) == 0 {
		return out, nil
	}

	memories, err := ListMemoriesWithClient(ctx, db, ids)
	if err != nil {
		return nil, fmt.Errorf("ListTransactionsWithClient: %w", err)
	}
	for i := range out {
		if ms, ok := memories[out[i].ID]; ok {
			out[i].Memories = ms
		}
	}
	return out, nil
}
