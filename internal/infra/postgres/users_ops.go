package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/zentry-app/zentry-api/internal/domain"
)

// FindUserByExternalIDWithClient loads a user. With lock set the row is held
// FOR SHARE, which blocks a concurrent delete until the caller's transaction ends.
func FindUserByExternalIDWithClient(ctx context.Context, db DBTX, externalID string, lock bool) (domain.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE external_id = $1`
	if lock {
		q += ` FOR SHARE`
	}
	var row UserRow
	if err := db.QueryRow(ctx, q, externalID).Scan(row.scanTargets()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("FindUserByExternalIDWithClient: %w", err)
	}
	return row.toDomain(), nil
}

// UpsertUserWithClient inserts a user or updates the row with the same
// external id. Empty email and nil optional fields keep the stored values.
func UpsertUserWithClient(ctx context.Context, db DBTX, u domain.User) (domain.User, error) {
	const q = `
		INSERT INTO users (external_id, email, display_name, avatar_url)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (external_id) DO UPDATE SET
			email        = COALESCE(NULLIF(EXCLUDED.email, ''), users.email),
			display_name = COALESCE(EXCLUDED.display_name, users.display_name),
			avatar_url   = COALESCE(EXCLUDED.avatar_url, users.avatar_url),
			updated_at   = now()
		RETURNING ` + userColumns

	var row UserRow
	err := db.QueryRow(ctx, q, u.ExternalID, u.Email, u.DisplayName, u.AvatarURL).Scan(row.scanTargets()...)
	if err != nil {
		return domain.User{}, fmt.Errorf("UpsertUserWithClient: %w", err)
	}
	return row.toDomain(), nil
}

// DeleteUserByExternalIDWithClient deletes a user; their transactions and
// memories go with them through ON DELETE CASCADE.
func DeleteUserByExternalIDWithClient(ctx context.Context, db DBTX, externalID string) (bool, error) {
	tag, err := db.Exec(ctx, `DELETE FROM users WHERE external_id = $1`, externalID)
	if err != nil {
		return false, fmt.Errorf("DeleteUserByExternalIDWithClient: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
