package postgres

import (
	"time"

	"github.com/zentry-app/zentry-api/internal/domain"
)

// UserRow is a row of the users table.
type UserRow struct {
	ID          string
	ExternalID  string
	Email       string
	DisplayName *string
	AvatarURL   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const userColumns = `id::text, external_id, email, display_name, avatar_url, created_at, updated_at`

func (r *UserRow) scanTargets() []any {
	return []any{&r.ID, &r.ExternalID, &r.Email, &r.DisplayName, &r.AvatarURL, &r.CreatedAt, &r.UpdatedAt}
}

func (r UserRow) toDomain() domain.User {
	return domain.User{
		ID:          r.ID,
		ExternalID:  r.ExternalID,
		Email:       r.Email,
		DisplayName: r.DisplayName,
		AvatarURL:   r.AvatarURL,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}
