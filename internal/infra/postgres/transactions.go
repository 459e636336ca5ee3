package postgres

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zentry-app/zentry-api/internal/domain"
)

// TransactionRow is a row of the transactions table. Amount travels as text
// so NUMERIC precision is never routed through a float.
type TransactionRow struct {
	ID          string
	Description string
	Amount      string
	UserID      string
	CreatedAt   time.Time
}

const transactionColumns = `t.id::text, t.description, t.amount::text, t.user_id, t.created_at`

func (r *TransactionRow) scanTargets() []any {
	return []any{&r.ID, &r.Description, &r.Amount, &r.UserID, &r.CreatedAt}
}

func (r TransactionRow) toDomain() (domain.Transaction, error) {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %s: amount %q: %w", r.ID, r.Amount, err)
	}
	return domain.Transaction{
		ID:          r.ID,
		Description: r.Description,
		Amount:      amount,
		UserID:      r.UserID,
		CreatedAt:   r.CreatedAt.UTC(),
		Memories:    []domain.Memory{},
	}, nil
}

// MemoryRow is a row of the memories table.
type MemoryRow struct {
	ID            string
	Title         string
	Description   string
	ImageURL      *string
	UserID        string
	TransactionID string
	Position      int
}

const memoryColumns = `id::text, title, description, image_url, user_id, transaction_id::text, position`

func (r *MemoryRow) scanTargets() []any {
	return []any{&r.ID, &r.Title, &r.Description, &r.ImageURL, &r.UserID, &r.TransactionID, &r.Position}
}

func (r MemoryRow) toDomain() domain.Memory {
	return domain.Memory{
		ID:            r.ID,
		Title:         r.Title,
		Description:   r.Description,
		ImageURL:      r.ImageURL,
		UserID:        r.UserID,
		TransactionID: r.TransactionID,
	}
}
