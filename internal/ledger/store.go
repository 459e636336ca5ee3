package ledger

import (
	"context"

	"github.com/zentry-app/zentry-api/internal/domain"
)

// Queries are the row-level operations available inside one unit of work.
// Implementations return domain.ErrUserNotFound and domain.ErrTransactionNotFound
// for missing rows.
type Queries interface {
	// UserByExternalID loads a provisioned user and holds it against
	// concurrent deletion until the unit of work ends.
	UserByExternalID(ctx context.Context, externalID string) (domain.User, error)

	InsertTransaction(ctx context.Context, tx domain.Transaction) error
	InsertMemories(ctx context.Context, memories []domain.Memory) error

	// LockTransactionOwner returns the owner of a transaction and locks the row
	// until the unit of work ends.
	LockTransactionOwner(ctx context.Context, id string) (string, error)

	UpdateTransaction(ctx context.Context, id string, patch domain.TransactionPatch) error

	// DeleteTransaction removes a transaction together with its memories.
	DeleteTransaction(ctx context.Context, id string) error

	// GetTransaction loads a transaction with its memories, oldest memory first.
	GetTransaction(ctx context.Context, id string) (domain.Transaction, error)
}

// Store is the relational backing of the ledger.
type Store interface {
	// InTx runs fn in a single atomic unit of work. Any error returned by fn
	// discards every write fn made.
	InTx(ctx context.Context, fn func(q Queries) error) error

	// ListTransactions returns the owner's transactions inside r, newest first,
	// each with its memories and an owner snapshot.
	ListTransactions(ctx context.Context, ownerExternalID string, r domain.DateRange) ([]domain.Transaction, error)
}
