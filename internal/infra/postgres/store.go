package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zentry-app/zentry-api/internal/domain"
	"github.com/zentry-app/zentry-api/internal/ledger"
)

// Store implements ledger.Store and the user store over a shared pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps an open pool. The caller owns the pool's lifetime.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var _ ledger.Store = (*Store)(nil)

// InTx implements ledger.Store.
func (s *Store) InTx(ctx context.Context, fn func(q ledger.Queries) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("InTx: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&queries{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("InTx: commit: %w", err)
	}
	return nil
}

// ListTransactions implements ledger.Store.
func (s *Store) ListTransactions(ctx context.Context, ownerExternalID string, r domain.DateRange) ([]domain.Transaction, error) {
	return ListTransactionsWithClient(ctx, s.pool, ownerExternalID, r)
}

// FindUserByExternalID returns the user provisioned for externalID.
func (s *Store) FindUserByExternalID(ctx context.Context, externalID string) (domain.User, error) {
	return FindUserByExternalIDWithClient(ctx, s.pool, externalID, false)
}

// UserExists reports whether a user is provisioned for externalID.
func (s *Store) UserExists(ctx context.Context, externalID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE external_id = $1)`, externalID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("UserExists: %w", err)
	}
	return exists, nil
}

// UpsertUser creates or updates a user by external id.
func (s *Store) UpsertUser(ctx context.Context, u domain.User) (domain.User, error) {
	return UpsertUserWithClient(ctx, s.pool, u)
}

// DeleteUserByExternalID deletes a user and everything they own.
func (s *Store) DeleteUserByExternalID(ctx context.Context, externalID string) (bool, error) {
	return DeleteUserByExternalIDWithClient(ctx, s.pool, externalID)
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

type queries struct {
	db DBTX
}

func (q *queries) UserByExternalID(ctx context.Context, externalID string) (domain.User, error) {
	return FindUserByExternalIDWithClient(ctx, q.db, externalID, true)
}

func (q *queries) InsertTransaction(ctx context.Context, tx domain.Transaction) error {
	return InsertTransactionWithClient(ctx, q.db, tx)
}

func (q *queries) InsertMemories(ctx context.Context, memories []domain.Memory) error {
	return InsertMemoriesWithClient(ctx, q.db, memories)
}

func (q *queries) LockTransactionOwner(ctx context.Context, id string) (string, error) {
	return LockTransactionOwnerWithClient(ctx, q.db, id)
}

func (q *queries) UpdateTransaction(ctx context.Context, id string, patch domain.TransactionPatch) error {
	return UpdateTransactionWithClient(ctx, q.db, id, patch)
}

func (q *queries) DeleteTransaction(ctx context.Context, id string) error {
	return DeleteTransactionWithClient(ctx, q.db, id)
}

func (q *queries) GetTransaction(ctx context.Context, id string) (domain.Transaction, error) {
	return GetTransactionWithClient(ctx, q.db, id)
}
