// Package memory is an in-process implementation of the user, ledger and
// image record stores. It mirrors the relational constraints of the Postgres
// schema and is used for local development and tests.
package memory

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zentry-app/zentry-api/internal/domain"
	"github.com/zentry-app/zentry-api/internal/ledger"
)

type state struct {
	users    map[string]domain.User        // by external id
	txs      map[string]domain.Transaction // by id, without memories
	memories map[string][]domain.Memory    // by transaction id
	images   map[string]domain.ImageRecord // by asset id
}

func (s state) clone() state {
	return state{
		users:    maps.Clone(s.users),
		txs:      maps.Clone(s.txs),
		memories: maps.Clone(s.memories),
		images:   maps.Clone(s.images),
	}
}

// Store holds all records in memory. Units of work are serialized and
// applied to a copy that replaces the live state only on success.
type Store struct {
	mu  sync.RWMutex
	st  state
	now func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		st: state{
			users:    make(map[string]domain.User),
			txs:      make(map[string]domain.Transaction),
			memories: make(map[string][]domain.Memory),
			images:   make(map[string]domain.ImageRecord),
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

var _ ledger.Store = (*Store)(nil)

// InTx implements ledger.Store.
func (s *Store) InTx(ctx context.Context, fn func(q ledger.Queries) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&queries{st: &work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

// ListTransactions implements ledger.Store.
func (s *Store) ListTransactions(ctx context.Context, ownerExternalID string, r domain.DateRange) ([]domain.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.st.users[ownerExternalID]
	var snap *domain.OwnerSnapshot
	if ok {
		v := u.Snapshot()
		snap = &v
	}

	out := []domain.Transaction{}
	for _, tx := range s.st.txs {
		if tx.UserID != ownerExternalID || !r.Contains(tx.CreatedAt) {
			continue
		}
		tx.Memories = copyMemories(s.st.memories[tx.ID])
		if snap != nil {
			o := *snap
			tx.Owner = &o
		}
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// MemoryCount returns the number of memories attached to transaction id.
func (s *Store) MemoryCount(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.st.memories[id])
}

// TransactionCount returns the number of stored transactions.
func (s *Store) TransactionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.st.txs)
}

type queries struct {
	st *state
}

func (q *queries) UserByExternalID(ctx context.Context, externalID string) (domain.User, error) {
	u, ok := q.st.users[externalID]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}

func (q *queries) InsertTransaction(ctx context.Context, tx domain.Transaction) error {
	if _, ok := q.st.users[tx.UserID]; !ok {
		return domain.ErrUserNotFound
	}
	if _, ok := q.st.txs[tx.ID]; ok {
		return domain.ErrDuplicateID
	}
	tx.Memories = nil
	tx.Owner = nil
	q.st.txs[tx.ID] = tx
	return nil
}

func (q *queries) InsertMemories(ctx context.Context, memories []domain.Memory) error {
	for _, m := range memories {
		parent, ok := q.st.txs[m.TransactionID]
		if !ok {
			return domain.ErrTransactionNotFound
		}
		if parent.UserID != m.UserID {
			return domain.ErrForbidden
		}
		existing := q.st.memories[m.TransactionID]
		next := make([]domain.Memory, len(existing), len(existing)+1)
		copy(next, existing)
		q.st.memories[m.TransactionID] = append(next, m)
	}
	return nil
}

func (q *queries) LockTransactionOwner(ctx context.Context, id string) (string, error) {
	tx, ok := q.st.txs[id]
	if !ok {
		return "", domain.ErrTransactionNotFound
	}
	return tx.UserID, nil
}

func (q *queries) UpdateTransaction(ctx context.Context, id string, patch domain.TransactionPatch) error {
	tx, ok := q.st.txs[id]
	if !ok {
		return domain.ErrTransactionNotFound
	}
	if patch.Description != nil {
		tx.Description = *patch.Description
	}
	if patch.Amount != nil {
		tx.Amount = *patch.Amount
	}
	q.st.txs[id] = tx
	return nil
}

func (q *queries) DeleteTransaction(ctx context.Context, id string) error {
	if _, ok := q.st.txs[id]; !ok {
		return domain.ErrTransactionNotFound
	}
	delete(q.st.txs, id)
	delete(q.st.memories, id)
	return nil
}

func (q *queries) GetTransaction(ctx context.Context, id string) (domain.Transaction, error) {
	tx, ok := q.st.txs[id]
	if !ok {
		return domain.Transaction{}, domain.ErrTransactionNotFound
	}
	tx.Memories = copyMemories(q.st.memories[id])
	return tx, nil
}

func copyMemories(ms []domain.Memory) []domain.Memory {
	out := make([]domain.Memory, len(ms))
	copy(out, ms)
	return out
}

func newID() string { return uuid.New().String() }
