// Package ledger implements transaction and memory persistence with
// per-owner authorization.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/zentry-app/zentry-api/internal/domain"
)

// CreateInput is a validated-on-use request to create a transaction.
type CreateInput struct {
	Description string
	Amount      decimal.Decimal
	Memories    []domain.MemoryInput
}

// Service enforces validation and ownership on top of a Store.
type Service struct {
	store Store
	log   zerolog.Logger
	now   func() time.Time
	newID func() string
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a ledger service over store.
func NewService(store Store, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store: store,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates the input and persists the transaction and its memories
// atomically for the identified owner.
func (s *Service) Create(ctx context.Context, owner domain.Identity, in CreateInput) (domain.Transaction, error) {
	desc, err := domain.NormalizeDescription(in.Description)
	if err != nil {
		return domain.Transaction{}, err
	}
	amount, err := domain.NormalizeAmount(in.Amount)
	if err != nil {
		return domain.Transaction{}, err
	}

	tx := domain.Transaction{
		ID:          s.newID(),
		Description: desc,
		Amount:      amount,
		UserID:      owner.ExternalID,
		CreatedAt:   s.now().Truncate(time.Microsecond),
		Memories:    make([]domain.Memory, 0, len(in.Memories)),
	}
	for _, mi := range in.Memories {
		m := domain.NewMemory(mi, owner.ExternalID)
		m.ID = s.newID()
		m.TransactionID = tx.ID
		tx.Memories = append(tx.Memories, m)
	}

	err = s.store.InTx(ctx, func(q Queries) error {
		if _, err := q.UserByExternalID(ctx, owner.ExternalID); err != nil {
			return err
		}
		if err := q.InsertTransaction(ctx, tx); err != nil {
			return err
		}
		if len(tx.Memories) > 0 {
			return q.InsertMemories(ctx, tx.Memories)
		}
		return nil
	})
	if err != nil {
		return domain.Transaction{}, s.fail("Create", owner, "", err)
	}

	s.log.Info().
		Str("transaction_id", tx.ID).
		Str("owner_id", owner.ExternalID).
		Int("memories", len(tx.Memories)).
		Msg("Transaction created")
	return tx, nil
}

// List returns the owner's transactions within r, newest first.
func (s *Service) List(ctx context.Context, owner domain.Identity, r domain.DateRange) ([]domain.Transaction, error) {
	if r.Start != nil && r.End != nil && r.Start.After(*r.End) {
		return nil, domain.Validation("invalid_date_range", "startDate must not be after endDate")
	}
	txs, err := s.store.ListTransactions(ctx, owner.ExternalID, r)
	if err != nil {
		return nil, s.fail("List", owner, "", err)
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	return txs, nil
}

// Summary aggregates the owner's transactions within r.
func (s *Service) Summary(ctx context.Context, owner domain.Identity, r domain.DateRange) (domain.Summary, error) {
	txs, err := s.List(ctx, owner, r)
	if err != nil {
		return domain.Summary{}, err
	}
	var sum domain.Summary
	for _, tx := range txs {
		if tx.Amount.IsPositive() {
			sum.Income = sum.Income.Add(tx.Amount)
		} else {
			sum.Expense = sum.Expense.Add(tx.Amount.Abs())
		}
	}
	sum.Net = sum.Income.Sub(sum.Expense)
	sum.Count = len(txs)
	return sum, nil
}

// Get returns a transaction owned by owner.
func (s *Service) Get(ctx context.Context, owner domain.Identity, id string) (domain.Transaction, error) {
	if err := validateID(id); err != nil {
		return domain.Transaction{}, err
	}
	var tx domain.Transaction
	err := s.store.InTx(ctx, func(q Queries) error {
		var err error
		tx, err = q.GetTransaction(ctx, id)
		if err != nil {
			return err
		}
		if tx.UserID != owner.ExternalID {
			return domain.ErrForbidden
		}
		return nil
	})
	if err != nil {
		return domain.Transaction{}, s.fail("Get", owner, id, err)
	}
	return tx, nil
}

// Update applies the supplied fields of patch to a transaction owned by owner.
// An empty patch returns the transaction unchanged.
func (s *Service) Update(ctx context.Context, owner domain.Identity, id string, patch domain.TransactionPatch) (domain.Transaction, error) {
	if err := validateID(id); err != nil {
		return domain.Transaction{}, err
	}
	if patch.Description != nil {
		desc, err := domain.NormalizeDescription(*patch.Description)
		if err != nil {
			return domain.Transaction{}, err
		}
		patch.Description = &desc
	}
	if patch.Amount != nil {
		amount, err := domain.NormalizeAmount(*patch.Amount)
		if err != nil {
			return domain.Transaction{}, err
		}
		patch.Amount = &amount
	}

	var tx domain.Transaction
	err := s.store.InTx(ctx, func(q Queries) error {
		if err := lockOwned(ctx, q, owner, id); err != nil {
			return err
		}
		if !patch.Empty() {
			if err := q.UpdateTransaction(ctx, id, patch); err != nil {
				return err
			}
		}
		var err error
		tx, err = q.GetTransaction(ctx, id)
		return err
	})
	if err != nil {
		return domain.Transaction{}, s.fail("Update", owner, id, err)
	}

	s.log.Info().Str("transaction_id", id).Str("owner_id", owner.ExternalID).Msg("Transaction updated")
	return tx, nil
}

// Delete removes a transaction owned by owner along with its memories.
func (s *Service) Delete(ctx context.Context, owner domain.Identity, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	err := s.store.InTx(ctx, func(q Queries) error {
		if err := lockOwned(ctx, q, owner, id); err != nil {
			return err
		}
		return q.DeleteTransaction(ctx, id)
	})
	if err != nil {
		return s.fail("Delete", owner, id, err)
	}

	s.log.Info().Str("transaction_id", id).Str("owner_id", owner.ExternalID).Msg("Transaction deleted")
	return nil
}

// lockOwned locks the transaction row and checks that owner holds it.
func lockOwned(ctx context.Context, q Queries, owner domain.Identity, id string) error {
	ownerID, err := q.LockTransactionOwner(ctx, id)
	if err != nil {
		return err
	}
	if ownerID != owner.ExternalID {
		return domain.ErrForbidden
	}
	return nil
}

func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrInvalidID
	}
	return nil
}

// fail logs unclassified errors with enough context to diagnose them and
// wraps every error with the operation name.
func (s *Service) fail(op string, owner domain.Identity, targetID string, err error) error {
	if domain.KindOf(err) == "" {
		s.log.Error().
			Err(err).
			Str("operation", op).
			Str("owner_id", owner.ExternalID).
			Str("target_id", targetID).
			Msg("Ledger operation failed")
	}
	return fmt.Errorf("%s: %w", op, err)
}
