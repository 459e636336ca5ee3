package memory

import (
	"context"
	"errors"

	"github.com/zentry-app/zentry-api/internal/domain"
)

// FindUserByExternalID returns the user provisioned for externalID.
func (s *Store) FindUserByExternalID(ctx context.Context, externalID string) (domain.User, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.st.users[externalID]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}

// UserExists reports whether a user is provisioned for externalID.
func (s *Store) UserExists(ctx context.Context, externalID string) (bool, error) {
	_, err := s.FindUserByExternalID(ctx, externalID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return false, nil
	}
	return err == nil, err
}

// UpsertUser creates the user or updates the existing row with the same
// external id. Nil optional fields keep their stored values.
func (s *Store) UpsertUser(ctx context.Context, u domain.User) (domain.User, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	existing, ok := s.st.users[u.ExternalID]
	if !ok {
		u.ID = newID()
		u.CreatedAt = now
		u.UpdatedAt = now
		s.st.users[u.ExternalID] = u
		return u, nil
	}

	if u.Email != "" {
		existing.Email = u.Email
	}
	if u.DisplayName != nil {
		existing.DisplayName = u.DisplayName
	}
	if u.AvatarURL != nil {
		existing.AvatarURL = u.AvatarURL
	}
	existing.UpdatedAt = now
	s.st.users[u.ExternalID] = existing
	return existing, nil
}

// DeleteUserByExternalID removes the user and everything they own.
// It reports whether a user was removed.
func (s *Store) DeleteUserByExternalID(ctx context.Context, externalID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.st.users[externalID]; !ok {
		return false, nil
	}
	delete(s.st.users, externalID)
	for id, tx := range s.st.txs {
		if tx.UserID == externalID {
			delete(s.st.txs, id)
			delete(s.st.memories, id)
		}
	}
	return true, nil
}

// UserCount returns the number of provisioned users.
func (s *Store) UserCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.st.users)
}
