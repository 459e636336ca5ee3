package memory

import (
	"context"

	"github.com/zentry-app/zentry-api/internal/domain"
)

// CreateImageRecord stores rec under its asset id. A second record for the
// same asset id fails with domain.ErrDuplicateID.
func (s *Store) CreateImageRecord(ctx context.Context, rec domain.ImageRecord) (domain.ImageRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.ImageRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.ID = rec.AssetID
	if _, ok := s.st.images[rec.ID]; ok {
		return domain.ImageRecord{}, domain.ErrDuplicateID
	}
	s.st.images[rec.ID] = rec
	return rec, nil
}

// GetImageRecord returns the record stored for assetID.
func (s *Store) GetImageRecord(ctx context.Context, assetID string) (domain.ImageRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.ImageRecord{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.st.images[assetID]
	if !ok {
		return domain.ImageRecord{}, domain.ErrImageNotFound
	}
	return rec, nil
}

// ImageRecordCount returns the number of stored image records.
func (s *Store) ImageRecordCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.st.images)
}
