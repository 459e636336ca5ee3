package firestore

import (
	"context"

	"cloud.google.com/go/firestore"

	"github.com/zentry-app/zentry-api/internal/domain"
)

// ImageStore is the ImageRecordStore backed by a shared Firestore client.
type ImageStore struct {
	client     *firestore.Client
	collection string
}

// NewImageStore wraps a shared client. The caller owns the client's lifetime.
func NewImageStore(client *firestore.Client, collection string) *ImageStore {
	return &ImageStore{client: client, collection: collection}
}

// CreateImageRecord delegates to CreateImageRecordWithClient.
func (s *ImageStore) CreateImageRecord(ctx context.Context, rec domain.ImageRecord) (domain.ImageRecord, error) {
	return CreateImageRecordWithClient(ctx, s.client, s.collection, rec)
}

// GetImageRecord delegates to GetImageRecordWithClient.
func (s *ImageStore) GetImageRecord(ctx context.Context, assetID string) (domain.ImageRecord, error) {
	return GetImageRecordWithClient(ctx, s.client, s.collection, assetID)
}
