package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"

	"github.com/zentry-app/zentry-api/internal/domain"
)

// CreateImageRecordWithClient writes rec as a new document keyed by its asset
// id. An existing document is never overwritten.
func CreateImageRecordWithClient(ctx context.Context, client *firestore.Client, collection string, rec domain.ImageRecord) (domain.ImageRecord, error) {
	if rec.AssetID == "" {
		return domain.ImageRecord{}, fmt.Errorf("CreateImageRecord: asset id is required")
	}
	rec.ID = rec.AssetID
	rec.UploadedAt = rec.UploadedAt.UTC()

	if _, err := client.Collection(collection).Doc(rec.ID).Create(ctx, rec); err != nil {
		return domain.ImageRecord{}, fmt.Errorf("CreateImageRecord: %w", translate(err, nil))
	}
	return rec, nil
}

// GetImageRecordWithClient reads the document stored for assetID.
func GetImageRecordWithClient(ctx context.Context, client *firestore.Client, collection, assetID string) (domain.ImageRecord, error) {
	snap, err := client.Collection(collection).Doc(assetID).Get(ctx)
	if err != nil {
		return domain.ImageRecord{}, fmt.Errorf("GetImageRecord: %w", translate(err, domain.ErrImageNotFound))
	}

	var rec domain.ImageRecord
	if err := snap.DataTo(&rec); err != nil {
		return domain.ImageRecord{}, fmt.Errorf("GetImageRecord: decoding document: %w", err)
	}
	rec.ID = snap.Ref.ID
	return rec, nil
}
