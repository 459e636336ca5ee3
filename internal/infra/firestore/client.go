// Package firestore stores ImageRecords in a Firestore collection, one
// document per uploaded asset.
package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/zentry-app/zentry-api/internal/domain"
)

// NewClient creates a Firestore client for projectID.
func NewClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewClient: creating firestore client: %w", err)
	}
	return client, nil
}

// translate maps Firestore status codes onto domain errors.
func translate(err error, notFound *domain.Error) error {
	switch status.Code(err) {
	case codes.AlreadyExists:
		return domain.ErrDuplicateID.Wrap(err)
	case codes.NotFound:
		if notFound != nil {
			return notFound.Wrap(err)
		}
	}
	return err
}
