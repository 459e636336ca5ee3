package firestore

import (
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/zentry-app/zentry-api/internal/domain"
)

func TestTranslate(t *testing.T) {
	plain := errors.New("network down")

	tests := []struct {
		name     string
		err      error
		notFound *domain.Error
		want     error
	}{
		{"already exists", status.Error(codes.AlreadyExists, "exists"), nil, domain.ErrDuplicateID},
		{"not found mapped", status.Error(codes.NotFound, "missing"), domain.ErrImageNotFound, domain.ErrImageNotFound},
		{"wrapped already exists", fmt.Errorf("rpc: %w", status.Error(codes.AlreadyExists, "exists")), nil, domain.ErrDuplicateID},
		{"other code", status.Error(codes.Unavailable, "try later"), domain.ErrImageNotFound, nil},
		{"plain error", plain, nil, plain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translate(tt.err, tt.notFound)
			if tt.want == nil {
				if got != tt.err {
					t.Errorf("translate changed an unmapped error: %v", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Errorf("translate = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTranslate_NotFoundWithoutMapping(t *testing.T) {
	err := status.Error(codes.NotFound, "missing")
	if got := translate(err, nil); got != err {
		t.Errorf("translate = %v, want original", got)
	}
}
