// Package auth resolves bearer credentials to provisioned users.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zentry-app/zentry-api/internal/domain"
)

// Verifier checks a session token with the identity provider and returns
// the verified external identity id.
type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// UserFinder looks up provisioned users by external identity id.
type UserFinder interface {
	FindUserByExternalID(ctx context.Context, externalID string) (domain.User, error)
}

// Resolver turns an Authorization header into a domain.Identity.
type Resolver struct {
	verifier Verifier
	users    UserFinder
	timeout  time.Duration
}

// NewResolver creates a resolver. timeout bounds the verification call; zero
// means no extra bound beyond the caller's context.
func NewResolver(verifier Verifier, users UserFinder, timeout time.Duration) *Resolver {
	return &Resolver{verifier: verifier, users: users, timeout: timeout}
}

// Resolve verifies the bearer token in header and loads its user.
func (r *Resolver) Resolve(ctx context.Context, header string) (domain.Identity, error) {
	token, ok := bearerToken(header)
	if !ok {
		return domain.Identity{}, domain.ErrMissingCredential
	}

	vctx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		vctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	externalID, err := r.verifier.Verify(vctx, token)
	if err != nil {
		return domain.Identity{}, domain.ErrInvalidCredential.Wrap(err)
	}

	user, err := r.users.FindUserByExternalID(ctx, externalID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return domain.Identity{}, domain.ErrUnknownUser.Wrap(fmt.Errorf("external id %s", externalID))
	}
	if err != nil {
		return domain.Identity{}, fmt.Errorf("Resolve: find user: %w", err)
	}
	return domain.Identity{UserID: user.ID, ExternalID: user.ExternalID}, nil
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

type identityKey struct{}

// WithIdentity attaches id to ctx.
func WithIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity attached by WithIdentity.
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(domain.Identity)
	return id, ok
}
