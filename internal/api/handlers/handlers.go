// Package handlers contains the HTTP handlers of the API server.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/zentry-app/zentry-api/internal/api/middleware"
	"github.com/zentry-app/zentry-api/internal/auth"
	"github.com/zentry-app/zentry-api/internal/domain"
)

// maxJSONBody caps JSON request bodies.
const maxJSONBody = 1 << 20

// HealthHandler handles GET /health.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// MethodNotAllowed writes a 405 for routes that exist under another method.
func MethodNotAllowed(w http.ResponseWriter) {
	middleware.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
}

// identity returns the caller attached by the auth middleware. A missing
// identity means the route was wired without auth and is treated as
// unauthenticated.
func identity(w http.ResponseWriter, r *http.Request, log zerolog.Logger) (domain.Identity, bool) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		middleware.WriteDomainError(w, log, domain.ErrMissingCredential)
		return domain.Identity{}, false
	}
	return id, true
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return domain.Validation("body_too_large", "request body is too large")
		case errors.Is(err, io.EOF):
			return domain.Validation("invalid_body", "request body is required")
		default:
			return domain.Validation("invalid_body", "request body is not valid JSON")
		}
	}
	return nil
}
