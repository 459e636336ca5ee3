package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/zentry-app/zentry-api/internal/auth"
	"github.com/zentry-app/zentry-api/internal/domain"
)

// MockResolver implements IdentityResolver.
type MockResolver struct {
	ResolveFunc func(ctx context.Context, header string) (domain.Identity, error)
	calls       int
}

func (m *MockResolver) Resolve(ctx context.Context, header string) (domain.Identity, error) {
	m.calls++
	return m.ResolveFunc(ctx, header)
}

var _ IdentityResolver = (*MockResolver)(nil)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"missing credential", domain.ErrMissingCredential, http.StatusUnauthorized, "missing_credential"},
		{"unknown user", domain.ErrUnknownUser, http.StatusUnauthorized, "unknown_user"},
		{"validation", domain.Validation("invalid_amount", "bad"), http.StatusBadRequest, "invalid_amount"},
		{"not found wrapped", fmt.Errorf("Get: %w", domain.ErrTransactionNotFound), http.StatusNotFound, "transaction_not_found"},
		{"forbidden", domain.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"conflict", domain.ErrDuplicateID, http.StatusConflict, "duplicate_id"},
		{"external", domain.ErrAnalysis.Wrap(errors.New("quota")), http.StatusInternalServerError, "analysis_failed"},
		{"partial", domain.ErrImageIndex, http.StatusInternalServerError, "image_index_failed"},
		{"unclassified", errors.New("connection reset"), http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code, _ := StatusFor(tt.err)
			if status != tt.wantStatus || code != tt.wantCode {
				t.Errorf("StatusFor = %d %s, want %d %s", status, code, tt.wantStatus, tt.wantCode)
			}
		})
	}
}

func TestWriteDomainError_HidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteDomainError(rec, zerolog.Nop(), errors.New("pq: password authentication failed"))

	body := decodeError(t, rec)
	if strings.Contains(body["error"], "password") {
		t.Errorf("internal detail leaked: %q", body["error"])
	}
	if body["code"] != "internal" {
		t.Errorf("code = %q", body["code"])
	}
}

func TestAuth(t *testing.T) {
	alice := domain.Identity{UserID: "u1", ExternalID: "ext_alice"}
	resolver := &MockResolver{ResolveFunc: func(ctx context.Context, header string) (domain.Identity, error) {
		switch header {
		case "Bearer good":
			return alice, nil
		case "":
			return domain.Identity{}, domain.ErrMissingCredential
		default:
			return domain.Identity{}, domain.ErrInvalidCredential
		}
	}}

	var seen domain.Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = auth.IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	h := Auth(resolver, zerolog.Nop(), "/health", "/api/webhooks/")(next)

	tests := []struct {
		name       string
		path       string
		header     string
		wantStatus int
		wantID     string
	}{
		{"authenticated", "/api/transactions", "Bearer good", http.StatusNoContent, "ext_alice"},
		{"missing", "/api/transactions", "", http.StatusUnauthorized, ""},
		{"invalid", "/api/transactions", "Bearer bad", http.StatusUnauthorized, ""},
		{"public exact", "/health", "", http.StatusNoContent, ""},
		{"public prefix", "/api/webhooks/clerk", "", http.StatusNoContent, ""},
		{"exact is not prefix", "/health/deep", "", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = domain.Identity{}
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if seen.ExternalID != tt.wantID {
				t.Errorf("identity = %q, want %q", seen.ExternalID, tt.wantID)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	var fromCtx string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	generated := rec.Header().Get(HeaderRequestID)
	if generated == "" || generated != fromCtx {
		t.Errorf("generated id %q, context %q", generated, fromCtx)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "client-id")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get(HeaderRequestID); got != "client-id" {
		t.Errorf("propagated id = %q", got)
	}
}

func TestLoggerIncludesRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)
	h := Logger(log)(RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	h.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	if !strings.Contains(out, `"request_id":"abc-123"`) || !strings.Contains(out, `"status":418`) {
		t.Errorf("log line = %s", out)
	}
}

func TestRecovery(t *testing.T) {
	h := Recovery(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
	if body := decodeError(t, rec); body["code"] != "internal" {
		t.Errorf("body = %v", body)
	}
}

func TestCORSPreflight(t *testing.T) {
	called := false
	h := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/transactions", nil))
	if rec.Code != http.StatusNoContent || called {
		t.Errorf("status = %d, next called = %v", rec.Code, called)
	}
	if rec.Header().Get("Access-Control-Allow-Headers") == "" {
		t.Error("missing CORS headers")
	}
}
