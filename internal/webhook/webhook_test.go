package webhook

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/zentry-app/zentry-api/internal/domain"
	"github.com/zentry-app/zentry-api/internal/infra/memory"
	"github.com/zentry-app/zentry-api/internal/ledger"
)

var testSecret = "whsec_" + base64.StdEncoding.EncodeToString([]byte("super-secret-signing-key"))

func newVerifier(t *testing.T) *SignatureVerifier {
	t.Helper()
	v, err := NewSignatureVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewSignatureVerifier: %v", err)
	}
	return v
}

func signedHeaders(t *testing.T, v *SignatureVerifier, id string, at time.Time, body []byte) http.Header {
	t.Helper()
	sig, err := v.Sign(id, at, body)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	h := http.Header{}
	h.Set(HeaderID, id)
	h.Set(HeaderTimestamp, fmt.Sprint(at.Unix()))
	h.Set(HeaderSignature, "v1,bm90LXRoaXMtb25l "+sig)
	return h
}

func userEvent(typ, id, email, first, last, username string) []byte {
	return []byte(fmt.Sprintf(`{
		"type": %q,
		"data": {
			"id": %q,
			"primary_email_address_id": "idn_1",
			"email_addresses": [
				{"id": "idn_0", "email_address": "old@example.com"},
				{"id": "idn_1", "email_address": %q}
			],
			"first_name": %q,
			"last_name": %q,
			"username": %q,
			"image_url": "",
			"profile_image_url": "https://img.example.com/p.png"
		}
	}`, typ, id, email, first, last, username))
}

func TestSignatureVerifier(t *testing.T) {
	v := newVerifier(t)
	body := []byte(`{"type":"user.created"}`)
	now := time.Now()

	tests := []struct {
		name    string
		headers http.Header
		body    []byte
		wantErr error
	}{
		{"valid", signedHeaders(t, v, "msg_1", now, body), body, nil},
		{"tampered body", signedHeaders(t, v, "msg_1", now, body), []byte(`{"type":"user.deleted"}`), ErrInvalidSignature},
		{"stale timestamp", signedHeaders(t, v, "msg_1", now.Add(-10*time.Minute), body), body, ErrInvalidSignature},
		{"future timestamp", signedHeaders(t, v, "msg_1", now.Add(10*time.Minute), body), body, ErrInvalidSignature},
		{"missing headers", http.Header{}, body, ErrMissingHeaders},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Verify(tt.headers, tt.body)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Verify: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	wrongID := signedHeaders(t, v, "msg_1", now, body)
	wrongID.Set(HeaderID, "msg_2")
	if err := v.Verify(wrongID, body); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("signature must bind the message id, got %v", err)
	}
}

func TestNewSignatureVerifier_BadSecret(t *testing.T) {
	for _, s := range []string{"", "whsec_", "whsec_!!!"} {
		if _, err := NewSignatureVerifier(s); err == nil {
			t.Errorf("NewSignatureVerifier(%q) expected error", s)
		}
	}
}

func TestProcess_CreatedIsIdempotent(t *testing.T) {
	store := memory.NewStore()
	v := newVerifier(t)
	p := NewProcessor(v, store, zerolog.Nop())
	ctx := context.Background()

	first := userEvent(EventUserCreated, "user_1", "a@example.com", "Ada", "Lovelace", "")
	if _, err := p.Process(ctx, signedHeaders(t, v, "msg_1", time.Now(), first), first); err != nil {
		t.Fatalf("Process first: %v", err)
	}
	again := userEvent(EventUserCreated, "user_1", "ada@example.com", "Ada", "King", "")
	res, err := p.Process(ctx, signedHeaders(t, v, "msg_2", time.Now(), again), again)
	if err != nil {
		t.Fatalf("Process again: %v", err)
	}
	if !res.Handled || res.UserID != "user_1" {
		t.Errorf("unexpected result: %+v", res)
	}

	if n := store.UserCount(); n != 1 {
		t.Fatalf("UserCount = %d, want 1", n)
	}
	u, err := store.FindUserByExternalID(ctx, "user_1")
	if err != nil {
		t.Fatalf("FindUserByExternalID: %v", err)
	}
	if u.Email != "ada@example.com" {
		t.Errorf("Email = %q, want updated address", u.Email)
	}
	if u.DisplayName == nil || *u.DisplayName != "Ada King" {
		t.Errorf("DisplayName = %v, want Ada King", u.DisplayName)
	}
	if u.AvatarURL == nil || *u.AvatarURL != "https://img.example.com/p.png" {
		t.Errorf("AvatarURL = %v, want profile image fallback", u.AvatarURL)
	}
}

func TestProcess_UsernameFallback(t *testing.T) {
	store := memory.NewStore()
	v := newVerifier(t)
	p := NewProcessor(v, store, zerolog.Nop())

	body := userEvent(EventUserUpdated, "user_2", "b@example.com", "", "", "bobby")
	if _, err := p.Process(context.Background(), signedHeaders(t, v, "msg_1", time.Now(), body), body); err != nil {
		t.Fatalf("Process: %v", err)
	}
	u, err := store.FindUserByExternalID(context.Background(), "user_2")
	if err != nil {
		t.Fatalf("FindUserByExternalID: %v", err)
	}
	if u.DisplayName == nil || *u.DisplayName != "bobby" {
		t.Errorf("DisplayName = %v, want bobby", u.DisplayName)
	}
}

func TestProcess_DeleteCascadesAndIsIdempotent(t *testing.T) {
	store := memory.NewStore()
	v := newVerifier(t)
	p := NewProcessor(v, store, zerolog.Nop())
	ctx := context.Background()

	created := userEvent(EventUserCreated, "user_3", "c@example.com", "Cy", "", "")
	if _, err := p.Process(ctx, signedHeaders(t, v, "msg_1", time.Now(), created), created); err != nil {
		t.Fatalf("Process create: %v", err)
	}
	svc := ledger.NewService(store, zerolog.Nop())
	owner := domain.Identity{ExternalID: "user_3"}
	if _, err := svc.Create(ctx, owner, ledger.CreateInput{Description: "Lunch", Amount: decimal.NewFromInt(-12)}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	deleted := []byte(`{"type":"user.deleted","data":{"id":"user_3","deleted":true}}`)
	for i := 0; i < 2; i++ {
		res, err := p.Process(ctx, signedHeaders(t, v, fmt.Sprintf("msg_del_%d", i), time.Now(), deleted), deleted)
		if err != nil {
			t.Fatalf("Process delete #%d: %v", i, err)
		}
		if !res.Handled {
			t.Errorf("delete #%d not handled", i)
		}
	}
	if store.UserCount() != 0 {
		t.Errorf("UserCount = %d, want 0", store.UserCount())
	}
	if store.TransactionCount() != 0 {
		t.Errorf("TransactionCount = %d, want 0 after cascade", store.TransactionCount())
	}
}

func TestProcess_RejectsAndIgnores(t *testing.T) {
	store := memory.NewStore()
	v := newVerifier(t)
	p := NewProcessor(v, store, zerolog.Nop())
	ctx := context.Background()

	body := userEvent(EventUserCreated, "user_4", "d@example.com", "Di", "", "")
	bad := signedHeaders(t, v, "msg_1", time.Now(), body)
	bad.Set(HeaderSignature, "v1,"+base64.StdEncoding.EncodeToString([]byte("forged")))
	if _, err := p.Process(ctx, bad, body); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}
	if store.UserCount() != 0 {
		t.Error("unverified delivery must not provision users")
	}

	unknown := []byte(`{"type":"session.created","data":{"id":"sess_1"}}`)
	res, err := p.Process(ctx, signedHeaders(t, v, "msg_2", time.Now(), unknown), unknown)
	if err != nil {
		t.Fatalf("Process unknown: %v", err)
	}
	if res.Handled {
		t.Error("unknown events should not be handled")
	}

	notJSON := []byte(`not json`)
	if _, err := p.Process(ctx, signedHeaders(t, v, "msg_3", time.Now(), notJSON), notJSON); domain.KindOf(err) != domain.KindValidation {
		t.Errorf("expected validation error for bad payload, got %v", err)
	}
}
