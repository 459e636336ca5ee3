package webhook

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	svix "github.com/svix/svix-webhooks/go"

	"github.com/zentry-app/zentry-api/internal/domain"
)

// Svix delivery headers.
const (
	HeaderID        = "svix-id"
	HeaderTimestamp = "svix-timestamp"
	HeaderSignature = "svix-signature"
)

const secretPrefix = "whsec_"

var (
	ErrMissingHeaders   = domain.Validation("missing_webhook_headers", "missing svix headers")
	ErrInvalidSignature = domain.Validation("invalid_signature", "webhook signature verification failed")
)

// SignatureVerifier checks Svix webhook signatures. Deliveries older or newer
// than five minutes are rejected by the svix library.
type SignatureVerifier struct {
	wh *svix.Webhook
}

// NewSignatureVerifier builds a verifier from a "whsec_" secret.
func NewSignatureVerifier(secret string) (*SignatureVerifier, error) {
	secret = strings.TrimSpace(secret)
	if strings.TrimPrefix(secret, secretPrefix) == "" {
		return nil, fmt.Errorf("NewSignatureVerifier: empty secret")
	}
	wh, err := svix.NewWebhook(secret)
	if err != nil {
		return nil, fmt.Errorf("NewSignatureVerifier: %w", err)
	}
	return &SignatureVerifier{wh: wh}, nil
}

// Verify checks the delivery headers against body.
func (v *SignatureVerifier) Verify(h http.Header, body []byte) error {
	if h.Get(HeaderID) == "" || h.Get(HeaderTimestamp) == "" || h.Get(HeaderSignature) == "" {
		return ErrMissingHeaders
	}
	if err := v.wh.Verify(body, h); err != nil {
		return ErrInvalidSignature.Wrap(err)
	}
	return nil
}

// Sign returns a v1 signature header value for the given delivery.
func (v *SignatureVerifier) Sign(id string, at time.Time, body []byte) (string, error) {
	sig, err := v.wh.Sign(id, at, body)
	if err != nil {
		return "", fmt.Errorf("Sign: %w", err)
	}
	return sig, nil
}
