package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/zentry-app/zentry-api/internal/api/middleware"
	"github.com/zentry-app/zentry-api/internal/domain"
	"github.com/zentry-app/zentry-api/internal/webhook"
)

// WebhookProcessor verifies and applies identity-provider deliveries.
type WebhookProcessor interface {
	Process(ctx context.Context, h http.Header, body []byte) (webhook.Result, error)
}

// WebhookHandler handles POST /api/webhooks/clerk.
type WebhookHandler struct {
	processor WebhookProcessor
	log       zerolog.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(processor WebhookProcessor, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		processor: processor,
		log:       log,
	}
}

// HandleClerk handles POST /api/webhooks/clerk
func (h *WebhookHandler) HandleClerk(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		middleware.WriteDomainError(w, h.log, domain.Validation("invalid_body", "could not read webhook body"))
		return
	}

	res, err := h.processor.Process(r.Context(), r.Header, body)
	if err != nil {
		h.log.Warn().Err(err).Str("svix_id", r.Header.Get(webhook.HeaderID)).Msg("Webhook rejected")
		middleware.WriteDomainError(w, h.log, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"type":    res.Type,
		"handled": res.Handled,
	})
}
