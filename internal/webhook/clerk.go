// Package webhook provisions users from identity-provider webhook events.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/zentry-app/zentry-api/internal/domain"
)

// Clerk event types.
const (
	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"
)

// UserWriter is the write side of the user store.
type UserWriter interface {
	UpsertUser(ctx context.Context, u domain.User) (domain.User, error)
	DeleteUserByExternalID(ctx context.Context, externalID string) (bool, error)
}

type event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type clerkEmail struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

type clerkUser struct {
	ID                    string       `json:"id"`
	EmailAddresses        []clerkEmail `json:"email_addresses"`
	PrimaryEmailAddressID string       `json:"primary_email_address_id"`
	FirstName             string       `json:"first_name"`
	LastName              string       `json:"last_name"`
	Username              string       `json:"username"`
	ImageURL              string       `json:"image_url"`
	ProfileImageURL       string       `json:"profile_image_url"`
}

// Result describes what a delivery did.
type Result struct {
	Type    string `json:"type"`
	UserID  string `json:"userId,omitempty"`
	Handled bool   `json:"handled"`
}

// Processor verifies Clerk deliveries and applies them to the user store.
type Processor struct {
	verifier *SignatureVerifier
	users    UserWriter
	log      zerolog.Logger
}

// NewProcessor creates a processor.
func NewProcessor(verifier *SignatureVerifier, users UserWriter, log zerolog.Logger) *Processor {
	return &Processor{verifier: verifier, users: users, log: log}
}

// Process verifies and applies one delivery. Unknown event types are
// acknowledged without effect.
func (p *Processor) Process(ctx context.Context, h http.Header, body []byte) (Result, error) {
	if err := p.verifier.Verify(h, body); err != nil {
		return Result{}, err
	}

	var evt event
	if err := json.Unmarshal(body, &evt); err != nil {
		return Result{}, domain.Validation("invalid_payload", "webhook payload is not valid JSON")
	}
	var data clerkUser
	if len(evt.Data) > 0 {
		if err := json.Unmarshal(evt.Data, &data); err != nil {
			return Result{}, domain.Validation("invalid_payload", "webhook data is malformed")
		}
	}

	res := Result{Type: evt.Type, UserID: data.ID}
	switch evt.Type {
	case EventUserCreated, EventUserUpdated:
		if data.ID == "" {
			return Result{}, domain.Validation("invalid_payload", "webhook user has no id")
		}
		u, err := p.users.UpsertUser(ctx, toUser(data))
		if err != nil {
			return Result{}, fmt.Errorf("Process: upsert user: %w", err)
		}
		p.log.Info().Str("event", evt.Type).Str("external_id", u.ExternalID).Str("user_id", u.ID).Msg("User provisioned")
		res.Handled = true

	case EventUserDeleted:
		if data.ID == "" {
			return Result{}, domain.Validation("invalid_payload", "webhook user has no id")
		}
		removed, err := p.users.DeleteUserByExternalID(ctx, data.ID)
		if err != nil {
			return Result{}, fmt.Errorf("Process: delete user: %w", err)
		}
		p.log.Info().Str("event", evt.Type).Str("external_id", data.ID).Bool("removed", removed).Msg("User deleted")
		res.Handled = true

	default:
		p.log.Debug().Str("event", evt.Type).Msg("Ignoring webhook event")
	}
	return res, nil
}

func toUser(d clerkUser) domain.User {
	u := domain.User{ExternalID: d.ID}
	for _, e := range d.EmailAddresses {
		if e.ID == d.PrimaryEmailAddressID {
			u.Email = e.EmailAddress
			break
		}
	}
	if name := strings.TrimSpace(d.FirstName + " " + d.LastName); name != "" {
		u.DisplayName = &name
	} else if d.Username != "" {
		name := d.Username
		u.DisplayName = &name
	}
	if img := firstNonEmpty(d.ImageURL, d.ProfileImageURL); img != "" {
		u.AvatarURL = &img
	}
	return u
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
