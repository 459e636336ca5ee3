package domain

import "time"

// User is a provisioned account. ExternalID is the identity provider's user id
// and is the basis of every ownership check.
type User struct {
	ID          string    `json:"id"`
	ExternalID  string    `json:"externalId"`
	Email       string    `json:"email"`
	DisplayName *string   `json:"name,omitempty"`
	AvatarURL   *string   `json:"image,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// OwnerSnapshot is the subset of User embedded in listed transactions.
type OwnerSnapshot struct {
	ExternalID  string  `json:"externalId"`
	DisplayName *string `json:"name"`
	Email       string  `json:"email"`
}

// Snapshot returns the owner fields that are denormalized into listings.
func (u User) Snapshot() OwnerSnapshot {
	return OwnerSnapshot{
		ExternalID:  u.ExternalID,
		DisplayName: u.DisplayName,
		Email:       u.Email,
	}
}

// Identity is the authenticated caller, produced once per request by the auth
// resolver and passed explicitly to every downstream operation.
type Identity struct {
	UserID     string
	ExternalID string
}
