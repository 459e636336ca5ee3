package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// DefaultMemoryTitle is used when a memory is created without a title.
	DefaultMemoryTitle = "Untitled"

	// AmountScale is the number of fractional digits kept for money amounts.
	AmountScale = 2
)

// maxAmount bounds |amount| to what NUMERIC(14,2) can hold.
var maxAmount = decimal.New(1, 12)

func init() {
	// Amounts travel as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// Transaction is a user-owned financial record.
// UserID holds the owner's external identity id.
type Transaction struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	UserID      string          `json:"userId"`
	CreatedAt   time.Time       `json:"createdAt"`
	Memories    []Memory        `json:"memories"`

	// Owner is a denormalized snapshot of the owner's identity fields.
	// It is only populated by list operations.
	Owner *OwnerSnapshot `json:"user,omitempty"`
}

// Memory is a note or image reference attached to a Transaction.
type Memory struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	ImageURL      *string `json:"imageUrl"`
	UserID        string  `json:"userId"`
	TransactionID string  `json:"transactionId"`
}

// MemoryInput is the client-supplied shape of a memory at creation time.
type MemoryInput struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	ImageURL    *string `json:"imageUrl"`
}

// TransactionPatch lists the fields an owner may change. Nil fields are left untouched.
type TransactionPatch struct {
	Description *string
	Amount      *decimal.Decimal
}

// Empty reports whether the patch changes nothing.
func (p TransactionPatch) Empty() bool {
	return p.Description == nil && p.Amount == nil
}

// DateRange restricts transactions by creation time. Both bounds are inclusive;
// a nil bound imposes no restriction on that side.
type DateRange struct {
	Start *time.Time
	End   *time.Time
}

// Contains reports whether t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	if r.Start != nil && t.Before(*r.Start) {
		return false
	}
	if r.End != nil && t.After(*r.End) {
		return false
	}
	return true
}

// Summary aggregates a set of transactions.
type Summary struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
	Count   int             `json:"count"`
}

// NormalizeDescription rejects descriptions that are blank after trimming.
// Accepted text is returned as given so it reads back unchanged.
func NormalizeDescription(s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", Validation("invalid_description", "transaction description is required")
	}
	return s, nil
}

// NormalizeAmount rounds an amount to AmountScale digits and rejects values
// that cannot be stored.
func NormalizeAmount(d decimal.Decimal) (decimal.Decimal, error) {
	d = d.Round(AmountScale)
	if d.Abs().GreaterThanOrEqual(maxAmount) {
		return decimal.Decimal{}, Validation("invalid_amount", "transaction amount is out of range")
	}
	return d, nil
}

// NewMemory applies the creation defaults to a memory input.
func NewMemory(in MemoryInput, ownerID string) Memory {
	m := Memory{
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		UserID:      ownerID,
	}
	if m.Title == "" {
		m.Title = DefaultMemoryTitle
	}
	if in.ImageURL != nil && strings.TrimSpace(*in.ImageURL) != "" {
		u := strings.TrimSpace(*in.ImageURL)
		m.ImageURL = &u
	}
	return m
}
