package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ImageRecord mirrors an uploaded image in the document store.
// ID equals AssetID, the object store's identifier for the upload.
type ImageRecord struct {
	ID          string    `json:"id" firestore:"-"`
	UserID      string    `json:"userId" firestore:"userId"`
	ExternalID  string    `json:"externalUserId" firestore:"externalUserId"`
	URL         string    `json:"url" firestore:"url"`
	AssetID     string    `json:"assetId" firestore:"assetId"`
	UploadedAt  time.Time `json:"uploadedAt" firestore:"uploadedAt"`
	Title       string    `json:"title,omitempty" firestore:"title,omitempty"`
	Description string    `json:"description,omitempty" firestore:"description,omitempty"`
}

// Analysis run statuses.
const (
	AnalysisStatusSucceeded = "SUCCESS"
	AnalysisStatusFailed    = "FAILED"
)

// AnalysisRun is an audit entry for one AI analysis attempt.
type AnalysisRun struct {
	RunID         string
	AssetID       string
	UserID        string
	Model         string
	Status        string
	ExtractedText string
	Amount        decimal.Decimal
	AmountFound   bool
	ErrorMessage  string
	CreatedAt     time.Time
}

// Asset is a binary persisted in the object store.
type Asset struct {
	ID          string
	URL         string
	URI         string
	ContentType string
	Size        int64
}
