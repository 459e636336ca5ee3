package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/zentry-app/zentry-api/internal/api/middleware"
	"github.com/zentry-app/zentry-api/internal/domain"
	"github.com/zentry-app/zentry-api/internal/ledger"
)

// TransactionService is the ledger as seen by the HTTP layer.
type TransactionService interface {
	Create(ctx context.Context, owner domain.Identity, in ledger.CreateInput) (domain.Transaction, error)
	List(ctx context.Context, owner domain.Identity, r domain.DateRange) ([]domain.Transaction, error)
	Summary(ctx context.Context, owner domain.Identity, r domain.DateRange) (domain.Summary, error)
	Get(ctx context.Context, owner domain.Identity, id string) (domain.Transaction, error)
	Update(ctx context.Context, owner domain.Identity, id string, patch domain.TransactionPatch) (domain.Transaction, error)
	Delete(ctx context.Context, owner domain.Identity, id string) error
}

// TransactionsHandler handles transaction-related endpoints.
type TransactionsHandler struct {
	svc TransactionService
	log zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(svc TransactionService, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		svc: svc,
		log: log,
	}
}

// transactionRequest accepts "text" as an alias of "description" for older
// mobile clients. Amount may be a JSON number or a numeric string.
type transactionRequest struct {
	Description *string              `json:"description"`
	Text        *string              `json:"text"`
	Amount      *decimal.Decimal     `json:"amount"`
	Memories    []domain.MemoryInput `json:"memories"`
}

func (req transactionRequest) description() *string {
	if req.Description != nil {
		return req.Description
	}
	return req.Text
}

// CreateTransaction handles POST /api/transactions
func (h *TransactionsHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	owner, ok := identity(w, r, h.log)
	if !ok {
		return
	}

	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteDomainError(w, h.log, err)
		return
	}
	if req.Amount == nil {
		middleware.WriteDomainError(w, h.log, domain.Validation("invalid_amount", "amount is required"))
		return
	}
	in := ledger.CreateInput{Amount: *req.Amount, Memories: req.Memories}
	if d := req.description(); d != nil {
		in.Description = *d
	}

	tx, err := h.svc.Create(r.Context(), owner, in)
	if err != nil {
		middleware.WriteDomainError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, tx)
}

// ListTransactions handles GET /api/transactions
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	owner, ok := identity(w, r, h.log)
	if !ok {
		return
	}
	dr, err := parseDateRange(r)
	if err != nil {
		middleware.WriteDomainError(w, h.log, err)
		return
	}

	txs, err := h.svc.List(r.Context(), owner, dr)
	if err != nil {
		middleware.WriteDomainError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, txs)
}

// Summary handles GET /api/transactions/summary
func (h *TransactionsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	owner, ok := identity(w, r, h.log)
	if !ok {
		return
	}
	dr, err := parseDateRange(r)
	if err != nil {
		middleware.WriteDomainError(w, h.log, err)
		return
	}

	sum, err := h.svc.Summary(r.Context(), owner, dr)
	if err != nil {
		middleware.WriteDomainError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, sum)
}

// GetTransaction handles GET /api/transactions/{id}
func (h *TransactionsHandler) GetTransaction(w http.ResponseWriter, r *http.Request, id string) {
	owner, ok := identity(w, r, h.log)
	if !ok {
		return
	}
	tx, err := h.svc.Get(r.Context(), owner, id)
	if err != nil {
		middleware.WriteDomainError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, tx)
}

// UpdateTransaction handles PUT /api/transactions/{id}
func (h *TransactionsHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request, id string) {
	owner, ok := identity(w, r, h.log)
	if !ok {
		return
	}

	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		middleware.WriteDomainError(w, h.log, err)
		return
	}
	patch := domain.TransactionPatch{Description: req.description(), Amount: req.Amount}

	tx, err := h.svc.Update(r.Context(), owner, id, patch)
	if err != nil {
		middleware.WriteDomainError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, tx)
}

// DeleteTransaction handles DELETE /api/transactions/{id}
func (h *TransactionsHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request, id string) {
	owner, ok := identity(w, r, h.log)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), owner, id); err != nil {
		middleware.WriteDomainError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Transaction deleted",
		"id":      id,
	})
}

// parseDateRange reads the inclusive startDate and endDate query parameters.
// Each accepts RFC 3339 or YYYY-MM-DD; a date-only endDate covers that whole
// day in UTC.
func parseDateRange(r *http.Request) (domain.DateRange, error) {
	q := r.URL.Query()
	var dr domain.DateRange

	if s := q.Get("startDate"); s != "" {
		t, _, err := parseDate(s)
		if err != nil {
			return dr, domain.Validation("invalid_date", "startDate must be RFC 3339 or YYYY-MM-DD")
		}
		dr.Start = &t
	}
	if s := q.Get("endDate"); s != "" {
		t, dateOnly, err := parseDate(s)
		if err != nil {
			return dr, domain.Validation("invalid_date", "endDate must be RFC 3339 or YYYY-MM-DD")
		}
		if dateOnly {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		dr.End = &t
	}
	return dr, nil
}

func parseDate(s string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), false, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}
