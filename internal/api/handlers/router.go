package handlers

import (
	"net/http"
	"strings"
)

// Public paths skip bearer authentication.
var PublicPaths = []string{"/health", "/api/webhooks/"}

// Router holds the handlers mounted by NewRouter. Nil handlers leave their
// routes unmounted.
type Router struct {
	Transactions *TransactionsHandler
	Upload       *UploadHandler
	Jobs         *JobsHandler
	Webhook      *WebhookHandler
}

// NewRouter registers every API route on a new ServeMux.
func NewRouter(rt Router) *http.ServeMux {
	mux := http.NewServeMux()

	if h := rt.Transactions; h != nil {
		mux.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				h.ListTransactions(w, r)
			case http.MethodPost:
				h.CreateTransaction(w, r)
			default:
				MethodNotAllowed(w)
			}
		})

		mux.HandleFunc("/api/transactions/summary", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				MethodNotAllowed(w)
				return
			}
			h.Summary(w, r)
		})

		mux.HandleFunc("/api/transactions/", func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/api/transactions/")
			switch r.Method {
			case http.MethodGet:
				h.GetTransaction(w, r, id)
			case http.MethodPut:
				h.UpdateTransaction(w, r, id)
			case http.MethodDelete:
				h.DeleteTransaction(w, r, id)
			default:
				MethodNotAllowed(w)
			}
		})
	}

	if h := rt.Upload; h != nil {
		mux.HandleFunc("/api/upload", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				MethodNotAllowed(w)
				return
			}
			h.Upload(w, r)
		})
	}

	if h := rt.Jobs; h != nil {
		mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				MethodNotAllowed(w)
				return
			}
			h.ListJobs(w, r)
		})

		mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				MethodNotAllowed(w)
				return
			}
			h.GetJob(w, r, strings.TrimPrefix(r.URL.Path, "/api/jobs/"))
		})
	}

	if h := rt.Webhook; h != nil {
		mux.HandleFunc("/api/webhooks/clerk", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				MethodNotAllowed(w)
				return
			}
			h.HandleClerk(w, r)
		})
	}

	mux.HandleFunc("/health", HealthHandler)

	return mux
}
