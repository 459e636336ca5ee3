package handlers

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/zentry-app/zentry-api/internal/api/middleware"
	"github.com/zentry-app/zentry-api/internal/domain"
	"github.com/zentry-app/zentry-api/internal/jobs"
)

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}. Only the job's owner may read it.
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	owner, ok := identity(w, r, h.log)
	if !ok {
		return
	}

	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		middleware.WriteDomainError(w, h.log, err)
		return
	}
	if job.OwnerID != owner.ExternalID {
		middleware.WriteDomainError(w, h.log, domain.ErrForbidden)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs, scoped to the caller's jobs.
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	owner, ok := identity(w, r, h.log)
	if !ok {
		return
	}

	query := r.URL.Query()
	filter := jobs.JobFilter{
		OwnerID: owner.ExternalID,
		Status:  jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		middleware.WriteDomainError(w, h.log, err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
