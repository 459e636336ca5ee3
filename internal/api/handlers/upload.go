package handlers

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/zentry-app/zentry-api/internal/api/middleware"
	"github.com/zentry-app/zentry-api/internal/domain"
	"github.com/zentry-app/zentry-api/internal/upload"
)

// UploadFormField is the multipart field carrying the image.
const UploadFormField = "image"

// multipartOverhead is allowed on top of the file limit for boundaries and headers.
const multipartOverhead = 1 << 20

// UploadProcessor runs the upload and analysis flow.
type UploadProcessor interface {
	Process(ctx context.Context, owner domain.Identity, f *upload.File) (upload.Result, error)
}

// UploadHandler handles POST /api/upload.
type UploadHandler struct {
	processor UploadProcessor
	maxBytes  int64
	log       zerolog.Logger
}

// NewUploadHandler creates a new upload handler.
func NewUploadHandler(processor UploadProcessor, maxBytes int64, log zerolog.Logger) *UploadHandler {
	if maxBytes <= 0 {
		maxBytes = upload.DefaultMaxBytes
	}
	return &UploadHandler{
		processor: processor,
		maxBytes:  maxBytes,
		log:       log,
	}
}

// Upload handles POST /api/upload
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	owner, ok := identity(w, r, h.log)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartOverhead)
	var f *upload.File
	file, header, err := r.FormFile(UploadFormField)
	switch {
	case err == nil:
		defer file.Close()
		f = &upload.File{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Reader:      file,
		}
	case isTooLarge(err):
		middleware.WriteDomainError(w, h.log, domain.ErrFileTooLarge)
		return
	default:
		// A missing or unparsable file is reported by the processor after
		// the owner check, so an unknown owner takes precedence.
		h.log.Debug().Err(err).Msg("No upload in request")
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	res, err := h.processor.Process(r.Context(), owner, f)
	if err != nil {
		if errors.Is(err, domain.ErrImageIndex) {
			status, code, message := middleware.StatusFor(err)
			body := middleware.ErrorBody(code, message)
			body["transaction"] = res.Transaction
			body["memory"] = res.Memory
			if res.IndexJobID != "" {
				body["indexJobId"] = res.IndexJobID
			}
			middleware.WriteJSON(w, status, body)
			return
		}
		middleware.WriteDomainError(w, h.log, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, res)
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || errors.Is(err, multipart.ErrMessageTooLarge)
}
