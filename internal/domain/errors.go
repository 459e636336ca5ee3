package domain

import (
	"errors"
	"fmt"
)

// Kind groups error codes by how a caller should react to them.
type Kind string

const (
	KindAuth       Kind = "authentication"
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindForbidden  Kind = "forbidden"
	KindConflict   Kind = "conflict"
	KindExternal   Kind = "external"
	KindPartial    Kind = "partial"
	KindInternal   Kind = "internal"
)

// Error is the typed error returned by every store, service and orchestrator.
// Code is a stable machine-readable identifier; Message is safe to show to clients.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same kind and code, so wrapped
// instances compare equal to the sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// Wrap returns a copy of e carrying cause.
func (e *Error) Wrap(cause error) *Error {
	c := *e
	c.Err = cause
	return &c
}

var (
	ErrMissingCredential   = &Error{Kind: KindAuth, Code: "missing_credential", Message: "authentication required"}
	ErrInvalidCredential   = &Error{Kind: KindAuth, Code: "invalid_credential", Message: "invalid or expired token"}
	ErrUnknownUser         = &Error{Kind: KindAuth, Code: "unknown_user", Message: "user is not provisioned"}
	ErrUserNotFound        = &Error{Kind: KindNotFound, Code: "user_not_found", Message: "user not found"}
	ErrTransactionNotFound = &Error{Kind: KindNotFound, Code: "transaction_not_found", Message: "transaction not found"}
	ErrJobNotFound         = &Error{Kind: KindNotFound, Code: "job_not_found", Message: "job not found"}
	ErrImageNotFound       = &Error{Kind: KindNotFound, Code: "image_not_found", Message: "image record not found"}
	ErrInvalidID           = &Error{Kind: KindValidation, Code: "invalid_id", Message: "a valid transaction id is required"}
	ErrForbidden           = &Error{Kind: KindForbidden, Code: "forbidden", Message: "you do not own this resource"}
	ErrDuplicateID         = &Error{Kind: KindConflict, Code: "duplicate_id", Message: "a record with this id already exists"}
	ErrNoFile              = &Error{Kind: KindValidation, Code: "no_file", Message: "no file uploaded"}
	ErrFileTooLarge        = &Error{Kind: KindValidation, Code: "file_too_large", Message: "uploaded file is too large"}
	ErrUnsupportedMedia    = &Error{Kind: KindValidation, Code: "unsupported_media_type", Message: "only image uploads are accepted"}
	ErrObjectStore         = &Error{Kind: KindExternal, Code: "object_store_failed", Message: "failed to store the uploaded file"}
	ErrAnalysis            = &Error{Kind: KindExternal, Code: "analysis_failed", Message: "failed to analyze the uploaded image"}
	ErrImageIndex          = &Error{Kind: KindPartial, Code: "image_index_failed", Message: "transaction saved but image record could not be written"}
)

// Validation builds a validation error with the given code.
func Validation(code, msg string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: msg}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if there is none.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// AsError returns the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
