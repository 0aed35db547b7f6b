package util

import (
	"errors"
	"fmt"
	"net/http"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

// NewInvalidTransition rejects a status edge absent from the status graph.
func NewInvalidTransition(from, to string) error {
	return NewDomainError("INVALID_TRANSITION",
		fmt.Sprintf("transition %s -> %s is not allowed", from, to),
		http.StatusUnprocessableEntity,
		map[string]any{"from_status": from, "to_status": to})
}

// NewPreconditionFailed signals a transition whose edge-specific precondition does not hold.
func NewPreconditionFailed(message string, details map[string]any) error {
	return NewDomainError("PRECONDITION_FAILED", message, http.StatusUnprocessableEntity, details)
}

// NewNoEligibleWorker signals an assignment strategy that found no candidate.
func NewNoEligibleWorker(strategy string) error {
	return NewDomainError("NO_ELIGIBLE_WORKER", "no eligible worker for assignment",
		http.StatusConflict, map[string]any{"strategy": strategy})
}

// NewConflictRetry signals a lost optimistic-concurrency race; the caller reloads and retries.
func NewConflictRetry(requestID string) error {
	return NewDomainError("CONFLICT_RETRY", "request was modified concurrently, reload and retry",
		http.StatusConflict, map[string]any{"request_id": requestID})
}

// NewReactivationLimitExceeded rejects a reactivation past the lifetime cap.
func NewReactivationLimitExceeded(count, limit int) error {
	return NewDomainError("REACTIVATION_LIMIT_EXCEEDED",
		fmt.Sprintf("request already reactivated %d of %d times", count, limit),
		http.StatusUnprocessableEntity,
		map[string]any{"reactivation_count": count, "limit": limit})
}

// NewStoreUnavailable surfaces an infrastructure fault from the persistence layer.
func NewStoreUnavailable(err error) error {
	return &DomainError{
		Code:       "STORE_UNAVAILABLE",
		Message:    "persistence store unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Err:        err,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}

// IsCode reports whether err carries the given domain error code.
func IsCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
