package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "record not found"
)

// Sentinel errors for the workflow error taxonomy. Stage code matches on these
// with errors.Is to decide whether a failure is recorded per-candidate or
// propagated to the HTTP boundary.
var (
	// ErrIncompleteCriteria means the user's request is missing required
	// fields (location, purpose). Recovered by re-prompting, never fatal.
	ErrIncompleteCriteria = errors.New("incomplete search criteria")

	// ErrUpstreamSearch means the search provider failed after retries.
	ErrUpstreamSearch = errors.New("upstream search failure")

	// ErrGeocode means geocoding yielded no result for a candidate address.
	ErrGeocode = errors.New("geocode failure")

	// ErrPlacesLookup means the nearby-POI lookup failed for a candidate.
	ErrPlacesLookup = errors.New("places lookup failure")

	// ErrDecoration means image analysis or generation failed for a candidate.
	ErrDecoration = errors.New("decoration failure")

	// ErrUnknownThread means a resume or state request referenced a thread id
	// with no stored state.
	ErrUnknownThread = errors.New("unknown thread")

	// ErrAuthentication means the bearer credential is missing or invalid.
	ErrAuthentication = errors.New("authentication failure")

	// ErrForbiddenThread means the thread exists but belongs to another user.
	ErrForbiddenThread = errors.New("thread access denied")
)

// Error wraps an underlying error with an HTTP status and safe message.
type Error struct {
	Err     error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error with the provided information.
func New(err error, status int, message string) *Error {
	return &Error{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// Is reports whether the target matches the underlying error or the Error itself.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// As allows casting to Error or the wrapped error in a chain.
func (e *Error) As(target any) bool {
	if errors.As(e.Err, target) {
		return true
	}
	if t, ok := target.(**Error); ok {
		*t = e
		return true
	}
	return false
}

// IncompleteCriteria wraps the extractor's clarification request. The message
// is shown to the user as the re-prompt.
func IncompleteCriteria(message string) *Error {
	return New(ErrIncompleteCriteria, http.StatusUnprocessableEntity, message)
}

// UpstreamSearch wraps an exhausted-retries search provider failure.
func UpstreamSearch(err error) *Error {
	return New(fmt.Errorf("%w: %w", ErrUpstreamSearch, err), http.StatusBadGateway, "property search is temporarily unavailable")
}

// UnknownThread wraps a resume/state request for a thread that was never created.
func UnknownThread(threadID string) *Error {
	return New(fmt.Errorf("%w: %s", ErrUnknownThread, threadID), http.StatusNotFound, "unknown thread")
}

// Authentication wraps a missing or invalid bearer credential.
func Authentication(err error) *Error {
	return New(fmt.Errorf("%w: %w", ErrAuthentication, err), http.StatusUnauthorized, "authentication required")
}

// ForbiddenThread wraps an access attempt on another user's thread.
func ForbiddenThread(threadID string) *Error {
	return New(fmt.Errorf("%w: %s", ErrForbiddenThread, threadID), http.StatusForbidden, "access denied to this thread")
}

// StatusOf returns the HTTP status carried by err, or 500 when err carries none.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) && e.Status != 0 {
		return e.Status
	}
	return http.StatusInternalServerError
}

// MessageOf returns the safe user-facing message carried by err, or the
// generic system message when err carries none.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return SystemErrorMessage
}
