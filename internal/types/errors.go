package types

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies every failure surfaced by the client
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidURL
	KindInvalidResponse
	KindDecoding
	KindUnauthorized
	KindClient
	KindServer
	KindNoInternet
	KindUnreachable
	KindTimeout
)

var kindNames = map[Kind]string{
	KindUnknown:         "unknown",
	KindInvalidURL:      "invalid_url",
	KindInvalidResponse: "invalid_response",
	KindDecoding:        "decoding_error",
	KindUnauthorized:    "unauthorized",
	KindClient:          "client_error",
	KindServer:          "server_error",
	KindNoInternet:      "no_internet",
	KindUnreachable:     "unreachable",
	KindTimeout:         "timeout",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Common errors
var (
	// ErrNotAuthenticated is returned when no session is active
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrSessionExpired is returned when the session reached its hard timeout
	ErrSessionExpired = errors.New("session expired")

	// ErrSuperseded is returned by a login that was replaced by a newer one
	ErrSuperseded = errors.New("superseded by a newer request")

	// ErrStorage is returned when a credential or queue store fails
	ErrStorage = errors.New("storage failure")
)

// Error represents a classified request failure
type Error struct {
	Kind       Kind   `json:"kind"`
	StatusCode int    `json:"statusCode,omitempty"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = Describe(e.Kind, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind and status
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.StatusCode != 0 && t.StatusCode != e.StatusCode {
		return false
	}
	return e.Kind == t.Kind
}

// NewError creates a classified error
func NewError(kind Kind, statusCode int, err error) *Error {
	return &Error{
		Kind:       kind,
		StatusCode: statusCode,
		Message:    Describe(kind, statusCode),
		Err:        err,
	}
}

// KindOf extracts the Kind of err, KindUnknown when err is not classified
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// StatusOf extracts the HTTP status carried by err, zero when absent
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}

// Describe returns the user-facing message for a kind
func Describe(kind Kind, statusCode int) string {
	switch kind {
	case KindInvalidURL:
		return "Invalid URL"
	case KindInvalidResponse:
		return "Invalid response from server"
	case KindDecoding:
		return "Failed to decode response"
	case KindUnauthorized:
		return "Unauthorized access"
	case KindClient:
		return fmt.Sprintf("Request rejected: %d", statusCode)
	case KindServer:
		return fmt.Sprintf("Server error: %d", statusCode)
	case KindNoInternet:
		return "No internet connection"
	case KindUnreachable:
		return "Server is unreachable"
	case KindTimeout:
		return "Request timed out"
	default:
		return "An unknown error occurred"
	}
}

// Message returns the user-facing message for any error
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Message != "" {
			return e.Message
		}
		return Describe(e.Kind, e.StatusCode)
	}
	return err.Error()
}

// WrapStorage annotates a persistence failure so it matches ErrStorage
func WrapStorage(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(&storageError{cause: err}, format, args...)
}

type storageError struct {
	cause error
}

func (e *storageError) Error() string {
	return ErrStorage.Error() + ": " + e.cause.Error()
}

func (e *storageError) Unwrap() error {
	return e.cause
}

func (e *storageError) Is(target error) bool {
	return target == ErrStorage
}
