package docvault

import (
	internalTypes "github.com/eshaffer321/docvault-go/internal/types"
	"github.com/pkg/errors"
)

var (
	// ErrNotAuthenticated is returned when no session is active
	ErrNotAuthenticated = internalTypes.ErrNotAuthenticated

	// ErrSessionExpired is reported when the session timed out or could not be renewed
	ErrSessionExpired = internalTypes.ErrSessionExpired

	// ErrSuperseded is returned by a login replaced by a newer one
	ErrSuperseded = internalTypes.ErrSuperseded

	// ErrStorage is matched by credential and queue persistence failures
	ErrStorage = internalTypes.ErrStorage
)

// Error is a classified request failure
type Error = internalTypes.Error

// Kind classifies a failure
type Kind = internalTypes.Kind

// Error kinds
const (
	KindUnknown         = internalTypes.KindUnknown
	KindInvalidURL      = internalTypes.KindInvalidURL
	KindInvalidResponse = internalTypes.KindInvalidResponse
	KindDecoding        = internalTypes.KindDecoding
	KindUnauthorized    = internalTypes.KindUnauthorized
	KindClient          = internalTypes.KindClient
	KindServer          = internalTypes.KindServer
	KindNoInternet      = internalTypes.KindNoInternet
	KindUnreachable     = internalTypes.KindUnreachable
	KindTimeout         = internalTypes.KindTimeout
)

// KindOf returns the Kind of err, KindUnknown when it is not classified
func KindOf(err error) Kind {
	return internalTypes.KindOf(err)
}

// Message returns the user-facing text for err
func Message(err error) string {
	return internalTypes.Message(err)
}

// IsQueued reports whether an upload error means the file was queued for later
func IsQueued(err error) bool {
	return err != nil && KindOf(err) == KindNoInternet
}

// IsAuthError checks if error is authentication related
func IsAuthError(err error) bool {
	return errors.Is(err, ErrNotAuthenticated) ||
		errors.Is(err, ErrSessionExpired) ||
		KindOf(err) == KindUnauthorized
}

// IsRetryable checks if error is worth retrying later
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case KindNoInternet, KindUnreachable, KindTimeout, KindServer:
		return true
	}
	return false
}
