package docvault

import (
	"github.com/eshaffer321/docvault-go/internal/auth"
	"github.com/eshaffer321/docvault-go/internal/connectivity"
	"github.com/eshaffer321/docvault-go/internal/credentials"
	internalTypes "github.com/eshaffer321/docvault-go/internal/types"
	"github.com/eshaffer321/docvault-go/internal/uploads"
)

type (
	// User is the signed-in account profile
	User = internalTypes.User

	// Session is the active bearer-token session
	Session = internalTypes.Session

	// PendingUpload is an upload waiting for connectivity
	PendingUpload = internalTypes.PendingUpload

	// UploadedResource is the backend's record of an uploaded file
	UploadedResource = internalTypes.UploadedResource

	Logger      = internalTypes.Logger
	RetryConfig = internalTypes.RetryConfig
	Hooks       = internalTypes.Hooks

	// SessionState is the lifecycle state of the session
	SessionState = auth.State

	// CredentialStore keeps session secrets
	CredentialStore = credentials.Store

	// UploadStore persists queued uploads
	UploadStore = uploads.Store

	// Connectivity reports network reachability
	Connectivity = connectivity.Observer
)

// Session states
const (
	StateSignedOut  = auth.StateSignedOut
	StateSigningIn  = auth.StateSigningIn
	StateActive     = auth.StateActive
	StateRefreshing = auth.StateRefreshing
)

// SyncResult summarizes one drain of the upload queue
type SyncResult struct {
	Attempted int `json:"attempted"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
}

// NewManualConnectivity returns a Connectivity whose state is set by the caller
func NewManualConnectivity(online bool) *connectivity.Manual {
	return connectivity.NewManual(online)
}

// DefaultRetryConfig returns the default transport retry policy
func DefaultRetryConfig() *RetryConfig {
	return internalTypes.DefaultRetryConfig()
}
