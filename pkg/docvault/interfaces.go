package docvault

import (
	"context"
)

// AuthService manages the signed-in session
type AuthService interface {
	// Login signs in. A newer Login supersedes one still in flight.
	Login(ctx context.Context, username, password string) error

	// Logout ends the session. It never fails.
	Logout(ctx context.Context)

	// Restore resumes a session stored by an earlier run
	Restore(ctx context.Context) error

	// Me fetches the signed-in user's profile
	Me(ctx context.Context) (*User, error)

	// ValidToken returns a bearer token, renewing it first when close to expiry
	ValidToken(ctx context.Context) (string, error)

	// Session returns a copy of the active session
	Session() *Session

	CurrentUser() *User
	IsAuthenticated() bool
	ErrorMessage() string
	Loading() bool
	State() SessionState

	WatchUser() (<-chan User, func())
	WatchAuthenticated() (<-chan bool, func())
	WatchErrorMessage() (<-chan string, func())
	WatchState() (<-chan SessionState, func())
}

// UploadService uploads documents, queueing them while offline
type UploadService interface {
	// UploadFile sends the file or queues it. A queued upload returns an
	// error for which IsQueued reports true.
	UploadFile(ctx context.Context, fileLocation string, metadata map[string]string) (*UploadedResource, error)

	// Sync drains the queue now
	Sync(ctx context.Context) (*SyncResult, error)

	// Pending lists queued uploads, oldest first
	Pending(ctx context.Context) ([]*PendingUpload, error)

	// QueuedUploadCount is current after Start, an upload or a sync
	QueuedUploadCount() int
	WatchQueuedUploadCount() (<-chan int, func())
	ErrorMessage() string
}
