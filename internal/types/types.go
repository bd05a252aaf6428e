package types

import (
	"context"
	"net/http"
	"time"
)

// User is the account profile returned by the backend
type User struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Gender    string `json:"gender"`
	Image     string `json:"image"`
}

// Session represents an authenticated session
type Session struct {
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	IssuedAt     time.Time `json:"issuedAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
	User         User      `json:"-"`
}

// Remaining returns the lifetime left at now
func (s *Session) Remaining(now time.Time) time.Duration {
	if s == nil || s.ExpiresAt.IsZero() {
		return 0
	}
	return s.ExpiresAt.Sub(now)
}

// PendingUpload is an upload waiting for connectivity
type PendingUpload struct {
	FileLocation string            `json:"fileLocation"`
	Metadata     map[string]string `json:"metadata"`
	EnqueuedAt   time.Time         `json:"enqueuedAt"`
}

// UploadedResource is the backend's response to a file upload
type UploadedResource struct {
	ID                 int      `json:"id"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Price              float64  `json:"price"`
	DiscountPercentage float64  `json:"discountPercentage"`
	Rating             float64  `json:"rating"`
	Stock              int      `json:"stock"`
	Brand              string   `json:"brand"`
	Category           string   `json:"category"`
	Thumbnail          string   `json:"thumbnail"`
	Images             []string `json:"images"`
}

// Logger interface for logging
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// RetryConfig configures retry behavior
type RetryConfig struct {
	// MaxAttempts counts the first request. One or less disables retry.
	MaxAttempts int           `json:"maxAttempts"`
	RetryWait   time.Duration `json:"retryWait"`
	MaxWait     time.Duration `json:"maxWait"`
}

// DefaultRetryConfig returns three attempts starting at one second
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts: 3,
		RetryWait:   1 * time.Second,
		MaxWait:     30 * time.Second,
	}
}

// Hooks provides lifecycle hooks for requests
type Hooks struct {
	OnRequest  func(ctx context.Context, req *http.Request)
	OnResponse func(ctx context.Context, resp *http.Response, duration time.Duration)
	OnError    func(ctx context.Context, err error)
}
