package types

import (
	"time"
)

const (
	// DefaultBaseURL is the default backend base URL
	DefaultBaseURL = "https://dummyjson.com"

	// DefaultTimeout is the default HTTP client timeout
	DefaultTimeout = 30 * time.Second

	// UserAgent is the user agent string
	UserAgent = "docvault-go/1.0.0"

	// DefaultSessionLifetime is the fixed lifetime of an access token
	DefaultSessionLifetime = 30 * time.Minute

	// DefaultRefreshLeeway is how long before expiry a refresh is due
	DefaultRefreshLeeway = 5 * time.Minute

	// DefaultMinRefreshDelay is the floor for the scheduled refresh delay
	DefaultMinRefreshDelay = 300 * time.Second

	// DefaultSyncInterval is the upload queue drain cadence while online
	DefaultSyncInterval = 10 * time.Second
)

// Backend endpoints
const (
	LoginPath   = "/auth/login"
	RefreshPath = "/auth/refresh"
	LogoutPath  = "/auth/logout"
	MePath      = "/auth/me"
	UploadPath  = "/products/add"
)

// Credential store keys
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUser         = "user"
	KeySession      = "session"
)
