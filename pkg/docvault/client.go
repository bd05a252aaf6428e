package docvault

import (
	"context"
	"net/http"
	"time"

	"github.com/eshaffer321/docvault-go/internal/auth"
	"github.com/eshaffer321/docvault-go/internal/connectivity"
	"github.com/eshaffer321/docvault-go/internal/credentials"
	"github.com/eshaffer321/docvault-go/internal/transport"
	internalTypes "github.com/eshaffer321/docvault-go/internal/types"
	"github.com/eshaffer321/docvault-go/internal/uploads"
	"github.com/getsentry/sentry-go"
	"github.com/pkg/errors"
)

const (
	// DefaultBaseURL is the default backend base URL
	DefaultBaseURL = internalTypes.DefaultBaseURL

	// DefaultTimeout is the default HTTP client timeout
	DefaultTimeout = internalTypes.DefaultTimeout

	// DefaultQueueDSN keeps the upload queue in memory
	DefaultQueueDSN = ":memory:"
)

// Client is the document vault API client
type Client struct {
	// Service interfaces
	Auth    AuthService
	Uploads UploadService

	// Internal fields
	options      *ClientOptions
	transport    *transport.RESTTransport
	sessions     *auth.Manager
	queue        *uploads.Queue
	credentials  CredentialStore
	queueStore   UploadStore
	connectivity Connectivity
	monitor      *connectivity.Monitor
}

// ClientOptions configures the client
type ClientOptions struct {
	// BaseURL overrides the default API base URL
	BaseURL string

	// HTTPClient allows using a custom HTTP client
	HTTPClient *http.Client

	// Timeout sets the HTTP client timeout
	Timeout time.Duration

	// Logger for debug logging
	Logger Logger

	// RetryConfig configures retry behavior
	RetryConfig *RetryConfig

	// Hooks for observability
	Hooks *Hooks

	// SentryDSN enables Sentry error tracking when set
	SentryDSN string

	// SentryOptions allows custom Sentry configuration
	SentryOptions *sentry.ClientOptions

	// CredentialStore overrides where session secrets are kept
	CredentialStore CredentialStore

	// CredentialFile persists secrets in a bbolt file when CredentialStore is nil.
	// Without either, secrets live in memory only.
	CredentialFile string

	// CredentialKey seals values in CredentialFile. Must be 32 bytes.
	CredentialKey []byte

	// UploadStore overrides the persistent upload queue
	UploadStore UploadStore

	// QueueDSN is the sqlite DSN of the upload queue when UploadStore is nil
	QueueDSN string

	// Connectivity reports network reachability. Defaults to a TCP probe of BaseURL.
	Connectivity Connectivity

	// SessionLifetime is the requested token lifetime
	SessionLifetime time.Duration

	// RefreshLeeway is how long before expiry the token is renewed
	RefreshLeeway time.Duration

	// MinRefreshDelay is the floor for the scheduled renewal
	MinRefreshDelay time.Duration

	// SyncInterval is how often queued uploads are retried while online
	SyncInterval time.Duration
}

// NewClient creates a new document vault client
func NewClient(opts *ClientOptions) (*Client, error) {
	if opts == nil {
		opts = &ClientOptions{}
	}

	initSentry(opts)

	// Set defaults
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}

	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{
			Timeout: DefaultTimeout,
		}
	}

	if opts.Timeout > 0 {
		opts.HTTPClient.Timeout = opts.Timeout
	}

	if opts.QueueDSN == "" {
		opts.QueueDSN = DefaultQueueDSN
	}

	c := &Client{
		options:      opts,
		connectivity: opts.Connectivity,
	}

	if c.connectivity == nil {
		address, err := connectivity.AddressFor(opts.BaseURL)
		if err != nil {
			return nil, err
		}
		monitor, err := connectivity.NewMonitor(connectivity.MonitorOptions{
			Address: address,
			Logger:  opts.Logger,
		})
		if err != nil {
			return nil, err
		}
		c.monitor = monitor
		c.connectivity = monitor
	}

	// Create transport using the internal package
	c.transport = transport.NewRESTTransport(&transport.Options{
		BaseURL:      opts.BaseURL,
		HTTPClient:   opts.HTTPClient,
		RetryConfig:  opts.RetryConfig,
		Logger:       opts.Logger,
		Hooks:        opts.Hooks,
		Connectivity: c.connectivity,
	})

	if err := c.openStores(); err != nil {
		return nil, err
	}

	sessions, err := auth.NewManager(auth.Config{
		Transport:       c.transport,
		Store:           c.credentials,
		Logger:          opts.Logger,
		Lifetime:        opts.SessionLifetime,
		RefreshLeeway:   opts.RefreshLeeway,
		MinRefreshDelay: opts.MinRefreshDelay,
		OnLogoutFailure: reportLogoutFailure,
	})
	if err != nil {
		c.closeStores()
		return nil, err
	}
	c.sessions = sessions

	queue, err := uploads.NewQueue(uploads.Config{
		Transport:    c.transport,
		Store:        c.queueStore,
		Connectivity: c.connectivity,
		Tokens:       sessions,
		Logger:       opts.Logger,
		SyncInterval: opts.SyncInterval,
	})
	if err != nil {
		c.closeStores()
		return nil, err
	}
	c.queue = queue

	// Initialize services
	c.initServices()

	return c, nil
}

// initSentry initializes Sentry when a DSN or options are provided
func initSentry(opts *ClientOptions) {
	if opts.SentryDSN == "" && opts.SentryOptions == nil {
		return
	}

	sentryOpts := sentry.ClientOptions{}

	// Use provided options if available, otherwise create new ones
	if opts.SentryOptions != nil {
		sentryOpts = *opts.SentryOptions
	}

	// Override DSN if provided separately
	if opts.SentryDSN != "" {
		sentryOpts.Dsn = opts.SentryDSN
	}

	// Set default environment if not provided
	if sentryOpts.Environment == "" {
		sentryOpts.Environment = "production"
	}

	// Log error but don't fail client creation
	if err := sentry.Init(sentryOpts); err != nil && opts.Logger != nil {
		opts.Logger.Error("Failed to initialize Sentry", "error", err)
	}
}

func (c *Client) openStores() error {
	opts := c.options

	switch {
	case opts.CredentialStore != nil:
		c.credentials = opts.CredentialStore
	case opts.CredentialFile != "":
		store, err := credentials.OpenBolt(opts.CredentialFile, &credentials.BoltOptions{SealKey: opts.CredentialKey})
		if err != nil {
			return err
		}
		c.credentials = store
	default:
		c.credentials = credentials.NewMemoryStore()
	}

	if opts.UploadStore != nil {
		c.queueStore = opts.UploadStore
		return nil
	}

	store, err := uploads.OpenSQLite(context.Background(), opts.QueueDSN)
	if err != nil {
		if opts.CredentialStore == nil {
			_ = c.credentials.Close()
		}
		return err
	}
	c.queueStore = store
	return nil
}

// closeStores closes only the stores the client opened itself
func (c *Client) closeStores() error {
	var firstErr error
	if c.options.UploadStore == nil && c.queueStore != nil {
		firstErr = c.queueStore.Close()
	}
	if c.options.CredentialStore == nil && c.credentials != nil {
		if err := c.credentials.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// initServices initializes all service implementations
func (c *Client) initServices() {
	c.Auth = &authService{client: c}
	c.Uploads = &uploadService{client: c}
}

// Start resumes a stored session and begins background work: connectivity
// probing and queue draining. Background work keeps running when the restore
// fails; a missing session is not an error.
func (c *Client) Start(ctx context.Context) error {
	if c.monitor != nil {
		c.monitor.Start(ctx)
	}
	c.queue.Start(ctx)

	err := c.Auth.Restore(ctx)
	if errors.Is(err, ErrNotAuthenticated) {
		return nil
	}
	return err
}

// Close stops background work, closes the stores the client opened and
// flushes any pending Sentry events
func (c *Client) Close() error {
	c.queue.Stop()
	if c.monitor != nil {
		c.monitor.Stop()
	}

	err := c.closeStores()

	// Flush Sentry events with a 2 second timeout
	sentry.Flush(2 * time.Second)

	return err
}

// captureError reports a terminal failure to Sentry. Queued uploads and
// superseded logins are expected outcomes and are not reported.
func captureError(ctx context.Context, operation string, err error) {
	if err == nil || IsQueued(err) || errors.Is(err, ErrSuperseded) {
		return
	}

	configure := func(scope *sentry.Scope) {
		scope.SetTag("docvault.operation", operation)
		scope.SetTag("docvault.kind", KindOf(err).String())
		if status := internalTypes.StatusOf(err); status != 0 {
			scope.SetContext("http", map[string]interface{}{
				"status": status,
			})
		}
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		configure(scope)
		hub.CaptureException(err)
	})
}

// reportLogoutFailure leaves a breadcrumb for a failed server-side logout
func reportLogoutFailure(err error) {
	sentry.AddBreadcrumb(&sentry.Breadcrumb{
		Category: "auth",
		Message:  "logout request failed",
		Level:    sentry.LevelWarning,
		Data: map[string]interface{}{
			"kind":  KindOf(err).String(),
			"error": err.Error(),
		},
	})
}
