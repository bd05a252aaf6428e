// Package auth owns the bearer-token session: sign-in, scheduled renewal,
// hard expiry and sign-out.
//
// Every state transition happens under the Manager's mutex. Network calls are
// made outside it and their results are discarded when a newer login or a
// logout happened in the meantime.
package auth

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/eshaffer321/docvault-go/internal/clock"
	"github.com/eshaffer321/docvault-go/internal/credentials"
	"github.com/eshaffer321/docvault-go/internal/observable"
	"github.com/eshaffer321/docvault-go/internal/transport"
	"github.com/eshaffer321/docvault-go/internal/types"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
)

// Transport executes a single logical request
type Transport interface {
	Execute(ctx context.Context, r *transport.Request, result interface{}) error
}

// Config configures a Manager
type Config struct {
	Transport Transport
	Store     credentials.Store
	Clock     clock.Clock
	Logger    types.Logger

	// Lifetime is the requested token lifetime
	Lifetime time.Duration

	// RefreshLeeway is how long before expiry a token counts as stale
	RefreshLeeway time.Duration

	// MinRefreshDelay is the floor for the scheduled refresh
	MinRefreshDelay time.Duration

	// RefreshRetries is the number of retries after a failed refresh. Negative disables retry.
	RefreshRetries int

	// RefreshBackoff is the first retry delay, doubled on each retry
	RefreshBackoff time.Duration

	// OnLogoutFailure receives failures of the best-effort server logout
	OnLogoutFailure func(err error)
}

// Manager holds at most one active session
type Manager struct {
	rest   Transport
	store  credentials.Store
	clock  clock.Clock
	logger types.Logger

	lifetime        time.Duration
	leeway          time.Duration
	minRefreshDelay time.Duration
	refreshRetries  int
	refreshBackoff  time.Duration
	onLogoutFailure func(err error)

	mu           sync.Mutex
	session      *types.Session
	loginSeq     uint64
	loginCancel  context.CancelFunc
	epoch        uint64
	refreshAt    time.Time
	refreshTimer clock.Timer
	timeout      clock.Timer

	flight singleflight.Group

	state         *observable.Value[State]
	user          *observable.Value[types.User]
	authenticated *observable.Value[bool]
	errorMessage  *observable.Value[string]
	loading       *observable.Value[bool]
}

// NewManager creates a signed-out Manager
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Transport == nil {
		return nil, errors.New("auth: transport is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("auth: credential store is required")
	}

	// Set defaults
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Lifetime == 0 {
		cfg.Lifetime = types.DefaultSessionLifetime
	}
	if cfg.RefreshLeeway == 0 {
		cfg.RefreshLeeway = types.DefaultRefreshLeeway
	}
	if cfg.MinRefreshDelay == 0 {
		cfg.MinRefreshDelay = types.DefaultMinRefreshDelay
	}
	if cfg.RefreshRetries == 0 {
		cfg.RefreshRetries = 3
	}
	if cfg.RefreshRetries < 0 {
		cfg.RefreshRetries = 0
	}
	if cfg.RefreshBackoff == 0 {
		cfg.RefreshBackoff = time.Second
	}

	return &Manager{
		rest:            cfg.Transport,
		store:           cfg.Store,
		clock:           cfg.Clock,
		logger:          cfg.Logger,
		lifetime:        cfg.Lifetime,
		leeway:          cfg.RefreshLeeway,
		minRefreshDelay: cfg.MinRefreshDelay,
		refreshRetries:  cfg.RefreshRetries,
		refreshBackoff:  cfg.RefreshBackoff,
		onLogoutFailure: cfg.OnLogoutFailure,
		state:           observable.New(StateSignedOut),
		user:            observable.New(types.User{}),
		authenticated:   observable.New(false),
		errorMessage:    observable.New(""),
		loading:         observable.New(false),
	}, nil
}

// Login signs in, superseding any login still in flight.
// A superseded call returns types.ErrSuperseded and leaves state untouched.
func (m *Manager) Login(ctx context.Context, username, password string) error {
	m.mu.Lock()
	if m.loginCancel != nil {
		m.loginCancel()
	}
	loginCtx, cancel := context.WithCancel(ctx)
	m.loginSeq++
	seq := m.loginSeq
	m.loginCancel = cancel
	m.state.Set(StateSigningIn)
	m.loading.Set(true)
	m.errorMessage.Set("")
	m.mu.Unlock()
	defer cancel()

	if m.logger != nil {
		m.logger.Debug("Login request", "username", username)
	}

	var resp loginResponse
	err := m.rest.Execute(loginCtx, &transport.Request{
		Method: http.MethodPost,
		Path:   types.LoginPath,
		Body: loginRequest{
			Username:      username,
			Password:      password,
			ExpiresInMins: minutes(m.lifetime),
		},
	}, &resp)

	m.mu.Lock()
	defer m.mu.Unlock()

	if seq != m.loginSeq {
		return types.ErrSuperseded
	}
	m.loginCancel = nil
	m.loading.Set(false)

	if err == nil && resp.token() == "" {
		err = types.NewError(types.KindDecoding, 0, errors.New("login response has no access token"))
	}
	if err != nil {
		m.failLoginLocked(err)
		return err
	}

	now := m.clock.Now()
	session := &types.Session{
		AccessToken:  resp.token(),
		RefreshToken: resp.RefreshToken,
		IssuedAt:     now,
		ExpiresAt:    now.Add(m.lifetime),
		User:         resp.user(),
	}

	if err := m.persistLocked(session); err != nil {
		m.failLoginLocked(err)
		return err
	}

	m.activateLocked(session)

	if m.logger != nil {
		m.logger.Info("Login successful", "username", session.User.Username, "expires_at", session.ExpiresAt)
	}

	return nil
}

func (m *Manager) failLoginLocked(err error) {
	if m.session != nil {
		m.state.Set(StateActive)
	} else {
		m.state.Set(StateSignedOut)
	}
	m.errorMessage.Set(types.Message(err))

	if m.logger != nil {
		m.logger.Warn("Login failed", "kind", types.KindOf(err), "error", err)
	}
}

// Logout ends the session. It never fails and is safe to call repeatedly.
// The server is notified on a best-effort basis after local state is gone.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	token := m.clearLocked()
	m.mu.Unlock()

	m.notifyLogout(ctx, token)
}

// forceLogout ends the session and records why
func (m *Manager) forceLogout(ctx context.Context, reason error) {
	m.mu.Lock()
	token := m.clearLocked()
	m.errorMessage.Set(types.Message(reason))
	m.mu.Unlock()

	if m.logger != nil {
		m.logger.Warn("Session ended", "reason", reason)
	}

	m.notifyLogout(ctx, token)
}

// clearLocked wipes every trace of the session and returns the access token
// that was active, if any
func (m *Manager) clearLocked() string {
	m.stopTimersLocked()
	if m.loginCancel != nil {
		m.loginCancel()
		m.loginCancel = nil
		m.loginSeq++
	}
	m.epoch++

	var token string
	if m.session != nil {
		token = m.session.AccessToken
	}
	m.session = nil

	if err := m.store.DeleteAll(); err != nil && m.logger != nil {
		m.logger.Error("Failed to wipe credentials", "error", err)
	}

	m.state.Set(StateSignedOut)
	m.user.Set(types.User{})
	m.authenticated.Set(false)
	m.loading.Set(false)

	return token
}

func (m *Manager) notifyLogout(ctx context.Context, token string) {
	if token == "" {
		return
	}

	req := transport.Request{Method: http.MethodPost, Path: types.LogoutPath}
	err := m.rest.Execute(ctx, req.WithBearer(token), nil)
	if err == nil {
		return
	}

	if m.logger != nil {
		m.logger.Warn("Logout request failed", "kind", types.KindOf(err), "error", err)
	}
	if m.onLogoutFailure != nil {
		m.onLogoutFailure(err)
	}
}

// activateLocked installs session and schedules its timers
func (m *Manager) activateLocked(session *types.Session) {
	m.session = session
	m.user.Set(session.User)
	m.authenticated.Set(true)
	m.state.Set(StateActive)
	m.scheduleLocked()
}

// Session returns a copy of the active session, nil when signed out
func (m *Manager) Session() *types.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	s := *m.session
	return &s
}

// NextRefreshAt returns when the scheduled refresh fires, zero when none is scheduled
func (m *Manager) NextRefreshAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshAt
}

func minutes(d time.Duration) int {
	return int(d / time.Minute)
}
