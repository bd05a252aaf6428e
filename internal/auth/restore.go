package auth

import (
	"context"
	"net/http"

	"github.com/eshaffer321/docvault-go/internal/transport"
	"github.com/eshaffer321/docvault-go/internal/types"
)

// Restore resumes a session persisted by an earlier run.
//
// The stored token is probed against the profile endpoint. A rejected token
// ends the session and wipes the store. Connectivity or server failures leave
// the stored secrets in place and return the error so the caller can retry.
// An unexpired session gets its timers rescheduled from the remaining
// lifetime. One with an unknown or past expiry is renewed immediately.
func (m *Manager) Restore(ctx context.Context) error {
	m.mu.Lock()
	active := m.session != nil
	m.mu.Unlock()
	if active {
		return nil
	}

	stored, err := m.load()
	if err != nil {
		return err
	}
	if stored == nil {
		return types.ErrNotAuthenticated
	}

	m.mu.Lock()
	epoch := m.epoch
	m.mu.Unlock()

	var me types.User
	req := transport.Request{Method: http.MethodGet, Path: types.MePath}
	err = m.rest.Execute(ctx, req.WithBearer(stored.accessToken), &me)
	if err != nil {
		switch types.KindOf(err) {
		case types.KindUnauthorized, types.KindClient:
			if m.logger != nil {
				m.logger.Info("Stored session rejected", "kind", types.KindOf(err))
			}
			m.mu.Lock()
			if epoch == m.epoch && m.session == nil {
				m.clearLocked()
			}
			m.mu.Unlock()
		default:
			if m.logger != nil {
				m.logger.Warn("Could not verify stored session", "kind", types.KindOf(err), "error", err)
			}
		}
		return err
	}

	if me.ID == 0 {
		me = stored.user
	}

	m.mu.Lock()
	// A login or logout ran while the probe was in flight
	if epoch != m.epoch || m.session != nil {
		m.mu.Unlock()
		return types.ErrSuperseded
	}

	session := &types.Session{
		AccessToken:  stored.accessToken,
		RefreshToken: stored.refreshToken,
		IssuedAt:     stored.meta.IssuedAt,
		ExpiresAt:    stored.meta.ExpiresAt,
		User:         me,
	}

	if session.Remaining(m.clock.Now()) > 0 {
		if err := m.persistLocked(session); err != nil && m.logger != nil {
			m.logger.Warn("Failed to update stored profile", "error", err)
		}
		m.activateLocked(session)
		m.mu.Unlock()

		if m.logger != nil {
			m.logger.Info("Session restored", "username", me.Username, "expires_at", session.ExpiresAt)
		}
		return nil
	}

	// Expiry unknown or already past: install the session and renew it now
	m.session = session
	m.user.Set(me)
	m.authenticated.Set(true)
	m.state.Set(StateActive)
	m.mu.Unlock()

	if m.logger != nil {
		m.logger.Info("Restored session needs renewal", "username", me.Username)
	}

	_, err = m.Refresh(ctx)
	return err
}
