package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/eshaffer321/docvault-go/internal/transport"
	"github.com/eshaffer321/docvault-go/internal/types"
	"github.com/sethvargo/go-retry"
)

const refreshKey = "refresh"

// ValidToken returns an access token with at least the refresh leeway left,
// refreshing first when needed
func (m *Manager) ValidToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return "", types.ErrNotAuthenticated
	}
	remaining := m.session.Remaining(m.clock.Now())
	token := m.session.AccessToken
	m.mu.Unlock()

	if remaining >= m.leeway {
		return token, nil
	}
	return m.refresh(ctx, token)
}

// Refresh renews the session, joining a refresh already in flight
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	return m.refresh(ctx, "")
}

// refresh renews the session. A non-empty stale token makes the renewal
// conditional: if another refresh already replaced it, the newer token is
// returned without a network call.
func (m *Manager) refresh(ctx context.Context, stale string) (string, error) {
	ch := m.flight.DoChan(refreshKey, func() (interface{}, error) {
		return m.doRefresh(context.WithoutCancel(ctx), stale)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (m *Manager) doRefresh(ctx context.Context, stale string) (string, error) {
	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return "", types.ErrNotAuthenticated
	}
	if stale != "" && m.session.AccessToken != stale {
		token := m.session.AccessToken
		m.mu.Unlock()
		return token, nil
	}
	refreshToken := m.session.RefreshToken
	epoch := m.epoch
	m.state.Set(StateRefreshing)
	m.mu.Unlock()

	var resp tokenResponse
	backoff := retry.WithMaxRetries(uint64(m.refreshRetries), retry.NewExponential(m.refreshBackoff))
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		resp = tokenResponse{}
		err := m.rest.Execute(ctx, &transport.Request{
			Method: http.MethodPost,
			Path:   types.RefreshPath,
			Body: refreshRequest{
				RefreshToken:  refreshToken,
				ExpiresInMins: minutes(m.lifetime),
			},
		}, &resp)
		if err == nil && resp.token() == "" {
			err = types.NewError(types.KindDecoding, 0, nil)
		}
		if err == nil {
			return nil
		}

		if m.logger != nil {
			m.logger.Warn("Token refresh failed", "attempt", attempt, "kind", types.KindOf(err))
		}

		switch types.KindOf(err) {
		case types.KindUnauthorized, types.KindClient:
			return err
		}
		return retry.RetryableError(err)
	})

	m.mu.Lock()

	// A logout or a newer login replaced the session we set out to renew
	if epoch != m.epoch || m.session == nil {
		defer m.mu.Unlock()
		if m.session != nil {
			return m.session.AccessToken, nil
		}
		return "", types.ErrNotAuthenticated
	}

	if err != nil {
		token := m.clearLocked()
		m.errorMessage.Set(types.ErrSessionExpired.Error())
		m.mu.Unlock()

		if m.logger != nil {
			m.logger.Warn("Session ended after refresh failure", "attempts", attempt, "error", err)
		}
		m.notifyLogout(ctx, token)
		return "", err
	}

	now := m.clock.Now()
	session := &types.Session{
		AccessToken:  resp.token(),
		RefreshToken: resp.RefreshToken,
		IssuedAt:     now,
		ExpiresAt:    now.Add(m.lifetime),
		User:         m.session.User,
	}
	if session.RefreshToken == "" {
		session.RefreshToken = refreshToken
	}

	if perr := m.persistLocked(session); perr != nil {
		token := m.clearLocked()
		m.mu.Unlock()
		m.notifyLogout(ctx, token)
		return "", perr
	}

	m.activateLocked(session)
	m.mu.Unlock()

	if m.logger != nil {
		m.logger.Info("Token refreshed", "expires_at", session.ExpiresAt)
	}
	return session.AccessToken, nil
}

// Do sends r with the session's bearer token. An Unauthorized answer triggers
// one refresh and resubmission; a second one ends the session.
func (m *Manager) Do(ctx context.Context, r *transport.Request, result interface{}) error {
	token, err := m.ValidToken(ctx)
	if err != nil {
		return err
	}

	err = m.rest.Execute(ctx, r.WithBearer(token), result)
	if types.KindOf(err) != types.KindUnauthorized {
		return err
	}

	token, rerr := m.Refresh(ctx)
	if rerr != nil {
		return rerr
	}

	err = m.rest.Execute(ctx, r.WithBearer(token), result)
	if types.KindOf(err) == types.KindUnauthorized {
		m.forceLogout(ctx, err)
	}
	return err
}

// scheduleLocked arms the refresh and timeout timers for the current session.
// Timers left from an earlier session are stopped first.
func (m *Manager) scheduleLocked() {
	m.stopTimersLocked()
	m.epoch++
	epoch := m.epoch

	now := m.clock.Now()
	remaining := m.session.Remaining(now)

	delay := remaining - m.leeway
	if delay < m.minRefreshDelay {
		delay = m.minRefreshDelay
	}

	m.refreshAt = now.Add(delay)
	m.refreshTimer = m.clock.AfterFunc(delay, func() { m.onRefreshTimer(epoch) })
	m.timeout = m.clock.AfterFunc(remaining, func() { m.onTimeout(epoch) })

	if m.logger != nil {
		m.logger.Debug("Session timers scheduled", "refresh_in", delay, "expires_in", remaining)
	}
}

func (m *Manager) stopTimersLocked() {
	if m.refreshTimer != nil {
		m.refreshTimer.Stop()
		m.refreshTimer = nil
	}
	if m.timeout != nil {
		m.timeout.Stop()
		m.timeout = nil
	}
	m.refreshAt = time.Time{}
}

func (m *Manager) current(epoch uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return epoch == m.epoch && m.session != nil
}

func (m *Manager) onRefreshTimer(epoch uint64) {
	if !m.current(epoch) {
		return
	}
	if _, err := m.Refresh(context.Background()); err != nil && m.logger != nil {
		m.logger.Warn("Scheduled refresh failed", "error", err)
	}
}

func (m *Manager) onTimeout(epoch uint64) {
	if !m.current(epoch) {
		return
	}
	m.forceLogout(context.Background(), types.ErrSessionExpired)
}
