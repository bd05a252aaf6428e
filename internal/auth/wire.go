package auth

import (
	"encoding/json"

	"github.com/eshaffer321/docvault-go/internal/types"
	"github.com/pkg/errors"
)

type loginRequest struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	ExpiresInMins int    `json:"expiresInMins"`
}

type refreshRequest struct {
	RefreshToken  string `json:"refreshToken"`
	ExpiresInMins int    `json:"expiresInMins"`
}

// tokenResponse is the token pair returned by refresh
type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

// token prefers accessToken and falls back to the older token field
func (r tokenResponse) token() string {
	if r.AccessToken != "" {
		return r.AccessToken
	}
	return r.Token
}

// loginResponse is the user profile plus its token pair
type loginResponse struct {
	types.User
	tokenResponse
}

func (r loginResponse) user() types.User {
	return r.User
}

// UnmarshalJSON decodes both embedded halves from the same object
func (r *loginResponse) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &r.User); err != nil {
		return err
	}
	return json.Unmarshal(data, &r.tokenResponse)
}

// persistLocked writes the whole session in one atomic store operation
func (m *Manager) persistLocked(s *types.Session) error {
	user, err := json.Marshal(s.User)
	if err != nil {
		return errors.Wrap(err, "failed to marshal user")
	}
	meta, err := json.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "failed to marshal session")
	}

	return m.store.Replace(map[string][]byte{
		types.KeyAccessToken:  []byte(s.AccessToken),
		types.KeyRefreshToken: []byte(s.RefreshToken),
		types.KeyUser:         user,
		types.KeySession:      meta,
	})
}

// storedSession is what Restore finds in the credential store
type storedSession struct {
	accessToken  string
	refreshToken string
	user         types.User
	meta         types.Session
}

// load reads a persisted session. It returns nil when no tokens are stored.
func (m *Manager) load() (*storedSession, error) {
	access, err := m.store.Get(types.KeyAccessToken)
	if err != nil {
		return nil, err
	}
	refresh, err := m.store.Get(types.KeyRefreshToken)
	if err != nil {
		return nil, err
	}
	if len(access) == 0 || len(refresh) == 0 {
		return nil, nil
	}

	stored := &storedSession{
		accessToken:  string(access),
		refreshToken: string(refresh),
	}

	if raw, err := m.store.Get(types.KeyUser); err != nil {
		return nil, err
	} else if len(raw) > 0 {
		if err := json.Unmarshal(raw, &stored.user); err != nil && m.logger != nil {
			m.logger.Warn("Ignoring unreadable stored user", "error", err)
		}
	}

	if raw, err := m.store.Get(types.KeySession); err != nil {
		return nil, err
	} else if len(raw) > 0 {
		if err := json.Unmarshal(raw, &stored.meta); err != nil && m.logger != nil {
			m.logger.Warn("Ignoring unreadable stored session", "error", err)
		}
	}

	return stored, nil
}
