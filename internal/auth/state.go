package auth

import (
	"fmt"

	"github.com/eshaffer321/docvault-go/internal/types"
)

// State is the session lifecycle state
type State int

const (
	StateSignedOut State = iota
	StateSigningIn
	StateActive
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateSignedOut:
		return "signed_out"
	case StateSigningIn:
		return "signing_in"
	case StateActive:
		return "active"
	case StateRefreshing:
		return "refreshing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (m *Manager) State() State {
	return m.state.Get()
}

func (m *Manager) WatchState() (<-chan State, func()) {
	return m.state.Watch()
}

// CurrentUser returns the signed-in user, nil when signed out
func (m *Manager) CurrentUser() *types.User {
	if !m.authenticated.Get() {
		return nil
	}
	u := m.user.Get()
	return &u
}

func (m *Manager) WatchUser() (<-chan types.User, func()) {
	return m.user.Watch()
}

func (m *Manager) IsAuthenticated() bool {
	return m.authenticated.Get()
}

func (m *Manager) WatchAuthenticated() (<-chan bool, func()) {
	return m.authenticated.Watch()
}

// ErrorMessage is the last user-facing failure, cleared when a login starts
func (m *Manager) ErrorMessage() string {
	return m.errorMessage.Get()
}

func (m *Manager) WatchErrorMessage() (<-chan string, func()) {
	return m.errorMessage.Watch()
}

// Loading reports whether a login is in flight
func (m *Manager) Loading() bool {
	return m.loading.Get()
}

func (m *Manager) WatchLoading() (<-chan bool, func()) {
	return m.loading.Watch()
}
