package docvault

import (
	"context"
	"net/http"

	"github.com/eshaffer321/docvault-go/internal/transport"
	internalTypes "github.com/eshaffer321/docvault-go/internal/types"
)

// authService implements the AuthService interface
type authService struct {
	client *Client
}

func (a *authService) Login(ctx context.Context, username, password string) error {
	err := a.client.sessions.Login(ctx, username, password)
	if KindOf(err) != KindClient {
		captureError(ctx, "login", err)
	}
	return err
}

func (a *authService) Logout(ctx context.Context) {
	a.client.sessions.Logout(ctx)
}

func (a *authService) Restore(ctx context.Context) error {
	err := a.client.sessions.Restore(ctx)
	if err != nil && !IsAuthError(err) {
		captureError(ctx, "restore", err)
	}
	return err
}

func (a *authService) Me(ctx context.Context) (*User, error) {
	var user User
	err := a.client.sessions.Do(ctx, &transport.Request{Method: http.MethodGet, Path: internalTypes.MePath}, &user)
	if err != nil {
		captureError(ctx, "me", err)
		return nil, err
	}
	return &user, nil
}

func (a *authService) ValidToken(ctx context.Context) (string, error) {
	return a.client.sessions.ValidToken(ctx)
}

func (a *authService) Session() *Session {
	return a.client.sessions.Session()
}

func (a *authService) CurrentUser() *User {
	return a.client.sessions.CurrentUser()
}

func (a *authService) IsAuthenticated() bool {
	return a.client.sessions.IsAuthenticated()
}

func (a *authService) ErrorMessage() string {
	return a.client.sessions.ErrorMessage()
}

func (a *authService) Loading() bool {
	return a.client.sessions.Loading()
}

func (a *authService) State() SessionState {
	return a.client.sessions.State()
}

func (a *authService) WatchUser() (<-chan User, func()) {
	return a.client.sessions.WatchUser()
}

func (a *authService) WatchAuthenticated() (<-chan bool, func()) {
	return a.client.sessions.WatchAuthenticated()
}

func (a *authService) WatchErrorMessage() (<-chan string, func()) {
	return a.client.sessions.WatchErrorMessage()
}

func (a *authService) WatchState() (<-chan SessionState, func()) {
	return a.client.sessions.WatchState()
}
