package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/pilab-dev/cartbuilder/domain"
	"github.com/pilab-dev/cartbuilder/session"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates with email and password and starts a session.
func (c *Client) Login(ctx context.Context, email, password string) (*domain.User, error) {
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	return c.authenticate(ctx, "/auth/login/", loginRequest{Email: email, Password: password})
}

// Register creates a buyer account and starts a session for it.
func (c *Client) Register(ctx context.Context, reg domain.Registration) (*domain.User, error) {
	return c.authenticate(ctx, "/auth/register/", reg)
}

// RegisterSeller creates a seller account and starts a session for it.
func (c *Client) RegisterSeller(ctx context.Context, reg domain.Registration) (*domain.User, error) {
	return c.authenticate(ctx, "/auth/seller/register/", reg)
}

func (c *Client) authenticate(ctx context.Context, path string, in interface{}) (*domain.User, error) {
	var resp domain.AuthResponse
	if err := c.do(ctx, http.MethodPost, path, nil, in, &resp); err != nil {
		return nil, err
	}
	if err := c.sessions.Begin(ctx, &resp); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}
	return resp.User, nil
}

// Logout ends the local session. The API keeps no server-side session, so
// nothing is sent.
func (c *Client) Logout(ctx context.Context) error {
	return c.sessions.End(ctx)
}

// Profile fetches the current user and refreshes the stored snapshot.
func (c *Client) Profile(ctx context.Context) (*domain.User, error) {
	var user domain.User
	if err := c.get(ctx, "/auth/profile/", nil, &user); err != nil {
		return nil, err
	}
	if err := c.sessions.UpdateUser(ctx, &user); err != nil && !errors.Is(err, session.ErrNoSession) {
		return nil, err
	}
	return &user, nil
}

// UpdateProfile applies a partial profile update. The stored user snapshot
// is replaced with the server's answer; the tokens are left untouched.
func (c *Client) UpdateProfile(ctx context.Context, update domain.ProfileUpdate) (*domain.User, error) {
	var user domain.User
	if err := c.do(ctx, http.MethodPut, "/auth/profile/update/", nil, update, &user); err != nil {
		return nil, err
	}
	if err := c.sessions.UpdateUser(ctx, &user); err != nil && !errors.Is(err, session.ErrNoSession) {
		return nil, err
	}
	return &user, nil
}
