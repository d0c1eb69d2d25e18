package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pilab-dev/cartbuilder/domain"
	"github.com/pilab-dev/cartbuilder/internal/metrics"
	"github.com/pilab-dev/cartbuilder/log"
	"golang.org/x/sync/singleflight"
)

var (
	ErrNoSession         = errors.New("session: no active session")
	ErrSessionTerminated = errors.New("session: terminated")
	ErrEmptyAccessToken  = errors.New("session: refresh returned an empty access token")
)

const refreshFlightKey = "refresh"

// Refresher exchanges a refresh token for a new access token. It must not go
// through the authenticated pipeline.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (string, error)
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context, refreshToken string) (string, error)

func (f RefresherFunc) Refresh(ctx context.Context, refreshToken string) (string, error) {
	return f(ctx, refreshToken)
}

// Navigator is told when a session ended because it could not be refreshed,
// so the application can send the user back to its login entry point.
type Navigator interface {
	SessionTerminated(ctx context.Context, cause error)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, cause error)

func (f NavigatorFunc) SessionTerminated(ctx context.Context, cause error) {
	f(ctx, cause)
}

// Manager owns the session lifecycle: creation on login, in-place access
// token refresh, and destruction on logout or refresh failure. Concurrent
// callers that need a refresh share a single in-flight refresh call.
type Manager struct {
	store     *Store
	refresher Refresher
	navigator Navigator
	logger    log.Logger
	metrics   *metrics.Metrics
	group     singleflight.Group
	now       func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

func WithNavigator(n Navigator) Option {
	return func(m *Manager) { m.navigator = n }
}

func WithLogger(l log.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// NewManager creates a session manager over store using refresher to mint
// new access tokens.
func NewManager(store *Store, refresher Refresher, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		refresher: refresher,
		logger:    log.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the underlying token store.
func (m *Manager) Store() *Store {
	return m.store
}

// Begin persists the session carried by a login or registration response.
func (m *Manager) Begin(ctx context.Context, resp *domain.AuthResponse) error {
	if resp == nil || resp.Tokens == nil {
		return ErrIncompleteTokenPair
	}
	if err := m.store.SaveSession(ctx, *resp.Tokens, resp.User); err != nil {
		return err
	}
	m.logger.Info(ctx, "Session started", map[string]interface{}{
		"user_id":   resp.User.ID,
		"is_seller": resp.User.IsSeller,
	})
	return nil
}

// End destroys the session. Ending an absent session is a no-op.
func (m *Manager) End(ctx context.Context) error {
	if err := m.store.ClearSession(ctx); err != nil {
		return err
	}
	m.logger.Info(ctx, "Session ended")
	return nil
}

// Current returns the persisted session, empty when logged out.
func (m *Manager) Current(ctx context.Context) (domain.Session, error) {
	return m.store.LoadSession(ctx)
}

// AccessToken returns the stored access token, or "" without a session.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	pair, err := m.store.LoadTokens(ctx)
	if err != nil || pair == nil {
		return "", err
	}
	return pair.Access, nil
}

// UpdateUser replaces the user snapshot of the active session, leaving the
// tokens untouched.
func (m *Manager) UpdateUser(ctx context.Context, user *domain.User) error {
	sess, err := m.store.LoadSession(ctx)
	if err != nil {
		return err
	}
	if !sess.Authenticated() {
		return ErrNoSession
	}
	return m.store.SaveUser(ctx, user)
}

// Refresh obtains a new access token after staleAccess was rejected.
//
// If the stored access token already differs from staleAccess, another
// caller refreshed in the meantime and the stored token is returned without
// a network call. Otherwise one refresh is performed for all concurrent
// callers. The refresh itself is not bound to ctx's cancellation; a caller
// whose ctx ends only stops waiting for it.
//
// When no refresh token is stored or the refresh fails, the session is
// cleared, the Navigator is notified and the returned error wraps
// ErrSessionTerminated.
func (m *Manager) Refresh(ctx context.Context, staleAccess string) (string, error) {
	ch := m.group.DoChan(refreshFlightKey, func() (interface{}, error) {
		return m.refresh(context.WithoutCancel(ctx), staleAccess)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		if res.Shared {
			m.metrics.Refresh(metrics.RefreshShared, 0)
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (m *Manager) refresh(ctx context.Context, staleAccess string) (string, error) {
	pair, err := m.store.LoadTokens(ctx)
	if err != nil {
		return "", err
	}
	if pair == nil {
		return "", m.terminate(ctx, ErrNoSession)
	}
	if staleAccess != "" && pair.Access != staleAccess {
		m.logger.Debug(ctx, "Access token already refreshed by another caller")
		return pair.Access, nil
	}

	start := m.now()
	access, err := m.refresher.Refresh(ctx, pair.Refresh)
	if err == nil && access == "" {
		err = ErrEmptyAccessToken
	}
	elapsed := m.now().Sub(start).Seconds()
	if err != nil {
		m.metrics.Refresh(metrics.RefreshFailed, elapsed)
		return "", m.terminate(ctx, err)
	}
	m.metrics.Refresh(metrics.RefreshSucceeded, elapsed)

	// The session may have been ended or replaced while the call was in flight.
	current, err := m.store.LoadTokens(ctx)
	if err != nil {
		return "", err
	}
	if current == nil {
		return "", fmt.Errorf("%w: ended during refresh", ErrNoSession)
	}
	if current.Refresh != pair.Refresh {
		return current.Access, nil
	}

	if err := m.store.RenewTokens(ctx, domain.TokenPair{Access: access, Refresh: pair.Refresh}); err != nil {
		return "", err
	}
	m.logger.Debug(ctx, "Access token refreshed", map[string]interface{}{
		"access": log.RedactToken(access),
	})
	return access, nil
}

func (m *Manager) terminate(ctx context.Context, cause error) error {
	if err := m.store.ClearSession(ctx); err != nil {
		m.logger.Error(ctx, "Failed to clear session after refresh failure", err)
	}
	m.metrics.SessionTerminated()
	m.logger.Warn(ctx, "Session terminated", map[string]interface{}{"cause": cause.Error()})
	if m.navigator != nil {
		m.navigator.SessionTerminated(ctx, cause)
	}
	return fmt.Errorf("%w: %w", ErrSessionTerminated, cause)
}
