package client_test

import (
	"context"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pilab-dev/cartbuilder/cache"
	"github.com/pilab-dev/cartbuilder/client"
	"github.com/pilab-dev/cartbuilder/domain"
	apierrors "github.com/pilab-dev/cartbuilder/errors"
	"github.com/pilab-dev/cartbuilder/internal/apitest"
	"github.com/pilab-dev/cartbuilder/session"
	"github.com/pilab-dev/cartbuilder/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	api       *apitest.API
	server    *httptest.Server
	baseURL   string
	navigated int32
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	api := apitest.New()
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)
	return &harness{api: api, server: server, baseURL: server.URL + apitest.BasePath}
}

// newClient returns a client with its own session storage, like a separate
// device.
func (h *harness) newClient(t *testing.T) (*client.Client, *session.Manager) {
	t.Helper()
	mem := cache.NewMemoryStorage(0)
	t.Cleanup(func() { _ = mem.Close() })

	sessions := session.NewManager(
		session.NewStore(mem),
		transport.NewHTTPRefresher(h.baseURL, h.server.Client()),
		session.WithNavigator(session.NavigatorFunc(func(context.Context, error) {
			atomic.AddInt32(&h.navigated, 1)
		})),
	)
	return client.New(h.baseURL, sessions), sessions
}

func registration(email string) domain.Registration {
	return domain.Registration{
		Email:           email,
		Username:        email,
		FirstName:       "Test",
		LastName:        "User",
		Password:        "s3cret-pass",
		PasswordConfirm: "s3cret-pass",
	}
}

func loginBuyer(t *testing.T, h *harness) (*client.Client, *session.Manager) {
	t.Helper()
	c, sessions := h.newClient(t)
	_, err := c.Register(context.Background(), registration("buyer@example.com"))
	require.NoError(t, err)
	return c, sessions
}

func TestClient_RegisterPersistsSession(t *testing.T) {
	h := newHarness(t)
	c, _ := h.newClient(t)
	ctx := context.Background()

	user, err := c.Register(ctx, registration("buyer@example.com"))
	require.NoError(t, err)
	assert.False(t, user.IsSeller)

	sess, err := c.Session(ctx)
	require.NoError(t, err)
	require.True(t, sess.Authenticated())
	assert.Equal(t, user.ID, sess.User.ID)
}

func TestClient_LoginFailureLeavesNoSession(t *testing.T) {
	h := newHarness(t)
	loginBuyer(t, h)
	c, _ := h.newClient(t)
	ctx := context.Background()

	_, err := c.Login(ctx, "buyer@example.com", "wrong-password")
	var apiErr *apierrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.ErrorIs(t, err, apierrors.ErrBadRequest)
	assert.Equal(t, "Invalid credentials", apiErr.Message)

	sess, err := c.Session(ctx)
	require.NoError(t, err)
	assert.False(t, sess.Authenticated())

	_, err = c.Login(ctx, "", "")
	assert.ErrorIs(t, err, client.ErrMissingCredentials)

	user, err := c.Login(ctx, "buyer@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, "buyer@example.com", user.Email)
}

func TestClient_RegisterValidationErrors(t *testing.T) {
	h := newHarness(t)
	c, _ := h.newClient(t)

	reg := registration("buyer@example.com")
	reg.PasswordConfirm = "different"
	_, err := c.Register(context.Background(), reg)

	var apiErr *apierrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Passwords don't match", apiErr.FieldError("non_field_errors"))
}

func TestClient_ProfileUpdateKeepsTokens(t *testing.T) {
	h := newHarness(t)
	c, sessions := loginBuyer(t, h)
	ctx := context.Background()

	before, err := sessions.Store().LoadTokens(ctx)
	require.NoError(t, err)

	address := "1 Market Street"
	user, err := c.UpdateProfile(ctx, domain.ProfileUpdate{Address: &address})
	require.NoError(t, err)
	assert.Equal(t, address, user.Address)

	sess, err := c.Session(ctx)
	require.NoError(t, err)
	assert.Equal(t, address, sess.User.Address)
	assert.Equal(t, before, sess.Tokens)

	profile, err := c.Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, address, profile.Address)
}

func TestClient_LogoutIsLocal(t *testing.T) {
	h := newHarness(t)
	c, _ := loginBuyer(t, h)
	ctx := context.Background()

	requests := h.api.Requests()
	require.NoError(t, c.Logout(ctx))
	require.NoError(t, c.Logout(ctx))
	assert.Equal(t, requests, h.api.Requests())

	_, err := c.Cart(ctx)
	assert.ErrorIs(t, err, apierrors.ErrUnauthorized)
	assert.Zero(t, h.api.Refreshes())
}

func TestClient_ExpiredAccessTokenIsRefreshedTransparently(t *testing.T) {
	h := newHarness(t)
	c, sessions := loginBuyer(t, h)
	ctx := context.Background()

	before, err := sessions.Store().LoadTokens(ctx)
	require.NoError(t, err)

	h.api.ExpireAccessTokens()
	cart, err := c.Cart(ctx)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Equal(t, 1, h.api.Refreshes())

	after, err := sessions.Store().LoadTokens(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, before.Access, after.Access)
	assert.Equal(t, before.Refresh, after.Refresh)
}

func TestClient_RevokedRefreshTokenEndsSession(t *testing.T) {
	h := newHarness(t)
	c, sessions := loginBuyer(t, h)
	ctx := context.Background()

	h.api.ExpireAccessTokens()
	h.api.RevokeRefreshTokens()

	_, err := c.Cart(ctx)
	var apiErr *apierrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.StatusCode)
	assert.Equal(t, "Given token not valid for any token type", apiErr.Message)
	assert.Equal(t, int32(1), atomic.LoadInt32(&h.navigated))

	sess, err := c.Session(ctx)
	require.NoError(t, err)
	assert.False(t, sess.Authenticated())

	pair, err := sessions.Store().LoadTokens(ctx)
	require.NoError(t, err)
	assert.Nil(t, pair)
	user, err := sessions.Store().LoadUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestClient_ConcurrentCallsShareOneRefresh(t *testing.T) {
	h := newHarness(t)
	c, _ := loginBuyer(t, h)
	ctx := context.Background()

	h.api.ExpireAccessTokens()

	const callers = 5
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Cart(ctx)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, h.api.Refreshes())
}
