package cmd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pilab-dev/cartbuilder/config"
	"github.com/pilab-dev/cartbuilder/domain"
	apierrors "github.com/pilab-dev/cartbuilder/errors"
	"github.com/pilab-dev/cartbuilder/internal/apitest"
	"github.com/pilab-dev/cartbuilder/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cli struct {
	api        *apitest.API
	configPath string
}

// newCLI writes a config with a buyer and a seller context sharing one
// bbolt file against a fake API.
func newCLI(t *testing.T) *cli {
	t.Helper()
	api := apitest.New()
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	dir := t.TempDir()
	endpoint := server.URL + apitest.BasePath
	sessionFile := filepath.Join(dir, "session.db")
	raw := fmt.Sprintf(`current_context: buyer
log_level: error
contexts:
  buyer:
    api_endpoint: %[1]s
    storage:
      backend: bbolt
      path: %[2]s
  seller:
    api_endpoint: %[1]s
    storage:
      backend: bbolt
      path: %[2]s
`, endpoint, sessionFile)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))
	return &cli{api: api, configPath: path}
}

// run executes one CLI invocation, feeding input to the prompts.
func (c *cli) run(t *testing.T, input string, args ...string) (string, string, error) {
	t.Helper()
	root, a := newRootCmd()
	a.in = bufio.NewReader(strings.NewReader(input))
	a.interactive = false

	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--config", c.configPath}, args...))

	err := root.ExecuteContext(context.Background())
	a.close(root)
	return stdout.String(), stderr.String(), err
}

func (c *cli) mustRun(t *testing.T, input string, args ...string) string {
	t.Helper()
	out, stderr, err := c.run(t, input, args...)
	require.NoError(t, err, "stderr: %s", stderr)
	return out
}

func decode[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(out), &v), out)
	return v
}

func TestCLI_ShoppingAcrossInvocations(t *testing.T) {
	c := newCLI(t)
	const password = "s3cret-pass\ns3cret-pass\n"

	out := c.mustRun(t, password, "--context", "seller", "auth", "register", "--seller",
		"--email", "seller@example.com", "--first-name", "Sam", "--last-name", "Seller")
	assert.Contains(t, out, "Registered and logged in as seller@example.com (seller)")

	out = c.mustRun(t, "", "--context", "seller", "products", "create",
		"--name", "Mug", "--price", "12.50", "--stock", "3", "-o", "json")
	mug := decode[domain.Product](t, out)
	assert.Equal(t, "Mug", mug.Name)

	out = c.mustRun(t, password, "auth", "register", "--email", "buyer@example.com", "--first-name", "Bea")
	assert.Contains(t, out, "(buyer)")

	status := decode[sessionStatus](t, c.mustRun(t, "", "auth", "status", "-o", "json"))
	assert.True(t, status.LoggedIn)
	assert.Equal(t, "buyer", status.Context)
	require.NotNil(t, status.User)
	assert.Equal(t, "buyer@example.com", status.User.Email)
	assert.NotNil(t, status.AccessExpires)

	c.mustRun(t, "", "cart", "add", fmt.Sprint(mug.ID), "--quantity", "2")

	c.api.ExpireAccessTokens()
	cart := decode[domain.Cart](t, c.mustRun(t, "", "cart", "-o", "json"))
	assert.Equal(t, "25.00", cart.TotalAmount)
	assert.Equal(t, 2, cart.ItemCount)
	assert.Equal(t, 1, c.api.Refreshes())

	order := decode[domain.Order](t, c.mustRun(t, "1 Main St\n", "orders", "checkout", "-o", "json"))
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, "1 Main St", order.ShippingAddress)

	out = c.mustRun(t, "", "--context", "seller", "orders", "set-status", fmt.Sprint(order.ID), "shipped")
	assert.Contains(t, out, "is now shipped")

	out = c.mustRun(t, "", "auth", "logout")
	assert.Contains(t, out, `Logged out of context "buyer"`)

	status = decode[sessionStatus](t, c.mustRun(t, "", "auth", "status", "-o", "json"))
	assert.False(t, status.LoggedIn)

	_, _, err := c.run(t, "", "cart")
	require.Error(t, err)
	assert.Equal(t, "not logged in", describe(err))

	// The seller context keeps its own session.
	status = decode[sessionStatus](t, c.mustRun(t, "", "--context", "seller", "auth", "status", "-o", "json"))
	assert.True(t, status.LoggedIn)
}

func TestCLI_RevokedSessionIsReported(t *testing.T) {
	c := newCLI(t)
	c.mustRun(t, "s3cret-pass\ns3cret-pass\n", "auth", "register", "--email", "buyer@example.com")

	c.api.ExpireAccessTokens()
	c.api.RevokeRefreshTokens()

	_, stderr, err := c.run(t, "", "orders", "list")
	require.Error(t, err)
	assert.ErrorIs(t, err, apierrors.ErrUnauthorized)
	assert.Contains(t, stderr, `Your session in context "buyer" has expired`)

	status := decode[sessionStatus](t, c.mustRun(t, "", "auth", "status", "-o", "json"))
	assert.False(t, status.LoggedIn)
}

func TestCLI_ConfigContexts(t *testing.T) {
	c := newCLI(t)

	out := c.mustRun(t, "", "config", "set-context", "staging",
		"--api-endpoint", "https://staging.example.com/api",
		"--storage", "redis", "--storage-address", "localhost:6379")
	assert.Contains(t, out, `Context "staging" created`)

	c.mustRun(t, "", "config", "use-context", "staging")
	assert.Equal(t, "staging\n", c.mustRun(t, "", "config", "current-context"))

	cfg, err := config.Load(c.configPath)
	require.NoError(t, err)
	staging, err := cfg.Current()
	require.NoError(t, err)
	assert.Equal(t, config.BackendRedis, staging.Storage.Backend)
	assert.Equal(t, "localhost:6379", staging.Storage.Address)

	_, _, err = c.run(t, "", "config", "set-context", "broken", "--api-endpoint", "not a url")
	require.Error(t, err)

	c.mustRun(t, "", "config", "delete-context", "staging")
	assert.Equal(t, "buyer\n", c.mustRun(t, "", "config", "current-context"))

	out = c.mustRun(t, "", "config", "get-contexts")
	assert.Contains(t, out, "buyer")
	assert.NotContains(t, out, "staging")
}

func TestCLI_RejectsBadInput(t *testing.T) {
	c := newCLI(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown output", []string{"-o", "xml", "cart"}, `unknown output format "xml"`},
		{"bad product id", []string{"products", "get", "abc"}, `invalid product id "abc"`},
		{"bad status", []string{"orders", "set-status", "1", "lost"}, "Valid statuses"},
		{"empty update", []string{"products", "update", "1"}, "nothing to update"},
		{"unknown context", []string{"--context", "nope", "cart"}, "context not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := c.run(t, "", tt.args...)
			require.Error(t, err)
			assert.Contains(t, describe(err), tt.want)
		})
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"terminated", fmt.Errorf("%w: %w", session.ErrSessionTerminated, apierrors.ErrUnauthorized), "session expired, please log in again"},
		{"plain", fmt.Errorf("boom"), "boom"},
		{
			"single field",
			&apierrors.APIError{StatusCode: 400, Message: "Price must be greater than 0", Fields: map[string][]string{"price": {"Price must be greater than 0"}}},
			"Price must be greater than 0",
		},
		{
			"several fields",
			&apierrors.APIError{StatusCode: 400, Message: "email: required", Fields: map[string][]string{
				"password": {"too short"},
				"email":    {"required"},
			}},
			"validation failed:\n  email: required\n  password: too short",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, describe(tt.err))
		})
	}
}
