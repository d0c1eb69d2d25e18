// Package client is the typed REST client of the storefront API. Every call
// goes through the authenticated pipeline, so an expired access token is
// refreshed and the call replayed without the caller noticing.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pilab-dev/cartbuilder/domain"
	apierrors "github.com/pilab-dev/cartbuilder/errors"
	"github.com/pilab-dev/cartbuilder/log"
	"github.com/pilab-dev/cartbuilder/session"
	"github.com/pilab-dev/cartbuilder/transport"
)

// DefaultBaseURL is where the API is served during local development.
const DefaultBaseURL = "http://localhost:8000/api"

const defaultTimeout = 30 * time.Second

var (
	ErrInvalidQuantity        = errors.New("client: quantity must be at least 1")
	ErrInvalidStatus          = errors.New("client: unknown order status")
	ErrMissingShippingAddress = errors.New("client: shipping address is required")
	ErrMissingCredentials     = errors.New("client: email and password are required")
)

// Client talks to the storefront API on behalf of the session held by its
// session.Manager.
type Client struct {
	baseURL  string
	http     *http.Client
	sessions *session.Manager
	logger   log.Logger

	timeout       time.Duration
	transportOpts []transport.Option
	httpOverride  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds every call, refresh and replay included.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithLogger(l log.Logger) Option {
	return func(c *Client) {
		c.logger = l
		c.transportOpts = append(c.transportOpts, transport.WithLogger(l))
	}
}

// WithTransportOptions passes options to the authenticated pipeline.
func WithTransportOptions(opts ...transport.Option) Option {
	return func(c *Client) { c.transportOpts = append(c.transportOpts, opts...) }
}

// WithHTTPClient replaces the pipeline with hc. hc is then responsible for
// authentication.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpOverride = hc }
}

// New creates a client for the API at baseURL.
func New(baseURL string, sessions *session.Manager, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		sessions: sessions,
		logger:   log.NewNop(),
		timeout:  defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpOverride != nil {
		c.http = c.httpOverride
	} else {
		c.http = &http.Client{
			Transport: transport.NewAuthTransport(sessions, c.transportOpts...),
			Timeout:   c.timeout,
		}
	}
	return c
}

// BaseURL returns the API root the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Session returns the persisted session, empty when logged out.
func (c *Client) Session(ctx context.Context) (domain.Session, error) {
	return c.sessions.Current(ctx)
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode %s %s request: %w", method, path, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("failed to build %s %s request: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s %s response: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := apierrors.NewAPIError(resp.StatusCode, raw)
		c.logger.Debug(ctx, "API call failed", map[string]interface{}{
			"method": method,
			"path":   path,
			"status": resp.StatusCode,
			"error":  apiErr.Message,
		})
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}
