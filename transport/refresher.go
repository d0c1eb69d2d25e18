package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pilab-dev/cartbuilder/domain"
	apierrors "github.com/pilab-dev/cartbuilder/errors"
)

// RefreshPath is the token refresh endpoint, relative to the API base URL.
const RefreshPath = "/auth/token/refresh/"

// HTTPRefresher calls the refresh endpoint over a plain client, outside the
// authenticated pipeline, so a rejected refresh can never recurse.
type HTTPRefresher struct {
	baseURL string
	client  *http.Client
}

// NewHTTPRefresher creates a refresher for the API at baseURL. A nil client
// is replaced by one with a 30 second timeout.
func NewHTTPRefresher(baseURL string, client *http.Client) *HTTPRefresher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPRefresher{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// Refresh implements session.Refresher.
func (r *HTTPRefresher) Refresh(ctx context.Context, refreshToken string) (string, error) {
	body, err := json.Marshal(domain.RefreshRequest{Refresh: refreshToken})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+RefreshPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read refresh response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", apierrors.NewAPIError(resp.StatusCode, raw)
	}

	var out domain.RefreshResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("failed to decode refresh response: %w", err)
	}
	return out.Access, nil
}
