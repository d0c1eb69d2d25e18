package transport_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pilab-dev/cartbuilder/domain"
	apierrors "github.com/pilab-dev/cartbuilder/errors"
	"github.com/pilab-dev/cartbuilder/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPRefresher(t *testing.T) {
	testCases := []struct {
		name       string
		status     int
		body       string
		wantAccess string
		wantErr    error
	}{
		{name: "success", status: http.StatusOK, body: `{"access":"A2"}`, wantAccess: "A2"},
		{name: "rejected", status: http.StatusUnauthorized, body: `{"detail":"Token is blacklisted","code":"token_not_valid"}`, wantErr: apierrors.ErrUnauthorized},
		{name: "server error", status: http.StatusBadGateway, body: `bad gateway`, wantErr: &apierrors.APIError{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var got domain.RefreshRequest
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/api"+transport.RefreshPath, r.URL.Path)
				assert.Empty(t, r.Header.Get("Authorization"))
				require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			refresher := transport.NewHTTPRefresher(server.URL+"/api/", server.Client())
			access, err := refresher.Refresh(context.Background(), "R1")

			assert.Equal(t, "R1", got.Refresh)
			if tc.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, tc.wantAccess, access)
				return
			}

			var apiErr *apierrors.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tc.status, apiErr.StatusCode)
			if tc.wantErr == apierrors.ErrUnauthorized {
				assert.ErrorIs(t, err, apierrors.ErrUnauthorized)
				assert.Equal(t, "Token is blacklisted", apiErr.Message)
			}
		})
	}
}
