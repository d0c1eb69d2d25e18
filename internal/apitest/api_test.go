package apitest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pilab-dev/cartbuilder/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func call(t *testing.T, api *API, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, BasePath+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	api.ServeHTTP(rec, req)
	return rec
}

func registerBuyer(t *testing.T, api *API) domain.AuthResponse {
	t.Helper()
	rec := call(t, api, http.MethodPost, "/auth/register/", "", domain.Registration{
		Email: "buyer@example.com", Username: "buyer", FirstName: "Bea", LastName: "Buyer",
		Password: "s3cret-pass", PasswordConfirm: "s3cret-pass",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp domain.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestAPI_TokenLifecycle(t *testing.T) {
	api := New()
	resp := registerBuyer(t, api)
	require.True(t, resp.Tokens.Complete())

	rec := call(t, api, http.MethodGet, "/auth/profile/", resp.Tokens.Access, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	api.ExpireAccessTokens()
	rec = call(t, api, http.MethodGet, "/auth/profile/", resp.Tokens.Access, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "token_not_valid")

	rec = call(t, api, http.MethodPost, "/auth/token/refresh/", "", domain.RefreshRequest{Refresh: resp.Tokens.Refresh})
	require.Equal(t, http.StatusOK, rec.Code)
	var refreshed domain.RefreshResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &refreshed))
	assert.NotEqual(t, resp.Tokens.Access, refreshed.Access)
	assert.Equal(t, 1, api.Refreshes())

	rec = call(t, api, http.MethodGet, "/auth/profile/", refreshed.Access, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	api.RevokeRefreshTokens()
	rec = call(t, api, http.MethodPost, "/auth/token/refresh/", "", domain.RefreshRequest{Refresh: resp.Tokens.Refresh})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_AccessTokenIsNotARefreshToken(t *testing.T) {
	api := New()
	resp := registerBuyer(t, api)

	rec := call(t, api, http.MethodPost, "/auth/token/refresh/", "", domain.RefreshRequest{Refresh: resp.Tokens.Access})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = call(t, api, http.MethodGet, "/auth/profile/", resp.Tokens.Refresh, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_InvalidTokenRejectedOnPublicRoute(t *testing.T) {
	api := New()

	rec := call(t, api, http.MethodGet, "/products/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = call(t, api, http.MethodGet, "/products/", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_RegistrationValidation(t *testing.T) {
	api := New()
	registerBuyer(t, api)

	rec := call(t, api, http.MethodPost, "/auth/register/", "", domain.Registration{
		Email: "buyer@example.com", Username: "again", Password: "short", PasswordConfirm: "other",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var errs map[string][]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errs))
	assert.Equal(t, []string{"user with this email already exists."}, errs["email"])
	assert.NotEmpty(t, errs["password"])
	assert.Equal(t, []string{"Passwords don't match"}, errs["non_field_errors"])
}

func TestAPI_LoginRejectsWrongPassword(t *testing.T) {
	api := New()
	registerBuyer(t, api)

	rec := call(t, api, http.MethodPost, "/auth/login/", "", loginRequest{Email: "buyer@example.com", Password: "nope-nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"non_field_errors":["Invalid credentials"]}`, rec.Body.String())
}
