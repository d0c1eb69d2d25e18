package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"unicode/utf8"

	serrors "github.com/pilab-dev/cartbuilder/errors"
	"github.com/stretchr/testify/assert"
)

func TestNewAPIError(t *testing.T) {
	testCases := []struct {
		name         string
		status       int
		body         string
		wantMessage  string
		wantField    string
		wantFieldMsg string
	}{
		{
			name:        "detail message",
			status:      http.StatusUnauthorized,
			body:        `{"detail":"Given token not valid for any token type","code":"token_not_valid"}`,
			wantMessage: "Given token not valid for any token type",
		},
		{
			name:        "error message",
			status:      http.StatusBadRequest,
			body:        `{"error":"Insufficient stock"}`,
			wantMessage: "Insufficient stock",
		},
		{
			name:         "field errors",
			status:       http.StatusBadRequest,
			body:         `{"password":["This password is too short."],"email":["user with this email already exists."]}`,
			wantMessage:  "email: user with this email already exists.",
			wantField:    "password",
			wantFieldMsg: "This password is too short.",
		},
		{
			name:        "non field errors",
			status:      http.StatusBadRequest,
			body:        `{"non_field_errors":["Invalid credentials"]}`,
			wantMessage: "Invalid credentials",
		},
		{
			name:        "plain text body",
			status:      http.StatusBadGateway,
			body:        "upstream unavailable\n",
			wantMessage: "upstream unavailable",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			apiErr := serrors.NewAPIError(tc.status, []byte(tc.body))
			assert.Equal(t, tc.status, apiErr.StatusCode)
			assert.Equal(t, tc.wantMessage, apiErr.Message)
			if tc.wantField != "" {
				assert.Equal(t, tc.wantFieldMsg, apiErr.FieldError(tc.wantField))
			}
		})
	}
}

func TestAPIError_Is(t *testing.T) {
	err := fmt.Errorf("load cart: %w", serrors.NewAPIError(http.StatusUnauthorized, nil))

	assert.True(t, stderrors.Is(err, serrors.ErrUnauthorized))
	assert.False(t, stderrors.Is(err, serrors.ErrNotFound))

	var apiErr *serrors.APIError
	assert.True(t, stderrors.As(err, &apiErr))
	assert.Equal(t, "api error 401: Unauthorized", apiErr.Error())
}

func TestNewAPIError_TruncatesOnRuneBoundary(t *testing.T) {
	// 199 ASCII bytes followed by two-byte runes: byte 200 falls inside "é".
	body := strings.Repeat("x", 199) + strings.Repeat("é", 10)

	apiErr := serrors.NewAPIError(http.StatusBadGateway, []byte(body))

	assert.True(t, utf8.ValidString(apiErr.Message))
	assert.Equal(t, strings.Repeat("x", 199), apiErr.Message)

	short := serrors.NewAPIError(http.StatusBadGateway, []byte("  Bad gateway: ünavailable  "))
	assert.Equal(t, "Bad gateway: ünavailable", short.Message)
}
