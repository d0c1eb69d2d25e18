package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"unicode/utf8"
)

// Sentinel errors matched by APIError.Is on the response status.
var (
	ErrBadRequest   = &statusError{code: http.StatusBadRequest}
	ErrUnauthorized = &statusError{code: http.StatusUnauthorized}
	ErrForbidden    = &statusError{code: http.StatusForbidden}
	ErrNotFound     = &statusError{code: http.StatusNotFound}
)

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return strings.ToLower(http.StatusText(e.code))
}

// APIError is a non-2xx response of the storefront API, passed to the caller
// without reinterpretation.
type APIError struct {
	StatusCode int                 `json:"status_code"`
	Message    string              `json:"message"`
	Fields     map[string][]string `json:"fields,omitempty"`
	Body       []byte              `json:"-"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Is matches the status sentinels (ErrUnauthorized, ErrNotFound, ...).
func (e *APIError) Is(target error) bool {
	se, ok := target.(*statusError)
	return ok && se.code == e.StatusCode
}

// FieldError returns the first validation message reported for field.
func (e *APIError) FieldError(field string) string {
	if msgs := e.Fields[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// maxRawMessage bounds the message taken from a non-JSON body, in bytes.
const maxRawMessage = 200

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// NewAPIError decodes an error body the way the API renders it: a "detail"
// or "error" string, or a map of field name to validation messages.
func NewAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode, Body: body}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		apiErr.Message = truncate(strings.TrimSpace(string(body)), maxRawMessage)
		return apiErr
	}

	for _, key := range []string{"detail", "error", "message"} {
		var s string
		if v, ok := raw[key]; ok && json.Unmarshal(v, &s) == nil && s != "" {
			apiErr.Message = s
			return apiErr
		}
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		var msgs []string
		if err := json.Unmarshal(raw[k], &msgs); err != nil || len(msgs) == 0 {
			continue
		}
		if apiErr.Fields == nil {
			apiErr.Fields = make(map[string][]string)
		}
		apiErr.Fields[k] = msgs
		if apiErr.Message == "" {
			if k == "non_field_errors" {
				apiErr.Message = msgs[0]
			} else {
				apiErr.Message = k + ": " + msgs[0]
			}
		}
	}

	return apiErr
}
