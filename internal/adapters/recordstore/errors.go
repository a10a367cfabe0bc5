package recordstore

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"accredit-dashboard/internal/core/domain"
)

// APIError carries a failed response from the record store, including its body
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

func newAPIError(status int, body []byte) *APIError {
	e := &APIError{StatusCode: status, Body: string(body)}

	var payload struct {
		Message json.RawMessage `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		e.Message = firstText(payload.Message, payload.Error)
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

// firstText picks the first member that is a string, or a list of strings as
// some frameworks send for validation messages
func firstText(candidates ...json.RawMessage) string {
	for _, raw := range candidates {
		if len(raw) == 0 {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}
		var list []string
		if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
			return strings.Join(list, "; ")
		}
	}
	return ""
}

func (e *APIError) Error() string {
	return fmt.Sprintf("record store error: status=%d, message=%s", e.StatusCode, e.Message)
}

// Unwrap maps the status onto a domain error so callers can use errors.Is
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case e.StatusCode == http.StatusForbidden:
		return domain.ErrForbidden
	case e.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound
	case e.StatusCode == http.StatusConflict:
		return domain.ErrConflict
	case e.StatusCode < 500:
		return domain.ErrInvalidInput
	default:
		return domain.ErrUpstream
	}
}
