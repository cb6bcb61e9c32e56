package cma

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// APIError is a non-2xx response from the management API
type APIError struct {
	Status     int            `json:"-"`
	StatusText string         `json:"-"`
	Message    string         `json:"error_message"`
	ErrorCode  int            `json:"error_code"`
	Errors     map[string]any `json:"errors,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "cma: %d", e.Status)
	if e.StatusText != "" {
		b.WriteString(" " + e.StatusText)
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}
	if details := e.Details(); details != "" {
		b.WriteString(" (" + details + ")")
	}
	return b.String()
}

// Details flattens the per-field errors into "field: message" pairs
func (e *APIError) Details() string {
	if len(e.Errors) == 0 {
		return ""
	}
	keys := make([]string, 0, len(e.Errors))
	for k := range e.Errors {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+flatten(e.Errors[k]))
	}
	return strings.Join(parts, "; ")
}

// IsConflict reports whether the error says the entity already exists
func (e *APIError) IsConflict() bool {
	if e.Status == 409 {
		return true
	}
	text := strings.ToLower(e.Message + " " + e.Details())
	return strings.Contains(text, "already exists") ||
		strings.Contains(text, "already installed") ||
		strings.Contains(text, "not unique")
}

// Retryable reports whether the request may succeed if repeated
func (e *APIError) Retryable() bool {
	return e.Status == 429 || e.Status >= 500
}

// IsConflict reports whether err is an APIError for an existing entity
func IsConflict(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.IsConflict()
}

// AsAPIError unwraps an APIError
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}

func parseAPIError(status int, statusText string, body []byte) *APIError {
	apiErr := &APIError{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, apiErr); err != nil {
			apiErr.Message = strings.TrimSpace(string(body))
		}
	}
	if apiErr.Message == "" {
		// apps API
		var alt struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if json.Unmarshal(body, &alt) == nil {
			apiErr.Message = alt.Message
			if apiErr.Message == "" {
				apiErr.Message = alt.Error
			}
		}
	}
	apiErr.Status = status
	apiErr.StatusText = statusText
	return apiErr
}

func flatten(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			parts = append(parts, flatten(item))
		}
		return strings.Join(parts, ", ")
	default:
		data, _ := json.Marshal(t)
		return string(data)
	}
}
