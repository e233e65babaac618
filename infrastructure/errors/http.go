// Package errors turns failed upstream HTTP responses into typed errors.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	// MinErrorStatusCode is the lowest status treated as a failure.
	MinErrorStatusCode = 400

	maxBodyBytes = 64 << 10
)

// HTTPError is a non-2xx/3xx upstream response.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       string
	Message    string
	// Type is the provider's error type or code when the body carries one.
	Type string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP error (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("HTTP error: %d %s", e.StatusCode, e.Status)
}

// ParseHTTPError reads resp and returns an *HTTPError, or nil for success
// statuses. The caller still owns resp.Body.
func ParseHTTPError(resp *http.Response) error {
	if resp.StatusCode < MinErrorStatusCode {
		return nil
	}

	bodyBytes, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if readErr != nil {
		return &HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Message:    "failed to read error body: " + readErr.Error(),
		}
	}
	body := string(bodyBytes)
	httpErr := &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status, Body: body, Message: strings.TrimSpace(body)}

	// Both {"error":"msg"} and {"error":{"message":..,"type":..,"code":..}}
	// appear in the wild.
	var envelope struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if json.Unmarshal(bodyBytes, &envelope) != nil {
		return httpErr
	}
	if envelope.Message != "" {
		httpErr.Message = envelope.Message
	}
	if len(envelope.Error) == 0 {
		return httpErr
	}

	var plain string
	if json.Unmarshal(envelope.Error, &plain) == nil && plain != "" {
		httpErr.Message = plain
		return httpErr
	}

	var detail struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	}
	if json.Unmarshal(envelope.Error, &detail) == nil {
		if detail.Message != "" {
			httpErr.Message = detail.Message
		}
		httpErr.Type = detail.Type
		if code, ok := detail.Code.(string); ok && code != "" {
			httpErr.Type = code
		}
	}
	return httpErr
}

// StatusCode returns the status of a wrapped *HTTPError.
func StatusCode(err error) (int, bool) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode, true
	}
	return 0, false
}
