package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/jonesrussell/finblog/infrastructure/circuitbreaker"
	infraerrors "github.com/jonesrussell/finblog/infrastructure/errors"
)

// Class is the failure category of a transform call.
type Class string

const (
	// ClassQuotaExceeded is a billing or usage cap; not retryable soon.
	ClassQuotaExceeded Class = "QUOTA_EXCEEDED"
	// ClassRateLimit is retryable after backoff.
	ClassRateLimit Class = "RATE_LIMIT"
	// ClassAPIError is a generic upstream fault, including timeouts.
	ClassAPIError Class = "API_ERROR"
	// ClassParseError is a violated structured-output contract.
	ClassParseError Class = "PARSE_ERROR"
	ClassUnknown    Class = "UNKNOWN"
)

// Retryable reports whether an automated retry is advisable.
func (c Class) Retryable() bool {
	return c == ClassRateLimit || c == ClassAPIError
}

// Error is a classified transform failure.
type Error struct {
	Provider   string
	Class      Class
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (%d): %s", e.Provider, e.Class, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Class, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Code is the persisted error code, e.g. OPENAI_PARSE_ERROR.
func (e *Error) Code() string {
	return strings.ToUpper(e.Provider) + "_" + string(e.Class)
}

// NewParseError reports a response that violates the expected contract.
func NewParseError(provider, message string, err error) *Error {
	return &Error{Provider: provider, Class: ClassParseError, Message: message, Err: err}
}

// AsError returns err as *Error, classifying it for provider if needed.
func AsError(provider string, err error) *Error {
	var aiErr *Error
	if errors.As(err, &aiErr) {
		return aiErr
	}
	return Classify(provider, err)
}

// Classify maps a raw provider failure to an *Error.
func Classify(provider string, err error) *Error {
	if err == nil {
		return nil
	}

	out := &Error{Provider: provider, Class: ClassUnknown, Message: err.Error(), Err: err}

	var httpErr *infraerrors.HTTPError
	if errors.As(err, &httpErr) {
		out.StatusCode = httpErr.StatusCode
		out.Message = httpErr.Message
		out.Class = classifyStatus(httpErr.StatusCode, httpErr.Type+" "+httpErr.Message)
		return out
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, circuitbreaker.ErrCircuitOpen):
		out.Class = ClassAPIError
	case errors.As(err, &netErr):
		out.Class = ClassAPIError
	default:
		out.Class = classifyMessage(err.Error())
	}
	return out
}

// ClassifyStatus maps an HTTP status and provider detail text.
func ClassifyStatus(status int, detail string) Class {
	return classifyStatus(status, detail)
}

func classifyStatus(status int, detail string) Class {
	lower := strings.ToLower(detail)
	switch {
	case status == http.StatusPaymentRequired, isQuotaText(lower):
		return ClassQuotaExceeded
	case status == http.StatusTooManyRequests:
		return ClassRateLimit
	case status >= http.StatusBadRequest:
		return ClassAPIError
	default:
		return ClassUnknown
	}
}

func classifyMessage(msg string) Class {
	lower := strings.ToLower(msg)
	switch {
	case isQuotaText(lower):
		return ClassQuotaExceeded
	case strings.Contains(lower, "rate limit"), strings.Contains(lower, "too many requests"):
		return ClassRateLimit
	case strings.Contains(lower, "timeout"), strings.Contains(lower, "connection"):
		return ClassAPIError
	default:
		return ClassUnknown
	}
}

func isQuotaText(lower string) bool {
	return strings.Contains(lower, "insufficient_quota") ||
		strings.Contains(lower, "exceeded your current quota") ||
		strings.Contains(lower, "billing") ||
		strings.Contains(lower, "credit balance")
}
