// Package ai calls external text-transform providers and classifies their
// failures.
package ai

import "context"

// Provider names used in error codes.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Request is one transform call.
type Request struct {
	System string
	User   string
	// JSON asks the provider for a JSON object response where supported.
	JSON        bool
	MaxTokens   int
	Temperature *float64
}

// Response is the provider's text output.
type Response struct {
	Text         string
	Model        string
	InputTokens  int64
	OutputTokens int64
}

// Transformer sends a request to a provider. Errors are *Error.
type Transformer interface {
	Transform(ctx context.Context, req Request) (*Response, error)
	Provider() string
}
