package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-sonnet-4-5"

// AnthropicClient calls the Messages API through the official SDK.
type AnthropicClient struct {
	client    anthropic.Client
	model     string
	maxTokens int
}

var _ Transformer = (*AnthropicClient)(nil)

// NewAnthropicClient creates a client. SDK retries are disabled so that
// failures surface to the pipeline for classification and resume.
func NewAnthropicClient(cfg ClientConfig) *AnthropicClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	if cfg.Model == "" {
		cfg.Model = defaultAnthropicModel
	}

	return &AnthropicClient{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: firstPositive(cfg.MaxTokens, defaultMaxTokens),
	}
}

// Provider implements Transformer.
func (c *AnthropicClient) Provider() string { return ProviderAnthropic }

// Transform implements Transformer.
func (c *AnthropicClient) Transform(ctx context.Context, req Request) (*Response, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(firstPositive(req.MaxTokens, c.maxTokens)),
		System:    []anthropic.TextBlockParam{{Text: req.System}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classifyAnthropic(err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &Response{
		Text:         text.String(),
		Model:        string(msg.Model),
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
	}, nil
}

func classifyAnthropic(err error) *Error {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return Classify(ProviderAnthropic, err)
	}

	detail := apiErr.Error()
	class := classifyStatus(apiErr.StatusCode, detail)
	// 529 overloaded is transient capacity, like a rate limit.
	if apiErr.StatusCode == 529 {
		class = ClassRateLimit
	}
	return &Error{
		Provider:   ProviderAnthropic,
		Class:      class,
		StatusCode: apiErr.StatusCode,
		Message:    detail,
		Err:        err,
	}
}
