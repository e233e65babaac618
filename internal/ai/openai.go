package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	infraerrors "github.com/jonesrussell/finblog/infrastructure/errors"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultMaxTokens     = 4096
	defaultHTTPTimeout   = 60 * time.Second
)

// ClientConfig configures a provider client.
type ClientConfig struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration
}

// OpenAIClient speaks the OpenAI-compatible chat completions API.
type OpenAIClient struct {
	cfg        ClientConfig
	httpClient *http.Client
}

var _ Transformer = (*OpenAIClient)(nil)

// NewOpenAIClient creates a client. httpClient may be nil.
func NewOpenAIClient(cfg ClientConfig, httpClient *http.Client) *OpenAIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &OpenAIClient{cfg: cfg, httpClient: httpClient}
}

// Provider implements Transformer.
func (c *OpenAIClient) Provider() string { return ProviderOpenAI }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	Temperature    *float64          `json:"temperature,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
}

// Transform implements Transformer.
func (c *OpenAIClient) Transform(ctx context.Context, req Request) (*Response, error) {
	if c.cfg.APIKey == "" || c.cfg.Model == "" {
		return nil, &Error{Provider: ProviderOpenAI, Class: ClassAPIError, Message: "client misconfigured: api key and model are required"}
	}

	payload := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		MaxTokens:   firstPositive(req.MaxTokens, c.cfg.MaxTokens),
		Temperature: req.Temperature,
	}
	if req.JSON {
		payload.ResponseFormat = map[string]string{"type": "json_object"}
	}

	body, marshalErr := json.Marshal(payload)
	if marshalErr != nil {
		return nil, fmt.Errorf("marshal chat request: %w", marshalErr)
	}

	httpReq, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if reqErr != nil {
		return nil, fmt.Errorf("new request: %w", reqErr)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, doErr := c.httpClient.Do(httpReq)
	if doErr != nil {
		return nil, Classify(ProviderOpenAI, doErr)
	}
	defer resp.Body.Close()

	if httpErr := infraerrors.ParseHTTPError(resp); httpErr != nil {
		return nil, Classify(ProviderOpenAI, httpErr)
	}

	var decoded chatResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&decoded); decodeErr != nil {
		return nil, &Error{Provider: ProviderOpenAI, Class: ClassAPIError, Message: "undecodable response envelope", Err: decodeErr}
	}
	if len(decoded.Choices) == 0 {
		return nil, &Error{Provider: ProviderOpenAI, Class: ClassAPIError, Message: "response has no choices"}
	}

	return &Response{
		Text:         decoded.Choices[0].Message.Content,
		Model:        decoded.Model,
		InputTokens:  decoded.Usage.PromptTokens,
		OutputTokens: decoded.Usage.CompletionTokens,
	}, nil
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
