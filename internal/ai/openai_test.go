package ai_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/finblog/internal/ai"
)

func TestOpenAIClient_Transform(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		_ = json.NewDecoder(r.Body).Decode(&gotBody)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"gpt-test","choices":[{"message":{"role":"assistant","content":"{\"ok\":true}"}}],"usage":{"prompt_tokens":10,"completion_tokens":4}}`))
	}))
	t.Cleanup(srv.Close)

	client := ai.NewOpenAIClient(ai.ClientConfig{APIKey: "sk-test", Model: "gpt-test", BaseURL: srv.URL + "/"}, srv.Client())

	resp, err := client.Transform(t.Context(), ai.Request{System: "sys", User: "usr", JSON: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, resp.Text)
	assert.Equal(t, int64(10), resp.InputTokens)
	assert.Equal(t, int64(4), resp.OutputTokens)

	assert.Equal(t, "gpt-test", gotBody["model"])
	assert.Equal(t, map[string]any{"type": "json_object"}, gotBody["response_format"])
	messages, ok := gotBody["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, messages, 2)
}

func TestOpenAIClient_TransformErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		status int
		body   string
		want   ai.Class
	}{
		{
			name:   "quota",
			status: http.StatusTooManyRequests,
			body:   `{"error":{"message":"You exceeded your current quota","type":"insufficient_quota"}}`,
			want:   ai.ClassQuotaExceeded,
		},
		{
			name:   "rate limit",
			status: http.StatusTooManyRequests,
			body:   `{"error":{"message":"Rate limit reached","type":"requests"}}`,
			want:   ai.ClassRateLimit,
		},
		{
			name:   "server error",
			status: http.StatusBadGateway,
			body:   `upstream down`,
			want:   ai.ClassAPIError,
		},
		{
			name:   "no choices",
			status: http.StatusOK,
			body:   `{"choices":[]}`,
			want:   ai.ClassAPIError,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			t.Cleanup(srv.Close)

			client := ai.NewOpenAIClient(ai.ClientConfig{APIKey: "k", Model: "m", BaseURL: srv.URL}, srv.Client())
			_, err := client.Transform(t.Context(), ai.Request{User: "x"})

			var aiErr *ai.Error
			require.True(t, errors.As(err, &aiErr), "Transform() error = %v", err)
			assert.Equal(t, tc.want, aiErr.Class)
			assert.Equal(t, ai.ProviderOpenAI, aiErr.Provider)
		})
	}
}

func TestOpenAIClient_Misconfigured(t *testing.T) {
	t.Parallel()

	client := ai.NewOpenAIClient(ai.ClientConfig{}, nil)
	_, err := client.Transform(t.Context(), ai.Request{User: "x"})

	var aiErr *ai.Error
	require.True(t, errors.As(err, &aiErr))
	assert.Equal(t, "OPENAI_API_ERROR", aiErr.Code())
}
