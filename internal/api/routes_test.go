package api_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/finblog/infrastructure/jwt"
	"github.com/jonesrussell/finblog/internal/domain"
	"github.com/jonesrussell/finblog/internal/publish"
	"github.com/jonesrussell/finblog/internal/rewrite"
)

type requestOpts struct {
	host   string
	token  string
	header map[string]string
	body   any
}

func (e *testEnv) do(t *testing.T, method, path string, opts requestOpts) (int, map[string]any) {
	t.Helper()

	var body io.Reader
	if opts.body != nil {
		raw, err := json.Marshal(opts.body)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(t.Context(), method, path, body)
	require.NoError(t, err)
	req.Host = opts.host
	if req.Host == "" {
		req.Host = mainHost
	}
	if opts.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if opts.token != "" {
		req.Header.Set("Authorization", "Bearer "+opts.token)
	}
	for k, v := range opts.header {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w.Code, out
}

func operatorToken(t *testing.T) string {
	t.Helper()
	token, err := jwt.GenerateToken(testJWTSecret, "alice", time.Hour)
	require.NoError(t, err)
	return token
}

func TestCronAuth(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		secret     string
		header     map[string]string
		wantStatus int
	}{
		{"missing secret", testCronSecret, nil, http.StatusUnauthorized},
		{"wrong secret", testCronSecret, map[string]string{"X-Cron-Secret": "nope"}, http.StatusUnauthorized},
		{"header secret", testCronSecret, map[string]string{"X-Cron-Secret": testCronSecret}, http.StatusOK},
		{"bearer secret", testCronSecret, map[string]string{"Authorization": "Bearer " + testCronSecret}, http.StatusOK},
		{"unconfigured secret", "", map[string]string{"X-Cron-Secret": ""}, http.StatusUnauthorized},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t, tc.secret)
			status, body := env.do(t, http.MethodPost, "/api/v1/cron/fetch-news", requestOpts{header: tc.header})

			assert.Equal(t, tc.wantStatus, status)
			if tc.wantStatus == http.StatusUnauthorized {
				assert.Zero(t, env.svc.fetchCalls, "no work before auth")
				assert.Equal(t, false, body["success"])
				return
			}
			assert.Equal(t, 1, env.svc.fetchCalls)
			assert.Equal(t, true, body["success"])
		})
	}
}

func TestCronGenerateDrafts_Limit(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, testCronSecret)
	auth := map[string]string{"X-Cron-Secret": testCronSecret}

	status, _ := env.do(t, http.MethodGet, "/api/v1/cron/generate-drafts", requestOpts{header: auth})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 5, env.svc.generateLimit, "configured batch size")

	status, _ = env.do(t, http.MethodGet, "/api/v1/cron/generate-drafts?limit=2", requestOpts{header: auth})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 2, env.svc.generateLimit)

	status, _ = env.do(t, http.MethodGet, "/api/v1/cron/generate-drafts?limit=x", requestOpts{header: auth})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAdmin_Guards(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, testCronSecret)

	status, _ := env.do(t, http.MethodGet, "/api/v1/admin/drafts", requestOpts{})
	assert.Equal(t, http.StatusUnauthorized, status, "missing jwt")

	status, body := env.do(t, http.MethodGet, "/api/v1/admin/drafts", requestOpts{host: partnerHost, token: operatorToken(t)})
	assert.Equal(t, http.StatusNotFound, status, "admin hidden on sub-tenants")
	assert.Equal(t, "not found", body["error"])

	status, _ = env.do(t, http.MethodGet, "/api/v1/admin/drafts", requestOpts{token: operatorToken(t)})
	assert.Equal(t, http.StatusOK, status)
}

func TestAdmin_ErrorMapping(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		err        error
		wantStatus int
		wantStage  string
		wantCode   string
	}{
		{"not found", fmt.Errorf("load: %w", domain.ErrNotFound), http.StatusNotFound, "", ""},
		{"locked", domain.ErrDraftLocked, http.StatusConflict, "", ""},
		{"invalid transition", domain.ErrInvalidTransition, http.StatusConflict, "", ""},
		{
			"upstream failure",
			&rewrite.StageError{Step: domain.StepColumnist, Code: "OPENAI_PARSE_ERROR", Err: errors.New("bad json")},
			http.StatusBadGateway, "COLUMNIST", "OPENAI_PARSE_ERROR",
		},
		{
			"persistence failure",
			&rewrite.StageError{Step: domain.StepSave, Code: domain.ErrorCodeDB, Err: errors.New("conn reset")},
			http.StatusInternalServerError, "SAVE", domain.ErrorCodeDB,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			env := newTestEnv(t, testCronSecret)
			env.svc.rewriteFunc = func(string) (*rewrite.Result, error) { return nil, tc.err }

			status, body := env.do(t, http.MethodPost, "/api/v1/admin/drafts/d1/rewrite", requestOpts{token: operatorToken(t)})

			assert.Equal(t, tc.wantStatus, status)
			assert.Equal(t, false, body["success"])
			assert.NotEmpty(t, body["error"])
			if tc.wantStage == "" {
				assert.NotContains(t, body, "error_stage")
				return
			}
			assert.Equal(t, tc.wantStage, body["error_stage"])
			assert.Equal(t, tc.wantCode, body["error_code"])
		})
	}
}

func TestAdmin_RewriteStep(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, testCronSecret)
	token := operatorToken(t)

	status, body := env.do(t, http.MethodPost, "/api/v1/admin/drafts/d1/rewrite/editor", requestOpts{token: token})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, domain.StepEditor, env.svc.rewriteStepArg)
	stats, ok := body["stats"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, string(domain.StageEditorDone), stats["stage"])

	status, _ = env.do(t, http.MethodPost, "/api/v1/admin/drafts/d1/rewrite/publish", requestOpts{token: token})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAdmin_Approve(t *testing.T) {
	t.Parallel()

	t.Run("defaults site and reviewer", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, testCronSecret)
		var got publish.ApproveRequest
		env.svc.approveFunc = func(req publish.ApproveRequest) (*publish.ApproveResult, error) {
			got = req
			return &publish.ApproveResult{PostID: "p1", Slug: "rates-up"}, nil
		}

		status, body := env.do(t, http.MethodPost, "/api/v1/admin/drafts/d1/approve", requestOpts{token: operatorToken(t)})

		assert.Equal(t, http.StatusCreated, status)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "d1", got.DraftID)
		assert.Equal(t, "main", got.SiteID)
		assert.Equal(t, "alice", got.Reviewer)
	})

	t.Run("explicit site", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, testCronSecret)
		var got publish.ApproveRequest
		env.svc.approveFunc = func(req publish.ApproveRequest) (*publish.ApproveResult, error) {
			got = req
			return &publish.ApproveResult{PostID: "p1"}, nil
		}

		status, _ := env.do(t, http.MethodPost, "/api/v1/admin/drafts/d1/approve", requestOpts{
			token: operatorToken(t),
			body:  map[string]any{"site_id": "partner"},
		})

		assert.Equal(t, http.StatusCreated, status)
		assert.Equal(t, "partner", got.SiteID)
	})

	t.Run("already approved echoes post", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, testCronSecret)
		env.svc.approveFunc = func(publish.ApproveRequest) (*publish.ApproveResult, error) {
			return &publish.ApproveResult{PostID: "p-old", AlreadyApproved: true},
				fmt.Errorf("draft d1: %w", domain.ErrAlreadyApproved)
		}

		status, body := env.do(t, http.MethodPost, "/api/v1/admin/drafts/d1/approve", requestOpts{token: operatorToken(t)})

		assert.Equal(t, http.StatusConflict, status)
		assert.Equal(t, "p-old", body["post_id"])
	})

	t.Run("slug conflict", func(t *testing.T) {
		t.Parallel()

		env := newTestEnv(t, testCronSecret)
		env.svc.approveFunc = func(publish.ApproveRequest) (*publish.ApproveResult, error) {
			return nil, fmt.Errorf("approve draft d1: %w", domain.ErrSlugConflict)
		}

		status, body := env.do(t, http.MethodPost, "/api/v1/admin/drafts/d1/approve", requestOpts{token: operatorToken(t)})

		assert.Equal(t, http.StatusConflict, status)
		assert.NotContains(t, body, "post_id")
	})
}

func TestAdmin_FetchAndNews(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, testCronSecret)
	token := operatorToken(t)

	status, _ := env.do(t, http.MethodPost, "/api/v1/admin/fetch?category=crypto", requestOpts{token: token})
	assert.Equal(t, http.StatusBadRequest, status, "unknown category")

	status, body := env.do(t, http.MethodPost, "/api/v1/admin/fetch?category=personal-finance", requestOpts{token: token})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])

	status, body = env.do(t, http.MethodPost, "/api/v1/admin/news/delete", requestOpts{
		token: token,
		body:  map[string]any{"ids": []string{"a", "b"}},
	})
	assert.Equal(t, http.StatusOK, status)
	assert.InDelta(t, 2, body["deleted"], 0)
	assert.Equal(t, []string{"a", "b"}, env.svc.deleteIDs)

	status, _ = env.do(t, http.MethodPost, "/api/v1/admin/news/delete", requestOpts{
		token: token,
		body:  map[string]any{"ids": []string{}},
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(t, http.MethodPatch, "/api/v1/admin/news/a", requestOpts{token: token, body: map[string]any{}})
	assert.Equal(t, http.StatusBadRequest, status, "excluded is required")

	status, body = env.do(t, http.MethodPost, "/api/v1/admin/news/n1/draft", requestOpts{token: token})
	assert.Equal(t, http.StatusCreated, status)
	d, ok := body["draft"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "d-n1", d["id"])
}

func TestPublic_TenantIsolation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, testCronSecret)

	status, body := env.do(t, http.MethodGet, "/api/v1/public/posts/rates-up", requestOpts{host: partnerHost})
	require.Equal(t, http.StatusOK, status)
	post, ok := body["post"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "p-partner", post["id"])

	status, body = env.do(t, http.MethodGet, "/api/v1/public/posts", requestOpts{host: "www.example.com:8443"})
	require.Equal(t, http.StatusOK, status)
	assert.InDelta(t, 1, body["count"], 0)

	status, _ = env.do(t, http.MethodGet, "/api/v1/public/posts/missing", requestOpts{})
	assert.Equal(t, http.StatusNotFound, status)

	status, body = env.do(t, http.MethodGet, "/api/v1/public/site", requestOpts{host: "unknown.org"})
	require.Equal(t, http.StatusOK, status)
	site, ok := body["site"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "main", site["id"], "unknown hosts fall back to the main site")
}

func TestPublic_QuotesAndSearch(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, testCronSecret)

	status, body := env.do(t, http.MethodGet, "/api/v1/public/quotes", requestOpts{})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])

	status, _ = env.do(t, http.MethodGet, "/api/v1/public/search", requestOpts{})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = env.do(t, http.MethodGet, "/api/v1/public/search?q=rates", requestOpts{host: partnerHost})
	assert.Equal(t, http.StatusOK, status)
	assert.InDelta(t, 1, body["count"], 0)
	assert.Equal(t, "partner", env.searcher.siteID)
}
