package ai_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	infralogger "github.com/jonesrussell/finblog/infrastructure/logger"
	"github.com/jonesrussell/finblog/internal/ai"
	"github.com/jonesrussell/finblog/internal/telemetry"
)

type stubTransformer struct {
	calls int
	fn    func(call int) (*ai.Response, error)
}

func (s *stubTransformer) Provider() string { return "stub" }

func (s *stubTransformer) Transform(_ context.Context, _ ai.Request) (*ai.Response, error) {
	s.calls++
	return s.fn(s.calls)
}

func TestGuard_OpensAfterUpstreamFailures(t *testing.T) {
	t.Parallel()

	stub := &stubTransformer{fn: func(int) (*ai.Response, error) {
		return nil, &ai.Error{Provider: "stub", Class: ai.ClassAPIError, Message: "down"}
	}}
	metrics := telemetry.New()
	guard := ai.NewGuard(stub, ai.GuardConfig{FailureThreshold: 2, OpenTimeout: time.Hour}, metrics, infralogger.NewNop())

	for range 2 {
		if _, err := guard.Transform(t.Context(), ai.Request{}); err == nil {
			t.Fatal("Transform() expected error")
		}
	}

	_, err := guard.Transform(t.Context(), ai.Request{})
	var aiErr *ai.Error
	if !errors.As(err, &aiErr) {
		t.Fatalf("Transform() error = %v, want *ai.Error", err)
	}
	if aiErr.Class != ai.ClassAPIError {
		t.Errorf("open circuit class = %s, want API_ERROR", aiErr.Class)
	}
	if stub.calls != 2 {
		t.Errorf("inner calls = %d, want 2 (open circuit must not call through)", stub.calls)
	}
	if got := testutil.ToFloat64(metrics.AIRequests.WithLabelValues("stub", "API_ERROR")); got != 3 {
		t.Errorf("api error metric = %v, want 3", got)
	}
}

func TestGuard_ParseErrorsDoNotTrip(t *testing.T) {
	t.Parallel()

	stub := &stubTransformer{fn: func(call int) (*ai.Response, error) {
		if call <= 3 {
			return nil, ai.NewParseError("stub", "bad", nil)
		}
		return &ai.Response{Text: "ok"}, nil
	}}
	guard := ai.NewGuard(stub, ai.GuardConfig{FailureThreshold: 1, OpenTimeout: time.Hour}, nil, infralogger.NewNop())

	for range 3 {
		_, _ = guard.Transform(t.Context(), ai.Request{})
	}
	resp, err := guard.Transform(t.Context(), ai.Request{})
	if err != nil {
		t.Fatalf("Transform() error = %v", err)
	}
	if resp.Text != "ok" {
		t.Errorf("Text = %q, want ok", resp.Text)
	}
}
