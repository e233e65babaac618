//nolint:testpackage // Tests drive the breaker clock directly
package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errUpstream = errors.New("upstream 503")

func TestBreaker_OpensAndRecovers(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	b := New(Config{FailureThreshold: 2, Timeout: time.Minute})
	b.now = func() time.Time { return now }

	fail := func(context.Context) error { return errUpstream }
	ok := func(context.Context) error { return nil }

	for range 2 {
		if err := b.Execute(t.Context(), fail); !errors.Is(err, errUpstream) {
			t.Fatalf("Execute() error = %v, want upstream error", err)
		}
	}
	if b.State() != StateOpen {
		t.Fatalf("State() = %v, want open", b.State())
	}

	called := false
	err := b.Execute(t.Context(), func(context.Context) error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) || called {
		t.Fatalf("Execute() while open error = %v called = %v", err, called)
	}

	now = now.Add(2 * time.Minute)
	if err := b.Execute(t.Context(), ok); err != nil {
		t.Fatalf("Execute() half-open error = %v", err)
	}
	if b.State() != StateClosed {
		t.Errorf("State() = %v, want closed", b.State())
	}
}

func TestBreaker_IgnoresUncountedErrors(t *testing.T) {
	errParse := errors.New("parse")
	b := New(Config{FailureThreshold: 1, Counts: func(err error) bool { return !errors.Is(err, errParse) }})

	_ = b.Execute(t.Context(), func(context.Context) error { return errParse })
	if b.State() != StateClosed {
		t.Errorf("State() = %v, want closed", b.State())
	}
}
