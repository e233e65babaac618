package ai

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/jonesrussell/finblog/infrastructure/circuitbreaker"
	infralogger "github.com/jonesrussell/finblog/infrastructure/logger"
	"github.com/jonesrussell/finblog/internal/telemetry"
)

const classOK = "OK"

// GuardConfig controls pacing and fail-fast behaviour.
type GuardConfig struct {
	// RequestsPerMinute paces outgoing calls. Zero disables pacing.
	RequestsPerMinute int
	FailureThreshold  int
	OpenTimeout       time.Duration
}

// Guard wraps a Transformer with a rate limiter, a circuit breaker and
// request metrics. Parse errors never trip the breaker.
type Guard struct {
	inner   Transformer
	limiter *rate.Limiter
	breaker *circuitbreaker.Breaker
	metrics *telemetry.Metrics
	log     infralogger.Logger
}

var _ Transformer = (*Guard)(nil)

// NewGuard wraps inner. metrics may be nil.
func NewGuard(inner Transformer, cfg GuardConfig, metrics *telemetry.Metrics, log infralogger.Logger) *Guard {
	g := &Guard{inner: inner, metrics: metrics, log: log}
	if cfg.RequestsPerMinute > 0 {
		g.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	g.breaker = circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: cfg.FailureThreshold,
		Timeout:          cfg.OpenTimeout,
		Counts:           countsAsUpstreamFailure,
		OnStateChange: func(from, to circuitbreaker.State) {
			log.Warn("AI circuit breaker state changed",
				infralogger.String("provider", inner.Provider()),
				infralogger.String("from", from.String()),
				infralogger.String("to", to.String()),
			)
		},
	})
	return g
}

// Provider implements Transformer.
func (g *Guard) Provider() string { return g.inner.Provider() }

// Transform implements Transformer.
func (g *Guard) Transform(ctx context.Context, req Request) (*Response, error) {
	provider := g.inner.Provider()

	if g.limiter != nil {
		if waitErr := g.limiter.Wait(ctx); waitErr != nil {
			aiErr := &Error{Provider: provider, Class: ClassAPIError, Message: "rate limiter wait aborted", Err: waitErr}
			g.metrics.RecordAIRequest(provider, string(aiErr.Class))
			return nil, aiErr
		}
	}

	var resp *Response
	execErr := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		resp, err = g.inner.Transform(ctx, req)
		return err
	})
	if execErr != nil {
		aiErr := AsError(provider, execErr)
		if errors.Is(execErr, circuitbreaker.ErrCircuitOpen) {
			aiErr.Message = execErr.Error()
		}
		g.metrics.RecordAIRequest(provider, string(aiErr.Class))
		return nil, aiErr
	}

	g.metrics.RecordAIRequest(provider, classOK)
	return resp, nil
}

func countsAsUpstreamFailure(err error) bool {
	var aiErr *Error
	if errors.As(err, &aiErr) {
		return aiErr.Class != ClassParseError
	}
	return !errors.Is(err, context.Canceled)
}
