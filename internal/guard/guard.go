// Package guard wraps calls to remote collaborators with a circuit breaker
// and a request rate limiter.
package guard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

// Settings configures a Guard. A zero RequestsPerMinute disables limiting.
type Settings struct {
	Name              string
	RequestsPerMinute int
	FailureRatio      float64
	MinRequests       uint32
	OpenTimeout       time.Duration
}

// ErrUnavailable is returned while the breaker rejects calls.
var ErrUnavailable = errors.New("service temporarily unavailable")

// Guard is safe for concurrent use.
type Guard struct {
	name    string
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

// New builds a guard. Unset settings fall back to trip after 3 requests with
// at least 60% failures, and probe again after a minute.
func New(s Settings, log *slog.Logger) *Guard {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.Name == "" {
		s.Name = "collaborator"
	}
	if s.FailureRatio <= 0 {
		s.FailureRatio = 0.6
	}
	if s.MinRequests == 0 {
		s.MinRequests = 3
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 60 * time.Second
	}
	g := &Guard{name: s.Name}
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Interval:    10 * time.Second,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= s.MinRequests && failureRatio >= s.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	if s.RequestsPerMinute > 0 {
		burst := s.RequestsPerMinute / 10
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(float64(s.RequestsPerMinute)/60.0), burst)
	}
	return g
}

// Call runs fn through g. fn receives a context carrying the guard's span
// so instrumented clients nest under it. A nil guard calls fn directly.
func Call[T any](ctx context.Context, g *Guard, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if g == nil {
		return fn(ctx)
	}
	ctx, span := otel.Tracer("paperpal/guard").Start(ctx, g.name+".call")
	defer span.End()
	span.SetAttributes(attribute.String("breaker.state", g.breaker.State().String()))

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			span.SetAttributes(attribute.Bool("rate_limited", true))
			span.SetStatus(codes.Error, err.Error())
			return zero, err
		}
	}
	out, err := g.breaker.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		span.SetAttributes(attribute.Bool("circuit_open", true))
		span.SetStatus(codes.Error, "circuit open")
		return zero, fmt.Errorf("%s: %w", g.name, ErrUnavailable)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return zero, err
	}
	v, _ := out.(T)
	return v, nil
}

// State reports the breaker state for status displays.
func (g *Guard) State() string {
	if g == nil {
		return "disabled"
	}
	return g.breaker.State().String()
}
