package guard

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestCall_PassesThrough(t *testing.T) {
	g := New(Settings{Name: "test"}, nil)
	got, err := Call(context.Background(), g, func(context.Context) (string, error) { return "ok", nil })
	if err != nil || got != "ok" {
		t.Fatalf("Call = %q, %v", got, err)
	}
}

func TestCall_NilGuard(t *testing.T) {
	got, err := Call(context.Background(), nil, func(context.Context) (int, error) { return 7, nil })
	if err != nil || got != 7 {
		t.Fatalf("Call = %d, %v", got, err)
	}
	var g *Guard
	if g.State() != "disabled" {
		t.Fatalf("unexpected state %s", g.State())
	}
}

func TestCall_TripsAfterFailures(t *testing.T) {
	g := New(Settings{Name: "test", MinRequests: 3, FailureRatio: 0.5}, nil)
	boom := errors.New("boom")
	calls := 0
	fail := func(context.Context) (int, error) { calls++; return 0, boom }
	for i := 0; i < 3; i++ {
		if _, err := Call(context.Background(), g, fail); !errors.Is(err, boom) {
			t.Fatalf("call %d: expected boom, got %v", i, err)
		}
	}
	_, err := Call(context.Background(), g, fail)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable once open, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("open breaker must not call through, calls=%d", calls)
	}
	if g.State() != "open" {
		t.Fatalf("expected open state, got %s", g.State())
	}
}

func TestCall_LimiterHonorsContext(t *testing.T) {
	g := New(Settings{Name: "test", RequestsPerMinute: 1}, nil)
	if _, err := Call(context.Background(), g, func(context.Context) (int, error) { return 1, nil }); err != nil {
		t.Fatalf("first call: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Call(ctx, g, func(context.Context) (int, error) { return 1, nil }); err == nil {
		t.Fatalf("expected limiter wait to fail on cancelled context")
	}
}

func TestRetry_StopsOnSuccess(t *testing.T) {
	transient := errors.New("transient")
	calls := 0
	got, err := Retry(context.Background(), 3, func(err error) bool { return errors.Is(err, transient) }, func() (string, error) {
		calls++
		if calls < 2 {
			return "", transient
		}
		return "done", nil
	})
	if err != nil || got != "done" || calls != 2 {
		t.Fatalf("Retry = %q, %v after %d calls", got, err, calls)
	}
}

func TestRetry_PermanentErrorNotRetried(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0
	_, err := Retry(context.Background(), 3, func(error) bool { return false }, func() (int, error) {
		calls++
		return 0, permanent
	})
	if !errors.Is(err, permanent) || calls != 1 {
		t.Fatalf("expected one call with permanent error, got %d calls, %v", calls, err)
	}
}

func TestRetryableStatus(t *testing.T) {
	for code, want := range map[int]bool{429: true, 500: true, 503: true, 400: false, 404: false} {
		if RetryableStatus(code) != want {
			t.Errorf("RetryableStatus(%d) != %v", code, want)
		}
	}
}

var guardSpanID = trace.SpanID{0, 0, 0, 0, 0, 0, 0, 2}

// fixedTracerProvider hands out spans with a known span id.
type fixedTracerProvider struct{ noop.TracerProvider }

func (fixedTracerProvider) Tracer(string, ...trace.TracerOption) trace.Tracer { return fixedTracer{} }

type fixedTracer struct{ noop.Tracer }

func (fixedTracer) Start(ctx context.Context, _ string, _ ...trace.SpanStartOption) (context.Context, trace.Span) {
	s := fixedSpan{sc: trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1},
		SpanID:     guardSpanID,
		TraceFlags: trace.FlagsSampled,
	})}
	return trace.ContextWithSpan(ctx, s), s
}

type fixedSpan struct {
	noop.Span
	sc trace.SpanContext
}

func (s fixedSpan) SpanContext() trace.SpanContext { return s.sc }

func TestCall_PassesSpanContext(t *testing.T) {
	otel.SetTracerProvider(fixedTracerProvider{})
	g := New(Settings{Name: "test"}, nil)
	got, err := Call(context.Background(), g, func(ctx context.Context) (trace.SpanID, error) {
		return trace.SpanContextFromContext(ctx).SpanID(), nil
	})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got != guardSpanID {
		t.Fatalf("wrapped call should run under the guard span, got span id %s", got)
	}
}
