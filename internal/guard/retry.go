package guard

import (
	"context"
	"net/http"
	"time"
)

// Retry calls fn up to attempts+1 times while shouldRetry accepts the error,
// backing off exponentially between tries.
func Retry[T any](ctx context.Context, attempts int, shouldRetry func(error) bool, fn func() (T, error)) (T, error) {
	var (
		out T
		err error
	)
	for attempt := 0; attempt <= attempts; attempt++ {
		out, err = fn()
		if err == nil || !shouldRetry(err) || attempt == attempts {
			break
		}
		if werr := wait(ctx, retryDelay(attempt)); werr != nil {
			return out, werr
		}
	}
	return out, err
}

// RetryableStatus reports whether an HTTP status is worth retrying.
func RetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	// exponential backoff capped at 5s
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}
