package fetcher

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"
)

func (c Config) retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrPlaylistTooLarge) {
		return false
	}
	// Local filesystem failures do not improve with another request.
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		for _, code := range c.RetryStatusCodes {
			if statusErr.StatusCode == code {
				return true
			}
		}
		return false
	}
	return true
}

// delay returns how long to wait before the next attempt, honoring a
// Retry-After hint that exceeds the computed backoff.
func (c Config) delay(attempt int, err error) time.Duration {
	d := c.backoffFor(attempt)
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.RetryAfter > d {
		d = statusErr.RetryAfter
	}
	return d
}

func waitBackoff(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(raw string) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		if seconds < 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(raw); err == nil {
		if d := time.Until(when); d > 0 {
			return d
		}
	}
	return 0
}
