package fetcher

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrPlaylistTooLarge is returned for a playlist body over the size cap.
var ErrPlaylistTooLarge = errors.New("playlist too large")

// PlaylistFetchError is returned when the playlist itself cannot be retrieved.
type PlaylistFetchError struct {
	URL string
	Err error
}

func (e *PlaylistFetchError) Error() string {
	return fmt.Sprintf("fetch playlist %s: %v", redactURL(e.URL), e.Err)
}

func (e *PlaylistFetchError) Unwrap() error { return e.Err }

// SegmentFailure describes one segment that exhausted its retry budget.
type SegmentFailure struct {
	URL      string
	Attempts int
	Err      error
}

// SegmentFetchError is returned once a batch has settled and at least one
// segment could not be fetched.
type SegmentFetchError struct {
	Total    int
	Failures []SegmentFailure
}

func (e *SegmentFetchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d segments failed", len(e.Failures), e.Total)
	for i, f := range e.Failures {
		if i == 3 {
			fmt.Fprintf(&b, "; and %d more", len(e.Failures)-i)
			break
		}
		fmt.Fprintf(&b, "; %s after %d attempts: %v", redactURL(f.URL), f.Attempts, f.Err)
	}
	return b.String()
}

// StatusError is an unexpected HTTP status from the origin.
type StatusError struct {
	StatusCode int
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
}

func redactURL(s string) string {
	if i := strings.Index(s, "?"); i >= 0 {
		return s[:i] + "?[redacted]"
	}
	return s
}
