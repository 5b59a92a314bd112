// Package extractor wraps the external extraction service that turns an
// opaque source URL into a playable stream, and that can also download and
// decode the stream in one step.
package extractor

import (
	"context"
	"errors"
	"fmt"
)

// Auth carries the credential hint handed to the extraction service.
type Auth struct {
	// Browser names the browser whose cookie store is used for
	// authentication, e.g. "chrome" or "firefox". Empty disables cookies.
	Browser string
}

// Resolved is the outcome of resolving a source.
type Resolved struct {
	// BaseName names the output directory and artifact.
	BaseName string
	// MediaURL is the playable resource, usually an HLS playlist.
	MediaURL string
	ID       string
	Title    string
}

// Service is the extraction capability consumed by the pipeline.
type Service interface {
	// Resolve identifies the playable stream behind source. Failures are
	// *ResolutionError.
	Resolve(ctx context.Context, source string, auth Auth) (Resolved, error)

	// AcquireDirect downloads and decodes source into exactly target. On
	// failure it returns a *DirectError and leaves nothing at target.
	AcquireDirect(ctx context.Context, source string, auth Auth, target string) error
}

// ResolutionError means the source could not be identified or authenticated.
type ResolutionError struct {
	Source string
	Err    error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %s: %v", e.Source, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// DirectError is a failed single-step acquisition.
type DirectError struct {
	ExitCode int
	Err      error
}

func (e *DirectError) Error() string {
	if e.ExitCode != 0 {
		return fmt.Sprintf("direct acquisition failed (exit %d): %v", e.ExitCode, e.Err)
	}
	return fmt.Sprintf("direct acquisition failed: %v", e.Err)
}

func (e *DirectError) Unwrap() error { return e.Err }

// ShouldFallback reports whether a direct acquisition error may be routed
// to chunked reconstruction. Cancellation and deadlines end the run instead.
func ShouldFallback(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
