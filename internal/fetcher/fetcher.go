// Package fetcher retrieves HLS playlists and their media segments over HTTP.
// Segments are fetched by a fixed pool of workers; every segment is an
// independent unit with its own retry budget, and failures are collected
// until the whole batch has settled.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"hls-reconstructor/internal/playlist"

	"golang.org/x/time/rate"
)

// maxPlaylistBytes caps the size of a playlist body.
const maxPlaylistBytes = 16 << 20

// Observer receives per-segment events. Implementations must be safe for
// concurrent use.
type Observer interface {
	SegmentFetched(bytes int64)
	SegmentRetried()
	SegmentFailed()
}

// Result is the outcome of fetching one segment.
type Result struct {
	URL      string
	Path     string
	Attempts int
	Bytes    int64
	Err      error
}

// Report is the settled outcome of a batch.
type Report struct {
	Results []Result
	Bytes   int64
}

// Failed returns the results whose fetch ultimately failed.
func (r Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Fetcher downloads playlists and segments.
type Fetcher struct {
	client   *http.Client
	cfg      Config
	limiter  *rate.Limiter
	log      *slog.Logger
	observer Observer

	// maxPlaylist caps the size of a playlist body.
	maxPlaylist int64
}

// New returns a Fetcher. client may be nil to use NewClient(cfg); observer may be nil.
func New(cfg Config, client *http.Client, log *slog.Logger, observer Observer) *Fetcher {
	cfg = cfg.normalize()
	if client == nil {
		client = NewClient(cfg)
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Fetcher{
		client:   client,
		cfg:      cfg,
		limiter:  rate.NewLimiter(limit, cfg.Burst),
		log:      log,
		observer: observer,

		maxPlaylist: maxPlaylistBytes,
	}
}

// Concurrency returns the size of the worker pool.
func (f *Fetcher) Concurrency() int {
	return f.cfg.Concurrency
}

// FetchPlaylist returns the text of the playlist at url, retrying transient
// failures. Any final failure is a *PlaylistFetchError.
func (f *Fetcher) FetchPlaylist(ctx context.Context, url string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		body, err := f.getBytes(ctx, url)
		if err == nil {
			return string(body), nil
		}
		lastErr = err
		if !f.cfg.retryable(err) || attempt == f.cfg.MaxRetries {
			break
		}
		f.log.Debug("playlist fetch retry", slog.Int("attempt", attempt+1), slog.String("error", err.Error()))
		if err := waitBackoff(ctx, f.cfg.delay(attempt, err)); err != nil {
			lastErr = err
			break
		}
	}
	return "", &PlaylistFetchError{URL: url, Err: lastErr}
}

// FetchAll downloads every url into dir using the worker pool. Each file is
// named playlist.RawName(url). The batch always settles before returning;
// if any segment exhausted its retries the error is a *SegmentFetchError
// and the report still lists every result.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string, dir string) (Report, error) {
	report := Report{Results: make([]Result, len(urls))}
	if len(urls) == 0 {
		return report, nil
	}
	targets := make(map[string]string, len(urls))
	for _, u := range urls {
		name := playlist.RawName(u)
		if prev, ok := targets[name]; ok {
			return report, fmt.Errorf("segments %q and %q share target %q", prev, u, name)
		}
		targets[name] = u
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	workers := min(f.cfg.Concurrency, len(urls))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				report.Results[i] = f.fetchSegment(ctx, urls[i], dir)
			}
		}()
	}
	for i := range urls {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	var failures []SegmentFailure
	for _, res := range report.Results {
		report.Bytes += res.Bytes
		if res.Err != nil {
			failures = append(failures, SegmentFailure{URL: res.URL, Attempts: res.Attempts, Err: res.Err})
		}
	}
	if len(failures) > 0 {
		return report, &SegmentFetchError{Total: len(urls), Failures: failures}
	}
	return report, nil
}

func (f *Fetcher) fetchSegment(ctx context.Context, url, dir string) Result {
	res := Result{URL: url, Path: filepath.Join(dir, playlist.RawName(url))}
	for attempt := 0; attempt <= f.cfg.MaxRetries; attempt++ {
		res.Attempts = attempt + 1
		n, err := f.download(ctx, url, res.Path)
		if err == nil {
			res.Bytes = n
			res.Err = nil
			if f.observer != nil {
				f.observer.SegmentFetched(n)
			}
			return res
		}
		res.Err = err
		if !f.cfg.retryable(err) || attempt == f.cfg.MaxRetries {
			break
		}
		if f.observer != nil {
			f.observer.SegmentRetried()
		}
		f.log.Debug("segment retry",
			slog.String("segment", playlist.LocalName(url)),
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()))
		if err := waitBackoff(ctx, f.cfg.delay(attempt, err)); err != nil {
			res.Err = err
			break
		}
	}
	if f.observer != nil {
		f.observer.SegmentFailed()
	}
	f.log.Warn("segment failed",
		slog.String("segment", playlist.LocalName(url)),
		slog.Int("attempts", res.Attempts),
		slog.String("error", res.Err.Error()))
	return res
}

// download writes url to a temporary file next to dest and renames it into
// place once the body has been fully read.
func (f *Fetcher) download(ctx context.Context, url, dest string) (int64, error) {
	resp, err := f.get(ctx, url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, err := decodeBody(resp)
	if err != nil {
		return 0, fmt.Errorf("decode body: %w", err)
	}

	tmp := dest + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	n, err := io.Copy(out, body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return 0, fmt.Errorf("failed to finalize file: %w", err)
	}
	return n, nil
}

func (f *Fetcher) getBytes(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := decodeBody(resp)
	if err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	data, err := io.ReadAll(io.LimitReader(body, f.maxPlaylist+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > f.maxPlaylist {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrPlaylistTooLarge, f.maxPlaylist)
	}
	return data, nil
}

// get issues a paced GET and returns the response only for 200 OK. The
// caller closes the body.
func (f *Fetcher) get(ctx context.Context, url string) (*http.Response, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	return resp, nil
}
