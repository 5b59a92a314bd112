package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"hls-reconstructor/internal/extractor"
	"hls-reconstructor/internal/fetcher"
	"hls-reconstructor/internal/platform/metrics"
	"hls-reconstructor/internal/playlist"
	"hls-reconstructor/internal/remux"
	"hls-reconstructor/internal/workspace"
)

// Stage names one step of a run.
type Stage string

const (
	StageResolve   Stage = "resolve"
	StageLayout    Stage = "layout"
	StageDirect    Stage = "direct"
	StagePlaylist  Stage = "playlist"
	StageWorkspace Stage = "workspace"
	StageFetch     Stage = "fetch"
	StageSanitize  Stage = "sanitize"
	StageRewrite   Stage = "rewrite"
	StageRemux     Stage = "remux"
)

// localPlaylistName is the rewritten playlist written into the workspace.
const localPlaylistName = "local.m3u8"

// StageError is a fatal run failure qualified by the stage that produced it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// SegmentFetcher is the playlist and bulk segment download capability.
// *fetcher.Fetcher implements it.
type SegmentFetcher interface {
	FetchPlaylist(ctx context.Context, url string) (string, error)
	FetchAll(ctx context.Context, urls []string, dir string) (fetcher.Report, error)
}

// PipelineConfig holds the per-process settings of a Pipeline.
type PipelineConfig struct {
	// Ext is the artifact extension, e.g. "m4a".
	Ext string
	// SkipDirect disables the direct acquisition attempt.
	SkipDirect bool
}

// Outcome describes a successful run.
type Outcome struct {
	Resolved  extractor.Resolved
	Path      AcquisitionPath
	TargetDir string
	Artifact  string
	Segments  int
	Bytes     int64
	// Playlist is the normalized playlist text of a fallback run.
	Playlist string
}

// Pipeline drives one acquisition: resolve, try the direct path, and fall
// back to chunked reconstruction. Stages run strictly in sequence; only the
// segment fetch is concurrent.
type Pipeline struct {
	extractor extractor.Service
	fetcher   SegmentFetcher
	remuxer   remux.Remuxer
	cfg       PipelineConfig
	log       *slog.Logger
	metrics   *metrics.Metrics

	mu      sync.Mutex
	targets map[string]struct{}
}

// NewPipeline returns a Pipeline. Metrics may be nil to disable metric recording.
func NewPipeline(ex extractor.Service, f SegmentFetcher, rm remux.Remuxer, cfg PipelineConfig, log *slog.Logger, m *metrics.Metrics) *Pipeline {
	if cfg.Ext == "" {
		cfg.Ext = "m4a"
	}
	return &Pipeline{
		extractor: ex,
		fetcher:   f,
		remuxer:   rm,
		cfg:       cfg,
		log:       log,
		metrics:   m,
		targets:   make(map[string]struct{}),
	}
}

// Run executes one acquisition. onStage, if not nil, is called as each stage
// starts. On success the artifact exists at Outcome.Artifact; on failure the
// error is a *StageError, no artifact is left at the target path and the
// workspace has been removed.
func (p *Pipeline) Run(ctx context.Context, req Request, onStage func(Stage)) (out Outcome, err error) {
	log := p.log.With(slog.String("source", req.Source))
	enter := func(s Stage) func() {
		if onStage != nil {
			onStage(s)
		}
		log.Debug("stage started", slog.String("stage", string(s)))
		start := time.Now()
		return func() {
			if p.metrics != nil {
				p.metrics.ObserveStage(string(s), time.Since(start))
			}
		}
	}
	defer func() {
		if p.metrics == nil {
			return
		}
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		path := out.Path
		if path == PathNone {
			path = "none"
		}
		p.metrics.RunFinished(string(path), outcome)
	}()

	auth := extractor.Auth{Browser: req.Browser}

	done := enter(StageResolve)
	res, err := p.extractor.Resolve(ctx, req.Source, auth)
	done()
	if err != nil {
		return out, &StageError{Stage: StageResolve, Err: err}
	}
	out.Resolved = res
	log = log.With(slog.String("base_name", res.BaseName))
	log.Info("stream resolved", slog.String("media_url", res.MediaURL))

	layout, err := workspace.NewLayout(req.OutRoot, res.BaseName, p.cfg.Ext)
	if err != nil {
		return out, &StageError{Stage: StageLayout, Err: err}
	}
	release, err := p.claim(layout.TargetDir())
	if err != nil {
		return out, &StageError{Stage: StageLayout, Err: err}
	}
	defer release()
	if err := layout.EnsureTargetDir(); err != nil {
		return out, &StageError{Stage: StageLayout, Err: err}
	}
	out.TargetDir = layout.TargetDir()

	if !p.cfg.SkipDirect {
		done := enter(StageDirect)
		err := p.direct(ctx, req.Source, auth, layout)
		done()
		if err == nil {
			out.Path = PathDirect
			out.Artifact = layout.ArtifactPath()
			log.Info("direct acquisition succeeded", slog.String("artifact", out.Artifact))
			return out, nil
		}
		if !extractor.ShouldFallback(err) || ctx.Err() != nil {
			return out, &StageError{Stage: StageDirect, Err: err}
		}
		log.Warn("direct acquisition failed, falling back to chunked reconstruction", slog.String("error", err.Error()))
		if p.metrics != nil {
			p.metrics.IncFallbacks()
		}
	}

	out.Path = PathFallback
	if err := p.reconstruct(ctx, log, res.MediaURL, layout, &out, enter); err != nil {
		if derr := layout.Discard(layout.PartialPath(), layout.ArtifactPath()); derr != nil {
			log.Error("discard artifact failed", slog.String("error", derr.Error()))
		}
		return out, err
	}
	out.Artifact = layout.ArtifactPath()
	log.Info("reconstruction complete",
		slog.String("artifact", out.Artifact),
		slog.Int("segments", out.Segments),
		slog.Int64("bytes", out.Bytes))
	return out, nil
}

// direct has the extraction service write into a hidden file next to the
// artifact and commits it only once it is complete.
func (p *Pipeline) direct(ctx context.Context, source string, auth extractor.Auth, layout workspace.Layout) error {
	tmp := layout.DirectPath()
	if err := p.extractor.AcquireDirect(ctx, source, auth, tmp); err != nil {
		_ = layout.Discard(tmp)
		return err
	}
	if err := layout.Commit(tmp); err != nil {
		_ = layout.Discard(tmp)
		return &extractor.DirectError{Err: err}
	}
	return nil
}

func (p *Pipeline) reconstruct(ctx context.Context, log *slog.Logger, mediaURL string, layout workspace.Layout, out *Outcome, enter func(Stage) func()) error {
	done := enter(StagePlaylist)
	text, mediaURL, err := p.mediaPlaylist(ctx, log, mediaURL)
	done()
	if err != nil {
		return &StageError{Stage: StagePlaylist, Err: err}
	}

	raw := playlist.Parse(text)
	normalized := playlist.Normalize(raw, mediaURL)
	if err := playlist.CheckNames(normalized); err != nil {
		return &StageError{Stage: StagePlaylist, Err: err}
	}
	out.Playlist = normalized.Encode()
	urls := playlist.SegmentURLs(normalized)
	out.Segments = len(urls)
	log.Info("playlist normalized",
		slog.Int("lines", normalized.Len()),
		slog.Int("references", normalized.SegmentCount()),
		slog.Int("segments", len(urls)))
	if !normalized.Ended() {
		log.Warn("playlist has no end marker, reconstructing the current window only")
	}

	ws, err := workspace.Acquire(layout)
	if err != nil {
		return &StageError{Stage: StageWorkspace, Err: err}
	}
	defer func() {
		if err := ws.Release(); err != nil {
			log.Error("workspace release failed", slog.String("dir", ws.Dir()), slog.String("error", err.Error()))
		}
	}()

	done = enter(StageFetch)
	report, err := p.fetcher.FetchAll(ctx, urls, ws.Dir())
	done()
	out.Bytes = report.Bytes
	if err != nil {
		return &StageError{Stage: StageFetch, Err: err}
	}

	done = enter(StageSanitize)
	renamed, err := workspace.Sanitize(ws.Dir())
	done()
	if err != nil {
		return &StageError{Stage: StageSanitize, Err: err}
	}
	for _, c := range renamed.Collisions() {
		log.Warn("sanitized name replaced an existing file", slog.String("from", c.From), slog.String("to", c.To))
	}

	done = enter(StageRewrite)
	local, err := playlist.RewriteLocal(raw, ws.Dir())
	var localPath string
	if err == nil {
		localPath, err = ws.WriteFile(localPlaylistName, []byte(local.Encode()))
	}
	done()
	if err != nil {
		return &StageError{Stage: StageRewrite, Err: err}
	}

	done = enter(StageRemux)
	defer done()
	partial := layout.PartialPath()
	if err := p.remuxer.ConcatCopy(ctx, localPath, partial); err != nil {
		return &StageError{Stage: StageRemux, Err: err}
	}
	if err := layout.Commit(partial); err != nil {
		return &StageError{Stage: StageRemux, Err: &remux.RemuxError{Target: layout.ArtifactPath(), Err: err}}
	}
	return nil
}

// mediaPlaylist fetches the playlist at url. A master playlist is replaced by
// its best variant, and the variant URL becomes the base for normalization.
func (p *Pipeline) mediaPlaylist(ctx context.Context, log *slog.Logger, url string) (string, string, error) {
	text, err := p.fetcher.FetchPlaylist(ctx, url)
	if err != nil {
		return "", "", err
	}
	if !playlist.IsMaster(text) {
		return text, url, nil
	}
	variant, err := playlist.SelectVariant(text, url)
	if err != nil {
		return "", "", err
	}
	log.Info("master playlist, using variant", slog.String("variant", variant))
	text, err = p.fetcher.FetchPlaylist(ctx, variant)
	if err != nil {
		return "", "", err
	}
	if playlist.IsMaster(text) {
		return "", "", errors.New("variant is itself a master playlist")
	}
	return text, variant, nil
}

// claim gives the caller exclusive use of a target directory within this process.
func (p *Pipeline) claim(dir string) (func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.targets[dir]; busy {
		return nil, ErrRunInProgress
	}
	p.targets[dir] = struct{}{}
	return func() {
		p.mu.Lock()
		delete(p.targets, dir)
		p.mu.Unlock()
	}, nil
}
