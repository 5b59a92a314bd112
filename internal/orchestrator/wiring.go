package orchestrator

import (
	"log/slog"

	"hls-reconstructor/internal/extractor"
	"hls-reconstructor/internal/fetcher"
	"hls-reconstructor/internal/platform/config"
	"hls-reconstructor/internal/platform/metrics"
	"hls-reconstructor/internal/remux"
)

// NewDefaultPipeline wires yt-dlp, the HTTP fetcher and ffmpeg into a Pipeline
// according to cfg. Metrics may be nil. An artifact extension ffmpeg cannot
// stream-copy into is rejected up front.
func NewDefaultPipeline(cfg config.Acquire, log *slog.Logger, m *metrics.Metrics) (*Pipeline, error) {
	if err := remux.CheckExt(cfg.Ext); err != nil {
		return nil, err
	}
	var observer fetcher.Observer
	if m != nil {
		observer = m
	}
	f := fetcher.New(fetcher.Config{
		Concurrency:       cfg.FetchConcurrency,
		MaxRetries:        cfg.FetchRetries,
		InitialBackoff:    cfg.FetchBackoff,
		MaxBackoff:        cfg.FetchMaxBackoff,
		RequestsPerSecond: cfg.FetchRPS,
		Timeout:           cfg.FetchTimeout,
		Headers:           cfg.FetchHeaders,
	}, nil, log, observer)

	ex := extractor.NewYTDLP(extractor.YTDLPConfig{Executable: cfg.YTDLPPath}, log)
	rm := remux.NewFFmpeg(cfg.FFmpegPath, cfg.Ext, log)

	log.Debug("pipeline configured",
		slog.String("ext", cfg.Ext),
		slog.Int("fetch_concurrency", f.Concurrency()),
		slog.Bool("skip_direct", cfg.SkipDirect))
	return NewPipeline(ex, f, rm, PipelineConfig{Ext: cfg.Ext, SkipDirect: cfg.SkipDirect}, log, m), nil
}
