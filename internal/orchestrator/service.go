package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"time"
)

// ErrInvalidRequest is returned when a run request is missing its source or
// the source is not an absolute http(s) URL.
var ErrInvalidRequest = errors.New("invalid run request")

// Defaults fill in the optional fields of a Request.
type Defaults struct {
	Browser string
	OutRoot string
}

// Service records runs in a Repository and executes them on a Pipeline in
// the background.
type Service struct {
	repo     Repository
	pipeline *Pipeline
	defaults Defaults
	log      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService returns a Service that stores runs in repo and executes them with pipeline.
func NewService(repo Repository, pipeline *Pipeline, defaults Defaults, log *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		repo:     repo,
		pipeline: pipeline,
		defaults: defaults,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Submit validates req, records a queued run and starts it. The returned run
// is the queued record; poll Get for progress.
func (s *Service) Submit(req Request) (Run, error) {
	if err := validateSource(req.Source); err != nil {
		return Run{}, err
	}
	if req.Browser == "" {
		req.Browser = s.defaults.Browser
	}
	if req.OutRoot == "" {
		req.OutRoot = s.defaults.OutRoot
	}
	if req.OutRoot == "" {
		return Run{}, errors.Join(ErrInvalidRequest, errors.New("out_root is required"))
	}

	run := Run{
		ID:        NewRunID(),
		Source:    req.Source,
		Browser:   req.Browser,
		OutRoot:   req.OutRoot,
		Status:    StatusQueued,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(run); err != nil {
		return Run{}, err
	}
	s.log.Info("run queued", slog.String("run_id", string(run.ID)), slog.String("source", run.Source))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(run.ID, req)
	}()
	return run, nil
}

// Get returns the run with the given id.
func (s *Service) Get(id RunID) (Run, bool, error) {
	return s.repo.Get(id)
}

// List returns all runs ordered by creation time.
func (s *Service) List() ([]Run, error) {
	return s.repo.List()
}

// Playlist returns the normalized playlist recorded for a fallback run.
// ok is false if the run does not exist or has no playlist.
func (s *Service) Playlist(id RunID) (m3u8 string, ok bool, err error) {
	run, found, err := s.repo.Get(id)
	if err != nil || !found || run.Playlist == "" {
		return "", false, err
	}
	return run.Playlist, true, nil
}

// ActiveRunCount returns the number of queued or running runs.
func (s *Service) ActiveRunCount() int {
	return s.repo.ActiveRunCount()
}

// Wait blocks until every submitted run has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Shutdown cancels in-flight runs and waits for them to clean up, or for ctx to expire.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) execute(id RunID, req Request) {
	log := s.log.With(slog.String("run_id", string(id)))
	s.update(log, id, func(r *Run) {
		now := time.Now().UTC()
		r.Status = StatusRunning
		r.StartedAt = &now
	})

	out, err := s.pipeline.Run(s.ctx, req, func(stage Stage) {
		s.update(log, id, func(r *Run) { r.Stage = stage })
	})

	s.update(log, id, func(r *Run) {
		now := time.Now().UTC()
		r.FinishedAt = &now
		r.Path = out.Path
		r.BaseName = out.Resolved.BaseName
		r.TargetDir = out.TargetDir
		r.Segments = out.Segments
		r.Bytes = out.Bytes
		r.Playlist = out.Playlist
		if err != nil {
			r.Status = StatusError
			r.Error = err.Error()
			var se *StageError
			if errors.As(err, &se) {
				r.Stage = se.Stage
			}
			return
		}
		r.Status = StatusDone
		r.Artifact = out.Artifact
		r.Stage = ""
	})
	if err != nil {
		log.Error("run failed", slog.String("error", err.Error()))
		return
	}
	log.Info("run finished", slog.String("artifact", out.Artifact), slog.String("path", string(out.Path)))
}

func (s *Service) update(log *slog.Logger, id RunID, fn func(*Run)) {
	if _, err := s.repo.Update(id, fn); err != nil {
		log.Error("update run record failed", slog.String("error", err.Error()))
	}
}

func validateSource(source string) error {
	if source == "" {
		return errors.Join(ErrInvalidRequest, errors.New("source_url is required"))
	}
	u, err := url.Parse(source)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.Join(ErrInvalidRequest, errors.New("source_url must be an absolute http(s) URL"))
	}
	return nil
}
