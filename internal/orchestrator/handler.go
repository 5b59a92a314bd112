package orchestrator

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"hls-reconstructor/internal/playlist"

	"github.com/go-chi/chi/v5"
)

// maxRequestBody bounds the size of a POST /runs body.
const maxRequestBody = 64 << 10

// Handler exposes orchestrator HTTP endpoints using go-chi.
type Handler struct {
	svc *Service
	log *slog.Logger
}

// NewHandler returns a Handler that uses the given Service and Logger.
func NewHandler(svc *Service, log *slog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Routes registers the run endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/runs", func(r chi.Router) {
		r.Post("/", h.SubmitRun)
		r.Get("/", h.ListRuns)
		r.Route("/{run_id}", func(r chi.Router) {
			r.Get("/", h.GetRun)
			r.Get("/playlist.m3u8", h.GetPlaylist)
		})
	})
}

// SubmitRun handles POST /runs.
// Body: { "source_url": "https://...", "browser": "firefox", "out_root": "/data/spaces" }.
func (h *Handler) SubmitRun(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		h.log.Debug("invalid run body", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	run, err := h.svc.Submit(req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidRequest):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, ErrRunInProgress):
			h.log.Info("run rejected, target busy", slog.String("source", req.Source))
			writeError(w, http.StatusConflict, err.Error())
		default:
			h.log.Error("submit run failed", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	w.Header().Set("Location", "/runs/"+string(run.ID))
	writeJSON(w, http.StatusAccepted, run)
}

// ListRuns handles GET /runs.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.svc.List()
	if err != nil {
		h.log.Error("list runs failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if runs == nil {
		runs = []Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetRun handles GET /runs/{run_id}.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := RunID(chi.URLParam(r, "run_id"))
	if id == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	run, ok, err := h.svc.Get(id)
	if err != nil {
		h.log.Error("get run failed", slog.String("run_id", string(id)), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, ErrRunNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// GetPlaylist handles GET /runs/{run_id}/playlist.m3u8.
func (h *Handler) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	id := RunID(chi.URLParam(r, "run_id"))
	if id == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	m3u8, ok, err := h.svc.Playlist(id)
	if err != nil {
		h.log.Error("get playlist failed", slog.String("run_id", string(id)), slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", playlist.ContentType)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(m3u8))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
