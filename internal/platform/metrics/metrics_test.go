package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func scrape(t *testing.T, m *Metrics, update func()) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler(update).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestMetrics_exposition(t *testing.T) {
	m := New()
	m.RunFinished("fallback", "success")
	m.IncFallbacks()
	m.SegmentFetched(1024)
	m.SegmentRetried()
	m.SegmentFailed()
	m.ObserveStage("fetch", 120*time.Millisecond)

	out := scrape(t, m, func() { m.SetActiveRuns(2) })
	for _, want := range []string{
		`hls_runs_total{outcome="success",path="fallback"} 1`,
		"hls_direct_fallbacks_total 1",
		"hls_segments_fetched_total 1",
		"hls_segment_bytes_total 1024",
		"hls_segment_retries_total 1",
		"hls_segments_failed_total 1",
		"hls_active_runs 2",
		`hls_stage_duration_seconds_count{stage="fetch"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in exposition", want)
		}
	}
}

func TestRequestMiddleware(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(RequestMiddleware(m))
	r.Get("/runs/{run_id}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "run_id") == "missing" {
			w.WriteHeader(http.StatusNotFound)
		}
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/runs/a1", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/runs/b2", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/runs/missing", nil))

	out := scrape(t, m, nil)
	for _, want := range []string{
		`hls_requests_total{code="200",method="GET",route="/runs/{run_id}"} 2`,
		`hls_requests_total{code="404",method="GET",route="/runs/{run_id}"} 1`,
		"hls_errors_total 1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in exposition:\n%s", want, out)
		}
	}
}
