package orchestrator

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func newTestRouter(t *testing.T, cfg PipelineConfig) (*chi.Mux, *Service, *pipelineFixture) {
	t.Helper()
	svc, fx := newTestService(t, cfg)
	h := NewHandler(svc, testLogger())
	r := chi.NewRouter()
	h.Routes(r)
	return r, svc, fx
}

func postRun(r http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/runs", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHandler_SubmitRun(t *testing.T) {
	r, svc, _ := newTestRouter(t, PipelineConfig{Ext: "m4a"})

	rec := postRun(r, `{"source_url":"https://example.com/i/spaces/1","browser":"firefox"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var run Run
	if err := json.Unmarshal(rec.Body.Bytes(), &run); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if run.ID == "" || run.Browser != "firefox" || run.Status != StatusQueued {
		t.Errorf("run = %+v", run)
	}
	if loc := rec.Header().Get("Location"); loc != "/runs/"+string(run.ID) {
		t.Errorf("Location = %q", loc)
	}
	svc.Wait()

	rec = get(r, "/runs/"+string(run.ID))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got Run
	_ = json.Unmarshal(rec.Body.Bytes(), &got)
	if got.Status != StatusDone || got.Path != PathDirect {
		t.Errorf("run = %+v", got)
	}
}

func TestHandler_SubmitRun_bad_request(t *testing.T) {
	r, _, _ := newTestRouter(t, PipelineConfig{Ext: "m4a"})

	for _, body := range []string{"not json", `{}`, `{"source_url":"spaces/1"}`} {
		if rec := postRun(r, body); rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestHandler_SubmitRun_conflict(t *testing.T) {
	r, svc, fx := newTestRouter(t, PipelineConfig{Ext: "m4a"})
	fx.ex.block = make(chan struct{})
	body := `{"source_url":"https://example.com/i/spaces/1"}`

	if rec := postRun(r, body); rec.Code != http.StatusAccepted {
		t.Fatalf("first: expected 202, got %d", rec.Code)
	}
	rec := postRun(r, body)
	if rec.Code != http.StatusConflict {
		t.Errorf("second: expected 409, got %d", rec.Code)
	}
	var e map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &e)
	if e["error"] != ErrRunInProgress.Error() {
		t.Errorf("error body = %v", e)
	}
	close(fx.ex.block)
	svc.Wait()
}

func TestHandler_ListRuns(t *testing.T) {
	r, svc, _ := newTestRouter(t, PipelineConfig{Ext: "m4a"})

	rec := get(r, "/runs")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("empty list: %d %s", rec.Code, rec.Body.String())
	}

	postRun(r, `{"source_url":"https://example.com/i/spaces/1"}`)
	svc.Wait()
	rec = get(r, "/runs")
	var runs []Run
	if err := json.Unmarshal(rec.Body.Bytes(), &runs); err != nil || len(runs) != 1 {
		t.Errorf("runs = %v, err %v", runs, err)
	}
}

func TestHandler_GetRun_not_found(t *testing.T) {
	r, _, _ := newTestRouter(t, PipelineConfig{Ext: "m4a"})

	if rec := get(r, "/runs/missing"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
	if rec := get(r, "/runs/missing/playlist.m3u8"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_GetPlaylist(t *testing.T) {
	r, svc, fx := newTestRouter(t, PipelineConfig{Ext: "m4a", SkipDirect: true})

	rec := postRun(r, `{"source_url":"https://example.com/i/spaces/1"}`)
	var run Run
	_ = json.Unmarshal(rec.Body.Bytes(), &run)
	svc.Wait()

	rec = get(r, "/runs/"+string(run.ID)+"/playlist.m3u8")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("Content-Type") != "application/vnd.apple.mpegurl" {
		t.Errorf("expected playlist content type, got %s", rec.Header().Get("Content-Type"))
	}
	want := fx.origin.srv.URL + "/x/seg1.aac"
	if !bytes.Contains(rec.Body.Bytes(), []byte(want)) {
		t.Errorf("playlist body missing %s:\n%s", want, rec.Body.String())
	}
}

func TestHandler_GetPlaylist_direct_run_has_none(t *testing.T) {
	r, svc, _ := newTestRouter(t, PipelineConfig{Ext: "m4a"})

	rec := postRun(r, `{"source_url":"https://example.com/i/spaces/1"}`)
	var run Run
	_ = json.Unmarshal(rec.Body.Bytes(), &run)
	svc.Wait()

	if rec := get(r, "/runs/"+string(run.ID)+"/playlist.m3u8"); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for direct run, got %d", rec.Code)
	}
	if _, ok, err := svc.Playlist(run.ID); ok || err != nil {
		t.Errorf("Playlist: ok=%v err=%v", ok, errors.Unwrap(err))
	}
}
