package metrics

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// RequestMiddleware returns chi-compatible middleware that counts requests by
// method, route pattern and status, and counts error responses (status >= 400).
// The route pattern keeps run ids out of the label set.
func RequestMiddleware(m *Metrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			m.IncRequests(r.Method, route, rec.status)
			if rec.status >= 400 {
				m.IncErrors()
			}
		})
	}
}

func statusLabel(code int) string {
	return strconv.Itoa(code)
}
