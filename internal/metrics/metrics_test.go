package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(m *Metrics) chi.Router {
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/update/{id:[0-9]+}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})
	return r
}

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	m := New()
	router := newRouter(m)

	for _, path := range []string{"/update/1", "/update/2", "/health", "/nope"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/update/{id:[0-9]+}", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/health", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", unmatchedRoute, "404")))
}

func TestAddSeeded(t *testing.T) {
	m := New()
	m.AddSeeded(70)
	m.AddSeeded(0)
	m.AddSeeded(-1)

	assert.Equal(t, 70.0, testutil.ToFloat64(m.entriesSeeded))
}

func TestHandler_Exposition(t *testing.T) {
	m := New()
	router := newRouter(m)
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	m.AddSeeded(3)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.True(t, strings.Contains(body, `chamicore_abbrev_http_requests_total{method="GET",route="/health",status="200"} 1`))
	assert.Contains(t, body, "chamicore_abbrev_entries_seeded_total 3")
	assert.Contains(t, body, "chamicore_abbrev_http_request_duration_seconds_bucket")
	assert.Contains(t, body, "go_goroutines")
}
