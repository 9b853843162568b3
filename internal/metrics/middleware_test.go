package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Post("/v1/indices/{index}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	r.Delete("/v1/indices/{index}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	tests := []struct {
		method, path, pattern, status string
	}{
		{http.MethodPost, "/v1/indices/main", "/v1/indices/{index}", "201"},
		{http.MethodPost, "/v1/indices/archive", "/v1/indices/{index}", "201"},
		{http.MethodDelete, "/v1/indices/main", "/v1/indices/{index}", "400"},
		{http.MethodGet, "/health", "/health", "200"},
	}
	before := make([]float64, len(tests))
	for i, tc := range tests {
		before[i] = testutil.ToFloat64(httpRequestsTotal.WithLabelValues(tc.method, tc.pattern, tc.status))
	}

	for _, tc := range tests {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.path, http.NoBody))
	}

	// Two POSTs share one pattern label.
	want := []float64{2, 2, 1, 1}
	for i, tc := range tests {
		got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(tc.method, tc.pattern, tc.status)) - before[i]
		if got != want[i] {
			t.Errorf("%s %s: requests = %v, want %v", tc.method, tc.pattern, got, want[i])
		}
	}
	if testutil.CollectAndCount(httpRequestDuration) == 0 {
		t.Error("expected http_request_duration_seconds observations")
	}
	if got := testutil.ToFloat64(httpInFlight); got != 0 {
		t.Errorf("in flight after requests = %v, want 0", got)
	}
}

func TestMiddleware_Unmatched(t *testing.T) {
	h := Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, unmatchedRoute, "404"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", http.NoBody))
	got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, unmatchedRoute, "404")) - before
	if got != 1 {
		t.Errorf("unmatched requests = %v, want 1", got)
	}
}

func TestNormalizePath(t *testing.T) {
	if got := normalizePath(""); got != unmatchedRoute {
		t.Errorf("normalizePath(\"\") = %q", got)
	}
	if got := normalizePath("/v1/sync"); got != "/v1/sync" {
		t.Errorf("normalizePath = %q", got)
	}
}

func TestRegister_Idempotent(t *testing.T) {
	RegisterSyncMetrics()
	RegisterSyncMetrics()
	RegisterHTTPMetrics()
	RegisterHTTPMetrics()

	BufferPending.WithLabelValues("Article").Set(3)
	if got := testutil.ToFloat64(BufferPending.WithLabelValues("Article")); got != 3 {
		t.Errorf("buffer_pending = %v", got)
	}
}
