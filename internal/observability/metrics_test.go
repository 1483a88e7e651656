package observability

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_DomainCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordAuthEvent("login", "failure")
	m.RecordAuthEvent("login", "failure")
	m.RecordUnitOfWork("committed")
	m.RecordFileCleanup("abort", "success")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AuthEventsTotal.WithLabelValues("login", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UnitOfWorkTotal.WithLabelValues("committed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FileCleanupTotal.WithLabelValues("abort", "success")))
}

func TestMetrics_RecordSweep(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordSweep(nil, map[string]int{"orphan_files": 3, "expired_registrations": 0})
	m.RecordSweep(errors.New("db down"), nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SweepRunsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SweepRunsTotal.WithLabelValues("failure")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SweepRemoved.WithLabelValues("orphan_files")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.SweepRemoved))
}

func TestHTTPMetricsMiddleware_UsesRoutePattern(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	r := chi.NewRouter()
	r.Use(HTTPMetricsMiddleware(m))
	r.Get("/api/v1/announcements/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/announcements/"+id, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(
		m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/announcements/{id}", "404")))
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.RecordUnitOfWork("rolled_back")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `bulletin_unit_of_work_total{outcome="rolled_back"} 1`)
}
