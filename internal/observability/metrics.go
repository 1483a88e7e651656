package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the bulletin API.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Domain metrics
	AuthEventsTotal  *prometheus.CounterVec
	UnitOfWorkTotal  *prometheus.CounterVec
	FileCleanupTotal *prometheus.CounterVec
	SweepRunsTotal   *prometheus.CounterVec
	SweepRemoved     *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors on registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bulletin_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bulletin_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		AuthEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bulletin_auth_events_total",
				Help: "Authentication lifecycle events by outcome",
			},
			[]string{"event", "outcome"},
		),
		UnitOfWorkTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bulletin_unit_of_work_total",
				Help: "Units of work by outcome",
			},
			[]string{"outcome"},
		),
		FileCleanupTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bulletin_file_cleanup_total",
				Help: "Upload cleanup attempts by phase and outcome",
			},
			[]string{"phase", "outcome"},
		),
		SweepRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bulletin_sweep_runs_total",
				Help: "Background sweep runs by outcome",
			},
			[]string{"outcome"},
		),
		SweepRemoved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bulletin_sweep_removed_total",
				Help: "Records and files removed by the background sweep",
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthEventsTotal,
		m.UnitOfWorkTotal,
		m.FileCleanupTotal,
		m.SweepRunsTotal,
		m.SweepRemoved,
	)

	return m
}

func (m *Metrics) RecordAuthEvent(event, outcome string) {
	m.AuthEventsTotal.WithLabelValues(event, outcome).Inc()
}

func (m *Metrics) RecordUnitOfWork(outcome string) {
	m.UnitOfWorkTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordFileCleanup(phase, outcome string) {
	m.FileCleanupTotal.WithLabelValues(phase, outcome).Inc()
}

// RecordSweep counts one sweep run and what it removed, keyed by kind.
func (m *Metrics) RecordSweep(err error, removed map[string]int) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.SweepRunsTotal.WithLabelValues(outcome).Inc()
	for kind, n := range removed {
		if n > 0 {
			m.SweepRemoved.WithLabelValues(kind).Add(float64(n))
		}
	}
}

// RegisterPoolStats exposes pgx pool gauges, read at scrape time.
func (m *Metrics) RegisterPoolStats(pool *pgxpool.Pool) {
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "bulletin_db_connections_active",
			Help: "Number of acquired database connections",
		}, func() float64 { return float64(pool.Stat().AcquiredConns()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "bulletin_db_connections_idle",
			Help: "Number of idle database connections",
		}, func() float64 { return float64(pool.Stat().IdleConns()) }),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments requests. Routes are labelled by their chi
// pattern so ids in the path do not explode cardinality.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
			}
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}
