// Package metrics holds the Prometheus collectors of the backend.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	RequestsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mibarrio_requests_submitted_total",
			Help: "Requests submitted, by kind.",
		},
		[]string{"kind"},
	)

	RequestsReviewed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mibarrio_requests_reviewed_total",
			Help: "Requests approved or rejected, by kind and resulting status.",
		},
		[]string{"kind", "status"},
	)

	ApprovalFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mibarrio_approval_failures_total",
			Help: "Approvals that failed partway, by kind.",
		},
		[]string{"kind"},
	)

	Enrollments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mibarrio_enrollments_total",
			Help: "Enrollment attempts, by result.",
		},
		[]string{"result"},
	)

	Reservations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mibarrio_reservations_total",
			Help: "Reservation attempts, by result.",
		},
		[]string{"result"},
	)

	BroadcastRecipients = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mibarrio_broadcast_recipients_total",
		Help: "Addresses blind-copied by broadcast emails.",
	})

	JobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mibarrio_job_runs_total",
			Help: "Scheduled job runs, by job and result.",
		},
		[]string{"job", "result"},
	)

	SessionEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mibarrio_session_events_total",
			Help: "Session change events handled by the registry.",
		},
		[]string{"event"},
	)
)

var registerOnce sync.Once

// Init registers every collector in the default registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration,
			RequestsSubmitted, RequestsReviewed, ApprovalFailures,
			Enrollments, Reservations, BroadcastRecipients,
			JobRuns, SessionEvents,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// Result turns an error into a low-cardinality label value
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Instrument records RPS, latency and in-flight requests labelled by mux route template.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
		httpInFlight.Dec()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.code = http.StatusSwitchingProtocols
	return h.Hijack()
}
