// Package metrics exports the master's job/work-unit counters over
// Prometheus.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every counter/gauge the master updates as jobs progress.
type Metrics struct {
	registry *prometheus.Registry

	JobsCreated   prometheus.Counter
	JobsSucceeded prometheus.Counter
	JobsFailed    prometheus.Counter

	WorkersRegistered prometheus.Gauge

	NextWorkTotal    *prometheus.CounterVec // label "result": "unit" | "sentinel"
	SamplesUsed      prometheus.Gauge
	SamplesRemaining prometheus.Gauge

	RequestBytes  *prometheus.CounterVec // labels "method", "path"
	ResponseBytes *prometheus.CounterVec // labels "method", "path", "status"
}

// New constructs and registers the metric set against a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		JobsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "videoengine", Subsystem: "master", Name: "jobs_created_total",
			Help: "Total number of jobs accepted by NewJob.",
		}),
		JobsSucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "videoengine", Subsystem: "master", Name: "jobs_succeeded_total",
			Help: "Total number of jobs where every worker reported success.",
		}),
		JobsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "videoengine", Subsystem: "master", Name: "jobs_failed_total",
			Help: "Total number of jobs where at least one worker reported failure.",
		}),
		WorkersRegistered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "videoengine", Subsystem: "master", Name: "workers_registered",
			Help: "Number of workers currently registered.",
		}),
		NextWorkTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "videoengine", Subsystem: "master", Name: "next_work_total",
			Help: "Total NextWork calls, by whether a unit or the drain sentinel was returned.",
		}, []string{"result"}),
		SamplesUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "videoengine", Subsystem: "master", Name: "samples_used",
			Help: "Samples dispatched for the job currently in flight.",
		}),
		SamplesRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "videoengine", Subsystem: "master", Name: "samples_remaining",
			Help: "Samples not yet dispatched for the job currently in flight.",
		}),
		RequestBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "videoengine", Name: "http_request_bytes_total",
			Help: "Total bytes received in HTTP request bodies.",
		}, []string{"method", "path"}),
		ResponseBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "videoengine", Name: "http_response_bytes_total",
			Help: "Total bytes written in HTTP response bodies.",
		}, []string{"method", "path", "status"}),
	}
	reg.MustRegister(
		m.JobsCreated, m.JobsSucceeded, m.JobsFailed,
		m.WorkersRegistered, m.NextWorkTotal, m.SamplesUsed, m.SamplesRemaining,
		m.RequestBytes, m.ResponseBytes,
	)
	return m
}

// HTTPMiddleware wraps next, recording request and response body sizes
// against RequestBytes/ResponseBytes, labeled by method and r.URL.Path
// (the query string is not part of the label). A route with path
// variables therefore gets one label value per distinct request path.
func (m *Metrics) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if reqSize := r.ContentLength; reqSize > 0 {
			m.RequestBytes.WithLabelValues(r.Method, path).Add(float64(reqSize))
		}
		rw := &countingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		if rw.bytesWritten > 0 {
			status := strconv.Itoa(rw.statusCode)
			m.ResponseBytes.WithLabelValues(r.Method, path, status).Add(float64(rw.bytesWritten))
		}
	})
}

type countingResponseWriter struct {
	http.ResponseWriter
	bytesWritten int
	statusCode   int
}

func (rw *countingResponseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

func (rw *countingResponseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
