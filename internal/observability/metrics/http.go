package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	searchTurnsTotal     *prometheus.CounterVec
	searchIterations     *prometheus.HistogramVec
	searchDuration       *prometheus.HistogramVec
	relaxationStageTotal *prometheus.CounterVec
	degradationTotal     *prometheus.CounterVec
	candidatesReturned   *prometheus.HistogramVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "psa",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "psa",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "psa",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	searchTurnsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "psa",
			Subsystem: "search",
			Name:      "turns_total",
			Help:      "Total completed search turns by outcome.",
		},
		[]string{"service", "outcome"},
	)
	searchIterations := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "psa",
			Subsystem: "search",
			Name:      "iterations",
			Help:      "Distribution of control loop iterations per turn.",
			Buckets:   []float64{1, 2, 3, 4, 5},
		},
		[]string{"service"},
	)
	searchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "psa",
			Subsystem: "search",
			Name:      "turn_duration_seconds",
			Help:      "Search turn duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	relaxationStageTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "psa",
			Subsystem: "search",
			Name:      "relaxation_stage_total",
			Help:      "Total turns that ended in each relaxation stage.",
		},
		[]string{"service", "stage"},
	)
	degradationTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "psa",
			Subsystem: "search",
			Name:      "degradation_total",
			Help:      "Total degraded dependencies observed during turns.",
		},
		[]string{"service", "reason"},
	)
	candidatesReturned := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "psa",
			Subsystem: "search",
			Name:      "candidates_returned",
			Help:      "Distribution of candidates returned per answered turn.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 10},
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		searchTurnsTotal,
		searchIterations,
		searchDuration,
		relaxationStageTotal,
		degradationTotal,
		candidatesReturned,
	)

	return &HTTPServerMetrics{
		registry:             registry,
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		searchTurnsTotal:     searchTurnsTotal,
		searchIterations:     searchIterations,
		searchDuration:       searchDuration,
		relaxationStageTotal: relaxationStageTotal,
		degradationTotal:     degradationTotal,
		candidatesReturned:   candidatesReturned,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			r.URL.Path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

func (m *HTTPServerMetrics) RecordSearchTurn(service, outcome, stage string, iterations, candidates int, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.searchTurnsTotal.WithLabelValues(service, outcome).Inc()
	m.searchDuration.WithLabelValues(service).Observe(duration.Seconds())
	if iterations > 0 {
		m.searchIterations.WithLabelValues(service).Observe(float64(iterations))
	}
	if stage != "" {
		m.relaxationStageTotal.WithLabelValues(service, stage).Inc()
	}
	if outcome == "results" {
		m.candidatesReturned.WithLabelValues(service).Observe(float64(candidates))
	}
}

func (m *HTTPServerMetrics) RecordDegradation(service, reason string) {
	if reason == "" {
		return
	}
	m.degradationTotal.WithLabelValues(service, reason).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
