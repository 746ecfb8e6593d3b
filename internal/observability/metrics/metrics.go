// Package metrics exposes the service's Prometheus collectors. Every collector
// carries a constant service label; the API serves them at /metrics and the CLI
// dumps them to a textfile.
package metrics

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "koi"

// TrainingMetrics records training runs, the active model and predicted labels.
type TrainingMetrics struct {
	registry *prometheus.Registry

	runsTotal    *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	runsInFlight prometheus.Gauge
	bestF1       *prometheus.GaugeVec
	predicted    *prometheus.CounterVec
}

// NewTrainingMetrics builds a standalone registry, used by the CLI which has no
// HTTP collectors.
func NewTrainingMetrics(service string) *TrainingMetrics {
	return newTrainingMetrics(prometheus.NewRegistry(), service)
}

func newTrainingMetrics(registry *prometheus.Registry, service string) *TrainingMetrics {
	labels := prometheus.Labels{"service": service}
	m := &TrainingMetrics{
		registry: registry,
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "training", Name: "runs_total",
			Help: "Training runs by outcome.", ConstLabels: labels,
		}, []string{"status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "training", Name: "run_duration_seconds",
			Help: "Wall time of a training run, from fit to bundle swap.", ConstLabels: labels,
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"status"}),
		runsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "training", Name: "runs_in_flight",
			Help: "Training runs in progress.", ConstLabels: labels,
		}),
		bestF1: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "training", Name: "best_f1",
			Help: "Weighted F1 of the active model on its held-out split.", ConstLabels: labels,
		}, []string{"model"}),
		predicted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "inference", Name: "predictions_total",
			Help: "Predicted rows by disposition.", ConstLabels: labels,
		}, []string{"disposition"}),
	}
	registry.MustRegister(m.runsTotal, m.runDuration, m.runsInFlight, m.bestF1, m.predicted)
	return m
}

func (m *TrainingMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteTextfile dumps the registry in the text exposition format, for the
// node_exporter textfile collector.
func (m *TrainingMetrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

func (m *TrainingMetrics) StartTraining() {
	m.runsInFlight.Inc()
}

func (m *TrainingMetrics) FinishTraining(duration time.Duration, err error) {
	m.runsInFlight.Dec()
	status := "success"
	if err != nil {
		status = "error"
	}
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// SetActiveModel replaces the best-F1 series so only the active model is reported.
func (m *TrainingMetrics) SetActiveModel(model string, f1 float64) {
	if model == "" {
		model = "unknown"
	}
	m.bestF1.Reset()
	m.bestF1.WithLabelValues(model).Set(f1)
}

func (m *TrainingMetrics) RecordPredictions(labels []string) {
	for _, label := range labels {
		m.predicted.WithLabelValues(label).Inc()
	}
}

// HTTPServerMetrics adds request collectors to the training registry, so the API
// exposes both on one /metrics endpoint.
type HTTPServerMetrics struct {
	*TrainingMetrics

	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	inFlight    prometheus.Gauge
	uploadBytes *prometheus.HistogramVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()
	labels := prometheus.Labels{"service": service}
	m := &HTTPServerMetrics{
		TrainingMetrics: newTrainingMetrics(registry, service),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by route, method and status code.", ConstLabels: labels,
		}, []string{"route", "method", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help: "HTTP request latency by route.", ConstLabels: labels,
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "http", Name: "in_flight_requests",
			Help: "HTTP requests being served.", ConstLabels: labels,
		}),
		uploadBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_size_bytes",
			Help: "Approximate size of requests by route; dominated by survey uploads.", ConstLabels: labels,
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		}, []string{"route"}),
	}
	registry.MustRegister(m.requests, m.latency, m.inFlight, m.uploadBytes)
	return m
}

type routeContextKey struct{}

var byRoute = promhttp.WithLabelFromCtx("route", func(ctx context.Context) string {
	route, _ := ctx.Value(routeContextKey{}).(string)
	return route
})

// Middleware instruments next with the request collectors.
func (m *HTTPServerMetrics) Middleware(next http.Handler) http.Handler {
	instrumented := promhttp.InstrumentHandlerInFlight(m.inFlight,
		promhttp.InstrumentHandlerDuration(m.latency,
			promhttp.InstrumentHandlerCounter(m.requests,
				promhttp.InstrumentHandlerRequestSize(m.uploadBytes, next, byRoute),
				byRoute),
			byRoute))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), routeContextKey{}, routeOf(r.URL.Path))
		instrumented.ServeHTTP(w, r.WithContext(ctx))
	})
}

var knownRoutes = map[string]struct{}{
	"/healthz": {}, "/metrics": {}, "/openapi.yaml": {},
	"/v1/upload": {}, "/v1/dataset": {}, "/v1/model": {}, "/v1/chat": {},
	"/v1/otp/send": {}, "/v1/otp/verify": {},
}

// routeOf maps a request path to a bounded route label. Unknown paths share
// "other" so scanners cannot inflate the series count.
func routeOf(path string) string {
	if strings.HasPrefix(path, "/v1/predictions/") {
		return "/v1/predictions/{kepid}"
	}
	if _, ok := knownRoutes[path]; ok {
		return path
	}
	return "other"
}
