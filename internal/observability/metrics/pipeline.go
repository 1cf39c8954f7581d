package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pipeline holds the ingestion and retrieval instruments. A nil *Pipeline is
// valid and records nothing, so adapters can take it optionally.
type Pipeline struct {
	registry *prometheus.Registry
	service  string

	ingestTotal    *prometheus.CounterVec
	ingestDuration *prometheus.HistogramVec
	ingestInFlight prometheus.Gauge
	queueLag       prometheus.Histogram

	embedFallback    prometheus.Counter
	upsertBatchFails prometheus.Counter
	routeDecisions   *prometheus.CounterVec
}

func NewPipeline(service string) *Pipeline {
	registry := prometheus.NewRegistry()

	ingestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragbot",
			Subsystem: "ingest",
			Name:      "runs_total",
			Help:      "Ingestion runs by terminal status.",
		},
		[]string{"service", "status"},
	)
	ingestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ragbot",
			Subsystem: "ingest",
			Name:      "run_duration_seconds",
			Help:      "Ingestion run duration in seconds by terminal status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	ingestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "ragbot",
			Subsystem:   "ingest",
			Name:        "runs_in_flight",
			Help:        "Ingestion runs currently executing.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	queueLag := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "ragbot",
			Subsystem:   "ingest",
			Name:        "queue_lag_seconds",
			Help:        "Delay between source registration and processing start.",
			Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	embedFallback := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   "ragbot",
			Subsystem:   "embed",
			Name:        "zero_vector_fallback_total",
			Help:        "Vectors substituted with zeros because the embedding provider was unreachable.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	upsertBatchFails := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   "ragbot",
			Subsystem:   "vector",
			Name:        "upsert_batch_failures_total",
			Help:        "Upsert batches skipped after a store failure.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	routeDecisions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ragbot",
			Subsystem: "router",
			Name:      "decisions_total",
			Help:      "Route decisions by target and deciding tier.",
		},
		[]string{"service", "target", "reason"},
	)

	registry.MustRegister(
		ingestTotal, ingestDuration, ingestInFlight, queueLag,
		embedFallback, upsertBatchFails, routeDecisions,
	)

	return &Pipeline{
		registry:         registry,
		service:          service,
		ingestTotal:      ingestTotal,
		ingestDuration:   ingestDuration,
		ingestInFlight:   ingestInFlight,
		queueLag:         queueLag,
		embedFallback:    embedFallback,
		upsertBatchFails: upsertBatchFails,
		routeDecisions:   routeDecisions,
	}
}

func (m *Pipeline) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Pipeline) StartIngest() {
	if m == nil {
		return
	}
	m.ingestInFlight.Inc()
}

func (m *Pipeline) FinishIngest(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ingestInFlight.Dec()
	m.ingestTotal.WithLabelValues(m.service, status).Inc()
	m.ingestDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}

func (m *Pipeline) ObserveQueueLag(lag time.Duration) {
	if m == nil || lag < 0 {
		return
	}
	m.queueLag.Observe(lag.Seconds())
}

func (m *Pipeline) EmbedFallback(vectors int) {
	if m == nil || vectors <= 0 {
		return
	}
	m.embedFallback.Add(float64(vectors))
}

func (m *Pipeline) UpsertBatchFailure() {
	if m == nil {
		return
	}
	m.upsertBatchFails.Inc()
}

func (m *Pipeline) RouteDecision(target, reason string) {
	if m == nil {
		return
	}
	m.routeDecisions.WithLabelValues(m.service, target, reason).Inc()
}
