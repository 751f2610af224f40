// Package observability carries the ambient Prometheus metrics and health
// HTTP surface for both the ragingest and ragserve binaries. Adapted from
// the teacher's internal/interfaces/http/metrics.go registry shape
// (histograms/counters/gauges registered once at startup, a StepTimer
// helper, a promhttp handler) narrowed to this service's own concerns:
// ingestion throughput, embedding cache efficiency, and RPC query latency
// in place of CryptoRun's scan-pipeline/regime metrics.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Metrics holds every Prometheus collector the RAG service exposes.
type Metrics struct {
	IngestStepDuration *prometheus.HistogramVec
	SnapshotsIngested  *prometheus.CounterVec
	IngestErrors       *prometheus.CounterVec

	EmbedCacheHits   prometheus.Counter
	EmbedCacheMisses prometheus.Counter

	QueryDuration    prometheus.Histogram
	QueryMatches     prometheus.Histogram
	QueryErrors      *prometheus.CounterVec
	CircuitState     *prometheus.GaugeVec

	HTTPRequestsTotal *prometheus.CounterVec
	HTTPRetriesTotal  *prometheus.CounterVec
}

// NewMetrics builds and registers the registry. Call once per process.
func NewMetrics() *Metrics {
	m := &Metrics{
		IngestStepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ragpatterns_ingest_step_duration_seconds",
				Help:    "Duration of each ingestion pipeline step",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"step", "result"},
		),
		SnapshotsIngested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragpatterns_snapshots_ingested_total",
				Help: "Total snapshots extracted and embedded, by symbol",
			},
			[]string{"symbol"},
		),
		IngestErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragpatterns_ingest_errors_total",
				Help: "Total ingestion errors by step",
			},
			[]string{"step"},
		),
		EmbedCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ragpatterns_embed_cache_hits_total",
			Help: "Total embedding cache hits",
		}),
		EmbedCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ragpatterns_embed_cache_misses_total",
			Help: "Total embedding cache misses",
		}),
		QueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ragpatterns_query_duration_seconds",
			Help:    "End-to-end rag.query_patterns duration",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		QueryMatches: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ragpatterns_query_matches",
			Help:    "Number of historical matches returned per query",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21, 34, 55},
		}),
		QueryErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragpatterns_query_errors_total",
				Help: "Total rag.query_patterns errors by JSON-RPC error code",
			},
			[]string{"code"},
		),
		CircuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ragpatterns_circuit_state",
				Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragpatterns_http_client_requests_total",
				Help: "Total outbound HTTP requests by client pool and result",
			},
			[]string{"pool", "result"},
		),
		HTTPRetriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragpatterns_http_client_retries_total",
				Help: "Total outbound HTTP request retries by client pool",
			},
			[]string{"pool"},
		),
	}

	prometheus.MustRegister(
		m.IngestStepDuration, m.SnapshotsIngested, m.IngestErrors,
		m.EmbedCacheHits, m.EmbedCacheMisses,
		m.QueryDuration, m.QueryMatches, m.QueryErrors, m.CircuitState,
		m.HTTPRequestsTotal, m.HTTPRetriesTotal,
	)

	return m
}

// StepTimer times one ingestion pipeline step.
type StepTimer struct {
	metrics *Metrics
	step    string
	start   time.Time
}

// StartStepTimer begins timing an ingestion step.
func (m *Metrics) StartStepTimer(step string) *StepTimer {
	return &StepTimer{metrics: m, step: step, start: time.Now()}
}

// Stop records the step's duration and logs completion.
func (st *StepTimer) Stop(result string) {
	duration := time.Since(st.start)
	st.metrics.IngestStepDuration.WithLabelValues(st.step, result).Observe(duration.Seconds())
	log.Debug().Str("step", st.step).Str("result", result).Dur("duration", duration).Msg("ingest step completed")
}

// Handler returns the /metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
