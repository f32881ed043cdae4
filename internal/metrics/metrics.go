package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for outputs and datum resolution.
const (
	OutcomeNormalized = "normalized"
	OutcomeSkipped    = "skipped"
	OutcomeFailed     = "failed"

	DatumNone     = "none"
	DatumInline   = "inline"
	DatumResolved = "resolved"
	DatumMissing  = "missing"
	DatumInvalid  = "invalid"
)

// Metrics holds the Prometheus collectors used by the normalization pipeline.
type Metrics struct {
	outputsProcessed  *prometheus.CounterVec
	datumResolutions  *prometheus.CounterVec
	registryLookups   *prometheus.CounterVec
	registryDuration  prometheus.Histogram
	registryPairs     prometheus.Histogram
	sinkWrites        *prometheus.CounterVec
	lastProcessedSlot prometheus.Gauge
}

// NewMetrics registers the collectors with registry. A nil registry uses
// prometheus.DefaultRegisterer.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		outputsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cardano_outputs_processed_total",
				Help: "Transaction outputs processed by era and outcome",
			},
			[]string{"era", "outcome"},
		),
		datumResolutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cardano_datum_resolutions_total",
				Help: "Datum resolution outcomes",
			},
			[]string{"outcome"},
		),
		registryLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cardano_registry_lookups_total",
				Help: "Native asset registry lookups by status",
			},
			[]string{"status"},
		),
		registryDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cardano_registry_lookup_duration_seconds",
				Help:    "Duration of native asset registry lookups in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		),
		registryPairs: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cardano_registry_lookup_pairs",
				Help:    "Distinct asset pairs per registry lookup",
				Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000},
			},
		),
		sinkWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cardano_sink_outputs_written_total",
				Help: "Normalized outputs written to the sink",
			},
			[]string{"status"},
		),
		lastProcessedSlot: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "cardano_last_processed_slot",
				Help: "Highest slot checkpointed by the pipeline",
			},
		),
	}
}

func (m *Metrics) RecordOutput(era, outcome string) {
	if m == nil {
		return
	}
	m.outputsProcessed.WithLabelValues(era, outcome).Inc()
}

func (m *Metrics) RecordDatum(outcome string) {
	if m == nil {
		return
	}
	m.datumResolutions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordRegistryLookup(pairs int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.registryLookups.WithLabelValues(status(err)).Inc()
	m.registryDuration.Observe(duration.Seconds())
	m.registryPairs.Observe(float64(pairs))
}

func (m *Metrics) RecordSinkWrite(count int, err error) {
	if m == nil {
		return
	}
	m.sinkWrites.WithLabelValues(status(err)).Add(float64(count))
}

func (m *Metrics) SetLastProcessedSlot(slot uint64) {
	if m == nil {
		return
	}
	m.lastProcessedSlot.Set(float64(slot))
}

// Handler serves the collectors of gatherer in the Prometheus text format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
