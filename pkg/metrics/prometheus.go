package metrics

import (
	"Preda/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	signalsIngested *prometheus.CounterVec
	messagesSent    *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	inflections     *prometheus.CounterVec
	bsiValue        *prometheus.GaugeVec
	bsiVelocity     *prometheus.GaugeVec
	bsiVolatility   *prometheus.GaugeVec
	bsiConfidence   *prometheus.GaugeVec
	latency         *prometheus.HistogramVec
}

// New registers the recorder on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the recorder on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	index := func(name, help string) *prometheus.GaugeVec {
		return f.NewGaugeVec(prometheus.GaugeOpts{Name: "preda_bsi_" + name, Help: help}, []string{"domain"})
	}
	return &Recorder{
		signalsIngested: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "preda_signals_ingested_total",
				Help: "Signals accepted into a domain aggregator",
			},
			[]string{"domain", "source"},
		),
		messagesSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "preda_messages_sent_total",
				Help: "Messages written to the configured backend",
			},
			[]string{"backend", "domain"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "preda_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		inflections: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "preda_inflections_total",
				Help: "Inflection events by type and lifecycle status",
			},
			[]string{"domain", "type", "status"},
		),
		bsiValue:      index("value", "Latest belief state index value"),
		bsiVelocity:   index("velocity", "Latest belief state index velocity"),
		bsiVolatility: index("volatility", "Latest belief state index volatility"),
		bsiConfidence: index("confidence", "Latest belief state index confidence"),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "preda_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordSignalsIngested(domain, source string, n int) {
	r.signalsIngested.WithLabelValues(domain, source).Add(float64(n))
}

func (r *Recorder) RecordMessageSent(backend, domain string) {
	r.messagesSent.WithLabelValues(backend, domain).Inc()
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordIndex publishes the latest sample of a domain as gauges.
func (r *Recorder) RecordIndex(idx models.BeliefStateIndex) {
	r.bsiValue.WithLabelValues(idx.Domain).Set(idx.Value)
	r.bsiVelocity.WithLabelValues(idx.Domain).Set(idx.Velocity)
	r.bsiVolatility.WithLabelValues(idx.Domain).Set(idx.Volatility)
	r.bsiConfidence.WithLabelValues(idx.Domain).Set(idx.Confidence)
}

func (r *Recorder) RecordInflection(domain string, t models.InflectionType, status models.InflectionStatus) {
	r.inflections.WithLabelValues(domain, t.String(), string(status)).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Noop discards every measurement.
type Noop struct{}

func (Noop) RecordSignalsIngested(string, string, int) {}
func (Noop) RecordMessageSent(string, string) {}
func (Noop) RecordError(string) {}
func (Noop) RecordIndex(models.BeliefStateIndex) {}
func (Noop) RecordInflection(string, models.InflectionType, models.InflectionStatus) {}
func (Noop) RecordLatency(string, float64) {}
