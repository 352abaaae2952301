package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	APILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "preda",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of belief API endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	APIErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "preda",
			Subsystem: "api",
			Name:      "errors_total",
			Help:      "Errors by belief API endpoint",
		},
		[]string{"endpoint"},
	)

	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "preda",
			Subsystem: "api",
			Name:      "cache_lookups_total",
			Help:      "Latest-index cache lookups by result",
		},
		[]string{"result"},
	)
)

// Register adds the API vectors to the default registry once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(APILatency, APIErrors, CacheLookups)
	})
}

// Observe records latency for endpoint. Failures are counted in APIErrors
// by the handler that produces the error response.
func Observe(endpoint string, start time.Time) {
	APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}
