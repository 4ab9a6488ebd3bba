package dbconn

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for pool and transaction
// instrumentation.
type Metrics struct {
	acquireDuration prometheus.Histogram
	acquireErrors   prometheus.Counter
	txTotal         *prometheus.CounterVec
	txDuration      *prometheus.HistogramVec
}

// NewMetrics registers the collectors against registry and returns a
// *Metrics ready to pass into Config.Metrics. Re-registering against the
// same registry is tolerated.
func NewMetrics(registry prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		acquireDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fhirstore_pool_acquire_duration_seconds",
			Help:    "Time spent acquiring a pooled connection.",
			Buckets: prometheus.DefBuckets,
		}),
		acquireErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fhirstore_pool_acquire_errors_total",
			Help: "Total pool acquisition failures.",
		}),
		txTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fhirstore_transactions_total",
			Help: "Total transactions by outcome.",
		}, []string{"outcome"}),
		txDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fhirstore_transaction_duration_seconds",
			Help:    "Outermost transaction duration by outcome.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
	}

	collectors := []prometheus.Collector{m.acquireDuration, m.acquireErrors, m.txTotal, m.txDuration}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return nil, err
			}
		}
	}
	return m, nil
}

// ObserveAcquire records how long a pool checkout took.
func (m *Metrics) ObserveAcquire(d time.Duration, err error) {
	m.acquireDuration.Observe(d.Seconds())
	if err != nil {
		m.acquireErrors.Inc()
	}
}

// ObserveTransaction records an outermost transaction's outcome and
// duration ("committed" or "rolled_back").
func (m *Metrics) ObserveTransaction(outcome string, d time.Duration) {
	m.txTotal.WithLabelValues(outcome).Inc()
	m.txDuration.WithLabelValues(outcome).Observe(d.Seconds())
}
