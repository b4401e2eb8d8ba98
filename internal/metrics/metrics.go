package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	BatchRuns        prometheus.Counter
	BatchFailures    *prometheus.CounterVec
	MessagesFound    prometheus.Counter
	MessagesSkipped  *prometheus.CounterVec
	CertificatesSent prometheus.Counter
	DeliveryFailures prometheus.Counter
	ProcessingTime   prometheus.Histogram
	Donations        prometheus.Gauge
}

// NewMetrics registers the metrics with reg. Tests pass a fresh registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		BatchRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "naturelife_cert_batch_runs_total",
			Help: "Total number of inbox batches started",
		}),
		BatchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "naturelife_cert_batch_failures_total",
			Help: "Total number of inbox batches aborted, by reason",
		}, []string{"reason"}),
		MessagesFound: factory.NewCounter(prometheus.CounterOpts{
			Name: "naturelife_cert_messages_found_total",
			Help: "Total number of donation requests matched in the inbox",
		}),
		MessagesSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "naturelife_cert_messages_skipped_total",
			Help: "Total number of donation requests skipped, by stage",
		}, []string{"stage"}),
		CertificatesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "naturelife_cert_certificates_sent_total",
			Help: "Total number of certificates delivered",
		}),
		DeliveryFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "naturelife_cert_delivery_failures_total",
			Help: "Total number of certificates that could not be delivered",
		}),
		ProcessingTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "naturelife_cert_batch_duration_seconds",
			Help:    "Time spent processing one inbox batch",
			Buckets: prometheus.DefBuckets,
		}),
		Donations: factory.NewGauge(prometheus.GaugeOpts{
			Name: "naturelife_cert_donations",
			Help: "Number of stored donations",
		}),
	}
}
