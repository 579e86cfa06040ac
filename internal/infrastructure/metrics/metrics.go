package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// Transfer lifecycle
	TransfersPrepared prometheus.Counter
	TransfersExecuted prometheus.Counter
	TransfersRejected prometheus.Counter
	TransfersExpired  prometheus.Counter
	CreditsRejected   prometheus.Counter
	TransferAmount    prometheus.Histogram
	TransferErrors    *prometheus.CounterVec

	// Escrow
	HeldAmount prometheus.Gauge

	// API
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Authentication
	AuthAttempts *prometheus.CounterVec

	// Notifications
	EventsPublished *prometheus.CounterVec
	PublishErrors   prometheus.Counter

	// Expiry sweeper
	SweepsTotal   prometheus.Counter
	SweepDuration prometheus.Histogram
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		TransfersPrepared: promauto.NewCounter(prometheus.CounterOpts{
			Name: "escrowd_transfers_prepared_total",
			Help: "Total number of transfers prepared into escrow",
		}),
		TransfersExecuted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "escrowd_transfers_executed_total",
			Help: "Total number of transfers executed",
		}),
		TransfersRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "escrowd_transfers_rejected_total",
			Help: "Total number of transfers fully rejected",
		}),
		TransfersExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "escrowd_transfers_expired_total",
			Help: "Total number of transfers expired by the sweeper",
		}),
		CreditsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "escrowd_credits_rejected_total",
			Help: "Total number of individual credit rejections",
		}),
		TransferAmount: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "escrowd_transfer_amount",
			Help:    "Transfer amounts",
			Buckets: []float64{1, 10, 100, 1000, 10000, 100000, 1000000},
		}),
		TransferErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "escrowd_transfer_errors_total",
				Help: "Total number of transfer errors by type",
			},
			[]string{"error_type"},
		),

		HeldAmount: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "escrowd_held_amount",
			Help: "Current balance of the escrow hold account",
		}),

		HTTPRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "escrowd_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "escrowd_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		AuthAttempts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "escrowd_auth_attempts_total",
				Help: "Total authentication attempts",
			},
			[]string{"status"},
		),

		EventsPublished: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "escrowd_events_published_total",
				Help: "Total notification events published by type",
			},
			[]string{"event_type"},
		),
		PublishErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "escrowd_publish_errors_total",
			Help: "Total notification publish failures",
		}),

		SweepsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "escrowd_expiry_sweeps_total",
			Help: "Total expiry sweep passes",
		}),
		SweepDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "escrowd_expiry_sweep_duration_seconds",
			Help:    "Duration of expiry sweep passes",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
