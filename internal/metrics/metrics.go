// Package metrics holds the Prometheus instruments for the game pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the chat pipeline.
type Metrics struct {
	// Message pipeline
	MessagesTotal   *prometheus.CounterVec
	InjectionScore  prometheus.Histogram
	InjectionBlocks *prometheus.CounterVec

	// Payment path
	Reservations         *prometheus.CounterVec
	VerificationFailures *prometheus.CounterVec
	VerificationDuration prometheus.Histogram
	ThrottleRejections   prometheus.Counter

	// Outcomes
	PrizesSent prometheus.Counter
	PotBalance prometheus.Gauge
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		MessagesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lotto_messages_total",
				Help: "Paid messages processed, by pipeline outcome",
			},
			[]string{"outcome"}, // answered, blocked, rejected, error
		),

		InjectionScore: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "lotto_injection_score",
				Help:    "Injection score distribution across all messages",
				Buckets: []float64{0, 1, 2, 4, 8, 12, 16, 24, 32, 48},
			},
		),

		InjectionBlocks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lotto_injection_blocked_total",
				Help: "Messages blocked by the injection detector, by reason class",
			},
			[]string{"reason"},
		),

		Reservations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lotto_reservations_total",
				Help: "Payment signature reservation attempts, by outcome",
			},
			[]string{"outcome"}, // reserved, already_used, error
		),

		VerificationFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lotto_verification_failures_total",
				Help: "Payment verifications that did not validate, by cause",
			},
			[]string{"cause"},
		),

		VerificationDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "lotto_verification_duration_seconds",
				Help:    "Time spent verifying a payment against the ledger",
				Buckets: prometheus.DefBuckets,
			},
		),

		ThrottleRejections: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "lotto_throttle_rejections_total",
				Help: "Requests rejected by the per-wallet throttle",
			},
		),

		PrizesSent: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "lotto_prizes_sent_total",
				Help: "Prizes actually paid out",
			},
		),

		PotBalance: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "lotto_pot_balance_lamports",
				Help: "Spendable pot balance at last read",
			},
		),
	}
}
