package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Delivery attempt results
const (
	AttemptSuccess   = "success"
	AttemptTransient = "transient"
	AttemptPermanent = "permanent"
	AttemptDuplicate = "duplicate"
)

// Run statuses
const (
	RunCompleted        = "completed"
	RunDeadlineExceeded = "deadline_exceeded"
	RunConfigError      = "config_error"
	RunError            = "error"
)

var (
	// digestRecipients counts terminal recipient outcomes.
	// Labels:
	// - outcome: sent, skipped_ineligible, skipped_empty, failed, already_delivered, unprocessed
	digestRecipients = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "unisphere",
			Subsystem: "digest",
			Name:      "recipients_total",
			Help:      "Digest recipients by terminal outcome",
		},
		[]string{"outcome"},
	)

	// digestDeliveryAttempts counts calls to the mail collaborator.
	// Labels:
	// - result: success, transient, permanent, duplicate
	digestDeliveryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "unisphere",
			Subsystem: "digest",
			Name:      "delivery_attempts_total",
			Help:      "Digest delivery attempts by result",
		},
		[]string{"result"},
	)

	digestRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "unisphere",
			Subsystem: "digest",
			Name:      "run_duration_seconds",
			Help:      "Wall time of one school's digest run",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 1800, 3600, 7200},
		},
	)

	// digestRuns counts school runs.
	// Labels:
	// - status: completed, deadline_exceeded, config_error, error
	digestRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "unisphere",
			Subsystem: "digest",
			Name:      "runs_total",
			Help:      "Digest runs by final status",
		},
		[]string{"status"},
	)
)

// RecordRecipientOutcome increments the recipient outcome counter
func RecordRecipientOutcome(outcome string) {
	digestRecipients.WithLabelValues(outcome).Inc()
}

// RecordDeliveryAttempt increments the delivery attempt counter
func RecordDeliveryAttempt(result string) {
	digestDeliveryAttempts.WithLabelValues(result).Inc()
}

// ObserveRun records a finished run
func ObserveRun(status string, elapsed time.Duration) {
	digestRuns.WithLabelValues(status).Inc()
	if status == RunCompleted || status == RunDeadlineExceeded {
		digestRunDuration.Observe(elapsed.Seconds())
	}
}
