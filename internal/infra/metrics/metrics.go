// internal/infra/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline counters, registered on the default registry and served on
// /metrics. Every counter counts events, not states; current states live in
// the delivery_records table.
var (
	ScanTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "birthday_scan_ticks_total",
		Help: "Trigger scans that ran to completion.",
	})
	ScanSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "birthday_scan_skipped_total",
		Help: "Trigger scans skipped because another instance held the scan lock.",
	})
	RecordsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "birthday_delivery_records_created_total",
		Help: "Delivery records created by trigger scans.",
	})
	Enqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "birthday_enqueued_total",
		Help: "Messages published onto the greetings queue, including reconciler re-enqueues.",
	})
	Sent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "birthday_sent_total",
		Help: "Greetings accepted by the notification service.",
	})
	FailedAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "birthday_failed_attempts_total",
		Help: "Send attempts that failed, by error class.",
	}, []string{"reason"})
	DeadLettered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "birthday_dead_lettered_total",
		Help: "Queue entries moved to the dead-letter subject after the attempt budget ran out.",
	})
	ReconciledPending = promauto.NewCounter(prometheus.CounterOpts{
		Name: "birthday_reconciled_pending_total",
		Help: "Pending-due records re-enqueued by the reconciler.",
	})
	ReconciledFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "birthday_reconciled_failed_total",
		Help: "Failed records reset to pending and re-enqueued by the reconciler.",
	})
)

var buildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "birthday_service_info",
	Help: "Build information, value is always 1.",
}, []string{"version"})

// Init publishes the build info gauge.
func Init(version string) {
	buildInfo.WithLabelValues(version).Set(1)
}
