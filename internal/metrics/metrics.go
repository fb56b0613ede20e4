package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	workflowRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invoicebot_workflow_runs_total",
		Help: "Invoice workflow runs by final outcome.",
	}, []string{"outcome"})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "invoicebot_workflow_stage_seconds",
		Help:    "Duration of each workflow stage.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
	}, []string{"stage", "outcome"})

	pollAttempts = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "invoicebot_payment_poll_attempts",
		Help:    "Number of payment status fetches per run.",
		Buckets: []float64{0, 1, 2, 3, 4, 5, 6, 8, 10},
	})

	messages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invoicebot_messages_total",
		Help: "Outgoing customer messages by kind and result.",
	}, []string{"kind", "result"})

	reminders = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "invoicebot_reminders_total",
		Help: "Reminder sweep decisions by result.",
	}, []string{"result"})

	sweepsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invoicebot_reminder_sweeps_skipped_total",
		Help: "Scheduler ticks skipped because a sweep was still running.",
	})

	taskQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "invoicebot_reminder_queue_depth",
		Help: "Background reminder tasks waiting for a worker.",
	})
)

func WorkflowRun(outcome string) {
	workflowRuns.WithLabelValues(outcome).Inc()
}

func StageObserved(stage, outcome string, seconds float64) {
	stageDuration.WithLabelValues(stage, outcome).Observe(seconds)
}

func PollAttempts(n int) {
	pollAttempts.Observe(float64(n))
}

func MessageSent(kind string, ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	messages.WithLabelValues(kind, result).Inc()
}

func Reminder(result string) {
	reminders.WithLabelValues(result).Inc()
}

func SweepSkipped() {
	sweepsSkipped.Inc()
}

func TaskQueueDepth(n int) {
	taskQueueDepth.Set(float64(n))
}
