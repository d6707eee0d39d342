package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Poll metrics
	PollTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "node_reward_monitor",
			Subsystem: "poll",
			Name:      "total",
			Help:      "Total number of identity polls by outcome",
		},
		[]string{"identity", "result"},
	)

	PollDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "node_reward_monitor",
			Subsystem: "poll",
			Name:      "duration_seconds",
			Help:      "Identity poll duration in seconds, jitter included",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 15, 30, 60},
		},
		[]string{"identity"},
	)

	ChangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "node_reward_monitor",
			Subsystem: "diff",
			Name:      "changes_total",
			Help:      "Total number of detected node changes",
		},
		[]string{"identity", "kind"},
	)

	// Node gauges, from the latest snapshot of each identity
	NodesCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "node_reward_monitor",
			Subsystem: "node",
			Name:      "count",
			Help:      "Number of nodes in the latest snapshot",
		},
		[]string{"identity"},
	)

	NodesOnline = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "node_reward_monitor",
			Subsystem: "node",
			Name:      "online_count",
			Help:      "Number of connected nodes in the latest snapshot",
		},
		[]string{"identity"},
	)

	RewardTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "node_reward_monitor",
			Subsystem: "node",
			Name:      "reward_total",
			Help:      "Sum of total rewards in the latest snapshot",
		},
		[]string{"identity"},
	)

	RewardToday = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "node_reward_monitor",
			Subsystem: "node",
			Name:      "reward_today",
			Help:      "Sum of today's rewards in the latest snapshot",
		},
		[]string{"identity"},
	)

	// Notification metrics
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "node_reward_monitor",
			Subsystem: "webhook",
			Name:      "notifications_total",
			Help:      "Total number of reports sent to the webhook",
		},
		[]string{"kind", "status"},
	)

	// Scheduler metrics
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "node_reward_monitor",
			Subsystem: "scheduler",
			Name:      "cycles_total",
			Help:      "Total number of polling cycles",
		},
		[]string{"status"},
	)

	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "node_reward_monitor",
			Subsystem: "scheduler",
			Name:      "cycle_duration_seconds",
			Help:      "Polling cycle duration in seconds",
			Buckets:   []float64{1, 2.5, 5, 10, 15, 30, 60, 120},
		},
	)

	SchedulerJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "node_reward_monitor",
			Subsystem: "scheduler",
			Name:      "jobs_total",
			Help:      "Total number of cron jobs executed",
		},
		[]string{"job_name", "status"},
	)

	LastSchedulerJobTime = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "node_reward_monitor",
			Subsystem: "scheduler",
			Name:      "last_job_timestamp",
			Help:      "Unix timestamp of last cron job execution",
		},
		[]string{"job_name"},
	)
)

// Metrics provides convenience methods for recording metrics
type Metrics struct{}

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordPoll records the outcome of one identity poll
func (m *Metrics) RecordPoll(identity, result string, duration time.Duration) {
	PollTotal.WithLabelValues(identity, result).Inc()
	PollDuration.WithLabelValues(identity).Observe(duration.Seconds())
}

// RecordChange counts one detected change
func (m *Metrics) RecordChange(identity, kind string) {
	ChangesTotal.WithLabelValues(identity, kind).Inc()
}

// UpdateSnapshot publishes the aggregates of an identity's latest snapshot
func (m *Metrics) UpdateSnapshot(identity string, nodes, online int, totalReward, todayReward float64) {
	NodesCount.WithLabelValues(identity).Set(float64(nodes))
	NodesOnline.WithLabelValues(identity).Set(float64(online))
	RewardTotal.WithLabelValues(identity).Set(totalReward)
	RewardToday.WithLabelValues(identity).Set(todayReward)
}

// RecordNotification records a webhook delivery attempt
func (m *Metrics) RecordNotification(kind string, success bool) {
	NotificationsTotal.WithLabelValues(kind, status(success)).Inc()
}

// RecordCycle records one polling cycle
func (m *Metrics) RecordCycle(success bool, duration time.Duration) {
	CyclesTotal.WithLabelValues(status(success)).Inc()
	CycleDuration.Observe(duration.Seconds())
}

// RecordSchedulerJob records a cron job execution
func (m *Metrics) RecordSchedulerJob(jobName string, success bool) {
	SchedulerJobsTotal.WithLabelValues(jobName, status(success)).Inc()
	LastSchedulerJobTime.WithLabelValues(jobName).SetToCurrentTime()
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
