package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(jobsCreatedTotal, jobsFinishedTotal, jobsReclaimedTotal, jobsPromotedTotal, queuedJobs, activeJobs)
}

var jobsCreatedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "coursegen_jobs_created_total",
		Help: "Total generation jobs created, labeled by derived priority.",
	},
	[]string{"priority"},
)

var jobsFinishedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "coursegen_jobs_finished_total",
		Help: "Total generation jobs reaching a terminal state.",
	},
	[]string{"status"}, // 'completed', 'failed', 'cancelled'
)

var jobsReclaimedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "coursegen_jobs_reclaimed_total",
		Help: "Jobs requeued by the stale-worker sweep.",
	},
)

var jobsPromotedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "coursegen_jobs_promoted_total",
		Help: "Low-priority jobs promoted by the aging rule.",
	},
)

var queuedJobs = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "coursegen_jobs_queued",
		Help: "Jobs currently waiting in the queue.",
	},
)

var activeJobs = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "coursegen_jobs_active",
		Help: "Jobs currently claimed by a worker (pending/processing/paused).",
	},
)

func IncJobCreated(priority string) {
	jobsCreatedTotal.WithLabelValues(norm(priority)).Inc()
}

func IncJobFinished(status string) {
	jobsFinishedTotal.WithLabelValues(norm(status)).Inc()
}

func AddJobsReclaimed(n int) { jobsReclaimedTotal.Add(float64(n)) }
func AddJobsPromoted(n int)  { jobsPromotedTotal.Add(float64(n)) }

func SetQueueDepth(queued, active int) {
	queuedJobs.Set(float64(queued))
	activeJobs.Set(float64(active))
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
