package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(stagesExecutedTotal, stageLatencySeconds, employeesProcessedTotal)
}

var stagesExecutedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "coursegen_stages_executed_total",
		Help: "Pipeline stage executions, labeled by stage and outcome.",
	},
	[]string{"stage", "outcome"}, // 'success', 'failure'
)

var stageLatencySeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "coursegen_stage_latency_seconds",
		Help:    "Wall-clock duration of pipeline stage executions.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
	},
	[]string{"stage"},
)

var employeesProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "coursegen_employees_processed_total",
		Help: "Employee units reaching a terminal per-employee state.",
	},
	[]string{"status"}, // 'completed', 'failed'
)

func ObserveStage(stage string, seconds float64, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	stagesExecutedTotal.WithLabelValues(norm(stage), outcome).Inc()
	stageLatencySeconds.WithLabelValues(norm(stage)).Observe(seconds)
}

func IncEmployeeProcessed(status string) {
	employeesProcessedTotal.WithLabelValues(norm(status)).Inc()
}
