package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobCommandsTotal) }

var jobCommandsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "coursegen_job_commands_total",
		Help: "Control commands issued against jobs, labeled by command and outcome.",
	},
	[]string{"command", "outcome"}, // 'applied', 'noop', 'rejected'
)

func IncJobCommand(command, outcome string) {
	jobCommandsTotal.WithLabelValues(norm(command), norm(outcome)).Inc()
}
