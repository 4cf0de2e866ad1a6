package synchronizer

import "github.com/prometheus/client_golang/prometheus"

var (
	slotProbesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "reservoir",
		Subsystem: "sync",
		Name:      "slot_probes_total",
		Help:      "Total number of candidate start dates probed",
	})

	commitAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reservoir",
			Subsystem: "sync",
			Name:      "commit_attempts_total",
			Help:      "Total number of slot commits by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(slotProbesTotal, commitAttemptsTotal)
}
