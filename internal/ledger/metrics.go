package ledger

import "github.com/prometheus/client_golang/prometheus"

var (
	commitCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "courtwatch",
		Subsystem: "ledger",
		Name:      "commits_total",
		Help:      "Processed workout commits, labeled by whether the write reached the backend.",
	}, []string{"result"})

	processedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "courtwatch",
		Subsystem: "ledger",
		Name:      "processed_ids",
		Help:      "Number of workout ids currently remembered as delivered.",
	})
)

func init() {
	prometheus.MustRegister(commitCounter, processedGauge)
}
