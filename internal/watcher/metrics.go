package watcher

import "github.com/prometheus/client_golang/prometheus"

var eventCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "courtwatch",
	Subsystem: "watcher",
	Name:      "events_total",
	Help:      "File events by how they were handled.",
}, []string{"result"})

func init() {
	prometheus.MustRegister(eventCounter)
}
