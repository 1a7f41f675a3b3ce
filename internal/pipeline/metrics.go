package pipeline

import "github.com/prometheus/client_golang/prometheus"

var deliveryCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "courtwatch",
	Subsystem: "pipeline",
	Name:      "deliveries_total",
	Help:      "Delivery attempts by result.",
}, []string{"result"})

func init() {
	prometheus.MustRegister(deliveryCounter)
}
