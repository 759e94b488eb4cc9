package resolver

import (
	"github.com/prometheus/client_golang/prometheus"
)

var resolutionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "mailmind",
	Subsystem: "resolver",
	Name:      "resolutions_total",
	Help:      "Fresh (non-cached) engine resolutions by tier.",
}, []string{"tier"})

func init() {
	prometheus.MustRegister(resolutionsTotal)
}
