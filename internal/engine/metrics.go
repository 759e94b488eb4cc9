package engine

import "github.com/prometheus/client_golang/prometheus"

var (
	loadsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mailmind",
		Subsystem: "engine",
		Name:      "model_loads_total",
		Help:      "Successful model loads",
	})

	loadFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mailmind",
		Subsystem: "engine",
		Name:      "model_load_failures_total",
		Help:      "Failed model loads",
	})

	generationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mailmind",
		Subsystem: "engine",
		Name:      "generations_total",
		Help:      "Generation passes started",
	})

	tokensEmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mailmind",
		Subsystem: "engine",
		Name:      "tokens_emitted_total",
		Help:      "Text fragments emitted by generation",
	})
)

func init() {
	prometheus.MustRegister(loadsTotal, loadFailures, generationsTotal, tokensEmitted)
}
