package download

import "github.com/prometheus/client_golang/prometheus"

var (
	bytesDownloaded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mailmind",
		Subsystem: "download",
		Name:      "bytes_total",
		Help:      "Model bytes fetched over HTTP",
	})

	downloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mailmind",
			Subsystem: "download",
			Name:      "completed_total",
			Help:      "Completed downloads by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(bytesDownloaded, downloadsTotal)
}
