package queue

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	batchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mailmind",
		Subsystem: "queue",
		Name:      "batches_total",
		Help:      "Batches accepted by the processing queue.",
	})
	messagesProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "mailmind",
		Subsystem: "queue",
		Name:      "messages_processed_total",
		Help:      "Messages whose chunk results were published.",
	})
)

func init() {
	prometheus.MustRegister(batchesTotal, messagesProcessed)
}
