package counters

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var connectionGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "station",
	Name:      "connected",
	Help:      "Whether the ws connection to the central system is up",
})

var normalQueueGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "queue",
	Name:      "normal_depth",
	Help:      "Number of messages waiting in the normal queue",
})

var transactionQueueGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "queue",
	Name:      "transaction_depth",
	Help:      "Number of messages waiting in the transaction queue",
})

var sentCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "queue",
	Name:      "messages_sent",
	Help:      "Total number of messages handed to the transport.",
}, []string{"action"})

var retryCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "queue",
	Name:      "message_retries",
	Help:      "Total number of transaction message retries after a CallError.",
}, []string{"action"})

var droppedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "queue",
	Name:      "messages_dropped",
	Help:      "Total number of messages dropped without delivery.",
}, []string{"action"})

var statusCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "station",
	Name:      "status_notifications",
	Help:      "Total number of status notifications emitted.",
}, []string{"connector", "status"})

func ObserveConnected(connected bool) {
	if connected {
		connectionGauge.Set(1)
	} else {
		connectionGauge.Set(0)
	}
}

func ObserveQueueDepth(normal, transaction int) {
	normalQueueGauge.Set(float64(normal))
	transactionQueueGauge.Set(float64(transaction))
}

func CountMessageSent(action string) {
	if len(action) == 0 {
		return
	}
	sentCounter.With(prometheus.Labels{"action": action}).Inc()
}

func CountMessageRetry(action string) {
	if len(action) == 0 {
		return
	}
	retryCounter.With(prometheus.Labels{"action": action}).Inc()
}

func CountMessageDropped(action string) {
	if len(action) == 0 {
		return
	}
	droppedCounter.With(prometheus.Labels{"action": action}).Inc()
}

func CountStatusNotification(connector, status string) {
	if len(status) == 0 {
		return
	}
	statusCounter.With(prometheus.Labels{"connector": connector, "status": status}).Inc()
}
