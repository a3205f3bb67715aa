package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpRequestsTotal     *prometheus.CounterVec
	httpLatencySeconds    *prometheus.HistogramVec
	httpErrorsTotal       *prometheus.CounterVec
	navigatorTransitions  *prometheus.CounterVec
	navigatorIgnored      *prometheus.CounterVec
	pendingRejections     *prometheus.CounterVec
	chatMessagesTotal     *prometheus.CounterVec
	liveParticipantsGauge prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used by the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "educlass_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "educlass_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "educlass_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		navigatorTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "educlass_navigator_transitions_total",
			Help: "Applied navigation transitions.",
		}, []string{"from", "to", "event"})

		navigatorIgnored = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "educlass_navigator_ignored_events_total",
			Help: "Navigation events that were not valid for the active view.",
		}, []string{"view", "event"})

		pendingRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "educlass_pending_rejections_total",
			Help: "Triggers rejected because the same operation was still pending.",
		}, []string{"operation"})

		chatMessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "educlass_chat_messages_total",
			Help: "Chat messages posted in live sessions.",
		}, []string{"role"})

		liveParticipantsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "educlass_live_participants",
			Help: "Participants currently inside a live session.",
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			navigatorTransitions,
			navigatorIgnored,
			pendingRejections,
			chatMessagesTotal,
			liveParticipantsGauge,
		)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the error response counter.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// NavigatorTransitions exposes the applied transition counter.
func NavigatorTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return navigatorTransitions
}

// NavigatorIgnored exposes the ignored event counter.
func NavigatorIgnored() *prometheus.CounterVec {
	RegisterMetrics()
	return navigatorIgnored
}

// PendingRejections exposes the counter of triggers refused while pending.
func PendingRejections() *prometheus.CounterVec {
	RegisterMetrics()
	return pendingRejections
}

// ChatMessages exposes the chat message counter.
func ChatMessages() *prometheus.CounterVec {
	RegisterMetrics()
	return chatMessagesTotal
}

// LiveParticipants exposes the live participant gauge.
func LiveParticipants() prometheus.Gauge {
	RegisterMetrics()
	return liveParticipantsGauge
}
