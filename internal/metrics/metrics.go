// Package metrics exposes Prometheus collectors for the console service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	streamBatchesTotal         prometheus.Counter
	streamEventsTotal          prometheus.Counter
	streamBytesTotal           prometheus.Counter
	streamPaddingBytesTotal    prometheus.Counter
	streamTransportFaultsTotal *prometheus.CounterVec
	streamDroppedEventsTotal   prometheus.Counter
	relayLinesTotal            *prometheus.CounterVec
	operationsTotal            *prometheus.CounterVec
	activeStreams              prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times; the Observe helpers call
// it themselves.
func Init() {
	once.Do(func() {
		streamBatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "webconsole_stream_batches_total",
			Help: "Batches drained to a live transport.",
		})
		streamEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "webconsole_stream_events_total",
			Help: "Events written to a live transport.",
		})
		streamBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "webconsole_stream_bytes_total",
			Help: "Bytes handed to a live transport, padding included.",
		})
		streamPaddingBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "webconsole_stream_padding_bytes_total",
			Help: "Anti-buffering filler bytes appended to short batches.",
		})
		streamTransportFaultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "webconsole_stream_transport_faults_total",
			Help: "Transport write or flush failures, labeled by stage.",
		}, []string{"stage"})
		streamDroppedEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "webconsole_stream_dropped_events_total",
			Help: "Events dropped because the scheduler buffer was full or closed.",
		})
		relayLinesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "webconsole_relay_lines_total",
			Help: "Relay lines processed, labeled by direction and type.",
		}, []string{"direction", "type"})
		operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "webconsole_operations_total",
			Help: "Monitored operations run, labeled by operation and result.",
		}, []string{"operation", "result"})
		activeStreams = promauto.NewGauge(prometheus.GaugeOpts{
			Name: "webconsole_active_streams",
			Help: "Streams currently attached to a viewer.",
		})
		httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		}, []string{"method", "code"})
		httpRequestDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30, 120},
		}, []string{"method", "route"})
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveBatch records one drained batch.
func ObserveBatch(events, bytes, padding int) {
	Init()
	streamBatchesTotal.Inc()
	streamEventsTotal.Add(float64(events))
	streamBytesTotal.Add(float64(bytes))
	if padding > 0 {
		streamPaddingBytesTotal.Add(float64(padding))
	}
}

// ObserveTransportFault counts a failed write or flush.
func ObserveTransportFault(stage string) {
	Init()
	streamTransportFaultsTotal.WithLabelValues(stage).Inc()
}

// ObserveDropped counts events that never reached a transport.
func ObserveDropped(n int) {
	Init()
	streamDroppedEventsTotal.Add(float64(n))
}

// ObserveRelayLine counts a relay line sent or received.
func ObserveRelayLine(direction, lineType string) {
	Init()
	relayLinesTotal.WithLabelValues(direction, lineType).Inc()
}

// ObserveOperation counts a finished operation.
func ObserveOperation(name, result string) {
	Init()
	operationsTotal.WithLabelValues(name, result).Inc()
}

// IncActiveStreams increments the active streams gauge.
func IncActiveStreams() {
	Init()
	activeStreams.Inc()
}

// DecActiveStreams decrements the active streams gauge.
func DecActiveStreams() {
	Init()
	activeStreams.Dec()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
