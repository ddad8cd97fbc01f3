package sinks

import (
	"fmt"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/webconsole/internal/console"
)

// MetricsSink exports console activity via Prometheus: events by kind and
// severity plus the last reported percent.
type MetricsSink struct {
	events    *prometheus.CounterVec
	transient prometheus.Counter
	progress  prometheus.Gauge

	last atomic.Int64
}

// NewMetricsSink registers the collectors against the provided registry.
func NewMetricsSink(reg prometheus.Registerer) (*MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &MetricsSink{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webconsole_events_total",
			Help: "Console events emitted, partitioned by kind and severity.",
		}, []string{"kind", "severity"}),
		transient: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "webconsole_transient_status_total",
			Help: "Transient status updates emitted.",
		}),
		progress: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "webconsole_progress_percent",
			Help: "Last global percent reported by the monitored operation.",
		}),
	}
	for _, collector := range []prometheus.Collector{s.events, s.transient, s.progress} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register console collector: %w", err)
		}
	}
	return s, nil
}

// Emit counts the event.
func (s *MetricsSink) Emit(evt console.Event) {
	switch evt.Kind {
	case console.KindProgress:
		_ = s.SetProgress(evt.Percent)
	case console.KindTransientStatus:
		s.transient.Inc()
	default:
		sev := string(evt.Severity)
		if sev == "" {
			sev = "none"
		}
		s.events.WithLabelValues(string(evt.Kind), sev).Inc()
	}
}

// SetProgress updates the progress gauge.
func (s *MetricsSink) SetProgress(percent int) error {
	if err := console.CheckPercent(percent); err != nil {
		return err
	}
	s.last.Store(int64(percent))
	s.progress.Set(float64(percent))
	return nil
}

// SetTransientStatus counts the update.
func (s *MetricsSink) SetTransientStatus(string, ...any) {
	s.transient.Inc()
}

// Flush implements console.Sink; it performs no action.
func (s *MetricsSink) Flush() {}

// Progress returns the last recorded percent.
func (s *MetricsSink) Progress() int {
	return int(s.last.Load())
}
