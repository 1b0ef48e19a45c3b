package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PipelineMetrics holds all Prometheus metrics for the monitoring pipeline.
type PipelineMetrics struct {
	LinesTotal         prometheus.Counter
	EventsTotal        *prometheus.CounterVec
	BackendErrorsTotal *prometheus.CounterVec
	AlertsTotal        *prometheus.CounterVec
	ReconnectsTotal    prometheus.Counter
	StreamErrorsTotal  prometheus.Counter
}

// New initializes and registers the pipeline metrics on the default registry.
func New() *PipelineMetrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the pipeline metrics on the given registerer. Tests pass
// a fresh registry to avoid duplicate-registration panics.
func NewWith(reg prometheus.Registerer) *PipelineMetrics {
	factory := promauto.With(reg)
	return &PipelineMetrics{
		LinesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "hubble",
			Subsystem: "stream",
			Name:      "lines_total",
			Help:      "Total number of raw log lines read from the monitored container.",
		}),
		EventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hubble",
			Subsystem: "pipeline",
			Name:      "events_total",
			Help:      "Total number of classified events by event type.",
		}, []string{"type"}),
		BackendErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hubble",
			Subsystem: "backend",
			Name:      "errors_total",
			Help:      "Total number of failed backend calls by verb.",
		}, []string{"verb"}),
		AlertsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hubble",
			Subsystem: "alerts",
			Name:      "total",
			Help:      "Total number of alert attempts by outcome.",
		}, []string{"outcome"}), // outcome: sent, stale, rate_limited, send_error
		ReconnectsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "hubble",
			Subsystem: "stream",
			Name:      "reconnects_total",
			Help:      "Total number of log stream reconnects after the initial connect.",
		}),
		StreamErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "hubble",
			Subsystem: "stream",
			Name:      "errors_total",
			Help:      "Total number of stream-level failures.",
		}),
	}
}
