// Package metrics defines the Prometheus instrumentation for the recording
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles all counters, gauges, and histograms for the service.
type Metrics struct {
	// Session metrics
	ActiveSessions    prometheus.Gauge
	SessionsStarted   prometheus.Counter
	SessionsCompleted prometheus.Counter
	SessionsFailed    *prometheus.CounterVec
	SessionsAbandoned prometheus.Counter

	// Capture metrics
	FramesReceived  prometheus.Counter
	CaptureDuration prometheus.Histogram
	CeilingStops    prometheus.Counter

	// Pipeline metrics
	StageDuration *prometheus.HistogramVec

	// Model metrics
	ModelLoads     *prometheus.CounterVec
	ModelUnloads   *prometheus.CounterVec
	ModelLoadFails *prometheus.CounterVec
	ModelQueueWait prometheus.Histogram

	// Store metrics
	MeetingsSaved  prometheus.Counter
	MeetingsPruned prometheus.Counter
}

// New creates and registers all metrics on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voxnote_active_sessions",
			Help: "Current number of active recording sessions",
		}),
		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxnote_sessions_started_total",
			Help: "Total number of recording sessions started",
		}),
		SessionsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxnote_sessions_completed_total",
			Help: "Total number of sessions that produced a persisted meeting",
		}),
		SessionsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voxnote_sessions_failed_total",
			Help: "Total number of sessions that entered the error state, by stage",
		}, []string{"stage"}),
		SessionsAbandoned: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxnote_sessions_abandoned_total",
			Help: "Total number of sessions abandoned",
		}),

		FramesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxnote_frames_received_total",
			Help: "Total number of audio frames appended to captures",
		}),
		CaptureDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voxnote_capture_duration_seconds",
			Help:    "Duration of finalized captures",
			Buckets: prometheus.ExponentialBuckets(1, 2, 13),
		}),
		CeilingStops: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxnote_capture_ceiling_stops_total",
			Help: "Total number of recordings auto-stopped at the duration ceiling",
		}),

		StageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voxnote_stage_duration_seconds",
			Help:    "Wall-clock duration of pipeline stages",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
		}, []string{"stage"}),

		ModelLoads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voxnote_model_loads_total",
			Help: "Total number of model loads, by kind",
		}, []string{"kind"}),
		ModelUnloads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voxnote_model_unloads_total",
			Help: "Total number of model unloads, by kind",
		}, []string{"kind"}),
		ModelLoadFails: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voxnote_model_load_failures_total",
			Help: "Total number of failed model loads, by kind",
		}, []string{"kind"}),
		ModelQueueWait: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voxnote_model_queue_wait_seconds",
			Help:    "Time spent waiting to acquire a model",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 16),
		}),

		MeetingsSaved: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxnote_meetings_saved_total",
			Help: "Total number of meetings written to the store",
		}),
		MeetingsPruned: factory.NewCounter(prometheus.CounterOpts{
			Name: "voxnote_meetings_pruned_total",
			Help: "Total number of meetings deleted by retention pruning",
		}),
	}
}
