package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "workx"

// Metrics groups the collectors the coordinator updates.
type Metrics struct {
	ReconcileRuns      *prometheus.CounterVec
	ReconcileTriggers  *prometheus.CounterVec
	TranscriptReads    *prometheus.CounterVec
	KnownTranscripts   prometheus.Gauge
	BackendEvents      *prometheus.CounterVec
	SessionTransitions *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ReconcileRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transcripts",
			Name:      "reconcile_runs_total",
			Help:      "Transcript reconciliation cycles by outcome.",
		}, []string{"outcome"}),
		ReconcileTriggers: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transcripts",
			Name:      "reconcile_triggers_total",
			Help:      "Requests to reconcile transcripts by trigger.",
		}, []string{"trigger"}),
		TranscriptReads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transcripts",
			Name:      "reads_total",
			Help:      "Transcript file reads by result.",
		}, []string{"result"}),
		KnownTranscripts: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "transcripts",
			Name:      "known_files",
			Help:      "Transcript files incorporated into the display logs.",
		}),
		BackendEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "backend_events_total",
			Help:      "Backend notifications received by name.",
		}, []string{"event"}),
		SessionTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "transitions_total",
			Help:      "Recording session transitions by resulting mode and phase.",
		}, []string{"mode", "phase"}),
	}
}

// Handler exposes a registry in the Prometheus text format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
