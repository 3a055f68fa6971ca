// Package metrics records Prometheus counters for the intake conversation pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder holds the intake counters. A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry prometheus.Gatherer

	routedTotal      *prometheus.CounterVec
	duplicatesTotal  prometheus.Counter
	validationFailed *prometheus.CounterVec
	completedTotal   prometheus.Counter
	sendFailures     *prometheus.CounterVec
	notifyFailures   prometheus.Counter
	staleRetries     prometheus.Counter
}

// NewRecorder registers the counters on reg. Pass prometheus.NewRegistry() in tests.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		routedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "intake_messages_routed_total",
				Help: "Inbound messages routed, by flow and routing reason",
			},
			[]string{"flow", "reason"},
		),
		duplicatesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "intake_duplicate_messages_total",
			Help: "Inbound messages dropped as channel re-deliveries",
		}),
		validationFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "intake_validation_failures_total",
				Help: "Answers rejected by the validator, by question id",
			},
			[]string{"question_id"},
		),
		completedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "intake_questionnaires_completed_total",
			Help: "Questionnaires completed and handed to the lead notifier",
		}),
		sendFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "intake_outbound_failures_total",
				Help: "Outbound sends that failed, by gateway",
			},
			[]string{"gateway"},
		),
		notifyFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "intake_lead_notify_failures_total",
			Help: "Lead notifications that failed and were queued for reconciliation",
		}),
		staleRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "intake_stale_version_retries_total",
			Help: "Turns re-run after losing a session version race",
		}),
	}
}

// Gatherer exposes the registry for the /metrics handler
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.DefaultGatherer
	}
	return r.registry
}

func (r *Recorder) Routed(flow, reason string) {
	if r == nil {
		return
	}
	r.routedTotal.WithLabelValues(flow, reason).Inc()
}

func (r *Recorder) Duplicate() {
	if r == nil {
		return
	}
	r.duplicatesTotal.Inc()
}

func (r *Recorder) ValidationFailed(questionID string) {
	if r == nil {
		return
	}
	r.validationFailed.WithLabelValues(questionID).Inc()
}

func (r *Recorder) Completed() {
	if r == nil {
		return
	}
	r.completedTotal.Inc()
}

func (r *Recorder) SendFailed(gateway string) {
	if r == nil {
		return
	}
	r.sendFailures.WithLabelValues(gateway).Inc()
}

func (r *Recorder) NotifyFailed() {
	if r == nil {
		return
	}
	r.notifyFailures.Inc()
}

func (r *Recorder) StaleRetry() {
	if r == nil {
		return
	}
	r.staleRetries.Inc()
}
