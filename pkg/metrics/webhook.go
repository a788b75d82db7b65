package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics tracks the payment webhook pipeline.
type WebhookMetrics struct {
	handled  *prometheus.CounterVec
	failed   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewWebhookMetrics registers the webhook metrics on the provided
// registerer. A nil registerer yields a no-op recorder (tests).
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	handled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_handled",
		Help: "Webhook events by type and outcome (processed, duplicate, ignored).",
	}, []string{"event_type", "outcome"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_failed",
		Help: "Webhook events whose handler returned an error.",
	}, []string{"event_type"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webhook_handler_duration_seconds",
		Help:    "Duration of webhook handling in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"event_type"})
	reg.MustRegister(handled, failed, duration)
	return &WebhookMetrics{
		handled:  handled,
		failed:   failed,
		duration: duration,
	}
}

// IncHandled counts one handled event with its outcome.
func (w *WebhookMetrics) IncHandled(eventType, outcome string) {
	if w == nil || w.handled == nil {
		return
	}
	w.handled.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// IncFailed counts one failed event.
func (w *WebhookMetrics) IncFailed(eventType string) {
	if w == nil || w.failed == nil {
		return
	}
	w.failed.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// ObserveDuration records the handler duration for the event type.
func (w *WebhookMetrics) ObserveDuration(eventType string, duration time.Duration) {
	if w == nil || w.duration == nil {
		return
	}
	w.duration.WithLabelValues(normalizeLabel(eventType)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
