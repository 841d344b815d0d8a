package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Message outcomes recorded by ConsumerMetrics.
const (
	OutcomeProcessed = "processed"
	OutcomeSkipped   = "skipped"
	OutcomeInvalid   = "invalid"
	OutcomeFailed    = "failed"
)

// ConsumerMetrics records per-topic ingestion outcomes.
type ConsumerMetrics struct {
	messages *prometheus.CounterVec
	batch    *prometheus.HistogramVec
}

// NewConsumerMetrics registers the consumer metrics on the provided registerer.
func NewConsumerMetrics(reg prometheus.Registerer) *ConsumerMetrics {
	if reg == nil {
		return &ConsumerMetrics{}
	}
	messages := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_total",
		Help:      "Inbound events by topic and outcome.",
	}, []string{"topic", "outcome"})
	batch := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "batch_duration_seconds",
		Help:      "Time spent applying one delivery batch.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"topic"})
	reg.MustRegister(messages, batch)
	return &ConsumerMetrics{messages: messages, batch: batch}
}

// IncMessage counts one message with the given outcome.
func (c *ConsumerMetrics) IncMessage(topic, outcome string) {
	if c == nil || c.messages == nil {
		return
	}
	c.messages.WithLabelValues(normalizeLabel(topic), normalizeLabel(outcome)).Inc()
}

// ObserveBatch records how long a batch took to apply.
func (c *ConsumerMetrics) ObserveBatch(topic string, duration time.Duration) {
	if c == nil || c.batch == nil {
		return
	}
	c.batch.WithLabelValues(normalizeLabel(topic)).Observe(duration.Seconds())
}
