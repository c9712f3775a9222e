// Package metrics exposes Prometheus instrumentation for the reasoning
// loop: round and model-call latencies, token and cost counters, and
// per-tool call outcomes.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector registers and updates the loop's metric series.
type Collector struct {
	logger *zap.Logger

	roundsTotal   prometheus.Counter
	roundDuration prometheus.Histogram

	modelCallsTotal   *prometheus.CounterVec
	modelCallDuration *prometheus.HistogramVec
	tokensUsedTotal   *prometheus.CounterVec
	costTotal         prometheus.Counter

	toolCallsTotal   *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec
}

// NewCollector builds a collector in the given namespace. A nil registerer
// falls back to the default registry.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	return &Collector{
		logger: logger.With(zap.String("component", "metrics")),

		roundsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_total",
			Help:      "Completed reasoning rounds.",
		}),
		roundDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "round_duration_seconds",
			Help:      "Wall time per reasoning round.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		modelCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_calls_total",
			Help:      "Model invocations by provider.",
		}, []string{"provider"}),
		modelCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_call_duration_seconds",
			Help:      "Model invocation latency by provider.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"provider"}),
		tokensUsedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_used_total",
			Help:      "Tokens consumed by provider and kind.",
		}, []string{"provider", "type"}),
		costTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cost_total",
			Help:      "Accumulated model cost in the provider's currency.",
		}),
		toolCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool dispatches by tool and outcome.",
		}, []string{"tool", "outcome"}),
		toolCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Tool dispatch latency by tool.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"tool"}),
	}
}

// RecordRound counts one completed reasoning round.
func (c *Collector) RecordRound(duration time.Duration) {
	if c == nil {
		return
	}
	c.roundsTotal.Inc()
	c.roundDuration.Observe(duration.Seconds())
}

// RecordModelCall counts one model invocation with its token usage.
func (c *Collector) RecordModelCall(provider string, duration time.Duration, promptTokens, completionTokens int, cost float64) {
	if c == nil {
		return
	}
	c.modelCallsTotal.WithLabelValues(provider).Inc()
	c.modelCallDuration.WithLabelValues(provider).Observe(duration.Seconds())
	c.tokensUsedTotal.WithLabelValues(provider, "prompt").Add(float64(promptTokens))
	c.tokensUsedTotal.WithLabelValues(provider, "completion").Add(float64(completionTokens))
	if cost > 0 {
		c.costTotal.Add(cost)
	}
}

// RecordToolCall counts one tool dispatch.
func (c *Collector) RecordToolCall(tool string, duration time.Duration, success bool) {
	if c == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "error"
	}
	c.toolCallsTotal.WithLabelValues(tool, outcome).Inc()
	c.toolCallDuration.WithLabelValues(tool).Observe(duration.Seconds())
}
