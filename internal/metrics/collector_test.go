package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollectorRecordsSeries(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("test", reg, nil)

	c.RecordRound(120 * time.Millisecond)
	c.RecordRound(80 * time.Millisecond)
	c.RecordModelCall("openai", 200*time.Millisecond, 100, 40, 0.5)
	c.RecordToolCall("search", 30*time.Millisecond, true)
	c.RecordToolCall("search", 25*time.Millisecond, false)

	assert.Equal(t, float64(2), testutil.ToFloat64(c.roundsTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.modelCallsTotal.WithLabelValues("openai")))
	assert.Equal(t, float64(100), testutil.ToFloat64(c.tokensUsedTotal.WithLabelValues("openai", "prompt")))
	assert.Equal(t, float64(40), testutil.ToFloat64(c.tokensUsedTotal.WithLabelValues("openai", "completion")))
	assert.Equal(t, 0.5, testutil.ToFloat64(c.costTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.toolCallsTotal.WithLabelValues("search", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.toolCallsTotal.WithLabelValues("search", "error")))
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.RecordRound(time.Second)
	c.RecordModelCall("p", time.Second, 1, 1, 0)
	c.RecordToolCall("t", time.Second, true)
}
