package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Records(t *testing.T) {
	c := NewCollector(nil)

	c.ObserveUpstream("openai", OutcomeOK, 2*time.Second)
	c.ObserveUpstream("openai", OutcomeConfigError, 0)
	c.AddFrames("openai", 3)
	c.SetSessions(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.upstreamRequests.WithLabelValues("openai", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.upstreamRequests.WithLabelValues("openai", OutcomeConfigError)))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.frames.WithLabelValues("openai")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.sessions))
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveUpstream("azure", OutcomeOK, time.Second)
		c.AddFrames("azure", 1)
		c.SetSessions(1)
	})
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector(nil)
	c.SetSessions(4)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "edura_sessions_active 4")
}
