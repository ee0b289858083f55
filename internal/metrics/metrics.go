// Package metrics exposes Prometheus instruments for the chat relay and the
// session store. A nil *Collector is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "edura"

// Upstream request outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeConfigError = "config_error"
	OutcomeHTTPError   = "http_error"
	OutcomeTransport   = "transport_error"
	OutcomeCancelled   = "cancelled"
)

// Collector owns the registry and every instrument the service records.
type Collector struct {
	registry *prometheus.Registry

	upstreamRequests *prometheus.CounterVec
	streamDuration   *prometheus.HistogramVec
	frames           *prometheus.CounterVec
	sessions         prometheus.Gauge
}

// NewCollector creates and registers the instruments. If registry is nil a
// fresh one is created.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: registry,
		upstreamRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_requests_total",
				Help:      "Upstream chat completion calls by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		streamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_stream_seconds",
				Help:      "Wall time from upstream request to end of stream",
				Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"provider"},
		),
		frames: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stream_frames_total",
				Help:      "Raw upstream lines forwarded to clients",
			},
			[]string{"provider"},
		),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Student sessions currently held in memory",
		}),
	}

	registry.MustRegister(c.upstreamRequests, c.streamDuration, c.frames, c.sessions)
	return c
}

// ObserveUpstream records one finished upstream call.
func (c *Collector) ObserveUpstream(provider, outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.upstreamRequests.WithLabelValues(provider, outcome).Inc()
	if outcome != OutcomeConfigError {
		c.streamDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
	}
}

// AddFrames counts forwarded lines.
func (c *Collector) AddFrames(provider string, n int) {
	if c == nil || n == 0 {
		return
	}
	c.frames.WithLabelValues(provider).Add(float64(n))
}

// SetSessions updates the active session gauge.
func (c *Collector) SetSessions(n int) {
	if c == nil {
		return
	}
	c.sessions.Set(float64(n))
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns the scrape endpoint for the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
