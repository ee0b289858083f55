package session

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/edura/edura-core/internal/logger"
	"github.com/edura/edura-core/internal/metrics"
)

// Janitor periodically drops sessions older than a TTL.
type Janitor struct {
	cron    *cron.Cron
	store   Store
	ttl     time.Duration
	metrics *metrics.Collector
	now     func() time.Time
}

// NewJanitor schedules sweeps on a cron spec such as "@every 1m".
func NewJanitor(store Store, ttl time.Duration, schedule string, m *metrics.Collector) (*Janitor, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive, got %s", ttl)
	}
	j := &Janitor{
		cron:    cron.New(),
		store:   store,
		ttl:     ttl,
		metrics: m,
		now:     time.Now,
	}
	if _, err := j.cron.AddFunc(schedule, j.Sweep); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return j, nil
}

func (j *Janitor) Start() {
	j.cron.Start()
	logger.L.Info("session janitor started", "ttl", j.ttl.String())
}

// Stop halts the schedule and waits for a running sweep to finish or ctx to end.
func (j *Janitor) Stop(ctx context.Context) {
	select {
	case <-j.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// Sweep runs one expiry pass.
func (j *Janitor) Sweep() {
	n := j.store.Sweep(j.now().Add(-j.ttl))
	if n == 0 {
		return
	}
	j.metrics.SetSessions(j.store.Len())
	logger.L.Info("expired sessions removed", "count", n)
}
