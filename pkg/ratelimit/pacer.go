// Package ratelimit implements request pacing against the RESTlet's
// burst-sensitive OAuth validation. The pacer is a leaky bucket that
// grants submission slots at a fixed interval, which both bounds the
// request rate and guarantees that concurrently dispatched signatures
// carry distinct timestamps.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var pacerWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "restlet_pacer_wait_seconds",
	Help:    "Time spent waiting for a submission slot",
	Buckets: []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5},
})

// Pacer grants submission slots spaced at least Interval apart. Safe
// for concurrent use; callers block in Wait until their slot arrives.
type Pacer struct {
	interval time.Duration

	mu   sync.Mutex
	next time.Time
}

// NewPacer creates a pacer with the given slot interval. A zero or
// negative interval disables pacing.
func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{interval: interval}
}

// Wait blocks until the caller's slot arrives or the context is
// cancelled. Slots are handed out in call order.
func (p *Pacer) Wait(ctx context.Context) error {
	if p.interval <= 0 {
		return ctx.Err()
	}

	p.mu.Lock()
	now := time.Now()
	if p.next.Before(now) {
		p.next = now
	}
	wait := p.next.Sub(now)
	p.next = p.next.Add(p.interval)
	p.mu.Unlock()

	if wait <= 0 {
		return nil
	}

	pacerWaitSeconds.Observe(wait.Seconds())

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Interval returns the configured slot spacing.
func (p *Pacer) Interval() time.Duration {
	return p.interval
}
