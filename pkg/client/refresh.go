package client

import (
	"context"
	"fmt"
	"sync"
	"time"
)

var refreshIntervals = map[string]time.Duration{
	"off": 0,
	"30s": 30 * time.Second,
	"1m":  time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
}

// ParseRefreshInterval maps a dashboard refreshInterval to a duration; off is zero
func ParseRefreshInterval(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, ok := refreshIntervals[s]
	if !ok {
		return 0, fmt.Errorf("unknown refresh interval %q", s)
	}
	return d, nil
}

// AutoRefresher polls fetch at a fixed interval. Changing the interval or
// stopping cancels the scheduled poll; a poll already running completes.
type AutoRefresher struct {
	clock Clock
	fetch func(ctx context.Context) error

	// OnError receives failed polls; polling continues
	OnError func(error)

	mu         sync.Mutex
	ctx        context.Context
	interval   time.Duration
	timer      Timer
	generation int
}

func NewAutoRefresher(ctx context.Context, clock Clock, fetch func(ctx context.Context) error) *AutoRefresher {
	if clock == nil {
		clock = RealClock
	}
	return &AutoRefresher{ctx: ctx, clock: clock, fetch: fetch}
}

// SetInterval restarts polling at the given refreshInterval value
func (r *AutoRefresher) SetInterval(value string) error {
	d, err := ParseRefreshInterval(value)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
	r.interval = d
	if d > 0 {
		r.scheduleLocked(r.generation)
	}
	return nil
}

func (r *AutoRefresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
	r.interval = 0
}

func (r *AutoRefresher) stopLocked() {
	r.generation++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

func (r *AutoRefresher) scheduleLocked(gen int) {
	r.timer = r.clock.AfterFunc(r.interval, func() { r.tick(gen) })
}

func (r *AutoRefresher) tick(gen int) {
	r.mu.Lock()
	if gen != r.generation || r.ctx.Err() != nil {
		r.mu.Unlock()
		return
	}
	ctx := r.ctx
	r.mu.Unlock()

	if err := r.fetch(ctx); err != nil && r.OnError != nil {
		r.OnError(err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if gen == r.generation && r.interval > 0 {
		r.scheduleLocked(gen)
	}
}
