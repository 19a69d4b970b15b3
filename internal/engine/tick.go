package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Clock drives automatic advancement: every Interval of wall time it calls
// OnAdvance once.
type Clock struct {
	Interval time.Duration // wall time between advancements
	Speed    float64       // multiplier on the interval rate: 1.0 = as configured, 0 = paused

	// OnAdvance runs on each step with the step counter. Populated during setup.
	OnAdvance func(ctx context.Context, step uint64)

	mu      sync.Mutex
	step    uint64
	running bool
	stop    chan struct{}
}

// NewClock creates a clock with default settings.
func NewClock(interval time.Duration) *Clock {
	return &Clock{
		Interval: interval,
		Speed:    1.0,
	}
}

// Run starts the advancement loop. Blocks until Stop is called or ctx ends.
func (c *Clock) Run(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.stop = make(chan struct{})
	stop := c.stop
	c.mu.Unlock()

	slog.Info("simulation clock started", "interval", c.Interval, "speed", c.Speed)
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
		slog.Info("simulation clock stopped", "steps", c.Steps())
	}()

	for {
		wait := 100 * time.Millisecond // paused: check again shortly
		if c.Speed > 0 {
			wait = time.Duration(float64(c.Interval) / c.Speed)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
		}
		if c.Speed > 0 {
			c.advance(ctx)
		}
	}
}

// Stop halts the loop.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running && c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

// Running reports whether the loop is active.
func (c *Clock) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Steps returns how many advancements have run.
func (c *Clock) Steps() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

func (c *Clock) advance(ctx context.Context) {
	c.mu.Lock()
	c.step++
	step := c.step
	c.mu.Unlock()

	if c.OnAdvance != nil {
		c.OnAdvance(ctx, step)
	}
}
