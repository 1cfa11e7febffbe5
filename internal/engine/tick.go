// Package engine provides the trade negotiation engine and the tick loop
// that drives it.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Engine drives the simulation forward.
type Engine struct {
	Tick     uint64        // Current tick counter (monotonic, never resets)
	Now      time.Duration // Sim time since world start
	SimStep  time.Duration // Sim time advanced per tick
	Interval time.Duration // Wall-clock tick interval at speed 1.0

	// Callbacks for each tick layer, populated during setup.
	OnTick func(tick uint64, now time.Duration) // Every tick
	OnHour func(tick uint64)                    // When sim time crosses an hour
	OnDay  func(tick uint64)                    // When sim time crosses a day

	mu    sync.Mutex
	speed float64 // 1.0 = real-time, 0 = paused, < 0 = as fast as possible
}

// NewEngine creates a simulation engine with default settings.
func NewEngine(simStep time.Duration) *Engine {
	if simStep <= 0 {
		simStep = time.Minute
	}
	return &Engine{
		SimStep:  simStep,
		Interval: time.Second,
		speed:    1.0,
	}
}

// Speed returns the current speed multiplier.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetSpeed changes the speed multiplier. 0 pauses; negative runs unthrottled.
func (e *Engine) SetSpeed(v float64) {
	e.mu.Lock()
	e.speed = v
	e.mu.Unlock()
	slog.Info("engine speed changed", "speed", v)
}

// Run starts the simulation loop. Blocks until ctx is done or maxTicks
// ticks have run (0 = unbounded).
func (e *Engine) Run(ctx context.Context, maxTicks uint64) error {
	slog.Info("simulation engine started", "tick", e.Tick, "speed", e.Speed())
	defer func() { slog.Info("simulation engine stopped", "tick", e.Tick) }()

	var ran uint64
	for maxTicks == 0 || ran < maxTicks {
		if err := ctx.Err(); err != nil {
			return err
		}
		speed := e.Speed()
		if speed == 0 {
			// Paused; check again shortly.
			if err := sleep(ctx, 100*time.Millisecond); err != nil {
				return err
			}
			continue
		}

		start := time.Now()
		e.StepOnce()
		ran++

		if speed < 0 {
			continue
		}
		// Sleep for the remainder of the tick interval, adjusted for speed.
		target := time.Duration(float64(e.Interval) / speed)
		if elapsed := time.Since(start); elapsed < target {
			if err := sleep(ctx, target-elapsed); err != nil {
				return err
			}
		}
	}
	return nil
}

// StepOnce advances the simulation by one tick.
func (e *Engine) StepOnce() {
	prev := e.Now
	e.Tick++
	e.Now += e.SimStep

	if e.OnTick != nil {
		e.OnTick(e.Tick, e.Now)
	}
	if e.OnHour != nil && crossedBoundary(prev, e.Now, time.Hour) {
		e.OnHour(e.Tick)
	}
	if e.OnDay != nil && crossedBoundary(prev, e.Now, 24*time.Hour) {
		e.OnDay(e.Tick)
	}
}

func crossedBoundary(prev, now, period time.Duration) bool {
	return prev/period != now/period
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SimTime returns a human-readable simulation time string.
func SimTime(now time.Duration) string {
	totalMinutes := int64(now / time.Minute)
	minutes := totalMinutes % 60
	totalHours := totalMinutes / 60
	hours := totalHours % 24
	days := totalHours/24 + 1
	return fmt.Sprintf("Day %d, %d:%02d", days, hours, minutes)
}
