package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineRunFiresLayers(t *testing.T) {
	e := NewEngine(time.Minute)
	e.SetSpeed(-1)
	var ticks, hours, days int
	var last time.Duration
	e.OnTick = func(tick uint64, now time.Duration) {
		ticks++
		last = now
	}
	e.OnHour = func(uint64) { hours++ }
	e.OnDay = func(uint64) { days++ }

	require.NoError(t, e.Run(context.Background(), 24*60))

	assert.Equal(t, 24*60, ticks)
	assert.Equal(t, 24, hours)
	assert.Equal(t, 1, days)
	assert.Equal(t, 24*time.Hour, last)
	assert.Equal(t, uint64(24*60), e.Tick)
}

func TestEngineStopsOnCancel(t *testing.T) {
	e := NewEngine(time.Minute)
	e.SetSpeed(0)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := e.Run(ctx, 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, e.Tick, "paused engine does not advance")
}

func TestSimTime(t *testing.T) {
	assert.Equal(t, "Day 1, 0:00", SimTime(0))
	assert.Equal(t, "Day 1, 13:05", SimTime(13*time.Hour+5*time.Minute))
	assert.Equal(t, "Day 3, 1:30", SimTime(49*time.Hour+30*time.Minute))
}
