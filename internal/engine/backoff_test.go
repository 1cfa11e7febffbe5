package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/talgya/worldsim/internal/entropy"
)

func TestBackoffDelayDoublesUpToCap(t *testing.T) {
	base, maxDelay := 15*time.Minute, 4*time.Hour
	prev := time.Duration(0)
	for attempts := 0; attempts < 12; attempts++ {
		d := BackoffDelay(attempts, base, maxDelay, 0, nil)
		assert.GreaterOrEqual(t, d, prev, "attempt %d", attempts)
		assert.LessOrEqual(t, d, maxDelay, "attempt %d", attempts)
		prev = d
	}
	assert.Equal(t, base, BackoffDelay(0, base, maxDelay, 0, nil))
	assert.Equal(t, 2*time.Hour, BackoffDelay(3, base, maxDelay, 0, nil))
	assert.Equal(t, maxDelay, BackoffDelay(60, base, maxDelay, 0, nil))
	assert.Equal(t, base, BackoffDelay(-3, base, maxDelay, 0, nil), "negative attempts count as zero")
}

func TestBackoffJitterStaysInBand(t *testing.T) {
	rng := entropy.NewStream(42, 7)
	jitter := 3 * time.Minute
	for i := 0; i < 200; i++ {
		d := BackoffDelay(1, 15*time.Minute, 4*time.Hour, jitter, rng)
		assert.GreaterOrEqual(t, d, 30*time.Minute-jitter)
		assert.LessOrEqual(t, d, 30*time.Minute+jitter)
	}
}

func TestBackoffNeverNegative(t *testing.T) {
	rng := entropy.NewStream(1, 1)
	for i := 0; i < 200; i++ {
		d := BackoffDelay(0, time.Minute, time.Hour, time.Hour, rng)
		assert.GreaterOrEqual(t, d, time.Duration(0))
	}
}

func TestBackoffReplaysFromSeed(t *testing.T) {
	a, b := entropy.NewStream(9, 3), entropy.NewStream(9, 3)
	for i := 0; i < 20; i++ {
		assert.Equal(t,
			BackoffDelay(i%5, 15*time.Minute, 4*time.Hour, 5*time.Minute, a),
			BackoffDelay(i%5, 15*time.Minute, 4*time.Hour, 5*time.Minute, b))
	}
}
