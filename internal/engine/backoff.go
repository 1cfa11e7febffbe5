package engine

import (
	"math"
	"time"
)

// Jitterer draws symmetric jitter; *entropy.Stream satisfies it.
type Jitterer interface {
	Symmetric(span float64) float64
}

// BackoffDelay returns min(base·2^attempts, maxDelay) plus uniform jitter in
// [-jitter, +jitter]. The result is never negative. A nil rng disables jitter.
func BackoffDelay(attempts int, base, maxDelay, jitter time.Duration, rng Jitterer) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	d := maxDelay
	if exp := float64(base) * math.Pow(2, float64(attempts)); exp < float64(maxDelay) {
		d = time.Duration(exp)
	}
	if rng != nil && jitter > 0 {
		d += time.Duration(rng.Symmetric(float64(jitter)))
	}
	if d < 0 {
		return 0
	}
	return d
}
