// Package entropy provides seeded, per-agent random streams.
// Each agent owns its own stream so replaying a world from the same seed
// reproduces every jittered retry exactly, independent of agent ordering.
package entropy

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
)

// Stream is a deterministic PCG stream. The zero value is not usable; use NewStream.
type Stream struct {
	pcg *rand.PCG
	rng *rand.Rand
}

// NewStream derives a stream from the world seed and a per-owner key.
func NewStream(worldSeed int64, key uint64) *Stream {
	pcg := rand.NewPCG(uint64(worldSeed), mix(key))
	return &Stream{pcg: pcg, rng: rand.New(pcg)}
}

// Float returns a float64 in [0, 1).
func (s *Stream) Float() float64 {
	return s.rng.Float64()
}

// Symmetric returns a value uniformly distributed in [-span, +span].
func (s *Stream) Symmetric(span float64) float64 {
	if span <= 0 {
		return 0
	}
	return (s.rng.Float64()*2 - 1) * span
}

// IntN returns an int in [0, n). n must be positive.
func (s *Stream) IntN(n int) int {
	return s.rng.IntN(n)
}

// MarshalJSON persists the generator state so a restored world continues the same sequence.
func (s *Stream) MarshalJSON() ([]byte, error) {
	b, err := s.pcg.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return json.Marshal(b)
}

// UnmarshalJSON restores state written by MarshalJSON.
func (s *Stream) UnmarshalJSON(data []byte) error {
	var b []byte
	if err := json.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("entropy state: %w", err)
	}
	pcg := rand.NewPCG(0, 0)
	if err := pcg.UnmarshalBinary(b); err != nil {
		return fmt.Errorf("entropy state: %w", err)
	}
	s.pcg = pcg
	s.rng = rand.New(pcg)
	return nil
}

// mix is splitmix64's finalizer; spreads adjacent keys across the state space.
func mix(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
