// Package world provides the hex grid, named locations, node reservations,
// and queue-slot geometry. Uses axial coordinates (q, r) for the hex grid.
package world

import "math"

// HexCoord represents a position on the hex grid using axial coordinates.
// The third cube coordinate s is derived: s = -q - r.
type HexCoord struct {
	Q int `json:"q"`
	R int `json:"r"`
}

// S returns the implicit third cube coordinate.
func (h HexCoord) S() int {
	return -h.Q - h.R
}

// HexNeighborDirections defines the six neighbor offsets in axial coordinates.
var HexNeighborDirections = [6]HexCoord{
	{Q: 1, R: 0},
	{Q: 1, R: -1},
	{Q: 0, R: -1},
	{Q: -1, R: 0},
	{Q: -1, R: 1},
	{Q: 0, R: 1},
}

// Neighbors returns the six adjacent hex coordinates.
func (h HexCoord) Neighbors() [6]HexCoord {
	var result [6]HexCoord
	for i, dir := range HexNeighborDirections {
		result[i] = HexCoord{Q: h.Q + dir.Q, R: h.R + dir.R}
	}
	return result
}

// Distance returns the hex distance between two coordinates.
func Distance(a, b HexCoord) int {
	dq := abs(a.Q - b.Q)
	dr := abs(a.R - b.R)
	ds := abs(a.S() - b.S())
	return max(dq, dr, ds)
}

// Point converts a hex center to cartesian space (unit hex spacing).
func (h HexCoord) Point() (x, y float64) {
	x = float64(h.Q) + float64(h.R)*0.5
	y = float64(h.R) * math.Sqrt(3.0) / 2.0
	return x, y
}

// FromPoint returns the hex containing a cartesian point.
func FromPoint(x, y float64) HexCoord {
	r := y * 2.0 / math.Sqrt(3.0)
	q := x - r*0.5
	return cubeRound(q, r)
}

// StepToward returns the next hex on the straight line from h to dst.
func (h HexCoord) StepToward(dst HexCoord) HexCoord {
	n := Distance(h, dst)
	if n == 0 {
		return h
	}
	t := 1.0 / float64(n)
	// Nudge avoids ties landing exactly on hex edges.
	q := lerp(float64(h.Q)+1e-6, float64(dst.Q)+1e-6, t)
	r := lerp(float64(h.R)+1e-6, float64(dst.R)+1e-6, t)
	return cubeRound(q, r)
}

func cubeRound(fq, fr float64) HexCoord {
	fs := -fq - fr
	q := math.Round(fq)
	r := math.Round(fr)
	s := math.Round(fs)

	dq := math.Abs(q - fq)
	dr := math.Abs(r - fr)
	ds := math.Abs(s - fs)
	switch {
	case dq > dr && dq > ds:
		q = -r - s
	case dr > ds:
		r = -q - s
	}
	return HexCoord{Q: int(q), R: int(r)}
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
