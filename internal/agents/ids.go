package agents

import (
	"strings"

	"github.com/talgya/worldsim/internal/world"
)

// MaxIDBytes is the capacity of an interned id. Longer names are truncated
// on a rune boundary so two ids built from the same source always compare equal.
const MaxIDBytes = 61

// NeedID names a need ("hunger", "thirst").
type NeedID string

// ResourceID names a tradeable resource ("food", "water").
type ResourceID string

// ActivityID names a schedule activity.
type ActivityID string

// LocationID names a location on the grid.
type LocationID = world.LocationID

// SignalID names an emitted signal.
type SignalID string

// Intern normalizes a raw name into a fixed-capacity id.
func Intern[T ~string](raw string) T {
	s := strings.TrimSpace(raw)
	if len(s) <= MaxIDBytes {
		return T(s)
	}
	cut := MaxIDBytes
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return T(s[:cut])
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
