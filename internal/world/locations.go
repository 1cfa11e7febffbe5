package world

import (
	"fmt"
	"math"
)

// LocationID names a location on the grid.
type LocationID string

// Location is a named place with an anchor hex used as a trade rendezvous.
// Queue slots are spread evenly on a circle around the anchor.
type Location struct {
	ID          LocationID `json:"id"`
	Anchor      HexCoord   `json:"anchor"`
	Footprint   int        `json:"footprint"` // Hex radius counted as "at" this location
	QueueSlots  int        `json:"queue_slots"`
	QueueRadius float64    `json:"queue_radius"`
}

// Contains reports whether c lies within the location's footprint.
func (l *Location) Contains(c HexCoord) bool {
	return Distance(l.Anchor, c) <= l.Footprint
}

// SlotPoint returns the cartesian position of queue slot i: angle 2π·i/n on
// a circle of QueueRadius around the anchor.
func (l *Location) SlotPoint(i int) (x, y float64) {
	ax, ay := l.Anchor.Point()
	if l.QueueSlots <= 0 {
		return ax, ay
	}
	theta := 2 * math.Pi * float64(i) / float64(l.QueueSlots)
	return ax + l.QueueRadius*math.Cos(theta), ay + l.QueueRadius*math.Sin(theta)
}

// SlotCoord returns the hex holding queue slot i.
func (l *Location) SlotCoord(i int) HexCoord {
	return FromPoint(l.SlotPoint(i))
}

// SlotNode returns the grid node index of queue slot i, or -1 off-grid.
func (l *Location) SlotNode(g *Grid, i int) int {
	if idx, ok := g.NodeIndex(l.SlotCoord(i)); ok {
		return idx
	}
	return -1
}

// Locations is the registry of named locations, in insertion order.
type Locations struct {
	list []*Location
	byID map[LocationID]*Location
}

// NewLocations returns an empty registry.
func NewLocations() *Locations {
	return &Locations{byID: make(map[LocationID]*Location)}
}

// Add registers a location. Footprint defaults to cover the queue ring.
func (ls *Locations) Add(l Location) (*Location, error) {
	if l.ID == "" {
		return nil, fmt.Errorf("location at %v: empty id", l.Anchor)
	}
	if _, dup := ls.byID[l.ID]; dup {
		return nil, fmt.Errorf("location %q: duplicate id", l.ID)
	}
	if l.QueueSlots < 0 {
		l.QueueSlots = 0
	}
	if l.QueueRadius < 0 {
		l.QueueRadius = 0
	}
	if need := int(math.Ceil(l.QueueRadius)); l.Footprint < need {
		l.Footprint = need
	}
	loc := &l
	ls.list = append(ls.list, loc)
	ls.byID[loc.ID] = loc
	return loc, nil
}

// Get returns a location by id.
func (ls *Locations) Get(id LocationID) (*Location, bool) {
	l, ok := ls.byID[id]
	return l, ok
}

// At returns the location whose footprint contains c. When footprints
// overlap, the location with the nearest anchor wins, then the first registered.
func (ls *Locations) At(c HexCoord) (LocationID, bool) {
	var best *Location
	bestDist := 0
	for _, l := range ls.list {
		if !l.Contains(c) {
			continue
		}
		d := Distance(l.Anchor, c)
		if best == nil || d < bestDist {
			best, bestDist = l, d
		}
	}
	if best == nil {
		return "", false
	}
	return best.ID, true
}

// All returns every location in registration order.
func (ls *Locations) All() []*Location {
	return ls.list
}
