package world

import (
	"fmt"
	"time"
)

// Holder identifies whoever holds a node reservation (an agent id). Zero is nobody.
type Holder uint64

// Terrain types for grid nodes.
type Terrain uint8

const (
	TerrainOpen  Terrain = iota // Walkable, suitable for locations
	TerrainRough                // Walkable, never hosts a location
	TerrainWater                // Ignored by location placement
)

// Reservation is a time-boxed claim on a node. It lapses on its own once
// the current time passes Until.
type Reservation struct {
	By    Holder        `json:"by,omitempty"`
	Until time.Duration `json:"until,omitempty"`
}

// Active reports whether the reservation still holds at time now.
func (r Reservation) Active(now time.Duration) bool {
	return r.By != 0 && now < r.Until
}

// Node is one hex of the grid.
type Node struct {
	Coord       HexCoord    `json:"coord"`
	Terrain     Terrain     `json:"terrain"`
	Elevation   float64     `json:"elevation"`
	Occupancy   int         `json:"occupancy"` // Agents standing on this node
	Reservation Reservation `json:"reservation"`
}

// Grid holds every node of a hexagonal world, addressed by a stable index.
type Grid struct {
	Nodes  []Node `json:"-"`
	Radius int    `json:"radius"`

	index map[HexCoord]int
}

// NewGrid creates an open grid of the given radius.
// A hex grid of radius R contains hexes where max(|q|, |r|, |s|) <= R.
func NewGrid(radius int) *Grid {
	g := &Grid{Radius: radius, index: make(map[HexCoord]int)}
	for q := -radius; q <= radius; q++ {
		for r := -radius; r <= radius; r++ {
			c := HexCoord{Q: q, R: r}
			if !g.InBounds(c) {
				continue
			}
			g.index[c] = len(g.Nodes)
			g.Nodes = append(g.Nodes, Node{Coord: c})
		}
	}
	return g
}

// InBounds returns true if the coordinate is within the grid radius.
func (g *Grid) InBounds(c HexCoord) bool {
	return max(abs(c.Q), abs(c.R), abs(c.S())) <= g.Radius
}

// NodeIndex returns the index of the node at c.
func (g *Grid) NodeIndex(c HexCoord) (int, bool) {
	i, ok := g.index[c]
	return i, ok
}

// Node returns the node at index i, or nil when out of range.
func (g *Grid) Node(i int) *Node {
	if i < 0 || i >= len(g.Nodes) {
		return nil
	}
	return &g.Nodes[i]
}

// Reserve claims node i for holder until the given time. It succeeds when the
// node is unreserved, its reservation has lapsed, or holder already owns it
// (which renews the claim).
func (g *Grid) Reserve(i int, holder Holder, now, until time.Duration) bool {
	n := g.Node(i)
	if n == nil || holder == 0 {
		return false
	}
	if n.Reservation.Active(now) && n.Reservation.By != holder {
		return false
	}
	n.Reservation = Reservation{By: holder, Until: until}
	return true
}

// Release drops holder's reservation on node i. Someone else's claim is left alone.
func (g *Grid) Release(i int, holder Holder) {
	n := g.Node(i)
	if n == nil || n.Reservation.By != holder {
		return
	}
	n.Reservation = Reservation{}
}

// ReservedBy returns the active holder of node i at time now.
func (g *Grid) ReservedBy(i int, now time.Duration) (Holder, bool) {
	n := g.Node(i)
	if n == nil || !n.Reservation.Active(now) {
		return 0, false
	}
	return n.Reservation.By, true
}

// Enter records an agent stepping onto the node at c.
func (g *Grid) Enter(c HexCoord) {
	if i, ok := g.index[c]; ok {
		g.Nodes[i].Occupancy++
	}
}

// Leave records an agent stepping off the node at c.
func (g *Grid) Leave(c HexCoord) {
	if i, ok := g.index[c]; ok && g.Nodes[i].Occupancy > 0 {
		g.Nodes[i].Occupancy--
	}
}

// NodeCount returns the total number of nodes.
func (g *Grid) NodeCount() int {
	return len(g.Nodes)
}

// String returns a summary of the grid.
func (g *Grid) String() string {
	return fmt.Sprintf("Grid(radius=%d, nodes=%d)", g.Radius, g.NodeCount())
}
