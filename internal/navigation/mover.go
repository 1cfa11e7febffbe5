// Package navigation moves agents toward their destinations along straight
// hex lines. It does no path-finding: terrain only matters for placement.
package navigation

import (
	"github.com/talgya/worldsim/internal/agents"
	"github.com/talgya/worldsim/internal/world"
)

// Mover steps agents a fixed number of hexes per tick.
type Mover struct {
	Grid      *world.Grid
	Locations *world.Locations
	Speed     int // Hexes per tick
}

// NewMover creates a mover. Speed below 1 is raised to 1.
func NewMover(g *world.Grid, locs *world.Locations, speed int) *Mover {
	return &Mover{Grid: g, Locations: locs, Speed: max(speed, 1)}
}

// Place puts an agent on the grid at its current position.
func (m *Mover) Place(a *agents.Agent) {
	m.Grid.Enter(a.Position)
	a.Location = m.locationAt(a.Position)
}

// SetDestination starts moving an agent toward dst.
func (m *Mover) SetDestination(a *agents.Agent, dst world.HexCoord) {
	a.Nav.Destination = &dst
	a.Nav.Arrived = a.Position == dst
	a.Nav.Moving = !a.Nav.Arrived
}

// ClearDestination stops an agent where it stands.
func (m *Mover) ClearDestination(a *agents.Agent) {
	a.Nav = agents.NavState{}
}

// IsMoving reports whether the agent is still under way.
func (m *Mover) IsMoving(a *agents.Agent) bool {
	return a.Nav.Moving
}

// HasArrived reports whether the agent reached its destination.
func (m *Mover) HasArrived(a *agents.Agent) bool {
	return a.Nav.Arrived
}

// Location returns the named location the agent stands in.
func (m *Mover) Location(a *agents.Agent) agents.LocationID {
	return a.Location
}

// Teleport moves an agent instantly, dropping any destination.
func (m *Mover) Teleport(a *agents.Agent, c world.HexCoord) {
	m.Grid.Leave(a.Position)
	a.Position = c
	m.Grid.Enter(c)
	a.Location = m.locationAt(c)
	a.Nav = agents.NavState{}
}

// Step advances one agent by up to Speed hexes.
func (m *Mover) Step(a *agents.Agent) {
	dst := a.Nav.Destination
	if dst == nil || !a.Nav.Moving {
		return
	}
	for i := 0; i < m.Speed && a.Position != *dst; i++ {
		next := a.Position.StepToward(*dst)
		m.Grid.Leave(a.Position)
		m.Grid.Enter(next)
		a.Position = next
	}
	a.Location = m.locationAt(a.Position)
	if a.Position == *dst {
		a.Nav.Moving = false
		a.Nav.Arrived = true
	}
}

// StepAll advances every live agent.
func (m *Mover) StepAll(all []*agents.Agent) {
	for _, a := range all {
		if a.Alive {
			m.Step(a)
		}
	}
}

func (m *Mover) locationAt(c world.HexCoord) agents.LocationID {
	if m.Locations == nil {
		return ""
	}
	id, _ := m.Locations.At(c)
	return id
}
