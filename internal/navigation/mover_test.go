package navigation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/worldsim/internal/agents"
	"github.com/talgya/worldsim/internal/world"
)

func newTestMover(t *testing.T, speed int) (*Mover, *world.Grid) {
	t.Helper()
	g := world.NewGrid(10)
	locs := world.NewLocations()
	_, err := locs.Add(world.Location{ID: "well", Anchor: world.HexCoord{Q: 5, R: 0}, Footprint: 1})
	require.NoError(t, err)
	return NewMover(g, locs, speed), g
}

func occupancy(g *world.Grid, c world.HexCoord) int {
	i, _ := g.NodeIndex(c)
	return g.Nodes[i].Occupancy
}

func TestMoverWalksToDestination(t *testing.T) {
	m, g := newTestMover(t, 1)
	a := agents.NewAgent(1, "Runa Ashford", 1)
	m.Place(a)
	assert.Equal(t, 1, occupancy(g, world.HexCoord{}))

	m.SetDestination(a, world.HexCoord{Q: 5, R: 0})
	require.True(t, m.IsMoving(a))

	for i := 0; i < 3; i++ {
		m.StepAll([]*agents.Agent{a})
	}
	assert.Equal(t, world.HexCoord{Q: 3, R: 0}, a.Position)
	assert.Equal(t, agents.LocationID(""), m.Location(a))

	m.Step(a)
	assert.Equal(t, agents.LocationID("well"), m.Location(a), "inside the footprint before the anchor")
	assert.True(t, m.IsMoving(a))

	m.Step(a)
	assert.False(t, m.IsMoving(a))
	assert.True(t, m.HasArrived(a))
	assert.Equal(t, 0, occupancy(g, world.HexCoord{}))
	assert.Equal(t, 1, occupancy(g, world.HexCoord{Q: 5, R: 0}))

	m.Step(a)
	assert.Equal(t, world.HexCoord{Q: 5, R: 0}, a.Position, "arrived agents stay put")
}

func TestMoverSpeedAndClear(t *testing.T) {
	m, _ := newTestMover(t, 0)
	assert.Equal(t, 1, m.Speed, "speed floor")

	fast, _ := newTestMover(t, 4)
	a := agents.NewAgent(1, "Leif Frostborn", 1)
	fast.Place(a)
	fast.SetDestination(a, world.HexCoord{Q: -6, R: 0})
	fast.Step(a)
	assert.Equal(t, world.HexCoord{Q: -4, R: 0}, a.Position)

	fast.ClearDestination(a)
	fast.Step(a)
	assert.Equal(t, world.HexCoord{Q: -4, R: 0}, a.Position)
	assert.False(t, fast.IsMoving(a))
}

func TestMoverTeleportAndDeadAgents(t *testing.T) {
	m, g := newTestMover(t, 1)
	a := agents.NewAgent(1, "Iris Greenvale", 1)
	m.Place(a)
	m.SetDestination(a, world.HexCoord{Q: 0, R: 3})

	m.Teleport(a, world.HexCoord{Q: 5, R: 0})
	assert.Equal(t, agents.LocationID("well"), a.Location)
	assert.False(t, m.IsMoving(a))
	assert.Equal(t, 0, occupancy(g, world.HexCoord{}))

	b := agents.NewAgent(2, "Oswin Voss", 1)
	b.Alive = false
	m.Place(b)
	m.SetDestination(b, world.HexCoord{Q: 0, R: 3})
	m.StepAll([]*agents.Agent{b})
	assert.Equal(t, world.HexCoord{}, b.Position, "dead agents do not move")

	m.SetDestination(a, a.Position)
	assert.True(t, m.HasArrived(a), "destination underfoot")
	assert.False(t, m.IsMoving(a))
}
