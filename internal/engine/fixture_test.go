package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/worldsim/internal/agents"
	"github.com/talgya/worldsim/internal/config"
	"github.com/talgya/worldsim/internal/navigation"
	"github.com/talgya/worldsim/internal/social"
	"github.com/talgya/worldsim/internal/world"
)

const (
	hunger agents.NeedID     = "hunger"
	food   agents.ResourceID = "food"
)

var (
	wellAnchor  = world.HexCoord{Q: 0, R: 0}
	plazaAnchor = world.HexCoord{Q: 8, R: 0}
)

func testCatalog() agents.NeedCatalog {
	return agents.NeedCatalog{
		hunger: {ID: hunger, Resource: food, Min: 0, Max: 1, SatisfactionPerUnit: 0.1, DefaultRequest: 3},
	}
}

func testSettings() config.TradeSettings {
	s := config.DefaultTradeSettings()
	s.BackoffJitterHours = 0
	return s
}

type fixture struct {
	sim   *Simulation
	mover *navigation.Mover
	tick  uint64
}

// newFixture builds a radius-12 world with a small "well" at the origin and a
// wide "plaza" to the east whose footprint reaches to (3,0).
func newFixture(t *testing.T, settings config.TradeSettings) *fixture {
	t.Helper()
	g := world.NewGrid(12)
	locs := world.NewLocations()
	_, err := locs.Add(world.Location{ID: "well", Anchor: wellAnchor, QueueSlots: 4, QueueRadius: 2})
	require.NoError(t, err)
	_, err = locs.Add(world.Location{ID: "plaza", Anchor: plazaAnchor, Footprint: 5, QueueSlots: 4, QueueRadius: 2})
	require.NoError(t, err)

	sim := NewSimulation(g, locs, nil, nil, testCatalog(), settings)
	return &fixture{sim: sim, mover: sim.Nav.(*navigation.Mover)}
}

func (f *fixture) addAgent(id agents.AgentID, at world.HexCoord) *agents.Agent {
	a := agents.NewAgent(id, fmt.Sprintf("agent-%d", id), 7)
	a.Position = at
	f.mover.Place(a)
	f.sim.AddAgent(a)
	return a
}

func (f *fixture) addProvider(id agents.AgentID, at world.HexCoord, stock float64) *agents.Agent {
	a := f.addAgent(id, at)
	a.Inventory.Add(food, stock)
	return a
}

func (f *fixture) addSociety(id agents.SocietyID, pool float64, members ...*agents.Agent) *social.Society {
	soc := social.NewSociety(id, fmt.Sprintf("society-%d", id), f.sim.Defaults)
	soc.Pool.Add(food, pool)
	for _, a := range members {
		soc.AddMember(a)
	}
	f.sim.AddSociety(soc)
	return soc
}

// hungry sets the agent's hunger and raises the matching intent.
func hungry(a *agents.Agent, urgency float64) {
	cfg := testCatalog()[hunger]
	a.Needs.Set(cfg, urgency)
	a.RaiseIntent(cfg, urgency)
}

// step runs the next tick one sim-minute later.
func (f *fixture) step() {
	f.stepAt(time.Duration(f.tick+1) * time.Minute)
}

func (f *fixture) stepAt(now time.Duration) {
	f.tick++
	f.sim.Step(f.tick, now)
}

func (f *fixture) signals() []Signal {
	return f.sim.RecentSignals(0)
}

// assertIdleInvariant checks that every idle request is fully unbound.
func (f *fixture) assertIdleInvariant(t *testing.T) {
	t.Helper()
	for _, a := range f.sim.Agents {
		if a.Request.Active() {
			assert.False(t, a.Request.Provider.IsZero(), "agent %d in flight without a provider", a.ID)
			continue
		}
		assert.True(t, a.Request.Provider.IsZero(), "idle agent %d still bound", a.ID)
		assert.Equal(t, -1, a.Request.QueueSlotNode, "idle agent %d still holds a slot", a.ID)
	}
}

// pinnedNav accepts destinations but never moves anyone. With stuck set it
// also reports agents as standing still.
type pinnedNav struct {
	locs  *world.Locations
	dest  map[agents.AgentID]world.HexCoord
	stuck bool
}

func newPinnedNav(locs *world.Locations) *pinnedNav {
	return &pinnedNav{locs: locs, dest: make(map[agents.AgentID]world.HexCoord)}
}

func (n *pinnedNav) SetDestination(a *agents.Agent, dst world.HexCoord) { n.dest[a.ID] = dst }
func (n *pinnedNav) ClearDestination(a *agents.Agent)                   { delete(n.dest, a.ID) }
func (n *pinnedNav) HasArrived(a *agents.Agent) bool                    { return false }

func (n *pinnedNav) IsMoving(a *agents.Agent) bool {
	_, ok := n.dest[a.ID]
	return ok && !n.stuck
}

func (n *pinnedNav) Location(a *agents.Agent) agents.LocationID {
	id, _ := n.locs.At(a.Position)
	return id
}

// relocate moves a provider without going through any navigator.
func relocate(a *agents.Agent, locs *world.Locations, to world.HexCoord) {
	a.Position = to
	a.Location, _ = locs.At(to)
}
