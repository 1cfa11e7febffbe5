package persistence

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/worldsim/internal/agents"
	"github.com/talgya/worldsim/internal/config"
	"github.com/talgya/worldsim/internal/engine"
	"github.com/talgya/worldsim/internal/social"
	"github.com/talgya/worldsim/internal/world"
)

var thirst = agents.NeedConfig{ID: "thirst", Resource: "water", Min: 0, Max: 1, SatisfactionPerUnit: 0.25, DefaultRequest: 2}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "worldsim.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testSimulation(t *testing.T) *engine.Simulation {
	t.Helper()
	g := world.NewGrid(6)
	locs := world.NewLocations()
	_, err := locs.Add(world.Location{ID: "well", QueueSlots: 2, QueueRadius: 1})
	require.NoError(t, err)

	soc := social.NewSociety(1, "Riverfolk", config.DefaultTradeSettings())
	soc.Pool.Add("water", 5)
	soc.PoolLocation = "well"
	soc.PoolRegen = agents.Inventory{"water": 1}
	soc.PoolCap = agents.Inventory{"water": 5}
	soc.PoolLock = agents.ProviderState{ActiveRequester: 1, BusyUntil: 14 * time.Minute}
	soc.NextTick = 13 * time.Minute

	a := agents.NewAgent(1, "Kira Voss", 42)
	a.Position = world.HexCoord{Q: 1, R: -1}
	a.Location = "well"
	a.Needs.Set(thirst, 0.7)
	a.Inventory.Add("food", 2)
	in := a.RaiseIntent(thirst, 0.7)
	in.Attempts = 1
	in.NextAttempt = 20 * time.Minute
	a.Request.Stage = agents.StageQueued
	a.Request.IntentID = in.ID
	a.Request.NeedID = "thirst"
	a.Request.ResourceID = "water"
	a.Request.Provider = agents.PoolProvider(1)
	a.Request.TargetLocation = "well"
	a.Request.WaitStart = 11 * time.Minute
	a.Request.QueueSlotIndex, a.Request.QueueSlotNode = 0, 3
	a.Request.MarkAttempted(agents.AgentProvider(2))
	a.Rng.Float()
	soc.AddMember(a)

	b := agents.NewAgent(2, "Oswin Voss", 42)
	b.Alive = false

	sim := engine.NewSimulation(g, locs, []*agents.Agent{a, b}, []*social.Society{soc},
		agents.NeedCatalog{"thirst": thirst}, config.DefaultTradeSettings())
	sim.LastTick, sim.Now = 12, 12*time.Minute
	sim.Signals = []engine.Signal{
		{Seq: 1, Tick: 3, Time: 3 * time.Minute, ID: engine.SignalTradeFail, Reason: engine.ReasonNoPartner, Need: "thirst", Resource: "water", Requester: 2},
		{Seq: 2, Tick: 9, Time: 9 * time.Minute, ID: engine.SignalTradeSuccess, Need: "thirst", Resource: "water", Requester: 1, Target: agents.PoolProvider(1), Amount: 1.2},
	}
	sim.SignalSeq = 2
	return sim
}

func TestWorldStateRoundTrip(t *testing.T) {
	db := openTestDB(t)
	assert.False(t, db.HasWorldState())

	sim := testSimulation(t)
	require.NoError(t, db.SaveWorldState(sim))
	require.True(t, db.HasWorldState())

	ws, err := db.LoadWorldState(10)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), ws.LastTick)
	assert.Equal(t, 12*time.Minute, ws.SimTime)
	assert.Equal(t, uint64(2), ws.SignalSeq)

	require.Len(t, ws.Agents, 2)
	orig, got := sim.Agents[0], ws.Agents[0]
	assert.Equal(t, orig.Name, got.Name)
	assert.Equal(t, orig.SocietyID, got.SocietyID)
	assert.Equal(t, orig.Position, got.Position)
	assert.Equal(t, orig.Location, got.Location)
	assert.Equal(t, orig.Needs, got.Needs)
	assert.Equal(t, orig.Inventory, got.Inventory)
	assert.Equal(t, orig.Intents, got.Intents)
	assert.Equal(t, orig.Request, got.Request)
	assert.Equal(t, orig.IntentSeq, got.IntentSeq)
	assert.Equal(t, orig.Rng.Float(), got.Rng.Float(), "random stream resumes")
	assert.False(t, ws.Agents[1].Alive)

	require.Len(t, ws.Societies, 1)
	soc := ws.Societies[0]
	assert.Equal(t, "Riverfolk", soc.Name)
	assert.Equal(t, agents.LocationID("well"), soc.PoolLocation)
	assert.Equal(t, []agents.AgentID{1}, soc.Members)
	assert.Equal(t, 5.0, soc.Pool.Amount("water"))
	assert.Equal(t, sim.Societies[0].PoolLock, soc.PoolLock)
	assert.Equal(t, sim.Societies[0].PoolRegen, soc.PoolRegen)
	assert.Equal(t, 13*time.Minute, soc.NextTick)
	assert.Equal(t, config.DefaultTradeSettings(), soc.Settings)

	assert.Equal(t, sim.Signals, ws.Signals)
}

func TestSaveIsAFullReplace(t *testing.T) {
	db := openTestDB(t)
	sim := testSimulation(t)
	require.NoError(t, db.SaveWorldState(sim))

	sim.Agents = sim.Agents[:1]
	sim.Signals = append(sim.Signals, engine.Signal{Seq: 3, Tick: 12, Time: 12 * time.Minute, ID: engine.SignalTradeFail, Reason: engine.ReasonQueueFull, Target: agents.AgentProvider(7)})
	sim.SignalSeq = 3
	require.NoError(t, db.SaveWorldState(sim))

	ws, err := db.LoadWorldState(2)
	require.NoError(t, err)
	assert.Len(t, ws.Agents, 1)
	require.Len(t, ws.Signals, 2, "limited to the newest")
	assert.Equal(t, uint64(2), ws.Signals[0].Seq)
	assert.Equal(t, uint64(3), ws.Signals[1].Seq)
	assert.Equal(t, agents.AgentProvider(7), ws.Signals[1].Target)
	assert.Equal(t, uint64(3), ws.SignalSeq)
}

func TestMeta(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.SaveMeta("seed", "42"))
	require.NoError(t, db.SaveMeta("seed", "43"))
	v, err := db.GetMeta("seed")
	require.NoError(t, err)
	assert.Equal(t, "43", v)

	ws, err := db.LoadWorldState(5)
	require.NoError(t, err, "missing counters read as zero")
	assert.Zero(t, ws.LastTick)
	assert.Empty(t, ws.Agents)
}

func TestParseProvider(t *testing.T) {
	for _, p := range []agents.ProviderRef{
		agents.AgentProvider(3),
		agents.PoolProvider(9),
		{Kind: agents.ProviderSelf},
		{},
	} {
		assert.Equal(t, p, parseProvider(p.String()))
	}
	assert.True(t, IsPostgresDSN("postgresql://sim@db/sim"))
	assert.False(t, IsPostgresDSN("data/worldsim.db"))
}
