package agents

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/worldsim/internal/world"
)

var thirst = NeedConfig{ID: "thirst", Resource: "water", Min: 0, Max: 10, SatisfactionPerUnit: 2, DefaultRequest: 3}

func TestNeedConfigMath(t *testing.T) {
	assert.Equal(t, 0.0, thirst.Clamp(-4))
	assert.Equal(t, 10.0, thirst.Clamp(14))
	assert.InDelta(t, 0.75, thirst.Urgency(7.5), 1e-9)
	assert.Equal(t, 1.0, thirst.Urgency(30))
	assert.InDelta(t, 3.5, thirst.RemainingUnits(7), 1e-9)
	assert.Zero(t, thirst.RemainingUnits(-1))

	flat := NeedConfig{ID: "odd", Min: 1, Max: 1}
	assert.Equal(t, 0.4, flat.Urgency(0.4), "degenerate range passes values through")
	assert.Zero(t, flat.RemainingUnits(5), "no satisfaction rate")
}

func TestNeedLedger(t *testing.T) {
	l := make(NeedLedger)
	l.Set(thirst, 12)
	assert.Equal(t, 10.0, l.Value("thirst"))
	assert.Equal(t, 9.0, l.Apply(thirst, -1))
	assert.Equal(t, 5.0, l.Satisfy(thirst, 2))
	assert.Equal(t, 0.0, l.Satisfy(thirst, 100), "clamped at Min")
}

func TestCatalogFallback(t *testing.T) {
	cat := NeedCatalog{"thirst": thirst}
	assert.Equal(t, thirst, cat.Get("thirst"))
	unknown := cat.Get("boredom")
	assert.Equal(t, NeedID("boredom"), unknown.ID)
	assert.Equal(t, 1.0, unknown.Max)
}

func TestInventory(t *testing.T) {
	inv := make(Inventory)
	assert.True(t, inv.IsEmpty())
	inv.Add("water", 3)
	inv.Add("water", -2)
	inv.Add("food", 1)
	assert.Equal(t, 3.0, inv.Amount("water"))
	assert.Equal(t, []ResourceID{"food", "water"}, inv.Resources())

	assert.Equal(t, 2.0, inv.Remove("water", 2))
	assert.Equal(t, 1.0, inv.Remove("water", 5), "only what is held")
	assert.False(t, inv.Holds("water"))
	assert.Zero(t, inv.Remove("water", 1))
	assert.Zero(t, inv.Remove("food", -1))

	c := inv.Clone()
	c.Add("food", 1)
	assert.Equal(t, 1.0, inv.Amount("food"), "clone is independent")
}

func TestIntentLifecycle(t *testing.T) {
	a := NewAgent(7, "Kira Voss", 42)
	in := a.RaiseIntent(thirst, 0.6)
	id := in.ID
	assert.Equal(t, 3.0, in.DesiredAmount)
	assert.Equal(t, IntentID(7, "thirst", 1), id, "deterministic id")

	in.Attempts = 2
	in.NextAttempt = time.Hour
	again := a.RaiseIntent(thirst, 0.8)
	assert.Equal(t, id, again.ID, "one intent per need")
	assert.Equal(t, 2, again.Attempts, "backoff state kept")
	assert.Equal(t, 0.8, again.Urgency)
	assert.Len(t, a.Intents, 1)

	assert.True(t, a.Intents.Remove(id))
	assert.False(t, a.Intents.Remove(id))
	next := a.RaiseIntent(thirst, 0.6)
	assert.NotEqual(t, id, next.ID, "fresh intent gets a fresh id")
}

func TestIntentPrune(t *testing.T) {
	cat := NeedCatalog{"thirst": thirst, "hunger": {ID: "hunger", Resource: "food", Min: 0, Max: 1}}
	needs := NeedLedger{"thirst": 8, "hunger": 0.1}
	l := IntentList{
		{ID: "a", NeedID: "thirst", ResourceID: "water", Urgency: 0.1},
		{ID: "b", NeedID: "hunger", ResourceID: "food", Urgency: 0.9},
		{ID: "c", NeedID: "", ResourceID: "food"},
	}

	dropped := l.Prune(needs, cat, 0.2)

	assert.ElementsMatch(t, []string{"b", "c"}, dropped)
	require.Len(t, l, 1)
	assert.Equal(t, "a", l[0].ID)
	assert.InDelta(t, 0.8, l[0].Urgency, 1e-9, "urgency recomputed from the ledger")
}

func TestIntentSelect(t *testing.T) {
	l := IntentList{
		{ID: "a", NeedID: "thirst", Urgency: 0.7},
		{ID: "b", NeedID: "hunger", Urgency: 0.9, NextAttempt: time.Hour},
		{ID: "c", NeedID: "warmth", Urgency: 0.7},
		{ID: "d", NeedID: "rest", Urgency: 0.3},
	}

	in, ok := l.Select(0, 0.5, nil)
	require.True(t, ok)
	assert.Equal(t, "a", in.ID, "backed-off intent skipped; tie keeps the first")

	in, ok = l.Select(time.Hour, 0.5, nil)
	require.True(t, ok)
	assert.Equal(t, "b", in.ID)

	in, ok = l.Select(0, 0.5, func(n NeedID) bool { return n == "warmth" })
	require.True(t, ok)
	assert.Equal(t, "c", in.ID)

	_, ok = l.Select(0, 0.95, nil)
	assert.False(t, ok)
}

func TestTradeRequestBinding(t *testing.T) {
	r := NewTradeRequest()
	assert.False(t, r.Active())
	assert.Equal(t, -1, r.QueueSlotNode)

	p := AgentProvider(3)
	r.Stage = StageQueued
	r.Provider = p
	r.TargetLocation = "well"
	r.QueueSlotIndex, r.QueueSlotNode = 2, 17
	r.MarkAttempted(p)
	r.MarkAttempted(p)
	r.MarkAttempted(ProviderRef{})
	assert.Len(t, r.AttemptedProviders, 1)

	r.ClearProvider()
	assert.False(t, r.Active())
	assert.True(t, r.Provider.IsZero())
	assert.Equal(t, -1, r.QueueSlotNode)
	assert.True(t, r.Attempted(p), "attempted list survives re-selection")

	r.Reset()
	assert.False(t, r.Attempted(p))
	assert.Equal(t, "agent:3", p.String())
	assert.Equal(t, "pool:4", PoolProvider(4).String())
	assert.Equal(t, "queued", StageQueued.String())
}

func TestProviderLock(t *testing.T) {
	p := ProviderState{ActiveRequester: 5, BusyUntil: time.Minute}
	assert.True(t, p.Locked(59*time.Second))
	assert.False(t, p.Locked(time.Minute))
	assert.False(t, ProviderState{BusyUntil: time.Hour}.Locked(0), "no requester, no lock")
}

func TestIntern(t *testing.T) {
	assert.Equal(t, NeedID("thirst"), Intern[NeedID]("  thirst "))
	long := strings.Repeat("a", 60) + "é" + "tail"
	got := Intern[ResourceID](long)
	assert.LessOrEqual(t, len(got), MaxIDBytes)
	assert.Equal(t, ResourceID(strings.Repeat("a", 60)), got, "cut before a split rune")
	assert.Equal(t, got, Intern[ResourceID](long))
}

func TestAgentRoundTripKeepsRandomStream(t *testing.T) {
	a := NewAgent(9, "Thea Millward", 42)
	a.Rng.Float()
	raw, err := json.Marshal(a)
	require.NoError(t, err)

	var b Agent
	require.NoError(t, json.Unmarshal(raw, &b))
	assert.Equal(t, a.Rng.Float(), b.Rng.Float(), "restored stream continues the sequence")
}

func TestSpawnerIsSeeded(t *testing.T) {
	loc := &world.Location{ID: "well", Anchor: world.HexCoord{Q: 2, R: -1}}
	cat := NeedCatalog{"thirst": thirst}
	stock := []StockSpec{{Resource: "water", Chance: 1, Min: 2, Max: 4}}

	s1, s2 := NewSpawner(5), NewSpawner(5)
	p1 := s1.SpawnPopulation(4, loc, 3, cat, stock)
	p2 := s2.SpawnPopulation(4, loc, 3, cat, stock)

	require.Len(t, p1, 4)
	for i := range p1 {
		assert.Equal(t, AgentID(i+1), p1[i].ID)
		assert.Equal(t, p1[i].Name, p2[i].Name)
		assert.Equal(t, p1[i].Needs, p2[i].Needs)
		assert.Equal(t, SocietyID(3), p1[i].SocietyID)
		assert.Equal(t, LocationID("well"), p1[i].Location)
		assert.Equal(t, loc.Anchor, p1[i].Position)
		assert.LessOrEqual(t, p1[i].Needs.Value("thirst"), 4.0, "starts mostly met")
		qty := p1[i].Inventory.Amount("water")
		assert.GreaterOrEqual(t, qty, 2.0)
		assert.LessOrEqual(t, qty, 4.0)
	}

	s1.SetNextID(100)
	assert.Equal(t, AgentID(100), s1.SpawnPopulation(1, loc, 3, cat, nil)[0].ID)
}
