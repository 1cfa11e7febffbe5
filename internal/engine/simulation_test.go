package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/worldsim/internal/agents"
	"github.com/talgya/worldsim/internal/weather"
	"github.com/talgya/worldsim/internal/world"
)

func TestSignalsFanOut(t *testing.T) {
	f := newFixture(t, testSettings())
	var sunk []Signal
	f.sim.AddSink(SinkFunc(func(s Signal) { sunk = append(sunk, s) }))
	ch, unsubscribe := f.sim.Subscribe(8)

	a := f.addAgent(1, world.HexCoord{Q: 0, R: 6})
	hungry(a, 0.9)
	f.addSociety(1, 10, a)
	f.step()

	b := f.addAgent(2, world.HexCoord{Q: 0, R: 7})
	hungry(b, 0.9)
	f.step()

	require.Len(t, sunk, 2)
	assert.Equal(t, uint64(1), sunk[0].Seq)
	assert.Equal(t, uint64(2), sunk[1].Seq)
	assert.Equal(t, uint64(2), f.sim.SignalSeq)

	got := <-ch
	assert.Equal(t, sunk[0], got)

	unsubscribe()
	unsubscribe()
	_, open := <-ch
	for open {
		_, open = <-ch
	}
	assert.Equal(t, uint64(1), f.sim.Stats.Successes)
	assert.Equal(t, uint64(1), f.sim.Stats.Failures)
	assert.Equal(t, uint64(1), f.sim.Stats.ByReason[ReasonNoPartner])
}

func TestSignalRingIsBounded(t *testing.T) {
	f := newFixture(t, testSettings())
	for i := 0; i < maxSignals+10; i++ {
		f.sim.emit(Signal{ID: SignalTradeFail, Reason: ReasonNoPartner})
	}
	assert.Len(t, f.sim.Signals, maxSignals)
	assert.Equal(t, uint64(11), f.sim.Signals[0].Seq)

	recent := f.sim.RecentSignals(3)
	require.Len(t, recent, 3)
	assert.Equal(t, uint64(maxSignals+10), recent[2].Seq)
}

func TestStatsCountStages(t *testing.T) {
	f := newFixture(t, testSettings())
	f.sim.Nav = newPinnedNav(f.sim.Locations)
	f.addProvider(10, wellAnchor, 5)
	a := f.addAgent(1, world.HexCoord{Q: 0, R: 6})
	hungry(a, 0.9)

	f.step()

	assert.Equal(t, 2, f.sim.Stats.Alive)
	assert.Equal(t, 1, f.sim.Stats.Intents)
	assert.Equal(t, 1, f.sim.Stats.Stages["traveling"])
}

func driftFixture(t *testing.T) (*fixture, *agents.Agent) {
	t.Helper()
	f := newFixture(t, testSettings())
	f.sim.Drift = []NeedDrift{{Need: hunger, PerHour: 0.5, IntentThreshold: 0.6, OverrideThreshold: 0.8, HeatFactor: 1}}
	f.sim.TradeActivity = "idle"
	a := f.addAgent(1, world.HexCoord{Q: 0, R: 6})
	a.Needs.Set(testCatalog()[hunger], 0.5)
	return f, a
}

func TestDriftRaisesIntentOnCrossing(t *testing.T) {
	f, a := driftFixture(t)

	f.sim.driftNeeds(15 * time.Minute)
	assert.InDelta(t, 0.625, a.Needs.Value(hunger), 1e-9)
	in, ok := a.Intents.ForNeed(hunger)
	require.True(t, ok)
	assert.InDelta(t, 0.625, in.Urgency, 1e-9)
	assert.InDelta(t, 3, in.DesiredAmount, 1e-9)
	assert.False(t, f.sim.Schedule.IsOverridden(a.ID))

	// A pressing need left without an intent raises a fresh one.
	old := in.ID
	a.Intents.Remove(old)
	f.sim.driftNeeds(6 * time.Minute)
	again, ok := a.Intents.ForNeed(hunger)
	require.True(t, ok)
	assert.NotEqual(t, old, again.ID)
	assert.InDelta(t, 0.675, again.Urgency, 1e-9)
}

func TestDroppedIntentWaitsOutCooldown(t *testing.T) {
	f, a := driftFixture(t)
	set := f.sim.Defaults

	f.sim.driftNeeds(15 * time.Minute)
	in, ok := a.Intents.ForNeed(hunger)
	require.True(t, ok)
	in.Attempts = set.MaxAttempts
	f.sim.backoff(NewTickContext(1, 0, set, nil), a, in.ID)
	require.Empty(t, a.Intents, "out of attempts")

	f.sim.Now = set.BackoffMax() - time.Minute
	f.sim.driftNeeds(time.Minute)
	assert.Empty(t, a.Intents, "still cooling down")

	f.sim.Now = set.BackoffMax()
	f.sim.driftNeeds(time.Minute)
	_, ok = a.Intents.ForNeed(hunger)
	assert.True(t, ok, "raised again once the cooldown passed")
}

func TestBackoffEndsTradeOverride(t *testing.T) {
	f, a := driftFixture(t)

	f.sim.driftNeeds(15 * time.Minute)
	f.sim.driftNeeds(24 * time.Minute)
	require.True(t, f.sim.Schedule.IsTradeOverride(a.ID))

	// No provider anywhere: the intent is deferred and the override lifted.
	f.step()
	in, ok := a.Intents.ForNeed(hunger)
	require.True(t, ok)
	require.Equal(t, 1, in.Attempts)
	assert.False(t, f.sim.Schedule.IsOverridden(a.ID))

	f.sim.Now = in.NextAttempt - time.Minute
	f.sim.driftNeeds(time.Minute)
	assert.False(t, f.sim.Schedule.IsOverridden(a.ID), "retry not due yet")

	f.sim.Now = in.NextAttempt
	f.sim.driftNeeds(time.Minute)
	assert.True(t, f.sim.Schedule.IsTradeOverride(a.ID), "due retry is pressed again")
}

func TestDriftStartsTradeOverride(t *testing.T) {
	f, a := driftFixture(t)

	f.sim.driftNeeds(15 * time.Minute)
	require.Len(t, a.Intents, 1)
	assert.False(t, f.sim.Schedule.IsOverridden(a.ID))
	f.sim.driftNeeds(24 * time.Minute)
	assert.InDelta(t, 0.825, a.Needs.Value(hunger), 1e-9)
	assert.True(t, f.sim.Schedule.IsTradeOverride(a.ID))
}

func TestDriftOverrideWaitsOutBackoff(t *testing.T) {
	f, a := driftFixture(t)

	f.sim.driftNeeds(15 * time.Minute)
	in, ok := a.Intents.ForNeed(hunger)
	require.True(t, ok)
	in.NextAttempt = time.Hour
	f.sim.driftNeeds(24 * time.Minute)
	assert.False(t, f.sim.Schedule.IsOverridden(a.ID))
}

func TestClimateScalesDrift(t *testing.T) {
	f, a := driftFixture(t)
	f.sim.SetClimate(weather.Climate{Heat: 1})

	f.sim.driftNeeds(9 * time.Minute)
	assert.InDelta(t, 0.65, a.Needs.Value(hunger), 1e-9, "full heat doubles the rate")
}

func TestProduceHourlyRegrowsToCap(t *testing.T) {
	f := newFixture(t, testSettings())
	soc := f.addSociety(1, 4)
	soc.PoolRegen = agents.Inventory{food: 3}
	soc.PoolCap = agents.Inventory{food: 6}

	f.sim.ProduceHourly(60)
	assert.InDelta(t, 6, soc.Pool.Amount(food), 1e-9, "capped at 6")
	f.sim.ProduceHourly(120)
	assert.InDelta(t, 6, soc.Pool.Amount(food), 1e-9)

	soc.Pool.Remove(food, 5)
	f.sim.ProduceHourly(180)
	assert.InDelta(t, 4, soc.Pool.Amount(food), 1e-9)
}
