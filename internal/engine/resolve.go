package engine

import (
	"log/slog"

	"github.com/talgya/worldsim/internal/agents"
	"github.com/talgya/worldsim/internal/economy"
	"github.com/talgya/worldsim/internal/world"
)

// selectAndEngage picks the nearest eligible provider and starts toward it.
// A pool that needs no travel is resolved on the spot.
func (s *Simulation) selectAndEngage(tc *TickContext, a *agents.Agent, in *agents.Intent) stepResult {
	p, loc, ok := s.selectProvider(tc, a, in.ResourceID)
	if !ok {
		return s.fail(tc, a, ReasonNoPartner)
	}
	if tc.Settings.LockProviderPerTick {
		tc.locks[p] = true
	}

	req := &a.Request
	req.Provider = p
	req.StartTime = tc.Now
	if loc == nil {
		if s.IsProviderBusy(p, a.ID, tc.Now) {
			return s.fail(tc, a, ReasonQueueFull)
		}
		return s.resolve(tc, a, in)
	}

	req.Stage = agents.StageTraveling
	req.TargetLocation = loc.ID
	req.TargetAnchor = loc.Anchor
	if s.Nav.Location(a) == loc.ID {
		return s.arrive(tc, a, in)
	}
	s.Nav.SetDestination(a, loc.Anchor)
	return stepResult{}
}

// selectProvider scans live agents in order, then the requester's society
// pool, for the nearest holder of res that is neither attempted nor already
// assigned this tick. Equal distances keep the first found.
func (s *Simulation) selectProvider(tc *TickContext, a *agents.Agent, res agents.ResourceID) (agents.ProviderRef, *world.Location, bool) {
	var (
		best     agents.ProviderRef
		bestLoc  *world.Location
		bestDist int
		found    bool
	)
	consider := func(p agents.ProviderRef, loc *world.Location) {
		if a.Request.Attempted(p) || tc.locks[p] {
			return
		}
		dist := 0
		if loc != nil {
			dist = world.Distance(a.Position, loc.Anchor)
		}
		if !found || dist < bestDist {
			best, bestLoc, bestDist, found = p, loc, dist, true
		}
	}

	for _, pa := range s.Agents {
		if pa.ID == a.ID || !pa.Alive || !pa.Inventory.Holds(res) {
			continue
		}
		loc, ok := s.Locations.Get(pa.Location)
		if !ok {
			continue
		}
		consider(agents.AgentProvider(pa.ID), loc)
	}

	if soc := tc.Society; soc != nil && soc.Pool.Holds(res) {
		if soc.PoolLocation == "" {
			consider(agents.PoolProvider(soc.ID), nil)
		} else if loc, ok := s.Locations.Get(soc.PoolLocation); ok {
			consider(agents.PoolProvider(soc.ID), loc)
		}
	}
	return best, bestLoc, found
}

// providerLocation reports where a provider currently trades from.
func (s *Simulation) providerLocation(p agents.ProviderRef) (agents.LocationID, bool) {
	switch p.Kind {
	case agents.ProviderAgent:
		if pa, ok := s.AgentIndex[p.Agent]; ok && pa.Alive {
			return pa.Location, true
		}
	case agents.ProviderPool:
		if soc, ok := s.SocietyIndex[p.Society]; ok {
			return soc.PoolLocation, true
		}
	}
	return "", false
}

// providerStock returns the inventory a provider supplies from.
func (s *Simulation) providerStock(p agents.ProviderRef) (agents.Inventory, bool) {
	switch p.Kind {
	case agents.ProviderAgent:
		if pa, ok := s.AgentIndex[p.Agent]; ok && pa.Alive {
			return pa.Inventory, true
		}
	case agents.ProviderPool:
		if soc, ok := s.SocietyIndex[p.Society]; ok {
			return soc.Pool, true
		}
	}
	return nil, false
}

// resolve performs one transfer from the bound provider.
func (s *Simulation) resolve(tc *TickContext, a *agents.Agent, in *agents.Intent) stepResult {
	req := &a.Request
	req.Stage = agents.StageResolving
	src, ok := s.providerStock(req.Provider)
	if !ok {
		return s.fail(tc, a, ReasonProviderMissing)
	}
	moved, reason := s.transfer(tc, a, src, in, true)
	if reason != ReasonNone {
		return s.fail(tc, a, reason)
	}
	s.acquireProvider(req.Provider, a.ID, tc.Now, tc.Settings.TickInterval())
	return s.complete(tc, a, in, moved)
}

// resolveSelf consumes the requester's own stock.
func (s *Simulation) resolveSelf(tc *TickContext, a *agents.Agent, in *agents.Intent) stepResult {
	req := &a.Request
	req.Provider = agents.ProviderRef{Kind: agents.ProviderSelf}
	req.Stage = agents.StageResolving
	moved, reason := s.transfer(tc, a, a.Inventory, in, false)
	if reason != ReasonNone {
		return s.fail(tc, a, reason)
	}
	return s.complete(tc, a, in, moved)
}

// transfer moves up to the desired amount out of src. Stock from someone else
// is either consumed on the spot or granted to the requester, whose need then
// stays put until the stock is spent from its own inventory.
func (s *Simulation) transfer(tc *TickContext, a *agents.Agent, src agents.Inventory, in *agents.Intent, external bool) (float64, FailReason) {
	cfg := s.Catalog.Get(in.NeedID)
	available := src.Amount(in.ResourceID)
	amount := economy.PlanAmount(available, in.DesiredAmount,
		cfg.RemainingUnits(a.Needs.Value(in.NeedID)), tc.Settings.ClampTransferToNeed)
	if amount <= 0 {
		if min(available, in.DesiredAmount) > 0 {
			return 0, ReasonRejected
		}
		return 0, ReasonNoResource
	}
	grant := external && !tc.Settings.ConsumeResourceOnResolve
	moved := economy.Apply(src, a.Inventory, a.Needs, cfg, economy.Transfer{
		Resource: in.ResourceID,
		Amount:   amount,
		Grant:    grant,
		Consume:  !grant,
	})
	if moved <= 0 {
		return 0, ReasonNoResource
	}
	return moved, ReasonNone
}

// complete emits the success signal, settles the intent, and returns the
// request to idle.
func (s *Simulation) complete(tc *TickContext, a *agents.Agent, in *agents.Intent, moved float64) stepResult {
	req := &a.Request
	s.emit(Signal{
		Time:      tc.Now,
		Tick:      tc.Tick,
		ID:        SignalTradeSuccess,
		Need:      in.NeedID,
		Resource:  in.ResourceID,
		Requester: a.ID,
		Target:    req.Provider,
		Amount:    moved,
	})
	slog.Debug("trade resolved", "agent", a.ID, "need", in.NeedID, "provider", req.Provider.String(), "amount", moved)

	in.DesiredAmount -= moved
	in.Urgency = s.Catalog.Get(in.NeedID).Urgency(a.Needs.Value(in.NeedID))
	in.Attempts = 0
	in.NextAttempt = 0
	if in.DesiredAmount <= 1e-9 || in.Urgency < tc.Settings.MinIntentUrgencyToKeep {
		a.Intents.Remove(in.ID)
	}

	s.releaseHold(a)
	req.Reset()
	s.Nav.ClearDestination(a)
	s.Schedule.EndTradeOverride(a.ID)
	return stepResult{done: true}
}
