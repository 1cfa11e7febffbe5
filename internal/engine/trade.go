package engine

import (
	"log/slog"

	"github.com/talgya/worldsim/internal/agents"
	"github.com/talgya/worldsim/internal/schedule"
	"github.com/talgya/worldsim/internal/world"
)

// TickTrade runs one trade frame: each society the gate admits sweeps its
// members in order, then agents without a society run under the default gate.
func (s *Simulation) TickTrade(tick uint64) {
	locks := make(tickLocks)
	for _, soc := range s.Societies {
		forced := false
		for _, id := range soc.Members {
			if s.Schedule.IsOverridden(id) {
				forced = true
				break
			}
		}
		if !soc.Ready(s.Now, forced) {
			continue
		}
		tc := NewTickContext(tick, s.Now, soc.Settings, soc)
		tc.locks = locks
		for _, id := range soc.Members {
			if a, ok := s.AgentIndex[id]; ok && a.Alive {
				s.tradeAgent(tc, a)
			}
		}
	}

	var loose []*agents.Agent
	forced := false
	for _, a := range s.Agents {
		if !a.Alive {
			continue
		}
		if _, member := s.SocietyIndex[a.SocietyID]; member {
			continue
		}
		loose = append(loose, a)
		forced = forced || s.Schedule.IsOverridden(a.ID)
	}
	if len(loose) == 0 || !s.looseGate.Ready(s.Now, s.Defaults.TickInterval(), forced) {
		return
	}
	tc := NewTickContext(tick, s.Now, s.Defaults, nil)
	tc.locks = locks
	for _, a := range loose {
		s.tradeAgent(tc, a)
	}
}

// tradeAgent prunes, selects, and drives one agent's request a single step.
func (s *Simulation) tradeAgent(tc *TickContext, a *agents.Agent) {
	req := &a.Request
	act, hasActivity := s.Schedule.Current(a.ID)
	if req.Active() && (!hasActivity || (req.IsOverride && !s.Schedule.IsOverridden(a.ID))) {
		s.Cancel(a)
	}

	a.Intents.Prune(a.Needs, s.Catalog, tc.Settings.MinIntentUrgencyToKeep)
	if !hasActivity {
		return
	}

	if req.Active() {
		cur, ok := a.Intents.Find(req.IntentID)
		if ok && cur.Urgency >= tc.Settings.MinIntentUrgency && act.Permits(cur.NeedID) {
			s.settle(tc, a, act, cur.ID, s.driveRequest(tc, a, act, cur))
			return
		}
		s.Cancel(a)
	}

	in, ok := a.Intents.Select(tc.Now, tc.Settings.MinIntentUrgency, act.Permits)
	if !ok {
		return
	}
	s.bind(a, in)
	s.settle(tc, a, act, in.ID, s.engage(tc, a, act, in))
}

// bind attaches an intent to the agent's idle request.
func (s *Simulation) bind(a *agents.Agent, in *agents.Intent) {
	req := &a.Request
	req.Reset()
	req.IntentID = in.ID
	req.NeedID = in.NeedID
	req.ResourceID = in.ResourceID
	req.DesiredAmount = in.DesiredAmount
	req.Urgency = in.Urgency
	req.IsOverride = s.Schedule.IsOverridden(a.ID)
}

// engage starts a freshly bound request: own inventory first, then a provider.
func (s *Simulation) engage(tc *TickContext, a *agents.Agent, act schedule.Activity, in *agents.Intent) stepResult {
	if tc.Settings.ConsumeInventoryFirst && a.Inventory.Holds(in.ResourceID) {
		return s.resolveSelf(tc, a, in)
	}
	return s.selectAndEngage(tc, a, in)
}

// driveRequest advances an in-flight request by its stage.
func (s *Simulation) driveRequest(tc *TickContext, a *agents.Agent, act schedule.Activity, in *agents.Intent) stepResult {
	switch a.Request.Stage {
	case agents.StageTraveling:
		return s.stepTraveling(tc, a, act, in)
	case agents.StageQueued:
		return s.stepQueued(tc, a, in)
	case agents.StageResolving:
		return s.resolve(tc, a, in)
	default:
		return s.engage(tc, a, act, in)
	}
}

// settle retries provider selection after a failure until the request is in
// flight, resolved, or out of attempts for this tick. Exhaustion backs off.
func (s *Simulation) settle(tc *TickContext, a *agents.Agent, act schedule.Activity, intentID string, res stepResult) {
	for attempts := 1; res.failed(); attempts++ {
		if res.reason == ReasonNoPartner || attempts >= tc.Settings.MaxProviderAttemptsPerTick {
			s.backoff(tc, a, intentID)
			return
		}
		in, ok := a.Intents.Find(intentID)
		if !ok {
			s.Cancel(a)
			return
		}
		res = s.selectAndEngage(tc, a, in)
	}
}

// stepTraveling supervises a requester on its way to the provider.
func (s *Simulation) stepTraveling(tc *TickContext, a *agents.Agent, act schedule.Activity, in *agents.Intent) stepResult {
	req := &a.Request
	provLoc, ok := s.providerLocation(req.Provider)
	if !ok {
		return s.fail(tc, a, ReasonProviderMissing)
	}
	here := s.Nav.Location(a)

	if here != "" && here == provLoc && here != req.TargetLocation &&
		tc.Settings.AllowMidwayTrade && act.AllowMidway {
		loc, found := s.Locations.Get(here)
		if !found {
			return s.fail(tc, a, ReasonProviderMissing)
		}
		req.TargetLocation = loc.ID
		req.TargetAnchor = loc.Anchor
		return s.arrive(tc, a, in)
	}
	if provLoc != req.TargetLocation {
		return s.fail(tc, a, ReasonProviderMissing)
	}
	if here == req.TargetLocation {
		return s.arrive(tc, a, in)
	}
	if s.Nav.IsMoving(a) {
		return stepResult{}
	}
	if tc.Now-req.StartTime > 3*tc.Settings.Wait() {
		return s.fail(tc, a, ReasonProviderTimeout)
	}
	s.Nav.SetDestination(a, req.TargetAnchor)
	return stepResult{}
}

// arrive resolves with a free provider or joins its queue.
func (s *Simulation) arrive(tc *TickContext, a *agents.Agent, in *agents.Intent) stepResult {
	p := a.Request.Provider
	if s.IsProviderBusy(p, a.ID, tc.Now) || s.Queues.Len(p) > 0 {
		return s.enqueue(tc, a)
	}
	return s.resolve(tc, a, in)
}

// enqueue claims a free queue slot around the target anchor.
func (s *Simulation) enqueue(tc *TickContext, a *agents.Agent) stepResult {
	req := &a.Request
	loc, ok := s.Locations.Get(req.TargetLocation)
	if !ok {
		return s.fail(tc, a, ReasonProviderMissing)
	}
	holder := world.Holder(a.ID)
	slot, ok := s.Queues.FreeSlot(loc.ID, loc.QueueSlots, func(i int) bool {
		node := loc.SlotNode(s.Grid, i)
		if node < 0 {
			return false
		}
		by, held := s.Grid.ReservedBy(node, tc.Now)
		return !held || by == holder
	})
	if !ok {
		return s.fail(tc, a, ReasonQueueFull)
	}
	node := loc.SlotNode(s.Grid, slot)
	s.Grid.Reserve(node, holder, tc.Now, tc.Now+tc.Settings.QueueReservation())
	s.Queues.Join(req.Provider, loc.ID, a.ID, slot)

	req.Stage = agents.StageQueued
	req.WaitStart = tc.Now
	req.QueueSlotIndex = slot
	req.QueueSlotNode = node
	s.Nav.SetDestination(a, loc.SlotCoord(slot))
	return stepResult{}
}

// stepQueued renews the slot claim and lets the FIFO head resolve.
func (s *Simulation) stepQueued(tc *TickContext, a *agents.Agent, in *agents.Intent) stepResult {
	req := &a.Request
	provLoc, ok := s.providerLocation(req.Provider)
	if !ok || provLoc != req.TargetLocation {
		return s.fail(tc, a, ReasonProviderMissing)
	}
	if req.QueueSlotNode >= 0 {
		// A lapsed claim taken by someone else leaves the FIFO entry in place.
		s.Grid.Reserve(req.QueueSlotNode, world.Holder(a.ID), tc.Now, tc.Now+tc.Settings.QueueReservation())
	}
	if head, _ := s.Queues.Head(req.Provider); head == a.ID && !s.IsProviderBusy(req.Provider, a.ID, tc.Now) {
		return s.resolve(tc, a, in)
	}
	if tc.Now-req.WaitStart > 3*tc.Settings.Wait() {
		return s.fail(tc, a, ReasonProviderTimeout)
	}
	return stepResult{}
}

// fail emits a fail signal, releases what the request holds, and marks the
// provider as attempted. The intent binding survives for re-selection.
func (s *Simulation) fail(tc *TickContext, a *agents.Agent, reason FailReason) stepResult {
	req := &a.Request
	s.emit(Signal{
		Time:      tc.Now,
		Tick:      tc.Tick,
		ID:        SignalTradeFail,
		Reason:    reason,
		Need:      req.NeedID,
		Resource:  req.ResourceID,
		Requester: a.ID,
		Target:    req.Provider,
	})
	slog.Debug("trade failed", "agent", a.ID, "need", req.NeedID, "provider", req.Provider.String(), "reason", reason)

	s.releaseHold(a)
	req.MarkAttempted(req.Provider)
	req.ClearProvider()
	s.Nav.ClearDestination(a)
	return stepResult{reason: reason}
}

// backoff returns the request to idle and defers or deletes its intent.
func (s *Simulation) backoff(tc *TickContext, a *agents.Agent, intentID string) {
	s.releaseHold(a)
	a.Request.Reset()
	s.Nav.ClearDestination(a)

	in, ok := a.Intents.Find(intentID)
	if !ok {
		return
	}
	set := tc.Settings
	var rng Jitterer
	if a.Rng != nil {
		rng = a.Rng
	}
	delay := BackoffDelay(in.Attempts, set.BackoffBase(), set.BackoffMax(), set.BackoffJitter(), rng)
	in.Attempts++
	if in.Attempts > set.MaxAttempts || in.Urgency < set.MinIntentUrgencyToKeep {
		slog.Debug("intent dropped", "agent", a.ID, "need", in.NeedID, "attempts", in.Attempts)
		a.Intents.Remove(intentID)
		s.Schedule.EndTradeOverride(a.ID)
		s.retryAt[needKey{a.ID, in.NeedID}] = tc.Now + set.BackoffMax()
		return
	}
	in.NextAttempt = tc.Now + delay
	// Drift begins a new override once the retry is due.
	s.Schedule.EndTradeOverride(a.ID)
}

// Cancel aborts the agent's live request and releases its queue entry, slot
// reservation and destination. Cancelling an idle request does nothing.
func (s *Simulation) Cancel(a *agents.Agent) {
	if !a.Request.Active() {
		return
	}
	s.releaseHold(a)
	a.Request.Reset()
	s.Nav.ClearDestination(a)
}

// releaseHold drops the queue entry and slot reservation of the live request.
func (s *Simulation) releaseHold(a *agents.Agent) {
	req := &a.Request
	if !req.Provider.IsZero() && req.TargetLocation != "" {
		s.Queues.Leave(req.Provider, req.TargetLocation, a.ID)
	}
	if req.QueueSlotNode >= 0 {
		s.Grid.Release(req.QueueSlotNode, world.Holder(a.ID))
	}
	req.QueueSlotIndex = -1
	req.QueueSlotNode = -1
}
