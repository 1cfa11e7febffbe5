package engine

import (
	"time"

	"github.com/talgya/worldsim/internal/agents"
	"github.com/talgya/worldsim/internal/config"
	"github.com/talgya/worldsim/internal/schedule"
	"github.com/talgya/worldsim/internal/social"
	"github.com/talgya/worldsim/internal/world"
)

// Navigator moves agents toward destinations and reports where they stand.
type Navigator interface {
	SetDestination(a *agents.Agent, dst world.HexCoord)
	ClearDestination(a *agents.Agent)
	IsMoving(a *agents.Agent) bool
	HasArrived(a *agents.Agent) bool
	Location(a *agents.Agent) agents.LocationID
}

// stepper is implemented by navigators that advance movement once per tick.
type stepper interface {
	StepAll(all []*agents.Agent)
}

// Scheduler exposes each agent's current activity and its overrides.
type Scheduler interface {
	Current(id agents.AgentID) (schedule.Activity, bool)
	IsOverridden(id agents.AgentID) bool
	IsTradeOverride(id agents.AgentID) bool
	BeginOverride(id agents.AgentID, activity agents.ActivityID, tradeInitiated bool)
	EndTradeOverride(id agents.AgentID) bool
}

// TickContext is the state shared by every agent processed under one gate
// in one tick.
type TickContext struct {
	Tick     uint64
	Now      time.Duration
	Settings config.TradeSettings
	Society  *social.Society // nil for agents without a society

	locks tickLocks
}

// NewTickContext builds a context for a society (or nil) at the given time.
func NewTickContext(tick uint64, now time.Duration, settings config.TradeSettings, soc *social.Society) *TickContext {
	return &TickContext{
		Tick:     tick,
		Now:      now,
		Settings: settings,
		Society:  soc,
		locks:    make(tickLocks),
	}
}

// stepResult is the outcome of driving a request one step.
// The zero value means the request is still in flight.
type stepResult struct {
	done   bool
	reason FailReason
}

func (r stepResult) failed() bool { return r.reason != ReasonNone }
