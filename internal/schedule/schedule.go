// Package schedule tracks what each agent is doing, which needs that activity
// lets it trade for, and temporary overrides such as "go trade".
package schedule

import (
	"fmt"
	"sync"

	"github.com/talgya/worldsim/internal/agents"
)

// TradePolicy controls which needs an activity may trade for.
type TradePolicy uint8

const (
	AllowAll TradePolicy = iota
	AllowOnlyListed
	BlockAll
)

// ParsePolicy maps a config string onto a TradePolicy.
func ParsePolicy(s string) (TradePolicy, error) {
	switch s {
	case "", "allow_all":
		return AllowAll, nil
	case "allow_only_listed":
		return AllowOnlyListed, nil
	case "block_all":
		return BlockAll, nil
	default:
		return AllowAll, fmt.Errorf("unknown trade policy %q", s)
	}
}

func (p TradePolicy) String() string {
	switch p {
	case AllowOnlyListed:
		return "allow_only_listed"
	case BlockAll:
		return "block_all"
	default:
		return "allow_all"
	}
}

// Activity is one schedulable activity.
type Activity struct {
	ID           agents.ActivityID
	Policy       TradePolicy
	AllowedNeeds []agents.NeedID
	AllowMidway  bool
}

// Permits reports whether the activity lets an agent trade for need.
func (a Activity) Permits(need agents.NeedID) bool {
	switch a.Policy {
	case BlockAll:
		return false
	case AllowOnlyListed:
		for _, n := range a.AllowedNeeds {
			if n == need {
				return true
			}
		}
		return false
	default:
		return true
	}
}

// Override temporarily supersedes an agent's base activity.
type Override struct {
	Activity       agents.ActivityID
	TradeInitiated bool // Started by need pressure; ended by the trade engine on success
}

type entry struct {
	base     agents.ActivityID
	cleared  bool
	override *Override
}

// Book is the schedule of every agent. Safe for concurrent readers.
type Book struct {
	mu         sync.RWMutex
	activities map[agents.ActivityID]Activity
	entries    map[agents.AgentID]*entry
	def        agents.ActivityID
}

// NewBook creates a schedule with the given activity catalog. Agents without
// an explicit assignment follow def.
func NewBook(activities []Activity, def agents.ActivityID) *Book {
	b := &Book{
		activities: make(map[agents.ActivityID]Activity, len(activities)),
		entries:    make(map[agents.AgentID]*entry),
		def:        def,
	}
	for _, a := range activities {
		b.activities[a.ID] = a
	}
	return b
}

func (b *Book) entryLocked(id agents.AgentID) *entry {
	e, ok := b.entries[id]
	if !ok {
		e = &entry{base: b.def}
		b.entries[id] = e
	}
	return e
}

// Assign sets an agent's base activity.
func (b *Book) Assign(id agents.AgentID, activity agents.ActivityID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := b.entryLocked(id)
	e.base = activity
	e.cleared = false
}

// Clear removes an agent's activity entirely (no trading allowed).
func (b *Book) Clear(id agents.AgentID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := b.entryLocked(id)
	e.cleared = true
	e.override = nil
}

// Current returns the activity in effect for an agent.
func (b *Book) Current(id agents.AgentID) (Activity, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.entries[id]
	if !ok {
		act, found := b.activities[b.def]
		return act, found
	}
	if e.cleared {
		return Activity{}, false
	}
	aid := e.base
	if e.override != nil {
		aid = e.override.Activity
	}
	act, found := b.activities[aid]
	return act, found
}

// BeginOverride puts an agent under an override. An existing override is replaced.
func (b *Book) BeginOverride(id agents.AgentID, activity agents.ActivityID, tradeInitiated bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := b.entryLocked(id)
	e.cleared = false
	e.override = &Override{Activity: activity, TradeInitiated: tradeInitiated}
}

// EndOverride lifts any override.
func (b *Book) EndOverride(id agents.AgentID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := b.entries[id]; ok {
		e.override = nil
	}
}

// EndTradeOverride lifts the override only if the trade engine's need pressure started it.
func (b *Book) EndTradeOverride(id agents.AgentID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[id]
	if !ok || e.override == nil || !e.override.TradeInitiated {
		return false
	}
	e.override = nil
	return true
}

// IsOverridden reports whether any override is active.
func (b *Book) IsOverridden(id agents.AgentID) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.entries[id]
	return ok && e.override != nil
}

// IsTradeOverride reports whether the active override was trade-initiated.
func (b *Book) IsTradeOverride(id agents.AgentID) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.entries[id]
	return ok && e.override != nil && e.override.TradeInitiated
}
