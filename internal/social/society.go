// Package social provides societies: groups of agents sharing a resource pool
// and a trade policy.
package social

import (
	"time"

	"github.com/talgya/worldsim/internal/agents"
	"github.com/talgya/worldsim/internal/config"
)

// SocietyID is a unique identifier for a society.
type SocietyID = agents.SocietyID

// Society owns a pooled inventory that acts as provider of last resort,
// plus the trade settings and tick gate its members run under.
type Society struct {
	ID   SocietyID `json:"id"`
	Name string    `json:"name"`

	Members []agents.AgentID `json:"members"`

	// Pool
	Pool         agents.Inventory     `json:"pool"`
	PoolLock     agents.ProviderState `json:"pool_lock"`
	PoolLocation agents.LocationID    `json:"pool_location,omitempty"` // Empty = pool is reachable without travel
	PoolRegen    agents.Inventory     `json:"pool_regen,omitempty"`    // Units per sim-hour
	PoolCap      agents.Inventory     `json:"pool_cap,omitempty"`      // Regeneration ceiling per resource

	Settings config.TradeSettings `json:"settings"`
	NextTick time.Duration        `json:"next_tick"`
}

// NewSociety creates a society with normalized settings.
func NewSociety(id SocietyID, name string, settings config.TradeSettings) *Society {
	settings.Normalize()
	return &Society{
		ID:       id,
		Name:     name,
		Pool:     make(agents.Inventory),
		Settings: settings,
	}
}

// AddMember registers an agent with the society.
func (s *Society) AddMember(a *agents.Agent) {
	a.SocietyID = s.ID
	for _, m := range s.Members {
		if m == a.ID {
			return
		}
	}
	s.Members = append(s.Members, a.ID)
}

// RemoveMember drops an agent from the member list.
func (s *Society) RemoveMember(id agents.AgentID) {
	for i, m := range s.Members {
		if m == id {
			s.Members = append(s.Members[:i], s.Members[i+1:]...)
			return
		}
	}
}

// Gate is the per-society trade cadence.
type Gate struct {
	Next time.Duration
}

// Ready reports whether the gate opens at now, advancing it when it does.
// A forced gate opens regardless of its timer.
func (g *Gate) Ready(now, interval time.Duration, forced bool) bool {
	if now < g.Next && !forced {
		return false
	}
	g.Next = now + interval
	return true
}

// Ready runs the society's own gate.
func (s *Society) Ready(now time.Duration, forced bool) bool {
	g := Gate{Next: s.NextTick}
	ok := g.Ready(now, s.Settings.TickInterval(), forced)
	s.NextTick = g.Next
	return ok
}
