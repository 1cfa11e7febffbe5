// Package agents provides the agent data model: need and resource ledgers,
// the intent store, and the per-agent trade request.
package agents

import (
	"time"

	"github.com/talgya/worldsim/internal/entropy"
	"github.com/talgya/worldsim/internal/world"
)

// AgentID is a unique identifier for an agent.
type AgentID uint64

// SocietyID is a unique identifier for a society. Zero means "no society".
type SocietyID uint64

// Agent is the core entity representing an NPC in the simulation.
type Agent struct {
	ID   AgentID `json:"id"`
	Name string  `json:"name"`

	SocietyID SocietyID `json:"society_id,omitempty"`

	// Location
	Position world.HexCoord `json:"position"`
	Location LocationID     `json:"location,omitempty"` // Named location the agent stands in, if any
	Nav      NavState       `json:"nav"`

	// Ledgers
	Needs     NeedLedger `json:"needs"`
	Inventory Inventory  `json:"inventory"`

	// Trade
	Intents  IntentList    `json:"intents,omitempty"`
	Request  TradeRequest  `json:"request"`
	Provider ProviderState `json:"provider"` // Set when this agent is supplying someone

	Rng       *entropy.Stream `json:"rng"`
	IntentSeq uint64          `json:"intent_seq"`

	Alive bool `json:"alive"`
}

// NavState is the agent-side half of the navigation contract.
type NavState struct {
	Destination *world.HexCoord `json:"destination,omitempty"`
	Moving      bool            `json:"moving"`
	Arrived     bool            `json:"arrived"`
}

// ProviderState is the busy-lock held on a provider by its current requester.
type ProviderState struct {
	ActiveRequester AgentID       `json:"active_requester,omitempty"`
	BusyUntil       time.Duration `json:"busy_until,omitempty"`
}

// Locked reports whether a requester holds the lock at time now.
func (p ProviderState) Locked(now time.Duration) bool {
	return p.ActiveRequester != 0 && now < p.BusyUntil
}

// NewAgent returns a live agent with empty ledgers and an idle request.
func NewAgent(id AgentID, name string, worldSeed int64) *Agent {
	return &Agent{
		ID:        id,
		Name:      name,
		Needs:     make(NeedLedger),
		Inventory: make(Inventory),
		Request:   NewTradeRequest(),
		Rng:       entropy.NewStream(worldSeed, uint64(id)),
		Alive:     true,
	}
}

// RaiseIntent upserts the intent for a need. An existing intent keeps its id,
// attempts and backoff; only its desired amount and urgency are refreshed.
func (a *Agent) RaiseIntent(cfg NeedConfig, urgency float64) *Intent {
	if in, ok := a.Intents.ForNeed(cfg.ID); ok {
		in.Urgency = urgency
		if in.DesiredAmount <= 0 {
			in.DesiredAmount = cfg.DefaultRequest
		}
		return in
	}
	a.IntentSeq++
	a.Intents = append(a.Intents, Intent{
		ID:            IntentID(a.ID, cfg.ID, a.IntentSeq),
		NeedID:        cfg.ID,
		ResourceID:    cfg.Resource,
		DesiredAmount: cfg.DefaultRequest,
		Urgency:       urgency,
	})
	return &a.Intents[len(a.Intents)-1]
}
