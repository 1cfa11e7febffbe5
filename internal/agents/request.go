package agents

import (
	"fmt"
	"time"

	"github.com/talgya/worldsim/internal/world"
)

// TradeStage is the negotiation stage of an agent's live request.
type TradeStage uint8

const (
	StageNone TradeStage = iota
	StageTraveling
	StageQueued
	StageResolving
)

func (s TradeStage) String() string {
	switch s {
	case StageTraveling:
		return "traveling"
	case StageQueued:
		return "queued"
	case StageResolving:
		return "resolving"
	default:
		return "none"
	}
}

// ProviderKind distinguishes agent providers from society pools.
type ProviderKind uint8

const (
	ProviderNone ProviderKind = iota
	ProviderAgent
	ProviderPool
	ProviderSelf // Requester's own inventory
)

// ProviderRef identifies whoever supplies a resource.
type ProviderRef struct {
	Kind    ProviderKind `json:"kind"`
	Agent   AgentID      `json:"agent,omitempty"`
	Society SocietyID    `json:"society,omitempty"`
}

// AgentProvider references an agent acting as a provider.
func AgentProvider(id AgentID) ProviderRef { return ProviderRef{Kind: ProviderAgent, Agent: id} }

// PoolProvider references a society pool.
func PoolProvider(id SocietyID) ProviderRef { return ProviderRef{Kind: ProviderPool, Society: id} }

// IsZero reports whether the reference points at nothing.
func (p ProviderRef) IsZero() bool { return p.Kind == ProviderNone }

func (p ProviderRef) String() string {
	switch p.Kind {
	case ProviderAgent:
		return fmt.Sprintf("agent:%d", p.Agent)
	case ProviderPool:
		return fmt.Sprintf("pool:%d", p.Society)
	case ProviderSelf:
		return "self"
	default:
		return "none"
	}
}

// TradeRequest is the single live negotiation an agent may have.
// Stage == StageNone implies a zero Provider and QueueSlotNode == -1.
type TradeRequest struct {
	Stage         TradeStage `json:"stage"`
	IntentID      string     `json:"intent_id,omitempty"`
	NeedID        NeedID     `json:"need_id,omitempty"`
	ResourceID    ResourceID `json:"resource_id,omitempty"`
	DesiredAmount float64    `json:"desired_amount,omitempty"`
	Urgency       float64    `json:"urgency,omitempty"`

	Provider       ProviderRef    `json:"provider"`
	TargetAnchor   world.HexCoord `json:"target_anchor"`
	TargetLocation LocationID     `json:"target_location,omitempty"`

	StartTime time.Duration `json:"start_time"`
	WaitStart time.Duration `json:"wait_start"`

	QueueSlotIndex int `json:"queue_slot_index"`
	QueueSlotNode  int `json:"queue_slot_node"`

	IsOverride         bool          `json:"is_override,omitempty"`
	AttemptedProviders []ProviderRef `json:"attempted_providers,omitempty"`
}

// NewTradeRequest returns an idle request.
func NewTradeRequest() TradeRequest {
	return TradeRequest{QueueSlotIndex: -1, QueueSlotNode: -1}
}

// Active reports whether a negotiation is under way.
func (r *TradeRequest) Active() bool { return r.Stage != StageNone }

// Attempted reports whether a provider was already tried for this request.
func (r *TradeRequest) Attempted(p ProviderRef) bool {
	for _, a := range r.AttemptedProviders {
		if a == p {
			return true
		}
	}
	return false
}

// MarkAttempted records a provider as tried.
func (r *TradeRequest) MarkAttempted(p ProviderRef) {
	if p.IsZero() || r.Attempted(p) {
		return
	}
	r.AttemptedProviders = append(r.AttemptedProviders, p)
}

// ClearProvider drops the provider binding but keeps the intent binding and
// attempted list, so selection can continue in the same tick.
func (r *TradeRequest) ClearProvider() {
	r.Stage = StageNone
	r.Provider = ProviderRef{}
	r.TargetAnchor = world.HexCoord{}
	r.TargetLocation = ""
	r.QueueSlotIndex = -1
	r.QueueSlotNode = -1
	r.WaitStart = 0
}

// Reset returns the request to idle.
func (r *TradeRequest) Reset() {
	*r = NewTradeRequest()
}
