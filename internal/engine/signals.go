package engine

import (
	"time"

	"github.com/talgya/worldsim/internal/agents"
)

// Signal ids emitted by the trade engine.
const (
	SignalTradeSuccess agents.SignalID = "trade_success"
	SignalTradeFail    agents.SignalID = "trade_fail"
)

// FailReason classifies a failed trade attempt. Every reason is recovered locally.
type FailReason string

const (
	ReasonNone            FailReason = ""
	ReasonNoPartner       FailReason = "no_partner"
	ReasonProviderMissing FailReason = "provider_missing"
	ReasonProviderTimeout FailReason = "provider_timeout"
	ReasonQueueFull       FailReason = "queue_full"
	ReasonRejected        FailReason = "rejected"
	ReasonNoResource      FailReason = "no_resource"
)

// Signal is one trade outcome, emitted for every resolution attempt.
type Signal struct {
	Seq       uint64             `json:"seq"` // Monotonic across the world's lifetime
	Time      time.Duration      `json:"time"`
	Tick      uint64             `json:"tick"`
	ID        agents.SignalID    `json:"id"`
	Reason    FailReason         `json:"reason,omitempty"`
	Need      agents.NeedID      `json:"need"`
	Resource  agents.ResourceID  `json:"resource"`
	Requester agents.AgentID     `json:"requester"`
	Target    agents.ProviderRef `json:"target"`
	Amount    float64            `json:"amount"`
}

// Success reports whether the signal records a completed transfer.
func (s Signal) Success() bool { return s.ID == SignalTradeSuccess }

// SignalSink receives emitted signals. The engine never reads them back.
type SignalSink interface {
	Emit(Signal)
}

// SinkFunc adapts a function to SignalSink.
type SinkFunc func(Signal)

// Emit calls f(s).
func (f SinkFunc) Emit(s Signal) { f(s) }
