// Package economy computes and applies resource transfers between ledgers.
package economy

import (
	"github.com/talgya/worldsim/internal/agents"
)

// Transfer is one planned resource movement from a source ledger to a requester.
type Transfer struct {
	Resource agents.ResourceID
	Amount   float64
	Grant    bool // Deposit into the requester's inventory
	Consume  bool // Apply the satisfaction effect to the need
}

// PlanAmount returns min(available, desired), further clamped to the remaining
// unmet need when clampToNeed is set. Never negative.
func PlanAmount(available, desired, remainingNeed float64, clampToNeed bool) float64 {
	amount := min(available, desired)
	if clampToNeed && remainingNeed < amount {
		amount = remainingNeed
	}
	if amount < 0 {
		return 0
	}
	return amount
}

// Apply moves t.Amount from src, depositing into dst and/or satisfying the
// need as t requests. Both sides change together or not at all; the
// return value is what actually moved.
func Apply(src, dst agents.Inventory, needs agents.NeedLedger, need agents.NeedConfig, t Transfer) float64 {
	if t.Amount <= 0 || src == nil {
		return 0
	}
	moved := src.Remove(t.Resource, t.Amount)
	if moved <= 0 {
		return 0
	}
	if t.Grant && dst != nil {
		dst.Add(t.Resource, moved)
	}
	if t.Consume && needs != nil {
		needs.Satisfy(need, moved)
	}
	return moved
}
