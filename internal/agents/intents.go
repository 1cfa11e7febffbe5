package agents

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// intentNamespace scopes deterministic intent ids.
var intentNamespace = uuid.MustParse("6f1c1d2e-8a0b-4c55-9f3e-2b7d4a9e0c11")

// Intent is a pending request to resolve one need through trade.
type Intent struct {
	ID            string        `json:"id"`
	NeedID        NeedID        `json:"need_id"`
	ResourceID    ResourceID    `json:"resource_id"`
	DesiredAmount float64       `json:"desired_amount"`
	Urgency       float64       `json:"urgency"`
	NextAttempt   time.Duration `json:"next_attempt"` // Sim time before which the intent is not retried
	Attempts      int           `json:"attempts"`     // Backoff rounds consumed so far
}

// IntentID derives a stable id from the owner, the need and a per-agent sequence.
// Replaying the same simulation yields the same ids.
func IntentID(owner AgentID, need NeedID, seq uint64) string {
	return uuid.NewSHA1(intentNamespace, []byte(fmt.Sprintf("%d/%s/%d", owner, need, seq))).String()
}

// IntentList holds at most one intent per need, in creation order.
type IntentList []Intent

// Find returns the intent with the given id.
func (l IntentList) Find(id string) (*Intent, bool) {
	for i := range l {
		if l[i].ID == id {
			return &l[i], true
		}
	}
	return nil, false
}

// ForNeed returns the intent for a need.
func (l IntentList) ForNeed(need NeedID) (*Intent, bool) {
	for i := range l {
		if l[i].NeedID == need {
			return &l[i], true
		}
	}
	return nil, false
}

// Remove deletes the intent with the given id. Returns false if absent.
func (l *IntentList) Remove(id string) bool {
	for i := range *l {
		if (*l)[i].ID == id {
			*l = append((*l)[:i], (*l)[i+1:]...)
			return true
		}
	}
	return false
}

// Prune recomputes every urgency from the ledger and drops intents that fell
// below keep or carry empty ids. Returns the ids that were dropped.
func (l *IntentList) Prune(needs NeedLedger, catalog NeedCatalog, keep float64) []string {
	var dropped []string
	kept := (*l)[:0]
	for _, in := range *l {
		if in.NeedID == "" || in.ResourceID == "" {
			dropped = append(dropped, in.ID)
			continue
		}
		in.Urgency = catalog.Get(in.NeedID).Urgency(needs.Value(in.NeedID))
		if in.Urgency < keep {
			dropped = append(dropped, in.ID)
			continue
		}
		kept = append(kept, in)
	}
	*l = kept
	return dropped
}

// Select returns the highest-urgency intent that is due, meets minUrgency and
// whose need passes permit. Ties keep the first encountered.
func (l IntentList) Select(now time.Duration, minUrgency float64, permit func(NeedID) bool) (*Intent, bool) {
	best := -1
	for i := range l {
		in := &l[i]
		if in.NextAttempt > now || in.Urgency < minUrgency {
			continue
		}
		if permit != nil && !permit(in.NeedID) {
			continue
		}
		if best < 0 || in.Urgency > l[best].Urgency {
			best = i
		}
	}
	if best < 0 {
		return nil, false
	}
	return &l[best], true
}
