// Provider arbitration: busy-locks, the per-tick assignment set, and the
// FIFO queues of requesters waiting on a provider.
package engine

import (
	"sort"
	"time"

	"github.com/talgya/worldsim/internal/agents"
)

// providerLock returns the busy-lock of a provider, or nil when it no longer exists.
func (s *Simulation) providerLock(p agents.ProviderRef) *agents.ProviderState {
	switch p.Kind {
	case agents.ProviderAgent:
		if pa, ok := s.AgentIndex[p.Agent]; ok && pa.Alive {
			return &pa.Provider
		}
	case agents.ProviderPool:
		if soc, ok := s.SocietyIndex[p.Society]; ok {
			return &soc.PoolLock
		}
	}
	return nil
}

// IsProviderBusy reports whether a different requester holds an unexpired lock
// on p. A stale lock is cleared on the way through.
func (s *Simulation) IsProviderBusy(p agents.ProviderRef, requester agents.AgentID, now time.Duration) bool {
	lock := s.providerLock(p)
	if lock == nil {
		return false
	}
	if !lock.Locked(now) {
		*lock = agents.ProviderState{}
		return false
	}
	return lock.ActiveRequester != requester
}

// acquireProvider grants requester exclusivity over p for at least one tick.
func (s *Simulation) acquireProvider(p agents.ProviderRef, requester agents.AgentID, now, interval time.Duration) {
	if lock := s.providerLock(p); lock != nil {
		lock.ActiveRequester = requester
		lock.BusyUntil = now + interval
	}
}

// QueueEntry is one requester waiting on a provider.
type QueueEntry struct {
	Requester agents.AgentID `json:"requester"`
	SlotIndex int            `json:"slot_index"`
}

// QueueBook holds provider FIFOs and the slot indices taken at each location.
// FIFO order is insertion order; slot indices only say where people stand.
type QueueBook struct {
	fifo  map[agents.ProviderRef][]QueueEntry
	slots map[agents.LocationID]map[int]agents.AgentID
}

// NewQueueBook returns an empty queue book.
func NewQueueBook() *QueueBook {
	return &QueueBook{
		fifo:  make(map[agents.ProviderRef][]QueueEntry),
		slots: make(map[agents.LocationID]map[int]agents.AgentID),
	}
}

// Entries returns the FIFO of a provider, head first.
func (q *QueueBook) Entries(p agents.ProviderRef) []QueueEntry {
	return q.fifo[p]
}

// Head returns the requester at the front of p's queue.
func (q *QueueBook) Head(p agents.ProviderRef) (agents.AgentID, bool) {
	e := q.fifo[p]
	if len(e) == 0 {
		return 0, false
	}
	return e[0].Requester, true
}

// FreeSlot returns the lowest slot index at loc that no queued requester holds
// and that usable accepts.
func (q *QueueBook) FreeSlot(loc agents.LocationID, slotCount int, usable func(i int) bool) (int, bool) {
	taken := q.slots[loc]
	for i := 0; i < slotCount; i++ {
		if _, held := taken[i]; held {
			continue
		}
		if usable != nil && !usable(i) {
			continue
		}
		return i, true
	}
	return -1, false
}

// Join appends requester to p's queue, standing in slot at loc.
func (q *QueueBook) Join(p agents.ProviderRef, loc agents.LocationID, requester agents.AgentID, slot int) {
	q.fifo[p] = append(q.fifo[p], QueueEntry{Requester: requester, SlotIndex: slot})
	if q.slots[loc] == nil {
		q.slots[loc] = make(map[int]agents.AgentID)
	}
	q.slots[loc][slot] = requester
}

// Leave removes requester from p's queue and frees its slot at loc. No-op when absent.
func (q *QueueBook) Leave(p agents.ProviderRef, loc agents.LocationID, requester agents.AgentID) {
	entries := q.fifo[p]
	for i, e := range entries {
		if e.Requester != requester {
			continue
		}
		q.fifo[p] = append(entries[:i], entries[i+1:]...)
		if len(q.fifo[p]) == 0 {
			delete(q.fifo, p)
		}
		if taken := q.slots[loc]; taken != nil && taken[e.SlotIndex] == requester {
			delete(taken, e.SlotIndex)
			if len(taken) == 0 {
				delete(q.slots, loc)
			}
		}
		return
	}
}

// Len returns the number of requesters queued on p.
func (q *QueueBook) Len(p agents.ProviderRef) int {
	return len(q.fifo[p])
}

// tickLocks is the set of providers already assigned a new requester this tick.
type tickLocks map[agents.ProviderRef]bool

// RebuildQueues restores provider FIFOs from queued requests, ordered by the
// time each requester joined and then by sweep order. Used after a restore.
func (s *Simulation) RebuildQueues() {
	s.Queues = NewQueueBook()
	var queued []*agents.Agent
	for _, a := range s.Agents {
		if a.Alive && a.Request.Stage == agents.StageQueued {
			queued = append(queued, a)
		}
	}
	sort.SliceStable(queued, func(i, j int) bool {
		return queued[i].Request.WaitStart < queued[j].Request.WaitStart
	})
	for _, a := range queued {
		req := &a.Request
		s.Queues.Join(req.Provider, req.TargetLocation, a.ID, req.QueueSlotIndex)
	}
}

// QueueView is a read-only copy of one provider's queue.
type QueueView struct {
	Provider agents.ProviderRef `json:"provider"`
	Entries  []QueueEntry       `json:"entries"`
}

// Snapshot copies every non-empty queue, ordered by provider.
func (q *QueueBook) Snapshot() []QueueView {
	out := make([]QueueView, 0, len(q.fifo))
	for p, entries := range q.fifo {
		out = append(out, QueueView{Provider: p, Entries: append([]QueueEntry(nil), entries...)})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Provider, out[j].Provider
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Agent != b.Agent {
			return a.Agent < b.Agent
		}
		return a.Society < b.Society
	})
	return out
}
