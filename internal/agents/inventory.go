package agents

import "sort"

// Inventory maps resource id → quantity held. Quantities never go negative.
type Inventory map[ResourceID]float64

// Amount returns the quantity held of a resource.
func (inv Inventory) Amount(id ResourceID) float64 {
	return inv[id]
}

// Holds reports whether any of the resource is on hand.
func (inv Inventory) Holds(id ResourceID) bool {
	return inv[id] > 0
}

// Add deposits qty units. Non-positive quantities are ignored.
func (inv Inventory) Add(id ResourceID, qty float64) {
	if qty <= 0 {
		return
	}
	inv[id] += qty
}

// Remove withdraws up to qty units and returns how much was actually taken.
func (inv Inventory) Remove(id ResourceID, qty float64) float64 {
	have := inv[id]
	if qty <= 0 || have <= 0 {
		return 0
	}
	if qty >= have {
		delete(inv, id)
		return have
	}
	inv[id] = have - qty
	return qty
}

// IsEmpty returns true if nothing is held.
func (inv Inventory) IsEmpty() bool {
	for _, qty := range inv {
		if qty > 0 {
			return false
		}
	}
	return true
}

// Resources lists held resource ids in sorted order.
func (inv Inventory) Resources() []ResourceID {
	out := make([]ResourceID, 0, len(inv))
	for id, qty := range inv {
		if qty > 0 {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clone returns an independent copy.
func (inv Inventory) Clone() Inventory {
	out := make(Inventory, len(inv))
	for id, qty := range inv {
		out[id] = qty
	}
	return out
}
