package agents

// NeedConfig is the per-need configuration shared by every agent.
// A need value rises toward Max as it goes unmet; resources bring it back down.
type NeedConfig struct {
	ID       NeedID     `json:"id"`
	Resource ResourceID `json:"resource"` // Resource that satisfies this need

	Min float64 `json:"min"`
	Max float64 `json:"max"`

	// SatisfactionPerUnit is how far one unit of Resource lowers the need value.
	SatisfactionPerUnit float64 `json:"satisfaction_per_unit"`

	// DefaultRequest is the desired amount for a freshly raised intent.
	DefaultRequest float64 `json:"default_request"`
}

// Clamp bounds a need value to [Min, Max].
func (c NeedConfig) Clamp(v float64) float64 {
	if c.Max > c.Min {
		if v < c.Min {
			return c.Min
		}
		if v > c.Max {
			return c.Max
		}
	}
	return v
}

// Urgency maps a need value onto 0.0 (fully met) .. 1.0 (at Max).
func (c NeedConfig) Urgency(v float64) float64 {
	if c.Max <= c.Min {
		return v
	}
	u := (v - c.Min) / (c.Max - c.Min)
	if u < 0 {
		return 0
	}
	if u > 1 {
		return 1
	}
	return u
}

// RemainingUnits returns how many resource units would bring the need to Min.
func (c NeedConfig) RemainingUnits(v float64) float64 {
	if c.SatisfactionPerUnit <= 0 {
		return 0
	}
	rem := (v - c.Min) / c.SatisfactionPerUnit
	if rem < 0 {
		return 0
	}
	return rem
}

// NeedCatalog holds the configuration of every known need.
type NeedCatalog map[NeedID]NeedConfig

// Get returns the config for a need, or a unit-range default when unknown.
func (c NeedCatalog) Get(id NeedID) NeedConfig {
	if cfg, ok := c[id]; ok {
		return cfg
	}
	return NeedConfig{ID: id, Min: 0, Max: 1, SatisfactionPerUnit: 0.1, DefaultRequest: 1}
}

// NeedLedger maps need id → current value.
type NeedLedger map[NeedID]float64

// Value returns the current value of a need (0 when never set).
func (l NeedLedger) Value(id NeedID) float64 {
	return l[id]
}

// Set stores a clamped value.
func (l NeedLedger) Set(cfg NeedConfig, v float64) {
	l[cfg.ID] = cfg.Clamp(v)
}

// Apply adds delta to a need and clamps the result. Returns the new value.
func (l NeedLedger) Apply(cfg NeedConfig, delta float64) float64 {
	v := cfg.Clamp(l[cfg.ID] + delta)
	l[cfg.ID] = v
	return v
}

// Satisfy lowers a need by units × SatisfactionPerUnit.
func (l NeedLedger) Satisfy(cfg NeedConfig, units float64) float64 {
	return l.Apply(cfg, -units*cfg.SatisfactionPerUnit)
}
