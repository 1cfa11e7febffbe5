package config

import "time"

// MaxProviderAttemptsCap bounds provider re-selection within one tick.
const MaxProviderAttemptsCap = 8

// TradeSettings is the per-society trade policy consumed by the engine.
type TradeSettings struct {
	TickIntervalSeconds float64 `yaml:"tick_interval_seconds" json:"tick_interval_seconds"`

	MinIntentUrgency       float64 `yaml:"min_intent_urgency" json:"min_intent_urgency"`
	MinIntentUrgencyToKeep float64 `yaml:"min_intent_urgency_to_keep" json:"min_intent_urgency_to_keep"`

	BackoffBaseHours   float64 `yaml:"backoff_base_hours" json:"backoff_base_hours"`
	BackoffMaxHours    float64 `yaml:"backoff_max_hours" json:"backoff_max_hours"`
	BackoffJitterHours float64 `yaml:"backoff_jitter_hours" json:"backoff_jitter_hours"`

	MaxAttempts                int `yaml:"max_attempts" json:"max_attempts"`
	MaxProviderAttemptsPerTick int `yaml:"max_provider_attempts_per_tick" json:"max_provider_attempts_per_tick"`

	// WaitSeconds scales the travel and queue timeouts.
	WaitSeconds float64 `yaml:"wait_seconds" json:"wait_seconds"`
	// QueueReservationSeconds is how long a queue-slot node claim lasts before it must be renewed.
	QueueReservationSeconds float64 `yaml:"queue_reservation_seconds" json:"queue_reservation_seconds"`

	ConsumeResourceOnResolve bool `yaml:"consume_resource_on_resolve" json:"consume_resource_on_resolve"`
	ConsumeInventoryFirst    bool `yaml:"consume_inventory_first" json:"consume_inventory_first"`
	ClampTransferToNeed      bool `yaml:"clamp_transfer_to_need" json:"clamp_transfer_to_need"`
	LockProviderPerTick      bool `yaml:"lock_provider_per_tick" json:"lock_provider_per_tick"`
	AllowMidwayTrade         bool `yaml:"allow_midway_trade" json:"allow_midway_trade"`
}

// DefaultTradeSettings returns the settings used when nothing is configured.
func DefaultTradeSettings() TradeSettings {
	return TradeSettings{
		TickIntervalSeconds:        60,
		MinIntentUrgency:           0.5,
		MinIntentUrgencyToKeep:     0.2,
		BackoffBaseHours:           0.25,
		BackoffMaxHours:            4,
		BackoffJitterHours:         0.05,
		MaxAttempts:                5,
		MaxProviderAttemptsPerTick: 3,
		WaitSeconds:                600,
		QueueReservationSeconds:    120,
		ConsumeResourceOnResolve:   true,
		ConsumeInventoryFirst:      true,
		LockProviderPerTick:        true,
		AllowMidwayTrade:           true,
	}
}

// Normalize clamps malformed values to safe defaults instead of rejecting them.
func (t *TradeSettings) Normalize() {
	def := DefaultTradeSettings()
	if t.TickIntervalSeconds <= 0 {
		t.TickIntervalSeconds = def.TickIntervalSeconds
	}
	t.MinIntentUrgency = clamp01(t.MinIntentUrgency)
	t.MinIntentUrgencyToKeep = clamp01(t.MinIntentUrgencyToKeep)
	if t.MinIntentUrgencyToKeep > t.MinIntentUrgency {
		t.MinIntentUrgencyToKeep = t.MinIntentUrgency
	}
	if t.BackoffBaseHours <= 0 {
		t.BackoffBaseHours = def.BackoffBaseHours
	}
	if t.BackoffMaxHours < t.BackoffBaseHours {
		t.BackoffMaxHours = t.BackoffBaseHours
	}
	if t.BackoffJitterHours < 0 {
		t.BackoffJitterHours = 0
	}
	if t.MaxAttempts < 0 {
		t.MaxAttempts = 0
	}
	if t.MaxProviderAttemptsPerTick < 1 {
		t.MaxProviderAttemptsPerTick = 1
	}
	if t.MaxProviderAttemptsPerTick > MaxProviderAttemptsCap {
		t.MaxProviderAttemptsPerTick = MaxProviderAttemptsCap
	}
	if t.WaitSeconds <= 0 {
		t.WaitSeconds = def.WaitSeconds
	}
	if t.QueueReservationSeconds < t.TickIntervalSeconds {
		t.QueueReservationSeconds = t.TickIntervalSeconds
	}
}

// TickInterval is the trade cadence of a society.
func (t TradeSettings) TickInterval() time.Duration { return seconds(t.TickIntervalSeconds) }

// BackoffBase is the first retry delay.
func (t TradeSettings) BackoffBase() time.Duration { return hours(t.BackoffBaseHours) }

// BackoffMax caps the exponential retry delay.
func (t TradeSettings) BackoffMax() time.Duration { return hours(t.BackoffMaxHours) }

// BackoffJitter is the half-width of the uniform retry jitter.
func (t TradeSettings) BackoffJitter() time.Duration { return hours(t.BackoffJitterHours) }

// Wait is the base waiting time used by the travel and queue timeouts.
func (t TradeSettings) Wait() time.Duration { return seconds(t.WaitSeconds) }

// QueueReservation is the lifetime of one queue-slot node claim.
func (t TradeSettings) QueueReservation() time.Duration { return seconds(t.QueueReservationSeconds) }

func seconds(s float64) time.Duration { return time.Duration(s * float64(time.Second)) }

func hours(h float64) time.Duration { return time.Duration(h * float64(time.Hour)) }

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
