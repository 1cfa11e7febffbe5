package engine

import (
	"time"

	"github.com/talgya/worldsim/internal/agents"
	"github.com/talgya/worldsim/internal/config"
)

// NeedDrift is how one need rises over time and when it raises an intent.
type NeedDrift struct {
	Need              agents.NeedID
	PerHour           float64
	IntentThreshold   float64
	OverrideThreshold float64 // 0 disables trade overrides for this need
	HeatFactor        float64
	ColdFactor        float64
}

// DriftFromConfig builds the drift table from the need catalog section.
func DriftFromConfig(cfg config.Config) []NeedDrift {
	out := make([]NeedDrift, 0, len(cfg.Needs))
	for _, n := range cfg.Needs {
		out = append(out, NeedDrift{
			Need:              agents.Intern[agents.NeedID](n.ID),
			PerHour:           n.DecayPerHour,
			IntentThreshold:   n.IntentThreshold,
			OverrideThreshold: n.OverrideThreshold,
			HeatFactor:        n.HeatFactor,
			ColdFactor:        n.ColdFactor,
		})
	}
	return out
}

// driftNeeds raises every live agent's needs by dt, scaled by the climate,
// and reacts to threshold crossings.
func (s *Simulation) driftNeeds(dt time.Duration) {
	if dt <= 0 {
		return
	}
	hours := dt.Hours()
	for _, a := range s.Agents {
		if !a.Alive {
			continue
		}
		for _, d := range s.Drift {
			if d.PerHour == 0 {
				continue
			}
			cfg := s.Catalog.Get(d.Need)
			rate := d.PerHour * s.Climate.Scale(d.HeatFactor, d.ColdFactor)
			before := cfg.Urgency(a.Needs.Value(d.Need))
			after := cfg.Urgency(a.Needs.Apply(cfg, rate*hours))
			s.raise(a, cfg, d, before, after)
		}
	}
}

// needKey names one need of one agent.
type needKey struct {
	agent agents.AgentID
	need  agents.NeedID
}

// raise upserts an intent when urgency crosses the intent threshold, or when
// it stays above it with no intent left and any drop cooldown has passed.
// While the need is past the override threshold and the intent is due, it
// starts a trade override.
func (s *Simulation) raise(a *agents.Agent, cfg agents.NeedConfig, d NeedDrift, before, after float64) {
	_, pending := a.Intents.ForNeed(d.Need)
	if crossed(before, after, d.IntentThreshold) || (!pending && s.reraise(a.ID, d, after)) {
		a.RaiseIntent(cfg, after)
		delete(s.retryAt, needKey{a.ID, d.Need})
	}
	if s.TradeActivity == "" || d.OverrideThreshold <= 0 || after < d.OverrideThreshold {
		return
	}
	in, ok := a.Intents.ForNeed(d.Need)
	if !ok || in.NextAttempt > s.Now || s.Schedule.IsOverridden(a.ID) {
		return
	}
	s.Schedule.BeginOverride(a.ID, s.TradeActivity, true)
}

func (s *Simulation) reraise(id agents.AgentID, d NeedDrift, urgency float64) bool {
	if d.IntentThreshold <= 0 || urgency < d.IntentThreshold {
		return false
	}
	at, dropped := s.retryAt[needKey{id, d.Need}]
	return !dropped || s.Now >= at
}

func crossed(before, after, threshold float64) bool {
	return threshold > 0 && before < threshold && after >= threshold
}
