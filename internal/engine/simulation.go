// Simulation ties together the world, the agents and their societies, and
// runs the trade engine each tick.
package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/talgya/worldsim/internal/agents"
	"github.com/talgya/worldsim/internal/config"
	"github.com/talgya/worldsim/internal/navigation"
	"github.com/talgya/worldsim/internal/schedule"
	"github.com/talgya/worldsim/internal/social"
	"github.com/talgya/worldsim/internal/weather"
	"github.com/talgya/worldsim/internal/world"
)

// maxSignals bounds the in-memory signal ring.
const maxSignals = 1000

// Simulation holds the complete world state and wires systems together.
type Simulation struct {
	mu sync.RWMutex

	Grid      *world.Grid
	Locations *world.Locations

	Agents     []*agents.Agent
	AgentIndex map[agents.AgentID]*agents.Agent

	Societies    []*social.Society
	SocietyIndex map[agents.SocietyID]*social.Society

	Catalog  agents.NeedCatalog
	Drift    []NeedDrift
	Climate  weather.Climate
	Defaults config.TradeSettings // Settings for agents without a society

	// TradeActivity is the override begun when a need turns pressing.
	TradeActivity agents.ActivityID

	Nav      Navigator
	Schedule Scheduler
	Queues   *QueueBook

	// Agent spawner for top-ups and restored worlds.
	Spawner *agents.Spawner

	LastTick uint64        // Most recent tick processed
	Now      time.Duration // Sim time of LastTick

	Signals   []Signal // Recent signals, oldest first
	SignalSeq uint64   // Seq of the newest signal
	Stats     TradeStats

	looseGate social.Gate
	retryAt   map[needKey]time.Duration // Earliest re-raise of a dropped intent
	sinks     []SignalSink
	subs      map[chan Signal]struct{}
}

// TradeStats tracks aggregate trade activity.
type TradeStats struct {
	Alive     int                   `json:"alive"`
	Intents   int                   `json:"intents"`
	Stages    map[string]int        `json:"stages"`
	Successes uint64                `json:"successes"`
	Failures  uint64                `json:"failures"`
	ByReason  map[FailReason]uint64 `json:"by_reason"`
	Moved     float64               `json:"moved"`
}

// NewSimulation creates a Simulation from generated components. It starts
// with a hex mover and a schedule where every agent may trade; both can be
// replaced before the first tick.
func NewSimulation(g *world.Grid, locs *world.Locations, ag []*agents.Agent, socs []*social.Society, catalog agents.NeedCatalog, defaults config.TradeSettings) *Simulation {
	defaults.Normalize()
	sim := &Simulation{
		Grid:         g,
		Locations:    locs,
		AgentIndex:   make(map[agents.AgentID]*agents.Agent, len(ag)),
		SocietyIndex: make(map[agents.SocietyID]*social.Society, len(socs)),
		Catalog:      catalog,
		Defaults:     defaults,
		Nav:          navigation.NewMover(g, locs, 1),
		Schedule: schedule.NewBook([]schedule.Activity{
			{ID: "idle", Policy: schedule.AllowAll, AllowMidway: true},
		}, "idle"),
		Queues: NewQueueBook(),
		Stats: TradeStats{
			Stages:   make(map[string]int),
			ByReason: make(map[FailReason]uint64),
		},
		retryAt: make(map[needKey]time.Duration),
		subs:    make(map[chan Signal]struct{}),
	}
	for _, soc := range socs {
		sim.AddSociety(soc)
	}
	for _, a := range ag {
		sim.AddAgent(a)
	}
	sim.updateStats()
	return sim
}

// AddAgent registers an agent.
func (s *Simulation) AddAgent(a *agents.Agent) {
	if _, dup := s.AgentIndex[a.ID]; dup {
		return
	}
	s.Agents = append(s.Agents, a)
	s.AgentIndex[a.ID] = a
}

// AddSociety registers a society.
func (s *Simulation) AddSociety(soc *social.Society) {
	if _, dup := s.SocietyIndex[soc.ID]; dup {
		return
	}
	s.Societies = append(s.Societies, soc)
	s.SocietyIndex[soc.ID] = soc
}

// SetClimate replaces the climate that scales need drift.
func (s *Simulation) SetClimate(c weather.Climate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Climate = c
}

// AddSink attaches a downstream signal consumer.
func (s *Simulation) AddSink(sink SignalSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sinks = append(s.sinks, sink)
}

// Subscribe returns a channel receiving every new signal. Slow readers miss
// signals rather than stall the tick. Call the returned func to unsubscribe.
func (s *Simulation) Subscribe(buffer int) (<-chan Signal, func()) {
	ch := make(chan Signal, max(buffer, 1))
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, ch)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// View runs fn with read access to the simulation state.
func (s *Simulation) View(fn func()) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn()
}

// Update runs fn with exclusive access to the simulation state.
func (s *Simulation) Update(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// CurrentTick returns the most recently processed tick number.
func (s *Simulation) CurrentTick() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.LastTick
}

// Step advances the world to sim time now: needs drift, agents move, then
// the trade frame runs.
func (s *Simulation) Step(tick uint64, now time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dt := now - s.Now
	s.LastTick = tick
	s.Now = now
	s.driftNeeds(dt)
	if st, ok := s.Nav.(stepper); ok {
		st.StepAll(s.Agents)
	}
	s.TickTrade(tick)
	s.updateStats()
}

// emit records a signal and fans it out. Called with mu held.
func (s *Simulation) emit(sig Signal) {
	s.SignalSeq++
	sig.Seq = s.SignalSeq
	s.Signals = append(s.Signals, sig)
	if len(s.Signals) > maxSignals {
		s.Signals = s.Signals[len(s.Signals)-maxSignals:]
	}
	if sig.Success() {
		s.Stats.Successes++
		s.Stats.Moved += sig.Amount
	} else {
		s.Stats.Failures++
		s.Stats.ByReason[sig.Reason]++
	}
	for _, sink := range s.sinks {
		sink.Emit(sig)
	}
	for ch := range s.subs {
		select {
		case ch <- sig:
		default:
		}
	}
}

// RecentSignals returns up to n of the newest signals, oldest first.
func (s *Simulation) RecentSignals(n int) []Signal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := 0
	if n > 0 && len(s.Signals) > n {
		start = len(s.Signals) - n
	}
	out := make([]Signal, len(s.Signals)-start)
	copy(out, s.Signals[start:])
	return out
}

// LogSummary writes a one-line report of trade activity.
func (s *Simulation) LogSummary() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slog.Info("trade summary",
		"tick", s.LastTick,
		"time", SimTime(s.Now),
		"alive", s.Stats.Alive,
		"intents", s.Stats.Intents,
		"traveling", s.Stats.Stages[agents.StageTraveling.String()],
		"queued", s.Stats.Stages[agents.StageQueued.String()],
		"successes", s.Stats.Successes,
		"failures", s.Stats.Failures,
		"moved", fmt.Sprintf("%.2f", s.Stats.Moved),
	)
}

func (s *Simulation) updateStats() {
	alive, intents := 0, 0
	stages := make(map[string]int)
	for _, a := range s.Agents {
		if !a.Alive {
			continue
		}
		alive++
		intents += len(a.Intents)
		if a.Request.Active() {
			stages[a.Request.Stage.String()]++
		}
	}
	s.Stats.Alive = alive
	s.Stats.Intents = intents
	s.Stats.Stages = stages
}
