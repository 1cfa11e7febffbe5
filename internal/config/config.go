// Package config loads simulation settings from YAML with defaults,
// defensive clamping and schema validation.
package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/talgya/worldsim/internal/agents"
)

// ErrInvalid marks a settings document rejected by the schema.
var ErrInvalid = errors.New("invalid settings")

//go:embed settings.schema.json
var settingsSchema string

// Config is the full settings document.
type Config struct {
	Seed           int64   `yaml:"seed"`
	SimStepSeconds float64 `yaml:"sim_step_seconds"` // Sim time advanced per engine tick
	SnapshotTicks  int     `yaml:"snapshot_ticks"`   // Ticks between persisted snapshots (0 = off)

	Trade      TradeSettings  `yaml:"trade"`
	Needs      []NeedSpec     `yaml:"needs"`
	World      WorldSpec      `yaml:"world"`
	Population PopulationSpec `yaml:"population"`
	Societies  []SocietySpec  `yaml:"societies"`
	Schedule   ScheduleSpec   `yaml:"schedule"`
}

// NeedSpec configures one need, including the drift that stands in for the
// external need model.
type NeedSpec struct {
	ID                  string  `yaml:"id"`
	Resource            string  `yaml:"resource"`
	Min                 float64 `yaml:"min"`
	Max                 float64 `yaml:"max"`
	SatisfactionPerUnit float64 `yaml:"satisfaction_per_unit"`
	DefaultRequest      float64 `yaml:"default_request"`
	DecayPerHour        float64 `yaml:"decay_per_hour"`
	IntentThreshold     float64 `yaml:"intent_threshold"`   // Urgency that raises an intent
	OverrideThreshold   float64 `yaml:"override_threshold"` // Urgency that starts a trade override (0 = never)
	HeatFactor          float64 `yaml:"heat_factor"`        // Extra drift at full heat
	ColdFactor          float64 `yaml:"cold_factor"`        // Extra drift at full cold
}

// WorldSpec configures grid generation.
type WorldSpec struct {
	Radius      int     `yaml:"radius"`
	Locations   int     `yaml:"locations"`
	MinSpacing  int     `yaml:"min_spacing"`
	QueueSlots  int     `yaml:"queue_slots"`
	QueueRadius float64 `yaml:"queue_radius"`
	MoveSpeed   int     `yaml:"move_speed"` // Hexes per tick
}

// PopulationSpec configures the spawner.
type PopulationSpec struct {
	PerLocation int         `yaml:"per_location"`
	Stock       []StockSpec `yaml:"stock"`
}

// StockSpec seeds starting inventories.
type StockSpec struct {
	Resource string  `yaml:"resource"`
	Chance   float64 `yaml:"chance"`
	Min      float64 `yaml:"min"`
	Max      float64 `yaml:"max"`
}

// SocietySpec declares a society, its pool and optional trade overrides.
type SocietySpec struct {
	ID           uint64             `yaml:"id"`
	Name         string             `yaml:"name"`
	Pool         map[string]float64 `yaml:"pool"`
	Regen        map[string]float64 `yaml:"regen"`         // Units per sim-hour, capped at the starting pool
	PoolLocation int                `yaml:"pool_location"` // 1-based generated location index; 0 = pool needs no travel
	Trade        *TradeSettings     `yaml:"trade,omitempty"`
}

// ScheduleSpec declares activities and the default activity.
type ScheduleSpec struct {
	DefaultActivity string         `yaml:"default_activity"`
	TradeActivity   string         `yaml:"trade_activity"`
	Activities      []ActivitySpec `yaml:"activities"`
}

// ActivitySpec declares an activity's trade policy.
type ActivitySpec struct {
	ID           string   `yaml:"id"`
	Policy       string   `yaml:"policy"` // allow_all | allow_only_listed | block_all
	AllowedNeeds []string `yaml:"allowed_needs"`
	AllowMidway  bool     `yaml:"allow_midway"`
}

// Default returns a complete, runnable configuration.
func Default() Config {
	return Config{
		Seed:           42,
		SimStepSeconds: 60,
		SnapshotTicks:  1440,
		Trade:          DefaultTradeSettings(),
		Needs: []NeedSpec{
			{ID: "hunger", Resource: "food", Min: 0, Max: 1, SatisfactionPerUnit: 0.25, DefaultRequest: 2, DecayPerHour: 0.04, IntentThreshold: 0.6, OverrideThreshold: 0.85},
			{ID: "thirst", Resource: "water", Min: 0, Max: 1, SatisfactionPerUnit: 0.3, DefaultRequest: 2, DecayPerHour: 0.06, IntentThreshold: 0.6, OverrideThreshold: 0.85, HeatFactor: 0.5},
			{ID: "warmth", Resource: "firewood", Min: 0, Max: 1, SatisfactionPerUnit: 0.2, DefaultRequest: 1, DecayPerHour: 0.02, IntentThreshold: 0.7, ColdFactor: 1},
		},
		World: WorldSpec{Radius: 16, Locations: 8, MinSpacing: 5, QueueSlots: 6, QueueRadius: 2, MoveSpeed: 1},
		Population: PopulationSpec{
			PerLocation: 6,
			Stock: []StockSpec{
				{Resource: "food", Chance: 0.4, Min: 2, Max: 8},
				{Resource: "water", Chance: 0.4, Min: 2, Max: 8},
				{Resource: "firewood", Chance: 0.2, Min: 1, Max: 4},
			},
		},
		Societies: []SocietySpec{
			{ID: 1, Name: "Riverfolk", Pool: map[string]float64{"food": 20, "water": 20}, Regen: map[string]float64{"water": 1}, PoolLocation: 1},
			{ID: 2, Name: "Hillfolk", Pool: map[string]float64{"food": 10, "firewood": 15}, Regen: map[string]float64{"firewood": 0.5}},
		},
		Schedule: ScheduleSpec{
			DefaultActivity: "work",
			TradeActivity:   "seek_trade",
			Activities: []ActivitySpec{
				{ID: "work", Policy: "allow_all", AllowMidway: true},
				{ID: "sleep", Policy: "block_all"},
				{ID: "seek_trade", Policy: "allow_all", AllowMidway: true},
			},
		},
	}
}

// Load reads a settings file. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	return Parse(raw)
}

// Parse validates a YAML document against the schema and decodes it over the defaults.
func Parse(raw []byte) (Config, error) {
	cfg := Default()
	if err := validateDocument(raw); err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("settings.yaml: %w", err)
	}
	cfg.Normalize()
	return cfg, nil
}

// Normalize clamps every section to safe values.
func (c *Config) Normalize() {
	if c.SimStepSeconds <= 0 {
		c.SimStepSeconds = 60
	}
	if c.SnapshotTicks < 0 {
		c.SnapshotTicks = 0
	}
	c.Trade.Normalize()
	for i := range c.Societies {
		if c.Societies[i].Trade != nil {
			c.Societies[i].Trade.Normalize()
		}
	}
	for i := range c.Needs {
		n := &c.Needs[i]
		if n.Max <= n.Min {
			n.Min, n.Max = 0, 1
		}
		if n.SatisfactionPerUnit <= 0 {
			n.SatisfactionPerUnit = 0.1
		}
		if n.DefaultRequest <= 0 {
			n.DefaultRequest = 1
		}
		n.IntentThreshold = clamp01(n.IntentThreshold)
		n.OverrideThreshold = clamp01(n.OverrideThreshold)
		n.HeatFactor = max(n.HeatFactor, 0)
		n.ColdFactor = max(n.ColdFactor, 0)
	}
	if c.World.Radius < 2 {
		c.World.Radius = 2
	}
	if c.World.QueueSlots < 0 {
		c.World.QueueSlots = 0
	}
	if c.World.QueueRadius < 0 {
		c.World.QueueRadius = 0
	}
	if c.World.MoveSpeed < 1 {
		c.World.MoveSpeed = 1
	}
	if c.Population.PerLocation < 0 {
		c.Population.PerLocation = 0
	}
}

// NeedCatalog converts the need specs into the agents' catalog.
func (c Config) NeedCatalog() agents.NeedCatalog {
	cat := make(agents.NeedCatalog, len(c.Needs))
	for _, n := range c.Needs {
		id := agents.Intern[agents.NeedID](n.ID)
		cat[id] = agents.NeedConfig{
			ID:                  id,
			Resource:            agents.Intern[agents.ResourceID](n.Resource),
			Min:                 n.Min,
			Max:                 n.Max,
			SatisfactionPerUnit: n.SatisfactionPerUnit,
			DefaultRequest:      n.DefaultRequest,
		}
	}
	return cat
}

// SocietyTrade returns the effective trade settings of a society spec.
func (c Config) SocietyTrade(s SocietySpec) TradeSettings {
	if s.Trade != nil {
		return *s.Trade
	}
	return c.Trade
}

func validateDocument(raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("settings.yaml: %w", err)
	}
	if doc == nil {
		return nil
	}
	// Round-trip through JSON so the validator sees JSON-typed values.
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	sch, err := jsonschema.CompileString("settings.schema.json", settingsSchema)
	if err != nil {
		return fmt.Errorf("compile settings schema: %w", err)
	}
	if err := sch.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}
