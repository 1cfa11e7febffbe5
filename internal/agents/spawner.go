package agents

import (
	"math/rand"
	"sort"

	"github.com/talgya/worldsim/internal/world"
)

// StockSpec describes how likely a spawned agent is to carry a resource, and how much.
type StockSpec struct {
	Resource ResourceID
	Chance   float64 // 0.0–1.0
	Min, Max float64
}

// Spawner creates agents for the simulation.
type Spawner struct {
	rng       *rand.Rand
	worldSeed int64
	nextID    AgentID
}

// NewSpawner creates an agent spawner with the given seed.
func NewSpawner(seed int64) *Spawner {
	return &Spawner{
		rng:       rand.New(rand.NewSource(seed + 300)),
		worldSeed: seed,
		nextID:    1,
	}
}

// SetNextID sets the next agent ID to be issued (used when restoring from DB).
func (s *Spawner) SetNextID(id AgentID) {
	s.nextID = id
}

// SpawnPopulation creates count agents standing at a location's anchor.
func (s *Spawner) SpawnPopulation(count int, loc *world.Location, society SocietyID, catalog NeedCatalog, stock []StockSpec) []*Agent {
	out := make([]*Agent, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, s.spawnOne(loc, society, catalog, stock))
	}
	return out
}

func (s *Spawner) spawnOne(loc *world.Location, society SocietyID, catalog NeedCatalog, stock []StockSpec) *Agent {
	id := s.nextID
	s.nextID++

	a := NewAgent(id, s.generateName(), s.worldSeed)
	a.SocietyID = society
	if loc != nil {
		a.Position = loc.Anchor
		a.Location = loc.ID
	}

	// Needs: mostly met at world start, sorted for a deterministic draw order.
	ids := make([]NeedID, 0, len(catalog))
	for id := range catalog {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, nid := range ids {
		cfg := catalog[nid]
		span := cfg.Max - cfg.Min
		a.Needs.Set(cfg, cfg.Min+s.rng.Float64()*span*0.4)
	}

	for _, st := range stock {
		if s.rng.Float64() >= st.Chance {
			continue
		}
		qty := st.Min
		if st.Max > st.Min {
			qty += s.rng.Float64() * (st.Max - st.Min)
		}
		a.Inventory.Add(st.Resource, float64(int(qty+0.5)))
	}
	return a
}

func (s *Spawner) generateName() string {
	firsts := maleNames
	if s.rng.Float32() < 0.5 {
		firsts = femaleNames
	}
	first := firsts[s.rng.Intn(len(firsts))]
	last := lastNames[s.rng.Intn(len(lastNames))]
	return first + " " + last
}

// Name pools for procedural generation.
var maleNames = []string{
	"Aldric", "Bram", "Cedric", "Doran", "Erik", "Finn", "Gareth",
	"Halvard", "Ivan", "Jasper", "Kael", "Leif", "Magnus", "Nils",
	"Oswin", "Per", "Quinn", "Rowan", "Stellan", "Theron", "Ulric",
}

var femaleNames = []string{
	"Astrid", "Brenna", "Calla", "Daria", "Elara", "Freya", "Greta",
	"Helene", "Iris", "Juno", "Kira", "Lena", "Mira", "Nessa",
	"Olwen", "Petra", "Runa", "Senna", "Thea", "Una", "Vera",
}

var lastNames = []string{
	"Voss", "Thornwood", "Blackwood", "Ashford", "Ironhand", "Dunmore",
	"Greenvale", "Stormcrow", "Frostborn", "Hearthstone", "Millward",
	"Copperfield", "Ravenmoor", "Silverdale", "Wolfsbane", "Stoneheart",
	"Deepwell", "Brightwater", "Oakenshield", "Redforge", "Windholm",
}
