package main

import (
	"fmt"
	"log/slog"

	"github.com/talgya/worldsim/internal/agents"
	"github.com/talgya/worldsim/internal/config"
	"github.com/talgya/worldsim/internal/engine"
	"github.com/talgya/worldsim/internal/entropy"
	"github.com/talgya/worldsim/internal/navigation"
	"github.com/talgya/worldsim/internal/persistence"
	"github.com/talgya/worldsim/internal/schedule"
	"github.com/talgya/worldsim/internal/social"
	"github.com/talgya/worldsim/internal/world"
)

// generateGrid builds the grid and locations. It is deterministic in the
// seed, so restored worlds regenerate it instead of loading it.
func generateGrid(cfg config.Config) (*world.Grid, *world.Locations) {
	gen := world.DefaultGenConfig()
	gen.Seed = cfg.Seed
	gen.Radius = cfg.World.Radius
	gen.Locations = cfg.World.Locations
	gen.MinSpacing = cfg.World.MinSpacing
	gen.QueueSlots = cfg.World.QueueSlots
	gen.QueueRadius = cfg.World.QueueRadius
	grid, locs := world.Generate(gen)

	for t, c := range world.TerrainCounts(grid) {
		slog.Debug("terrain", "type", world.TerrainName(t), "count", c)
	}
	return grid, locs
}

// buildSchedule turns the schedule section into an activity book.
func buildSchedule(spec config.ScheduleSpec) (*schedule.Book, error) {
	acts := make([]schedule.Activity, 0, len(spec.Activities))
	for _, a := range spec.Activities {
		policy, err := schedule.ParsePolicy(a.Policy)
		if err != nil {
			return nil, fmt.Errorf("activity %s: %w", a.ID, err)
		}
		act := schedule.Activity{
			ID:          agents.Intern[agents.ActivityID](a.ID),
			Policy:      policy,
			AllowMidway: a.AllowMidway,
		}
		for _, n := range a.AllowedNeeds {
			act.AllowedNeeds = append(act.AllowedNeeds, agents.Intern[agents.NeedID](n))
		}
		acts = append(acts, act)
	}
	return schedule.NewBook(acts, agents.Intern[agents.ActivityID](spec.DefaultActivity)), nil
}

// buildSocieties creates societies with seeded pools. Pool locations are
// 1-based indices into the generated locations.
func buildSocieties(cfg config.Config, locs *world.Locations) []*social.Society {
	all := locs.All()
	out := make([]*social.Society, 0, len(cfg.Societies))
	for _, spec := range cfg.Societies {
		soc := social.NewSociety(social.SocietyID(spec.ID), spec.Name, cfg.SocietyTrade(spec))
		soc.PoolRegen = make(agents.Inventory)
		soc.PoolCap = make(agents.Inventory)
		for res, qty := range spec.Pool {
			id := agents.Intern[agents.ResourceID](res)
			soc.Pool.Add(id, qty)
			soc.PoolCap[id] = qty
		}
		for res, rate := range spec.Regen {
			soc.PoolRegen.Add(agents.Intern[agents.ResourceID](res), rate)
		}
		if spec.PoolLocation > 0 && spec.PoolLocation <= len(all) {
			soc.PoolLocation = all[spec.PoolLocation-1].ID
		}
		out = append(out, soc)
	}
	return out
}

func stockSpecs(cfg config.Config) []agents.StockSpec {
	out := make([]agents.StockSpec, 0, len(cfg.Population.Stock))
	for _, s := range cfg.Population.Stock {
		out = append(out, agents.StockSpec{
			Resource: agents.Intern[agents.ResourceID](s.Resource),
			Chance:   s.Chance,
			Min:      s.Min,
			Max:      s.Max,
		})
	}
	return out
}

// newWorld generates a fresh world. Locations are shared round-robin between
// societies and each one gets PerLocation residents.
func newWorld(cfg config.Config) (*engine.Simulation, error) {
	grid, locs := generateGrid(cfg)
	socs := buildSocieties(cfg, locs)
	catalog := cfg.NeedCatalog()
	spawner := agents.NewSpawner(cfg.Seed)
	stock := stockSpecs(cfg)

	var all []*agents.Agent
	for i, loc := range locs.All() {
		var soc *social.Society
		var socID agents.SocietyID
		if len(socs) > 0 {
			soc = socs[i%len(socs)]
			socID = soc.ID
		}
		for _, a := range spawner.SpawnPopulation(cfg.Population.PerLocation, loc, socID, catalog, stock) {
			if soc != nil {
				soc.AddMember(a)
			}
			all = append(all, a)
		}
	}

	sim, err := assemble(cfg, grid, locs, all, socs)
	if err != nil {
		return nil, err
	}
	sim.Spawner = spawner
	slog.Info("world generated",
		"agents", len(all),
		"societies", len(socs),
		"locations", len(locs.All()),
		"grid", grid.String(),
	)
	return sim, nil
}

// restoreWorld rebuilds a saved world on a regenerated grid.
func restoreWorld(cfg config.Config, ws *persistence.WorldState) (*engine.Simulation, error) {
	grid, locs := generateGrid(cfg)
	var maxID agents.AgentID
	for _, a := range ws.Agents {
		if a.Rng == nil {
			a.Rng = entropy.NewStream(cfg.Seed, uint64(a.ID))
		}
		maxID = max(maxID, a.ID)
	}
	sim, err := assemble(cfg, grid, locs, ws.Agents, ws.Societies)
	if err != nil {
		return nil, err
	}
	spawner := agents.NewSpawner(cfg.Seed)
	spawner.SetNextID(maxID + 1)
	sim.Spawner = spawner
	sim.LastTick = ws.LastTick
	sim.Now = ws.SimTime
	sim.SignalSeq = ws.SignalSeq
	sim.Signals = ws.Signals
	sim.RebuildQueues()

	slog.Info("world state restored",
		"agents", len(ws.Agents),
		"societies", len(ws.Societies),
		"tick", ws.LastTick,
		"sim_time", engine.SimTime(ws.SimTime),
	)
	return sim, nil
}

// assemble wires collaborators around the agents and societies.
func assemble(cfg config.Config, grid *world.Grid, locs *world.Locations, all []*agents.Agent, socs []*social.Society) (*engine.Simulation, error) {
	book, err := buildSchedule(cfg.Schedule)
	if err != nil {
		return nil, err
	}
	mover := navigation.NewMover(grid, locs, cfg.World.MoveSpeed)
	for _, a := range all {
		mover.Place(a)
	}

	sim := engine.NewSimulation(grid, locs, all, socs, cfg.NeedCatalog(), cfg.Trade)
	sim.Nav = mover
	sim.Schedule = book
	sim.Drift = engine.DriftFromConfig(cfg)
	sim.TradeActivity = agents.Intern[agents.ActivityID](cfg.Schedule.TradeActivity)
	return sim, nil
}
