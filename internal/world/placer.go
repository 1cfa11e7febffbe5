// Location placement: scores open nodes and seeds named trade locations.
package world

import (
	"fmt"
	"sort"
)

// PlaceLocations picks anchors for cfg.Locations locations, best score first,
// keeping anchors at least cfg.MinSpacing apart. Deterministic for a given grid.
func PlaceLocations(g *Grid, cfg GenConfig) *Locations {
	type scored struct {
		coord HexCoord
		score float64
	}
	var candidates []scored
	for _, n := range g.Nodes {
		if n.Terrain != TerrainOpen {
			continue
		}
		if s := locationScore(g, n); s > 0 {
			candidates = append(candidates, scored{n.Coord, s})
		}
	}

	// Sort by score descending, then by coordinate for a stable order.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		if candidates[i].coord.Q != candidates[j].coord.Q {
			return candidates[i].coord.Q < candidates[j].coord.Q
		}
		return candidates[i].coord.R < candidates[j].coord.R
	})

	locs := NewLocations()
	var anchors []HexCoord
	for _, c := range candidates {
		if len(anchors) >= cfg.Locations {
			break
		}
		if tooClose(c.coord, anchors, cfg.MinSpacing) {
			continue
		}
		anchors = append(anchors, c.coord)
		// Generated ids are unique by construction.
		_, _ = locs.Add(Location{
			ID:          LocationID(fmt.Sprintf("%s-%d", locationNames[(len(anchors)-1)%len(locationNames)], len(anchors))),
			Anchor:      c.coord,
			QueueSlots:  cfg.QueueSlots,
			QueueRadius: cfg.QueueRadius,
		})
	}
	return locs
}

// locationScore prefers open ground surrounded by open ground, near the centre.
func locationScore(g *Grid, n Node) float64 {
	score := 1.0
	for _, nc := range n.Coord.Neighbors() {
		i, ok := g.NodeIndex(nc)
		if !ok {
			return 0
		}
		if g.Nodes[i].Terrain == TerrainOpen {
			score += 0.5
		}
	}
	centre := float64(Distance(n.Coord, HexCoord{})) / float64(max(g.Radius, 1))
	return score * (1.0 - 0.5*centre)
}

func tooClose(coord HexCoord, existing []HexCoord, minDist int) bool {
	for _, e := range existing {
		if Distance(coord, e) < minDist {
			return true
		}
	}
	return false
}

var locationNames = []string{
	"well", "granary", "market", "smithy", "mill", "orchard",
	"dock", "shrine", "quarry", "tavern", "stable", "forge",
}
