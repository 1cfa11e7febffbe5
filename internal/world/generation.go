// Grid generation using layered simplex noise.
// Elevation decides which nodes are open, rough or water; locations are then
// placed on the most central open ground.
package world

import (
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds grid generation parameters.
type GenConfig struct {
	Radius      int     // Hex grid radius
	Seed        int64   // Noise seed (0 = random)
	WaterLevel  float64 // Elevation below which a node is water (0.0–1.0)
	RoughLevel  float64 // Elevation above which a node is rough (0.0–1.0)
	Locations   int     // Number of locations to place
	MinSpacing  int     // Minimum hex distance between location anchors
	QueueSlots  int     // Queue slots per location
	QueueRadius float64 // Queue ring radius in hexes
}

// DefaultGenConfig returns a reasonable starting configuration.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Radius:      16,
		WaterLevel:  0.22,
		RoughLevel:  0.78,
		Locations:   8,
		MinSpacing:  5,
		QueueSlots:  6,
		QueueRadius: 2,
	}
}

// Generate creates a grid with terrain and returns it with its placed locations.
func Generate(cfg GenConfig) (*Grid, *Locations) {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	elevNoise := opensimplex.NewNormalized(seed)

	g := NewGrid(cfg.Radius)
	for i := range g.Nodes {
		n := &g.Nodes[i]
		x, y := n.Coord.Point()

		elev := octaveNoise(elevNoise, x, y, 4, 0.08, 0.5)

		// Continental shaping: lower elevation near the rim.
		dist := math.Sqrt(x*x+y*y) / float64(max(cfg.Radius, 1))
		falloff := 1.0 - math.Pow(dist, 3.5)
		if falloff < 0 {
			falloff = 0
		}
		elev *= falloff

		n.Elevation = elev
		switch {
		case elev < cfg.WaterLevel:
			n.Terrain = TerrainWater
		case elev > cfg.RoughLevel:
			n.Terrain = TerrainRough
		default:
			n.Terrain = TerrainOpen
		}
	}

	return g, PlaceLocations(g, cfg)
}

// octaveNoise sums several noise octaves into a value in [0, 1].
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

// TerrainCounts returns a summary of terrain type distribution.
func TerrainCounts(g *Grid) map[Terrain]int {
	counts := make(map[Terrain]int)
	for _, n := range g.Nodes {
		counts[n.Terrain]++
	}
	return counts
}

// TerrainName returns the human-readable name of a terrain type.
func TerrainName(t Terrain) string {
	switch t {
	case TerrainOpen:
		return "open"
	case TerrainRough:
		return "rough"
	case TerrainWater:
		return "water"
	default:
		return "unknown"
	}
}
