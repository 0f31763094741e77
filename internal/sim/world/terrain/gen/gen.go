package gen

import (
	opensimplex "github.com/ojrac/opensimplex-go"

	"voxelstore.ai/internal/sim/world/logic/mathx"
)

type Tile uint8

const (
	Empty Tile = iota
	Grass
	Cliff
	Water

	tileCount
)

// Palette lists tile names indexed by Tile value.
func Palette() []string {
	out := make([]string, tileCount)
	for i := range out {
		out[i] = Tile(i).String()
	}
	return out
}

func (t Tile) String() string {
	switch t {
	case Empty:
		return "EMPTY"
	case Grass:
		return "GRASS"
	case Cliff:
		return "CLIFF"
	case Water:
		return "WATER"
	default:
		return "UNKNOWN"
	}
}

// Params controls the ground layer. Only the tile layer at world z == 0 is
// ground; cliffs stack CliffHeight tiles above it. WaterLevel and CliffLevel are
// taken as given: 0 disables water, anything >= 1 disables cliff bands.
type Params struct {
	Seed        int64
	Frequency   float64
	Octaves     int
	Persistence float64
	WaterLevel  float64 // normalized noise below this is water
	CliffLevel  float64 // normalized noise above this is cliff
	CliffHeight int
}

// DefaultParams returns the stock terrain for seed.
func DefaultParams(seed int64) Params {
	return Params{
		Seed:        seed,
		Frequency:   0.02,
		Octaves:     4,
		Persistence: 0.5,
		WaterLevel:  0.35,
		CliffLevel:  0.72,
		CliffHeight: 2,
	}
}

// applyDefaults replaces values the noise cannot run with.
func (p *Params) applyDefaults() {
	if p.Frequency <= 0 {
		p.Frequency = 0.02
	}
	if p.Octaves <= 0 {
		p.Octaves = 4
	}
	if p.Persistence <= 0 {
		p.Persistence = 0.5
	}
	if p.CliffHeight <= 0 {
		p.CliffHeight = 2
	}
}

type Generator struct {
	p     Params
	noise opensimplex.Noise
}

func New(p Params) *Generator {
	p.applyDefaults()
	return &Generator{p: p, noise: opensimplex.NewNormalized(p.Seed)}
}

func (g *Generator) Params() Params { return g.p }

// Height returns normalized fractal noise in [0,1) for a ground column.
func (g *Generator) Height(wx, wy int) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0
	freq := g.p.Frequency
	for i := 0; i < g.p.Octaves; i++ {
		total += g.noise.Eval2(float64(wx)*freq, float64(wy)*freq) * amplitude
		maxVal += amplitude
		amplitude *= g.p.Persistence
		freq *= 2
	}
	return total / maxVal
}

// TileAt returns the generated tile at absolute tile coordinate (wx, wy, wz). Z is up.
func (g *Generator) TileAt(wx, wy, wz int) Tile {
	if wz < 0 || wz > g.p.CliffHeight {
		return Empty
	}
	h := g.Height(wx, wy)
	switch {
	case h < g.p.WaterLevel:
		if wz == 0 {
			return Water
		}
		return Empty
	case h >= g.p.CliffLevel:
		return Cliff
	default:
		if wz != 0 {
			return Empty
		}
		// Sparse rock outcrops on open grass.
		if mathx.Hash3(g.p.Seed, wx, wy, wz)%1000 < 8 {
			return Cliff
		}
		return Grass
	}
}

// Fill writes generated tiles for a chunk whose lowest tile corner is (ox, oy, oz).
// set is called only for non-empty tiles.
func (g *Generator) Fill(ox, oy, oz, dim int, set func(x, y, z int, t Tile)) {
	if oz > g.p.CliffHeight || oz+dim <= 0 {
		return
	}
	for y := 0; y < dim; y++ {
		for x := 0; x < dim; x++ {
			for z := 0; z < dim; z++ {
				t := g.TileAt(ox+x, oy+y, oz+z)
				if t != Empty {
					set(x, y, z, t)
				}
			}
		}
	}
}
