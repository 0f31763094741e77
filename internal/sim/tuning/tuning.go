package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	FrameRateHz int `yaml:"frame_rate_hz"`

	ChunkSide  float32 `yaml:"chunk_side"`
	ChunkTiles int     `yaml:"chunk_tiles"`

	ChunkTableSize  int `yaml:"chunk_table_size"`
	MaxChunks       int `yaml:"max_chunks"`
	MaxEntities     int `yaml:"max_entities"`
	MaxEntityBlocks int `yaml:"max_entity_blocks"`

	CoordSafeMargin int32 `yaml:"coord_safe_margin"`

	// Sim region half-extent in chunks, [x, y, z].
	SimSpan []int32 `yaml:"sim_span"`

	DigestEveryFrames int `yaml:"digest_every_frames"`
	InboxSize         int `yaml:"inbox_size"`

	WorldGen WorldGen `yaml:"world_gen"`
}

type WorldGen struct {
	Enabled bool `yaml:"enabled"`
	// Added to the server -seed flag so tuning can shift terrain without a new seed.
	SeedOffset  int64   `yaml:"seed_offset"`
	Frequency   float64 `yaml:"frequency"`
	Octaves     int     `yaml:"octaves"`
	Persistence float64 `yaml:"persistence"`
	WaterLevel  float64 `yaml:"water_level"`
	CliffLevel  float64 `yaml:"cliff_level"`
	CliffHeight int     `yaml:"cliff_height"`
}

func Defaults() Tuning {
	return Tuning{
		FrameRateHz:       30,
		ChunkSide:         16,
		ChunkTiles:        16,
		ChunkTableSize:    4096,
		MaxChunks:         1 << 16,
		MaxEntities:       1 << 16,
		MaxEntityBlocks:   1 << 15,
		SimSpan:           []int32{2, 2, 1},
		DigestEveryFrames: 300,
		InboxSize:         4096,
		WorldGen: WorldGen{
			Enabled:     true,
			Frequency:   0.02,
			Octaves:     4,
			Persistence: 0.5,
			WaterLevel:  0.35,
			CliffLevel:  0.75,
			CliffHeight: 3,
		},
	}
}

// Load reads a tuning file on top of Defaults, so omitted keys keep their defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.FrameRateHz <= 0 || t.FrameRateHz > 1000 {
		return fmt.Errorf("frame_rate_hz out of range: %d", t.FrameRateHz)
	}
	if t.ChunkSide <= 0 {
		return fmt.Errorf("chunk_side must be positive: %v", t.ChunkSide)
	}
	if t.ChunkTiles <= 0 || t.ChunkTiles > 256 {
		return fmt.Errorf("chunk_tiles out of range: %d", t.ChunkTiles)
	}
	if t.ChunkTableSize <= 0 {
		return fmt.Errorf("chunk_table_size must be positive: %d", t.ChunkTableSize)
	}
	if t.MaxChunks <= 0 || t.MaxEntities <= 0 || t.MaxEntityBlocks <= 0 {
		return fmt.Errorf("capacities must be positive: chunks=%d entities=%d blocks=%d", t.MaxChunks, t.MaxEntities, t.MaxEntityBlocks)
	}
	if t.CoordSafeMargin < 0 {
		return fmt.Errorf("coord_safe_margin must be non-negative: %d", t.CoordSafeMargin)
	}
	if len(t.SimSpan) != 3 {
		return fmt.Errorf("sim_span must have 3 entries, got %d", len(t.SimSpan))
	}
	for _, v := range t.SimSpan {
		if v < 0 {
			return fmt.Errorf("sim_span must be non-negative: %v", t.SimSpan)
		}
	}
	return nil
}
