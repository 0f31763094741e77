package world

import (
	"fmt"

	"voxelstore.ai/internal/sim/world/logic/coords"
	"voxelstore.ai/internal/sim/world/logic/mathx"
	genpkg "voxelstore.ai/internal/sim/world/terrain/gen"
)

type WorldConfig struct {
	ID          string
	FrameRateHz int

	// Chunk geometry. ChunkSide is the world-space edge of one chunk and the
	// canonicalization cell; each chunk holds ChunkTiles^3 terrain tiles.
	ChunkSide  float32
	ChunkTiles int

	// Fixed capacities reserved at creation.
	TableSize   int
	MaxChunks   int
	MaxEntities int
	MaxBlocks   int

	SafeMargin int32

	// Sim region half-extent in chunks around the focus. Zero simulates the focus chunk only.
	SimSpan coords.ChunkCoord

	// Terrain generation; nil leaves new chunks empty.
	Gen *genpkg.Params

	// Digest the full world state every N frames in the frame log (0 disables).
	DigestEveryFrames int

	InboxSize int

	// Run returns after this many frames (0 = unbounded).
	MaxFrames uint64
}

func (c *WorldConfig) applyDefaults() {
	if c.ID == "" {
		c.ID = "world_1"
	}
	if c.FrameRateHz <= 0 {
		c.FrameRateHz = 30
	}
	if c.ChunkSide <= 0 {
		c.ChunkSide = 16
	}
	if c.ChunkTiles <= 0 {
		c.ChunkTiles = 16
	}
	if c.TableSize <= 0 {
		c.TableSize = 4096
	}
	if c.MaxChunks <= 0 {
		c.MaxChunks = 1 << 16
	}
	if c.MaxEntities <= 0 {
		c.MaxEntities = 1 << 16
	}
	if c.MaxBlocks <= 0 {
		c.MaxBlocks = 1 << 15
	}
	if c.SafeMargin <= 0 {
		c.SafeMargin = mathx.DefaultSafeMargin
	}
	if c.InboxSize <= 0 {
		c.InboxSize = 4096
	}
}

func (c WorldConfig) validate() error {
	if c.SimSpan.X < 0 || c.SimSpan.Y < 0 || c.SimSpan.Z < 0 {
		return fmt.Errorf("sim span must be non-negative: %v", c.SimSpan)
	}
	if c.ChunkTiles > 256 {
		return fmt.Errorf("chunk tiles too large: %d", c.ChunkTiles)
	}
	return nil
}
