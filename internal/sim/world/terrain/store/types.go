package store

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"

	"voxelstore.ai/internal/sim/world/logic/coords"
	genpkg "voxelstore.ai/internal/sim/world/terrain/gen"
)

// EntityBlockCap is the number of entity indices one block holds.
const EntityBlockCap = 16

var (
	ErrChunkCapacity    = errors.New("chunk capacity exhausted")
	ErrBlockCapacity    = errors.New("entity block capacity exhausted")
	ErrEntityNotInChunk = errors.New("entity not found in chunk")
)

type (
	ChunkID     int32
	BlockID     int32
	EntityIndex uint32
)

type EntityBlock struct {
	Count   int
	Indices [EntityBlockCap]EntityIndex
	Next    BlockID
}

func (b *EntityBlock) full() bool { return b.Count == EntityBlockCap }

type Chunk struct {
	ID    ChunkID
	Coord coords.ChunkCoord

	Tiles []genpkg.Tile // len = dim^3, x fastest, then y, then z

	// Head is never empty while it has a successor; overflow blocks are always full.
	Head EntityBlock

	// Simulated is set while the chunk belongs to a live sim region.
	Simulated bool

	next     ChunkID
	overflow int
	dim      int
	dirty    bool
	hash     [32]byte
}

func (c *Chunk) index(x, y, z int) (int, bool) {
	if x < 0 || y < 0 || z < 0 || x >= c.dim || y >= c.dim || z >= c.dim {
		return 0, false
	}
	return x + y*c.dim + z*c.dim*c.dim, true
}

func (c *Chunk) Dim() int { return c.dim }

func (c *Chunk) Tile(x, y, z int) genpkg.Tile {
	i, ok := c.index(x, y, z)
	if !ok {
		return genpkg.Empty
	}
	return c.Tiles[i]
}

func (c *Chunk) SetTile(x, y, z int, t genpkg.Tile) bool {
	i, ok := c.index(x, y, z)
	if !ok {
		return false
	}
	if c.Tiles[i] == t {
		return true
	}
	c.Tiles[i] = t
	c.dirty = true
	return true
}

// ForEachTile visits every non-empty tile.
func (c *Chunk) ForEachTile(fn func(x, y, z int, t genpkg.Tile)) {
	d := c.dim
	for i, t := range c.Tiles {
		if t == genpkg.Empty {
			continue
		}
		fn(i%d, (i/d)%d, i/(d*d), t)
	}
}

func (c *Chunk) Digest() [32]byte {
	if c.dirty || c.hash == ([32]byte{}) {
		h := sha256.New()
		var tmp [4]byte
		for _, v := range c.Coord.Array() {
			binary.LittleEndian.PutUint32(tmp[:], uint32(v))
			h.Write(tmp[:])
		}
		buf := make([]byte, len(c.Tiles))
		for i, t := range c.Tiles {
			buf[i] = byte(t)
		}
		h.Write(buf)
		copy(c.hash[:], h.Sum(nil))
		c.dirty = false
	}
	return c.hash
}

type Config struct {
	TableSize  int // hash table slots, fixed for the life of the store
	MaxChunks  int
	MaxBlocks  int // overflow blocks; each chunk also owns one inline head block
	ChunkTiles int // tiles per chunk axis

	// Gen fills newly created chunks. Nil leaves them empty.
	Gen *genpkg.Generator
}

func (c *Config) applyDefaults() {
	if c.TableSize <= 0 {
		c.TableSize = 4096
	}
	if c.MaxChunks <= 0 {
		c.MaxChunks = 1 << 16
	}
	if c.MaxBlocks <= 0 {
		c.MaxBlocks = 1 << 16
	}
	if c.ChunkTiles <= 0 {
		c.ChunkTiles = 16
	}
}

// Store is the chunk hash table plus the entity block allocator.
// It is accessed only from the goroutine that owns the world.
type Store struct {
	cfg Config

	table  []ChunkID
	chunks slab[Chunk]
	blocks slab[EntityBlock]

	freeBlock  BlockID
	freeBlocks int
}

func New(cfg Config) *Store {
	cfg.applyDefaults()
	return &Store{
		cfg:    cfg,
		table:  make([]ChunkID, cfg.TableSize),
		chunks: newSlab[Chunk](cfg.MaxChunks),
		blocks: newSlab[EntityBlock](cfg.MaxBlocks),
	}
}

func (s *Store) Config() Config { return s.cfg }

type Stats struct {
	Chunks          int    `json:"chunks"`
	AllocatedBlocks int    `json:"allocated_blocks"`
	FreeBlocks      int    `json:"free_blocks"`
	Entities        int    `json:"entities"`
	Bytes           uint64 `json:"bytes"`
	// MaxChain is the longest collision chain in the chunk table.
	MaxChain int `json:"max_chain"`
}

func (s *Store) Stats() Stats {
	st := Stats{
		Chunks:          s.chunks.used(),
		AllocatedBlocks: s.blocks.used(),
		FreeBlocks:      s.freeBlocks,
	}
	s.ForEachChunk(func(ch *Chunk) bool {
		st.Entities += ch.EntityCount()
		return true
	})
	for slot := range s.table {
		if n := s.slotChain(slot); n > st.MaxChain {
			st.MaxChain = n
		}
	}
	tiles := uint64(s.cfg.ChunkTiles * s.cfg.ChunkTiles * s.cfg.ChunkTiles)
	blockBytes := uint64(8 + 4*EntityBlockCap + 4)
	chunkBytes := uint64(64) + blockBytes + tiles
	st.Bytes = uint64(len(s.table))*4 + uint64(st.Chunks)*chunkBytes + uint64(st.AllocatedBlocks)*blockBytes
	return st
}
