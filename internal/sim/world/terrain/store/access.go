package store

import (
	"fmt"

	"voxelstore.ai/internal/sim/world/logic/coords"
	"voxelstore.ai/internal/sim/world/logic/mathx"
	genpkg "voxelstore.ai/internal/sim/world/terrain/gen"
)

// GetChunk returns the chunk at c. When it does not exist, a nil result is returned
// unless create is set, in which case a zeroed chunk is allocated and linked into
// the table. Query call sites (raycasts, region extraction) pass create=false and
// must tolerate nil. Creation failures are reported by GetChunkE.
func (s *Store) GetChunk(c coords.ChunkCoord, create bool) *Chunk {
	ch, _ := s.GetChunkE(c, create)
	return ch
}

func (s *Store) GetChunkE(c coords.ChunkCoord, create bool) (*Chunk, error) {
	slot := mathx.ChunkSlot(c.X, c.Y, c.Z, len(s.table))

	var last *Chunk
	for id := s.table[slot]; id != 0; {
		ch := s.chunks.at(int32(id))
		if ch.Coord == c {
			return ch, nil
		}
		last = ch
		id = ch.next
	}
	if !create {
		return nil, nil
	}

	id, ch, ok := s.chunks.alloc()
	if !ok {
		return nil, fmt.Errorf("create chunk %v: %w", c, ErrChunkCapacity)
	}
	dim := s.cfg.ChunkTiles
	ch.ID = ChunkID(id)
	ch.Coord = c
	ch.dim = dim
	ch.Tiles = make([]genpkg.Tile, dim*dim*dim)
	ch.dirty = true
	if last == nil {
		s.table[slot] = ChunkID(id)
	} else {
		last.next = ChunkID(id)
	}
	s.generate(ch)
	return ch, nil
}

// ChunkByID resolves a handle returned earlier by GetChunk.
func (s *Store) ChunkByID(id ChunkID) *Chunk {
	return s.chunks.at(int32(id))
}

func (s *Store) ChunkCount() int { return s.chunks.used() }

// ForEachChunk visits chunks in creation order.
func (s *Store) ForEachChunk(fn func(ch *Chunk) bool) {
	for id := int32(1); id < s.chunks.n; id++ {
		if !fn(s.chunks.at(id)) {
			return
		}
	}
}

// ChainLength returns how many chunks share c's table slot.
func (s *Store) ChainLength(c coords.ChunkCoord) int {
	return s.slotChain(mathx.ChunkSlot(c.X, c.Y, c.Z, len(s.table)))
}

func (s *Store) slotChain(slot int) int {
	n := 0
	for id := s.table[slot]; id != 0; id = s.chunks.at(int32(id)).next {
		n++
	}
	return n
}
