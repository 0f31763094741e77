package world

import "voxelstore.ai/internal/sim/world/terrain/store"

// Scratch is the frame-scoped arena a sim region is carved from. Its buffers are
// reused frame to frame and never freed. Each BeginSim gets its own region header, so
// an ended handle stays closed, but its Entities slice shares storage with the next
// region taken from the same scratch.
type Scratch struct {
	entities []SimEntity
	chunks   []store.ChunkID
	hash     []int32
}

func NewScratch() *Scratch { return &Scratch{} }

func (s *Scratch) take(entities, hashSize int) *SimRegion {
	if cap(s.entities) < entities {
		s.entities = make([]SimEntity, 0, entities)
	}
	if cap(s.hash) < hashSize {
		s.hash = make([]int32, hashSize)
	}
	s.hash = s.hash[:hashSize]
	for i := range s.hash {
		s.hash[i] = 0
	}
	return &SimRegion{
		Entities: s.entities[:0],
		hash:     s.hash,
	}
}

func (s *Scratch) chunkBuf() []store.ChunkID { return s.chunks[:0] }

func (s *Scratch) keepChunkBuf(b []store.ChunkID) { s.chunks = b }

// Reset truncates the buffers at the end of a frame. It does not end the region;
// EndSim (or AbortSim) must run first.
func (s *Scratch) Reset() {
	s.entities = s.entities[:0]
	s.chunks = s.chunks[:0]
}

// Capacity reports the retained buffer sizes, for metrics.
func (s *Scratch) Capacity() (entities, chunks, hash int) {
	return cap(s.entities), cap(s.chunks), cap(s.hash)
}
