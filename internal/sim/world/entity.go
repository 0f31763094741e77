package world

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"voxelstore.ai/internal/sim/world/logic/coords"
	"voxelstore.ai/internal/sim/world/terrain/store"
)

type EntityType uint8

const (
	EntityNone EntityType = iota
	EntityPlayer
	EntityProp
	EntityCreature
	EntityCamera
)

func (t EntityType) String() string {
	switch t {
	case EntityNone:
		return "NONE"
	case EntityPlayer:
		return "PLAYER"
	case EntityProp:
		return "PROP"
	case EntityCreature:
		return "CREATURE"
	case EntityCamera:
		return "CAMERA"
	default:
		return fmt.Sprintf("TYPE_%d", uint8(t))
	}
}

// MeshHandle is an opaque renderer reference passed through unmodified.
type MeshHandle uint32

// StoredEntity is the persistent record of one entity. The dense array that holds
// these is never compacted; retired slots keep Type == EntityNone.
type StoredEntity struct {
	Index    store.EntityIndex
	Type     EntityType
	Pos      coords.WorldPosition
	Size     mgl32.Vec3
	Mesh     MeshHandle
	Color    mgl32.Vec4
	Friction float32
	Velocity mgl32.Vec3
}

// AddStoredEntity stores a copy of e (its Index is ignored) at e.Pos, creating the
// chunk if needed, and returns the new index. Retired indices are reused first.
func (w *World) AddStoredEntity(e StoredEntity) (store.EntityIndex, error) {
	if e.Type == EntityNone {
		return 0, fmt.Errorf("add entity: %w: type NONE", ErrInvalidEntity)
	}
	e.Pos = w.space.Canonicalize(e.Pos)
	if e.Size == (mgl32.Vec3{}) {
		e.Size = mgl32.Vec3{1, 1, 1}
	}

	ch, err := w.store.GetChunkE(e.Pos.Chunk, true)
	if err != nil {
		return 0, fmt.Errorf("add entity: %w", err)
	}

	var idx store.EntityIndex
	reused := false
	if n := len(w.freeIndices); n > 0 {
		idx = w.freeIndices[n-1]
		reused = true
	} else {
		if len(w.entities) > w.cfg.MaxEntities {
			return 0, fmt.Errorf("add entity: %w", ErrEntityCapacity)
		}
		idx = store.EntityIndex(len(w.entities))
	}

	if err := w.store.AddToChunk(ch, idx); err != nil {
		return 0, fmt.Errorf("add entity: %w", err)
	}
	e.Index = idx
	if reused {
		w.freeIndices = w.freeIndices[:len(w.freeIndices)-1]
		w.entities[idx] = e
	} else {
		w.entities = append(w.entities, e)
	}
	w.frameStats.spawned++
	return idx, nil
}

// GetStoredEntity returns the live record for idx, or nil for index 0, out of range,
// or retired indices.
func (w *World) GetStoredEntity(idx store.EntityIndex) *StoredEntity {
	if idx == 0 || int(idx) >= len(w.entities) {
		return nil
	}
	e := &w.entities[idx]
	if e.Type == EntityNone {
		return nil
	}
	return e
}

// ChangeEntityPos moves entity idx to newPos. Crossing a chunk boundary moves its
// index from the old chunk's block chain into the new chunk's; moves inside one
// chunk only update the stored position. Entities inside a live sim region move
// through their SimEntity instead.
func (w *World) ChangeEntityPos(idx store.EntityIndex, newPos coords.WorldPosition) error {
	e := w.GetStoredEntity(idx)
	if e == nil {
		return fmt.Errorf("change entity pos: %w: %d", ErrInvalidEntity, idx)
	}
	if ch := w.store.GetChunk(e.Pos.Chunk, false); ch != nil && ch.Simulated {
		return &SimError{Op: "change entity pos", Chunk: ch.Coord, Err: ErrChunkSimulated}
	}
	return w.moveEntity(e, newPos)
}

func (w *World) moveEntity(e *StoredEntity, newPos coords.WorldPosition) error {
	idx := e.Index
	newPos = w.space.Canonicalize(newPos)
	if coords.SameChunk(e.Pos, newPos) {
		e.Pos = newPos
		return nil
	}

	from := w.store.GetChunk(e.Pos.Chunk, false)
	if from == nil {
		return &SimError{Op: "change entity pos", Chunk: e.Pos.Chunk, Err: store.ErrEntityNotInChunk}
	}
	to, err := w.store.GetChunkE(newPos.Chunk, true)
	if err != nil {
		return fmt.Errorf("change entity pos: %w", err)
	}
	if err := w.store.RemoveFromChunk(from, idx); err != nil {
		return &SimError{Op: "change entity pos", Chunk: from.Coord, Err: err}
	}
	if err := w.store.AddToChunk(to, idx); err != nil {
		// Put it back so the entity stays reachable.
		_ = w.store.AddToChunk(from, idx)
		return &SimError{Op: "change entity pos", Chunk: to.Coord, Err: err}
	}
	e.Pos = newPos
	w.frameStats.transitions++
	return nil
}

// RemoveStoredEntity retires idx. Entities inside a live sim region must be removed
// through SimEntity.Removed instead.
func (w *World) RemoveStoredEntity(idx store.EntityIndex) error {
	e := w.GetStoredEntity(idx)
	if e == nil {
		return fmt.Errorf("remove entity: %w: %d", ErrInvalidEntity, idx)
	}
	if ch := w.store.GetChunk(e.Pos.Chunk, false); ch != nil && ch.Simulated {
		return &SimError{Op: "remove entity", Chunk: ch.Coord, Err: ErrChunkSimulated}
	}
	return w.retire(idx)
}

func (w *World) retire(idx store.EntityIndex) error {
	e := &w.entities[idx]
	ch := w.store.GetChunk(e.Pos.Chunk, false)
	if ch == nil {
		return &SimError{Op: "remove entity", Chunk: e.Pos.Chunk, Err: store.ErrEntityNotInChunk}
	}
	if err := w.store.RemoveFromChunk(ch, idx); err != nil {
		return &SimError{Op: "remove entity", Chunk: ch.Coord, Err: err}
	}
	*e = StoredEntity{Index: idx}
	w.freeIndices = append(w.freeIndices, idx)
	w.frameStats.removed++
	return nil
}

// LowEntityCount is the high-water mark of the dense entity array, including the
// reserved index 0.
func (w *World) LowEntityCount() int { return len(w.entities) }

// LiveEntities returns the number of entities currently placed in chunks.
func (w *World) LiveEntities() int { return len(w.entities) - 1 - len(w.freeIndices) }

func (w *World) FreeIndices() int { return len(w.freeIndices) }
