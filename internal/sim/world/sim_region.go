package world

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"voxelstore.ai/internal/sim/world/logic/coords"
	"voxelstore.ai/internal/sim/world/logic/mathx"
	"voxelstore.ai/internal/sim/world/terrain/store"
)

// SimEntity is the per-frame working copy of a StoredEntity. P is relative to the
// region origin, so frame code never mixes chunk integers with float offsets.
type SimEntity struct {
	Index    store.EntityIndex
	Type     EntityType
	P        mgl32.Vec3
	Size     mgl32.Vec3
	Mesh     MeshHandle
	Color    mgl32.Vec4
	Friction float32
	Velocity mgl32.Vec3

	// Removed retires the entity when the region ends.
	Removed bool
}

type SimRegion struct {
	Origin   coords.WorldPosition
	Min, Max coords.ChunkCoord

	Entities []SimEntity

	chunks []store.ChunkID
	hash   []int32 // slot -> entity position + 1; 0 is empty
	world  *World
	closed bool
}

func (r *SimRegion) ChunkCount() int { return len(r.chunks) }

// ForEachChunk visits the chunks the region extracted.
func (r *SimRegion) ForEachChunk(fn func(ch *store.Chunk) bool) {
	for _, id := range r.chunks {
		if !fn(r.world.store.ChunkByID(id)) {
			return
		}
	}
}

func (r *SimRegion) Closed() bool { return r.closed }

func hashEntity(idx store.EntityIndex) uint32 {
	// Fibonacci hashing spreads dense indices across the table.
	return uint32(idx) * 2654435761
}

func (r *SimRegion) insert(pos int) error {
	mask := uint32(len(r.hash) - 1)
	idx := r.Entities[pos].Index
	for slot := hashEntity(idx) & mask; ; slot = (slot + 1) & mask {
		cur := r.hash[slot]
		if cur == 0 {
			r.hash[slot] = int32(pos + 1)
			return nil
		}
		if r.Entities[cur-1].Index == idx {
			return ErrDuplicateEntity
		}
	}
}

// GetEntity returns the region copy of idx, or nil when idx is not in the region.
func (r *SimRegion) GetEntity(idx store.EntityIndex) *SimEntity {
	if r.closed || len(r.hash) == 0 {
		return nil
	}
	mask := uint32(len(r.hash) - 1)
	for slot := hashEntity(idx) & mask; ; slot = (slot + 1) & mask {
		cur := r.hash[slot]
		if cur == 0 {
			return nil
		}
		if e := &r.Entities[cur-1]; e.Index == idx {
			return e
		}
	}
}

// ToWorld converts a region-relative point back into a canonical world position.
func (r *SimRegion) ToWorld(p mgl32.Vec3) coords.WorldPosition {
	return r.world.space.MapIntoChunkSpace(r.Origin, p)
}

// FromWorld converts a world position into region-relative space.
func (r *SimRegion) FromWorld(p coords.WorldPosition) mgl32.Vec3 {
	return r.world.space.Diff(p, r.Origin)
}

// BeginSim extracts every entity of every existing chunk in the closed box
// origin.Chunk ± span into a region built from scratch. Each visited chunk is marked
// simulated; a chunk already marked fails the call with ErrChunkSimulated and
// leaves every flag as it was.
func (w *World) BeginSim(scratch *Scratch, origin coords.WorldPosition, span coords.ChunkCoord) (*SimRegion, error) {
	if w.active != nil {
		return nil, ErrRegionActive
	}
	if scratch == nil {
		scratch = NewScratch()
	}
	if span.X < 0 || span.Y < 0 || span.Z < 0 {
		return nil, fmt.Errorf("begin sim: negative span %v", span)
	}

	origin = w.space.Canonicalize(origin)
	min := w.space.SafeSub(origin.Chunk, span)
	max := w.space.SafeAdd(origin.Chunk, span)

	// Pass 1: find chunks, claim them, count entities.
	chunks := scratch.chunkBuf()
	count := 0
	var claimErr error
	w.chunksInBox(min, max, func(ch *store.Chunk) bool {
		if ch.Simulated {
			claimErr = &SimError{Op: "begin sim", Chunk: ch.Coord, Err: ErrChunkSimulated}
			return false
		}
		ch.Simulated = true
		chunks = append(chunks, ch.ID)
		count += ch.EntityCount()
		return true
	})
	scratch.keepChunkBuf(chunks)
	if claimErr != nil {
		w.releaseChunks(chunks)
		scratch.Reset()
		return nil, claimErr
	}

	r := scratch.take(count, mathx.NextPow2(2*count+16))
	r.Origin = origin
	r.Min, r.Max = min, max
	r.chunks = chunks
	r.world = w

	// Pass 2: copy entities into region space.
	var copyErr error
	for _, id := range chunks {
		ch := w.store.ChunkByID(id)
		w.store.ForEachEntity(ch, func(idx store.EntityIndex) bool {
			e := w.GetStoredEntity(idx)
			if e == nil {
				copyErr = &SimError{Op: "begin sim", Chunk: ch.Coord, Err: fmt.Errorf("%w: %d", ErrInvalidEntity, idx)}
				return false
			}
			r.Entities = append(r.Entities, SimEntity{
				Index:    idx,
				Type:     e.Type,
				P:        w.space.Diff(e.Pos, origin),
				Size:     e.Size,
				Mesh:     e.Mesh,
				Color:    e.Color,
				Friction: e.Friction,
				Velocity: e.Velocity,
			})
			if err := r.insert(len(r.Entities) - 1); err != nil {
				copyErr = &SimError{Op: "begin sim", Chunk: ch.Coord, Err: err}
				return false
			}
			return true
		})
		if copyErr != nil {
			break
		}
	}
	if copyErr != nil {
		w.releaseChunks(chunks)
		r.closed = true
		scratch.Reset()
		return nil, copyErr
	}

	w.active = r
	return r, nil
}

// EndSim writes every region entity back into world coordinates, moving indices
// between chunks where an entity crossed a boundary, then releases the region's
// chunks. Per-entity failures are collected; the remaining entities are still
// committed and the chunks are always released.
func (w *World) EndSim(r *SimRegion) error {
	if r == nil || r.closed || w.active != r {
		return ErrRegionClosed
	}

	var errs []error
	for i := range r.Entities {
		se := &r.Entities[i]
		if se.Removed {
			if err := w.retire(se.Index); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		e := w.GetStoredEntity(se.Index)
		if e == nil {
			errs = append(errs, fmt.Errorf("end sim: %w: %d", ErrInvalidEntity, se.Index))
			continue
		}
		if err := w.moveEntity(e, r.ToWorld(se.P)); err != nil {
			errs = append(errs, err)
			continue
		}
		e.Type = se.Type
		e.Size = se.Size
		e.Mesh = se.Mesh
		e.Color = se.Color
		e.Friction = se.Friction
		e.Velocity = se.Velocity
	}

	w.releaseChunks(r.chunks)
	r.closed = true
	w.active = nil
	return errors.Join(errs...)
}

// AbortSim releases the region's chunks without writing anything back.
func (w *World) AbortSim(r *SimRegion) error {
	if r == nil || r.closed || w.active != r {
		return ErrRegionClosed
	}
	w.releaseChunks(r.chunks)
	r.closed = true
	w.active = nil
	return nil
}

// ActiveRegion returns the live region, if any.
func (w *World) ActiveRegion() *SimRegion { return w.active }

func (w *World) releaseChunks(ids []store.ChunkID) {
	for _, id := range ids {
		if ch := w.store.ChunkByID(id); ch != nil {
			ch.Simulated = false
		}
	}
}

// chunksInBox visits existing chunks inside [min, max]. Small boxes are walked
// coordinate by coordinate; boxes larger than the chunk population scan the slab.
func (w *World) chunksInBox(min, max coords.ChunkCoord, fn func(ch *store.Chunk) bool) {
	n := int64(w.store.ChunkCount())
	dx := int64(max.X) - int64(min.X) + 1
	dy := int64(max.Y) - int64(min.Y) + 1
	dz := int64(max.Z) - int64(min.Z) + 1

	if dx > n || dy > n || dz > n || dx*dy > n || dx*dy*dz > n {
		w.store.ForEachChunk(func(ch *store.Chunk) bool {
			if !ch.Coord.Within(min, max) {
				return true
			}
			return fn(ch)
		})
		return
	}

	for z := int64(min.Z); z <= int64(max.Z); z++ {
		for y := int64(min.Y); y <= int64(max.Y); y++ {
			for x := int64(min.X); x <= int64(max.X); x++ {
				ch := w.store.GetChunk(coords.ChunkCoord{X: int32(x), Y: int32(y), Z: int32(z)}, false)
				if ch == nil {
					continue
				}
				if !fn(ch) {
					return
				}
			}
		}
	}
}
