package world

import (
	"github.com/go-gl/mathgl/mgl32"

	"voxelstore.ai/internal/sim/world/logic/coords"
	"voxelstore.ai/internal/sim/world/logic/raycast"
	genpkg "voxelstore.ai/internal/sim/world/terrain/gen"
	"voxelstore.ai/internal/sim/world/terrain/store"
)

// MeshBoundsSource supplies mesh-space (+Y up) bounding boxes for entity meshes.
// It is implemented by the asset layer.
type MeshBoundsSource interface {
	MeshBounds(h MeshHandle) (raycast.AABB, bool)
}

// MeshBoundsMap is a static MeshBoundsSource.
type MeshBoundsMap map[MeshHandle]raycast.AABB

func (m MeshBoundsMap) MeshBounds(h MeshHandle) (raycast.AABB, bool) {
	b, ok := m[h]
	return b, ok
}

var unitMeshBounds = raycast.Box(mgl32.Vec3{-0.5, 0, -0.5}, mgl32.Vec3{0.5, 1, 0.5})

type HitKind uint8

const (
	HitNone HitKind = iota
	HitTile
	HitEntity
)

type RaycastHit struct {
	Kind   HitKind
	T      float32
	Normal mgl32.Vec3
	Point  mgl32.Vec3 // region-relative

	// Tile hits.
	Chunk coords.ChunkCoord
	Tile  [3]int
	Type  genpkg.Tile

	// Entity hits.
	Entity store.EntityIndex
}

// TileBox returns the region-relative box of tile (x, y, z) of chunk c.
func (r *SimRegion) TileBox(c coords.ChunkCoord, dim, x, y, z int) raycast.AABB {
	sp := r.world.space
	side := sp.CellSize / float32(dim)
	center := sp.ChunkCenter(r.Origin, c)
	corner := center.Sub(mgl32.Vec3{sp.Radius(), sp.Radius(), sp.Radius()})
	min := corner.Add(mgl32.Vec3{float32(x) * side, float32(y) * side, float32(z) * side})
	return raycast.Box(min, min.Add(mgl32.Vec3{side, side, side}))
}

// TilemapRaycast tests the ray against every non-empty tile of every region chunk
// and returns the closest hit. from is region-relative.
func (r *SimRegion) TilemapRaycast(from, dir mgl32.Vec3) (RaycastHit, bool) {
	best := RaycastHit{}
	found := false
	r.ForEachChunk(func(ch *store.Chunk) bool {
		ch.ForEachTile(func(x, y, z int, t genpkg.Tile) {
			h, ok := raycast.RayAABB(from, dir, r.TileBox(ch.Coord, ch.Dim(), x, y, z))
			if !ok || (found && h.T >= best.T) {
				return
			}
			best = RaycastHit{
				Kind:   HitTile,
				T:      h.T,
				Normal: h.Normal,
				Point:  from.Add(dir.Mul(h.T)),
				Chunk:  ch.Coord,
				Tile:   [3]int{x, y, z},
				Type:   t,
			}
			found = true
		})
		return true
	})
	return best, found
}

// EntityBox returns the region-relative box of e: mesh bounds converted to +Z up,
// scaled by the entity size and moved to its position.
func (r *SimRegion) EntityBox(e *SimEntity, src MeshBoundsSource) raycast.AABB {
	b := unitMeshBounds
	if src != nil {
		if mb, ok := src.MeshBounds(e.Mesh); ok {
			b = mb
		}
	}
	return b.YUpToZUp().Scale(e.Size).Translate(e.P)
}

// EntityRaycast tests the ray against every region entity's box and returns the
// closest hit. Entities flagged Removed are skipped.
func (r *SimRegion) EntityRaycast(from, dir mgl32.Vec3, src MeshBoundsSource) (RaycastHit, bool) {
	best := RaycastHit{}
	found := false
	for i := range r.Entities {
		e := &r.Entities[i]
		if e.Removed {
			continue
		}
		h, ok := raycast.RayAABB(from, dir, r.EntityBox(e, src))
		if !ok || (found && h.T >= best.T) {
			continue
		}
		best = RaycastHit{
			Kind:   HitEntity,
			T:      h.T,
			Normal: h.Normal,
			Point:  from.Add(dir.Mul(h.T)),
			Entity: e.Index,
		}
		found = true
	}
	return best, found
}

// Raycast returns the closer of the tile and entity hits.
func (r *SimRegion) Raycast(from, dir mgl32.Vec3, src MeshBoundsSource) (RaycastHit, bool) {
	th, tok := r.TilemapRaycast(from, dir)
	eh, eok := r.EntityRaycast(from, dir, src)
	switch {
	case tok && eok:
		if eh.T < th.T {
			return eh, true
		}
		return th, true
	case tok:
		return th, true
	case eok:
		return eh, true
	}
	return RaycastHit{}, false
}
