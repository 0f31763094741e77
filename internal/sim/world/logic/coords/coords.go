// Package coords holds the chunk + offset position model used by the world store.
//
// A WorldPosition names a chunk by integer coordinate and a float offset from that
// chunk's center. Offsets grow freely during a frame and are folded back into the
// chunk coordinate by Canonicalize.
package coords

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"voxelstore.ai/internal/sim/world/logic/mathx"
)

type ChunkCoord struct {
	X, Y, Z int32
}

func (c ChunkCoord) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.X, c.Y, c.Z)
}

func (c ChunkCoord) Array() [3]int32 { return [3]int32{c.X, c.Y, c.Z} }

// Within reports whether c lies inside the closed box [min, max].
func (c ChunkCoord) Within(min, max ChunkCoord) bool {
	return c.X >= min.X && c.X <= max.X &&
		c.Y >= min.Y && c.Y <= max.Y &&
		c.Z >= min.Z && c.Z <= max.Z
}

type WorldPosition struct {
	Chunk  ChunkCoord
	Offset mgl32.Vec3
}

func At(x, y, z int32, off mgl32.Vec3) WorldPosition {
	return WorldPosition{Chunk: ChunkCoord{X: x, Y: y, Z: z}, Offset: off}
}

// Space carries the constants every coordinate operation needs.
type Space struct {
	CellSize float32
	Margin   int32
}

func NewSpace(cellSize float32, margin int32) Space {
	if cellSize <= 0 {
		cellSize = 1
	}
	if margin < 0 {
		margin = mathx.DefaultSafeMargin
	}
	return Space{CellSize: cellSize, Margin: margin}
}

func (s Space) Radius() float32 { return s.CellSize * 0.5 }

// SafeAdd adds d to c per axis with saturation.
func (s Space) SafeAdd(c, d ChunkCoord) ChunkCoord {
	return ChunkCoord{
		X: mathx.SafeAdd(c.X, d.X, s.Margin),
		Y: mathx.SafeAdd(c.Y, d.Y, s.Margin),
		Z: mathx.SafeAdd(c.Z, d.Z, s.Margin),
	}
}

// SafeSub subtracts d from c per axis with saturation.
func (s Space) SafeSub(c, d ChunkCoord) ChunkCoord {
	return ChunkCoord{
		X: mathx.SafeSub(c.X, d.X, s.Margin),
		Y: mathx.SafeSub(c.Y, d.Y, s.Margin),
		Z: mathx.SafeSub(c.Z, d.Z, s.Margin),
	}
}

// Canonicalize folds whole cells of p.Offset into p.Chunk so every offset component
// ends in [-radius, radius). It never fails; coordinates near the int32 range saturate.
func (s Space) Canonicalize(p WorldPosition) WorldPosition {
	p.Chunk.X, p.Offset[0] = s.canonicalizeAxis(p.Chunk.X, p.Offset[0])
	p.Chunk.Y, p.Offset[1] = s.canonicalizeAxis(p.Chunk.Y, p.Offset[1])
	p.Chunk.Z, p.Offset[2] = s.canonicalizeAxis(p.Chunk.Z, p.Offset[2])
	return p
}

func (s Space) canonicalizeAxis(c int32, off float32) (int32, float32) {
	t := mathx.RoundToInt32(off / s.CellSize)
	off -= float32(t) * s.CellSize
	c = mathx.SafeAdd(c, t, s.Margin)

	// Float residue can leave the value a hair outside the half-open range.
	r := s.Radius()
	if off >= r {
		off -= s.CellSize
		c = mathx.SafeAdd(c, 1, s.Margin)
	} else if off < -r {
		off += s.CellSize
		c = mathx.SafeSub(c, 1, s.Margin)
	}
	return c, off
}

// Canonical reports whether p already satisfies the offset range.
func (s Space) Canonical(p WorldPosition) bool {
	r := s.Radius()
	for i := 0; i < 3; i++ {
		if p.Offset[i] < -r || p.Offset[i] >= r {
			return false
		}
	}
	return true
}

// MapIntoChunkSpace returns base moved by off, canonicalized.
func (s Space) MapIntoChunkSpace(base WorldPosition, off mgl32.Vec3) WorldPosition {
	base.Offset = base.Offset.Add(off)
	return s.Canonicalize(base)
}

// Absolute returns chunk*cellSize + offset in float64 so large chunk values keep precision.
func (s Space) Absolute(p WorldPosition) [3]float64 {
	cs := float64(s.CellSize)
	return [3]float64{
		float64(p.Chunk.X)*cs + float64(p.Offset[0]),
		float64(p.Chunk.Y)*cs + float64(p.Offset[1]),
		float64(p.Chunk.Z)*cs + float64(p.Offset[2]),
	}
}

// Diff returns a - b as a single relative vector.
func (s Space) Diff(a, b WorldPosition) mgl32.Vec3 {
	dx := float64(int64(a.Chunk.X)-int64(b.Chunk.X)) * float64(s.CellSize)
	dy := float64(int64(a.Chunk.Y)-int64(b.Chunk.Y)) * float64(s.CellSize)
	dz := float64(int64(a.Chunk.Z)-int64(b.Chunk.Z)) * float64(s.CellSize)
	return mgl32.Vec3{
		float32(dx + float64(a.Offset[0]-b.Offset[0])),
		float32(dy + float64(a.Offset[1]-b.Offset[1])),
		float32(dz + float64(a.Offset[2]-b.Offset[2])),
	}
}

// RelativeTo returns p expressed relative to origin, e.g. for rendering from a camera.
func (s Space) RelativeTo(origin, p WorldPosition) mgl32.Vec3 {
	return s.Diff(p, origin)
}

// ChunkCenter returns the region-relative center of chunk c as seen from origin.
func (s Space) ChunkCenter(origin WorldPosition, c ChunkCoord) mgl32.Vec3 {
	return s.Diff(WorldPosition{Chunk: c}, origin)
}

// SameChunk reports whether a and b name the same chunk.
func SameChunk(a, b WorldPosition) bool { return a.Chunk == b.Chunk }
