package main

import (
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"

	"voxelstore.ai/internal/sim/world"
	"voxelstore.ai/internal/sim/world/logic/coords"
)

// demoEntities scatters n wandering creatures around the focus chunk so a fresh
// server has something to simulate and stream. The layout depends only on seed.
func demoEntities(n int, seed int64, span coords.ChunkCoord, chunkSide float32) []world.StoredEntity {
	rng := rand.New(rand.NewSource(seed))
	half := chunkSide / 2
	out := make([]world.StoredEntity, 0, n)
	for i := 0; i < n; i++ {
		chunk := coords.ChunkCoord{
			X: randSpan(rng, span.X),
			Y: randSpan(rng, span.Y),
			Z: randSpan(rng, span.Z),
		}
		off := mgl32.Vec3{
			(rng.Float32()*2 - 1) * half * 0.9,
			(rng.Float32()*2 - 1) * half * 0.9,
			0,
		}
		vel := mgl32.Vec3{rng.Float32()*4 - 2, rng.Float32()*4 - 2, 0}
		out = append(out, world.StoredEntity{
			Type:     world.EntityCreature,
			Pos:      coords.At(chunk.X, chunk.Y, chunk.Z, off),
			Size:     mgl32.Vec3{1, 1, 2},
			Color:    mgl32.Vec4{rng.Float32(), rng.Float32(), rng.Float32(), 1},
			Friction: 0.05,
			Velocity: vel,
		})
	}
	return out
}

func randSpan(rng *rand.Rand, span int32) int32 {
	if span <= 0 {
		return 0
	}
	return rng.Int31n(2*span+1) - span
}
