package world

import "github.com/go-gl/mathgl/mgl32"

const restSpeed = 1e-4

// integrate advances every region entity by its velocity and applies friction.
// It returns how many entities moved.
func integrate(r *SimRegion, dt float32) int {
	moved := 0
	for i := range r.Entities {
		e := &r.Entities[i]
		if e.Removed || e.Velocity == (mgl32.Vec3{}) {
			continue
		}
		e.P = e.P.Add(e.Velocity.Mul(dt))
		moved++

		damp := 1 - e.Friction*dt
		if damp < 0 {
			damp = 0
		}
		e.Velocity = e.Velocity.Mul(damp)
		if e.Velocity.Len() < restSpeed {
			e.Velocity = mgl32.Vec3{}
		}
	}
	return moved
}
