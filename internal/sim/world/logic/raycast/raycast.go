package raycast

import "github.com/go-gl/mathgl/mgl32"

type AABB struct {
	Min, Max mgl32.Vec3
}

func Box(min, max mgl32.Vec3) AABB {
	return AABB{Min: min, Max: max}
}

// Translate returns the box moved by d.
func (b AABB) Translate(d mgl32.Vec3) AABB {
	return AABB{Min: b.Min.Add(d), Max: b.Max.Add(d)}
}

// Scale multiplies both corners component-wise by s and reorders them so Min <= Max.
func (b AABB) Scale(s mgl32.Vec3) AABB {
	out := AABB{
		Min: mgl32.Vec3{b.Min[0] * s[0], b.Min[1] * s[1], b.Min[2] * s[2]},
		Max: mgl32.Vec3{b.Max[0] * s[0], b.Max[1] * s[1], b.Max[2] * s[2]},
	}
	for i := 0; i < 3; i++ {
		if out.Min[i] > out.Max[i] {
			out.Min[i], out.Max[i] = out.Max[i], out.Min[i]
		}
	}
	return out
}

// YUpToZUp converts a box authored with +Y up (mesh space) to +Z up (world space).
// (x, y, z) maps to (x, -z, y).
func (b AABB) YUpToZUp() AABB {
	return AABB{
		Min: mgl32.Vec3{b.Min[0], -b.Max[2], b.Min[1]},
		Max: mgl32.Vec3{b.Max[0], -b.Min[2], b.Max[1]},
	}
}

func (b AABB) Contains(p mgl32.Vec3) bool {
	return p[0] >= b.Min[0] && p[0] <= b.Max[0] &&
		p[1] >= b.Min[1] && p[1] <= b.Max[1] &&
		p[2] >= b.Min[2] && p[2] <= b.Max[2]
}

type Hit struct {
	T      float32
	Normal mgl32.Vec3
}

// RayAABB tests the ray against all six faces of the box and returns the closest
// strictly positive hit whose point lies on the face, plus that face's outward normal.
// A ray starting inside the box hits the face it exits through.
func RayAABB(from, dir mgl32.Vec3, box AABB) (Hit, bool) {
	best := Hit{}
	found := false

	for axis := 0; axis < 3; axis++ {
		if dir[axis] == 0 {
			continue
		}
		u, v := (axis+1)%3, (axis+2)%3
		for side := 0; side < 2; side++ {
			plane := box.Min[axis]
			sign := float32(-1)
			if side == 1 {
				plane = box.Max[axis]
				sign = 1
			}
			t := (plane - from[axis]) / dir[axis]
			if t <= 0 {
				continue
			}
			if found && t >= best.T {
				continue
			}
			pu := from[u] + t*dir[u]
			pv := from[v] + t*dir[v]
			if pu < box.Min[u] || pu > box.Max[u] || pv < box.Min[v] || pv > box.Max[v] {
				continue
			}
			var n mgl32.Vec3
			n[axis] = sign
			best = Hit{T: t, Normal: n}
			found = true
		}
	}
	return best, found
}
