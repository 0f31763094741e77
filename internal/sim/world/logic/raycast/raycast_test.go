package raycast

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func unitBox() AABB {
	return Box(mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1})
}

func TestRayAABB_HitsNearFace(t *testing.T) {
	h, ok := RayAABB(mgl32.Vec3{-5, 0, 0}, mgl32.Vec3{1, 0, 0}, unitBox())
	if !ok {
		t.Fatalf("expected hit")
	}
	if h.T != 4 {
		t.Fatalf("t: got %v want 4", h.T)
	}
	if h.Normal != (mgl32.Vec3{-1, 0, 0}) {
		t.Fatalf("normal: got %v", h.Normal)
	}
}

func TestRayAABB_TopFaceNormal(t *testing.T) {
	h, ok := RayAABB(mgl32.Vec3{0.2, 0.3, 10}, mgl32.Vec3{0, 0, -2}, unitBox())
	if !ok {
		t.Fatalf("expected hit")
	}
	if h.T != 4.5 || h.Normal != (mgl32.Vec3{0, 0, 1}) {
		t.Fatalf("got t=%v n=%v", h.T, h.Normal)
	}
}

func TestRayAABB_MissesAndBehind(t *testing.T) {
	if _, ok := RayAABB(mgl32.Vec3{-5, 3, 0}, mgl32.Vec3{1, 0, 0}, unitBox()); ok {
		t.Fatalf("ray passing above should miss")
	}
	if _, ok := RayAABB(mgl32.Vec3{5, 0, 0}, mgl32.Vec3{1, 0, 0}, unitBox()); ok {
		t.Fatalf("box behind ray should miss")
	}
	if _, ok := RayAABB(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{}, unitBox()); ok {
		t.Fatalf("zero direction should miss")
	}
}

func TestRayAABB_FromInsideHitsExitFace(t *testing.T) {
	h, ok := RayAABB(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 1, 0}, unitBox())
	if !ok || h.T != 1 || h.Normal != (mgl32.Vec3{0, 1, 0}) {
		t.Fatalf("got ok=%v t=%v n=%v", ok, h.T, h.Normal)
	}
}

func TestAABB_ScaleAndAxis(t *testing.T) {
	b := Box(mgl32.Vec3{-1, 0, -2}, mgl32.Vec3{1, 3, 2}).Scale(mgl32.Vec3{2, -1, 1})
	if b.Min != (mgl32.Vec3{-2, -3, -2}) || b.Max != (mgl32.Vec3{2, 0, 2}) {
		t.Fatalf("scale: %+v", b)
	}
	z := Box(mgl32.Vec3{-1, 0, -2}, mgl32.Vec3{1, 3, 1}).YUpToZUp()
	if z.Min != (mgl32.Vec3{-1, -1, 0}) || z.Max != (mgl32.Vec3{1, 2, 3}) {
		t.Fatalf("axis: %+v", z)
	}
	if !z.Contains(mgl32.Vec3{0, 0, 1}) {
		t.Fatalf("contains")
	}
}
