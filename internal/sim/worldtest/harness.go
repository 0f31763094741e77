package worldtest

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	world "voxelstore.ai/internal/sim/world"
	"voxelstore.ai/internal/sim/world/logic/coords"
	"voxelstore.ai/internal/sim/world/terrain/store"
)

// Harness is a small black-box test helper for driving a world via exported APIs:
// - every command goes through StepOnce with a reply channel
// - Step/StepN advance frames and return the state digest
//
// It intentionally avoids touching world internals so tests can live outside the world package.
type Harness struct {
	T *testing.T
	W *world.World
}

func NewHarness(t *testing.T, cfg world.WorldConfig) *Harness {
	t.Helper()
	w, err := world.New(cfg)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	return &Harness{T: t, W: w}
}

// do runs one frame carrying c and returns its reply.
func (h *Harness) do(c world.Command) world.CommandResult {
	h.T.Helper()
	resp := make(chan world.CommandResult, 1)
	c.Reply = resp
	_, _ = h.W.StepOnce([]world.Command{c})
	select {
	case r := <-resp:
		return r
	default:
		h.T.Fatalf("%s: no reply after one frame", c.Kind)
		return world.CommandResult{}
	}
}

func (h *Harness) Spawn(e world.StoredEntity) store.EntityIndex {
	h.T.Helper()
	r := h.do(world.Spawn(e))
	if !r.OK {
		h.T.Fatalf("spawn: %v", r.Err)
	}
	return r.Index
}

func (h *Harness) Remove(idx store.EntityIndex) error {
	h.T.Helper()
	return h.do(world.Remove(idx)).Err
}

func (h *Harness) Impulse(idx store.EntityIndex, dv mgl32.Vec3) {
	h.T.Helper()
	if r := h.do(world.Impulse(idx, dv)); !r.OK {
		h.T.Fatalf("impulse %d: %v", idx, r.Err)
	}
}

func (h *Harness) Focus(p coords.WorldPosition) {
	h.T.Helper()
	if r := h.do(world.Focus(p)); !r.OK {
		h.T.Fatalf("focus: %v", r.Err)
	}
}

func (h *Harness) Ray(from coords.WorldPosition, dir mgl32.Vec3, entities bool) world.CommandResult {
	h.T.Helper()
	return h.do(world.Ray(from, dir, entities, nil))
}

// Step advances one empty frame and returns the digest after it.
func (h *Harness) Step() string {
	_, d := h.W.StepOnce(nil)
	return d
}

func (h *Harness) StepN(n int) string {
	var d string
	for i := 0; i < n; i++ {
		d = h.Step()
	}
	return d
}

func (h *Harness) Entity(idx store.EntityIndex) world.StoredEntity {
	h.T.Helper()
	e := h.W.GetStoredEntity(idx)
	if e == nil {
		h.T.Fatalf("entity %d not found", idx)
	}
	return *e
}

func (h *Harness) CheckInvariants() {
	h.T.Helper()
	if err := h.W.CheckInvariants(); err != nil {
		h.T.Fatalf("invariants at frame %d: %v", h.W.CurrentFrame(), err)
	}
}
