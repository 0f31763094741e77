package world

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"voxelstore.ai/internal/sim/world/logic/coords"
	"voxelstore.ai/internal/sim/world/terrain/store"
)

func TestBeginSim_OnlyExistingChunksInSpan(t *testing.T) {
	w := newTestWorld(t, nil)
	for _, c := range []coords.ChunkCoord{{X: 5, Y: 5}, {X: 6, Y: 5}} {
		if _, err := w.EnsureChunk(c); err != nil {
			t.Fatalf("EnsureChunk: %v", err)
		}
	}
	r, err := w.BeginSim(nil, at(5, 5, 0, 0, 0, 0), coords.ChunkCoord{X: 1, Y: 1})
	if err != nil {
		t.Fatalf("BeginSim: %v", err)
	}
	if r.ChunkCount() != 2 {
		t.Fatalf("region chunks: got %d want 2", r.ChunkCount())
	}
	if w.Store().ChunkCount() != 2 {
		t.Fatalf("BeginSim must not create chunks, store has %d", w.Store().ChunkCount())
	}
	r.ForEachChunk(func(ch *store.Chunk) bool {
		if !ch.Simulated {
			t.Fatalf("chunk %v not flagged", ch.Coord)
		}
		return true
	})
	if err := w.EndSim(r); err != nil {
		t.Fatalf("EndSim: %v", err)
	}
	for _, c := range []coords.ChunkCoord{{X: 5, Y: 5}, {X: 6, Y: 5}} {
		if w.GetChunk(c).Simulated {
			t.Fatalf("chunk %v still flagged after EndSim", c)
		}
	}
}

func TestBeginSim_ExtractsEveryEntity(t *testing.T) {
	w := newTestWorld(t, nil)
	var inside []store.EntityIndex
	for i := 0; i < 40; i++ {
		inside = append(inside, mustAdd(t, w, at(0, 0, 0, float32(i%8), 0, 0)))
	}
	for i := 0; i < 3; i++ {
		inside = append(inside, mustAdd(t, w, at(1, 0, 0, 0, float32(i), 0)))
	}
	outside := mustAdd(t, w, at(3, 0, 0, 0, 0, 0))

	r, err := w.BeginSim(NewScratch(), at(0, 0, 0, 0, 0, 0), coords.ChunkCoord{X: 1})
	if err != nil {
		t.Fatalf("BeginSim: %v", err)
	}
	if len(r.Entities) != len(inside) {
		t.Fatalf("region entities: got %d want %d", len(r.Entities), len(inside))
	}
	for _, idx := range inside {
		if r.GetEntity(idx) == nil {
			t.Fatalf("entity %d missing from region", idx)
		}
	}
	if r.GetEntity(outside) != nil {
		t.Fatalf("entity outside the span was extracted")
	}
	if err := w.EndSim(r); err != nil {
		t.Fatalf("EndSim: %v", err)
	}
}

func TestRegion_RoundTripWithoutChanges(t *testing.T) {
	w := newTestWorld(t, nil)
	a := mustAdd(t, w, at(0, 0, 0, 2.5, -3.25, 7.75))
	b := mustAdd(t, w, at(1, -1, 0, -8, 0.5, 0))
	before := []StoredEntity{*w.GetStoredEntity(a), *w.GetStoredEntity(b)}

	r, err := w.BeginSim(nil, at(0, 0, 0, 1, 1, 1), coords.ChunkCoord{X: 1, Y: 1})
	if err != nil {
		t.Fatalf("BeginSim: %v", err)
	}
	if p := r.GetEntity(a).P; p != (mgl32.Vec3{1.5, -4.25, 6.75}) {
		t.Fatalf("region-relative P: got %v", p)
	}
	if err := w.EndSim(r); err != nil {
		t.Fatalf("EndSim: %v", err)
	}
	after := []StoredEntity{*w.GetStoredEntity(a), *w.GetStoredEntity(b)}
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("entity changed by round trip: before %+v after %+v", before[i], after[i])
		}
	}
	if w.frameStats.transitions != 0 {
		t.Fatalf("round trip produced %d transitions", w.frameStats.transitions)
	}
}

func TestEndSim_MovesEntityAcrossChunks(t *testing.T) {
	w := newTestWorld(t, nil)
	idx := mustAdd(t, w, at(0, 0, 0, 7.5, 0, 0))
	r, err := w.BeginSim(nil, at(0, 0, 0, 0, 0, 0), coords.ChunkCoord{})
	if err != nil {
		t.Fatalf("BeginSim: %v", err)
	}
	se := r.GetEntity(idx)
	se.P = se.P.Add(mgl32.Vec3{2, 0, 0})
	if err := w.EndSim(r); err != nil {
		t.Fatalf("EndSim: %v", err)
	}

	e := w.GetStoredEntity(idx)
	if e.Pos.Chunk != (coords.ChunkCoord{X: 1}) || e.Pos.Offset.X() != -6.5 {
		t.Fatalf("pos after move: %+v", e.Pos)
	}
	dst := w.GetChunk(coords.ChunkCoord{X: 1})
	if dst == nil || w.Store().Contains(dst, idx) != 1 {
		t.Fatalf("entity not in destination chain")
	}
	if w.Store().Contains(w.GetChunk(coords.ChunkCoord{}), idx) != 0 {
		t.Fatalf("entity left behind in source chain")
	}
	if w.frameStats.transitions != 1 {
		t.Fatalf("transitions: got %d want 1", w.frameStats.transitions)
	}
	if err := w.CheckInvariants(); err != nil {
		t.Fatalf("invariants: %v", err)
	}
}

func TestBeginSim_RejectsOverlapAndRollsBack(t *testing.T) {
	w := newTestWorld(t, nil)
	mustAdd(t, w, at(0, 0, 0, 0, 0, 0))
	mustAdd(t, w, at(1, 0, 0, 0, 0, 0))

	r, err := w.BeginSim(nil, at(0, 0, 0, 0, 0, 0), coords.ChunkCoord{})
	if err != nil {
		t.Fatalf("BeginSim: %v", err)
	}
	if _, err := w.BeginSim(nil, at(5, 0, 0, 0, 0, 0), coords.ChunkCoord{}); !errors.Is(err, ErrRegionActive) {
		t.Fatalf("expected ErrRegionActive, got %v", err)
	}
	if err := w.CheckInvariants(); !errors.Is(err, ErrRegionActive) {
		t.Fatalf("CheckInvariants during region: got %v", err)
	}
	if err := w.EndSim(r); err != nil {
		t.Fatalf("EndSim: %v", err)
	}

	// A chunk flagged by someone else fails the claim and leaves no flags behind.
	busy := w.GetChunk(coords.ChunkCoord{X: 1})
	busy.Simulated = true
	_, err = w.BeginSim(nil, at(0, 0, 0, 0, 0, 0), coords.ChunkCoord{X: 1})
	if !errors.Is(err, ErrChunkSimulated) {
		t.Fatalf("expected ErrChunkSimulated, got %v", err)
	}
	var se *SimError
	if !errors.As(err, &se) || se.Chunk != busy.Coord {
		t.Fatalf("expected SimError for %v, got %v", busy.Coord, err)
	}
	if w.GetChunk(coords.ChunkCoord{}).Simulated {
		t.Fatalf("origin chunk left flagged after failed BeginSim")
	}
	if w.ActiveRegion() != nil {
		t.Fatalf("failed BeginSim left an active region")
	}
	busy.Simulated = false
	if err := w.CheckInvariants(); err != nil {
		t.Fatalf("invariants: %v", err)
	}
}

func TestEndSim_RetiresRemovedEntities(t *testing.T) {
	w := newTestWorld(t, nil)
	a := mustAdd(t, w, at(0, 0, 0, 0, 0, 0))
	b := mustAdd(t, w, at(0, 0, 0, 1, 0, 0))

	r, err := w.BeginSim(nil, at(0, 0, 0, 0, 0, 0), coords.ChunkCoord{})
	if err != nil {
		t.Fatalf("BeginSim: %v", err)
	}
	if err := w.RemoveStoredEntity(a); !errors.Is(err, ErrChunkSimulated) {
		t.Fatalf("direct remove inside region: expected ErrChunkSimulated, got %v", err)
	}
	r.GetEntity(a).Removed = true
	if err := w.EndSim(r); err != nil {
		t.Fatalf("EndSim: %v", err)
	}
	if w.GetStoredEntity(a) != nil || w.GetStoredEntity(b) == nil {
		t.Fatalf("wrong entity retired")
	}
	if w.LiveEntities() != 1 || w.FreeIndices() != 1 {
		t.Fatalf("live=%d free=%d", w.LiveEntities(), w.FreeIndices())
	}
	if err := w.CheckInvariants(); err != nil {
		t.Fatalf("invariants: %v", err)
	}
}

func TestRegion_ClosedAfterEnd(t *testing.T) {
	w := newTestWorld(t, nil)
	idx := mustAdd(t, w, at(0, 0, 0, 0, 0, 0))
	r, err := w.BeginSim(nil, at(0, 0, 0, 0, 0, 0), coords.ChunkCoord{})
	if err != nil {
		t.Fatalf("BeginSim: %v", err)
	}
	if err := w.AbortSim(r); err != nil {
		t.Fatalf("AbortSim: %v", err)
	}
	if !r.Closed() || r.GetEntity(idx) != nil {
		t.Fatalf("closed region still answers lookups")
	}
	if err := w.EndSim(r); !errors.Is(err, ErrRegionClosed) {
		t.Fatalf("EndSim on aborted region: got %v", err)
	}
	if w.GetChunk(coords.ChunkCoord{}).Simulated {
		t.Fatalf("AbortSim left chunk flagged")
	}
}

func TestBeginSim_ScratchReuse(t *testing.T) {
	w := newTestWorld(t, nil)
	for i := 0; i < 20; i++ {
		mustAdd(t, w, at(0, 0, 0, float32(i%5), 0, 0))
	}
	s := NewScratch()
	for frame := 0; frame < 3; frame++ {
		r, err := w.BeginSim(s, at(0, 0, 0, 0, 0, 0), coords.ChunkCoord{})
		if err != nil {
			t.Fatalf("frame %d BeginSim: %v", frame, err)
		}
		if len(r.Entities) != 20 {
			t.Fatalf("frame %d: got %d entities", frame, len(r.Entities))
		}
		if err := w.EndSim(r); err != nil {
			t.Fatalf("frame %d EndSim: %v", frame, err)
		}
		s.Reset()
	}
	if ents, _, _ := s.Capacity(); ents < 20 {
		t.Fatalf("scratch capacity not retained: %d", ents)
	}
}

func TestBeginSim_HugeSpanScansStore(t *testing.T) {
	w := newTestWorld(t, nil)
	mustAdd(t, w, at(1000, -1000, 3, 0, 0, 0))
	mustAdd(t, w, at(-5, 0, 0, 0, 0, 0))
	big := coords.ChunkCoord{X: 1 << 30, Y: 1 << 30, Z: 1 << 30}
	r, err := w.BeginSim(nil, at(0, 0, 0, 0, 0, 0), big)
	if err != nil {
		t.Fatalf("BeginSim: %v", err)
	}
	if r.ChunkCount() != 2 || len(r.Entities) != 2 {
		t.Fatalf("huge span: chunks=%d entities=%d", r.ChunkCount(), len(r.Entities))
	}
	if err := w.EndSim(r); err != nil {
		t.Fatalf("EndSim: %v", err)
	}
}

func TestEndSim_StaleHandleAfterScratchReuse(t *testing.T) {
	w := newTestWorld(t, nil)
	idx := mustAdd(t, w, at(0, 0, 0, 0, 0, 0))
	s := NewScratch()

	r1, err := w.BeginSim(s, at(0, 0, 0, 0, 0, 0), coords.ChunkCoord{})
	if err != nil {
		t.Fatalf("BeginSim r1: %v", err)
	}
	if err := w.EndSim(r1); err != nil {
		t.Fatalf("EndSim r1: %v", err)
	}
	s.Reset()

	r2, err := w.BeginSim(s, at(0, 0, 0, 0, 0, 0), coords.ChunkCoord{})
	if err != nil {
		t.Fatalf("BeginSim r2: %v", err)
	}
	if r1 == r2 {
		t.Fatalf("scratch handed out the same region twice")
	}
	if !r1.Closed() || r1.GetEntity(idx) != nil {
		t.Fatalf("ended region answers lookups after scratch reuse")
	}
	if err := w.EndSim(r1); !errors.Is(err, ErrRegionClosed) {
		t.Fatalf("EndSim(stale): got %v want ErrRegionClosed", err)
	}
	if err := w.AbortSim(r1); !errors.Is(err, ErrRegionClosed) {
		t.Fatalf("AbortSim(stale): got %v want ErrRegionClosed", err)
	}
	if w.ActiveRegion() != r2 || !w.GetChunk(coords.ChunkCoord{}).Simulated {
		t.Fatalf("stale handle ended the live region")
	}
	if err := w.EndSim(r2); err != nil {
		t.Fatalf("EndSim r2: %v", err)
	}
}

func TestChangeEntityPos_RejectsSimulatedChunk(t *testing.T) {
	w := newTestWorld(t, nil)
	idx := mustAdd(t, w, at(0, 0, 0, 0, 0, 0))
	r, err := w.BeginSim(nil, at(0, 0, 0, 0, 0, 0), coords.ChunkCoord{})
	if err != nil {
		t.Fatalf("BeginSim: %v", err)
	}
	if err := w.ChangeEntityPos(idx, at(1, 0, 0, 0, 0, 0)); !errors.Is(err, ErrChunkSimulated) {
		t.Fatalf("ChangeEntityPos in live region: got %v want ErrChunkSimulated", err)
	}
	r.GetEntity(idx).P = mgl32.Vec3{16, 0, 0}
	if err := w.EndSim(r); err != nil {
		t.Fatalf("EndSim: %v", err)
	}
	if got := w.GetStoredEntity(idx).Pos.Chunk; got != (coords.ChunkCoord{X: 1}) {
		t.Fatalf("EndSim move: chunk %v want {1 0 0}", got)
	}
	if err := w.ChangeEntityPos(idx, at(0, 0, 0, 0, 0, 0)); err != nil {
		t.Fatalf("ChangeEntityPos after EndSim: %v", err)
	}
	if err := w.CheckInvariants(); err != nil {
		t.Fatalf("invariants: %v", err)
	}
}
