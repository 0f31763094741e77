package worldtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"voxelstore.ai/internal/persistence/indexdb"
	persistlog "voxelstore.ai/internal/persistence/log"
	"voxelstore.ai/internal/sim/tuning"
	world "voxelstore.ai/internal/sim/world"
	"voxelstore.ai/internal/sim/world/logic/coords"
)

type fanout []world.FrameLogger

func (f fanout) WriteFrame(e world.FrameLogEntry) error {
	for _, l := range f {
		if err := l.WriteFrame(e); err != nil {
			return err
		}
	}
	return nil
}

func TestFrameLogAndIndexAgree(t *testing.T) {
	dir := t.TempDir()
	idx, err := indexdb.OpenSQLite(filepath.Join(dir, "index", "world.sqlite"), "run-x")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := idx.RecordRun("test", 42, tuning.Defaults()); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	fl := persistlog.NewFrameLogger(dir, "run-x")

	cfg := testConfig()
	cfg.DigestEveryFrames = 5
	h := NewHarness(t, cfg)
	h.W.SetFrameLogger(fanout{fl, idx})

	id := h.Spawn(world.StoredEntity{Type: world.EntityPlayer, Velocity: mgl32.Vec3{20, 0, 0}})
	h.StepN(19)
	if err := fl.Close(); err != nil {
		t.Fatalf("close log: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close index: %v", err)
	}

	files, err := persistlog.ListFiles(persistlog.FramesDir(dir))
	if err != nil || len(files) == 0 {
		t.Fatalf("frame log files: %v err=%v", files, err)
	}
	logged := map[uint64]string{}
	transitions := 0
	for _, f := range files {
		if err := persistlog.ReadFrames(f, func(r persistlog.FrameRecord) error {
			if r.Digest != "" {
				logged[r.Frame] = r.Digest
			}
			transitions += r.Transitions
			return nil
		}); err != nil {
			t.Fatalf("ReadFrames: %v", err)
		}
	}
	if len(logged) != 4 {
		t.Fatalf("digested frames: %v", logged)
	}
	if transitions == 0 {
		t.Fatalf("entity moving at 20/s never changed chunk")
	}
	if e := h.Entity(id); e.Pos.Chunk == (coords.ChunkCoord{}) {
		t.Fatalf("entity still in origin chunk: %+v", e.Pos)
	}

	idx, err = indexdb.OpenSQLite(filepath.Join(dir, "index", "world.sqlite"), "reader")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()
	ctx := context.Background()
	for frame, d := range logged {
		got, err := idx.DigestAt(ctx, "run-x", frame)
		if err != nil || got != d {
			t.Fatalf("frame %d: index digest %q log digest %q err=%v", frame, got, d, err)
		}
	}
	sum, err := idx.Summary(ctx, "run-x")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.Frames != 20 || sum.Spawned != 1 || sum.Transitions != int64(transitions) {
		t.Fatalf("summary: %+v (log transitions %d)", sum, transitions)
	}
}
