package indexdb

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"voxelstore.ai/internal/sim/tuning"
	"voxelstore.ai/internal/sim/world"
)

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan world.FrameLogEntry, 1)}
	s.ch <- world.FrameLogEntry{Frame: 1}

	_ = s.WriteFrame(world.FrameLogEntry{Frame: 2})
	_ = s.WriteFrame(world.FrameLogEntry{Frame: 3})

	st := s.Stats()
	if st.DropFrameTotal != 2 {
		t.Fatalf("DropFrameTotal=%d want=2", st.DropFrameTotal)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_FramesAndSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.sqlite")
	idx, err := OpenSQLite(path, "run-a")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := idx.RecordRun("world_1", 42, tuning.Defaults()); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	for i := 0; i < 10; i++ {
		e := world.FrameLogEntry{
			Frame:        uint64(i),
			Spawned:      1,
			Transitions:  i % 2,
			LiveEntities: i + 1,
			Chunks:       3,
			StepMS:       float64(i),
		}
		if i == 4 {
			e.Error = "begin sim: chunk busy"
		}
		if i%5 == 0 {
			e.Digest = "d" + string(rune('0'+i))
		}
		if err := idx.WriteFrame(e); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	idx, err = OpenSQLite(path, "run-b")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx.Close()
	ctx := context.Background()

	runs, err := idx.Runs(ctx)
	if err != nil || len(runs) != 1 || runs[0].RunID != "run-a" || runs[0].Seed != 42 {
		t.Fatalf("runs: %+v err=%v", runs, err)
	}

	rows, err := idx.FrameRange(ctx, "run-a", 2, 5)
	if err != nil {
		t.Fatalf("FrameRange: %v", err)
	}
	if len(rows) != 4 || rows[0].Frame != 2 || rows[3].Frame != 5 {
		t.Fatalf("range rows: %+v", rows)
	}
	if rows[2].Error == "" {
		t.Fatalf("frame 4 error not stored")
	}

	sum, err := idx.Summary(ctx, "run-a")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.Frames != 10 || sum.FirstFrame != 0 || sum.LastFrame != 9 {
		t.Fatalf("summary frames: %+v", sum)
	}
	if sum.Skipped != 1 || sum.Spawned != 10 || sum.Transitions != 5 || sum.MaxLive != 10 {
		t.Fatalf("summary totals: %+v", sum)
	}
	if sum.LastDigestedAt != 5 || sum.MaxStepMS != 9 {
		t.Fatalf("summary digest/step: %+v", sum)
	}

	d, err := idx.DigestAt(ctx, "run-a", 5)
	if err != nil || d != "d5" {
		t.Fatalf("DigestAt: %q err=%v", d, err)
	}

	if _, err := idx.Summary(ctx, "missing"); !errors.Is(err, ErrNoFrames) {
		t.Fatalf("expected ErrNoFrames, got %v", err)
	}
}

func TestSQLiteIndex_WriteAfterCloseIsNoop(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "x", "index.sqlite"), "r")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := idx.WriteFrame(world.FrameLogEntry{Frame: 1}); err != nil {
		t.Fatalf("WriteFrame after close: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
