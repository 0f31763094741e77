package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"voxelstore.ai/internal/persistence/indexdb"
	"voxelstore.ai/internal/sim/tuning"
	"voxelstore.ai/internal/sim/world"
	"voxelstore.ai/internal/sim/world/logic/coords"
)

func findRepoRootForServerTests(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("could not locate go.mod from %s", dir)
		}
		dir = parent
	}
}

func TestWorldConfig_FromRepoTuning(t *testing.T) {
	root := findRepoRootForServerTests(t)
	tune, err := tuning.Load(filepath.Join(root, "configs", "tuning.yaml"))
	if err != nil {
		t.Fatalf("load tuning: %v", err)
	}
	tune.WorldGen.SeedOffset = 5

	cfg := worldConfig("w", 100, 9, tune)
	if cfg.ID != "w" || cfg.MaxFrames != 9 || cfg.FrameRateHz != tune.FrameRateHz {
		t.Fatalf("cfg: %+v", cfg)
	}
	if cfg.SimSpan != (coords.ChunkCoord{X: 2, Y: 2, Z: 1}) {
		t.Fatalf("span: %v", cfg.SimSpan)
	}
	if cfg.Gen == nil || cfg.Gen.Seed != 105 || cfg.Gen.Octaves != tune.WorldGen.Octaves {
		t.Fatalf("gen: %+v", cfg.Gen)
	}

	tune.WorldGen.Enabled = false
	if cfg := worldConfig("w", 100, 0, tune); cfg.Gen != nil {
		t.Fatalf("expected no terrain generation when disabled")
	}
	if _, err := world.New(cfg); err != nil {
		t.Fatalf("world.New from tuning: %v", err)
	}
}

func TestDemoEntities_DeterministicAndInsideSpan(t *testing.T) {
	span := coords.ChunkCoord{X: 2, Y: 1}
	a := demoEntities(32, 7, span, 16)
	b := demoEntities(32, 7, span, 16)
	if len(a) != 32 {
		t.Fatalf("len=%d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("entity %d differs across runs", i)
		}
		c := a[i].Pos.Chunk
		if c.X < -2 || c.X > 2 || c.Y < -1 || c.Y > 1 || c.Z != 0 {
			t.Fatalf("entity %d outside span: %v", i, c)
		}
		if off := a[i].Pos.Offset; off.X() < -8 || off.X() > 8 || off.Y() < -8 || off.Y() > 8 {
			t.Fatalf("entity %d offset not canonical: %v", i, off)
		}
	}
}

func TestMultiFrameLogger_FansOut(t *testing.T) {
	var a, b countingLogger
	m := multiFrameLogger{a: &a, b: &b}
	_ = m.WriteFrame(world.FrameLogEntry{Frame: 1})
	_ = multiFrameLogger{a: &a}.WriteFrame(world.FrameLogEntry{Frame: 2})
	if a.n != 2 || b.n != 1 {
		t.Fatalf("a=%d b=%d", a.n, b.n)
	}
}

type countingLogger struct {
	n   int
	err error
}

func (c *countingLogger) WriteFrame(world.FrameLogEntry) error {
	c.n++
	return c.err
}

func TestMultiFrameLogger_ReportsErrors(t *testing.T) {
	errDisk := errors.New("disk full")
	errIndex := errors.New("index closed")
	a := countingLogger{err: errDisk}
	var b countingLogger
	err := multiFrameLogger{a: &a, b: &b}.WriteFrame(world.FrameLogEntry{Frame: 1})
	if !errors.Is(err, errDisk) || b.n != 1 {
		t.Fatalf("first failure: err=%v b=%d", err, b.n)
	}

	b.err = errIndex
	err = multiFrameLogger{a: &a, b: &b}.WriteFrame(world.FrameLogEntry{Frame: 2})
	if !errors.Is(err, errDisk) || !errors.Is(err, errIndex) {
		t.Fatalf("both failures: err=%v", err)
	}

	a.err, b.err = nil, nil
	if err := (multiFrameLogger{a: &a, b: &b}).WriteFrame(world.FrameLogEntry{Frame: 3}); err != nil {
		t.Fatalf("healthy loggers: %v", err)
	}
}

func TestOpenRuntimeIndex(t *testing.T) {
	dir := t.TempDir()
	idx, err := openRuntimeIndex(dir, "r1", true)
	if err != nil || idx != nil {
		t.Fatalf("disabled: idx=%v err=%v", idx, err)
	}

	t.Setenv("VS_INDEX_BACKEND", "bogus")
	if _, err := openRuntimeIndex(dir, "r1", false); err == nil {
		t.Fatalf("expected unsupported backend error")
	}

	t.Setenv("VS_INDEX_BACKEND", "")
	idx, err = openRuntimeIndex(dir, "r1", false)
	if err != nil || idx == nil {
		t.Fatalf("sqlite: idx=%v err=%v", idx, err)
	}
	defer idx.Close()
	if _, err := os.Stat(IndexPath(dir)); err != nil {
		t.Fatalf("index file: %v", err)
	}
}

func TestWriteMetrics(t *testing.T) {
	m := world.WorldMetrics{Frame: 42, LiveEntities: 3, Chunks: 2, MaxChain: 2, SkippedFrames: 1}
	m.QueueDepths.Inbox = 5

	var buf bytes.Buffer
	writeMetrics(&buf, "w1", m, &indexdb.QueueStats{QueueDepth: 1, QueueCapacity: 8, DropFrameTotal: 4})
	out := buf.String()
	for _, want := range []string{
		`voxelstore_world_frame{world="w1"} 42`,
		`voxelstore_world_entities{world="w1"} 3`,
		`voxelstore_store_chunks{world="w1"} 2`,
		`voxelstore_store_max_chain{world="w1"} 2`,
		`voxelstore_world_queue_depth{world="w1",queue="inbox"} 5`,
		`voxelstore_world_skipped_frames_total{world="w1"} 1`,
		`voxelstore_index_dropped_frames_total{world="w1"} 4`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}

	buf.Reset()
	writeMetrics(&buf, "w1", m, nil)
	if strings.Contains(buf.String(), "voxelstore_index_") {
		t.Fatalf("index metrics without an index")
	}
}
