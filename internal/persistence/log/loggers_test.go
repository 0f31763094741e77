package log

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"voxelstore.ai/internal/sim/world"
)

func TestFrameLogger_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewFrameLogger(dir, "run-1")
	for i := 0; i < 5; i++ {
		if err := l.WriteFrame(world.FrameLogEntry{WorldID: "w", Frame: uint64(i), Spawned: i}); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, err := ListFiles(FramesDir(dir))
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("files: %v", files)
	}
	var got []FrameRecord
	if err := ReadFrames(files[0], func(r FrameRecord) error {
		got = append(got, r)
		return nil
	}); err != nil {
		t.Fatalf("ReadFrames: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("records: got %d want 5", len(got))
	}
	for i, r := range got {
		if r.RunID != "run-1" || r.Frame != uint64(i) || r.Spawned != i || r.WorldID != "w" {
			t.Fatalf("record %d: %+v", i, r)
		}
	}
}

func TestJSONLZstdWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "frames")
	ts := time.Date(2024, 3, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return ts }

	if err := w.Write(map[string]int{"frame": 1}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	ts = ts.Add(2 * time.Minute)
	if err := w.Write(map[string]int{"frame": 2}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, err := ListFiles(dir)
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 hourly files, got %v", files)
	}
	if filepath.Base(files[0]) != "frames-2024-03-01-10.jsonl.zst" {
		t.Fatalf("unexpected first file %s", files[0])
	}
}

func TestReadFrames_StopsOnCallbackError(t *testing.T) {
	dir := t.TempDir()
	l := NewFrameLogger(dir, "r")
	_ = l.WriteFrame(world.FrameLogEntry{Frame: 1})
	_ = l.WriteFrame(world.FrameLogEntry{Frame: 2})
	_ = l.Close()

	files, _ := ListFiles(FramesDir(dir))
	stop := errors.New("stop")
	n := 0
	err := ReadFrames(files[0], func(FrameRecord) error {
		n++
		return stop
	})
	if !errors.Is(err, stop) || n != 1 {
		t.Fatalf("err=%v n=%d", err, n)
	}
}

func TestListFiles_MissingDir(t *testing.T) {
	if _, err := ListFiles(filepath.Join(t.TempDir(), "none")); !os.IsNotExist(err) {
		t.Fatalf("expected not-exist, got %v", err)
	}
}
