package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"voxelstore.ai/internal/persistence/indexdb"
	"voxelstore.ai/internal/sim/tuning"
	"voxelstore.ai/internal/sim/world"
)

type runtimeIndex interface {
	world.FrameLogger
	Close() error
	RecordRun(worldID string, seed int64, tune tuning.Tuning) error
	Stats() indexdb.QueueStats
}

// IndexPath is where the frame-stats database for a world lives.
func IndexPath(worldDir string) string {
	return filepath.Join(worldDir, "index", "world.sqlite")
}

func openRuntimeIndex(worldDir, runID string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("VS_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(IndexPath(worldDir), runID)
	default:
		return nil, fmt.Errorf("unsupported VS_INDEX_BACKEND: %s", backend)
	}
}

type multiFrameLogger struct {
	a world.FrameLogger
	b world.FrameLogger
}

// WriteFrame writes to both loggers even when the first fails.
func (m multiFrameLogger) WriteFrame(e world.FrameLogEntry) error {
	var errA, errB error
	if m.a != nil {
		errA = m.a.WriteFrame(e)
	}
	if m.b != nil {
		errB = m.b.WriteFrame(e)
	}
	return errors.Join(errA, errB)
}
