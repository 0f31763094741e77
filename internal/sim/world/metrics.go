package world

import "voxelstore.ai/internal/sim/world/terrain/store"

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Frame uint64 `json:"frame"`

	LiveEntities int    `json:"live_entities"`
	FreeIndices  int    `json:"free_indices"`
	Chunks       int    `json:"chunks"`
	Blocks       int    `json:"blocks"`
	FreeBlocks   int    `json:"free_blocks"`
	StoreBytes   uint64 `json:"store_bytes"`
	MaxChain     int    `json:"max_chain"`

	RegionChunks   int `json:"region_chunks"`
	RegionEntities int `json:"region_entities"`
	Transitions    int `json:"transitions"`

	Observers   int         `json:"observers"`
	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS         float64 `json:"step_ms"`
	SkippedFrames  uint64  `json:"skipped_frames"`
	ScratchEntries int     `json:"scratch_entities"`
}

type QueueDepths struct {
	Inbox         int `json:"inbox"`
	ObserverJoin  int `json:"observer_join"`
	ObserverLeave int `json:"observer_leave"`
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	v := w.metrics.Load()
	if v == nil {
		return WorldMetrics{}
	}
	m, ok := v.(WorldMetrics)
	if !ok {
		return WorldMetrics{}
	}
	return m
}

func (w *World) storeMetrics(e FrameLogEntry, st store.Stats) {
	ents, _, _ := w.scratch.Capacity()
	w.metrics.Store(WorldMetrics{
		Frame:          w.frame,
		LiveEntities:   e.LiveEntities,
		FreeIndices:    len(w.freeIndices),
		Chunks:         e.Chunks,
		Blocks:         e.Blocks,
		FreeBlocks:     e.FreeBlocks,
		StoreBytes:     st.Bytes,
		MaxChain:       st.MaxChain,
		RegionChunks:   e.RegionChunks,
		RegionEntities: e.RegionEnts,
		Transitions:    e.Transitions,
		Observers:      len(w.observers),
		QueueDepths: QueueDepths{
			Inbox:         len(w.inbox),
			ObserverJoin:  len(w.observerJoin),
			ObserverLeave: len(w.observerLeave),
		},
		StepMS:         e.StepMS,
		SkippedFrames:  w.skipped,
		ScratchEntries: ents,
	})
}
