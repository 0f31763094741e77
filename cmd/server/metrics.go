package main

import (
	"fmt"
	"io"

	"voxelstore.ai/internal/persistence/indexdb"
	"voxelstore.ai/internal/sim/world"
)

// writeMetrics renders world and index signals in the Prometheus text format.
func writeMetrics(w io.Writer, worldID string, m world.WorldMetrics, idx *indexdb.QueueStats) {
	gauge := func(name, help string) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s gauge\n", name)
	}

	gauge("voxelstore_world_frame", "Current world frame.")
	fmt.Fprintf(w, "voxelstore_world_frame{world=%q} %d\n", worldID, m.Frame)

	gauge("voxelstore_world_entities", "Live stored entities.")
	fmt.Fprintf(w, "voxelstore_world_entities{world=%q} %d\n", worldID, m.LiveEntities)
	fmt.Fprintf(w, "voxelstore_world_free_indices{world=%q} %d\n", worldID, m.FreeIndices)

	gauge("voxelstore_store_chunks", "Chunks in the chunk table.")
	fmt.Fprintf(w, "voxelstore_store_chunks{world=%q} %d\n", worldID, m.Chunks)

	gauge("voxelstore_store_blocks", "Entity blocks by state.")
	fmt.Fprintf(w, "voxelstore_store_blocks{world=%q,state=%q} %d\n", worldID, "allocated", m.Blocks)
	fmt.Fprintf(w, "voxelstore_store_blocks{world=%q,state=%q} %d\n", worldID, "free", m.FreeBlocks)

	gauge("voxelstore_store_bytes", "Approximate bytes held by the store.")
	fmt.Fprintf(w, "voxelstore_store_bytes{world=%q} %d\n", worldID, m.StoreBytes)

	gauge("voxelstore_store_max_chain", "Longest chunk table collision chain.")
	fmt.Fprintf(w, "voxelstore_store_max_chain{world=%q} %d\n", worldID, m.MaxChain)

	gauge("voxelstore_region_size", "Last sim region size.")
	fmt.Fprintf(w, "voxelstore_region_size{world=%q,kind=%q} %d\n", worldID, "chunks", m.RegionChunks)
	fmt.Fprintf(w, "voxelstore_region_size{world=%q,kind=%q} %d\n", worldID, "entities", m.RegionEntities)

	gauge("voxelstore_region_transitions", "Chunk transitions written back in the last frame.")
	fmt.Fprintf(w, "voxelstore_region_transitions{world=%q} %d\n", worldID, m.Transitions)

	gauge("voxelstore_world_observers", "Connected observers.")
	fmt.Fprintf(w, "voxelstore_world_observers{world=%q} %d\n", worldID, m.Observers)

	gauge("voxelstore_world_queue_depth", "Channel backlog depth.")
	fmt.Fprintf(w, "voxelstore_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "inbox", m.QueueDepths.Inbox)
	fmt.Fprintf(w, "voxelstore_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "observer_join", m.QueueDepths.ObserverJoin)
	fmt.Fprintf(w, "voxelstore_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "observer_leave", m.QueueDepths.ObserverLeave)

	gauge("voxelstore_world_step_ms", "Last frame step duration in milliseconds.")
	fmt.Fprintf(w, "voxelstore_world_step_ms{world=%q} %.3f\n", worldID, m.StepMS)

	fmt.Fprintf(w, "# HELP voxelstore_world_skipped_frames_total Frames whose region could not be opened.\n")
	fmt.Fprintf(w, "# TYPE voxelstore_world_skipped_frames_total counter\n")
	fmt.Fprintf(w, "voxelstore_world_skipped_frames_total{world=%q} %d\n", worldID, m.SkippedFrames)

	if idx == nil {
		return
	}
	gauge("voxelstore_index_queue_depth", "Frame index writer backlog.")
	fmt.Fprintf(w, "voxelstore_index_queue_depth{world=%q} %d\n", worldID, idx.QueueDepth)
	fmt.Fprintf(w, "voxelstore_index_queue_capacity{world=%q} %d\n", worldID, idx.QueueCapacity)
	fmt.Fprintf(w, "# HELP voxelstore_index_dropped_frames_total Frames dropped because the index queue was full.\n")
	fmt.Fprintf(w, "# TYPE voxelstore_index_dropped_frames_total counter\n")
	fmt.Fprintf(w, "voxelstore_index_dropped_frames_total{world=%q} %d\n", worldID, idx.DropFrameTotal)
}
