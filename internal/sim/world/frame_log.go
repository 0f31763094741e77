package world

// FrameLogEntry is the per-frame record handed to the FrameLogger and returned by Step.
type FrameLogEntry struct {
	WorldID string `json:"world_id"`
	Frame   uint64 `json:"frame"`

	Commands     int `json:"commands"`
	Rejected     int `json:"rejected,omitempty"`
	RegionChunks int `json:"region_chunks"`
	RegionEnts   int `json:"region_entities"`
	Moved        int `json:"moved"`
	Spawned      int `json:"spawned"`
	Removed      int `json:"removed"`
	Transitions  int `json:"transitions"`

	LiveEntities int `json:"live_entities"`
	Chunks       int `json:"chunks"`
	Blocks       int `json:"blocks"`
	FreeBlocks   int `json:"free_blocks"`

	StepMS float64 `json:"step_ms"`

	// Digest is set every DigestEveryFrames frames.
	Digest string `json:"digest,omitempty"`
	// Error is set when the frame's region failed; the frame was skipped.
	Error string `json:"error,omitempty"`
}

type FrameLogger interface {
	WriteFrame(e FrameLogEntry) error
}
