package observerproto

// Version is the observer protocol version.
const Version = "0.1"

// Client -> Server. First message on the observer WS connection; may be re-sent to
// change settings.
type SubscribeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	// Stream CHUNK messages for region chunks whose digest changed.
	Chunks bool `json:"chunks"`
	// Cap on CHUNK messages per frame (0 = server default).
	MaxChunks int `json:"max_chunks,omitempty"`
}

// HTTP response for GET /admin/v1/observer/bootstrap.
type BootstrapResponse struct {
	ProtocolVersion string      `json:"protocol_version"`
	WorldID         string      `json:"world_id"`
	Frame           uint64      `json:"frame"`
	WorldParams     WorldParams `json:"world_params"`
	TilePalette     []string    `json:"tile_palette"`
	Store           StoreInfo   `json:"store"`
}

type WorldParams struct {
	FrameRateHz int      `json:"frame_rate_hz"`
	ChunkSide   float32  `json:"chunk_side"`
	ChunkTiles  int      `json:"chunk_tiles"`
	TableSize   int      `json:"chunk_table_size"`
	SimSpan     [3]int32 `json:"sim_span"`
	Seed        int64    `json:"seed"`
}

type StoreInfo struct {
	Chunks     int    `json:"chunks"`
	Entities   int    `json:"entities"`
	Blocks     int    `json:"blocks"`
	FreeBlocks int    `json:"free_blocks"`
	Bytes      uint64 `json:"bytes"`
	// Human-readable Bytes, e.g. "1.2 MB".
	Size string `json:"size"`
}

// Position is a chunk coordinate plus an offset from the chunk center.
type Position struct {
	Chunk  [3]int32   `json:"chunk"`
	Offset [3]float32 `json:"offset"`
}

// Server -> Client. Sent every frame a region was simulated.
type FrameMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Frame           uint64 `json:"frame"`

	Origin       Position      `json:"origin"`
	RegionMin    [3]int32      `json:"region_min"`
	RegionMax    [3]int32      `json:"region_max"`
	RegionChunks int           `json:"region_chunks"`
	Entities     []EntityState `json:"entities"`

	Spawned     int `json:"spawned,omitempty"`
	Removed     int `json:"removed,omitempty"`
	Transitions int `json:"transitions,omitempty"`
}

type EntityState struct {
	Index uint32 `json:"index"`
	Type  string `json:"type"`

	// Region-relative position and velocity.
	P        [3]float32 `json:"p"`
	Velocity [3]float32 `json:"velocity"`
	Size     [3]float32 `json:"size"`
	Color    [4]float32 `json:"color"`
	Mesh     uint32     `json:"mesh"`
}

// Server -> Client. Full tile data for a chunk.
// Encoding "RLE_U8_XYZ": base64 of (tile byte, uvarint run) pairs, x fastest.
type ChunkMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	Frame           uint64   `json:"frame"`
	Chunk           [3]int32 `json:"chunk"`
	Dim             int      `json:"dim"`
	Encoding        string   `json:"encoding"`
	Data            string   `json:"data"`
	Digest          string   `json:"digest"`
	Entities        int      `json:"entities"`
}

const (
	TypeSubscribe = "SUBSCRIBE"
	TypeFrame     = "FRAME"
	TypeChunk     = "CHUNK"

	EncodingRLE = "RLE_U8_XYZ"
)
