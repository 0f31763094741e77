package store

import (
	"encoding/hex"

	"voxelstore.ai/internal/sim/encoding"
)

// ChunkExport is the renderer/observer view of one chunk's terrain.
type ChunkExport struct {
	Coord    [3]int32 `json:"coord"`
	Dim      int      `json:"dim"`
	TilesRLE string   `json:"tiles_rle"`
	Digest   string   `json:"digest"`
	Entities int      `json:"entities"`
}

func (c *Chunk) TilesRLE() string {
	ids := make([]uint8, len(c.Tiles))
	for i, t := range c.Tiles {
		ids[i] = uint8(t)
	}
	return encoding.EncodeRLE(ids)
}

func (c *Chunk) Export() ChunkExport {
	d := c.Digest()
	return ChunkExport{
		Coord:    c.Coord.Array(),
		Dim:      c.dim,
		TilesRLE: c.TilesRLE(),
		Digest:   hex.EncodeToString(d[:]),
		Entities: c.EntityCount(),
	}
}
