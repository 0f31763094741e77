package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"voxelstore.ai/internal/sim/world/terrain/store"
)

// StateDigest hashes every chunk (in creation order) and every live entity record.
// Two worlds fed the same commands from the same config produce the same digest.
func (w *World) StateDigest() string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, w.frame)
	digestWriteU64(h, &tmp, uint64(len(w.entities)))

	w.store.ForEachChunk(func(ch *store.Chunk) bool {
		d := ch.Digest()
		h.Write(d[:])
		digestWriteU64(h, &tmp, uint64(ch.EntityCount()))
		w.store.ForEachEntity(ch, func(idx store.EntityIndex) bool {
			digestWriteU64(h, &tmp, uint64(idx))
			return true
		})
		return true
	})

	for i := 1; i < len(w.entities); i++ {
		e := &w.entities[i]
		if e.Type == EntityNone {
			continue
		}
		digestWriteU64(h, &tmp, uint64(e.Index))
		h.Write([]byte{byte(e.Type)})
		for _, v := range e.Pos.Chunk.Array() {
			digestWriteU64(h, &tmp, uint64(int64(v)))
		}
		digestWriteVec(h, &tmp, e.Pos.Offset)
		digestWriteVec(h, &tmp, e.Velocity)
		digestWriteVec(h, &tmp, e.Size)
		digestWriteU64(h, &tmp, uint64(e.Mesh))
	}

	return hex.EncodeToString(h.Sum(nil))
}

type hashWriter interface {
	Write(p []byte) (n int, err error)
}

func digestWriteU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteVec(h hashWriter, tmp *[8]byte, v mgl32.Vec3) {
	for _, f := range v {
		digestWriteU64(h, tmp, uint64(math.Float32bits(f)))
	}
}
