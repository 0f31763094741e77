package world

import (
	"encoding/hex"
	"encoding/json"

	"voxelstore.ai/internal/observerproto"
	"voxelstore.ai/internal/sim/world/logic/coords"
	"voxelstore.ai/internal/sim/world/terrain/store"
)

// ObserverJoinRequest registers a read-only observer session. FrameOut receives one
// FRAME message per simulated frame (latest wins); DataOut receives CHUNK messages.
type ObserverJoinRequest struct {
	SessionID string
	FrameOut  chan []byte
	DataOut   chan []byte

	Chunks    bool
	MaxChunks int
}

// ObserverSubscribeRequest updates an existing observer session.
type ObserverSubscribeRequest struct {
	SessionID string
	Chunks    bool
	MaxChunks int
}

type observerClient struct {
	id        string
	frameOut  chan []byte
	dataOut   chan []byte
	chunks    bool
	maxChunks int

	// Last chunk state sent, keyed by coordinate.
	sent map[coords.ChunkCoord]chunkSent
}

type chunkSent struct {
	digest   [32]byte
	entities int
}

const defaultObserverMaxChunks = 64

func (w *World) ObserverJoin() chan<- ObserverJoinRequest           { return w.observerJoin }
func (w *World) ObserverSubscribe() chan<- ObserverSubscribeRequest { return w.observerSubscribe }
func (w *World) ObserverLeave() chan<- string                       { return w.observerLeave }

func clampMaxChunks(n int) int {
	if n <= 0 {
		return defaultObserverMaxChunks
	}
	if n > 4096 {
		return 4096
	}
	return n
}

func (w *World) handleObserverJoin(req ObserverJoinRequest) {
	if req.SessionID == "" || req.FrameOut == nil || req.DataOut == nil {
		return
	}
	if old := w.observers[req.SessionID]; old != nil {
		close(old.frameOut)
		close(old.dataOut)
	}
	w.observers[req.SessionID] = &observerClient{
		id:        req.SessionID,
		frameOut:  req.FrameOut,
		dataOut:   req.DataOut,
		chunks:    req.Chunks,
		maxChunks: clampMaxChunks(req.MaxChunks),
		sent:      map[coords.ChunkCoord]chunkSent{},
	}
}

func (w *World) handleObserverSubscribe(req ObserverSubscribeRequest) {
	c := w.observers[req.SessionID]
	if c == nil {
		return
	}
	if req.Chunks && !c.chunks {
		// Resend everything after a re-enable.
		c.sent = map[coords.ChunkCoord]chunkSent{}
	}
	c.chunks = req.Chunks
	c.maxChunks = clampMaxChunks(req.MaxChunks)
}

func (w *World) handleObserverLeave(sessionID string) {
	c := w.observers[sessionID]
	if c == nil {
		return
	}
	delete(w.observers, sessionID)
	close(c.frameOut)
	close(c.dataOut)
}

func (w *World) buildFrameMsg(r *SimRegion, e FrameLogEntry) observerproto.FrameMsg {
	msg := observerproto.FrameMsg{
		Type:            observerproto.TypeFrame,
		ProtocolVersion: observerproto.Version,
		Frame:           w.frame,
		Origin: observerproto.Position{
			Chunk:  r.Origin.Chunk.Array(),
			Offset: [3]float32(r.Origin.Offset),
		},
		RegionMin:    r.Min.Array(),
		RegionMax:    r.Max.Array(),
		RegionChunks: r.ChunkCount(),
		Entities:     make([]observerproto.EntityState, 0, len(r.Entities)),
		Spawned:      e.Spawned,
		Removed:      e.Removed,
		Transitions:  e.Transitions,
	}
	for i := range r.Entities {
		se := &r.Entities[i]
		if se.Removed {
			continue
		}
		msg.Entities = append(msg.Entities, observerproto.EntityState{
			Index:    uint32(se.Index),
			Type:     se.Type.String(),
			P:        [3]float32(se.P),
			Velocity: [3]float32(se.Velocity),
			Size:     [3]float32(se.Size),
			Color:    [4]float32(se.Color),
			Mesh:     uint32(se.Mesh),
		})
	}
	return msg
}

func (w *World) stepObservers(r *SimRegion, e FrameLogEntry) {
	if len(w.observers) == 0 {
		return
	}
	b, err := json.Marshal(w.buildFrameMsg(r, e))
	if err != nil {
		w.logger.Printf("observer frame marshal: %v", err)
		return
	}

	for _, c := range w.observers {
		sendLatest(c.frameOut, b)
		if !c.chunks {
			continue
		}
		sent := 0
		r.ForEachChunk(func(ch *store.Chunk) bool {
			if sent >= c.maxChunks {
				return false
			}
			cur := chunkSent{digest: ch.Digest(), entities: ch.EntityCount()}
			if prev, ok := c.sent[ch.Coord]; ok && prev == cur {
				return true
			}
			cb, err := json.Marshal(observerproto.ChunkMsg{
				Type:            observerproto.TypeChunk,
				ProtocolVersion: observerproto.Version,
				Frame:           w.frame,
				Chunk:           ch.Coord.Array(),
				Dim:             ch.Dim(),
				Encoding:        observerproto.EncodingRLE,
				Data:            ch.TilesRLE(),
				Digest:          hex.EncodeToString(cur.digest[:]),
				Entities:        cur.entities,
			})
			if err != nil {
				return true
			}
			select {
			case c.dataOut <- cb:
				c.sent[ch.Coord] = cur
				sent++
				return true
			default:
				// Full; retry next frame.
				return false
			}
		})
	}
}

// sendLatest delivers b, dropping the oldest queued message if the channel is full.
func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
