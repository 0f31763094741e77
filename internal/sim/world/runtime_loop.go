package world

import (
	"context"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

// Run drives the world at FrameRateHz until ctx is done, Stop is called, or
// MaxFrames frames have been stepped. Commands submitted between ticks are applied
// at the start of the next frame in submission order.
func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.FrameRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	dt := w.FrameDT()
	var pending []Command

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.observerJoin:
			w.handleObserverJoin(req)
		case req := <-w.observerSubscribe:
			w.handleObserverSubscribe(req)
		case id := <-w.observerLeave:
			w.handleObserverLeave(id)
		case c := <-w.inbox:
			pending = append(pending, c)
		case <-ticker.C:
			w.Step(dt, pending)
			pending = pending[:0]
			if w.cfg.MaxFrames > 0 && w.frame >= w.cfg.MaxFrames {
				return nil
			}
		}
	}
}

func (w *World) Stop() { w.stopOnce.Do(func() { close(w.stop) }) }

// FrameDT is the fixed step used by Run.
func (w *World) FrameDT() float32 { return 1 / float32(w.cfg.FrameRateHz) }

// StepOnce advances the world by a single frame with the same ordering as Run.
// It is intended for deterministic replays and tests.
func (w *World) StepOnce(cmds []Command) (frame uint64, digest string) {
	frame = w.frame
	w.Step(w.FrameDT(), cmds)
	return frame, w.StateDigest()
}

// Step runs one frame: boundary commands (spawn, remove, focus), then the sim region
// around the focus (impulses, movement, raycasts, observer publish), then write-back,
// frame log and metrics. A region that cannot be opened skips the frame; the world
// state stays consistent and the error is logged.
func (w *World) Step(dt float32, cmds []Command) FrameLogEntry {
	start := time.Now()
	w.frameStats = frameCounters{}
	entry := FrameLogEntry{WorldID: w.cfg.ID, Frame: w.frame, Commands: len(cmds)}

	w.pending = w.pending[:0]
	for _, c := range cmds {
		switch c.Kind {
		case CmdSpawn:
			idx, err := w.AddStoredEntity(c.Entity)
			if err != nil {
				entry.Rejected++
			}
			reply(c, CommandResult{Index: idx, OK: err == nil, Err: err})
		case CmdRemove:
			err := w.RemoveStoredEntity(c.Index)
			if err != nil {
				entry.Rejected++
			}
			reply(c, CommandResult{Index: c.Index, OK: err == nil, Err: err})
		case CmdFocus:
			w.SetFocus(c.Pos)
			reply(c, CommandResult{OK: true})
		case CmdImpulse, CmdRaycast:
			w.pending = append(w.pending, c)
		default:
			entry.Rejected++
			reply(c, CommandResult{Err: fmt.Errorf("unknown command kind %d", c.Kind)})
		}
	}

	r, err := w.BeginSim(w.scratch, w.focus, w.cfg.SimSpan)
	if err != nil {
		w.skipped++
		entry.Error = err.Error()
		w.logger.Printf("frame %d: skipped: %v", w.frame, err)
		for _, c := range w.pending {
			entry.Rejected++
			reply(c, CommandResult{Err: err})
		}
		w.finishFrame(&entry, start)
		return entry
	}
	entry.RegionChunks = r.ChunkCount()
	entry.RegionEnts = len(r.Entities)

	for _, c := range w.pending {
		if c.Kind == CmdImpulse && !w.applyImpulse(r, c) {
			entry.Rejected++
		}
	}

	entry.Moved = integrate(r, dt)

	for _, c := range w.pending {
		if c.Kind == CmdRaycast && !w.answerRaycast(r, c) {
			entry.Rejected++
		}
	}

	entry.Spawned = w.frameStats.spawned
	entry.Removed = w.frameStats.removed
	w.stepObservers(r, entry)

	if err := w.EndSim(r); err != nil {
		entry.Error = err.Error()
		w.logger.Printf("frame %d: end sim: %v", w.frame, err)
	}
	w.finishFrame(&entry, start)
	return entry
}

// applyImpulse adds c.Vec to the entity's velocity. Entities outside the region keep
// the change in their stored record until they are next simulated.
func (w *World) applyImpulse(r *SimRegion, c Command) bool {
	if se := r.GetEntity(c.Index); se != nil && !se.Removed {
		se.Velocity = se.Velocity.Add(c.Vec)
		reply(c, CommandResult{Index: c.Index, OK: true})
		return true
	}
	if e := w.GetStoredEntity(c.Index); e != nil {
		e.Velocity = e.Velocity.Add(c.Vec)
		reply(c, CommandResult{Index: c.Index, OK: true})
		return true
	}
	reply(c, CommandResult{Index: c.Index, Err: fmt.Errorf("impulse: %w: %d", ErrInvalidEntity, c.Index)})
	return false
}

func (w *World) answerRaycast(r *SimRegion, c Command) bool {
	if c.Vec == (mgl32.Vec3{}) {
		reply(c, CommandResult{Err: fmt.Errorf("raycast: zero direction")})
		return false
	}
	from := r.FromWorld(c.Pos)
	var (
		hit RaycastHit
		ok  bool
	)
	if c.Entities {
		hit, ok = r.Raycast(from, c.Vec, w.bounds)
	} else {
		hit, ok = r.TilemapRaycast(from, c.Vec)
	}
	res := CommandResult{Hit: hit, OK: ok}
	if ok {
		res.HitPos = r.ToWorld(hit.Point)
		res.Index = hit.Entity
	}
	reply(c, res)
	return true
}

func (w *World) finishFrame(entry *FrameLogEntry, start time.Time) {
	st := w.store.Stats()
	entry.Transitions = w.frameStats.transitions
	entry.Spawned = w.frameStats.spawned
	entry.Removed = w.frameStats.removed
	entry.LiveEntities = w.LiveEntities()
	entry.Chunks = st.Chunks
	entry.Blocks = st.AllocatedBlocks
	entry.FreeBlocks = st.FreeBlocks

	if n := w.cfg.DigestEveryFrames; n > 0 && w.frame%uint64(n) == 0 {
		entry.Digest = w.StateDigest()
	}
	entry.StepMS = float64(time.Since(start).Microseconds()) / 1000.0

	if w.frameLog != nil {
		if err := w.frameLog.WriteFrame(*entry); err != nil {
			w.logger.Printf("frame %d: frame log: %v", w.frame, err)
		}
	}

	w.frame++
	w.storeMetrics(*entry, st)
	w.scratch.Reset()
	w.pending = w.pending[:0]
}
