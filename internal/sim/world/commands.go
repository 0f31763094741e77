package world

import (
	"github.com/go-gl/mathgl/mgl32"

	"voxelstore.ai/internal/sim/world/logic/coords"
	"voxelstore.ai/internal/sim/world/terrain/store"
)

type CommandKind uint8

const (
	CmdSpawn CommandKind = iota + 1
	CmdRemove
	CmdImpulse
	CmdFocus
	CmdRaycast
)

func (k CommandKind) String() string {
	switch k {
	case CmdSpawn:
		return "SPAWN"
	case CmdRemove:
		return "REMOVE"
	case CmdImpulse:
		return "IMPULSE"
	case CmdFocus:
		return "FOCUS"
	case CmdRaycast:
		return "RAYCAST"
	default:
		return "UNKNOWN"
	}
}

// Command is one input event. The frame loop drains queued commands at the start
// of a frame, in submission order, on its own goroutine.
type Command struct {
	Kind CommandKind

	Entity StoredEntity      // CmdSpawn
	Index  store.EntityIndex // CmdRemove, CmdImpulse
	Vec    mgl32.Vec3        // CmdImpulse: velocity delta; CmdRaycast: direction
	Pos    coords.WorldPosition

	// CmdRaycast: also test entity boxes, not just terrain.
	Entities bool

	// Reply receives at most one result; it should be buffered.
	Reply chan<- CommandResult
}

type CommandResult struct {
	Index store.EntityIndex
	Hit   RaycastHit
	// HitPos is the hit point in world coordinates.
	HitPos coords.WorldPosition
	OK     bool
	Err    error
}

func Spawn(e StoredEntity) Command { return Command{Kind: CmdSpawn, Entity: e} }

func Remove(idx store.EntityIndex) Command { return Command{Kind: CmdRemove, Index: idx} }

func Impulse(idx store.EntityIndex, dv mgl32.Vec3) Command {
	return Command{Kind: CmdImpulse, Index: idx, Vec: dv}
}

func Focus(p coords.WorldPosition) Command { return Command{Kind: CmdFocus, Pos: p} }

func Ray(from coords.WorldPosition, dir mgl32.Vec3, entities bool, reply chan<- CommandResult) Command {
	return Command{Kind: CmdRaycast, Pos: from, Vec: dir, Entities: entities, Reply: reply}
}

// Submit queues c for the next frame. It never blocks; false means the queue is full.
func (w *World) Submit(c Command) bool {
	select {
	case w.inbox <- c:
		return true
	default:
		return false
	}
}

func reply(c Command, res CommandResult) {
	if c.Reply == nil {
		return
	}
	select {
	case c.Reply <- res:
	default:
	}
}
