package world

import (
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"

	"voxelstore.ai/internal/sim/world/logic/coords"
	genpkg "voxelstore.ai/internal/sim/world/terrain/gen"
	"voxelstore.ai/internal/sim/world/terrain/store"
)

// World is the explicit context every store operation goes through. Everything
// except the channels and metrics is owned by the goroutine running the frame loop.
type World struct {
	cfg   WorldConfig
	space coords.Space
	store *store.Store

	entities    []StoredEntity
	freeIndices []store.EntityIndex

	active  *SimRegion
	scratch *Scratch
	bounds  MeshBoundsSource

	focus   coords.WorldPosition
	frame   uint64
	skipped uint64

	frameStats frameCounters
	pending    []Command

	logger   *log.Logger
	frameLog FrameLogger

	inbox             chan Command
	observerJoin      chan ObserverJoinRequest
	observerSubscribe chan ObserverSubscribeRequest
	observerLeave     chan string
	observers         map[string]*observerClient

	stop     chan struct{}
	stopOnce sync.Once

	metrics atomic.Value
}

type frameCounters struct {
	spawned     int
	removed     int
	transitions int
}

func New(cfg WorldConfig) (*World, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("world config: %w", err)
	}

	scfg := store.Config{
		TableSize:  cfg.TableSize,
		MaxChunks:  cfg.MaxChunks,
		MaxBlocks:  cfg.MaxBlocks,
		ChunkTiles: cfg.ChunkTiles,
	}
	if cfg.Gen != nil {
		scfg.Gen = genpkg.New(*cfg.Gen)
	}

	entities := make([]StoredEntity, 1, cfg.MaxEntities+1)

	w := &World{
		cfg:               cfg,
		space:             coords.NewSpace(cfg.ChunkSide, cfg.SafeMargin),
		store:             store.New(scfg),
		entities:          entities,
		scratch:           NewScratch(),
		logger:            log.New(io.Discard, "", 0),
		inbox:             make(chan Command, cfg.InboxSize),
		observerJoin:      make(chan ObserverJoinRequest, 16),
		observerSubscribe: make(chan ObserverSubscribeRequest, 16),
		observerLeave:     make(chan string, 16),
		observers:         map[string]*observerClient{},
		stop:              make(chan struct{}),
	}
	w.metrics.Store(WorldMetrics{})
	return w, nil
}

func (w *World) Config() WorldConfig { return w.cfg }

func (w *World) ID() string { return w.cfg.ID }

func (w *World) Space() coords.Space { return w.space }

// Store exposes the chunk store for read-only inspection (tests, tools).
func (w *World) Store() *store.Store { return w.store }

func (w *World) SetLogger(l *log.Logger) {
	if l == nil {
		l = log.New(io.Discard, "", 0)
	}
	w.logger = l
}

func (w *World) SetFrameLogger(l FrameLogger) { w.frameLog = l }

func (w *World) SetMeshBounds(src MeshBoundsSource) { w.bounds = src }

func (w *World) SetFocus(p coords.WorldPosition) { w.focus = w.space.Canonicalize(p) }

func (w *World) Focus() coords.WorldPosition { return w.focus }

func (w *World) CurrentFrame() uint64 { return w.frame }

// GetChunk looks up a chunk without creating it.
func (w *World) GetChunk(c coords.ChunkCoord) *store.Chunk {
	return w.store.GetChunk(c, false)
}

// EnsureChunk returns the chunk at c, creating (and generating) it when missing.
func (w *World) EnsureChunk(c coords.ChunkCoord) (*store.Chunk, error) {
	return w.store.GetChunkE(c, true)
}

func (w *World) RecanonicalizePosition(p coords.WorldPosition) coords.WorldPosition {
	return w.space.Canonicalize(p)
}

// WorldPosDiff returns a - b as one relative vector.
func (w *World) WorldPosDiff(a, b coords.WorldPosition) mgl32.Vec3 {
	return w.space.Diff(a, b)
}

// GetRelativePos returns p relative to origin (for rendering from a camera position).
func (w *World) GetRelativePos(origin, p coords.WorldPosition) mgl32.Vec3 {
	return w.space.RelativeTo(origin, p)
}

// CheckInvariants verifies the block chains against the dense entity array.
// It must not be called while a sim region is active.
func (w *World) CheckInvariants() error {
	if w.active != nil {
		return ErrRegionActive
	}
	seen := make([]bool, len(w.entities))
	total := 0
	var firstErr error
	w.store.ForEachChunk(func(ch *store.Chunk) bool {
		if ch.Simulated {
			firstErr = &SimError{Op: "check", Chunk: ch.Coord, Err: ErrChunkSimulated}
			return false
		}
		w.store.ForEachEntity(ch, func(idx store.EntityIndex) bool {
			total++
			if int(idx) >= len(w.entities) || idx == 0 {
				firstErr = &SimError{Op: "check", Chunk: ch.Coord, Err: ErrInvalidEntity}
				return false
			}
			if seen[idx] {
				firstErr = &SimError{Op: "check", Chunk: ch.Coord, Err: ErrDuplicateEntity}
				return false
			}
			seen[idx] = true
			if w.entities[idx].Pos.Chunk != ch.Coord {
				firstErr = &SimError{Op: "check", Chunk: ch.Coord, Err: fmt.Errorf("entity %d records chunk %v", idx, w.entities[idx].Pos.Chunk)}
				return false
			}
			if !w.space.Canonical(w.entities[idx].Pos) {
				firstErr = &SimError{Op: "check", Chunk: ch.Coord, Err: fmt.Errorf("entity %d offset %v not canonical", idx, w.entities[idx].Pos.Offset)}
				return false
			}
			return true
		})
		return firstErr == nil
	})
	if firstErr != nil {
		return firstErr
	}
	if total+len(w.freeIndices) != len(w.entities)-1 {
		return fmt.Errorf("entity count mismatch: chunks=%d free=%d low=%d", total, len(w.freeIndices), len(w.entities))
	}
	return nil
}
