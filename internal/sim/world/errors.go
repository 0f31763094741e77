package world

import (
	"errors"
	"fmt"

	"voxelstore.ai/internal/sim/world/logic/coords"
)

var (
	ErrChunkSimulated  = errors.New("chunk already simulated")
	ErrRegionActive    = errors.New("another sim region is active")
	ErrRegionClosed    = errors.New("sim region already ended")
	ErrInvalidEntity   = errors.New("invalid entity index")
	ErrEntityCapacity  = errors.New("entity capacity exhausted")
	ErrDuplicateEntity = errors.New("entity listed in more than one chunk")
)

// SimError ties a failure to the chunk it was detected on.
type SimError struct {
	Op    string
	Chunk coords.ChunkCoord
	Err   error
}

func (e *SimError) Error() string {
	return fmt.Sprintf("%s: chunk %v: %v", e.Op, e.Chunk, e.Err)
}

func (e *SimError) Unwrap() error { return e.Err }
