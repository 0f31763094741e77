package main

import (
	"os"
	"strconv"
	"strings"

	"voxelstore.ai/internal/sim/tuning"
	"voxelstore.ai/internal/sim/world"
	"voxelstore.ai/internal/sim/world/logic/coords"
	genpkg "voxelstore.ai/internal/sim/world/terrain/gen"
)

// worldConfig maps the tuning file and command-line overrides onto a world config.
func worldConfig(worldID string, seed int64, maxFrames uint64, tune tuning.Tuning) world.WorldConfig {
	cfg := world.WorldConfig{
		ID:                worldID,
		FrameRateHz:       tune.FrameRateHz,
		ChunkSide:         tune.ChunkSide,
		ChunkTiles:        tune.ChunkTiles,
		TableSize:         tune.ChunkTableSize,
		MaxChunks:         tune.MaxChunks,
		MaxEntities:       tune.MaxEntities,
		MaxBlocks:         tune.MaxEntityBlocks,
		SafeMargin:        tune.CoordSafeMargin,
		DigestEveryFrames: tune.DigestEveryFrames,
		InboxSize:         tune.InboxSize,
		MaxFrames:         maxFrames,
	}
	if len(tune.SimSpan) == 3 {
		cfg.SimSpan = coords.ChunkCoord{X: tune.SimSpan[0], Y: tune.SimSpan[1], Z: tune.SimSpan[2]}
	}
	if g := tune.WorldGen; g.Enabled {
		cfg.Gen = &genpkg.Params{
			Seed:        seed + g.SeedOffset,
			Frequency:   g.Frequency,
			Octaves:     g.Octaves,
			Persistence: g.Persistence,
			WaterLevel:  g.WaterLevel,
			CliffLevel:  g.CliffLevel,
			CliffHeight: g.CliffHeight,
		}
	}
	return cfg
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
