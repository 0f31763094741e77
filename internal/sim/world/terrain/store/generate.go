package store

import genpkg "voxelstore.ai/internal/sim/world/terrain/gen"

func (s *Store) generate(ch *Chunk) {
	if s.cfg.Gen == nil {
		return
	}
	d := ch.dim
	ox := int(ch.Coord.X) * d
	oy := int(ch.Coord.Y) * d
	oz := int(ch.Coord.Z) * d
	s.cfg.Gen.Fill(ox, oy, oz, d, func(x, y, z int, t genpkg.Tile) {
		ch.SetTile(x, y, z, t)
	})
}
