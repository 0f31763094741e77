package store

import "fmt"

// AddToChunk appends idx to the chunk's head block. A full head is moved into a
// fresh overflow block (recycled from the free list when possible) and the head
// starts over empty.
func (s *Store) AddToChunk(ch *Chunk, idx EntityIndex) error {
	if ch.Head.full() {
		id, b, err := s.allocBlock()
		if err != nil {
			return fmt.Errorf("add entity %d to chunk %v: %w", idx, ch.Coord, err)
		}
		*b = ch.Head
		ch.Head = EntityBlock{Next: id}
		ch.overflow++
	}
	ch.Head.Indices[ch.Head.Count] = idx
	ch.Head.Count++
	return nil
}

// RemoveFromChunk deletes idx from the chunk's block chain. The hole is filled with
// the head's last entry so only the head is ever partially full; an emptied head
// takes over its successor, and the successor goes back on the free list.
func (s *Store) RemoveFromChunk(ch *Chunk, idx EntityIndex) error {
	head := &ch.Head
	for b := head; b != nil; b = s.block(b.Next) {
		for i := 0; i < b.Count; i++ {
			if b.Indices[i] != idx {
				continue
			}
			head.Count--
			b.Indices[i] = head.Indices[head.Count]
			head.Indices[head.Count] = 0

			if head.Count == 0 && head.Next != 0 {
				nextID := head.Next
				nb := s.block(nextID)
				*head = *nb
				s.freeBlockID(nextID, nb)
				ch.overflow--
			}
			return nil
		}
	}
	return fmt.Errorf("remove entity %d from chunk %v: %w", idx, ch.Coord, ErrEntityNotInChunk)
}

// ForEachEntity visits every index in the chunk's chain, head first.
func (s *Store) ForEachEntity(ch *Chunk, fn func(idx EntityIndex) bool) {
	for b := &ch.Head; b != nil; b = s.block(b.Next) {
		for i := 0; i < b.Count; i++ {
			if !fn(b.Indices[i]) {
				return
			}
		}
	}
}

// Contains reports how many times idx appears in the chunk's chain.
func (s *Store) Contains(ch *Chunk, idx EntityIndex) int {
	n := 0
	s.ForEachEntity(ch, func(v EntityIndex) bool {
		if v == idx {
			n++
		}
		return true
	})
	return n
}

// BlockCount returns the number of blocks in the chunk's chain, including the head.
func (s *Store) BlockCount(ch *Chunk) int {
	n := 0
	for b := &ch.Head; b != nil; b = s.block(b.Next) {
		n++
	}
	return n
}

func (c *Chunk) EntityCount() int {
	// Overflow blocks are always full.
	return c.Head.Count + c.overflow*EntityBlockCap
}

func (s *Store) block(id BlockID) *EntityBlock {
	if id == 0 {
		return nil
	}
	return s.blocks.at(int32(id))
}

func (s *Store) allocBlock() (BlockID, *EntityBlock, error) {
	if s.freeBlock != 0 {
		id := s.freeBlock
		b := s.block(id)
		s.freeBlock = b.Next
		s.freeBlocks--
		*b = EntityBlock{}
		return id, b, nil
	}
	id, b, ok := s.blocks.alloc()
	if !ok {
		return 0, nil, ErrBlockCapacity
	}
	return BlockID(id), b, nil
}

func (s *Store) freeBlockID(id BlockID, b *EntityBlock) {
	*b = EntityBlock{Next: s.freeBlock}
	s.freeBlock = id
	s.freeBlocks++
}

// FreeBlocks returns the length of the block free list.
func (s *Store) FreeBlocks() int { return s.freeBlocks }

// AllocatedBlocks returns every overflow block ever allocated, attached or free.
func (s *Store) AllocatedBlocks() int { return s.blocks.used() }
