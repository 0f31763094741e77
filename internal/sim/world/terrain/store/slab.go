package store

const slabPageShift = 8
const slabPageSize = 1 << slabPageShift

// slab is a growable arena addressed by dense int32 ids. Pages are never moved,
// so pointers returned by at stay valid for the life of the slab. Id 0 is reserved.
type slab[T any] struct {
	pages [][]T
	n     int32
	limit int32
}

func newSlab[T any](limit int) slab[T] {
	s := slab[T]{limit: int32(limit) + 1}
	s.alloc() // reserve id 0
	return s
}

func (s *slab[T]) alloc() (int32, *T, bool) {
	if s.limit > 0 && s.n >= s.limit {
		return 0, nil, false
	}
	id := s.n
	page := int(id >> slabPageShift)
	if page == len(s.pages) {
		s.pages = append(s.pages, make([]T, slabPageSize))
	}
	s.n++
	v := &s.pages[page][id&(slabPageSize-1)]
	var zero T
	*v = zero
	return id, v, true
}

func (s *slab[T]) at(id int32) *T {
	if id <= 0 || id >= s.n {
		return nil
	}
	return &s.pages[id>>slabPageShift][id&(slabPageSize-1)]
}

// used returns the number of allocated ids, excluding the reserved one.
func (s *slab[T]) used() int { return int(s.n) - 1 }
