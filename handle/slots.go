package handle

// slot holds one table entry. generation changes every time the slot is
// released, so handles issued for an earlier occupant no longer match.
type slot[T any] struct {
	value      T
	generation uint32
	live       bool
}

// slots is a generation-checked table. It is not safe for concurrent use;
// Table guards it.
type slots[T any] struct {
	entries []slot[T]
	free    []uint32
	live    int
}

// encode packs a slot index and generation into a non-zero handle value.
func encode(index, generation uint32) uint64 {
	return uint64(generation)<<32 | uint64(index+1)
}

// decode reverses encode. ok is false for the zero handle.
func decode(h uint64) (index, generation uint32, ok bool) {
	low := uint32(h)
	if low == 0 {
		return 0, 0, false
	}
	return low - 1, uint32(h >> 32), true
}

// insert stores v and returns its handle value.
func (s *slots[T]) insert(v T) uint64 {
	var index uint32
	if n := len(s.free); n > 0 {
		index = s.free[n-1]
		s.free = s.free[:n-1]
	} else {
		s.entries = append(s.entries, slot[T]{})
		index = uint32(len(s.entries) - 1)
	}

	e := &s.entries[index]
	e.value = v
	e.live = true
	s.live++
	return encode(index, e.generation)
}

// get returns the value for h if h names a live entry of the current
// generation.
func (s *slots[T]) get(h uint64) (T, bool) {
	var zero T
	index, generation, ok := decode(h)
	if !ok || int(index) >= len(s.entries) {
		return zero, false
	}
	e := &s.entries[index]
	if !e.live || e.generation != generation {
		return zero, false
	}
	return e.value, true
}

// remove releases h and returns the value it held.
func (s *slots[T]) remove(h uint64) (T, bool) {
	v, ok := s.get(h)
	if !ok {
		return v, false
	}

	index, _, _ := decode(h)
	e := &s.entries[index]
	var zero T
	e.value = zero
	e.live = false
	e.generation++
	s.free = append(s.free, index)
	s.live--
	return v, true
}

// clear releases every live entry and returns the values it held. Slot
// generations advance as with remove.
func (s *slots[T]) clear() []T {
	var out []T
	s.each(func(h uint64, v T) {
		s.remove(h)
		out = append(out, v)
	})
	return out
}

// each calls fn for every live entry.
func (s *slots[T]) each(fn func(h uint64, v T)) {
	for i := range s.entries {
		e := &s.entries[i]
		if e.live {
			fn(encode(uint32(i), e.generation), e.value)
		}
	}
}
