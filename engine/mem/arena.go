// Package mem provides the per-frame scratch memory used by the frame graph.
//
// Nothing in here is global: an Arena is owned by whoever constructs it and
// handed down the call graph explicitly. Everything allocated from an arena
// is valid until the owner calls Reset.
package mem

const minSlabSize = 256

// Arena is a typed bump allocator. Slices handed out by Alloc never alias
// each other until Reset.
type Arena[E any] struct {
	slabs   [][]E
	current int
	offset  int
}

func NewArena[E any]() *Arena[E] {
	return &Arena[E]{}
}

// Alloc returns a zeroed slice of length n whose capacity is exactly n, so an
// append on it never writes into memory owned by another allocation.
func (a *Arena[E]) Alloc(n int) []E {
	if n == 0 {
		return nil
	}
	for a.current < len(a.slabs) {
		slab := a.slabs[a.current]
		if len(slab)-a.offset >= n {
			s := slab[a.offset : a.offset+n : a.offset+n]
			a.offset += n
			return s
		}
		// OPT skip full slabs instead of walking them
		a.current++
		a.offset = 0
	}

	size := minSlabSize
	if len(a.slabs) > 0 {
		size = 2 * len(a.slabs[len(a.slabs)-1])
	}
	for size < n {
		size *= 2
	}
	a.slabs = append(a.slabs, make([]E, size))
	a.current = len(a.slabs) - 1
	a.offset = n
	return a.slabs[a.current][:n:n]
}

// Append works like the builtin append but grows into arena memory.
func (a *Arena[E]) Append(s []E, values ...E) []E {
	if len(s)+len(values) > cap(s) {
		s = a.grow(s, len(values))
	}
	return append(s, values...)
}

func (a *Arena[E]) grow(s []E, n int) []E {
	const growThreshold = 256
	newLen := len(s) + n
	newCap := cap(s)
	if newCap == 0 {
		newCap = n
	}
	for newLen > newCap {
		if newCap < growThreshold {
			newCap *= 2
		} else {
			newCap += newCap / 4
		}
	}
	s2 := a.Alloc(newCap)[:len(s)]
	copy(s2, s)
	return s2
}

// Reset makes all memory available again. Slices obtained before the call
// must not be used afterwards.
func (a *Arena[E]) Reset() {
	for _, slab := range a.slabs {
		// Clear memory so it doesn't keep Go pointers alive
		clear(slab)
	}
	a.current = 0
	a.offset = 0
}

// Cap is the total number of elements the arena can hand out before it has
// to allocate another slab.
func (a *Arena[E]) Cap() int {
	total := 0
	for _, slab := range a.slabs {
		total += len(slab)
	}
	return total
}

// FrameArena bundles the arenas the graph and its pools use to build the
// per-pass create/free schedules.
type FrameArena struct {
	Indices *Arena[int]
	Lists   *Arena[[]int]
}

func NewFrameArena() *FrameArena {
	return &FrameArena{
		Indices: NewArena[int](),
		Lists:   NewArena[[]int](),
	}
}

// Schedule returns n empty index lists.
func (fa *FrameArena) Schedule(n int) [][]int {
	return fa.Lists.Alloc(n)
}

// Push appends an index to one list of a schedule.
func (fa *FrameArena) Push(schedule [][]int, at, index int) {
	schedule[at] = fa.Indices.Append(schedule[at], index)
}

func (fa *FrameArena) Reset() {
	fa.Indices.Reset()
	fa.Lists.Reset()
}
