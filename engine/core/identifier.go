package core

import (
	"fmt"

	"golang.org/x/exp/constraints"
)

// IdentifierPool hands out dense identifiers starting at zero. Released
// identifiers are handed out again before the range grows, lowest first.
type IdentifierPool[T constraints.Integer] struct {
	next  T
	free  []T
	inUse []bool
}

func NewIdentifierPool[T constraints.Integer]() *IdentifierPool[T] {
	return &IdentifierPool[T]{}
}

// Acquire returns a free identifier. fresh is true when the identifier has
// never been handed out before, i.e. it equals the previous Len().
func (p *IdentifierPool[T]) Acquire() (id T, fresh bool) {
	if n := len(p.free); n > 0 {
		// Existing free spot. Take the lowest one.
		lowest := 0
		for i := 1; i < n; i++ {
			if p.free[i] < p.free[lowest] {
				lowest = i
			}
		}
		id = p.free[lowest]
		p.free[lowest] = p.free[n-1]
		p.free = p.free[:n-1]
		p.inUse[id] = true
		return id, false
	}

	// If here, no existing free slots. Need a new id.
	id = p.next
	p.next++
	p.inUse = append(p.inUse, true)
	return id, true
}

func (p *IdentifierPool[T]) Release(id T) error {
	if id < 0 || id >= p.next {
		return fmt.Errorf("identifier %d out of range (max=%d). Nothing was done", id, p.next)
	}
	if !p.inUse[id] {
		return fmt.Errorf("identifier %d released twice. Nothing was done", id)
	}
	p.inUse[id] = false
	p.free = append(p.free, id)
	return nil
}

func (p *IdentifierPool[T]) InUse(id T) bool {
	return id >= 0 && id < p.next && p.inUse[id]
}

// Len is the number of identifiers ever handed out, free or not.
func (p *IdentifierPool[T]) Len() int {
	return int(p.next)
}

// FreeCount is the number of identifiers waiting to be reused.
func (p *IdentifierPool[T]) FreeCount() int {
	return len(p.free)
}
