package framegraph

import (
	"fmt"

	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

// ResourceHandle names a slot in a ResourcePool. It never holds the resource
// itself: the same handle value is recycled across frames and may resolve to
// a different physical resource each time. The zero value is invalid.
type ResourceHandle[T any] struct {
	// index+1, so that zero means invalid
	id         uint32
	persistent bool
	imported   bool
}

type ImageHandle = ResourceHandle[metadata.Image]
type BufferHandle = ResourceHandle[metadata.Buffer]

func newHandle[T any](index int, persistent, imported bool) ResourceHandle[T] {
	return ResourceHandle[T]{id: uint32(index) + 1, persistent: persistent, imported: imported}
}

func (h ResourceHandle[T]) IsValid() bool {
	return h.id != 0
}

// Index is the handle's position in the pool bookkeeping arrays, or -1.
func (h ResourceHandle[T]) Index() int {
	return int(h.id) - 1
}

func (h ResourceHandle[T]) IsPersistent() bool {
	return h.persistent
}

func (h ResourceHandle[T]) IsImported() bool {
	return h.imported
}

func (h ResourceHandle[T]) String() string {
	if !h.IsValid() {
		return "handle(invalid)"
	}
	switch {
	case h.imported:
		return fmt.Sprintf("handle(%d, imported)", h.Index())
	case h.persistent:
		return fmt.Sprintf("handle(%d, persistent)", h.Index())
	}
	return fmt.Sprintf("handle(%d)", h.Index())
}
