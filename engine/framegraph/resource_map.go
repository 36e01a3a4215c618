package framegraph

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/framegraph/engine/core"
)

// slotKey gives every payload type its own map key without reflection: two
// instantiations compare equal only when their type arguments are identical.
type slotKey[T any] struct{}

type resourceEntry struct {
	value      any
	frame      uint64
	persistent bool
}

// ResourceMap lets a pass publish a small typed value for later passes,
// one slot per type. Values are stamped with the frame they were set in and
// reading a stale non persistent value is an error.
type ResourceMap struct {
	entries map[any]resourceEntry
	frame   uint64
}

func NewResourceMap() *ResourceMap {
	return &ResourceMap{entries: make(map[any]resourceEntry)}
}

// Frame is the frame new values are stamped with.
func (m *ResourceMap) Frame() uint64 {
	return m.frame
}

func (m *ResourceMap) setFrame(frame uint64) {
	m.frame = frame
}

// Len counts the slots that hold a value, stale or not.
func (m *ResourceMap) Len() int {
	return len(m.entries)
}

// Clear drops every value.
func (m *ResourceMap) Clear() {
	clear(m.entries)
}

// SetResource stores v in the slot of its type, replacing what was there.
func SetResource[T any](m *ResourceMap, v T, persistent bool) {
	m.entries[slotKey[T]{}] = resourceEntry{value: v, frame: m.frame, persistent: persistent}
}

// GetResource returns this frame's value of type T and fails when nobody
// set one, or when it was set in an earlier frame and is not persistent.
func GetResource[T any](m *ResourceMap) T {
	v, err := lookup[T](m)
	core.Assertf(err == nil, "%v", err)
	return v
}

// TryGetResource is GetResource for inputs that may legitimately be absent.
func TryGetResource[T any](m *ResourceMap) (T, bool) {
	v, err := lookup[T](m)
	return v, err == nil
}

func HasResource[T any](m *ResourceMap) bool {
	_, err := lookup[T](m)
	return err == nil
}

func ClearResource[T any](m *ResourceMap) {
	delete(m.entries, slotKey[T]{})
}

func lookup[T any](m *ResourceMap) (T, error) {
	var zero T
	e, ok := m.entries[slotKey[T]{}]
	if !ok {
		return zero, errors.Newf("no %T was set", zero)
	}
	if !e.persistent && e.frame != m.frame {
		return zero, errors.Newf("%T was set in frame %d, current frame is %d", zero, e.frame, m.frame)
	}
	return e.value.(T), nil
}
