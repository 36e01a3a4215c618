package metadata

import (
	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"

	"github.com/spaghettifunk/framegraph/engine/core"
)

/**
 * @brief Describes the shape of a buffer resource.
 */
type BufferDescriptor struct {
	/** @brief Debug name. Not part of the structural comparison. */
	Name string
	/** @brief The number of elements. */
	Count uint32
	/** @brief The size of one element in bytes. */
	Stride uint32
	/** @brief How the buffer is going to be bound. */
	Usage gputypes.BufferUsage
}

// Size is the total size of the buffer in bytes.
func (d BufferDescriptor) Size() uint64 {
	return uint64(d.Count) * uint64(d.Stride)
}

// IsReadback reports whether the CPU maps the buffer to read results back,
// which keeps it alive for extra frames after its last use.
func (d BufferDescriptor) IsReadback() bool {
	return d.Usage&gputypes.BufferUsageMapRead != 0
}

// IsCopyExact reports whether the buffer takes part in copies, in which case
// only a buffer of exactly the same element count can stand in for it.
func (d BufferDescriptor) IsCopyExact() bool {
	return d.Usage&(gputypes.BufferUsageCopySrc|gputypes.BufferUsageCopyDst) != 0
}

func (d BufferDescriptor) Validate() error {
	if d.Count == 0 || d.Stride == 0 {
		return errors.Wrapf(core.ErrInvalidDescriptor, "buffer %q has count %d and stride %d", d.Name, d.Count, d.Stride)
	}
	return nil
}

// Buffer is a physical buffer owned by a Device.
type Buffer interface {
	Label() string
	Descriptor() BufferDescriptor
}
