package metadata

import (
	"math/bits"

	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"

	"github.com/spaghettifunk/framegraph/engine/core"
)

/**
 * @brief Describes the shape of an image resource. Two descriptors are
 * compared structurally when the pool looks for an idle image to reuse.
 */
type ImageDescriptor struct {
	/** @brief Debug name. Not part of the structural comparison. */
	Name string
	/** @brief The image Width in texels. */
	Width uint32
	/** @brief The image Height in texels. */
	Height uint32
	/** @brief The texel format. */
	Format gputypes.TextureFormat
	/** @brief 1D, 2D or 3D. */
	Dimension gputypes.TextureDimension
	/** @brief Volume depth for 3D images, array size otherwise. Zero means one. */
	DepthOrArrayLayers uint32
	/** @brief How the image is going to be bound. */
	Usage gputypes.TextureUsage
	/** @brief Allocate a full mip chain. */
	HasMips bool
	/** @brief Regenerate the mip chain after every pass that writes the image. */
	AutoGenerateMips bool
	/** @brief The image is written from compute (storage access). */
	EnableRandomWrite bool
	/** @brief The size follows the screen; a bigger pooled image can serve it. */
	IsScreenTexture bool
}

// Layers returns DepthOrArrayLayers with the zero value treated as one.
func (d ImageDescriptor) Layers() uint32 {
	if d.DepthOrArrayLayers == 0 {
		return 1
	}
	return d.DepthOrArrayLayers
}

// MipLevelCount is the number of mips the image is created with.
func (d ImageDescriptor) MipLevelCount() uint32 {
	if !d.HasMips {
		return 1
	}
	largest := max(d.Width, d.Height)
	if d.Dimension == gputypes.TextureDimension3D {
		largest = max(largest, d.Layers())
	}
	if largest == 0 {
		return 1
	}
	return uint32(bits.Len32(largest))
}

func (d ImageDescriptor) Validate() error {
	switch {
	case d.Width == 0 || d.Height == 0:
		return errors.Wrapf(core.ErrInvalidDescriptor, "image %q has zero extent %dx%d", d.Name, d.Width, d.Height)
	case d.Format == gputypes.TextureFormatUndefined:
		return errors.Wrapf(core.ErrInvalidDescriptor, "image %q has an undefined format", d.Name)
	case d.AutoGenerateMips && !d.HasMips:
		return errors.Wrapf(core.ErrInvalidDescriptor, "image %q generates mips but has none", d.Name)
	}
	return nil
}

// Image is a physical image owned by a Device.
type Image interface {
	Label() string
	Descriptor() ImageDescriptor
}
