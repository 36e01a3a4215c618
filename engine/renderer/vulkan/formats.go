package vulkan

import (
	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

func vulkanFormat(format gputypes.TextureFormat) (vk.Format, error) {
	switch format {
	case gputypes.TextureFormatRGBA8Unorm:
		return vk.FormatR8g8b8a8Unorm, nil
	case gputypes.TextureFormatRGBA8UnormSrgb:
		return vk.FormatR8g8b8a8Srgb, nil
	case gputypes.TextureFormatBGRA8Unorm:
		return vk.FormatB8g8r8a8Unorm, nil
	case gputypes.TextureFormatBGRA8UnormSrgb:
		return vk.FormatB8g8r8a8Srgb, nil
	case gputypes.TextureFormatR8Unorm:
		return vk.FormatR8Unorm, nil
	case gputypes.TextureFormatR32Float:
		return vk.FormatR32Sfloat, nil
	case gputypes.TextureFormatRG32Float:
		return vk.FormatR32g32Sfloat, nil
	case gputypes.TextureFormatRGBA32Float:
		return vk.FormatR32g32b32a32Sfloat, nil
	case gputypes.TextureFormatDepth24PlusStencil8:
		return vk.FormatD24UnormS8Uint, nil
	}
	return vk.FormatUndefined, errors.Wrapf(core.ErrUnsupportedFormat, "texture format %v has no Vulkan equivalent", format)
}

func isDepthFormat(format gputypes.TextureFormat) bool {
	return format == gputypes.TextureFormatDepth24PlusStencil8
}

func imageAspect(format gputypes.TextureFormat) vk.ImageAspectFlags {
	if isDepthFormat(format) {
		return vk.ImageAspectFlags(vk.ImageAspectDepthBit | vk.ImageAspectStencilBit)
	}
	return vk.ImageAspectFlags(vk.ImageAspectColorBit)
}

func imageUsage(desc metadata.ImageDescriptor) vk.ImageUsageFlags {
	var usage vk.ImageUsageFlagBits
	if desc.Usage&gputypes.TextureUsageCopySrc != 0 {
		usage |= vk.ImageUsageTransferSrcBit
	}
	if desc.Usage&gputypes.TextureUsageCopyDst != 0 {
		usage |= vk.ImageUsageTransferDstBit
	}
	if desc.Usage&gputypes.TextureUsageTextureBinding != 0 {
		usage |= vk.ImageUsageSampledBit
	}
	if desc.Usage&gputypes.TextureUsageStorageBinding != 0 || desc.EnableRandomWrite {
		usage |= vk.ImageUsageStorageBit
	}
	if desc.Usage&gputypes.TextureUsageRenderAttachment != 0 {
		if isDepthFormat(desc.Format) {
			usage |= vk.ImageUsageDepthStencilAttachmentBit
		} else {
			usage |= vk.ImageUsageColorAttachmentBit
		}
	}
	// Mips are generated by blitting each level into the next.
	if desc.AutoGenerateMips {
		usage |= vk.ImageUsageTransferSrcBit | vk.ImageUsageTransferDstBit
	}
	return vk.ImageUsageFlags(usage)
}

func imageType(dimension gputypes.TextureDimension) vk.ImageType {
	switch dimension {
	case gputypes.TextureDimension1D:
		return vk.ImageType1d
	case gputypes.TextureDimension3D:
		return vk.ImageType3d
	default:
		return vk.ImageType2d
	}
}

func imageViewType(desc metadata.ImageDescriptor) vk.ImageViewType {
	switch desc.Dimension {
	case gputypes.TextureDimension1D:
		if desc.Layers() > 1 {
			return vk.ImageViewType1dArray
		}
		return vk.ImageViewType1d
	case gputypes.TextureDimension3D:
		return vk.ImageViewType3d
	default:
		if desc.Layers() > 1 {
			return vk.ImageViewType2dArray
		}
		return vk.ImageViewType2d
	}
}

func bufferUsage(desc metadata.BufferDescriptor) vk.BufferUsageFlags {
	var usage vk.BufferUsageFlagBits
	if desc.Usage&gputypes.BufferUsageCopySrc != 0 {
		usage |= vk.BufferUsageTransferSrcBit
	}
	if desc.Usage&gputypes.BufferUsageCopyDst != 0 {
		usage |= vk.BufferUsageTransferDstBit
	}
	if desc.Usage&gputypes.BufferUsageIndex != 0 {
		usage |= vk.BufferUsageIndexBufferBit
	}
	if desc.Usage&gputypes.BufferUsageVertex != 0 {
		usage |= vk.BufferUsageVertexBufferBit
	}
	if desc.Usage&gputypes.BufferUsageUniform != 0 {
		usage |= vk.BufferUsageUniformBufferBit
	}
	if desc.Usage&gputypes.BufferUsageStorage != 0 {
		usage |= vk.BufferUsageStorageBufferBit
	}
	if desc.Usage&gputypes.BufferUsageIndirect != 0 {
		usage |= vk.BufferUsageIndirectBufferBit
	}
	return vk.BufferUsageFlags(usage)
}

// bufferMemoryFlags keeps mappable buffers in host visible memory and the
// rest on the device.
func bufferMemoryFlags(desc metadata.BufferDescriptor) vk.MemoryPropertyFlags {
	if desc.Usage&(gputypes.BufferUsageMapRead|gputypes.BufferUsageMapWrite) != 0 {
		return vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	}
	return vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
}
