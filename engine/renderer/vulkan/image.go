package vulkan

import (
	"github.com/cockroachdb/errors"
	"github.com/gogpu/gputypes"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

type VulkanImage struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
	Width  uint32
	Height uint32

	desc metadata.ImageDescriptor
}

func (vi *VulkanImage) Label() string {
	return vi.desc.Name
}

func (vi *VulkanImage) Descriptor() metadata.ImageDescriptor {
	return vi.desc
}

// ImageCreate allocates a device local image with a view covering every mip
// and layer of it.
func ImageCreate(context *VulkanContext, desc metadata.ImageDescriptor) (*VulkanImage, error) {
	format, err := vulkanFormat(desc.Format)
	if err != nil {
		return nil, err
	}
	outImage := &VulkanImage{
		Width:  desc.Width,
		Height: desc.Height,
		desc:   desc,
	}

	depth := uint32(1)
	if desc.Dimension == gputypes.TextureDimension3D {
		depth = desc.Layers()
	}

	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: imageType(desc.Dimension),
		Extent: vk.Extent3D{
			Width:  desc.Width,
			Height: desc.Height,
			Depth:  depth,
		},
		MipLevels:     desc.MipLevelCount(),
		ArrayLayers:   outImage.arrayLayers(),
		Format:        format,
		Tiling:        vk.ImageTilingOptimal,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         imageUsage(desc),
		Samples:       vk.SampleCount1Bit,
		SharingMode:   vk.SharingModeExclusive,
	}

	device := context.Device.LogicalDevice
	var handle vk.Image
	if err := vulkanCheck(vk.CreateImage(device, &imageCreateInfo, context.Allocator, &handle), "vkCreateImage"); err != nil {
		return nil, errors.Wrapf(err, "image %q", desc.Name)
	}
	outImage.Handle = handle

	// Query memory requirements.
	var memoryRequirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(device, handle, &memoryRequirements)
	memoryRequirements.Deref()

	memoryType := context.FindMemoryIndex(memoryRequirements.MemoryTypeBits, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if memoryType == -1 {
		outImage.ImageDestroy(context)
		return nil, errors.Newf("image %q: required memory type not found", desc.Name)
	}

	// Allocate memory
	memoryAllocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memoryRequirements.Size,
		MemoryTypeIndex: uint32(memoryType),
	}
	var memory vk.DeviceMemory
	if err := vulkanCheck(vk.AllocateMemory(device, &memoryAllocateInfo, context.Allocator, &memory), "vkAllocateMemory"); err != nil {
		outImage.ImageDestroy(context)
		return nil, errors.Wrapf(err, "image %q", desc.Name)
	}
	outImage.Memory = memory

	// Bind the memory
	if err := vulkanCheck(vk.BindImageMemory(device, handle, memory, 0), "vkBindImageMemory"); err != nil {
		outImage.ImageDestroy(context)
		return nil, errors.Wrapf(err, "image %q", desc.Name)
	}

	if err := outImage.viewCreate(context, format); err != nil {
		outImage.ImageDestroy(context)
		return nil, errors.Wrapf(err, "image %q", desc.Name)
	}
	return outImage, nil
}

func (vi *VulkanImage) viewCreate(context *VulkanContext, format vk.Format) error {
	viewCreateInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    vi.Handle,
		ViewType: imageViewType(vi.desc),
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     imageAspect(vi.desc.Format),
			BaseMipLevel:   0,
			LevelCount:     vi.desc.MipLevelCount(),
			BaseArrayLayer: 0,
			LayerCount:     vi.arrayLayers(),
		},
	}
	var view vk.ImageView
	if err := vulkanCheck(vk.CreateImageView(context.Device.LogicalDevice, &viewCreateInfo, context.Allocator, &view), "vkCreateImageView"); err != nil {
		return err
	}
	vi.View = view
	return nil
}

func (vi *VulkanImage) arrayLayers() uint32 {
	if vi.desc.Dimension == gputypes.TextureDimension3D {
		return 1
	}
	return vi.desc.Layers()
}

func (vi *VulkanImage) ImageDestroy(context *VulkanContext) {
	device := context.Device.LogicalDevice
	if vi.View != vk.NullImageView {
		vk.DestroyImageView(device, vi.View, context.Allocator)
		vi.View = vk.NullImageView
	}
	if vi.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(device, vi.Memory, context.Allocator)
		vi.Memory = vk.NullDeviceMemory
	}
	if vi.Handle != vk.NullImage {
		vk.DestroyImage(device, vi.Handle, context.Allocator)
		vi.Handle = vk.NullImage
	}
}
