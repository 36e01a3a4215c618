package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

type VulkanBuffer struct {
	Handle vk.Buffer
	Memory vk.DeviceMemory
	Size   vk.DeviceSize

	desc metadata.BufferDescriptor
}

func (vb *VulkanBuffer) Label() string {
	return vb.desc.Name
}

func (vb *VulkanBuffer) Descriptor() metadata.BufferDescriptor {
	return vb.desc
}

func BufferCreate(context *VulkanContext, desc metadata.BufferDescriptor) (*VulkanBuffer, error) {
	outBuffer := &VulkanBuffer{
		Size: vk.DeviceSize(desc.Size()),
		desc: desc,
	}

	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        outBuffer.Size,
		Usage:       bufferUsage(desc),
		SharingMode: vk.SharingModeExclusive,
	}

	device := context.Device.LogicalDevice
	var handle vk.Buffer
	if err := vulkanCheck(vk.CreateBuffer(device, &bufferInfo, context.Allocator, &handle), "vkCreateBuffer"); err != nil {
		return nil, errors.Wrapf(err, "buffer %q", desc.Name)
	}
	outBuffer.Handle = handle

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(device, handle, &requirements)
	requirements.Deref()

	memoryIndex := context.FindMemoryIndex(requirements.MemoryTypeBits, bufferMemoryFlags(desc))
	if memoryIndex == -1 {
		outBuffer.BufferDestroy(context)
		return nil, errors.Newf("buffer %q: required memory type not found", desc.Name)
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: uint32(memoryIndex),
	}
	var memory vk.DeviceMemory
	if err := vulkanCheck(vk.AllocateMemory(device, &allocateInfo, context.Allocator, &memory), "vkAllocateMemory"); err != nil {
		outBuffer.BufferDestroy(context)
		return nil, errors.Wrapf(err, "buffer %q", desc.Name)
	}
	outBuffer.Memory = memory

	if err := vulkanCheck(vk.BindBufferMemory(device, handle, memory, 0), "vkBindBufferMemory"); err != nil {
		outBuffer.BufferDestroy(context)
		return nil, errors.Wrapf(err, "buffer %q", desc.Name)
	}
	return outBuffer, nil
}

func (vb *VulkanBuffer) BufferDestroy(context *VulkanContext) {
	device := context.Device.LogicalDevice
	if vb.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(device, vb.Memory, context.Allocator)
		vb.Memory = vk.NullDeviceMemory
	}
	if vb.Handle != vk.NullBuffer {
		vk.DestroyBuffer(device, vb.Handle, context.Allocator)
		vb.Handle = vk.NullBuffer
	}
	vb.Size = 0
}
