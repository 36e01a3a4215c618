package vulkan

import (
	"runtime"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/framegraph/engine/core"
)

type VulkanDevice struct {
	PhysicalDevice     vk.PhysicalDevice
	LogicalDevice      vk.Device
	GraphicsQueueIndex int32
	GraphicsQueue      vk.Queue

	Properties vk.PhysicalDeviceProperties
	Memory     vk.PhysicalDeviceMemoryProperties
}

type VulkanPhysicalDeviceRequirements struct {
	Graphics    bool
	Compute     bool
	Transfer    bool
	DiscreteGPU bool
}

func DeviceCreate(context *VulkanContext) error {
	if err := SelectPhysicalDevice(context); err != nil {
		return err
	}

	core.LogInfo("Creating logical device...")

	// Resources are only allocated, never presented, so a single graphics
	// queue is all the device needs.
	var queuePriority float32 = 1.0
	queueCreateInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: uint32(context.Device.GraphicsQueueIndex),
		QueueCount:       1,
		PQueuePriorities: []float32{queuePriority},
	}}

	portabilityRequired, err := requiresPortabilitySubset(context.Device.PhysicalDevice)
	if err != nil {
		return err
	}
	extensionNames := []string{}
	if portabilityRequired {
		core.LogInfo("Adding required extension 'VK_KHR_portability_subset'.")
		extensionNames = append(extensionNames, VulkanSafeString("VK_KHR_portability_subset"))
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: extensionNames,
	}

	var device vk.Device
	if err := vulkanCheck(vk.CreateDevice(context.Device.PhysicalDevice, &deviceCreateInfo, context.Allocator, &device), "vkCreateDevice"); err != nil {
		return err
	}
	context.Device.LogicalDevice = device
	core.LogInfo("Logical device created.")

	var queue vk.Queue
	vk.GetDeviceQueue(device, uint32(context.Device.GraphicsQueueIndex), 0, &queue)
	context.Device.GraphicsQueue = queue
	core.LogInfo("Queues obtained.")
	return nil
}

func DeviceDestroy(context *VulkanContext) {
	context.Device.GraphicsQueue = nil

	core.LogInfo("Destroying logical device...")
	if context.Device.LogicalDevice != nil {
		vk.DestroyDevice(context.Device.LogicalDevice, context.Allocator)
		context.Device.LogicalDevice = nil
	}

	// Physical devices are not destroyed.
	context.Device.PhysicalDevice = nil
	context.Device.GraphicsQueueIndex = -1
}

func requiresPortabilitySubset(physicalDevice vk.PhysicalDevice) (bool, error) {
	var count uint32
	if err := vulkanCheck(vk.EnumerateDeviceExtensionProperties(physicalDevice, "", &count, nil), "vkEnumerateDeviceExtensionProperties"); err != nil {
		return false, err
	}
	if count == 0 {
		return false, nil
	}
	available := make([]vk.ExtensionProperties, count)
	if err := vulkanCheck(vk.EnumerateDeviceExtensionProperties(physicalDevice, "", &count, available), "vkEnumerateDeviceExtensionProperties"); err != nil {
		return false, err
	}
	for i := range available {
		available[i].Deref()
		name := available[i].ExtensionName[:]
		if string(name[:FindFirstZeroInByteArray(name)]) == "VK_KHR_portability_subset" {
			return true, nil
		}
	}
	return false, nil
}

func SelectPhysicalDevice(context *VulkanContext) error {
	var physicalDeviceCount uint32
	if err := vulkanCheck(vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, nil), "vkEnumeratePhysicalDevices"); err != nil {
		return err
	}
	if physicalDeviceCount == 0 {
		return errors.New("no devices which support Vulkan were found")
	}
	physicalDevices := make([]vk.PhysicalDevice, physicalDeviceCount)
	if err := vulkanCheck(vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, physicalDevices), "vkEnumeratePhysicalDevices"); err != nil {
		return err
	}

	requirements := VulkanPhysicalDeviceRequirements{
		Graphics:    true,
		Transfer:    true,
		DiscreteGPU: true,
	}
	if runtime.GOOS == "darwin" {
		requirements.DiscreteGPU = false
	}

	// Prefer a device that meets every requirement, settle for any device
	// with a graphics queue otherwise.
	fallback := -1
	for i := range physicalDevices {
		properties := vk.PhysicalDeviceProperties{}
		vk.GetPhysicalDeviceProperties(physicalDevices[i], &properties)
		properties.Deref()

		queueIndex, ok := PhysicalDeviceMeetsRequirements(physicalDevices[i], &properties, &requirements)
		if !ok {
			if _, graphics := findQueueFamily(physicalDevices[i], vk.QueueGraphicsBit); graphics && fallback < 0 {
				fallback = i
			}
			continue
		}
		selectPhysicalDevice(context, physicalDevices[i], properties, queueIndex)
		return nil
	}

	if fallback >= 0 {
		core.LogWarn("No device meets every requirement, falling back to device %d.", fallback)
		properties := vk.PhysicalDeviceProperties{}
		vk.GetPhysicalDeviceProperties(physicalDevices[fallback], &properties)
		properties.Deref()
		queueIndex, _ := findQueueFamily(physicalDevices[fallback], vk.QueueGraphicsBit)
		selectPhysicalDevice(context, physicalDevices[fallback], properties, queueIndex)
		return nil
	}
	return errors.New("no physical device with a graphics queue was found")
}

func selectPhysicalDevice(context *VulkanContext, physicalDevice vk.PhysicalDevice, properties vk.PhysicalDeviceProperties, queueIndex uint32) {
	name := properties.DeviceName[:]
	core.LogInfo("Selected device: '%s'.", string(name[:FindFirstZeroInByteArray(name)]))
	switch properties.DeviceType {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		core.LogInfo("GPU type is Integrated.")
	case vk.PhysicalDeviceTypeDiscreteGpu:
		core.LogInfo("GPU type is Discrete.")
	case vk.PhysicalDeviceTypeVirtualGpu:
		core.LogInfo("GPU type is Virtual.")
	case vk.PhysicalDeviceTypeCpu:
		core.LogInfo("GPU type is CPU.")
	default:
		core.LogInfo("GPU type is Unknown.")
	}
	core.LogInfo(
		"Vulkan API version: %d.%d.%d",
		vk.Version(properties.ApiVersion).Major(),
		vk.Version(properties.ApiVersion).Minor(),
		vk.Version(properties.ApiVersion).Patch(),
	)

	memory := vk.PhysicalDeviceMemoryProperties{}
	vk.GetPhysicalDeviceMemoryProperties(physicalDevice, &memory)
	memory.Deref()

	context.Device.PhysicalDevice = physicalDevice
	context.Device.GraphicsQueueIndex = int32(queueIndex)
	context.Device.Properties = properties
	context.Device.Memory = memory
}

// PhysicalDeviceMeetsRequirements returns the graphics queue family of a
// device that satisfies requirements.
func PhysicalDeviceMeetsRequirements(device vk.PhysicalDevice, properties *vk.PhysicalDeviceProperties, requirements *VulkanPhysicalDeviceRequirements) (uint32, bool) {
	if requirements.DiscreteGPU && properties.DeviceType != vk.PhysicalDeviceTypeDiscreteGpu {
		core.LogDebug("Device is not a discrete GPU, and one is required. Skipping.")
		return 0, false
	}

	var flags vk.QueueFlagBits
	if requirements.Graphics {
		flags |= vk.QueueGraphicsBit
	}
	if requirements.Compute {
		flags |= vk.QueueComputeBit
	}
	if requirements.Transfer {
		// Graphics queues accept transfers implicitly.
		if !requirements.Graphics && !requirements.Compute {
			flags |= vk.QueueTransferBit
		}
	}
	return findQueueFamily(device, flags)
}

func findQueueFamily(device vk.PhysicalDevice, flags vk.QueueFlagBits) (uint32, bool) {
	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, queueFamilies)

	for i := range queueFamilies {
		queueFamilies[i].Deref()
		if queueFamilies[i].QueueCount == 0 {
			continue
		}
		if vk.QueueFlagBits(queueFamilies[i].QueueFlags)&flags == flags {
			return uint32(i), true
		}
	}
	return 0, false
}
