// Package vulkan backs the frame graph pools with real Vulkan images and
// buffers. The device is headless: it allocates resources but never presents.
package vulkan

import (
	"runtime"
	"sync"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
)

var (
	loaderOnce sync.Once
	loaderErr  error
)

func initLoader() error {
	loaderOnce.Do(func() {
		if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
			loaderErr = errors.Wrap(err, "failed to load the Vulkan library")
			return
		}
		if err := vk.Init(); err != nil {
			loaderErr = errors.Wrap(err, "failed to initialize vk")
		}
	})
	return loaderErr
}

// Device implements metadata.Device on top of a Vulkan logical device.
type Device struct {
	context *VulkanContext
	debug   bool

	images  int
	buffers int
}

func NewDevice(appName string, debug bool) (*Device, error) {
	if err := initLoader(); err != nil {
		return nil, err
	}

	d := &Device{
		context: &VulkanContext{
			// TODO: custom allocator.
			Allocator: nil,
			Device:    &VulkanDevice{GraphicsQueueIndex: -1},
		},
		debug: debug,
	}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("framegraph"),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	extensions := []string{}
	if runtime.GOOS == "darwin" {
		extensions = append(extensions, "VK_KHR_portability_enumeration", "VK_KHR_get_physical_device_properties2")
		createInfo.Flags |= 1
	}
	layers := []string{}
	if debug {
		core.LogInfo("Validation layers enabled.")
		layers = append(layers, "VK_LAYER_KHRONOS_validation")
	}
	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(extensions)
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	var instance vk.Instance
	if err := vulkanCheck(vk.CreateInstance(&createInfo, d.context.Allocator, &instance), "vkCreateInstance"); err != nil {
		return nil, err
	}
	d.context.Instance = instance
	if err := vk.InitInstance(instance); err != nil {
		vk.DestroyInstance(instance, d.context.Allocator)
		return nil, errors.Wrap(err, "failed to initialize the Vulkan instance")
	}
	core.LogInfo("Vulkan Instance created.")

	if err := DeviceCreate(d.context); err != nil {
		vk.DestroyInstance(instance, d.context.Allocator)
		return nil, err
	}
	core.LogInfo("Vulkan device initialized successfully.")
	return d, nil
}

func (d *Device) CreateImage(desc metadata.ImageDescriptor) (metadata.Image, error) {
	img, err := ImageCreate(d.context, desc)
	if err != nil {
		return nil, err
	}
	d.images++
	return img, nil
}

func (d *Device) DestroyImage(image metadata.Image) {
	img, ok := image.(*VulkanImage)
	core.Assertf(ok, "image %q was not created by the Vulkan device", image.Label())
	img.ImageDestroy(d.context)
	d.images--
}

func (d *Device) CreateBuffer(desc metadata.BufferDescriptor) (metadata.Buffer, error) {
	buf, err := BufferCreate(d.context, desc)
	if err != nil {
		return nil, err
	}
	d.buffers++
	return buf, nil
}

func (d *Device) DestroyBuffer(buffer metadata.Buffer) {
	buf, ok := buffer.(*VulkanBuffer)
	core.Assertf(ok, "buffer %q was not created by the Vulkan device", buffer.Label())
	buf.BufferDestroy(d.context)
	d.buffers--
}

// Shutdown waits for the device to go idle and tears it down. Every pooled
// resource has to be destroyed first.
func (d *Device) Shutdown() {
	if d.images != 0 || d.buffers != 0 {
		core.LogWarn("Vulkan device shut down with %d images and %d buffers alive", d.images, d.buffers)
	}
	if d.context.Device.LogicalDevice != nil {
		vk.DeviceWaitIdle(d.context.Device.LogicalDevice)
	}
	DeviceDestroy(d.context)

	core.LogInfo("Destroying Vulkan instance...")
	if d.context.Instance != nil {
		vk.DestroyInstance(d.context.Instance, d.context.Allocator)
		d.context.Instance = nil
	}
}
