package vulkan

import (
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/core1_2"
	"github.com/vkngwrapper/extensions/v2/khr_buffer_device_address"
)

// ExtensionData records which of the device capabilities the bindless backend relies on are active
type ExtensionData struct {
	// TimelineSemaphores is the core 1.2 device, which can wait on timeline semaphores. It is nil
	// when core 1.2 is not active, in which case a timeline.HostCounter signaled from fences must
	// back the completion timeline instead.
	TimelineSemaphores SemaphoreWaiter
	// DescriptorIndexing is true when update-after-bind descriptor sets may be used, subject to the
	// device's feature bits
	DescriptorIndexing bool
	// BufferDeviceAddress is true when buffers may expose raw device addresses, in which case they
	// should be tracked by the device address registry
	BufferDeviceAddress bool
}

func NewExtensionData(device core1_0.Device) *ExtensionData {
	// A nil core1_2.Device converts to a nil SemaphoreWaiter
	return detectExtensions(core1_2.PromoteDevice(device), device.IsDeviceExtensionActive)
}

func detectExtensions(device12 SemaphoreWaiter, extensionActive func(string) bool) *ExtensionData {
	data := &ExtensionData{}

	if device12 != nil {
		// Core 1.2 active - timeline semaphores, descriptor indexing and buffer device addresses
		// were all promoted to core
		data.TimelineSemaphores = device12
		data.DescriptorIndexing = true
		data.BufferDeviceAddress = true
	}

	// khr_buffer_device_address if core 1.2 is not active
	if !data.BufferDeviceAddress && extensionActive(khr_buffer_device_address.ExtensionName) {
		data.BufferDeviceAddress = true
	}

	return data
}

// SemaphoreWaiter returns the device that waits on timeline semaphores, or nil if there is none
func (d *ExtensionData) SemaphoreWaiter() SemaphoreWaiter {
	return d.TimelineSemaphores
}
