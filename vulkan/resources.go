package vulkan

import (
	"github.com/vkngwrapper/arsenal/bindless/deferred"
	"github.com/vkngwrapper/arsenal/bindless/table"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/core1_2"
	"github.com/vkngwrapper/core/v2/driver"
	"github.com/vkngwrapper/extensions/v2/khr_buffer_device_address"
)

// Destroyable is satisfied by the native objects that are released through the deletion queue, such
// as core1_0.Image, core1_0.ImageView, core1_0.Sampler and core1_0.Buffer
type Destroyable interface {
	Destroy(callbacks *driver.AllocationCallbacks)
}

// DestroyAction returns a deletion queue action that destroys each of objects in order. Nil objects
// are skipped.
func DestroyAction(callbacks *driver.AllocationCallbacks, objects ...Destroyable) deferred.Action {
	return func() error {
		for _, object := range objects {
			if object != nil {
				object.Destroy(callbacks)
			}
		}
		return nil
	}
}

// ExposesDeviceAddress reports whether a buffer created with usage can be queried for a raw device
// address, and therefore must be tracked by the device address registry
func ExposesDeviceAddress(usage core1_0.BufferUsageFlags) bool {
	return usage&khr_buffer_device_address.BufferUsageShaderDeviceAddress != 0
}

// LimitsFromDevice reads the per-stage binding limits of a physical device
func LimitsFromDevice(limits *core1_0.PhysicalDeviceLimits) table.Limits {
	return table.Limits{
		MaxPerStageSampledImages:  uint32(limits.MaxPerStageDescriptorSampledImages),
		MaxPerStageSamplers:       uint32(limits.MaxPerStageDescriptorSamplers),
		MaxPerStageStorageBuffers: uint32(limits.MaxPerStageDescriptorStorageBuffers),
		MaxPerStageStorageImages:  uint32(limits.MaxPerStageDescriptorStorageImages),
	}
}

// LimitsFromDescriptorIndexing reads the per-stage limits that apply to update-after-bind
// descriptor sets, which are usually far higher than the plain per-stage limits
func LimitsFromDescriptorIndexing(properties *core1_2.PhysicalDeviceDescriptorIndexingProperties) table.Limits {
	return table.Limits{
		MaxPerStageSampledImages:  uint32(properties.MaxPerStageDescriptorUpdateAfterBindSampledImages),
		MaxPerStageSamplers:       uint32(properties.MaxPerStageDescriptorUpdateAfterBindSamplers),
		MaxPerStageStorageBuffers: uint32(properties.MaxPerStageDescriptorUpdateAfterBindStorageBuffers),
		MaxPerStageStorageImages:  uint32(properties.MaxPerStageDescriptorUpdateAfterBindStorageImages),
	}
}

// Placeholders holds the small set of 1x1 objects that released slots are pointed at. SampledView
// must be in the ShaderReadOnlyOptimal layout and StorageView in the General layout. CubeView,
// VolumeView, ShadowView and MultisampleView may be left nil to reuse SampledView, which is only
// valid when the matching category is disabled.
type Placeholders struct {
	SampledView     core1_0.ImageView
	CubeView        core1_0.ImageView
	VolumeView      core1_0.ImageView
	ShadowView      core1_0.ImageView
	MultisampleView core1_0.ImageView
	StorageView     core1_0.ImageView
	Sampler         core1_0.Sampler
	Buffer          core1_0.Buffer
	BufferSize      int
}

func orDefault(view, fallback core1_0.ImageView) core1_0.ImageView {
	if view == nil {
		return fallback
	}
	return view
}

// Resources returns the placeholder map in the form table.CreateOptions expects
func (p Placeholders) Resources() map[table.Category]table.Resource {
	sampled := func(view core1_0.ImageView) table.Resource {
		return table.Resource{
			ImageView:   orDefault(view, p.SampledView),
			ImageLayout: core1_0.ImageLayoutShaderReadOnlyOptimal,
		}
	}

	return map[table.Category]table.Resource{
		table.CategorySampledImage:     sampled(p.SampledView),
		table.CategoryCubemap:          sampled(p.CubeView),
		table.CategorySampledImage3D:   sampled(p.VolumeView),
		table.CategoryShadowImage:      sampled(p.ShadowView),
		table.CategoryMultisampleImage: sampled(p.MultisampleView),
		table.CategorySampler:          {Sampler: p.Sampler},
		table.CategoryStorageImage:     {ImageView: p.StorageView, ImageLayout: core1_0.ImageLayoutGeneral},
		table.CategoryStorageBuffer:    {Buffer: p.Buffer, Range: p.BufferSize},
	}
}
