package vulkan

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/arsenal/bindless/table"
	"github.com/vkngwrapper/core/v2/core1_0"
)

// DescriptorUpdater is the subset of core1_0.Device used to write descriptor set entries
type DescriptorUpdater interface {
	UpdateDescriptorSets(writes []core1_0.WriteDescriptorSet, copies []core1_0.CopyDescriptorSet) error
}

// Binding locates a category's sub-range within the bindless descriptor set
type Binding struct {
	Binding        int
	DescriptorType core1_0.DescriptorType
}

var kindDescriptorTypes = map[table.Kind]core1_0.DescriptorType{
	table.KindSampledImage:  core1_0.DescriptorTypeSampledImage,
	table.KindSampler:       core1_0.DescriptorTypeSampler,
	table.KindStorageBuffer: core1_0.DescriptorTypeStorageBuffer,
	table.KindStorageImage:  core1_0.DescriptorTypeStorageImage,
}

// DefaultBindings places each category at the binding number equal to its Category value, with the
// descriptor type matching its Kind
func DefaultBindings() [table.CategoryCount]Binding {
	var bindings [table.CategoryCount]Binding
	for _, category := range table.Categories() {
		bindings[category] = Binding{
			Binding:        int(category),
			DescriptorType: kindDescriptorTypes[category.Kind()],
		}
	}
	return bindings
}

// DescriptorWriter writes table slots into a single update-after-bind descriptor set, one array
// element per call
type DescriptorWriter struct {
	updater  DescriptorUpdater
	set      core1_0.DescriptorSet
	bindings [table.CategoryCount]Binding
}

var _ table.DescriptorWriter = &DescriptorWriter{}

// NewDescriptorWriter creates a DescriptorWriter for set. The set's layout must contain one binding
// per category, laid out as described by bindings.
func NewDescriptorWriter(updater DescriptorUpdater, set core1_0.DescriptorSet, bindings [table.CategoryCount]Binding) *DescriptorWriter {
	return &DescriptorWriter{
		updater:  updater,
		set:      set,
		bindings: bindings,
	}
}

func (w *DescriptorWriter) WriteSlot(category table.Category, index uint32, resource table.Resource) error {
	if !category.IsValid() {
		return errors.Newf("unknown bindless category %d", category)
	}

	binding := w.bindings[category]
	write := core1_0.WriteDescriptorSet{
		DstSet:          w.set,
		DstBinding:      binding.Binding,
		DstArrayElement: int(index),
		DescriptorType:  binding.DescriptorType,
	}

	switch category.Kind() {
	case table.KindStorageBuffer:
		write.BufferInfo = []core1_0.DescriptorBufferInfo{
			{
				Buffer: resource.Buffer,
				Offset: resource.Offset,
				Range:  resource.Range,
			},
		}
	case table.KindSampler:
		write.ImageInfo = []core1_0.DescriptorImageInfo{
			{Sampler: resource.Sampler},
		}
	default:
		write.ImageInfo = []core1_0.DescriptorImageInfo{
			{
				ImageView:   resource.ImageView,
				ImageLayout: resource.ImageLayout,
			},
		}
	}

	err := w.updater.UpdateDescriptorSets([]core1_0.WriteDescriptorSet{write}, nil)
	if err != nil {
		return errors.Wrapf(err, "failed to write %s slot %d", category, index)
	}
	return nil
}
