package table

import (
	"github.com/vkngwrapper/core/v2/core1_0"
)

// Resource is the native object written into a single table slot. Which fields are used depends on
// the category's Kind: sampled and storage images use ImageView and ImageLayout, samplers use Sampler,
// and storage buffers use Buffer, Offset and Range.
type Resource struct {
	ImageView   core1_0.ImageView
	ImageLayout core1_0.ImageLayout
	Sampler     core1_0.Sampler

	Buffer core1_0.Buffer
	Offset int
	Range  int
}

// SlotInfo is diagnostic metadata attached to an occupied slot for introspection
type SlotInfo struct {
	Name   string
	Width  int
	Height int
	Depth  int
	Format core1_0.Format
	// Size is the byte size of buffer resources
	Size int
}

// DescriptorWriter writes one slot of the shader-visible table. Implementations must touch only
// the single entry addressed, and must never move or resize existing entries, so that concurrent
// draws reading other slots are unaffected.
type DescriptorWriter interface {
	WriteSlot(category Category, index uint32, resource Resource) error
}
