package table

import "github.com/vkngwrapper/arsenal/bindless/bindutils"

const (
	// DefaultMaxSlotsPerCategory is the engine-wide maximum capacity of any category when
	// CreateOptions.MaxSlotsPerCategory is left at zero
	DefaultMaxSlotsPerCategory uint32 = 16384
)

// Limits are the hardware's per-stage binding limits, from which category capacities are derived
type Limits struct {
	MaxPerStageSampledImages  uint32
	MaxPerStageSamplers       uint32
	MaxPerStageStorageBuffers uint32
	MaxPerStageStorageImages  uint32
}

// ForKind returns the per-stage limit that bounds categories of the provided kind
func (l Limits) ForKind(kind Kind) uint32 {
	switch kind {
	case KindSampler:
		return l.MaxPerStageSamplers
	case KindStorageBuffer:
		return l.MaxPerStageStorageBuffers
	case KindStorageImage:
		return l.MaxPerStageStorageImages
	default:
		return l.MaxPerStageSampledImages
	}
}

// Capacity derives the slot capacity of a category: the hardware limit for its kind, clamped
// to the engine-wide maximum and then to the category's own maximum, if any
func (l Limits) Capacity(category Category, engineMax uint32, categoryMax uint32) uint32 {
	if engineMax == 0 {
		engineMax = DefaultMaxSlotsPerCategory
	}

	capacity := bindutils.ClampCapacity(l.ForKind(category.Kind()), engineMax)
	return bindutils.ClampCapacity(capacity, categoryMax)
}
