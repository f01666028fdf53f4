package table

import (
	"fmt"
	"math"
)

// InvalidIndex is the reserved slot index returned by SlotAllocator.Allocate when a category is exhausted
const InvalidIndex uint32 = math.MaxUint32

// Handle is the opaque, shader-visible reference to a registered resource. The zero Handle is invalid.
type Handle struct {
	category Category
	// slot is index+1 so that the zero value is invalid
	slot uint32
	// generation of the slot when the handle was issued; a handle whose slot has since been
	// reclaimed and reused no longer matches
	generation uint32
}

// InvalidHandle is returned from registration when no slot could be provided
var InvalidHandle = Handle{}

func newHandle(category Category, index uint32, generation uint32) Handle {
	return Handle{category: category, slot: index + 1, generation: generation}
}

// IsValid returns false for handles that do not refer to a slot, including the result of a failed
// registration. Callers must check this before handing the index to shader code.
func (h Handle) IsValid() bool {
	return h.slot != 0 && h.category.IsValid()
}

// Index returns the slot index shaders use to address the resource, or InvalidIndex
func (h Handle) Index() uint32 {
	if h.slot == 0 {
		return InvalidIndex
	}
	return h.slot - 1
}

func (h Handle) Category() Category {
	return h.category
}

// Generation identifies which occupant of the slot the handle was issued for. It is not visible to
// shaders.
func (h Handle) Generation() uint32 {
	return h.generation
}

func (h Handle) String() string {
	if !h.IsValid() {
		return "Handle(invalid)"
	}
	return fmt.Sprintf("Handle(%s:%d#%d)", h.category, h.Index(), h.generation)
}
