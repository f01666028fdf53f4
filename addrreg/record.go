package addrreg

import (
	"fmt"

	"github.com/vkngwrapper/arsenal/bindless/bindutils"
)

// AllocationRecord is the registry's view of a buffer that exposes a raw device address. Records
// are never removed: unregistering a buffer marks its record dead so that later fault lookups can
// still name it.
type AllocationRecord struct {
	BaseAddress  uint64
	Size         uint64
	Name         string
	FrameCreated uint64
	FrameFreed   uint64
	IsAlive      bool
}

// End returns the first address past the end of the record
func (r AllocationRecord) End() uint64 {
	return r.BaseAddress + r.Size
}

// Contains reports whether address lies in [BaseAddress, BaseAddress+Size)
func (r AllocationRecord) Contains(address uint64) bool {
	return bindutils.RangeContains(r.BaseAddress, r.Size, address)
}

func (r AllocationRecord) String() string {
	status := "alive"
	if !r.IsAlive {
		status = fmt.Sprintf("freed at frame %d", r.FrameFreed)
	}
	return fmt.Sprintf("%q [0x%016x, 0x%016x) created at frame %d, %s", r.Name, r.BaseAddress, r.End(), r.FrameCreated, status)
}
