package bindutils

import (
	cerrors "github.com/cockroachdb/errors"
)

// DeviceLostValue is the completion counter value reported by a lost or faulted device
const DeviceLostValue uint64 = ^uint64(0)

type Number interface {
	~int | ~uint | ~uint32 | ~uint64
}

// ClampCapacity returns hardwareLimit clamped to engineMax. A zero engineMax means no engine-wide limit.
func ClampCapacity[T Number](hardwareLimit, engineMax T) T {
	if engineMax > 0 && hardwareLimit > engineMax {
		return engineMax
	}
	return hardwareLimit
}

// CheckRange returns an error if index is not within [0, count)
func CheckRange[T Number](index, count T, name string) error {
	if index >= count {
		return cerrors.Newf("%s %d is out of range for count %d", name, index, count)
	}
	return nil
}

// RangesOverlap reports whether [aBase, aBase+aSize) and [bBase, bBase+bSize) share at least one address
func RangesOverlap(aBase, aSize, bBase, bSize uint64) bool {
	if aSize == 0 || bSize == 0 {
		return false
	}
	return aBase < bBase+bSize && bBase < aBase+aSize
}

// RangeContains reports whether address lies in [base, base+size)
func RangeContains(base, size, address uint64) bool {
	return address >= base && address-base < size
}
