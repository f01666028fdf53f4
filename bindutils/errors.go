package bindutils

import "github.com/pkg/errors"

var (
	// ErrCapacityExhausted is returned alongside an invalid handle when a slot category has no
	// free slots left. It is recoverable: callers should substitute a placeholder or skip the draw.
	ErrCapacityExhausted error = errors.New("bindless slot category is exhausted")
	// ErrDeviceLost is returned when the completion counter reports the lost-device sentinel or a wait
	// returns a fatal native error. It is always fatal for the session.
	ErrDeviceLost error = errors.New("device lost")
	// ErrWaitTimeout is returned when a wait on the completion timeline expires before the requested
	// frame completes. Unlike ErrDeviceLost it is not fatal.
	ErrWaitTimeout error = errors.New("timed out waiting for frame completion")
	// ErrUnknownAddress classifies a device address that no registered allocation has ever contained
	ErrUnknownAddress error = errors.New("unknown device address")
	// ErrUseAfterFree classifies a device address whose owning allocation has already been freed
	ErrUseAfterFree error = errors.New("device address used after free")
	// ErrUnbalancedRelease is reported when a handle that is invalid or already free is released
	ErrUnbalancedRelease error = errors.New("release of a slot that is not occupied")
)
