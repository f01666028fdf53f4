package bindless

import (
	"math"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/arsenal/bindless/addrreg"
	"github.com/vkngwrapper/arsenal/bindless/bindutils"
	"github.com/vkngwrapper/arsenal/bindless/deferred"
	"github.com/vkngwrapper/arsenal/bindless/table"
	"github.com/vkngwrapper/arsenal/bindless/timeline"
	"golang.org/x/exp/slog"
)

// Backend owns the resource-lifetime core of a renderer: the completion timeline, the deferred
// destruction queue, the bindless table and the device address registry. Resources only ever hold
// table handles, and every destruction is deferred until the GPU has retired the frame in which the
// resource was last used.
type Backend struct {
	logger            *slog.Logger
	maxFramesInFlight uint64
	faultCapture      FaultCaptureCallback

	graphics  *timeline.Timeline
	compute   *timeline.Timeline
	handoff   *timeline.Handoff
	deletions *deferred.Queue
	table     *table.Table
	registry  *addrreg.Registry

	// signaled is the latest frame whose completion signal was submitted to the GPU
	signaled  atomic.Uint64
	faulted   atomic.Bool
	destroyed atomic.Bool
}

// Timeline returns the graphics completion timeline
func (b *Backend) Timeline() *timeline.Timeline {
	return b.graphics
}

// ComputeTimeline returns the compute completion timeline, or nil if the backend was created without
// a compute counter
func (b *Backend) ComputeTimeline() *timeline.Timeline {
	return b.compute
}

// Handoff returns the compute to graphics handoff, or nil if the backend was created without a
// compute counter
func (b *Backend) Handoff() *timeline.Handoff {
	return b.handoff
}

func (b *Backend) Table() *table.Table {
	return b.table
}

func (b *Backend) Registry() *addrreg.Registry {
	return b.registry
}

func (b *Backend) Deletions() *deferred.Queue {
	return b.deletions
}

// EnqueueDeletion takes ownership of the native objects action closes over and runs it once the GPU
// has completed the current submitted frame
func (b *Backend) EnqueueDeletion(action deferred.Action) {
	b.deletions.Enqueue(action)
}

// EnqueueNamedDeletion behaves like EnqueueDeletion, and attaches a name used when logging failures
func (b *Backend) EnqueueNamedDeletion(name string, action deferred.Action) {
	b.deletions.EnqueueNamed(name, action)
}

// Release writes the placeholder into handle's slot and enqueues action to destroy the native
// objects behind it. If the release is unbalanced, action is not enqueued, since the objects were
// already handed to the queue by the first release.
func (b *Backend) Release(handle table.Handle, name string, action deferred.Action) error {
	err := b.table.Release(handle)
	if err != nil {
		return err
	}

	b.deletions.EnqueueNamed(name, action)
	return nil
}

// TrackBuffer records a buffer that exposes a raw device address, stamped with the current
// submitted frame
func (b *Backend) TrackBuffer(address, size uint64, name string) {
	b.registry.RegisterBuffer(address, size, name, b.graphics.SubmittedFrame())
}

// UntrackBuffer marks the buffer at address freed as of the current submitted frame and enqueues
// action to destroy it
func (b *Backend) UntrackBuffer(address uint64, name string, action deferred.Action) error {
	err := b.registry.UnregisterBuffer(address, b.graphics.SubmittedFrame())
	b.deletions.EnqueueNamed(name, action)
	return err
}

// GetCompletedFrame reads the GPU-observed completed frame. A lost device returns an error wrapping
// bindutils.ErrDeviceLost, after the fault report has been produced.
func (b *Backend) GetCompletedFrame() (uint64, error) {
	completed, err := b.graphics.CompletedFrame()
	if err != nil {
		b.checkDeviceLost(err)
		return 0, err
	}
	return completed, nil
}

// WaitForFrame blocks until the GPU has completed frame
func (b *Backend) WaitForFrame(frame uint64) error {
	err := b.graphics.WaitForFrame(frame)
	b.checkDeviceLost(err)
	return err
}

// WaitForFrames blocks until every listed frame has completed
func (b *Backend) WaitForFrames(frames ...uint64) error {
	err := b.graphics.WaitForFrames(frames...)
	b.checkDeviceLost(err)
	return err
}

// FrameSubmitted records that the current frame's completion signal has been queued to the GPU.
// Submission layers call it right after submitting the frame, so WaitIdle and Destroy also wait for
// the current frame when it carries work.
func (b *Backend) FrameSubmitted() {
	frame := b.graphics.SubmittedFrame()
	for {
		signaled := b.signaled.Load()
		if frame <= signaled || b.signaled.CompareAndSwap(signaled, frame) {
			return
		}
	}
}

// idleFrame is the latest graphics frame that may have GPU work outstanding
func (b *Backend) idleFrame() uint64 {
	target := b.graphics.SubmittedFrame() - 1
	signaled := b.signaled.Load()
	if signaled > target {
		target = signaled
	}
	return target
}

// WaitIdle blocks until every frame submitted before the current one, and the current one if
// FrameSubmitted was called for it, has completed on every timeline
func (b *Backend) WaitIdle() error {
	err := b.graphics.WaitForFrame(b.idleFrame())
	if err == nil && b.compute != nil {
		err = b.compute.WaitIdle()
	}
	b.checkDeviceLost(err)
	return err
}

func (b *Backend) reclaim(completed uint64) {
	executed := b.deletions.Drain(completed)
	reclaimed := b.table.Update(completed)

	if executed > 0 || reclaimed > 0 {
		b.logger.Debug("Backend::reclaim",
			slog.Uint64("CompletedFrame", completed),
			slog.Int("Deletions", executed),
			slog.Int("Slots", reclaimed),
		)
	}
}

// IncrementFrame runs every deletion and reclaims every slot the GPU has finished with, then
// advances the submitted frame and returns its new value. Reclamation only happens here, so it must
// be called once at every frame boundary.
func (b *Backend) IncrementFrame() (uint64, error) {
	completed, err := b.GetCompletedFrame()
	if err != nil {
		return 0, err
	}

	b.reclaim(completed)

	submitted := b.graphics.SubmittedFrame()
	if submitted > completed+b.maxFramesInFlight {
		b.logger.Warn("the GPU is further behind than the allowed frames in flight",
			slog.Uint64("Submitted", submitted),
			slog.Uint64("Completed", completed),
			slog.Uint64("MaxFramesInFlight", b.maxFramesInFlight),
		)
	}

	return b.graphics.IncrementFrame(), nil
}

// AdvanceFrame is the per-frame heartbeat. It behaves like IncrementFrame, then blocks until the GPU
// is at most MaxFramesInFlight frames behind the new submitted frame, so that a slot released in a
// frame can never be reused before the GPU has retired that frame.
func (b *Backend) AdvanceFrame() (uint64, error) {
	submitted, err := b.IncrementFrame()
	if err != nil {
		return 0, err
	}

	if submitted <= b.maxFramesInFlight {
		return submitted, nil
	}

	target := submitted - b.maxFramesInFlight
	err = b.WaitForFrame(target)
	if err != nil {
		return submitted, err
	}

	bindutils.DebugAssert(b.graphics.LastCompletedFrame()+b.maxFramesInFlight >= submitted,
		"frame %d is more than %d frames ahead of the GPU", submitted, b.maxFramesInFlight)

	return submitted, nil
}

func (b *Backend) checkDeviceLost(err error) {
	if err == nil || !errors.Is(err, bindutils.ErrDeviceLost) {
		return
	}

	if b.faulted.CompareAndSwap(false, true) {
		b.HandleDeviceFault(nil)
	}
}

// DeviceLost reports whether a lost device has been observed
func (b *Backend) DeviceLost() bool {
	return b.faulted.Load()
}

// Destroy waits for the GPU to retire every submitted frame, then runs every remaining deletion and
// reclaims every slot. If the device was lost, the deletions still run, since nothing can be in
// flight on a lost device. Work recorded into the current frame is only waited for if its
// submission was reported through FrameSubmitted.
func (b *Backend) Destroy() error {
	if !b.destroyed.CompareAndSwap(false, true) {
		return errors.New("the bindless backend was already destroyed")
	}

	err := b.WaitIdle()
	if err != nil && !errors.Is(err, bindutils.ErrDeviceLost) {
		b.destroyed.Store(false)
		return errors.Wrap(err, "failed to wait for the GPU before destroying the bindless backend")
	}

	b.reclaim(math.MaxUint64)

	b.logger.Debug("Backend::Destroy", slog.Int("PendingDeletions", b.deletions.Len()))
	return err
}

func (b *Backend) Validate() error {
	err := b.deletions.Validate()
	if err != nil {
		return err
	}

	err = b.table.Validate()
	if err != nil {
		return err
	}

	return b.registry.Validate()
}
