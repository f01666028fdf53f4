package timeline

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/arsenal/bindless/bindutils"
	"golang.org/x/exp/slog"
)

// WaitForever may be used as a timeout to block until the requested frame completes, however long
// that takes
const WaitForever time.Duration = math.MaxInt64

// CounterSource is the GPU-observable counter that backs a Timeline, usually a timeline semaphore
// signaled by the last submission of each frame.
type CounterSource interface {
	// CounterValue reads the current counter value. A lost device is reported either by returning
	// bindutils.DeviceLostValue or by returning an error wrapping bindutils.ErrDeviceLost.
	CounterValue() (uint64, error)
	// Wait blocks until the counter is at least value or the timeout expires. It returns true if
	// the value was reached and false if the timeout expired first.
	Wait(value uint64, timeout time.Duration) (bool, error)
}

// Options contains optional settings when creating a Timeline
type Options struct {
	// InitialFrame is the submitted value the timeline starts at. Zero is treated as 1, since frame 0
	// is reserved to mean "no work".
	InitialFrame uint64
	// WaitTimeout is the timeout used by WaitForFrame and WaitForFrames. Zero means WaitForever.
	WaitTimeout time.Duration
}

// Timeline pairs the CPU-side submitted frame counter with the GPU-observed completed counter. It
// is the single source of truth for whether the GPU has finished with resources tagged with a frame.
type Timeline struct {
	logger *slog.Logger
	name   string
	source CounterSource

	waitTimeout time.Duration
	submitted   atomic.Uint64
	completed   atomic.Uint64
}

// New creates a new Timeline
//
// name - A name used in logs and errors, such as "graphics" or "compute"
//
// source - The GPU-observable counter backing the timeline
func New(logger *slog.Logger, name string, source CounterSource, options Options) *Timeline {
	t := &Timeline{
		logger:      logger,
		name:        name,
		source:      source,
		waitTimeout: options.WaitTimeout,
	}

	if t.waitTimeout <= 0 {
		t.waitTimeout = WaitForever
	}

	initial := options.InitialFrame
	if initial == 0 {
		initial = 1
	}
	t.submitted.Store(initial)

	return t
}

func (t *Timeline) Name() string {
	return t.name
}

// IncrementFrame advances the submitted counter and returns the new value, which tags every resource
// destruction recorded until the next call. It must be called exactly once per frame boundary.
func (t *Timeline) IncrementFrame() uint64 {
	frame := t.submitted.Add(1)
	t.logger.Debug("Timeline::IncrementFrame", slog.String("Timeline", t.name), slog.Uint64("Frame", frame))
	return frame
}

// SubmittedFrame returns the current submitted frame value without advancing it
func (t *Timeline) SubmittedFrame() uint64 {
	return t.submitted.Load()
}

// LastCompletedFrame returns the most recent completed value observed by CompletedFrame or a wait,
// without querying the device
func (t *Timeline) LastCompletedFrame() uint64 {
	return t.completed.Load()
}

// CompletedFrame reads the GPU-observed counter. It returns an error wrapping bindutils.ErrDeviceLost
// if the counter reports the lost-device sentinel. The returned value never decreases between calls.
func (t *Timeline) CompletedFrame() (uint64, error) {
	value, err := t.source.CounterValue()
	if err != nil {
		if errors.Is(err, bindutils.ErrDeviceLost) {
			return 0, err
		}
		return 0, errors.Wrapf(err, "failed to read the completion counter for timeline %s", t.name)
	}

	if value == bindutils.DeviceLostValue {
		return 0, errors.Wrapf(bindutils.ErrDeviceLost, "timeline %s reported the lost-device sentinel", t.name)
	}

	for {
		observed := t.completed.Load()
		if value <= observed {
			return observed, nil
		}

		if t.completed.CompareAndSwap(observed, value) {
			break
		}
	}

	submitted := t.submitted.Load()
	if value > submitted {
		t.logger.Warn("completion counter is ahead of the submitted counter",
			slog.String("Timeline", t.name),
			slog.Uint64("Completed", value),
			slog.Uint64("Submitted", submitted),
		)
	}
	bindutils.DebugAssert(value <= submitted, "timeline %s completed %d is ahead of submitted %d", t.name, value, submitted)

	return value, nil
}

// WaitForFrame blocks until the completed counter is at least frame, using the timeline's configured
// timeout. It no-ops if frame is 0 or has already completed.
func (t *Timeline) WaitForFrame(frame uint64) error {
	return t.WaitForFrameTimeout(frame, t.waitTimeout)
}

// WaitForFrames blocks until every listed frame has completed
func (t *Timeline) WaitForFrames(frames ...uint64) error {
	var latest uint64
	for _, frame := range frames {
		if frame > latest {
			latest = frame
		}
	}

	return t.WaitForFrame(latest)
}

// WaitForFrameTimeout blocks until the completed counter is at least frame or the timeout expires.
// An expired timeout returns an error wrapping bindutils.ErrWaitTimeout, while a lost device returns an error
// wrapping bindutils.ErrDeviceLost.
func (t *Timeline) WaitForFrameTimeout(frame uint64, timeout time.Duration) error {
	if frame == 0 || t.completed.Load() >= frame {
		return nil
	}

	t.logger.Debug("Timeline::WaitForFrame", slog.String("Timeline", t.name), slog.Uint64("Frame", frame))

	reached, err := t.source.Wait(frame, timeout)
	if err != nil {
		if errors.Is(err, bindutils.ErrDeviceLost) {
			return err
		}
		return errors.Wrapf(err, "failed waiting for frame %d on timeline %s", frame, t.name)
	}

	// Refresh the cached value and catch a sentinel the wait itself did not report
	completed, err := t.CompletedFrame()
	if err != nil {
		return err
	}

	if !reached || completed < frame {
		return errors.Wrapf(bindutils.ErrWaitTimeout, "frame %d on timeline %s did not complete within %s", frame, t.name, timeout)
	}

	return nil
}

// WaitIdle blocks until every frame submitted before the current one has completed
func (t *Timeline) WaitIdle() error {
	return t.WaitForFrame(t.submitted.Load() - 1)
}
