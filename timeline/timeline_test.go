package timeline_test

import (
	"io"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/arsenal/bindless/bindutils"
	"github.com/vkngwrapper/arsenal/bindless/mocks"
	"github.com/vkngwrapper/arsenal/bindless/timeline"
	"go.uber.org/mock/gomock"
	"golang.org/x/exp/slog"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard))
}

func TestIncrementFrame(t *testing.T) {
	tl := timeline.New(testLogger(), "graphics", timeline.NewHostCounter(0), timeline.Options{})

	require.Equal(t, uint64(1), tl.SubmittedFrame())
	require.Equal(t, uint64(2), tl.IncrementFrame())
	require.Equal(t, uint64(3), tl.IncrementFrame())
	require.Equal(t, uint64(3), tl.SubmittedFrame())
}

func TestCompletedFrameDeviceLost(t *testing.T) {
	counter := timeline.NewHostCounter(0)
	tl := timeline.New(testLogger(), "graphics", counter, timeline.Options{})

	counter.Signal(1)
	completed, err := tl.CompletedFrame()
	require.NoError(t, err)
	require.Equal(t, uint64(1), completed)

	counter.Lose()
	_, err = tl.CompletedFrame()
	require.True(t, errors.Is(err, bindutils.ErrDeviceLost))
}

func TestCompletedFrameNeverDecreases(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := mocks.NewMockCounterSource(ctrl)

	tl := timeline.New(testLogger(), "graphics", source, timeline.Options{InitialFrame: 10})

	gomock.InOrder(
		source.EXPECT().CounterValue().Return(uint64(7), nil),
		source.EXPECT().CounterValue().Return(uint64(5), nil),
	)

	completed, err := tl.CompletedFrame()
	require.NoError(t, err)
	require.Equal(t, uint64(7), completed)

	completed, err = tl.CompletedFrame()
	require.NoError(t, err)
	require.Equal(t, uint64(7), completed)
	require.Equal(t, uint64(7), tl.LastCompletedFrame())
}

func TestCompletedFrameWrapsReadErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := mocks.NewMockCounterSource(ctrl)
	tl := timeline.New(testLogger(), "graphics", source, timeline.Options{})

	source.EXPECT().CounterValue().Return(uint64(0), errors.New("driver exploded"))
	_, err := tl.CompletedFrame()
	require.Error(t, err)
	require.False(t, errors.Is(err, bindutils.ErrDeviceLost))

	source.EXPECT().CounterValue().Return(uint64(0), errors.Wrap(bindutils.ErrDeviceLost, "native"))
	_, err = tl.CompletedFrame()
	require.True(t, errors.Is(err, bindutils.ErrDeviceLost))
}

func TestWaitForFrameNoOps(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := mocks.NewMockCounterSource(ctrl)
	tl := timeline.New(testLogger(), "graphics", source, timeline.Options{InitialFrame: 5})

	// No calls expected on the source for frame 0
	require.NoError(t, tl.WaitForFrame(0))

	source.EXPECT().CounterValue().Return(uint64(3), nil)
	_, err := tl.CompletedFrame()
	require.NoError(t, err)

	// Already satisfied by the cached value
	require.NoError(t, tl.WaitForFrame(2))
	require.NoError(t, tl.WaitForFrames(1, 3, 0))
}

func TestWaitForFrameBlocksUntilSignaled(t *testing.T) {
	counter := timeline.NewHostCounter(0)
	tl := timeline.New(testLogger(), "graphics", counter, timeline.Options{})
	tl.IncrementFrame()
	tl.IncrementFrame()

	done := make(chan error)
	go func() {
		done <- tl.WaitForFrame(2)
	}()

	counter.Signal(1)
	select {
	case <-done:
		t.Fatal("wait returned before the frame completed")
	case <-time.After(20 * time.Millisecond):
	}

	counter.Signal(2)
	require.NoError(t, <-done)
	require.Equal(t, uint64(2), tl.LastCompletedFrame())
}

func TestWaitForFramesWaitsForAll(t *testing.T) {
	counter := timeline.NewHostCounter(0)
	tl := timeline.New(testLogger(), "graphics", counter, timeline.Options{InitialFrame: 4})

	counter.Signal(2)
	err := tl.WaitForFrameTimeout(3, time.Millisecond)
	require.True(t, errors.Is(err, bindutils.ErrWaitTimeout))

	counter.Signal(3)
	require.NoError(t, tl.WaitForFrames(1, 3, 2))
}

func TestWaitTimeoutIsNotDeviceLost(t *testing.T) {
	counter := timeline.NewHostCounter(0)
	tl := timeline.New(testLogger(), "graphics", counter, timeline.Options{WaitTimeout: 5 * time.Millisecond})

	err := tl.WaitForFrame(1)
	require.True(t, errors.Is(err, bindutils.ErrWaitTimeout))
	require.False(t, errors.Is(err, bindutils.ErrDeviceLost))
}

func TestWaitDeviceLost(t *testing.T) {
	counter := timeline.NewHostCounter(0)
	tl := timeline.New(testLogger(), "graphics", counter, timeline.Options{})

	done := make(chan error)
	go func() {
		done <- tl.WaitForFrame(1)
	}()

	counter.Lose()
	err := <-done
	require.True(t, errors.Is(err, bindutils.ErrDeviceLost))
}

func TestWaitNativeError(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := mocks.NewMockCounterSource(ctrl)
	tl := timeline.New(testLogger(), "graphics", source, timeline.Options{WaitTimeout: time.Second})

	source.EXPECT().Wait(uint64(1), time.Second).Return(false, errors.Wrap(bindutils.ErrDeviceLost, "VK_ERROR_DEVICE_LOST"))

	err := tl.WaitForFrame(1)
	require.True(t, errors.Is(err, bindutils.ErrDeviceLost))
}

func TestWaitIdle(t *testing.T) {
	counter := timeline.NewHostCounter(0)
	tl := timeline.New(testLogger(), "graphics", counter, timeline.Options{WaitTimeout: 5 * time.Millisecond})
	tl.IncrementFrame()
	tl.IncrementFrame()

	require.Error(t, tl.WaitIdle())
	counter.Signal(2)
	require.NoError(t, tl.WaitIdle())
}
