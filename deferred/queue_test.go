package deferred

import (
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

type fakeFrames struct {
	frame uint64
}

func (f *fakeFrames) SubmittedFrame() uint64 {
	return f.frame
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard))
}

func TestDrainRespectsFrameStamps(t *testing.T) {
	frames := &fakeFrames{frame: 1}
	queue := New(testLogger(), frames, true)

	var ran []string
	record := func(name string) Action {
		return func() error {
			ran = append(ran, name)
			return nil
		}
	}

	queue.Enqueue(record("a"))
	queue.Enqueue(record("b"))
	frames.frame = 2
	queue.Enqueue(record("c"))
	frames.frame = 4
	queue.Enqueue(record("d"))

	require.Equal(t, 0, queue.Drain(0))
	require.Empty(t, ran)

	require.Equal(t, 2, queue.Drain(1))
	require.Equal(t, []string{"a", "b"}, ran)

	require.Equal(t, 1, queue.Drain(3))
	require.Equal(t, []string{"a", "b", "c"}, ran)

	oldest, ok := queue.OldestFrame()
	require.True(t, ok)
	require.Equal(t, uint64(4), oldest)

	require.Equal(t, 1, queue.Drain(4))
	require.Equal(t, []string{"a", "b", "c", "d"}, ran)
	require.Equal(t, 0, queue.Len())

	_, ok = queue.OldestFrame()
	require.False(t, ok)
}

func TestActionsRunExactlyOnce(t *testing.T) {
	frames := &fakeFrames{frame: 1}
	queue := New(testLogger(), frames, true)

	count := 0
	queue.Enqueue(func() error {
		count++
		return nil
	})

	queue.Drain(1)
	queue.Drain(1)
	queue.Drain(10)
	require.Equal(t, 1, count)
}

func TestFailingActionsAreLoggedNotPropagated(t *testing.T) {
	var logs strings.Builder
	frames := &fakeFrames{frame: 1}
	queue := New(slog.New(slog.NewTextHandler(&logs)), frames, true)

	after := false
	queue.EnqueueNamed("broken image view", func() error {
		return errors.New("vkDestroyImageView failed")
	})
	queue.EnqueueNamed("panicking sampler", func() error {
		panic("sampler already destroyed")
	})
	queue.Enqueue(func() error {
		after = true
		return nil
	})

	require.Equal(t, 3, queue.Drain(1))
	require.True(t, after)
	require.Contains(t, logs.String(), "broken image view")
	require.Contains(t, logs.String(), "panicking sampler")

	writer := jwriter.NewWriter()
	queue.BuildStatsString(&writer)
	require.NoError(t, writer.Error())
	require.JSONEq(t, `{"Pending":0,"Executed":3,"Failed":2}`, string(writer.Bytes()))
}

func TestActionsMayEnqueueDuringDrain(t *testing.T) {
	frames := &fakeFrames{frame: 1}
	queue := New(testLogger(), frames, true)

	secondRan := false
	queue.Enqueue(func() error {
		frames.frame = 2
		queue.Enqueue(func() error {
			secondRan = true
			return nil
		})
		return nil
	})

	require.Equal(t, 1, queue.Drain(1))
	require.False(t, secondRan)
	require.Equal(t, 1, queue.Len())

	require.Equal(t, 1, queue.Drain(2))
	require.True(t, secondRan)
}

func TestNilActionIgnored(t *testing.T) {
	queue := New(testLogger(), &fakeFrames{frame: 1}, true)
	queue.Enqueue(nil)
	require.Equal(t, 0, queue.Len())
}

func TestConcurrentEnqueue(t *testing.T) {
	frames := &fakeFrames{frame: 1}
	queue := New(testLogger(), frames, true)

	var mutex sync.Mutex
	count := 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				queue.Enqueue(func() error {
					mutex.Lock()
					count++
					mutex.Unlock()
					return nil
				})
			}
		}()
	}
	wg.Wait()

	require.NoError(t, queue.Validate())
	require.Equal(t, 800, queue.Drain(1))
	require.Equal(t, 800, count)
}

func TestValidateDetectsOutOfOrderStamps(t *testing.T) {
	queue := New(testLogger(), &fakeFrames{frame: 1}, true)
	queue.entries = []entry{{frame: 3}, {frame: 2}}

	require.Error(t, queue.Validate())
}
