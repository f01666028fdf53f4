package timeline_test

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/arsenal/bindless/bindutils"
	"github.com/vkngwrapper/arsenal/bindless/timeline"
)

func TestHandoffTakeReturnsLatestSignal(t *testing.T) {
	compute := timeline.New(testLogger(), "compute", timeline.NewHostCounter(0), timeline.Options{})
	handoff := timeline.NewHandoff(compute)

	_, ok := handoff.Take()
	require.False(t, ok)

	first := handoff.Signal()
	require.Equal(t, uint64(1), first.Value)

	compute.IncrementFrame()
	second := handoff.Signal()
	require.Equal(t, uint64(2), second.Value)

	dep, ok := handoff.Take()
	require.True(t, ok)
	require.Equal(t, uint64(2), dep.Value)
	require.Same(t, compute, dep.Timeline)

	_, ok = handoff.Take()
	require.False(t, ok)
}

func TestDependencySatisfied(t *testing.T) {
	counter := timeline.NewHostCounter(0)
	compute := timeline.New(testLogger(), "compute", counter, timeline.Options{})
	dep := timeline.NewHandoff(compute).Signal()

	satisfied, err := dep.Satisfied()
	require.NoError(t, err)
	require.False(t, satisfied)

	counter.Signal(1)
	satisfied, err = dep.Satisfied()
	require.NoError(t, err)
	require.True(t, satisfied)

	satisfied, err = timeline.Dependency{}.Satisfied()
	require.NoError(t, err)
	require.True(t, satisfied)
}

func TestWaitAll(t *testing.T) {
	computeCounter := timeline.NewHostCounter(0)
	graphicsCounter := timeline.NewHostCounter(0)
	compute := timeline.New(testLogger(), "compute", computeCounter, timeline.Options{InitialFrame: 3})
	graphics := timeline.New(testLogger(), "graphics", graphicsCounter, timeline.Options{InitialFrame: 5})

	deps := []timeline.Dependency{
		{Timeline: compute, Value: 3},
		{Timeline: graphics, Value: 5},
	}

	computeCounter.Signal(3)
	err := timeline.WaitAll(deps, 5*time.Millisecond)
	require.True(t, errors.Is(err, bindutils.ErrWaitTimeout))

	graphicsCounter.Signal(5)
	require.NoError(t, timeline.WaitAll(deps, timeline.WaitForever))
}
