package bindutils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClampCapacity(t *testing.T) {
	require.Equal(t, uint32(1000), ClampCapacity[uint32](500000, 1000))
	require.Equal(t, uint32(16), ClampCapacity[uint32](16, 1000))
	require.Equal(t, uint32(500000), ClampCapacity[uint32](500000, 0))
}

func TestRangesOverlap(t *testing.T) {
	require.True(t, RangesOverlap(0, 100, 30, 30))
	require.True(t, RangesOverlap(30, 30, 0, 100))
	require.True(t, RangesOverlap(0, 50, 49, 10))
	require.False(t, RangesOverlap(0, 50, 50, 50))
	require.False(t, RangesOverlap(50, 50, 0, 50))
	require.False(t, RangesOverlap(0, 0, 0, 50))
}

func TestRangeContains(t *testing.T) {
	require.True(t, RangeContains(100, 10, 100))
	require.True(t, RangeContains(100, 10, 109))
	require.False(t, RangeContains(100, 10, 110))
	require.False(t, RangeContains(100, 10, 99))
	require.False(t, RangeContains(100, 0, 100))
}

func TestCheckRange(t *testing.T) {
	require.NoError(t, CheckRange(3, 4, "index"))
	require.Error(t, CheckRange(4, 4, "index"))
}
