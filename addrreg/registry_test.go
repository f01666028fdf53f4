package addrreg_test

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/arsenal/bindless/addrreg"
	"github.com/vkngwrapper/arsenal/bindless/bindutils"
	"golang.org/x/exp/slog"
)

func newRegistry() *addrreg.Registry {
	return addrreg.New(slog.New(slog.NewTextHandler(io.Discard)), addrreg.Options{Enabled: true})
}

func liveCoverage(events []addrreg.RangeEvent) [][2]uint64 {
	var out [][2]uint64
	for _, event := range events {
		out = append(out, [2]uint64{event.Base, event.End()})
	}
	return out
}

func TestRegisterFindRoundTrip(t *testing.T) {
	registry := newRegistry()
	registry.RegisterBuffer(0x1000, 0x200, "vertices", 3)

	record, found := registry.FindAllocation(0x1000)
	require.True(t, found)
	require.Equal(t, uint64(0x1000), record.BaseAddress)
	require.Equal(t, uint64(0x200), record.Size)
	require.Equal(t, "vertices", record.Name)
	require.Equal(t, uint64(3), record.FrameCreated)
	require.True(t, record.IsAlive)

	record, found = registry.FindAllocation(0x11ff)
	require.True(t, found)
	require.Equal(t, "vertices", record.Name)

	_, found = registry.FindAllocation(0x1200)
	require.False(t, found)
	_, found = registry.FindAllocation(0xfff)
	require.False(t, found)

	require.NoError(t, registry.Validate())
}

func TestFindAllocationAcrossManyRecords(t *testing.T) {
	registry := newRegistry()
	registry.RegisterBuffer(0x10000, 0x10000, "large", 1)
	for i := uint64(0); i < 16; i++ {
		registry.RegisterBuffer(0x30000+i*0x100, 0x80, "small", 1)
	}

	record, found := registry.FindAllocation(0x1ffff)
	require.True(t, found)
	require.Equal(t, "large", record.Name)

	record, found = registry.FindAllocation(0x30580)
	require.False(t, found, "found %+v in the gap between small buffers", record)

	record, found = registry.FindAllocation(0x3057f)
	require.True(t, found)
	require.Equal(t, uint64(0x30500), record.BaseAddress)
}

func TestUnregisterKeepsForensicRecord(t *testing.T) {
	registry := newRegistry()
	registry.RegisterBuffer(0x4000, 0x100, "instances", 2)

	require.NoError(t, registry.Classify(0x4080))
	require.NoError(t, registry.UnregisterBuffer(0x4000, 9))

	record, found := registry.FindAllocation(0x4080)
	require.True(t, found)
	require.False(t, record.IsAlive)
	require.Equal(t, uint64(9), record.FrameFreed)

	err := registry.Classify(0x4080)
	require.True(t, errors.Is(err, bindutils.ErrUseAfterFree))

	err = registry.Classify(0x9000)
	require.True(t, errors.Is(err, bindutils.ErrUnknownAddress))

	err = registry.UnregisterBuffer(0x4000, 10)
	require.True(t, errors.Is(err, bindutils.ErrUnknownAddress))

	// A new live owner of the same address wins over the freed one
	registry.RegisterBuffer(0x4000, 0x40, "reused", 11)
	record, found = registry.FindAllocation(0x4010)
	require.True(t, found)
	require.True(t, record.IsAlive)
	require.Equal(t, "reused", record.Name)

	// Past the new owner's end only the freed record contains the address
	require.True(t, errors.Is(registry.Classify(0x4080), bindutils.ErrUseAfterFree))

	stats := registry.Statistics()
	require.Equal(t, 1, stats.AliveAllocations)
	require.Equal(t, 1, stats.FreedAllocations)
	require.Equal(t, uint64(0x40), stats.AliveBytes)
	require.NoError(t, registry.Validate())
}

func TestOverlapSplit(t *testing.T) {
	registry := newRegistry()
	objects := []addrreg.Object{{Handle: 0xabc, Type: "Buffer", Name: "heap"}}
	registry.OnAddressBinding(addrreg.BindingTypeBind, 0, 100, 0, objects)

	registry.OnAddressBinding(addrreg.BindingTypeUnbind, 30, 30, 0, nil)

	live := registry.LiveRanges()
	require.Equal(t, [][2]uint64{{0, 30}, {60, 100}}, liveCoverage(live))
	require.Equal(t, "heap", live[0].Objects[0].Name)
	require.Equal(t, "heap", live[1].Objects[0].Name)
	require.NotEqual(t, live[0].Sequence, live[1].Sequence)

	snapshot := registry.Snapshot()
	require.Len(t, snapshot, 3)
	require.Equal(t, uint64(0), snapshot[0].Base)
	require.Equal(t, uint64(100), snapshot[0].Size)
	require.False(t, snapshot[0].Alive)

	// Sequences are unique and the remainders are newer than the retirement
	require.Less(t, snapshot[0].Sequence, snapshot[1].Sequence)
	require.Less(t, snapshot[1].Sequence, snapshot[2].Sequence)

	require.Equal(t, 1, registry.Statistics().Splits)
	require.NoError(t, registry.Validate())
}

func TestExactUnbind(t *testing.T) {
	registry := newRegistry()
	registry.OnAddressBinding(addrreg.BindingTypeBind, 10, 10, 0, nil)
	registry.OnAddressBinding(addrreg.BindingTypeUnbind, 10, 10, 0, nil)

	for _, event := range registry.LiveRanges() {
		require.False(t, event.Base < 20 && 10 < event.End())
	}
	require.Empty(t, registry.LiveRanges())

	snapshot := registry.Snapshot()
	require.Len(t, snapshot, 1)
	require.False(t, snapshot[0].Alive)
	require.Equal(t, uint64(2), snapshot[0].Sequence)
}

func TestUnbindCoveringSeveralBinds(t *testing.T) {
	registry := newRegistry()
	registry.OnAddressBinding(addrreg.BindingTypeBind, 0, 50, 0, nil)
	registry.OnAddressBinding(addrreg.BindingTypeBind, 50, 50, 0, nil)

	snapshot := registry.Snapshot()
	require.Equal(t, uint64(1), snapshot[0].Sequence)
	require.Equal(t, uint64(2), snapshot[1].Sequence)

	registry.OnAddressBinding(addrreg.BindingTypeUnbind, 0, 100, 0, nil)

	require.Empty(t, registry.LiveRanges())
	snapshot = registry.Snapshot()
	require.Len(t, snapshot, 2)
	require.False(t, snapshot[0].Alive)
	require.False(t, snapshot[1].Alive)
}

func TestUnmatchedUnbindLeavesTombstone(t *testing.T) {
	registry := newRegistry()
	registry.OnAddressBinding(addrreg.BindingTypeBind, 0, 10, 0, nil)
	registry.OnAddressBinding(addrreg.BindingTypeUnbind, 100, 10, addrreg.BindingInternalObject, nil)

	snapshot := registry.Snapshot()
	require.Len(t, snapshot, 2)
	require.True(t, snapshot[0].Alive)
	require.Equal(t, addrreg.BindingTypeUnbind, snapshot[1].BindingType)
	require.False(t, snapshot[1].Alive)
	require.Equal(t, addrreg.BindingInternalObject, snapshot[1].Flags)
	require.Equal(t, 1, registry.Statistics().Tombstones)
}

func TestSnapshotIsACopy(t *testing.T) {
	registry := newRegistry()
	registry.OnAddressBinding(addrreg.BindingTypeBind, 0, 10, 0, []addrreg.Object{{Name: "a"}})

	snapshot := registry.Snapshot()
	snapshot[0].Alive = false
	snapshot[0].Objects[0].Name = "mutated"

	again := registry.Snapshot()
	require.True(t, again[0].Alive)
	require.Equal(t, "a", again[0].Objects[0].Name)
}

func TestUnbindOfLiveBufferIsLogged(t *testing.T) {
	var logs bytes.Buffer
	registry := addrreg.New(slog.New(slog.NewTextHandler(&logs)), addrreg.Options{Enabled: true})

	registry.RegisterBuffer(0x2000, 0x100, "uniforms", 1)
	registry.OnAddressBinding(addrreg.BindingTypeBind, 0x2000, 0x100, 0, nil)
	registry.OnAddressBinding(addrreg.BindingTypeUnbind, 0x2000, 0x100, 0, nil)

	require.Contains(t, logs.String(), "overlaps a live tracked buffer")
	require.Contains(t, logs.String(), "uniforms")
	require.Equal(t, 1, registry.Statistics().UnbindAnomalies)

	// Processing continued with the exact match
	require.Empty(t, registry.LiveRanges())
}

func TestDisabledRegistry(t *testing.T) {
	registry := addrreg.New(slog.New(slog.NewTextHandler(io.Discard)), addrreg.Options{CaptureOnFault: true})
	require.False(t, registry.Enabled())
	require.False(t, registry.CaptureOnFault())

	registry.RegisterBuffer(0x1000, 0x10, "ignored", 1)
	registry.OnAddressBinding(addrreg.BindingTypeBind, 0, 10, 0, nil)
	require.NoError(t, registry.UnregisterBuffer(0x1000, 2))

	_, found := registry.FindAllocation(0x1000)
	require.False(t, found)
	require.Empty(t, registry.Snapshot())
}

func TestFaultReport(t *testing.T) {
	registry := newRegistry()
	registry.RegisterBuffer(0x1000, 0x100, "alive-buffer", 1)
	registry.RegisterBuffer(0x2000, 0x100, "freed-buffer", 1)
	require.NoError(t, registry.UnregisterBuffer(0x2000, 7))
	registry.OnAddressBinding(addrreg.BindingTypeBind, 0x1000, 0x100, 0, []addrreg.Object{{Handle: 1, Type: "Buffer", Name: "alive-buffer"}})
	registry.OnAddressBinding(addrreg.BindingTypeBind, 0x8000, 0x10, 0, []addrreg.Object{{Handle: 0x2a, Type: "Image"}})

	var report strings.Builder
	require.NoError(t, registry.WriteFaultReport(&report, []uint64{0x1010, 0x2020, 0x9999}))

	lines := strings.Split(strings.TrimSpace(report.String()), "\n")
	require.Equal(t, []string{
		"Device fault report: 3 faulted address(es)",
		`  0x0000000000001010: inside "alive-buffer" [0x0000000000001000, 0x0000000000001100) alive`,
		`  0x0000000000002020: inside "freed-buffer" [0x0000000000002000, 0x0000000000002100) freed at frame 7 (use after free)`,
		"  0x0000000000009999: no known allocation",
		"Live ranges (2):",
		"  [0x0000000000001000, 0x0000000000001100) seq=1 objects: alive-buffer",
		"  [0x0000000000008000, 0x0000000000008010) seq=2 objects: Image(0x2a)",
	}, lines)
}

func TestBuildStatsString(t *testing.T) {
	registry := newRegistry()
	registry.RegisterBuffer(0x1000, 0x100, "buffer", 1)
	registry.OnAddressBinding(addrreg.BindingTypeBind, 0x1000, 0x100, 0, nil)

	writer := jwriter.NewWriter()
	registry.BuildStatsString(&writer, true)
	require.NoError(t, writer.Error())

	out := string(writer.Bytes())
	require.True(t, strings.HasPrefix(out, `{"Enabled":true,"AliveAllocations":1,"FreedAllocations":0,"AliveBytes":256`))
	require.Contains(t, out, `"Name":"buffer","Base":"0x1000"`)
	require.Contains(t, out, `"Ranges":[{"Base":"0x1000","Size":256,"Sequence":1`)
}

func TestBindingFlagsString(t *testing.T) {
	require.Equal(t, "BindingInternalObject", addrreg.BindingInternalObject.String())
	require.Equal(t, "Unbind", addrreg.BindingTypeUnbind.String())
}
