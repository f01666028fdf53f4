package addrreg

import (
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// WriteFaultReport writes a text report describing each faulted address, followed by every range
// that is currently bound. It is meant for logs, not for machine consumption.
func (r *Registry) WriteFaultReport(w io.Writer, addresses []uint64) error {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var sb strings.Builder
	fmt.Fprintf(&sb, "Device fault report: %d faulted address(es)\n", len(addresses))
	if !r.options.Enabled {
		sb.WriteString("  device address tracking is disabled\n")
	}

	for _, address := range addresses {
		record, found := r.findAllocation(address)
		if !found {
			fmt.Fprintf(&sb, "  0x%016x: no known allocation\n", address)
			continue
		}

		if record.IsAlive {
			fmt.Fprintf(&sb, "  0x%016x: inside %q [0x%016x, 0x%016x) alive\n",
				address, record.Name, record.BaseAddress, record.End())
		} else {
			fmt.Fprintf(&sb, "  0x%016x: inside %q [0x%016x, 0x%016x) freed at frame %d (use after free)\n",
				address, record.Name, record.BaseAddress, record.End(), record.FrameFreed)
		}
	}

	live := r.liveRanges()
	fmt.Fprintf(&sb, "Live ranges (%d):\n", len(live))
	for _, event := range live {
		fmt.Fprintf(&sb, "  [0x%016x, 0x%016x) seq=%d objects: %s\n",
			event.Base, event.End(), event.Sequence, event.objectNames())
	}

	_, err := io.WriteString(w, sb.String())
	if err != nil {
		return errors.Wrap(err, "failed to write device fault report")
	}
	return nil
}

// BuildStatsString writes the registry's statistics as a JSON object. When detailed is true, every
// allocation record and every live range is listed.
func (r *Registry) BuildStatsString(writer *jwriter.Writer, detailed bool) {
	stats := r.Statistics()

	obj := writer.Object()
	defer obj.End()

	obj.Name("Enabled").Bool(r.options.Enabled)
	obj.Name("AliveAllocations").Int(stats.AliveAllocations)
	obj.Name("FreedAllocations").Int(stats.FreedAllocations)
	obj.Name("AliveBytes").Int(int(stats.AliveBytes))
	obj.Name("Events").Int(stats.Events)
	obj.Name("LiveRanges").Int(stats.LiveRanges)
	obj.Name("Tombstones").Int(stats.Tombstones)
	obj.Name("Splits").Int(stats.Splits)
	obj.Name("UnbindAnomalies").Int(stats.UnbindAnomalies)

	if !detailed {
		return
	}

	allocationsArr := obj.Name("Allocations").Array()
	for _, record := range r.Allocations() {
		recordObj := allocationsArr.Object()
		recordObj.Name("Name").String(record.Name)
		recordObj.Name("Base").String(fmt.Sprintf("0x%x", record.BaseAddress))
		recordObj.Name("Size").Int(int(record.Size))
		recordObj.Name("FrameCreated").Int(int(record.FrameCreated))
		recordObj.Name("Alive").Bool(record.IsAlive)
		if !record.IsAlive {
			recordObj.Name("FrameFreed").Int(int(record.FrameFreed))
		}
		recordObj.End()
	}
	allocationsArr.End()

	rangesArr := obj.Name("Ranges").Array()
	for _, event := range r.LiveRanges() {
		eventObj := rangesArr.Object()
		eventObj.Name("Base").String(fmt.Sprintf("0x%x", event.Base))
		eventObj.Name("Size").Int(int(event.Size))
		eventObj.Name("Sequence").Int(int(event.Sequence))
		eventObj.Name("Objects").String(event.objectNames())
		eventObj.End()
	}
	rangesArr.End()
}
