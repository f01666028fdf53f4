package bindless

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// BuildStatsString writes the statistics of every subsystem as a single JSON object. When detailed
// is true, occupied slots, allocation records and live address ranges are listed individually.
func (b *Backend) BuildStatsString(detailed bool) string {
	writer := jwriter.NewWriter()

	obj := writer.Object()

	framesObj := obj.Name("Frames").Object()
	framesObj.Name("Submitted").Int(int(b.graphics.SubmittedFrame()))
	framesObj.Name("Completed").Int(int(b.graphics.LastCompletedFrame()))
	framesObj.Name("MaxInFlight").Int(int(b.maxFramesInFlight))
	if b.compute != nil {
		framesObj.Name("ComputeSubmitted").Int(int(b.compute.SubmittedFrame()))
		framesObj.Name("ComputeCompleted").Int(int(b.compute.LastCompletedFrame()))
	}
	framesObj.Name("DeviceLost").Bool(b.faulted.Load())
	framesObj.End()

	b.deletions.BuildStatsString(obj.Name("Deletions"))
	b.table.BuildStatsString(obj.Name("Table"), detailed)
	b.registry.BuildStatsString(obj.Name("Registry"), detailed)

	obj.End()

	return string(writer.Bytes())
}
