package bindless

import (
	"strings"

	"golang.org/x/exp/slog"
)

// HandleDeviceFault logs the device address registry's fault report for the faulted addresses and,
// when capture on fault is enabled, hands the report and registry snapshots to the FaultCapture
// callback. It is called automatically with no addresses the first time a lost device is observed,
// and may be called again by the crash capture collaborator once the driver has reported the
// faulting addresses.
func (b *Backend) HandleDeviceFault(addresses []uint64) string {
	b.faulted.Store(true)

	var report strings.Builder
	err := b.registry.WriteFaultReport(&report, addresses)
	if err != nil {
		b.logger.Error("failed to build the device fault report", slog.Any("error", err))
	}

	b.logger.Error("device lost",
		slog.Uint64("Submitted", b.graphics.SubmittedFrame()),
		slog.Uint64("LastCompleted", b.graphics.LastCompletedFrame()),
		slog.Int("PendingDeletions", b.deletions.Len()),
		slog.String("Report", report.String()),
	)

	for _, address := range addresses {
		classification := b.registry.Classify(address)
		if classification != nil {
			b.logger.Error("faulted device address", slog.Uint64("Address", address), slog.Any("error", classification))
		}
	}

	if b.registry.CaptureOnFault() && b.faultCapture != nil {
		b.faultCapture(report.String(), b.registry.Snapshot(), b.registry.Allocations())
	}

	return report.String()
}
