package addrreg

// Options configures a Registry. The zero value produces a disabled registry whose operations
// are all no-ops.
type Options struct {
	// Enabled turns on allocation and binding-event tracking
	Enabled bool
	// CaptureOnFault requests that a fault report and event snapshot are handed to the crash
	// capture collaborator when the device is lost
	CaptureOnFault bool
	// ExternallySynchronized ensures that the registry will not be synchronized internally. The
	// consumer must guarantee it is used from only one goroutine at a time.
	ExternallySynchronized bool
}
