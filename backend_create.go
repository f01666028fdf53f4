package bindless

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/arsenal/bindless/addrreg"
	"github.com/vkngwrapper/arsenal/bindless/deferred"
	"github.com/vkngwrapper/arsenal/bindless/table"
	"github.com/vkngwrapper/arsenal/bindless/timeline"
	"github.com/vkngwrapper/core/v2/common"
	"golang.org/x/exp/slog"
)

// CreateFlags indicate specific backend behaviors to activate or deactivate
type CreateFlags int32

var backendCreateFlagsMapping = common.NewFlagStringMapping[CreateFlags]()

func (f CreateFlags) Register(str string) {
	backendCreateFlagsMapping.Register(f, str)
}
func (f CreateFlags) String() string {
	return backendCreateFlagsMapping.FlagsToString(f)
}

const (
	// CreateExternallySynchronized ensures that the backend and every object it owns will not be
	// synchronized internally. The consumer must guarantee they are used from only one goroutine at a
	// time or are synchronized by some other mechanism.
	CreateExternallySynchronized CreateFlags = 1 << iota
)

func init() {
	CreateExternallySynchronized.Register("CreateExternallySynchronized")
}

const (
	// DefaultMaxFramesInFlight is used when CreateOptions.MaxFramesInFlight is left at zero
	DefaultMaxFramesInFlight uint64 = 2
)

// FaultCaptureCallback hands fault forensics to a crash capture collaborator. report is the text
// fault report, and events and allocations are snapshots of the device address registry.
type FaultCaptureCallback func(report string, events []addrreg.RangeEvent, allocations []addrreg.AllocationRecord)

// CreateOptions contains the settings used to create a Backend
type CreateOptions struct {
	// Flags indicates specific backend behaviors to activate or deactivate
	Flags CreateFlags
	// MaxFramesInFlight is the number of frames the CPU may run ahead of the GPU before AdvanceFrame
	// blocks. Zero means DefaultMaxFramesInFlight.
	MaxFramesInFlight uint64
	// WaitTimeout bounds every wait on the completion timeline. Zero means timeline.WaitForever.
	WaitTimeout time.Duration

	// Table holds the limits, per-category settings and placeholders of the bindless table. Its
	// TableCreateExternallySynchronized flag is set automatically when Flags contains
	// CreateExternallySynchronized.
	Table table.CreateOptions

	// Diagnostics controls the device address registry
	Diagnostics addrreg.Options
	// FaultCapture is called with the fault report when the device is lost, if
	// Diagnostics.CaptureOnFault is set
	FaultCapture FaultCaptureCallback

	// Compute is an optional counter signaled by an asynchronous compute queue. When it is provided,
	// the backend creates a compute timeline and a handoff from compute to graphics.
	Compute timeline.CounterSource
}

// New creates a new Backend
//
// counter - The GPU-observable counter signaled with each frame's value by the last graphics
// submission of the frame
//
// writer - Writes individual slots of the shader-visible descriptor set
func New(logger *slog.Logger, counter timeline.CounterSource, writer table.DescriptorWriter, options CreateOptions) (*Backend, error) {
	if logger == nil {
		return nil, errors.New("a logger is required to create a bindless backend")
	}
	if counter == nil {
		return nil, errors.New("a completion counter is required to create a bindless backend")
	}

	useMutex := options.Flags&CreateExternallySynchronized == 0

	maxFramesInFlight := options.MaxFramesInFlight
	if maxFramesInFlight == 0 {
		maxFramesInFlight = DefaultMaxFramesInFlight
	}

	b := &Backend{
		logger:            logger,
		maxFramesInFlight: maxFramesInFlight,
		faultCapture:      options.FaultCapture,
	}

	b.graphics = timeline.New(logger, "graphics", counter, timeline.Options{WaitTimeout: options.WaitTimeout})
	if options.Compute != nil {
		b.compute = timeline.New(logger, "compute", options.Compute, timeline.Options{WaitTimeout: options.WaitTimeout})
		b.handoff = timeline.NewHandoff(b.compute)
	}

	b.deletions = deferred.New(logger, b.graphics, useMutex)

	tableOptions := options.Table
	if !useMutex {
		tableOptions.Flags |= table.TableCreateExternallySynchronized
	}

	var err error
	b.table, err = table.New(logger, writer, b.graphics, tableOptions)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create the bindless table")
	}

	diagnostics := options.Diagnostics
	if !useMutex {
		diagnostics.ExternallySynchronized = true
	}
	b.registry = addrreg.New(logger, diagnostics)

	logger.Debug("Backend::New",
		slog.Uint64("MaxFramesInFlight", maxFramesInFlight),
		slog.Bool("Diagnostics", diagnostics.Enabled),
		slog.Bool("Compute", b.compute != nil),
	)

	return b, nil
}
