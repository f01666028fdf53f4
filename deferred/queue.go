package deferred

import (
	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/arsenal/bindless/internal/utils"
	"golang.org/x/exp/slog"
)

// Action releases exactly the native objects it closes over. Ownership of those objects transfers to
// the action when it is enqueued. An Action runs at most once, and any error it returns is logged
// rather than propagated.
type Action func() error

// FrameSource provides the frame value that newly enqueued actions are stamped with. A
// *timeline.Timeline satisfies it.
type FrameSource interface {
	SubmittedFrame() uint64
}

type entry struct {
	frame  uint64
	name   string
	action Action
}

// Queue is a FIFO of release actions that each wait for the GPU to retire the frame they were
// enqueued in. Producers may enqueue from any goroutine; draining happens on the frame-advance goroutine.
type Queue struct {
	logger *slog.Logger
	frames FrameSource
	mutex  utils.OptionalMutex

	entries  []entry
	executed int
	failed   int
}

// New creates a new Queue
//
// frames - The timeline whose submitted frame stamps each enqueued action
//
// useMutex - False if the consumer guarantees the queue is only used from one goroutine at a time
func New(logger *slog.Logger, frames FrameSource, useMutex bool) *Queue {
	return &Queue{
		logger: logger,
		frames: frames,
		mutex:  utils.NewOptionalMutex(useMutex),
	}
}

// Enqueue stamps action with the current submitted frame and appends it to the queue
func (q *Queue) Enqueue(action Action) {
	q.EnqueueNamed("", action)
}

// EnqueueNamed behaves like Enqueue, and attaches a name used when logging failures
func (q *Queue) EnqueueNamed(name string, action Action) {
	if action == nil {
		return
	}

	q.mutex.Lock()
	defer q.mutex.Unlock()

	// Read the frame under the lock so stamps stay non-decreasing along the queue
	frame := q.frames.SubmittedFrame()
	q.entries = append(q.entries, entry{frame: frame, name: name, action: action})
}

// Drain runs, in enqueue order, every action whose stamped frame is at most completedFrame and
// returns the number of actions run. It stops at the first action that is not yet eligible.
func (q *Queue) Drain(completedFrame uint64) int {
	q.mutex.Lock()
	ready := 0
	for ready < len(q.entries) && q.entries[ready].frame <= completedFrame {
		ready++
	}

	if ready == 0 {
		q.mutex.Unlock()
		return 0
	}

	batch := make([]entry, ready)
	copy(batch, q.entries[:ready])

	remaining := copy(q.entries, q.entries[ready:])
	for i := remaining; i < len(q.entries); i++ {
		q.entries[i] = entry{}
	}
	q.entries = q.entries[:remaining]
	q.mutex.Unlock()

	// Actions run outside the lock so they may enqueue follow-up releases
	failed := 0
	for _, e := range batch {
		if !q.run(e) {
			failed++
		}
	}

	q.mutex.Lock()
	q.executed += len(batch)
	q.failed += failed
	q.mutex.Unlock()

	q.logger.Debug("Queue::Drain", slog.Uint64("CompletedFrame", completedFrame), slog.Int("Executed", len(batch)))
	return len(batch)
}

func (q *Queue) run(e entry) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("deferred release action panicked",
				slog.String("Name", e.name),
				slog.Uint64("Frame", e.frame),
				slog.Any("error", r),
			)
			ok = false
		}
	}()

	err := e.action()
	if err != nil {
		q.logger.Error("deferred release action failed",
			slog.String("Name", e.name),
			slog.Uint64("Frame", e.frame),
			slog.Any("error", err),
		)
		return false
	}

	return true
}

// Len returns the number of actions still waiting to run
func (q *Queue) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	return len(q.entries)
}

// OldestFrame returns the stamp of the oldest waiting action. The second return value is false if the
// queue is empty.
func (q *Queue) OldestFrame() (uint64, bool) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	if len(q.entries) == 0 {
		return 0, false
	}
	return q.entries[0].frame, true
}

// Validate checks that frame stamps never decrease along the queue
func (q *Queue) Validate() error {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	for i := 1; i < len(q.entries); i++ {
		if q.entries[i].frame < q.entries[i-1].frame {
			return errors.Newf("deferred entry %d has frame %d, which is lower than the frame %d of the entry before it",
				i, q.entries[i].frame, q.entries[i-1].frame)
		}
	}

	return nil
}

func (q *Queue) BuildStatsString(writer *jwriter.Writer) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	obj := writer.Object()
	defer obj.End()

	obj.Name("Pending").Int(len(q.entries))
	obj.Name("Executed").Int(q.executed)
	obj.Name("Failed").Int(q.failed)
	if len(q.entries) > 0 {
		obj.Name("OldestFrame").Int(int(q.entries[0].frame))
	}
}
