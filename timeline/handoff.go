package timeline

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// Dependency is a point on a producer's timeline that consumer work must wait on before it executes
type Dependency struct {
	Timeline *Timeline
	Value    uint64
}

// Satisfied reports whether the producer has already completed the dependency's value
func (d Dependency) Satisfied() (bool, error) {
	if d.Timeline == nil || d.Value == 0 {
		return true, nil
	}

	completed, err := d.Timeline.CompletedFrame()
	if err != nil {
		return false, err
	}
	return completed >= d.Value, nil
}

// Handoff carries explicit cross-queue dependencies from a producer queue (for example async compute)
// to a consumer queue (for example graphics). The producer calls Signal after submitting the work
// whose results the consumer reads, and the consumer's submission calls Take to learn which
// timeline value it must wait on.
type Handoff struct {
	mutex    sync.Mutex
	producer *Timeline
	pending  uint64
}

func NewHandoff(producer *Timeline) *Handoff {
	return &Handoff{producer: producer}
}

// Signal records that the consumer's next submission must wait for the producer's current submitted
// frame, and returns that dependency
func (h *Handoff) Signal() Dependency {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	value := h.producer.SubmittedFrame()
	if value > h.pending {
		h.pending = value
	}

	return Dependency{Timeline: h.producer, Value: value}
}

// Take returns the dependency the consumer must wait on and clears it. The second return value
// is false if nothing was signaled since the last call.
func (h *Handoff) Take() (Dependency, bool) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.pending == 0 {
		return Dependency{}, false
	}

	dep := Dependency{Timeline: h.producer, Value: h.pending}
	h.pending = 0
	return dep, true
}

// WaitAll blocks on the host until every dependency is satisfied. The timeout applies to the
// whole set rather than to each dependency.
func WaitAll(dependencies []Dependency, timeout time.Duration) error {
	var deadline time.Time
	if timeout != WaitForever {
		deadline = time.Now().Add(timeout)
	}

	for _, dep := range dependencies {
		if dep.Timeline == nil {
			continue
		}

		remaining := WaitForever
		if !deadline.IsZero() {
			remaining = time.Until(deadline)
			if remaining < 0 {
				remaining = 0
			}
		}

		err := dep.Timeline.WaitForFrameTimeout(dep.Value, remaining)
		if err != nil {
			return errors.Wrapf(err, "dependency on timeline %s", dep.Timeline.Name())
		}
	}

	return nil
}
