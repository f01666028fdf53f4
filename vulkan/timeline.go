package vulkan

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/arsenal/bindless/bindutils"
	"github.com/vkngwrapper/arsenal/bindless/timeline"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/core1_2"
)

// SemaphoreCounter is the subset of core1_2.Semaphore used to read a timeline semaphore's value
type SemaphoreCounter interface {
	CounterValue() (uint64, common.VkResult, error)
}

// SemaphoreWaiter is the subset of core1_2.Device used to block on timeline semaphores
type SemaphoreWaiter interface {
	WaitSemaphores(timeout time.Duration, o core1_2.SemaphoreWaitInfo) (common.VkResult, error)
}

// TimelineCounter backs a timeline.Timeline with a timeline semaphore that the last submission of
// every frame signals with that frame's value
type TimelineCounter struct {
	semaphore core1_0.Semaphore
	counter   SemaphoreCounter
	waiter    SemaphoreWaiter
}

var _ timeline.CounterSource = &TimelineCounter{}

// NewTimelineCounter creates a TimelineCounter. counter is usually the core1_2 promotion of semaphore,
// and waiter the core1_2 promotion of the device that owns it.
func NewTimelineCounter(semaphore core1_0.Semaphore, counter SemaphoreCounter, waiter SemaphoreWaiter) *TimelineCounter {
	return &TimelineCounter{
		semaphore: semaphore,
		counter:   counter,
		waiter:    waiter,
	}
}

func mapResult(res common.VkResult, err error, operation string) error {
	if res == core1_0.VKErrorDeviceLost {
		return errors.Wrapf(bindutils.ErrDeviceLost, "%s returned %v", operation, res)
	}
	if err != nil {
		return errors.Wrapf(err, "%s failed", operation)
	}
	return nil
}

func (c *TimelineCounter) CounterValue() (uint64, error) {
	value, res, err := c.counter.CounterValue()
	err = mapResult(res, err, "vkGetSemaphoreCounterValue")
	if err != nil {
		return 0, err
	}
	return value, nil
}

func (c *TimelineCounter) Wait(value uint64, timeout time.Duration) (bool, error) {
	res, err := c.waiter.WaitSemaphores(timeout, core1_2.SemaphoreWaitInfo{
		Semaphores: []core1_0.Semaphore{c.semaphore},
		Values:     []uint64{value},
	})
	if res == core1_0.VKTimeout {
		return false, nil
	}

	err = mapResult(res, err, "vkWaitSemaphores")
	if err != nil {
		return false, err
	}
	return true, nil
}
