package timeline

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/arsenal/bindless/bindutils"
)

// HostCounter is a CounterSource driven from the CPU. It stands in for a timeline semaphore on
// backends without one, and gives tests a deterministic GPU.
type HostCounter struct {
	mutex   sync.Mutex
	value   uint64
	changed chan struct{}
}

var _ CounterSource = &HostCounter{}

func NewHostCounter(initial uint64) *HostCounter {
	return &HostCounter{
		value:   initial,
		changed: make(chan struct{}),
	}
}

// Signal raises the counter to value. Values lower than the current counter are ignored.
func (c *HostCounter) Signal(value uint64) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if value <= c.value || c.value == bindutils.DeviceLostValue {
		return
	}

	c.value = value
	close(c.changed)
	c.changed = make(chan struct{})
}

// Lose moves the counter to the lost-device sentinel and wakes every waiter
func (c *HostCounter) Lose() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.value = bindutils.DeviceLostValue
	close(c.changed)
	c.changed = make(chan struct{})
}

func (c *HostCounter) CounterValue() (uint64, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.value, nil
}

func (c *HostCounter) Wait(value uint64, timeout time.Duration) (bool, error) {
	var expired <-chan time.Time
	if timeout != WaitForever {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		c.mutex.Lock()
		current := c.value
		changed := c.changed
		c.mutex.Unlock()

		if current == bindutils.DeviceLostValue {
			return false, errors.Wrap(bindutils.ErrDeviceLost, "host counter was lost while waiting")
		}
		if current >= value {
			return true, nil
		}

		select {
		case <-changed:
		case <-expired:
			return false, nil
		}
	}
}
