package table

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/arsenal/bindless/bindutils"
	"github.com/vkngwrapper/arsenal/bindless/internal/utils"
	"golang.org/x/exp/slog"
)

// SlotState is the lifecycle state of a single slot
type SlotState uint8

const (
	// SlotFree slots are on the free list and may be returned by Allocate
	SlotFree SlotState = iota
	// SlotOccupied slots hold a live resource
	SlotOccupied
	// SlotPendingFree slots were released but may still be read by in-flight GPU work
	SlotPendingFree
)

var slotStateMapping = map[SlotState]string{
	SlotFree:        "Free",
	SlotOccupied:    "Occupied",
	SlotPendingFree: "PendingFree",
}

func (s SlotState) String() string {
	return slotStateMapping[s]
}

type slot struct {
	state SlotState
	// generation is bumped every time the slot returns to Free, so handles to a previous occupant
	// can be told apart from handles to the current one
	generation uint32
	frame      uint64
	info       SlotInfo
}

type pendingSlot struct {
	index uint32
	frame uint64
}

// SlotAllocator owns the fixed-size slot array of one category. Slots move from Free to Occupied
// on Allocate, from Occupied to PendingFree on FreeDeferred, and back to Free on the first Update
// whose completed frame reaches the frame they were freed in.
type SlotAllocator struct {
	logger   *slog.Logger
	category Category
	mutex    utils.OptionalMutex

	slots    []slot
	freeList []uint32
	pending  []pendingSlot

	occupied   int
	highWater  int
	allocCount int
	freeCount  int
	reclaimed  int
	exhausted  int
	unbalanced int
}

// NewSlotAllocator creates a SlotAllocator with a fixed capacity. A fresh allocator hands out
// indices in ascending order.
func NewSlotAllocator(logger *slog.Logger, category Category, capacity uint32, useMutex bool) *SlotAllocator {
	a := &SlotAllocator{
		logger:   logger,
		category: category,
		mutex:    utils.NewOptionalMutex(useMutex),
		slots:    make([]slot, capacity),
		freeList: make([]uint32, capacity),
	}

	// The free list is a stack, so push in reverse to pop 0 first
	for i := uint32(0); i < capacity; i++ {
		a.freeList[i] = capacity - 1 - i
	}

	return a
}

func (a *SlotAllocator) Category() Category {
	return a.category
}

func (a *SlotAllocator) Capacity() uint32 {
	return uint32(len(a.slots))
}

// Allocate pops a free slot and marks it Occupied. It returns InvalidIndex if the category is exhausted.
func (a *SlotAllocator) Allocate() uint32 {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if len(a.freeList) == 0 {
		a.exhausted++
		return InvalidIndex
	}

	last := len(a.freeList) - 1
	index := a.freeList[last]
	a.freeList = a.freeList[:last]

	bindutils.DebugAssert(a.slots[index].state == SlotFree, "slot %d of %s was on the free list in state %s", index, a.category, a.slots[index].state)

	a.slots[index] = slot{state: SlotOccupied, generation: a.slots[index].generation}
	a.occupied++
	a.allocCount++

	inUse := len(a.slots) - len(a.freeList)
	if inUse > a.highWater {
		a.highWater = inUse
	}

	return index
}

// MarkOccupied attaches diagnostic metadata to an occupied slot. It does not change the slot's state.
func (a *SlotAllocator) MarkOccupied(index uint32, info SlotInfo) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	err := bindutils.CheckRange(index, uint32(len(a.slots)), "slot index")
	if err != nil {
		return err
	}

	if a.slots[index].state != SlotOccupied {
		return errors.Newf("cannot attach info to slot %d of %s in state %s", index, a.category, a.slots[index].state)
	}

	a.slots[index].info = info
	return nil
}

// FreeDeferred moves an occupied slot to PendingFree, tagged with the submitted frame of the command
// that stopped using it. Freeing a slot that is not occupied returns an error wrapping
// bindutils.ErrUnbalancedRelease and leaves the allocator unchanged.
func (a *SlotAllocator) FreeDeferred(index uint32, frame uint64) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	return a.freeDeferred(index, a.generationOf(index), frame, nil)
}

// FreeDeferredGeneration behaves like FreeDeferred, but only frees the slot if it still holds the
// occupant of the provided generation. beforeFree, if not nil, runs under the allocator's lock after
// the slot has been checked and before it changes state, so it cannot race another release of the
// same slot. It must not call back into the allocator.
func (a *SlotAllocator) FreeDeferredGeneration(index uint32, generation uint32, frame uint64, beforeFree func()) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	return a.freeDeferred(index, generation, frame, beforeFree)
}

func (a *SlotAllocator) generationOf(index uint32) uint32 {
	if index >= uint32(len(a.slots)) {
		return 0
	}
	return a.slots[index].generation
}

func (a *SlotAllocator) freeDeferred(index uint32, generation uint32, frame uint64, beforeFree func()) error {
	if index >= uint32(len(a.slots)) {
		a.unbalanced++
		return errors.Wrapf(bindutils.ErrUnbalancedRelease, "slot index %d is out of range for %s with capacity %d", index, a.category, len(a.slots))
	}

	if a.slots[index].state != SlotOccupied {
		a.unbalanced++
		return errors.Wrapf(bindutils.ErrUnbalancedRelease, "slot %d of %s is %s", index, a.category, a.slots[index].state)
	}

	if a.slots[index].generation != generation {
		a.unbalanced++
		return errors.Wrapf(bindutils.ErrUnbalancedRelease, "slot %d of %s was reused: generation %d, released generation %d",
			index, a.category, a.slots[index].generation, generation)
	}

	if beforeFree != nil {
		beforeFree()
	}

	a.slots[index].state = SlotPendingFree
	a.slots[index].frame = frame
	a.pending = append(a.pending, pendingSlot{index: index, frame: frame})
	a.occupied--
	a.freeCount++

	return nil
}

// Update returns every PendingFree slot whose frame is at most completedFrame to the free list and
// returns the number of slots reclaimed. Calling it again with the same value has no further effect.
func (a *SlotAllocator) Update(completedFrame uint64) int {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	kept := 0
	reclaimed := 0
	for _, p := range a.pending {
		if p.frame > completedFrame {
			a.pending[kept] = p
			kept++
			continue
		}

		a.slots[p.index] = slot{state: SlotFree, generation: a.slots[p.index].generation + 1}
		a.freeList = append(a.freeList, p.index)
		reclaimed++
	}
	a.pending = a.pending[:kept]
	a.reclaimed += reclaimed

	if bindutils.DebugEnabled {
		for _, p := range a.pending {
			bindutils.DebugAssert(p.frame > completedFrame, "slot %d of %s freed in frame %d survived an update to frame %d",
				p.index, a.category, p.frame, completedFrame)
		}
	}

	if reclaimed > 0 {
		a.logger.Debug("SlotAllocator::Update",
			slog.String("Category", a.category.String()),
			slog.Uint64("CompletedFrame", completedFrame),
			slog.Int("Reclaimed", reclaimed),
		)
	}

	return reclaimed
}

// State returns the lifecycle state of a slot
func (a *SlotAllocator) State(index uint32) SlotState {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if index >= uint32(len(a.slots)) {
		return SlotFree
	}
	return a.slots[index].state
}

// PendingFrame returns the frame a PendingFree slot was freed in. The second return value is false
// if the slot is not pending.
func (a *SlotAllocator) PendingFrame(index uint32) (uint64, bool) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if index >= uint32(len(a.slots)) || a.slots[index].state != SlotPendingFree {
		return 0, false
	}
	return a.slots[index].frame, true
}

// Info returns the diagnostic metadata of an occupied slot
func (a *SlotAllocator) Info(index uint32) (SlotInfo, bool) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if index >= uint32(len(a.slots)) || a.slots[index].state != SlotOccupied {
		return SlotInfo{}, false
	}
	return a.slots[index].info, true
}

// Generation returns the slot's current generation, which changes each time the slot is reclaimed
func (a *SlotAllocator) Generation(index uint32) uint32 {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	return a.generationOf(index)
}

func (a *SlotAllocator) infoForGeneration(index uint32, generation uint32) (SlotInfo, bool) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if index >= uint32(len(a.slots)) || a.slots[index].state != SlotOccupied || a.slots[index].generation != generation {
		return SlotInfo{}, false
	}
	return a.slots[index].info, true
}

// VisitOccupied calls visit for each occupied slot in index order until visit returns false. The
// allocator is locked for the duration, so visit must not call back into it.
func (a *SlotAllocator) VisitOccupied(visit func(index uint32, info SlotInfo) bool) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	for i := range a.slots {
		if a.slots[i].state != SlotOccupied {
			continue
		}
		if !visit(uint32(i), a.slots[i].info) {
			return
		}
	}
}

func (a *SlotAllocator) AddStatistics(stats *bindutils.SlotStatistics) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	stats.Capacity += len(a.slots)
	stats.Occupied += a.occupied
	stats.PendingFree += len(a.pending)
	stats.Free += len(a.freeList)
	stats.HighWater += a.highWater
	stats.Allocations += a.allocCount
	stats.Releases += a.freeCount
	stats.Reclaimed += a.reclaimed
	stats.Exhausted += a.exhausted
	stats.UnbalancedReleases += a.unbalanced
}

// Validate checks that every slot is accounted for exactly once across the free list, the pending
// list and the occupied set
func (a *SlotAllocator) Validate() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	seen := make([]bool, len(a.slots))
	for _, index := range a.freeList {
		if index >= uint32(len(a.slots)) {
			return errors.Newf("free list of %s contains out-of-range index %d", a.category, index)
		}
		if seen[index] {
			return errors.Newf("slot %d of %s appears on the free list twice", index, a.category)
		}
		if a.slots[index].state != SlotFree {
			return errors.Newf("slot %d of %s is on the free list in state %s", index, a.category, a.slots[index].state)
		}
		seen[index] = true
	}

	for _, p := range a.pending {
		if seen[p.index] {
			return errors.Newf("slot %d of %s is both pending and free, or pending twice", p.index, a.category)
		}
		if a.slots[p.index].state != SlotPendingFree || a.slots[p.index].frame != p.frame {
			return errors.Newf("pending entry for slot %d of %s does not match its slot", p.index, a.category)
		}
		seen[p.index] = true
	}

	occupied := 0
	for i := range a.slots {
		if a.slots[i].state == SlotOccupied {
			occupied++
			if seen[i] {
				return errors.Newf("occupied slot %d of %s is also listed as free or pending", i, a.category)
			}
			continue
		}
		if !seen[i] {
			return errors.Newf("slot %d of %s in state %s is not tracked by any list", i, a.category, a.slots[i].state)
		}
	}

	if occupied != a.occupied {
		return errors.Newf("the listed number of occupied slots of %s (%d) does not match the actual number (%d)", a.category, a.occupied, occupied)
	}

	return nil
}

func (a *SlotAllocator) BuildStatsString(obj *jwriter.ObjectState, detailed bool) {
	var stats bindutils.SlotStatistics
	a.AddStatistics(&stats)
	printSlotStatistics(obj, &stats)

	if !detailed {
		return
	}

	arr := obj.Name("Slots").Array()
	defer arr.End()

	a.VisitOccupied(func(index uint32, info SlotInfo) bool {
		slotObj := arr.Object()
		defer slotObj.End()

		slotObj.Name("Index").Int(int(index))
		if info.Name != "" {
			slotObj.Name("Name").String(info.Name)
		}
		if info.Width > 0 || info.Height > 0 || info.Depth > 0 {
			slotObj.Name("Extent").String(fmt.Sprintf("%dx%dx%d", info.Width, info.Height, info.Depth))
		}
		if info.Format != 0 {
			slotObj.Name("Format").String(fmt.Sprintf("%v", info.Format))
		}
		if info.Size > 0 {
			slotObj.Name("Size").Int(info.Size)
		}
		return true
	})
}

func printSlotStatistics(obj *jwriter.ObjectState, stats *bindutils.SlotStatistics) {
	obj.Name("Capacity").Int(stats.Capacity)
	obj.Name("Occupied").Int(stats.Occupied)
	obj.Name("PendingFree").Int(stats.PendingFree)
	obj.Name("Free").Int(stats.Free)
	obj.Name("HighWater").Int(stats.HighWater)
	obj.Name("Allocations").Int(stats.Allocations)
	obj.Name("Releases").Int(stats.Releases)
	obj.Name("Reclaimed").Int(stats.Reclaimed)
	obj.Name("Exhausted").Int(stats.Exhausted)
	obj.Name("UnbalancedReleases").Int(stats.UnbalancedReleases)
}
