package addrreg

import (
	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/vkngwrapper/arsenal/bindless/bindutils"
	"github.com/vkngwrapper/arsenal/bindless/internal/utils"
	"golang.org/x/exp/slices"
	"golang.org/x/exp/slog"
)

// Registry maps raw device addresses back to the allocations that own them, and keeps an audit log
// of the address bind and unbind notifications reported by the driver. It exists to classify GPU
// faults after the fact, so nothing it records is ever discarded.
type Registry struct {
	logger  *slog.Logger
	options Options
	mutex   utils.OptionalRWMutex

	// records is ordered by BaseAddress, and by registration order among equal bases
	records []*AllocationRecord
	live    *swiss.Map[uint64, *AllocationRecord]
	maxSize uint64

	events   []RangeEvent
	sequence uint64

	splits    int
	anomalies int
}

func New(logger *slog.Logger, options Options) *Registry {
	return &Registry{
		logger:  logger,
		options: options,
		mutex:   utils.NewOptionalRWMutex(!options.ExternallySynchronized),
		live:    swiss.NewMap[uint64, *AllocationRecord](64),
	}
}

func (r *Registry) Enabled() bool {
	return r.options.Enabled
}

func (r *Registry) CaptureOnFault() bool {
	return r.options.Enabled && r.options.CaptureOnFault
}

// upperBound returns the position of the first record whose base is greater than address
func (r *Registry) upperBound(address uint64) int {
	index, _ := slices.BinarySearchFunc(r.records, address, func(record *AllocationRecord, target uint64) int {
		if record.BaseAddress <= target {
			return -1
		}
		return 1
	})
	return index
}

// RegisterBuffer records a new live allocation at address. Registering over a base address that is
// still alive retires the old record first, since the driver can only hand out the same address
// again after the previous owner was destroyed.
func (r *Registry) RegisterBuffer(address, size uint64, name string, frame uint64) {
	if !r.options.Enabled {
		return
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	previous, exists := r.live.Get(address)
	if exists {
		r.logger.Warn("device address registered while a live allocation still owns it",
			slog.String("Previous", previous.Name),
			slog.String("Name", name),
			slog.Uint64("Address", address),
		)
		previous.IsAlive = false
		previous.FrameFreed = frame
	}

	record := &AllocationRecord{
		BaseAddress:  address,
		Size:         size,
		Name:         name,
		FrameCreated: frame,
		IsAlive:      true,
	}
	r.records = slices.Insert(r.records, r.upperBound(address), record)
	r.live.Put(address, record)
	if size > r.maxSize {
		r.maxSize = size
	}

	r.logger.Debug("Registry::RegisterBuffer",
		slog.String("Name", name),
		slog.Uint64("Address", address),
		slog.Uint64("Size", size),
		slog.Uint64("Frame", frame),
	)
}

// UnregisterBuffer marks the live allocation at address dead as of frame. The record is kept so
// that faults on the address can be classified as use-after-free.
func (r *Registry) UnregisterBuffer(address uint64, frame uint64) error {
	if !r.options.Enabled {
		return nil
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	record, exists := r.live.Get(address)
	if !exists {
		r.logger.Warn("unregistered a device address with no live allocation", slog.Uint64("Address", address))
		return errors.Wrapf(bindutils.ErrUnknownAddress, "no live allocation at 0x%x", address)
	}

	record.IsAlive = false
	record.FrameFreed = frame
	r.live.Delete(address)

	r.logger.Debug("Registry::UnregisterBuffer",
		slog.String("Name", record.Name),
		slog.Uint64("Address", address),
		slog.Uint64("Frame", frame),
	)
	return nil
}

func (r *Registry) findAllocation(address uint64) (*AllocationRecord, bool) {
	var freed *AllocationRecord

	for i := r.upperBound(address) - 1; i >= 0; i-- {
		record := r.records[i]
		if address-record.BaseAddress >= r.maxSize {
			// Every earlier record starts even further away
			break
		}
		if !record.Contains(address) {
			continue
		}
		if record.IsAlive {
			return record, true
		}
		if freed == nil || record.FrameFreed > freed.FrameFreed {
			freed = record
		}
	}

	return freed, freed != nil
}

// FindAllocation returns a copy of the record whose range contains address. A live record is
// preferred over dead ones, and among dead records the most recently freed wins.
func (r *Registry) FindAllocation(address uint64) (AllocationRecord, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	record, found := r.findAllocation(address)
	if !found {
		return AllocationRecord{}, false
	}
	return *record, true
}

// Classify returns nil if address lies inside a live allocation, an error wrapping
// bindutils.ErrUseAfterFree if it lies only inside freed allocations, and an error wrapping
// bindutils.ErrUnknownAddress otherwise
func (r *Registry) Classify(address uint64) error {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	record, found := r.findAllocation(address)
	if !found {
		return errors.Wrapf(bindutils.ErrUnknownAddress, "address 0x%x", address)
	}
	if !record.IsAlive {
		return errors.Wrapf(bindutils.ErrUseAfterFree, "address 0x%x is inside %q, freed at frame %d", address, record.Name, record.FrameFreed)
	}
	return nil
}

// Allocations returns a copy of every allocation record, live and dead, in address order
func (r *Registry) Allocations() []AllocationRecord {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	out := make([]AllocationRecord, 0, len(r.records))
	for _, record := range r.records {
		out = append(out, *record)
	}
	return out
}

func (r *Registry) nextSequence() uint64 {
	r.sequence++
	return r.sequence
}

// OnAddressBinding processes one driver address binding notification. Bind notifications are
// appended as live events. An unbind first retires live events with exactly the same range; failing
// that it retires every overlapping live event and keeps the parts lying outside the unbound range
// alive as new events; failing that it appends a dead tombstone. Unbinding memory that still
// belongs to a live registered allocation is logged as an anomaly.
func (r *Registry) OnAddressBinding(bindingType BindingType, address, size uint64, flags BindingFlags, objects []Object) {
	if !r.options.Enabled {
		return
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	event := RangeEvent{
		Base:        address,
		Size:        size,
		BindingType: bindingType,
		Flags:       flags,
		Objects:     slices.Clone(objects),
	}

	if bindingType == BindingTypeBind {
		event.Alive = true
		event.Sequence = r.nextSequence()
		r.events = append(r.events, event)

		r.logger.Debug("Registry::OnAddressBinding",
			slog.String("Type", bindingType.String()),
			slog.Uint64("Address", address),
			slog.Uint64("Size", size),
			slog.Uint64("Sequence", event.Sequence),
		)
		return
	}

	r.checkUnbindAgainstAllocations(event)

	if r.retireExact(address, size) {
		return
	}

	if r.retireOverlapping(address, size) {
		return
	}

	event.Sequence = r.nextSequence()
	r.events = append(r.events, event)
	r.logger.Debug("Registry::OnAddressBinding",
		slog.String("Type", bindingType.String()),
		slog.Uint64("Address", address),
		slog.Uint64("Size", size),
		slog.String("Result", "Tombstone"),
	)
}

func (r *Registry) checkUnbindAgainstAllocations(event RangeEvent) {
	r.live.Iter(func(_ uint64, record *AllocationRecord) bool {
		if bindutils.RangesOverlap(record.BaseAddress, record.Size, event.Base, event.Size) {
			r.anomalies++
			r.logger.Error("driver unbound a device address range that overlaps a live tracked buffer",
				slog.String("Buffer", record.Name),
				slog.Uint64("BufferAddress", record.BaseAddress),
				slog.Uint64("BufferSize", record.Size),
				slog.Uint64("Address", event.Base),
				slog.Uint64("Size", event.Size),
				slog.String("Objects", event.objectNames()),
			)
		}
		return false
	})
}

func (r *Registry) retireExact(address, size uint64) bool {
	matched := false
	for i := range r.events {
		event := &r.events[i]
		if !event.Alive || event.Base != address || event.Size != size {
			continue
		}

		event.Alive = false
		event.Sequence = r.nextSequence()
		matched = true
	}

	if matched {
		r.logger.Debug("Registry::OnAddressBinding",
			slog.Uint64("Address", address),
			slog.Uint64("Size", size),
			slog.String("Result", "ExactMatch"),
		)
	}
	return matched
}

func (r *Registry) retireOverlapping(address, size uint64) bool {
	end := address + size
	overlapped := false

	// Remainders are appended past count and are never revisited
	count := len(r.events)
	for i := 0; i < count; i++ {
		if !r.events[i].Alive || !bindutils.RangesOverlap(r.events[i].Base, r.events[i].Size, address, size) {
			continue
		}

		r.events[i].Alive = false
		r.events[i].Sequence = r.nextSequence()
		overlapped = true

		retired := r.events[i]
		if retired.Base < address {
			left := retired.clone()
			left.Size = address - retired.Base
			left.BindingType = BindingTypeBind
			left.Alive = true
			left.Sequence = r.nextSequence()
			r.events = append(r.events, left)
		}
		if retired.End() > end {
			right := retired.clone()
			right.Base = end
			right.Size = retired.End() - end
			right.BindingType = BindingTypeBind
			right.Alive = true
			right.Sequence = r.nextSequence()
			r.events = append(r.events, right)
		}
		r.splits++
	}

	if overlapped {
		r.logger.Debug("Registry::OnAddressBinding",
			slog.Uint64("Address", address),
			slog.Uint64("Size", size),
			slog.String("Result", "Split"),
		)
	}
	return overlapped
}

// Snapshot returns a point-in-time deep copy of the entire event log
func (r *Registry) Snapshot() []RangeEvent {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	out := make([]RangeEvent, 0, len(r.events))
	for _, event := range r.events {
		out = append(out, event.clone())
	}
	return out
}

func (r *Registry) liveRanges() []RangeEvent {
	var out []RangeEvent
	for _, event := range r.events {
		if event.Alive {
			out = append(out, event.clone())
		}
	}

	slices.SortFunc(out, func(a, b RangeEvent) bool {
		if a.Base != b.Base {
			return a.Base < b.Base
		}
		return a.Sequence < b.Sequence
	})
	return out
}

// LiveRanges returns a copy of every live event, ordered by base address
func (r *Registry) LiveRanges() []RangeEvent {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return r.liveRanges()
}

func (r *Registry) Statistics() bindutils.RegistryStatistics {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	stats := bindutils.RegistryStatistics{
		Events:          len(r.events),
		Splits:          r.splits,
		UnbindAnomalies: r.anomalies,
	}

	for _, record := range r.records {
		if record.IsAlive {
			stats.AliveAllocations++
			stats.AliveBytes += record.Size
		} else {
			stats.FreedAllocations++
		}
	}

	for _, event := range r.events {
		if event.Alive {
			stats.LiveRanges++
		} else if event.BindingType == BindingTypeUnbind {
			stats.Tombstones++
		}
	}

	return stats
}

func (r *Registry) Validate() error {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	liveCount := 0
	for i, record := range r.records {
		if i > 0 && r.records[i-1].BaseAddress > record.BaseAddress {
			return errors.Newf("allocation records are out of order at index %d", i)
		}
		if record.Size > r.maxSize {
			return errors.Newf("allocation %q is larger than the tracked maximum size", record.Name)
		}
		if !record.IsAlive {
			continue
		}

		liveCount++
		indexed, ok := r.live.Get(record.BaseAddress)
		if !ok || indexed != record {
			return errors.Newf("live allocation %q at 0x%x is missing from the live index", record.Name, record.BaseAddress)
		}
	}

	if liveCount != r.live.Count() {
		return errors.Newf("live index holds %d allocations but %d records are alive", r.live.Count(), liveCount)
	}

	sequences := swiss.NewMap[uint64, struct{}](uint32(len(r.events)))
	for _, event := range r.events {
		if event.Sequence == 0 || event.Sequence > r.sequence {
			return errors.Newf("event at 0x%x has sequence %d outside of [1, %d]", event.Base, event.Sequence, r.sequence)
		}
		if sequences.Has(event.Sequence) {
			return errors.Newf("sequence %d is assigned to more than one event", event.Sequence)
		}
		sequences.Put(event.Sequence, struct{}{})

		if event.Alive && event.BindingType != BindingTypeBind {
			return errors.Newf("live event at 0x%x is not a bind", event.Base)
		}
	}

	return nil
}
