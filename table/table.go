package table

import (
	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/arsenal/bindless/bindutils"
	"github.com/vkngwrapper/core/v2/core1_0"
	"golang.org/x/exp/slog"
)

// FrameSource provides the submitted frame that released slots are tagged with. A *timeline.Timeline
// satisfies it.
type FrameSource interface {
	SubmittedFrame() uint64
}

// Table is the single shader-visible bindless table. Each Category is a sub-range of the table with
// its own SlotAllocator. Slots are written one at a time and never move, so registering or releasing
// a resource never disturbs draws reading other slots.
type Table struct {
	logger *slog.Logger
	writer DescriptorWriter
	frames FrameSource

	allocators   [CategoryCount]*SlotAllocator
	placeholders [CategoryCount]Resource
}

// Register allocates a slot in category, writes resource into it and attaches info for introspection.
// If the category is exhausted, it returns InvalidHandle and an error wrapping
// bindutils.ErrCapacityExhausted. Callers should fall back to a placeholder or skip the draw.
func (t *Table) Register(category Category, resource Resource, info SlotInfo) (Handle, error) {
	if !category.IsValid() {
		return InvalidHandle, errors.Newf("unknown bindless category %d", category)
	}

	allocator := t.allocators[category]
	index := allocator.Allocate()
	if index == InvalidIndex {
		t.logger.Warn("bindless category exhausted",
			slog.String("Category", category.String()),
			slog.Int("Capacity", int(allocator.Capacity())),
			slog.String("Name", info.Name),
		)
		return InvalidHandle, errors.Wrapf(bindutils.ErrCapacityExhausted, "category %s has no free slots out of %d", category, allocator.Capacity())
	}

	err := t.writer.WriteSlot(category, index, resource)
	if err != nil {
		// The handle was never published, so nothing can reference the slot. Frame 0 makes it
		// eligible for reclamation on the next update.
		freeErr := allocator.FreeDeferred(index, 0)
		if freeErr != nil {
			t.logger.Error("failed to return slot after a failed descriptor write", slog.Any("error", freeErr))
		}
		return InvalidHandle, errors.Wrapf(err, "failed to write slot %d of %s", index, category)
	}

	err = allocator.MarkOccupied(index, info)
	if err != nil {
		return InvalidHandle, err
	}

	// The slot is Occupied, so its generation cannot change until this handle is released
	handle := newHandle(category, index, allocator.Generation(index))
	t.logger.Debug("Table::Register", slog.String("Handle", handle.String()), slog.String("Name", info.Name))
	return handle, nil
}

// RegisterSampledImage registers a 2D sampled image view
func (t *Table) RegisterSampledImage(view core1_0.ImageView, layout core1_0.ImageLayout, info SlotInfo) (Handle, error) {
	return t.Register(CategorySampledImage, Resource{ImageView: view, ImageLayout: layout}, info)
}

// RegisterSampler registers a sampler
func (t *Table) RegisterSampler(sampler core1_0.Sampler, info SlotInfo) (Handle, error) {
	return t.Register(CategorySampler, Resource{Sampler: sampler}, info)
}

// RegisterCubemap registers a cube image view
func (t *Table) RegisterCubemap(view core1_0.ImageView, layout core1_0.ImageLayout, info SlotInfo) (Handle, error) {
	return t.Register(CategoryCubemap, Resource{ImageView: view, ImageLayout: layout}, info)
}

// RegisterStorageBuffer registers the range [offset, offset+size) of a buffer
func (t *Table) RegisterStorageBuffer(buffer core1_0.Buffer, offset, size int, info SlotInfo) (Handle, error) {
	if info.Size == 0 {
		info.Size = size
	}
	return t.Register(CategoryStorageBuffer, Resource{Buffer: buffer, Offset: offset, Range: size}, info)
}

// RegisterStorageImage registers an image view for read/write access in the General layout
func (t *Table) RegisterStorageImage(view core1_0.ImageView, info SlotInfo) (Handle, error) {
	return t.Register(CategoryStorageImage, Resource{ImageView: view, ImageLayout: core1_0.ImageLayoutGeneral}, info)
}

// RegisterSampledImage3D registers a 3D sampled image view
func (t *Table) RegisterSampledImage3D(view core1_0.ImageView, layout core1_0.ImageLayout, info SlotInfo) (Handle, error) {
	return t.Register(CategorySampledImage3D, Resource{ImageView: view, ImageLayout: layout}, info)
}

// RegisterShadowImage registers a depth image view sampled with comparison samplers
func (t *Table) RegisterShadowImage(view core1_0.ImageView, layout core1_0.ImageLayout, info SlotInfo) (Handle, error) {
	return t.Register(CategoryShadowImage, Resource{ImageView: view, ImageLayout: layout}, info)
}

// RegisterMultisampleImage registers a multisampled image view
func (t *Table) RegisterMultisampleImage(view core1_0.ImageView, layout core1_0.ImageLayout, info SlotInfo) (Handle, error) {
	return t.Register(CategoryMultisampleImage, Resource{ImageView: view, ImageLayout: layout}, info)
}

// Release immediately overwrites the handle's slot with its category's placeholder, so in-flight
// shaders still reading the index see harmless data, then frees the slot deferred to the current
// submitted frame. Releasing an invalid handle, an already-released handle, or a stale handle whose
// slot has since been reused is logged and returns an error wrapping bindutils.ErrUnbalancedRelease
// without touching the table.
func (t *Table) Release(handle Handle) error {
	if !handle.IsValid() {
		t.logger.Warn("released an invalid bindless handle")
		return errors.Wrap(bindutils.ErrUnbalancedRelease, "handle is invalid")
	}

	category := handle.Category()
	index := handle.Index()
	allocator := t.allocators[category]
	frame := t.frames.SubmittedFrame()

	// The slot check, placeholder write and free happen under the allocator's lock so a concurrent
	// release or reuse of the same slot cannot slip in between them
	err := allocator.FreeDeferredGeneration(index, handle.Generation(), frame, func() {
		writeErr := t.writer.WriteSlot(category, index, t.placeholders[category])
		if writeErr != nil {
			// The slot still points at the released resource, which stays valid until the same frame
			// retires, so continue with the deferred free
			t.logger.Error("failed to write placeholder into released slot",
				slog.String("Handle", handle.String()),
				slog.Any("error", writeErr),
			)
		}
	})
	if err != nil {
		t.logger.Warn("unbalanced bindless release", slog.String("Handle", handle.String()), slog.Any("error", err))
		return err
	}

	t.logger.Debug("Table::Release", slog.String("Handle", handle.String()), slog.Uint64("Frame", frame))
	return nil
}

// Update reclaims the slots of every category whose release frame is at most completedFrame and
// returns the number of slots reclaimed
func (t *Table) Update(completedFrame uint64) int {
	reclaimed := 0
	for _, allocator := range t.allocators {
		reclaimed += allocator.Update(completedFrame)
	}

	bindutils.DebugValidate(t)
	return reclaimed
}

// Allocator returns the slot allocator that owns category
func (t *Table) Allocator(category Category) *SlotAllocator {
	if !category.IsValid() {
		return nil
	}
	return t.allocators[category]
}

// Info returns the diagnostic metadata of the slot a handle refers to
func (t *Table) Info(handle Handle) (SlotInfo, bool) {
	if !handle.IsValid() {
		return SlotInfo{}, false
	}
	return t.allocators[handle.Category()].infoForGeneration(handle.Index(), handle.Generation())
}

// Statistics returns the slot statistics of a single category
func (t *Table) Statistics(category Category) bindutils.SlotStatistics {
	var stats bindutils.SlotStatistics
	if category.IsValid() {
		t.allocators[category].AddStatistics(&stats)
	}
	return stats
}

// TotalStatistics returns the slot statistics summed across every category
func (t *Table) TotalStatistics() bindutils.SlotStatistics {
	var stats bindutils.SlotStatistics
	for _, allocator := range t.allocators {
		allocator.AddStatistics(&stats)
	}
	return stats
}

func (t *Table) Validate() error {
	for _, allocator := range t.allocators {
		err := allocator.Validate()
		if err != nil {
			return err
		}
	}

	return nil
}

// BuildStatsString writes the table's statistics as a JSON object. When detailed is true, every
// occupied slot is listed with its metadata.
func (t *Table) BuildStatsString(writer *jwriter.Writer, detailed bool) {
	obj := writer.Object()
	defer obj.End()

	total := t.TotalStatistics()
	totalObj := obj.Name("Total").Object()
	printSlotStatistics(&totalObj, &total)
	totalObj.End()

	categoriesObj := obj.Name("Categories").Object()
	defer categoriesObj.End()

	for _, allocator := range t.allocators {
		categoryObj := categoriesObj.Name(allocator.Category().String()).Object()
		allocator.BuildStatsString(&categoryObj, detailed)
		categoryObj.End()
	}
}
