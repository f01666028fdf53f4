package table

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"golang.org/x/exp/slog"
)

// CreateFlags indicate specific table behaviors to activate or deactivate
type CreateFlags int32

var tableCreateFlagsMapping = common.NewFlagStringMapping[CreateFlags]()

func (f CreateFlags) Register(str string) {
	tableCreateFlagsMapping.Register(f, str)
}
func (f CreateFlags) String() string {
	return tableCreateFlagsMapping.FlagsToString(f)
}

const (
	// TableCreateExternallySynchronized ensures that the table and its slot allocators will not be
	// synchronized internally. The consumer must guarantee they are used from only one goroutine at
	// a time or are synchronized by some other mechanism.
	TableCreateExternallySynchronized CreateFlags = 1 << iota
	// TableCreatePrefillPlaceholders writes each category's placeholder into every one of its slots
	// when the table is created, for descriptor sets that are not created partially bound
	TableCreatePrefillPlaceholders
)

func init() {
	TableCreateExternallySynchronized.Register("TableCreateExternallySynchronized")
	TableCreatePrefillPlaceholders.Register("TableCreatePrefillPlaceholders")
}

// CategoryOptions contains optional per-category settings
type CategoryOptions struct {
	// MaxSlots clamps the category's capacity below the hardware and engine limits. Zero means
	// no additional clamp.
	MaxSlots uint32
	// Disabled categories get a capacity of zero and do not need a placeholder
	Disabled bool
}

// CreateOptions contains the settings used to create a Table
type CreateOptions struct {
	// Flags indicates specific table behaviors to activate or deactivate
	Flags CreateFlags
	// Limits are the hardware's per-stage binding limits
	Limits Limits
	// MaxSlotsPerCategory is the engine-wide maximum capacity of each category. Zero means
	// DefaultMaxSlotsPerCategory.
	MaxSlotsPerCategory uint32
	// Categories holds per-category settings and may be left empty
	Categories map[Category]CategoryOptions
	// Placeholders holds the harmless resource written into a slot when it is released. Every
	// category with a nonzero capacity must have one.
	Placeholders map[Category]Resource
}

// New creates a new Table
//
// writer - Writes individual slots of the shader-visible descriptor set
//
// frames - Provides the submitted frame that released slots are tagged with
//
// options - Limits and placeholders are required, everything else is optional
func New(logger *slog.Logger, writer DescriptorWriter, frames FrameSource, options CreateOptions) (*Table, error) {
	if writer == nil {
		return nil, errors.New("a DescriptorWriter is required to create a bindless table")
	}
	if frames == nil {
		return nil, errors.New("a FrameSource is required to create a bindless table")
	}

	useMutex := options.Flags&TableCreateExternallySynchronized == 0

	t := &Table{
		logger: logger,
		writer: writer,
		frames: frames,
	}

	for _, category := range Categories() {
		categoryOptions := options.Categories[category]

		var capacity uint32
		if !categoryOptions.Disabled {
			capacity = options.Limits.Capacity(category, options.MaxSlotsPerCategory, categoryOptions.MaxSlots)
		}

		if capacity > 0 {
			placeholder, ok := options.Placeholders[category]
			if !ok {
				return nil, errors.Newf("category %s has capacity %d but no placeholder resource", category, capacity)
			}
			t.placeholders[category] = placeholder
		}

		t.allocators[category] = NewSlotAllocator(logger, category, capacity, useMutex)

		logger.Debug("Table::New",
			slog.String("Category", category.String()),
			slog.Int("Capacity", int(capacity)),
		)
	}

	if options.Flags&TableCreatePrefillPlaceholders != 0 {
		err := t.prefill()
		if err != nil {
			return nil, err
		}
	}

	return t, nil
}

func (t *Table) prefill() error {
	for _, category := range Categories() {
		capacity := t.allocators[category].Capacity()
		for index := uint32(0); index < capacity; index++ {
			err := t.writer.WriteSlot(category, index, t.placeholders[category])
			if err != nil {
				return errors.Wrapf(err, "failed to prefill slot %d of %s with its placeholder", index, category)
			}
		}
	}

	return nil
}
