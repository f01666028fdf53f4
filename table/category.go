package table

// Category identifies one sub-range of the bindless table. Each category has its own slot allocator,
// its own binding in the shared descriptor set, and its own placeholder resource.
type Category int

const (
	// CategorySampledImage holds 2D sampled images
	CategorySampledImage Category = iota
	// CategorySampler holds standalone samplers
	CategorySampler
	// CategoryCubemap holds cube sampled images
	CategoryCubemap
	// CategoryStorageBuffer holds storage buffer ranges
	CategoryStorageBuffer
	// CategoryStorageImage holds read/write storage images
	CategoryStorageImage
	// CategorySampledImage3D holds 3D sampled images
	CategorySampledImage3D
	// CategoryShadowImage holds depth images sampled with comparison samplers
	CategoryShadowImage
	// CategoryMultisampleImage holds multisampled 2D images
	CategoryMultisampleImage

	// CategoryCount is the number of categories in the table
	CategoryCount int = iota
)

var categoryMapping = map[Category]string{
	CategorySampledImage:     "SampledImage",
	CategorySampler:          "Sampler",
	CategoryCubemap:          "Cubemap",
	CategoryStorageBuffer:    "StorageBuffer",
	CategoryStorageImage:     "StorageImage",
	CategorySampledImage3D:   "SampledImage3D",
	CategoryShadowImage:      "ShadowImage",
	CategoryMultisampleImage: "MultisampleImage",
}

func (c Category) String() string {
	str, ok := categoryMapping[c]
	if !ok {
		return "Unknown"
	}
	return str
}

// IsValid returns true if the category is one of the table's known sub-ranges
func (c Category) IsValid() bool {
	return c >= 0 && int(c) < CategoryCount
}

// Kind is the native descriptor kind a category is written as, which also determines which
// per-stage hardware limit bounds its capacity
type Kind int

const (
	KindSampledImage Kind = iota
	KindSampler
	KindStorageBuffer
	KindStorageImage
)

var kindMapping = map[Kind]string{
	KindSampledImage:  "SampledImage",
	KindSampler:       "Sampler",
	KindStorageBuffer: "StorageBuffer",
	KindStorageImage:  "StorageImage",
}

func (k Kind) String() string {
	return kindMapping[k]
}

// Kind returns the native descriptor kind for the category
func (c Category) Kind() Kind {
	switch c {
	case CategorySampler:
		return KindSampler
	case CategoryStorageBuffer:
		return KindStorageBuffer
	case CategoryStorageImage:
		return KindStorageImage
	default:
		return KindSampledImage
	}
}

// Categories returns every category in binding order
func Categories() []Category {
	categories := make([]Category, CategoryCount)
	for i := range categories {
		categories[i] = Category(i)
	}
	return categories
}
