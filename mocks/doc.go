package mocks

//go:generate mockgen -destination counter_source.go -package mocks github.com/vkngwrapper/arsenal/bindless/timeline CounterSource
//go:generate mockgen -destination descriptor_writer.go -package mocks github.com/vkngwrapper/arsenal/bindless/table DescriptorWriter
//go:generate mockgen -destination vulkan.go -package mocks github.com/vkngwrapper/arsenal/bindless/vulkan DescriptorUpdater,SemaphoreCounter,SemaphoreWaiter
