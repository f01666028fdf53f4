package bindutils

// SlotStatistics describes the occupancy of one or more bindless slot categories
type SlotStatistics struct {
	Capacity    int
	Occupied    int
	PendingFree int
	Free        int
	// HighWater is the largest number of slots that were simultaneously not free
	HighWater int

	Allocations        int
	Releases           int
	Reclaimed          int
	Exhausted          int
	UnbalancedReleases int
}

func (s *SlotStatistics) Clear() {
	*s = SlotStatistics{}
}

func (s *SlotStatistics) AddStatistics(other *SlotStatistics) {
	s.Capacity += other.Capacity
	s.Occupied += other.Occupied
	s.PendingFree += other.PendingFree
	s.Free += other.Free
	s.HighWater += other.HighWater
	s.Allocations += other.Allocations
	s.Releases += other.Releases
	s.Reclaimed += other.Reclaimed
	s.Exhausted += other.Exhausted
	s.UnbalancedReleases += other.UnbalancedReleases
}

// RegistryStatistics summarizes the contents of a device address registry
type RegistryStatistics struct {
	AliveAllocations int
	FreedAllocations int
	AliveBytes       uint64

	Events          int
	LiveRanges      int
	Tombstones      int
	Splits          int
	UnbindAnomalies int
}
