package journal

import "time"

// Entry is one stored cycle. Power is kept in watts and current in
// milliamps as integers.
type Entry struct {
	ID             int64
	Time           time.Time
	Cycle          uint64
	CurrentLimitMA uint32
	ConsumptionW   uint32
	GenerationW    uint32
	MeasuredMA     uint32
	DeductionMA    [3]uint32
	AllowanceMA    [3]uint32
	Queued         bool
}
