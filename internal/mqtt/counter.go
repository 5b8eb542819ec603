package mqtt

import (
	"sync"
	"time"
)

// DailyUnits accumulates transfer activity for the current local day
// and starts over after midnight. The ferry loop records cycles from
// its own goroutine while the publish loop reads snapshots, so both
// paths go through one mutex.
type DailyUnits struct {
	now func() time.Time // test hook

	mu       sync.Mutex
	day      string // local date the counters belong to, time.DateOnly
	units    int64
	cycles   int64
	failures int64
}

// NewDailyUnits returns an accumulator that rolls over at midnight in
// loc, or in [time.Local] when loc is nil.
func NewDailyUnits(loc *time.Location) *DailyUnits {
	if loc == nil {
		loc = time.Local
	}
	d := &DailyUnits{now: func() time.Time { return time.Now().In(loc) }}
	d.day = d.now().Format(time.DateOnly)
	return d
}

// OnCycle adds one completed cycle. moved is the number of items that
// reached the store; failed marks a cycle that ended in an error.
func (d *DailyUnits) OnCycle(moved int, failed bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.rollover()
	d.cycles++
	d.units += int64(moved)
	if failed {
		d.failures++
	}
}

// Snapshot reports units moved, cycles run and failed cycles so far
// today.
func (d *DailyUnits) Snapshot() (units, cycles, failures int64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.rollover()
	return d.units, d.cycles, d.failures
}

// rollover clears the counters when the local date has moved on.
// Callers hold d.mu.
func (d *DailyUnits) rollover() {
	if today := d.now().Format(time.DateOnly); today != d.day {
		d.day = today
		d.units, d.cycles, d.failures = 0, 0, 0
	}
}
