package engine

import (
	"time"

	"github.com/icryo/backplane-tui/internal/runtime"
)

// ContainerRecord is the store's canonical entry for one container. Identity
// (the runtime id) is stable across refresh cycles: inventory updates mutate
// the record in place, never replace it, so selection and per-record history
// survive reordering.
type ContainerRecord struct {
	ID      string
	Name    string
	Image   string
	State   string
	Status  string
	Ports   []runtime.PortMapping
	Created time.Time

	// Stats is the latest derived usage view, nil until the first sample.
	Stats *StatsView

	// StatsErr marks this container's stats as unavailable; cleared by the
	// next successful sample.
	StatsErr string

	// MissingSince tombstones the record when the container disappears from
	// inventory. Zero while present. Tombstones are purged after the grace
	// window so a transient daemon error does not flicker the list.
	MissingSince time.Time

	// prev retains exactly one prior sample for counter differencing. Owned
	// by the record so removed containers leave no dangling cache entries.
	prev *runtime.StatsSample
}

// StatsView is the render-ready usage for one container: the latest sample
// plus rates derived from the previous one.
type StatsView struct {
	Time          time.Time
	CPUPercent    float64
	MemoryUsed    uint64
	MemoryLimit   uint64
	MemoryPercent float64
	RxBytes       uint64
	TxBytes       uint64
	RxRate        float64 // bytes/sec
	TxRate        float64 // bytes/sec
}

// Running reports whether the record's container is running.
func (r *ContainerRecord) Running() bool {
	return r.State == "running"
}

// Tombstoned reports whether the container is currently missing from
// inventory but retained within the grace window.
func (r *ContainerRecord) Tombstoned() bool {
	return !r.MissingSince.IsZero()
}

// observeStats folds a new sample into the record, superseding the previous
// view and deriving RX/TX rates from the retained prior sample. A counter
// that moved backwards (daemon restart, container recreate) is treated as a
// fresh baseline: the rate clamps to zero, never negative. Samples that are
// not newer than the retained one are ignored so rates never divide by a
// non-positive interval.
func (r *ContainerRecord) observeStats(s runtime.StatsSample) {
	if r.prev != nil && !s.Time.After(r.prev.Time) {
		return
	}

	view := &StatsView{
		Time:          s.Time,
		CPUPercent:    s.CPUPercent,
		MemoryUsed:    s.MemoryUsed,
		MemoryLimit:   s.MemoryLimit,
		MemoryPercent: s.MemoryPercent(),
		RxBytes:       s.RxBytes,
		TxBytes:       s.TxBytes,
	}

	if r.prev != nil {
		elapsed := s.Time.Sub(r.prev.Time).Seconds()
		if elapsed > 0 {
			view.RxRate = counterRate(r.prev.RxBytes, s.RxBytes, elapsed)
			view.TxRate = counterRate(r.prev.TxBytes, s.TxBytes, elapsed)
		}
	}

	sample := s
	r.prev = &sample
	r.Stats = view
	r.StatsErr = ""
}

// counterRate derives a per-second rate from two monotonic counter readings,
// clamping resets to zero.
func counterRate(prev, cur uint64, elapsed float64) float64 {
	if cur < prev {
		return 0
	}
	return float64(cur-prev) / elapsed
}

// applyInventory refreshes the identity-stable fields from an inventory
// listing and clears any tombstone. Stats history is untouched.
func (r *ContainerRecord) applyInventory(c runtime.Container) {
	r.Name = c.Name
	r.Image = c.Image
	r.State = c.State
	r.Status = c.Status
	r.Ports = c.Ports
	r.Created = c.Created
	r.MissingSince = time.Time{}
}

// lineRing is a bounded FIFO of log lines. Appends past capacity evict the
// oldest line.
type lineRing struct {
	lines []string
	max   int
}

func newLineRing(max int) *lineRing {
	if max <= 0 {
		max = 1
	}
	return &lineRing{max: max}
}

func (r *lineRing) append(line string) {
	r.lines = append(r.lines, line)
	if len(r.lines) > r.max {
		// Shift instead of reslice so the backing array doesn't pin evicted
		// lines forever.
		copy(r.lines, r.lines[len(r.lines)-r.max:])
		r.lines = r.lines[:r.max]
	}
}

func (r *lineRing) all() []string {
	return r.lines
}

func (r *lineRing) len() int {
	return len(r.lines)
}
