// Package timeline builds a pure swimlane data model: one row per
// thread, two kinds of interval per matched acquire/release pair. It
// holds no rendering concerns (pixel scale, colors, coalescing) —
// those live in pkg/timelinehtml, since they only matter once the
// model is projected onto a particular pixel scale.
package timeline

import (
	"sort"

	"lockprof/pkg/types"
)

// IntervalKind distinguishes the "waiting to acquire" phase from the
// "holding the lock" phase of a matched acquire/release pair.
type IntervalKind int

const (
	// Acquiring spans [acquireTs, acquireTs+acquireDur), the "waiting"
	// interval, rendered red.
	Acquiring IntervalKind = iota
	// Held spans [acquireTs+acquireDur, releaseTs), the "held" interval,
	// rendered blue.
	Held
)

// Interval is one rectangle on a swimlane, with timestamps already
// normalized so the earliest event across all threads sits at t=0.
type Interval struct {
	Start    int64
	End      int64
	Kind     IntervalKind
	LockHash int32
}

// Swimlane is one thread's row: its intervals, in the order its
// matched pairs were produced (which preserves per-thread time order).
type Swimlane struct {
	Tid       int64
	Intervals []Interval
}

// Model is the complete timeline: one swimlane per thread, ordered by
// the thread's first-seen timestamp, plus the lock labels needed for
// styling/tooltips.
type Model struct {
	Swimlanes  []Swimlane
	LockLabels []string
}

// Build converts matched acquire/release pairs into a Model. pairs
// need not be sorted; Build derives per-thread ordering and timestamp
// normalization itself.
func Build(pairs []types.MatchedPair, lockLabels []string) *Model {
	if len(pairs) == 0 {
		return &Model{LockLabels: lockLabels}
	}

	offset := pairs[0].AcquireTs
	for _, p := range pairs {
		if p.AcquireTs < offset {
			offset = p.AcquireTs
		}
	}

	lanes := make(map[int64]*Swimlane)
	var order []int64

	for _, p := range pairs {
		lane, ok := lanes[p.Tid]
		if !ok {
			lane = &Swimlane{Tid: p.Tid}
			lanes[p.Tid] = lane
			order = append(order, p.Tid)
		}

		acquireStart := p.AcquireTs - offset
		acquireEnd := acquireStart + p.AcquireDur
		lane.Intervals = append(lane.Intervals, Interval{
			Start:    acquireStart,
			End:      acquireEnd,
			Kind:     Acquiring,
			LockHash: p.LockHash,
		})

		releaseEnd := p.ReleaseTs - offset
		if releaseEnd > acquireEnd {
			lane.Intervals = append(lane.Intervals, Interval{
				Start:    acquireEnd,
				End:      releaseEnd,
				Kind:     Held,
				LockHash: p.LockHash,
			})
		}
	}

	for _, tid := range order {
		lane := lanes[tid]
		sort.SliceStable(lane.Intervals, func(i, j int) bool {
			return lane.Intervals[i].Start < lane.Intervals[j].Start
		})
	}

	// Swimlanes are ordered by first-seen timestamp, not by
	// iteration/arrival order in the (unsorted) pairs slice.
	sort.SliceStable(order, func(i, j int) bool {
		return lanes[order[i]].Intervals[0].Start < lanes[order[j]].Intervals[0].Start
	})

	model := &Model{LockLabels: lockLabels}
	for _, tid := range order {
		model.Swimlanes = append(model.Swimlanes, *lanes[tid])
	}
	return model
}
