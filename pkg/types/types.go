// Package types holds the core value types shared across lockprof's
// tracer and aggregator: stack frames/traces, the fixed-size hot-path
// event record, and the per-lock statistics the aggregator produces.
package types

// StackFrame is a single entry of a captured call stack, innermost
// frames captured first. Value type, compared structurally.
type StackFrame struct {
	File         string `json:"file"`
	LineNo       int    `json:"lineNo"`
	FunctionName string `json:"functionName"`
}

// StackTrace is an ordered, innermost-first sequence of frames.
type StackTrace []StackFrame

// Equal reports whether two traces have the same frames in the same order.
func (t StackTrace) Equal(other StackTrace) bool {
	if len(t) != len(other) {
		return false
	}
	for i := range t {
		if t[i] != other[i] {
			return false
		}
	}
	return true
}

// DurationRelease is the sentinel duration value a release event carries.
const DurationRelease int64 = -1

// Event is the fixed-size hot-path record appended to a tracer shard on
// every acquire/release. It is a plain value (no pointers) so it can be
// appended to a slice without per-event heap allocation once the slice
// has spare capacity.
type Event struct {
	Timestamp int64 // ns since the clock package's epoch
	Duration  int64 // wait time for an acquire; DurationRelease for a release
	Tid       int64 // goroutine id of the calling goroutine
	LockHash  int32
	StackHash int32 // populated for acquires; may be 0 (empty trace) for releases
}

// IsRelease reports whether this event is a release event.
func (e Event) IsRelease() bool {
	return e.Duration < 0
}

// IsAcquire reports whether this event is an acquire event.
func (e Event) IsAcquire() bool {
	return e.Duration >= 0
}

// LockStats accumulates the per-lock (or per file/line/lock) counters.
// Depth is a private accounting field used only during aggregation; it
// is never serialized.
type LockStats struct {
	Hits             int64 `json:"hits"`
	Acquires         int64 `json:"acquires"`
	TotalAcquireTime int64 `json:"total_acquire_time"`
	MaxAcquireTime   int64 `json:"max_acquire_time"`
	AvgAcquireTime   int64 `json:"avg_acquire_time"`
	TotalHoldTime    int64 `json:"total_hold_time"`
	MaxHoldTime      int64 `json:"max_hold_time"`
	AvgHoldTime      int64 `json:"avg_hold_time"`

	// Depth is the outstanding acquire depth for this bucket. Not part
	// of the serialized output; reset to zero has no meaning once
	// aggregation completes.
	Depth int64 `json:"-"`
}

// recordAcquire updates the counters for a single acquire event.
func (s *LockStats) recordAcquire(duration int64) {
	s.Hits++
	if s.Depth == 0 {
		s.Acquires++
	}
	s.Depth++
	s.TotalAcquireTime += duration
	if duration > s.MaxAcquireTime {
		s.MaxAcquireTime = duration
	}
}

// recordRelease updates the counters for a matched release, given the
// already-computed hold time. Attribution only happens when depth
// returns to zero.
func (s *LockStats) recordRelease(hold int64) {
	s.Depth--
	if s.Depth == 0 {
		s.TotalHoldTime += hold
		if hold > s.MaxHoldTime {
			s.MaxHoldTime = hold
		}
	}
}

// finalize computes the integer-division averages. Returns false if the
// bucket never produced an outermost acquisition, in which case the
// entry should be omitted entirely.
func (s *LockStats) finalize() bool {
	if s.Acquires == 0 {
		return false
	}
	s.AvgAcquireTime = s.TotalAcquireTime / s.Acquires
	s.AvgHoldTime = s.TotalHoldTime / s.Acquires
	return true
}

// RecordAcquire is the exported entry point aggregator.go uses; kept as
// a thin public wrapper so the accounting rules live in one place next
// to the struct they mutate.
func (s *LockStats) RecordAcquire(duration int64) { s.recordAcquire(duration) }

// RecordRelease is the exported release-side counterpart of RecordAcquire.
func (s *LockStats) RecordRelease(hold int64) { s.recordRelease(hold) }

// Finalize is the exported average-computation step; see finalize.
func (s *LockStats) Finalize() bool { return s.finalize() }

// LockSnapshot is the frozen view of every per-goroutine buffer the
// tracer produces on teardown. LockList is not globally sorted; only
// the subsequence of events sharing a Tid is guaranteed ordered by
// Timestamp.
type LockSnapshot struct {
	LockList      []Event      `json:"lock_list"`
	LockHashes    []string     `json:"lock_hashes"`
	StackHashes   []StackTrace `json:"stack_hashes"`
	Disabled      bool         `json:"disabled"`
	DisableReason string       `json:"disable_reason,omitempty"`
}

// MatchedPair is one fully matched acquire/release, emitted by the
// aggregator for the timeline builder. AcquireDur is the wait time: the
// acquire interval runs [AcquireTs, AcquireTs+AcquireDur) and the held
// interval runs [AcquireTs+AcquireDur, ReleaseTs).
type MatchedPair struct {
	Tid        int64
	LockHash   int32
	AcquireTs  int64
	AcquireDur int64
	ReleaseTs  int64
}
