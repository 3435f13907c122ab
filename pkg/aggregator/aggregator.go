// Package aggregator implements the offline, two-pass reducer: it
// joins acquire/release pairs per (goroutine, lock), producing both
// per-lock and per-(file,line,lock) statistics plus the matched pairs
// the timeline builder needs. Nothing here runs on the hot path; it
// consumes a frozen tracer.LockSnapshot after profiling has quiesced.
//
// Known limitation: each per-(file,line,lock) bucket keeps a single
// depth counter with no goroutine or call-path dimension, so overlapping
// acquisitions at the same line from different goroutines or call paths
// count as one outermost acquisition in that bucket.
package aggregator

import (
	"context"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"lockprof/pkg/otelspan"
	"lockprof/pkg/types"
)

// DefaultDenylist excludes frames inside the runtime itself and inside
// the lock-wrapper package from per-line attribution. Entries are
// matched against StackFrame.FunctionName rather than File: File is
// the build machine's absolute source path (only module-path-shaped
// without -trimpath), while FunctionName always carries the full
// import path ("lockprof/pkg/tracedlock.(*TracedMutex).Lock") no
// matter how the binary was built.
var DefaultDenylist = []string{"runtime.*", "lockprof/pkg/tracedlock.*"}

// Options configures a single Reduce call.
type Options struct {
	// Denylist holds glob-style prefixes (a trailing "*" matches any
	// suffix) checked against StackFrame.FunctionName. A frame whose
	// function matches any entry is excluded from per-line attribution.
	Denylist []string
}

// DefaultOptions returns the options Reduce uses when none are given.
func DefaultOptions() Options {
	return Options{Denylist: append([]string(nil), DefaultDenylist...)}
}

// LockStatEntry is one row of the per-lock report, identified by its
// interned handle and human label.
type LockStatEntry struct {
	LockHash int32  `json:"lock_hash"`
	Label    string `json:"label"`
	types.LockStats
}

// LineStatEntry is one row of the per-(file,line,lock) report.
type LineStatEntry struct {
	File     string `json:"file"`
	Line     int    `json:"lineNo"`
	LockHash int32  `json:"lock_hash"`
	Label    string `json:"label"`
	types.LockStats
}

// ResidualDepth flags a (tid, lock) pair whose held stack never
// returned to zero by the end of the event stream — a diagnostic, not
// a fatal condition.
type ResidualDepth struct {
	Tid      int64  `json:"tid"`
	LockHash int32  `json:"lock_hash"`
	Label    string `json:"label"`
	Depth    int64  `json:"depth"`
}

// Report is Reduce's output.
type Report struct {
	LockStats             []LockStatEntry     `json:"lock_stats"`
	LineStats             []LineStatEntry     `json:"line_stats"`
	Pairs                 []types.MatchedPair `json:"-"`
	UnbalancedReleases    int64               `json:"unbalanced_releases"`
	ResidualDepthWarnings []ResidualDepth     `json:"residual_depth_warnings,omitempty"`
}

type heldKey struct {
	tid      int64
	lockHash int32
}

type lineKey struct {
	file     string
	line     int
	lockHash int32
}

// Reduce runs the two-pass reducer over snap. manager may be nil, in
// which case no span is created.
func Reduce(ctx context.Context, manager *otelspan.Manager, snap types.LockSnapshot, opts Options) (_ *Report, err error) {
	if manager != nil {
		var end func(error)
		_, end = manager.StartSpan(ctx, "lockprof.aggregate",
			attribute.Int("lockprof.event_count", len(snap.LockList)))
		defer func() { end(err) }()
	}

	if len(opts.Denylist) == 0 {
		opts = DefaultOptions()
	}

	lockStats := make(map[int32]*types.LockStats)
	var lockOrder []int32

	lineStats := make(map[lineKey]*types.LockStats)
	var lineOrder []lineKey

	held := make(map[heldKey][]types.Event)
	var heldOrder []heldKey

	var unbalanced int64
	var pairs []types.MatchedPair

	for _, e := range snap.LockList {
		if e.IsAcquire() {
			s, ok := lockStats[e.LockHash]
			if !ok {
				s = &types.LockStats{}
				lockStats[e.LockHash] = s
				lockOrder = append(lockOrder, e.LockHash)
			}
			s.RecordAcquire(e.Duration)

			hk := heldKey{e.Tid, e.LockHash}
			if _, seen := held[hk]; !seen {
				heldOrder = append(heldOrder, hk)
			}
			held[hk] = append(held[hk], e)

			for _, frame := range filteredFrames(trace(snap, e.StackHash), opts.Denylist) {
				lk := lineKey{frame.File, frame.LineNo, e.LockHash}
				ls, ok := lineStats[lk]
				if !ok {
					ls = &types.LockStats{}
					lineStats[lk] = ls
					lineOrder = append(lineOrder, lk)
				}
				ls.RecordAcquire(e.Duration)
			}
			continue
		}

		hk := heldKey{e.Tid, e.LockHash}
		stack := held[hk]
		if len(stack) == 0 {
			unbalanced++
			continue
		}
		a := stack[len(stack)-1]
		held[hk] = stack[:len(stack)-1]

		hold := e.Timestamp - (a.Timestamp + a.Duration)
		if s, ok := lockStats[e.LockHash]; ok {
			s.RecordRelease(hold)
		}

		for _, frame := range filteredFrames(trace(snap, a.StackHash), opts.Denylist) {
			lk := lineKey{frame.File, frame.LineNo, e.LockHash}
			if ls, ok := lineStats[lk]; ok {
				ls.RecordRelease(hold)
			}
		}

		pairs = append(pairs, types.MatchedPair{
			Tid:        e.Tid,
			LockHash:   e.LockHash,
			AcquireTs:  a.Timestamp,
			AcquireDur: a.Duration,
			ReleaseTs:  e.Timestamp,
		})
	}

	report := &Report{
		Pairs:              pairs,
		UnbalancedReleases: unbalanced,
	}

	for _, hash := range lockOrder {
		s := lockStats[hash]
		if !s.Finalize() {
			continue
		}
		report.LockStats = append(report.LockStats, LockStatEntry{
			LockHash:  hash,
			Label:     label(snap.LockHashes, hash),
			LockStats: *s,
		})
	}
	sort.SliceStable(report.LockStats, func(i, j int) bool {
		a, b := report.LockStats[i], report.LockStats[j]
		if a.TotalAcquireTime != b.TotalAcquireTime {
			return a.TotalAcquireTime > b.TotalAcquireTime
		}
		return a.LockHash < b.LockHash
	})

	for _, lk := range lineOrder {
		s := lineStats[lk]
		if !s.Finalize() {
			continue
		}
		report.LineStats = append(report.LineStats, LineStatEntry{
			File:      lk.file,
			Line:      lk.line,
			LockHash:  lk.lockHash,
			Label:     label(snap.LockHashes, lk.lockHash),
			LockStats: *s,
		})
	}
	sort.SliceStable(report.LineStats, func(i, j int) bool {
		a, b := report.LineStats[i], report.LineStats[j]
		if a.TotalAcquireTime != b.TotalAcquireTime {
			return a.TotalAcquireTime > b.TotalAcquireTime
		}
		return a.LockHash < b.LockHash
	})

	for _, hk := range heldOrder {
		if stack := held[hk]; len(stack) > 0 {
			report.ResidualDepthWarnings = append(report.ResidualDepthWarnings, ResidualDepth{
				Tid:      hk.tid,
				LockHash: hk.lockHash,
				Label:    label(snap.LockHashes, hk.lockHash),
				Depth:    int64(len(stack)),
			})
		}
	}

	return report, nil
}

func trace(snap types.LockSnapshot, hash int32) types.StackTrace {
	if hash < 0 || int(hash) >= len(snap.StackHashes) {
		return nil
	}
	return snap.StackHashes[hash]
}

// filteredFrames keeps only user-source frames: a ".go" extension and
// not a denylisted runtime/library function.
func filteredFrames(t types.StackTrace, denylist []string) []types.StackFrame {
	out := make([]types.StackFrame, 0, len(t))
	for _, f := range t {
		if !strings.HasSuffix(f.File, ".go") {
			continue
		}
		if denied(f.FunctionName, denylist) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func denied(functionName string, denylist []string) bool {
	for _, pattern := range denylist {
		prefix, ok := strings.CutSuffix(pattern, "*")
		if !ok {
			prefix = pattern
		}
		if strings.HasPrefix(functionName, prefix) {
			return true
		}
	}
	return false
}

func label(labels []string, hash int32) string {
	if hash < 0 || int(hash) >= len(labels) {
		return ""
	}
	return labels[hash]
}
