// Package interning implements three interners: lock identities, stack
// frames, and stack traces. Each assigns dense, stable, zero-based
// integer handles to values on first sight.
//
// All three share the same concurrency strategy: an RWMutex-guarded
// map, read path taking RLock first and only promoting to a write lock
// on a miss (double-checked after acquiring it). This keeps the common
// case (an already-interned value) cheap under concurrent reads from
// many goroutines' hot paths.
package interning

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/cespare/xxhash/v2"

	"lockprof/pkg/types"
)

// LockInterner assigns handles to lock identities, keyed on the
// machine address of the sync.Locker the caller passed in — its object
// identity.
type LockInterner struct {
	mu      sync.RWMutex
	byAddr  map[uintptr]int32
	labels  []string
}

// NewLockInterner creates an empty lock interner.
func NewLockInterner() *LockInterner {
	return &LockInterner{byAddr: make(map[uintptr]int32)}
}

// Intern returns the handle for lock, assigning a fresh one on first
// sight and recording label as its human-readable name. label is only
// used the first time a given lock is seen; later calls keep the
// original label.
func (li *LockInterner) Intern(lock any, label string) int32 {
	addr := addrOf(lock)

	li.mu.RLock()
	if h, ok := li.byAddr[addr]; ok {
		li.mu.RUnlock()
		return h
	}
	li.mu.RUnlock()

	li.mu.Lock()
	defer li.mu.Unlock()
	if h, ok := li.byAddr[addr]; ok {
		return h
	}
	if label == "" {
		label = fmt.Sprintf("%T(%p)", lock, lock)
	}
	h := int32(len(li.labels))
	li.byAddr[addr] = h
	li.labels = append(li.labels, label)
	return h
}

// Label returns the human-readable label for a handle, or "" if out of range.
func (li *LockInterner) Label(handle int32) string {
	li.mu.RLock()
	defer li.mu.RUnlock()
	if int(handle) < 0 || int(handle) >= len(li.labels) {
		return ""
	}
	return li.labels[handle]
}

// Labels returns a snapshot of all labels, indexed by handle.
func (li *LockInterner) Labels() []string {
	li.mu.RLock()
	defer li.mu.RUnlock()
	out := make([]string, len(li.labels))
	copy(out, li.labels)
	return out
}

// Len reports how many distinct locks have been interned.
func (li *LockInterner) Len() int {
	li.mu.RLock()
	defer li.mu.RUnlock()
	return len(li.labels)
}

func addrOf(lock any) uintptr {
	type iface struct {
		typ  unsafe.Pointer
		data unsafe.Pointer
	}
	return uintptr((*iface)(unsafe.Pointer(&lock)).data)
}

// FrameInterner assigns handles to StackFrame values, keyed on
// (file, line, function) equality.
type FrameInterner struct {
	mu     sync.RWMutex
	byKey  map[frameKey]int32
	frames []types.StackFrame
}

type frameKey struct {
	file string
	line int
	fn   string
}

// NewFrameInterner creates an empty frame interner.
func NewFrameInterner() *FrameInterner {
	return &FrameInterner{byKey: make(map[frameKey]int32)}
}

// Intern returns the handle for frame, assigning a fresh one on first sight.
func (fi *FrameInterner) Intern(frame types.StackFrame) int32 {
	key := frameKey{frame.File, frame.LineNo, frame.FunctionName}

	fi.mu.RLock()
	if h, ok := fi.byKey[key]; ok {
		fi.mu.RUnlock()
		return h
	}
	fi.mu.RUnlock()

	fi.mu.Lock()
	defer fi.mu.Unlock()
	if h, ok := fi.byKey[key]; ok {
		return h
	}
	h := int32(len(fi.frames))
	fi.byKey[key] = h
	fi.frames = append(fi.frames, frame)
	return h
}

// Frame returns the frame for a handle, or the zero value if out of range.
func (fi *FrameInterner) Frame(handle int32) types.StackFrame {
	fi.mu.RLock()
	defer fi.mu.RUnlock()
	if int(handle) < 0 || int(handle) >= len(fi.frames) {
		return types.StackFrame{}
	}
	return fi.frames[handle]
}

// Len reports how many distinct frames have been interned.
func (fi *FrameInterner) Len() int {
	fi.mu.RLock()
	defer fi.mu.RUnlock()
	return len(fi.frames)
}

// TraceInterner assigns handles to ordered tuples of frame handles
// (a captured stack trace). The map is keyed on an xxhash digest of the
// tuple's byte encoding, and each lookup compares the tuple exactly, so
// traces of any depth share one map without fixed-size array keys.
type TraceInterner struct {
	mu      sync.RWMutex
	buckets map[uint64][]int32 // xxhash digest -> candidate trace handles
	traces  [][]int32

	frames *FrameInterner
}

// NewTraceInterner creates an empty trace interner. Handle 0 is
// reserved for the empty trace, used on stack-capture failure.
func NewTraceInterner(frames *FrameInterner) *TraceInterner {
	ti := &TraceInterner{
		buckets: make(map[uint64][]int32),
		frames:  frames,
	}
	ti.traces = append(ti.traces, nil)
	ti.buckets[xxhash.Sum64(nil)] = []int32{0}
	return ti
}

// Intern interns a full stack trace (already-resolved frames), lazily
// interning each constituent frame first, and returns the trace handle.
func (ti *TraceInterner) Intern(trace types.StackTrace) int32 {
	handles := make([]int32, len(trace))
	for i, f := range trace {
		handles[i] = ti.frames.Intern(f)
	}
	return ti.internHandles(handles)
}

func (ti *TraceInterner) internHandles(handles []int32) int32 {
	digest := xxhash.Sum64(int32SliceBytes(handles))

	ti.mu.RLock()
	if h, ok := ti.lookupLocked(digest, handles); ok {
		ti.mu.RUnlock()
		return h
	}
	ti.mu.RUnlock()

	ti.mu.Lock()
	defer ti.mu.Unlock()
	if h, ok := ti.lookupLocked(digest, handles); ok {
		return h
	}
	h := int32(len(ti.traces))
	cp := make([]int32, len(handles))
	copy(cp, handles)
	ti.traces = append(ti.traces, cp)
	ti.buckets[digest] = append(ti.buckets[digest], h)
	return h
}

// lookupLocked resolves the exact-match trace within a hash bucket,
// falling back to byte equality so a digest collision between two
// distinct traces can never merge them (the xxhash digest only narrows
// the search; it is never treated as a unique identity by itself).
func (ti *TraceInterner) lookupLocked(digest uint64, handles []int32) (int32, bool) {
	for _, candidate := range ti.buckets[digest] {
		if int32SliceEqual(ti.traces[candidate], handles) {
			return candidate, true
		}
	}
	return 0, false
}

// Trace resolves a trace handle back into concrete stack frames.
func (ti *TraceInterner) Trace(handle int32) types.StackTrace {
	ti.mu.RLock()
	var handles []int32
	if int(handle) >= 0 && int(handle) < len(ti.traces) {
		handles = ti.traces[handle]
	}
	ti.mu.RUnlock()

	out := make(types.StackTrace, len(handles))
	for i, h := range handles {
		out[i] = ti.frames.Frame(h)
	}
	return out
}

// Len reports how many distinct traces have been interned (including
// the reserved empty trace at handle 0).
func (ti *TraceInterner) Len() int {
	ti.mu.RLock()
	defer ti.mu.RUnlock()
	return len(ti.traces)
}

// Traces returns every interned trace, resolved to frames and indexed
// by handle, matching the LockSnapshot.StackHashes shape.
func (ti *TraceInterner) Traces() []types.StackTrace {
	ti.mu.RLock()
	snap := make([][]int32, len(ti.traces))
	copy(snap, ti.traces)
	ti.mu.RUnlock()

	out := make([]types.StackTrace, len(snap))
	for i, handles := range snap {
		trace := make(types.StackTrace, len(handles))
		for j, h := range handles {
			trace[j] = ti.frames.Frame(h)
		}
		out[i] = trace
	}
	return out
}

// int32SliceBytes encodes a []int32 as a little-endian byte slice for
// hashing; it is never used as a map key by itself (see lookupLocked).
func int32SliceBytes(handles []int32) []byte {
	buf := make([]byte, len(handles)*4)
	for i, h := range handles {
		buf[i*4] = byte(h)
		buf[i*4+1] = byte(h >> 8)
		buf[i*4+2] = byte(h >> 16)
		buf[i*4+3] = byte(h >> 24)
	}
	return buf
}

func int32SliceEqual(a, b []int32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
