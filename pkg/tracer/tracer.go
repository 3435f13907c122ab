// Package tracer is the hot-path event capture layer: per-goroutine
// enable counting, sharded event buffers, and the acquire/release hooks
// the traced lock wrappers call. The hooks take the calling goroutine's
// shard lock and the shared interners' locks, never one global buffer
// mutex. AcquireHook allocates on every call: stack capture builds a
// fresh program-counter slice and frame list before interning them.
package tracer

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"lockprof/internal/metrics"
	"lockprof/pkg/clock"
	"lockprof/pkg/errors"
	"lockprof/pkg/interning"
	"lockprof/pkg/selfdisable"
	"lockprof/pkg/types"
)

// LockSnapshot is an alias for the shared snapshot type so callers can
// spell it tracer.LockSnapshot, even though the type itself lives in
// pkg/types to avoid an import cycle with pkg/aggregator.
type LockSnapshot = types.LockSnapshot

// DefaultShardCount is the number of event-buffer shards used when a
// Tracer is constructed without an explicit override. Each shard is
// guarded by its own mutex, so steady-state throughput scales with the
// number of goroutines actually contending for buffer space rather than
// serializing behind one global lock.
const DefaultShardCount = 64

// DefaultMaxStackDepth bounds how many frames a single stack capture
// walks before giving up.
const DefaultMaxStackDepth = 32

// DefaultMaxInternedHandles is the ceiling on combined lock+frame+trace
// handles before the tracer trips its self-disable breaker.
const DefaultMaxInternedHandles = 10_000_000

type shard struct {
	mu     sync.Mutex
	events []types.Event
}

// Tracer is the event capture engine. Zero value is not usable; build
// one with New.
type Tracer struct {
	logger *logrus.Logger

	shardCount int
	shards     []*shard
	shardCache sync.Map // int64 tid -> *shard, populated once per goroutine

	enableCounts sync.Map // int64 tid -> *int32, accessed only via atomic ops

	locks  *interning.LockInterner
	frames *interning.FrameInterner
	traces *interning.TraceInterner

	maxStackDepth      int
	maxInternedHandles int64
	breaker            *selfdisable.Breaker

	metrics *metrics.Metrics
}

// Option configures a Tracer at construction time.
type Option func(*Tracer)

// WithShardCount overrides DefaultShardCount.
func WithShardCount(n int) Option {
	return func(t *Tracer) {
		if n > 0 {
			t.shardCount = n
		}
	}
}

// WithMaxStackDepth overrides DefaultMaxStackDepth.
func WithMaxStackDepth(n int) Option {
	return func(t *Tracer) {
		if n > 0 {
			t.maxStackDepth = n
		}
	}
}

// WithMaxInternedHandles overrides DefaultMaxInternedHandles.
func WithMaxInternedHandles(n int64) Option {
	return func(t *Tracer) {
		if n > 0 {
			t.maxInternedHandles = n
		}
	}
}

// WithMetrics publishes this tracer's hot-path counters and gauges
// through m. Without it the tracer runs exactly as before: m may be
// nil.
func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Tracer) {
		t.metrics = m
	}
}

// New builds a Tracer ready to accept hook calls.
func New(logger *logrus.Logger, opts ...Option) *Tracer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	t := &Tracer{
		logger:             logger,
		shardCount:         DefaultShardCount,
		maxStackDepth:      DefaultMaxStackDepth,
		maxInternedHandles: DefaultMaxInternedHandles,
		breaker:            selfdisable.New(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.shards = make([]*shard, t.shardCount)
	for i := range t.shards {
		t.shards[i] = &shard{}
	}
	t.frames = interning.NewFrameInterner()
	t.traces = interning.NewTraceInterner(t.frames)
	t.locks = interning.NewLockInterner()
	return t
}

// Enable unconditionally increments the calling goroutine's enable
// count.
func (t *Tracer) Enable() {
	t.counter(clock.CurrentGoroutineID()).Add(1)
}

// Disable unconditionally decrements the calling goroutine's enable
// count.
func (t *Tracer) Disable() {
	t.counter(clock.CurrentGoroutineID()).Add(-1)
}

// EnableCount reports the calling goroutine's current enable count.
func (t *Tracer) EnableCount() int {
	return int(t.counter(clock.CurrentGoroutineID()).Load())
}

func (t *Tracer) counter(tid int64) *atomic.Int32 {
	if v, ok := t.enableCounts.Load(tid); ok {
		return v.(*atomic.Int32)
	}
	v, _ := t.enableCounts.LoadOrStore(tid, new(atomic.Int32))
	return v.(*atomic.Int32)
}

// RegisterFunc wraps f so calls through the returned function run with
// profiling enabled, covering both normal return and panic.
func (t *Tracer) RegisterFunc(f func()) func() {
	return func() {
		t.Enable()
		defer t.Disable()
		f()
	}
}

// RegisterContextFunc wraps f so the enable count is held for the
// entire call, regardless of how the context's cancellation or the
// function itself causes it to return.
func (t *Tracer) RegisterContextFunc(ctx context.Context, f func(context.Context) error) error {
	t.Enable()
	defer t.Disable()
	return f(ctx)
}

// enabled reports whether the calling goroutine currently has
// profiling turned on.
func (t *Tracer) enabled(tid int64) bool {
	return t.counter(tid).Load() > 0
}

// AcquireHook is called by a traced lock wrapper immediately after the
// underlying lock is acquired.
func (t *Tracer) AcquireHook(lock sync.Locker, waitStart, waitEnd int64, label string) {
	if t.breaker.Tripped() {
		return
	}
	tid := clock.CurrentGoroutineID()
	if !t.enabled(tid) {
		return
	}

	lockHash := t.locks.Intern(lock, label)
	stackHash := t.captureStackHash()
	t.checkCapacity()

	t.shardFor(tid).append(types.Event{
		Timestamp: waitStart,
		Duration:  waitEnd - waitStart,
		Tid:       tid,
		LockHash:  lockHash,
		StackHash: stackHash,
	})
	if t.metrics != nil {
		t.metrics.EventsRecordedTotal.WithLabelValues("acquire").Inc()
	}
}

// ReleaseHook is called by a traced lock wrapper immediately before the
// underlying lock is released.
func (t *Tracer) ReleaseHook(lock sync.Locker, ts int64) {
	if t.breaker.Tripped() {
		return
	}
	tid := clock.CurrentGoroutineID()
	if !t.enabled(tid) {
		return
	}

	lockHash := t.locks.Intern(lock, "")
	t.shardFor(tid).append(types.Event{
		Timestamp: ts,
		Duration:  types.DurationRelease,
		Tid:       tid,
		LockHash:  lockHash,
		StackHash: 0,
	})
	if t.metrics != nil {
		t.metrics.EventsRecordedTotal.WithLabelValues("release").Inc()
	}
}

func (t *Tracer) shardFor(tid int64) *shard {
	if v, ok := t.shardCache.Load(tid); ok {
		return v.(*shard)
	}
	s := t.shards[uint64(tid)%uint64(t.shardCount)]
	t.shardCache.Store(tid, s)
	return s
}

func (s *shard) append(e types.Event) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

// captureStackHash walks the calling stack and interns it, returning
// handle 0 (the empty trace) if capture fails.
func (t *Tracer) captureStackHash() int32 {
	pcs := make([]uintptr, t.maxStackDepth)
	n := runtime.Callers(3, pcs)
	if n == 0 {
		return 0
	}

	frames := runtime.CallersFrames(pcs[:n])
	trace := make(types.StackTrace, 0, n)
	for {
		frame, more := frames.Next()
		trace = append(trace, types.StackFrame{
			File:         frame.File,
			LineNo:       frame.Line,
			FunctionName: frame.Function,
		})
		if !more {
			break
		}
	}
	return t.traces.Intern(trace)
}

// checkCapacity trips the self-disable breaker once the combined
// interner population crosses maxInternedHandles: a fatal condition,
// so the tracer disables itself.
func (t *Tracer) checkCapacity() {
	total := int64(t.locks.Len()) + int64(t.frames.Len()) + int64(t.traces.Len())
	if total < t.maxInternedHandles {
		return
	}
	t.breaker.Trip("interner capacity exhausted")
	if t.metrics != nil {
		t.metrics.SessionDisabled.Set(1)
	}
	sessErr := errors.SessionError("check_capacity", "interner capacity exhausted, tracer disabled").
		WithMetadata("total", total).
		WithMetadata("limit", t.maxInternedHandles)
	t.logger.WithFields(logrus.Fields(sessErr.ToMap())).Error(sessErr.Message)
}

// Disabled reports whether the tracer has permanently disabled itself.
func (t *Tracer) Disabled() bool {
	return t.breaker.Tripped()
}

// DisableReason returns why the tracer disabled itself, or "" if it
// hasn't.
func (t *Tracer) DisableReason() string {
	return t.breaker.Reason()
}

// Snapshot copies every shard's events into one LockSnapshot. Shards
// keep their events, so a later call returns the same events plus any
// recorded since. Events within a single tid's subsequence remain
// ordered; the concatenated list is not globally sorted.
func (t *Tracer) Snapshot() types.LockSnapshot {
	var events []types.Event
	for _, s := range t.shards {
		s.mu.Lock()
		events = append(events, s.events...)
		s.mu.Unlock()
	}

	traces := t.traces.Traces()
	stackHashes := make([]types.StackTrace, len(traces))
	copy(stackHashes, traces)

	if t.metrics != nil {
		t.metrics.InternerHandles.WithLabelValues("lock").Set(float64(t.locks.Len()))
		t.metrics.InternerHandles.WithLabelValues("frame").Set(float64(t.frames.Len()))
		t.metrics.InternerHandles.WithLabelValues("trace").Set(float64(t.traces.Len()))
	}

	return types.LockSnapshot{
		LockList:      events,
		LockHashes:    t.locks.Labels(),
		StackHashes:   stackHashes,
		Disabled:      t.breaker.Tripped(),
		DisableReason: t.breaker.Reason(),
	}
}
