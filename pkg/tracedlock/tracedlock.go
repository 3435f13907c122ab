// Package tracedlock wraps sync.Mutex and sync.RWMutex so that every
// acquire and release is reported to a tracer.Tracer. Go cannot
// monkeypatch an arbitrary third-party mutex, so callers that want
// contention data must lock through one of these wrappers instead of a
// bare sync.Mutex.
package tracedlock

import (
	"sync"

	"lockprof/pkg/clock"
)

// Hooks is the subset of *tracer.Tracer that a traced lock needs. Kept
// as an interface (rather than importing tracer directly) so tests can
// supply a stub and so tracedlock has no hard dependency on the
// tracer's buffering internals.
type Hooks interface {
	AcquireHook(lock sync.Locker, waitStart, waitEnd int64, label string)
	ReleaseHook(lock sync.Locker, ts int64)
}

// TracedMutex wraps a sync.Mutex, reporting every Lock/Unlock to a Hooks.
type TracedMutex struct {
	mu    sync.Mutex
	hooks Hooks
	label string
}

// NewTracedMutex returns a TracedMutex reporting to hooks under label.
func NewTracedMutex(hooks Hooks, label string) *TracedMutex {
	return &TracedMutex{hooks: hooks, label: label}
}

// Lock acquires the underlying mutex and records an acquire event.
func (m *TracedMutex) Lock() {
	start := clock.Now()
	m.mu.Lock()
	end := clock.Now()
	m.hooks.AcquireHook(&m.mu, start, end, m.label)
}

// Unlock records a release event immediately before the real unlock,
// then releases the underlying mutex.
func (m *TracedMutex) Unlock() {
	m.hooks.ReleaseHook(&m.mu, clock.Now())
	m.mu.Unlock()
}

// TracedRWMutex wraps a sync.RWMutex. Only the writer-lock path is
// treated as lock contention for statistics purposes; RLock/RUnlock
// pass straight through without tracing.
type TracedRWMutex struct {
	mu    sync.RWMutex
	hooks Hooks
	label string
}

// NewTracedRWMutex returns a TracedRWMutex reporting to hooks under label.
func NewTracedRWMutex(hooks Hooks, label string) *TracedRWMutex {
	return &TracedRWMutex{hooks: hooks, label: label}
}

// Lock acquires the write lock and records an acquire event.
func (m *TracedRWMutex) Lock() {
	start := clock.Now()
	m.mu.Lock()
	end := clock.Now()
	m.hooks.AcquireHook(&m.mu, start, end, m.label)
}

// Unlock releases the write lock and records a release event.
func (m *TracedRWMutex) Unlock() {
	m.hooks.ReleaseHook(&m.mu, clock.Now())
	m.mu.Unlock()
}

// RLock acquires a read lock without tracing.
func (m *TracedRWMutex) RLock() { m.mu.RLock() }

// RUnlock releases a read lock without tracing.
func (m *TracedRWMutex) RUnlock() { m.mu.RUnlock() }
