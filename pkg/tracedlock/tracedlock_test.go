package tracedlock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingHooks struct {
	mu        sync.Mutex
	acquires  int
	releases  int
	lastLabel string
}

func (h *recordingHooks) AcquireHook(lock sync.Locker, waitStart, waitEnd int64, label string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.acquires++
	h.lastLabel = label
}

func (h *recordingHooks) ReleaseHook(lock sync.Locker, ts int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.releases++
}

func TestTracedMutexReportsOneAcquireAndReleasePerLockCycle(t *testing.T) {
	hooks := &recordingHooks{}
	m := NewTracedMutex(hooks, "demo")

	m.Lock()
	m.Unlock()

	require.Equal(t, 1, hooks.acquires)
	require.Equal(t, 1, hooks.releases)
	require.Equal(t, "demo", hooks.lastLabel)
}

func TestTracedMutexActuallySerializesAccess(t *testing.T) {
	hooks := &recordingHooks{}
	m := NewTracedMutex(hooks, "counter")

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Lock()
			counter++
			m.Unlock()
		}()
	}
	wg.Wait()

	require.Equal(t, 100, counter)
	require.Equal(t, 100, hooks.acquires)
	require.Equal(t, 100, hooks.releases)
}

func TestTracedRWMutexTracesOnlyTheWriterPath(t *testing.T) {
	hooks := &recordingHooks{}
	m := NewTracedRWMutex(hooks, "rw")

	m.RLock()
	m.RUnlock()
	require.Equal(t, 0, hooks.acquires)
	require.Equal(t, 0, hooks.releases)

	m.Lock()
	m.Unlock()
	require.Equal(t, 1, hooks.acquires)
	require.Equal(t, 1, hooks.releases)
}
