package interning

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"lockprof/pkg/types"
)

func TestLockInternerAssignsStableHandlesByIdentity(t *testing.T) {
	li := NewLockInterner()
	var m1, m2 sync.Mutex

	h1 := li.Intern(&m1, "alpha")
	h1Again := li.Intern(&m1, "ignored second label")
	h2 := li.Intern(&m2, "beta")

	require.Equal(t, h1, h1Again)
	require.NotEqual(t, h1, h2)
	require.Equal(t, "alpha", li.Label(h1))
	require.Equal(t, "beta", li.Label(h2))
	require.Equal(t, 2, li.Len())
}

func TestLockInternerLabelOutOfRange(t *testing.T) {
	li := NewLockInterner()
	require.Equal(t, "", li.Label(99))
}

func TestLockInternerConcurrentInternConverges(t *testing.T) {
	li := NewLockInterner()
	var m sync.Mutex
	var wg sync.WaitGroup
	handles := make([]int32, 50)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			handles[idx] = li.Intern(&m, "shared")
		}(i)
	}
	wg.Wait()

	for _, h := range handles {
		require.Equal(t, handles[0], h)
	}
}

func TestFrameInternerKeysOnFileLineFunction(t *testing.T) {
	fi := NewFrameInterner()
	a := types.StackFrame{File: "a.go", LineNo: 10, FunctionName: "Foo"}
	b := types.StackFrame{File: "a.go", LineNo: 10, FunctionName: "Foo"}
	c := types.StackFrame{File: "a.go", LineNo: 11, FunctionName: "Foo"}

	ha := fi.Intern(a)
	hb := fi.Intern(b)
	hc := fi.Intern(c)

	require.Equal(t, ha, hb)
	require.NotEqual(t, ha, hc)
	require.Equal(t, a, fi.Frame(ha))
}

func TestTraceInternerReservesHandleZeroForEmptyTrace(t *testing.T) {
	fi := NewFrameInterner()
	ti := NewTraceInterner(fi)

	h := ti.Intern(nil)
	require.Equal(t, int32(0), h)
	require.Empty(t, ti.Trace(0))
}

func TestTraceInternerDeduplicatesIdenticalTraces(t *testing.T) {
	fi := NewFrameInterner()
	ti := NewTraceInterner(fi)

	trace := types.StackTrace{
		{File: "a.go", LineNo: 1, FunctionName: "Foo"},
		{File: "b.go", LineNo: 2, FunctionName: "Bar"},
	}

	h1 := ti.Intern(trace)
	h2 := ti.Intern(trace)
	require.Equal(t, h1, h2)

	other := types.StackTrace{
		{File: "a.go", LineNo: 1, FunctionName: "Foo"},
	}
	h3 := ti.Intern(other)
	require.NotEqual(t, h1, h3)

	resolved := ti.Trace(h1)
	require.Equal(t, trace, resolved)
}

func TestTraceInternerTracesReturnsAllInOrder(t *testing.T) {
	fi := NewFrameInterner()
	ti := NewTraceInterner(fi)

	t1 := types.StackTrace{{File: "a.go", LineNo: 1, FunctionName: "Foo"}}
	t2 := types.StackTrace{{File: "b.go", LineNo: 2, FunctionName: "Bar"}}
	h1 := ti.Intern(t1)
	h2 := ti.Intern(t2)

	all := ti.Traces()
	require.Equal(t, t1, all[h1])
	require.Equal(t, t2, all[h2])
	require.Empty(t, all[0])
}
