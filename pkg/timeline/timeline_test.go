package timeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"lockprof/pkg/types"
)

func TestBuildEmptyPairsYieldsEmptyModel(t *testing.T) {
	model := Build(nil, []string{"a"})
	require.Empty(t, model.Swimlanes)
	require.Equal(t, []string{"a"}, model.LockLabels)
}

func TestBuildNormalizesTimestampsToEarliestAcquire(t *testing.T) {
	pairs := []types.MatchedPair{
		{Tid: 1, LockHash: 0, AcquireTs: 100, AcquireDur: 10, ReleaseTs: 200},
	}
	model := Build(pairs, nil)
	require.Len(t, model.Swimlanes, 1)
	require.Equal(t, int64(0), model.Swimlanes[0].Intervals[0].Start)
}

func TestBuildProducesAcquireAndHeldIntervals(t *testing.T) {
	pairs := []types.MatchedPair{
		{Tid: 1, LockHash: 0, AcquireTs: 0, AcquireDur: 10, ReleaseTs: 50},
	}
	model := Build(pairs, nil)
	require.Len(t, model.Swimlanes[0].Intervals, 2)
	require.Equal(t, Acquiring, model.Swimlanes[0].Intervals[0].Kind)
	require.Equal(t, int64(0), model.Swimlanes[0].Intervals[0].Start)
	require.Equal(t, int64(10), model.Swimlanes[0].Intervals[0].End)
	require.Equal(t, Held, model.Swimlanes[0].Intervals[1].Kind)
	require.Equal(t, int64(10), model.Swimlanes[0].Intervals[1].Start)
	require.Equal(t, int64(50), model.Swimlanes[0].Intervals[1].End)
}

func TestBuildOmitsZeroWidthHeldInterval(t *testing.T) {
	pairs := []types.MatchedPair{
		{Tid: 1, LockHash: 0, AcquireTs: 0, AcquireDur: 10, ReleaseTs: 10},
	}
	model := Build(pairs, nil)
	require.Len(t, model.Swimlanes[0].Intervals, 1, "acquire end == release end must not emit a zero-width held interval")
}

func TestBuildOrdersSwimlanesByFirstSeenTimestampNotArrivalOrder(t *testing.T) {
	pairs := []types.MatchedPair{
		{Tid: 2, LockHash: 0, AcquireTs: 50, AcquireDur: 1, ReleaseTs: 60},
		{Tid: 1, LockHash: 0, AcquireTs: 0, AcquireDur: 1, ReleaseTs: 10},
	}
	model := Build(pairs, nil)
	require.Len(t, model.Swimlanes, 2)
	require.Equal(t, int64(1), model.Swimlanes[0].Tid, "thread 1 started first and must sort first despite arriving second")
	require.Equal(t, int64(2), model.Swimlanes[1].Tid)
}

func TestBuildSortsEachLanesIntervalsByStart(t *testing.T) {
	pairs := []types.MatchedPair{
		{Tid: 1, LockHash: 0, AcquireTs: 100, AcquireDur: 5, ReleaseTs: 110},
		{Tid: 1, LockHash: 1, AcquireTs: 0, AcquireDur: 5, ReleaseTs: 10},
	}
	model := Build(pairs, nil)
	intervals := model.Swimlanes[0].Intervals
	for i := 1; i < len(intervals); i++ {
		require.LessOrEqual(t, intervals[i-1].Start, intervals[i].Start)
	}
}
