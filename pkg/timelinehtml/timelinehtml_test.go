package timelinehtml

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"lockprof/pkg/timeline"
	"lockprof/pkg/types"
)

func TestRenderIncludesOneSwimlanePerThread(t *testing.T) {
	pairs := []types.MatchedPair{
		{Tid: 1, LockHash: 0, AcquireTs: 0, AcquireDur: 10, ReleaseTs: 50},
		{Tid: 2, LockHash: 0, AcquireTs: 0, AcquireDur: 10, ReleaseTs: 50},
	}
	model := timeline.Build(pairs, []string{"demo"})
	html := Render(model, DefaultPixelsPerSecond)

	require.True(t, strings.HasPrefix(html, "<!DOCTYPE html>"))
	require.Equal(t, 2, strings.Count(html, "swimlane alive"))
	require.Contains(t, html, "thread_1")
	require.Contains(t, html, "thread_2")
}

func TestRenderEmitsAcquireAndHeldRectangles(t *testing.T) {
	pairs := []types.MatchedPair{
		{Tid: 1, LockHash: 3, AcquireTs: 0, AcquireDur: 10 * 1e7, ReleaseTs: 60 * 1e7},
	}
	model := timeline.Build(pairs, nil)
	html := Render(model, DefaultPixelsPerSecond)

	require.Contains(t, html, "acquire")
	require.Contains(t, html, "held")
	require.Contains(t, html, "lock_3")
}

func TestCoalesceMergesConsecutiveZeroWidthIntervalsAtTheSamePixel(t *testing.T) {
	intervals := []timeline.Interval{
		{Start: 0, End: 0, Kind: timeline.Acquiring, LockHash: 0},
		{Start: 0, End: 0, Kind: timeline.Acquiring, LockHash: 0},
	}
	rects := coalesce(intervals, DefaultPixelsPerSecond)
	require.Len(t, rects, 1, "identical zero-width intervals at the same pixel must coalesce into one rect")
}

func TestCoalesceFlushesWhenXCoordinateChanges(t *testing.T) {
	nsPerPixel := int64(1e9 / DefaultPixelsPerSecond)
	intervals := []timeline.Interval{
		{Start: 0, End: 0, Kind: timeline.Acquiring, LockHash: 0},
		{Start: 2 * nsPerPixel, End: 2 * nsPerPixel, Kind: timeline.Acquiring, LockHash: 0},
	}
	rects := coalesce(intervals, DefaultPixelsPerSecond)
	require.Len(t, rects, 2, "a later zero-width interval at a different pixel must flush and start a new rect")
}

func TestCoalesceDoesNotMergeNonZeroWidthIntervals(t *testing.T) {
	nsPerPixel := int64(1e9 / DefaultPixelsPerSecond)
	intervals := []timeline.Interval{
		{Start: 0, End: 5 * nsPerPixel, Kind: timeline.Held, LockHash: 0},
		{Start: 5 * nsPerPixel, End: 10 * nsPerPixel, Kind: timeline.Held, LockHash: 0},
	}
	rects := coalesce(intervals, DefaultPixelsPerSecond)
	require.Len(t, rects, 2)
}
