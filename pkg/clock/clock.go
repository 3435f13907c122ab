// Package clock provides the two primitives the rest of lockprof builds
// on: a monotonic nanosecond counter and the calling goroutine's id.
// Both must be safe to call from the hot acquire/release path, so
// neither allocates.
package clock

import (
	"runtime"
	"strconv"
	"time"
)

// epoch is captured once at process start. Now() reports nanoseconds
// since this instant using time.Time's monotonic reading, so it is
// immune to wall-clock adjustments — a monotonic counter, not wall
// time.
var epoch = time.Now()

// Now returns nanoseconds since the package's epoch, taken from the
// monotonic clock reading embedded in time.Now(). Lock-free and
// allocation-free.
func Now() int64 {
	return int64(time.Since(epoch))
}

// goroutinePrefix is the fixed prefix runtime.Stack writes before a
// goroutine's numeric id ("goroutine 123 [running]:...").
const goroutinePrefix = "goroutine "

// CurrentGoroutineID returns a stable integer id for the calling
// goroutine, extracted by parsing the header runtime.Stack writes for a
// single-goroutine, non-all dump. This is the same technique used to
// identify lock owners in reentrant-lock debug wrappers: grab a small
// stack-local buffer, trim the known prefix, and parse the leading
// integer field.
//
// Returns -1 if the id could not be parsed (should not happen on any
// supported Go runtime, but the hot path must never panic).
func CurrentGoroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	line := buf[:n]

	if len(line) < len(goroutinePrefix) || string(line[:len(goroutinePrefix)]) != goroutinePrefix {
		return -1
	}
	line = line[len(goroutinePrefix):]

	end := 0
	for end < len(line) && line[end] >= '0' && line[end] <= '9' {
		end++
	}
	if end == 0 {
		return -1
	}

	id, err := strconv.ParseInt(string(line[:end]), 10, 64)
	if err != nil {
		return -1
	}
	return id
}
