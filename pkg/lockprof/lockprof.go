// Package lockprof is the public registration and dump API, wrapping a
// process-wide *internal/session.Session singleton. Code inside this
// module can also build its own Session via internal/session for
// multi-instance use; most programs just call Default() once.
package lockprof

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"lockprof/internal/config"
	"lockprof/internal/metrics"
	"lockprof/internal/session"
	"lockprof/pkg/aggregator"
	"lockprof/pkg/tracedlock"
	"lockprof/pkg/tracer"
)

var (
	defaultOnce    sync.Once
	defaultSession *session.Session
)

// Default returns the process-wide Session, constructing it with
// built-in defaults on first call.
func Default() *session.Session {
	defaultOnce.Do(func() {
		cfg := &config.Config{}
		// applyDefaults is unexported; LoadConfig("") runs the same
		// staged default/override/validate pipeline with no file to read.
		loaded, err := config.LoadConfig("")
		if err == nil {
			cfg = loaded
		}
		defaultSession = session.New(cfg, logrus.StandardLogger(), metrics.New())
	})
	return defaultSession
}

// RegisterFunc forwards to Default().
func RegisterFunc(f func()) func() { return Default().RegisterFunc(f) }

// RegisterContextFunc forwards to Default().
func RegisterContextFunc(ctx context.Context, f func(context.Context) error) error {
	return Default().RegisterContextFunc(ctx, f)
}

// Enable forwards to Default().
func Enable() { Default().Enable() }

// Disable forwards to Default().
func Disable() { Default().Disable() }

// EnableCount forwards to Default().
func EnableCount() int { return Default().EnableCount() }

// Snapshot forwards to Default().
func Snapshot() tracer.LockSnapshot { return Default().Snapshot() }

// DumpStats forwards to Default().
func DumpStats(ctx context.Context) error { return Default().DumpStats(ctx) }

// Reduce forwards to Default().
func Reduce(ctx context.Context) (*aggregator.Report, error) { return Default().Reduce(ctx) }

// WriteTimelineHTML forwards to Default().
func WriteTimelineHTML(ctx context.Context, path string) error {
	return Default().WriteTimelineHTML(ctx, path)
}

// TraceMutex forwards to Default().
func TraceMutex(label string) *tracedlock.TracedMutex { return Default().TraceMutex(label) }

// TraceRWMutex forwards to Default().
func TraceRWMutex(label string) *tracedlock.TracedRWMutex { return Default().TraceRWMutex(label) }

// DumpOnExit writes the default session's stats dump immediately,
// through Session.DumpOnce. It registers no signal or exit handler of
// its own; it runs when the caller invokes it, and repeated calls (from
// several exit paths) write the file at most once.
func DumpOnExit(ctx context.Context) {
	Default().DumpOnce(ctx)
}
