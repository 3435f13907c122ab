// Package session wires together a tracer, its aggregation/dump
// dependencies, and a one-shot dump guard (DumpOnce) for exit paths
// into one unit of profiler lifecycle: an explicit Session handle flows
// through the registration API. Session registers no exit handler
// itself; internal/app calls DumpOnce from its Stop path.
package session

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"lockprof/internal/config"
	"lockprof/internal/metrics"
	"lockprof/pkg/aggregator"
	"lockprof/pkg/otelspan"
	"lockprof/pkg/statsfile"
	"lockprof/pkg/timeline"
	"lockprof/pkg/timelinehtml"
	"lockprof/pkg/tracedlock"
	"lockprof/pkg/tracer"
)

// Session owns one Tracer plus everything needed to reduce and dump
// it: the run's correlation ID, its aggregation options, and the
// dump-at-exit guard.
type Session struct {
	RunID string

	tracer    *tracer.Tracer
	config    *config.Config
	logger    *logrus.Logger
	otel      *otelspan.Manager
	statsFile *statsfile.StatsFile
	aggOpts   aggregator.Options

	dumpOnce sync.Once
}

// New builds a Session from cfg, logging to logger (or a standard
// logger if nil) and publishing to m (may be nil to disable metrics).
// m is threaded straight into the tracer, which is the only component
// that touches every collector's hot path (events recorded, interner
// population, capacity trips).
func New(cfg *config.Config, logger *logrus.Logger, m *metrics.Metrics) *Session {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	t := tracer.New(logger,
		tracer.WithShardCount(cfg.Tracer.ShardCount),
		tracer.WithMaxStackDepth(cfg.Tracer.MaxStackDepth),
		tracer.WithMaxInternedHandles(cfg.Tracer.MaxInternedHandles),
		tracer.WithMetrics(m),
	)

	return &Session{
		RunID:     uuid.NewString(),
		tracer:    t,
		config:    cfg,
		logger:    logger,
		otel:      otelspan.NewNoop("lockprof"),
		statsFile: &statsfile.StatsFile{Compress: cfg.Dump.Gzip},
		aggOpts:   aggregator.Options{Denylist: cfg.Tracer.FrameDenylist},
	}
}

// RegisterFunc forwards to the underlying tracer.
func (s *Session) RegisterFunc(f func()) func() { return s.tracer.RegisterFunc(f) }

// RegisterContextFunc forwards to the underlying tracer.
func (s *Session) RegisterContextFunc(ctx context.Context, f func(context.Context) error) error {
	return s.tracer.RegisterContextFunc(ctx, f)
}

// Enable forwards to the underlying tracer.
func (s *Session) Enable() { s.tracer.Enable() }

// Disable forwards to the underlying tracer.
func (s *Session) Disable() { s.tracer.Disable() }

// EnableCount forwards to the underlying tracer.
func (s *Session) EnableCount() int { return s.tracer.EnableCount() }

// Snapshot forwards to the underlying tracer.
func (s *Session) Snapshot() tracer.LockSnapshot { return s.tracer.Snapshot() }

// TraceMutex builds a TracedMutex reporting to this session's tracer
// under a human-readable label.
func (s *Session) TraceMutex(label string) *tracedlock.TracedMutex {
	return tracedlock.NewTracedMutex(s.tracer, label)
}

// TraceRWMutex builds a TracedRWMutex reporting to this session's tracer.
func (s *Session) TraceRWMutex(label string) *tracedlock.TracedRWMutex {
	return tracedlock.NewTracedRWMutex(s.tracer, label)
}

// Reduce aggregates the current snapshot without writing it anywhere.
func (s *Session) Reduce(ctx context.Context) (*aggregator.Report, error) {
	return aggregator.Reduce(ctx, s.otel, s.tracer.Snapshot(), s.aggOpts)
}

// DumpStats reduces the current snapshot and writes it to the
// configured dump path. Idempotent only in the sense that calling it
// repeatedly overwrites the same path; the one-shot dump-at-exit path
// is DumpOnce below.
func (s *Session) DumpStats(ctx context.Context) error {
	return s.tracer.DumpStats(ctx, s.config.Dump.Path, s.otel, s.aggOpts, s.statsFile)
}

// DumpOnce runs DumpStats at most once per Session, regardless of how
// many times it is called, so a signal handler and a normal exit path
// may both invoke it without double-writing.
func (s *Session) DumpOnce(ctx context.Context) {
	s.dumpOnce.Do(func() {
		if err := s.DumpStats(ctx); err != nil {
			s.logger.WithFields(logrus.Fields{
				"component": "session",
				"run_id":    s.RunID,
			}).WithError(err).Error("failed to write stats dump")
		}
	})
}

// WriteTimelineHTML reduces the current snapshot and atomically writes
// the rendered swimlane timeline to path: the document is written to
// "<path>.tmp" first and only renamed into place once the write
// succeeds, matching StatsFile.Write's crash-safety discipline. Opening
// the written file in a browser is left to the caller; that's a
// desktop concern, not a library responsibility.
func (s *Session) WriteTimelineHTML(ctx context.Context, path string) error {
	snap := s.tracer.Snapshot()
	report, err := aggregator.Reduce(ctx, s.otel, snap, s.aggOpts)
	if err != nil {
		return fmt.Errorf("reduce snapshot for timeline: %w", err)
	}

	model := timeline.Build(report.Pairs, snap.LockHashes)
	html := timelinehtml.Render(model, s.config.Timeline.PixelsPerSecond)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(html), 0o644); err != nil {
		return fmt.Errorf("write temp timeline file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename timeline file into place: %w", err)
	}
	return nil
}

// Disabled reports whether the underlying tracer has permanently
// disabled itself.
func (s *Session) Disabled() bool { return s.tracer.Disabled() }

// DisableReason returns why the tracer disabled itself, if it has.
func (s *Session) DisableReason() string { return s.tracer.DisableReason() }
