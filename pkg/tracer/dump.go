package tracer

import (
	"context"
	"time"

	"lockprof/pkg/aggregator"
	"lockprof/pkg/errors"
	"lockprof/pkg/otelspan"
	"lockprof/pkg/statsfile"
)

// DumpStats snapshots the tracer, reduces it, and writes the result to
// path as a .pclprof document. Failure to write is returned to the
// caller, never propagated as a panic.
func (t *Tracer) DumpStats(ctx context.Context, path string, manager *otelspan.Manager, aggOpts aggregator.Options, sf *statsfile.StatsFile) error {
	start := time.Now()
	if t.metrics != nil {
		defer func() {
			t.metrics.DumpDurationSeconds.Observe(time.Since(start).Seconds())
		}()
	}

	snap := t.Snapshot()

	report, err := aggregator.Reduce(ctx, manager, snap, aggOpts)
	if err != nil {
		return err
	}
	if t.metrics != nil {
		t.metrics.UnbalancedReleasesTotal.Add(float64(report.UnbalancedReleases))
	}

	doc := statsfile.BuildDocument(report)
	if sf == nil {
		sf = statsfile.New()
	}
	if err := sf.Write(path, doc); err != nil {
		return errors.DumpError("write_stats", err.Error()).Wrap(err).WithMetadata("path", path)
	}
	return nil
}
