package tracer

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"lockprof/pkg/aggregator"
	"lockprof/pkg/statsfile"
)

func TestDumpStatsWritesAReducedDocumentToDisk(t *testing.T) {
	tr := New(nil)
	tr.Enable()
	defer tr.Disable()

	var mu sync.Mutex
	tr.AcquireHook(&mu, 0, 5, "demo")
	tr.ReleaseHook(&mu, 20)

	path := filepath.Join(t.TempDir(), "out.pclprof")
	err := tr.DumpStats(context.Background(), path, nil, aggregator.DefaultOptions(), nil)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc statsfile.Document
	require.NoError(t, json.Unmarshal(data, &doc))
}

func TestDumpStatsDefaultsToAPlainStatsFileWhenNilIsPassed(t *testing.T) {
	tr := New(nil)
	path := filepath.Join(t.TempDir(), "out.pclprof")

	err := tr.DumpStats(context.Background(), path, nil, aggregator.DefaultOptions(), nil)
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err)
}
