package statsfile

import (
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"lockprof/pkg/aggregator"
	"lockprof/pkg/types"
)

func sampleReport() *aggregator.Report {
	return &aggregator.Report{
		LineStats: []aggregator.LineStatEntry{
			{File: "b.go", Line: 5, LockHash: 0, LockStats: types.LockStats{Hits: 2, TotalAcquireTime: 20}},
			{File: "a.go", Line: 10, LockHash: 0, LockStats: types.LockStats{Hits: 1, TotalAcquireTime: 5}},
			{File: "a.go", Line: 1, LockHash: 0, LockStats: types.LockStats{Hits: 3, TotalAcquireTime: 9}},
		},
	}
}

func TestBuildDocumentGroupsByFileSortsFilesAndLines(t *testing.T) {
	doc := BuildDocument(sampleReport())

	require.Equal(t, unit, doc.Unit)
	require.Len(t, doc.ProfiledFunctions, 2)
	require.Equal(t, "a.go", doc.ProfiledFunctions[0].File)
	require.Equal(t, "b.go", doc.ProfiledFunctions[1].File)
	require.Equal(t, dummyFunctionName, doc.ProfiledFunctions[0].FunctionName)
	require.Equal(t, dummyLineNo, doc.ProfiledFunctions[0].LineNo)

	aLines := doc.ProfiledFunctions[0].ProfiledLines
	require.Len(t, aLines, 2)
	require.Equal(t, 1, aLines[0].LineNo)
	require.Equal(t, 10, aLines[1].LineNo)
}

func TestWriteAtomicallyReplacesDestination(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.pclprof")

	sf := New()
	doc := BuildDocument(sampleReport())
	require.NoError(t, sf.Write(path, doc))

	_, err := os.Stat(path + ".tmp")
	require.True(t, os.IsNotExist(err), "temp file must be renamed away, not left behind")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var roundTrip Document
	require.NoError(t, json.Unmarshal(data, &roundTrip))
	require.Equal(t, doc.ProfiledFunctions[0].File, roundTrip.ProfiledFunctions[0].File)
}

func TestWriteWithCompressionProducesValidGzip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.pclprof.gz")

	sf := &StatsFile{Compress: true}
	doc := BuildDocument(sampleReport())
	require.NoError(t, sf.Write(path, doc))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer r.Close()

	var roundTrip Document
	require.NoError(t, json.NewDecoder(r).Decode(&roundTrip))
	require.Len(t, roundTrip.ProfiledFunctions, 2)
}

func TestDefaultPathHonorsEnvOverride(t *testing.T) {
	t.Setenv(EnvFilename, "/tmp/custom.pclprof")
	require.Equal(t, "/tmp/custom.pclprof", DefaultPath())
}
