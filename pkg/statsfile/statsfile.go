// Package statsfile writes the .pclprof JSON stats document: a
// PyCharm line-profiler-compatible format with the usual default
// filename behavior and "Dummy"/line-1 fallback for unresolvable
// frames.
package statsfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/gzip"

	"lockprof/pkg/aggregator"
)

// EnvFilename is the environment variable that overrides the default
// output path.
const EnvFilename = "PC_LINE_PROFILER_STATS_FILENAME"

// dummyFunctionName and dummyLineNo are the fallback values emitted
// when a frame's containing function start line cannot be resolved.
const dummyFunctionName = "Dummy"
const dummyLineNo = 1

// unit is the fixed timescale the on-disk format declares: all "time"
// fields are nanoseconds, hence unit = 1e-9 seconds.
const unit = 1e-9

// ProfiledLine is one line's aggregated hit/time counters.
type ProfiledLine struct {
	LineNo int   `json:"lineNo"`
	Hits   int64 `json:"hits"`
	Time   int64 `json:"time"`
}

// ProfiledFunction groups the lines belonging to one (file, function).
type ProfiledFunction struct {
	File          string         `json:"file"`
	LineNo        int            `json:"lineNo"`
	FunctionName  string         `json:"functionName"`
	ProfiledLines []ProfiledLine `json:"profiledLines"`
}

// Document is the full .pclprof JSON object.
type Document struct {
	ProfiledFunctions []ProfiledFunction `json:"profiledFunctions"`
	Unit              float64            `json:"unit"`
}

// StatsFile writes Documents to disk. Compress turns on gzip framing
// of the written bytes (a supplement over the original format, which
// was always plain JSON).
type StatsFile struct {
	Compress bool
}

// New returns a StatsFile with no compression.
func New() *StatsFile {
	return &StatsFile{}
}

// BuildDocument converts an aggregator.Report's line-level stats into
// the .pclprof shape, grouping by file and synthesizing one
// ProfiledFunction per file (function start line unknown at this
// layer, so every function uses the Dummy/line-1 fallback).
func BuildDocument(report *aggregator.Report) *Document {
	type key struct {
		file string
		line int
	}
	merged := make(map[key]*ProfiledLine)
	var order []key

	for _, ls := range report.LineStats {
		k := key{ls.File, ls.Line}
		pl, ok := merged[k]
		if !ok {
			pl = &ProfiledLine{LineNo: ls.Line}
			merged[k] = pl
			order = append(order, k)
		}
		pl.Hits += ls.Hits
		pl.Time += ls.TotalAcquireTime
	}

	byFile := make(map[string][]ProfiledLine)
	var fileOrder []string
	for _, k := range order {
		if _, ok := byFile[k.file]; !ok {
			fileOrder = append(fileOrder, k.file)
		}
		byFile[k.file] = append(byFile[k.file], *merged[k])
	}
	sort.Strings(fileOrder)

	doc := &Document{Unit: unit}
	for _, file := range fileOrder {
		lines := byFile[file]
		sort.Slice(lines, func(i, j int) bool { return lines[i].LineNo < lines[j].LineNo })
		doc.ProfiledFunctions = append(doc.ProfiledFunctions, ProfiledFunction{
			File:          file,
			LineNo:        dummyLineNo,
			FunctionName:  dummyFunctionName,
			ProfiledLines: lines,
		})
	}
	return doc
}

// DefaultPath returns the default output path: PC_LINE_PROFILER_STATS_FILENAME
// if set, otherwise argv[0]'s basename with ".pclprof" appended.
func DefaultPath() string {
	if v := os.Getenv(EnvFilename); v != "" {
		return v
	}
	base := filepath.Base(os.Args[0])
	return base + ".pclprof"
}

// Write marshals doc and atomically replaces path: the document is
// written to "<path>.tmp" first and only renamed into place once the
// write succeeds, so a crash mid-write never corrupts a prior dump.
func (sf *StatsFile) Write(path string, doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal stats document: %w", err)
	}

	if sf.Compress {
		data, err = gzipBytes(data)
		if err != nil {
			return fmt.Errorf("gzip stats document: %w", err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp stats file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename stats file into place: %w", err)
	}
	return nil
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
