// Package timelinehtml renders a timeline.Model to absolute-positioned
// swimlane HTML: one row per thread, acquire intervals in red, held
// intervals in blue. It implements exactly that layout and nothing
// more — no JS interactivity, no external CSS framework.
package timelinehtml

import (
	"fmt"
	"strings"

	"lockprof/pkg/timeline"
)

// Layout constants.
const (
	ThreadHeight  = 30
	ThreadSpacing = 7
	XOffset       = 200
	aliveZ        = 0
	heldZ         = 1
	acquireZ      = 2
	threadLabelZ  = 3
)

// DefaultPixelsPerSecond is the horizontal scale Render uses when given
// a non-positive value: 100px per wall-clock second.
const DefaultPixelsPerSecond = 100

func px(v float64) string {
	return fmt.Sprintf("%.0fpx", v)
}

// toPixels converts a nanosecond duration to a pixel offset at the
// given horizontal scale (pixels per wall-clock second).
func toPixels(ns int64, pixelsPerSecond int) float64 {
	nsPerPixel := 1e9 / float64(pixelsPerSecond)
	return float64(ns) / nsPerPixel
}

func lockClass(hash int32) string  { return fmt.Sprintf("lock_%d", hash) }
func threadClass(tid int64) string { return fmt.Sprintf("thread_%d", tid) }

// rect is one rendered (possibly coalesced) rectangle.
type rect struct {
	left, width float64
	z           int
	classes     []string
}

// Render produces a complete, self-contained HTML document for model,
// scaled at pixelsPerSecond horizontal pixels per wall-clock second. A
// non-positive value falls back to DefaultPixelsPerSecond.
func Render(model *timeline.Model, pixelsPerSecond int) string {
	if pixelsPerSecond <= 0 {
		pixelsPerSecond = DefaultPixelsPerSecond
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<style>\n")
	writeStyles(&b, model)
	b.WriteString("</style>\n</head>\n<body>\n")

	y := ThreadSpacing
	for _, lane := range model.Swimlanes {
		fmt.Fprintf(&b, "<div class=\"swimlane alive %s\" style=\"top: %s; height: %s\"></div>\n",
			threadClass(lane.Tid), px(float64(y)), px(ThreadHeight))
		fmt.Fprintf(&b, "<div class=\"thread_label %s\" style=\"top: %s; height: %s; line-height: %s\">%d</div>\n",
			threadClass(lane.Tid), px(float64(y)), px(ThreadHeight), px(ThreadHeight), lane.Tid)
		y += ThreadHeight + ThreadSpacing
	}

	for _, lane := range model.Swimlanes {
		for _, r := range coalesce(lane.Intervals, pixelsPerSecond) {
			fmt.Fprintf(&b, "<div class=\"%s\" style=\"left: %s; width: %s; z-index: %d\"></div>\n",
				strings.Join(append(r.classes, threadClass(lane.Tid)), " "),
				px(r.left+XOffset), px(r.width), r.z)
		}
	}

	b.WriteString("</body>\n</html>\n")
	return b.String()
}

// coalesce converts normalized-ns intervals into pixel rectangles,
// merging consecutive zero-width intervals that land on the same
// scaled x-coordinate, forcing a flush the moment the coordinate
// changes.
func coalesce(intervals []timeline.Interval, pixelsPerSecond int) []rect {
	var out []rect
	var pending *rect
	var pendingX float64
	hasPending := false

	flush := func() {
		if hasPending {
			out = append(out, *pending)
			hasPending = false
		}
	}

	for _, iv := range intervals {
		x := toPixels(iv.Start, pixelsPerSecond)
		w := toPixels(iv.End-iv.Start, pixelsPerSecond)

		classes := []string{"event", lockClass(iv.LockHash)}
		z := heldZ
		cls := "held"
		if iv.Kind == timeline.Acquiring {
			z = acquireZ
			cls = "acquire"
		}
		classes = append(classes, cls)

		if px(w) != px(0) {
			flush()
			out = append(out, rect{left: x, width: w, z: z, classes: classes})
			continue
		}

		// zero-width: coalesce with the pending rect if it shares this
		// thread's current x-coordinate, else flush and start a new one.
		if hasPending && px(pendingX) == px(x) {
			continue
		}
		flush()
		pending = &rect{left: x, width: 1, z: z, classes: classes}
		pendingX = x
		hasPending = true
	}
	flush()
	return out
}

func writeStyles(b *strings.Builder, model *timeline.Model) {
	fmt.Fprintf(b, "body { background: #EEE; font-size: %s; }\n", px(ThreadHeight))
	b.WriteString(".event { position: absolute; opacity: 50%; }\n")
	b.WriteString(".alive { background: green; }\n")
	b.WriteString(".held { background: blue; }\n")
	b.WriteString(".acquire { background: red; }\n")
	b.WriteString(".swimlane { position: fixed; width: 100%; left: 0; border: 1px solid black; margin: -1px; }\n")
	fmt.Fprintf(b, ".thread_label { position: fixed; left: 0; background: #FFFD; pointer-events: none; z-index: %d; text-align: center; padding: 0 1em; }\n", threadLabelZ)
	b.WriteString(".thread_label:hover { visibility: hidden; display: none; z-index: -1; }\n")

	for hash := range model.LockLabels {
		fmt.Fprintf(b, ".%s:hover .%s { opacity: 100%%; }\n", lockClass(int32(hash)), lockClass(int32(hash)))
	}
}
