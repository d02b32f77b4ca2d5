// Package report accumulates the run report and persists it as log.txt.
package report

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/splatprep/internal/fsutil"
)

// RunLog is the ordered set of report lines for a single run. It is never
// flushed incrementally; Write persists everything in one file write.
type RunLog struct {
	lines   []string
	elapsed time.Duration
	timed   bool
}

// New returns an empty RunLog.
func New() *RunLog {
	return &RunLog{}
}

// AddLine appends a report line. A trailing newline is not required.
func (r *RunLog) AddLine(format string, args ...interface{}) {
	r.lines = append(r.lines, strings.TrimRight(fmt.Sprintf(format, args...), "\n"))
}

// ImagesFolder records the resolved image directory.
func (r *RunLog) ImagesFolder(path string) { r.AddLine("Images folder: %s", path) }

// Matcher records the matching strategy.
func (r *RunLog) Matcher(name string) { r.AddLine("Matcher: %s", name) }

// SetElapsed records the duration of the timed region.
func (r *RunLog) SetElapsed(d time.Duration) {
	r.elapsed = d
	r.timed = true
}

// Elapsed returns the recorded duration.
func (r *RunLog) Elapsed() time.Duration { return r.elapsed }

// Lines returns the report lines, including the two elapsed-time lines once
// SetElapsed has been called.
func (r *RunLog) Lines() []string {
	out := make([]string, 0, len(r.lines)+2)
	out = append(out, r.lines...)
	if r.timed {
		out = append(out, ElapsedSeconds(r.elapsed), ElapsedMinutes(r.elapsed))
	}
	return out
}

// String renders the report as written to disk.
func (r *RunLog) String() string {
	var b strings.Builder
	for _, l := range r.Lines() {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return b.String()
}

// Write persists the report to path with a single write, replacing any file
// already there.
func (r *RunLog) Write(fsys fsutil.FileSystem, path string) error {
	if err := fsys.WriteFile(path, []byte(r.String()), 0644); err != nil {
		return fmt.Errorf("write run log %s: %w", path, err)
	}
	return nil
}

// ElapsedSeconds formats d as "Elapsed Time: <seconds> seconds".
func ElapsedSeconds(d time.Duration) string {
	return "Elapsed Time: " + formatSeconds(d.Seconds()) + " seconds"
}

// ElapsedMinutes formats d as "Elapsed Time: <m> minutes <s> seconds", where
// m is the whole number of minutes and s the fractional remainder.
func ElapsedMinutes(d time.Duration) string {
	secs := d.Seconds()
	minutes := int64(secs / 60)
	return fmt.Sprintf("Elapsed Time: %d minutes %s seconds", minutes, formatSeconds(math.Mod(secs, 60)))
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}
