package report

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/splatprep/internal/fsutil"
)

func TestElapsedFormatting(t *testing.T) {
	tests := []struct {
		d       time.Duration
		seconds string
		minutes string
	}{
		{0, "Elapsed Time: 0 seconds", "Elapsed Time: 0 minutes 0 seconds"},
		{1500 * time.Millisecond, "Elapsed Time: 1.5 seconds", "Elapsed Time: 0 minutes 1.5 seconds"},
		{60 * time.Second, "Elapsed Time: 60 seconds", "Elapsed Time: 1 minutes 0 seconds"},
		{125*time.Second + 250*time.Millisecond, "Elapsed Time: 125.25 seconds", "Elapsed Time: 2 minutes 5.25 seconds"},
		{2 * time.Hour, "Elapsed Time: 7200 seconds", "Elapsed Time: 120 minutes 0 seconds"},
	}
	for _, tc := range tests {
		t.Run(tc.d.String(), func(t *testing.T) {
			assert.Equal(t, tc.seconds, ElapsedSeconds(tc.d))
			assert.Equal(t, tc.minutes, ElapsedMinutes(tc.d))
		})
	}
}

func TestElapsedFormsAgree(t *testing.T) {
	for _, d := range []time.Duration{
		3 * time.Millisecond,
		59*time.Second + 999*time.Millisecond,
		61 * time.Second,
		47*time.Minute + 13*time.Second + 77*time.Millisecond,
		5*time.Hour + 123456789*time.Nanosecond,
	} {
		var total, secs float64
		var mins int64
		_, err := fmt.Sscanf(ElapsedSeconds(d), "Elapsed Time: %g seconds", &total)
		require.NoError(t, err)
		_, err = fmt.Sscanf(ElapsedMinutes(d), "Elapsed Time: %d minutes %g seconds", &mins, &secs)
		require.NoError(t, err)

		assert.InDelta(t, total, float64(mins)*60+secs, 1e-6, "duration %s", d)
		assert.GreaterOrEqual(t, secs, 0.0)
		assert.Less(t, secs, 60.0)
	}
}

func TestRunLog_Lines(t *testing.T) {
	r := New()
	r.ImagesFolder("/data/garden/input")
	r.Matcher("exhaustive_matcher")

	assert.Equal(t, []string{
		"Images folder: /data/garden/input",
		"Matcher: exhaustive_matcher",
	}, r.Lines(), "no timing lines before SetElapsed")

	r.SetElapsed(90 * time.Second)
	lines := r.Lines()
	require.Len(t, lines, 4)
	assert.Equal(t, "Elapsed Time: 90 seconds", lines[2])
	assert.Equal(t, "Elapsed Time: 1 minutes 30 seconds", lines[3])
	assert.Equal(t, 90*time.Second, r.Elapsed())
}

func TestRunLog_AddLineStripsNewline(t *testing.T) {
	r := New()
	r.AddLine("Matcher: %s\n", "sequential_matcher")
	assert.Equal(t, "Matcher: sequential_matcher\n", r.String())
}

func TestRunLog_Write(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	mfs.MkdirAll("/d", 0755)

	r := New()
	r.ImagesFolder("/d/input")
	r.Matcher("exhaustive_matcher")
	r.SetElapsed(2 * time.Second)
	require.NoError(t, r.Write(mfs, "/d/log.txt"))

	data, err := mfs.ReadFile("/d/log.txt")
	require.NoError(t, err)
	got := string(data)
	assert.Equal(t, 1, strings.Count(got, "Matcher:"))
	assert.Equal(t, 2, strings.Count(got, "Elapsed Time:"))
	assert.True(t, strings.HasPrefix(got, "Images folder: /d/input\n"))
}

func TestRunLog_WriteMissingDir(t *testing.T) {
	r := New()
	err := r.Write(fsutil.NewMemoryFileSystem(), "/nope/log.txt")
	assert.Error(t, err)
}
