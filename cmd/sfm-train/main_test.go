package main

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/splatprep/internal/security"
	"github.com/banshee-data/splatprep/internal/train"
)

func TestBuildJobs(t *testing.T) {
	jobs, err := buildJobs("/d/scene", "/out/scene", "", "./output", nil)
	require.NoError(t, err)
	assert.Equal(t, []train.Job{{DataPath: "/d/scene", ModelPath: "/out/scene"}}, jobs)

	jobs, err = buildJobs("", "", "../data", "./output", []string{"showroom", "garden"})
	require.NoError(t, err)
	assert.Equal(t, []train.Job{
		{DataPath: filepath.Join("../data", "showroom"), ModelPath: filepath.Join("./output", "showroom")},
		{DataPath: filepath.Join("../data", "garden"), ModelPath: filepath.Join("./output", "garden")},
	}, jobs)

	for _, bad := range [][]string{
		{"/d", "", "", ""},
		{"", "", "", ""},
		{"", "", "../data", ""},
	} {
		_, err := buildJobs(bad[0], bad[1], bad[2], "./output", nil)
		assert.Error(t, err, bad)
	}
	_, err = buildJobs("/d", "/m", "", "./output", []string{"extra"})
	assert.Error(t, err)

	_, err = buildJobs("", "", "../data", "./output", []string{"../../etc"})
	assert.ErrorIs(t, err, security.ErrEscapes)
}

func TestRun_UsageError(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, run([]string{"-s", "/d"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "-s requires -m")
}

func TestRun_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 0, run([]string{"-version"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "sfm-train")
}

func TestRun_BatchReportsFirstFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "train.sh")
	// Fails for the dataset named "bad", succeeds otherwise.
	require.NoError(t, os.WriteFile(script, []byte(`case "$2" in */bad) echo broken; exit 4 ;; esac
echo "trained $2"
`), 0755))
	out := filepath.Join(dir, "output")

	var stdout, stderr bytes.Buffer
	code := run([]string{"-python", "sh", "-script", script, "-data", "/data", "-output", out, "good", "bad", "other"}, &stdout, &stderr)

	assert.Equal(t, 4, code)
	for _, name := range []string{"good", "bad", "other"} {
		_, err := os.Stat(filepath.Join(out, name, train.ReportName))
		assert.NoError(t, err, "every job in the batch runs")
	}
	assert.Contains(t, stdout.String(), "trained /data/other")
	assert.Contains(t, stdout.String(), "broken")
}
