// Package train launches the downstream training script on a converted
// dataset and keeps a copy of its output next to the model.
package train

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/banshee-data/splatprep/internal/fsutil"
	"github.com/banshee-data/splatprep/internal/invoke"
	"github.com/banshee-data/splatprep/internal/monitoring"
)

// Defaults for Job fields left empty.
const (
	DefaultPython = "python"
	DefaultScript = "train.py"
	DefaultImages = "images_8"
	// ReportName is the output copy written inside the model directory.
	ReportName = "output.txt"
)

// Job describes one training run.
type Job struct {
	Python    string
	Script    string
	DataPath  string
	ModelPath string
	// Images is the image subdirectory of DataPath to train on.
	Images string
}

// Command returns the invocation for j.
func (j Job) Command() invoke.Command {
	return invoke.NewCommand(or(j.Python, DefaultPython), or(j.Script, DefaultScript),
		"-s", j.DataPath,
		"-m", j.ModelPath,
		"-i", or(j.Images, DefaultImages))
}

// ReportPath is where the output copy is written.
func (j Job) ReportPath() string { return filepath.Join(j.ModelPath, ReportName) }

// Launcher runs training jobs.
type Launcher struct {
	FS      fsutil.FileSystem
	Builder invoke.CommandBuilder
	// Output receives the job's combined output alongside the report file.
	Output io.Writer
}

// NewLauncher creates a Launcher that runs real processes and echoes to stdout.
func NewLauncher() *Launcher {
	return &Launcher{FS: fsutil.OSFileSystem{}, Builder: invoke.NewRealCommandBuilder(), Output: os.Stdout}
}

// Run creates the model directory, truncates the report and runs the job.
// The returned code is the job's own exit status; err is set only when the
// job could not be prepared.
func (l *Launcher) Run(j Job) (int, error) {
	if j.DataPath == "" || j.ModelPath == "" {
		return 0, fmt.Errorf("train: data and model paths are required")
	}
	if err := l.FS.MkdirAll(j.ModelPath, 0755); err != nil {
		return 0, fmt.Errorf("create model dir: %w", err)
	}
	report, err := l.FS.Create(j.ReportPath())
	if err != nil {
		return 0, fmt.Errorf("create report: %w", err)
	}
	defer func() {
		// The child's status is still returned; a lost report is logged.
		if err := report.Close(); err != nil {
			monitoring.Logf("training report %s: %v", j.ReportPath(), err)
		}
	}()

	out := io.Writer(report)
	if l.Output != nil {
		out = io.MultiWriter(l.Output, report)
	}
	inv := &invoke.Invoker{Builder: l.Builder, Stdout: out, Stderr: out}

	cmd := j.Command()
	monitoring.Logf("training: %s", cmd)
	res := inv.Invoke(cmd)
	if !res.OK() {
		monitoring.Logf("training exited with code %d", res.ExitCode)
	}
	return res.ExitCode, nil
}

func or(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
