package pipeline

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/banshee-data/splatprep/internal/colmapdb"
	"github.com/banshee-data/splatprep/internal/fsutil"
	"github.com/banshee-data/splatprep/internal/invoke"
	"github.com/banshee-data/splatprep/internal/layout"
	"github.com/banshee-data/splatprep/internal/monitoring"
	"github.com/banshee-data/splatprep/internal/pyramid"
	"github.com/banshee-data/splatprep/internal/report"
	"github.com/banshee-data/splatprep/internal/timeutil"
)

// Process exit codes for failures that do not come from an external tool.
const (
	ExitInternal     = 1
	ExitUsage        = 2
	ExitPrecondition = 3
)

// ResizeStage names the pyramid step in outcomes and history.
const ResizeStage = "resize"

// Status is the final state of a run.
type Status string

const (
	StatusSucceeded          Status = "succeeded"
	StatusStageFailed        Status = "stage_failed"
	StatusPreconditionFailed Status = "precondition_failed"
	StatusError              Status = "error"
)

// Settings are the user-facing parameters of one conversion.
type Settings struct {
	SourcePath    string
	ImagePath     string
	Colmap        string
	Camera        string
	UseGPU        bool
	SkipMatching  bool
	Matcher       Matcher
	Resize        bool
	Magick        string
	ResizeWorkers int
}

// Outcome describes a finished run, successful or not.
type Outcome struct {
	Settings  Settings
	ImagePath string
	Status    Status
	ExitCode  int
	// FailedStage is the stage name, or ResizeStage, that ended the run.
	FailedStage string
	StartedAt   time.Time
	Elapsed     time.Duration
	Stages      []StageResult
	Features    *colmapdb.Stats
	Pyramid     []pyramid.Entry
	Err         error
}

// Recorder persists outcomes. Errors are logged and never change the run's
// exit status.
type Recorder interface {
	Record(ctx context.Context, o *Outcome) error
}

// Converter runs a complete dataset conversion.
type Converter struct {
	Settings Settings
	FS       fsutil.FileSystem
	Invoker  *invoke.Invoker
	Clock    timeutil.Clock

	// Inspect reads feature database counts before alignment. Nil disables
	// inspection.
	Inspect func(path string) (colmapdb.Stats, error)
	// Recorder, when set, receives the outcome of every run.
	Recorder Recorder
}

// NewConverter creates a Converter over the OS filesystem, real processes and
// the wall clock.
func NewConverter(s Settings) *Converter {
	return &Converter{
		Settings: s,
		FS:       fsutil.OSFileSystem{},
		Invoker:  invoke.NewInvoker(),
		Clock:    timeutil.RealClock{},
		Inspect:  colmapdb.Inspect,
	}
}

// Run performs the conversion. The returned error is nil on success; use
// ExitCode to map it to a process status.
func (c *Converter) Run(ctx context.Context) (*Outcome, error) {
	o := c.run(ctx)
	if c.Recorder != nil {
		if err := c.Recorder.Record(ctx, o); err != nil {
			monitoring.Logf("history: failed to record run: %v", err)
		}
	}
	return o, o.Err
}

func (c *Converter) run(ctx context.Context) *Outcome {
	s := c.Settings
	l := layout.New(s.SourcePath)
	mgr := &layout.Manager{FS: c.FS, Layout: l}
	o := &Outcome{Settings: s, ImagePath: l.ImagesInput(s.ImagePath), StartedAt: c.Clock.Now()}

	if err := mgr.CheckImages(o.ImagePath); err != nil {
		monitoring.Logf("Image folder: %s does not exist!", o.ImagePath)
		return o.fail(StatusPreconditionFailed, "", err)
	}

	runlog := report.New()
	runlog.ImagesFolder(o.ImagePath)
	runlog.Matcher(string(s.matcher()))

	start := c.Clock.Now()
	plan := Plan(s.SkipMatching)
	if !s.SkipMatching {
		if err := mgr.PrepareDistorted(); err != nil {
			return o.fail(StatusError, "", err)
		}
	}

	seq := &Sequencer{
		Invoker: c.Invoker,
		Clock:   c.Clock,
		Options: Options{
			Colmap:    s.Colmap,
			Camera:    s.Camera,
			UseGPU:    s.UseGPU,
			Matcher:   s.matcher(),
			ImagePath: o.ImagePath,
			Layout:    l,
		},
		BeforeStage: func(st Stage) error {
			if st == ModelAlignment {
				o.Features = c.inspect(l.Database())
			}
			return nil
		},
	}
	stages, err := seq.Run(plan)
	o.Stages = stages
	if err != nil {
		o.Elapsed = c.Clock.Since(start)
		var se *StageError
		if errors.As(err, &se) {
			monitoring.Logf("%s. Exiting.", se)
			return o.fail(StatusStageFailed, se.Stage.String(), err)
		}
		return o.fail(StatusError, "", err)
	}

	if _, err := mgr.RelocateSparse(); err != nil {
		o.Elapsed = c.Clock.Since(start)
		return o.fail(StatusError, "", err)
	}

	o.Elapsed = c.Clock.Since(start)
	runlog.SetElapsed(o.Elapsed)
	if err := runlog.Write(c.FS, l.LogFile()); err != nil {
		return o.fail(StatusError, "", err)
	}

	if s.Resize {
		gen := &pyramid.Generator{
			FS:      c.FS,
			Invoker: c.Invoker,
			Layout:  l,
			Magick:  s.Magick,
			Workers: s.ResizeWorkers,
		}
		entries, err := gen.Run(ctx)
		o.Pyramid = entries
		if err != nil {
			var re *pyramid.ResizeError
			if errors.As(err, &re) {
				monitoring.Logf("%s. Exiting.", re)
				return o.fail(StatusStageFailed, ResizeStage, err)
			}
			return o.fail(StatusError, ResizeStage, err)
		}
	}

	monitoring.Logf("Done.")
	o.Status = StatusSucceeded
	return o
}

// inspect reads feature database counts for diagnostics. Failures are logged
// and otherwise ignored.
func (c *Converter) inspect(path string) *colmapdb.Stats {
	if c.Inspect == nil {
		return nil
	}
	stats, err := c.Inspect(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			monitoring.Logf("feature database %s: %v", path, err)
		}
		return nil
	}
	monitoring.Logf("feature database: %s", stats)
	return &stats
}

func (o *Outcome) fail(status Status, stage string, err error) *Outcome {
	o.Status = status
	o.FailedStage = stage
	o.Err = err
	o.ExitCode = ExitCode(err)
	return o
}

func (s Settings) matcher() Matcher {
	if s.Matcher == "" {
		return ExhaustiveMatcher
	}
	return s.Matcher
}

// ExitCode maps a Run error to a process exit status: 0 for nil, the tool's
// own code for a stage or resize failure, ExitPrecondition for a missing
// image directory and ExitInternal otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var se *StageError
	if errors.As(err, &se) {
		return se.ExitCode
	}
	var re *pyramid.ResizeError
	if errors.As(err, &re) {
		return re.ExitCode
	}
	var pe *layout.PreconditionError
	if errors.As(err, &pe) {
		return ExitPrecondition
	}
	return ExitInternal
}
