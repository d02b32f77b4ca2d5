package pipeline

import (
	"fmt"
	"time"

	"github.com/banshee-data/splatprep/internal/invoke"
	"github.com/banshee-data/splatprep/internal/monitoring"
	"github.com/banshee-data/splatprep/internal/timeutil"
)

// StageResult is the outcome of one stage that was started.
type StageResult struct {
	Stage    Stage
	Command  invoke.Command
	ExitCode int
	Duration time.Duration
}

// StageError reports the first stage that exited nonzero.
type StageError struct {
	Stage    Stage
	ExitCode int
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed with code %d", e.Stage.Label(), e.ExitCode)
}

func (e *StageError) Unwrap() error { return e.Err }

// Sequencer runs stages in order and stops at the first failure.
type Sequencer struct {
	Invoker *invoke.Invoker
	Options Options
	Clock   timeutil.Clock

	// BeforeStage, when set, runs before each stage is started. A non-nil
	// error aborts the sequence without starting the stage.
	BeforeStage func(Stage) error
	// OnStage, when set, receives the result of every stage that ran.
	OnStage func(StageResult)
}

// Run executes plan. It returns the results of every stage started; on
// failure the last result is the failing stage and no later stage is run.
func (s *Sequencer) Run(plan []Stage) ([]StageResult, error) {
	clock := s.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	results := make([]StageResult, 0, len(plan))
	for i, stage := range plan {
		if s.BeforeStage != nil {
			if err := s.BeforeStage(stage); err != nil {
				return results, fmt.Errorf("before %s: %w", stage, err)
			}
		}

		cmd := s.Options.Command(stage)
		monitoring.Logf("[%d/%d] %s", i+1, len(plan), cmd)

		start := clock.Now()
		res := s.Invoker.Invoke(cmd)
		sr := StageResult{
			Stage:    stage,
			Command:  cmd,
			ExitCode: res.ExitCode,
			Duration: clock.Since(start),
		}
		results = append(results, sr)
		if s.OnStage != nil {
			s.OnStage(sr)
		}

		if !res.OK() {
			return results, &StageError{Stage: stage, ExitCode: res.ExitCode, Err: res.Err}
		}
	}
	return results, nil
}
