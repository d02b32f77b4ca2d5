package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/banshee-data/splatprep/internal/history"
	"github.com/banshee-data/splatprep/internal/monitoring"
	"github.com/banshee-data/splatprep/internal/pipeline"
)

// historyRecorder stores pipeline outcomes in the run ledger.
type historyRecorder struct {
	store *history.Store
}

func (h *historyRecorder) Record(ctx context.Context, o *pipeline.Outcome) error {
	id, err := h.store.Record(ctx, runFromOutcome(o))
	if err != nil {
		return err
	}
	monitoring.Debugf("history: recorded run %s", id)
	return nil
}

func runFromOutcome(o *pipeline.Outcome) *history.Run {
	r := &history.Run{
		Dataset:      o.Settings.SourcePath,
		ImagePath:    o.ImagePath,
		Matcher:      string(o.Settings.Matcher),
		SkipMatching: o.Settings.SkipMatching,
		Resize:       o.Settings.Resize,
		Status:       history.Status(o.Status),
		ExitCode:     o.ExitCode,
		FailedStage:  o.FailedStage,
		Elapsed:      o.Elapsed,
		StartedAt:    o.StartedAt,
		Features:     o.Features,
	}
	for _, st := range o.Stages {
		r.Stages = append(r.Stages, history.Stage{
			Name:     st.Stage.String(),
			ExitCode: st.ExitCode,
			Duration: st.Duration,
		})
	}
	return r
}

func runHistory(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var dbPath string
	var limit int
	fs.StringVar(&dbPath, "db", "", "sqlite run ledger")
	fs.StringVar(&dbPath, "history-db", "", "alias for -db")
	fs.IntVar(&limit, "limit", 20, "number of runs to list")
	if err := fs.Parse(args); err != nil {
		return pipeline.ExitUsage
	}
	if dbPath == "" {
		fmt.Fprintln(stderr, "history requires -db")
		return pipeline.ExitUsage
	}

	store, err := history.Open(dbPath)
	if err != nil {
		fmt.Fprintf(stderr, "history: %v\n", err)
		return pipeline.ExitInternal
	}
	defer store.Close()

	ctx := context.Background()
	runs, err := store.Recent(ctx, limit)
	if err != nil {
		fmt.Fprintf(stderr, "history: %v\n", err)
		return pipeline.ExitInternal
	}
	sum, err := store.Summarize(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "history: %v\n", err)
		return pipeline.ExitInternal
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tSTATUS\tCODE\tSTAGE\tELAPSED\tDATASET")
	for _, r := range runs {
		stage := r.FailedStage
		if stage == "" {
			stage = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
			r.StartedAt.Local().Format(time.DateTime), r.Status, r.ExitCode, stage,
			r.Elapsed.Round(time.Millisecond), r.Dataset)
	}
	tw.Flush()

	fmt.Fprintf(stdout, "\n%d runs, %d succeeded", sum.Runs, sum.Succeeded)
	if sum.Succeeded > 0 {
		fmt.Fprintf(stdout, ", mean %s, stddev %s",
			sum.MeanElapsed.Round(time.Millisecond), sum.StdDevElapsed.Round(time.Millisecond))
	}
	fmt.Fprintln(stdout)
	return 0
}
