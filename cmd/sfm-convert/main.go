// Command sfm-convert turns a directory of captured images into an undistorted
// sparse reconstruction ready for training, optionally with downsampled image
// sets.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/splatprep/internal/config"
	"github.com/banshee-data/splatprep/internal/history"
	"github.com/banshee-data/splatprep/internal/monitoring"
	"github.com/banshee-data/splatprep/internal/pipeline"
	"github.com/banshee-data/splatprep/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	monitoring.SetLogger(log.New(stderr, "", log.LstdFlags).Printf)

	if len(args) > 0 && args[0] == "history" {
		return runHistory(args[1:], stdout, stderr)
	}

	fs := flag.NewFlagSet("sfm-convert", flag.ContinueOnError)
	fs.SetOutput(stderr)
	opts := registerFlags(fs)
	fs.Usage = func() { printUsage(fs, stderr) }
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return pipeline.ExitUsage
	}
	if opts.showVersion {
		fmt.Fprintln(stdout, version.String("sfm-convert"))
		return 0
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected arguments: %v\n", fs.Args())
		return pipeline.ExitUsage
	}
	monitoring.EnableDebug(opts.debug)

	cfg, err := resolveConfig(fs, opts)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return pipeline.ExitUsage
	}
	if cfg.GetSourcePath() == "" {
		fmt.Fprintln(stderr, "sfm-convert requires --source_path")
		return pipeline.ExitUsage
	}

	conv := pipeline.NewConverter(settingsFrom(cfg))
	if path := cfg.GetHistoryDB(); path != "" {
		store, err := history.Open(path)
		if err != nil {
			// History is best-effort; the conversion still runs.
			monitoring.Logf("history: %v", err)
		} else {
			defer store.Close()
			conv.Recorder = &historyRecorder{store: store}
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	_, err = conv.Run(ctx)
	return pipeline.ExitCode(err)
}

func settingsFrom(cfg *config.PipelineConfig) pipeline.Settings {
	matcher := pipeline.ExhaustiveMatcher
	if cfg.GetSequentialMatcher() {
		matcher = pipeline.SequentialMatcher
	}
	return pipeline.Settings{
		SourcePath:    cfg.GetSourcePath(),
		ImagePath:     cfg.GetImagePath(),
		Colmap:        cfg.GetColmapExecutable(),
		Camera:        cfg.GetCamera(),
		UseGPU:        cfg.GetUseGPU(),
		SkipMatching:  cfg.GetSkipMatching(),
		Matcher:       matcher,
		Resize:        cfg.GetResize(),
		Magick:        cfg.GetMagickExecutable(),
		ResizeWorkers: cfg.GetResizeWorkers(),
	}
}

func printUsage(fs *flag.FlagSet, w io.Writer) {
	fmt.Fprint(w, `sfm-convert - prepare an image dataset for training

Usage:
  sfm-convert -s <dataset> [options]
  sfm-convert history -db <path> [-limit N]

The dataset directory must contain an input/ folder of images, or pass
--img_path. Flags override values from --config.

Options:
`)
	fs.PrintDefaults()
}
