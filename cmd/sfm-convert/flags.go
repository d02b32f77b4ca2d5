package main

import (
	"flag"

	"github.com/banshee-data/splatprep/internal/config"
)

type cliOptions struct {
	sourcePath    string
	imagePath     string
	camera        string
	colmap        string
	magick        string
	noGPU         bool
	skipMatching  bool
	seqMatcher    bool
	resize        bool
	resizeWorkers int
	configPath    string
	historyDB     string
	debug         bool
	showVersion   bool
}

// registerFlags defines the command-line surface. Short and long spellings
// share a variable.
func registerFlags(fs *flag.FlagSet) *cliOptions {
	o := &cliOptions{}
	fs.StringVar(&o.sourcePath, "source_path", "", "dataset root (required)")
	fs.StringVar(&o.sourcePath, "s", "", "shorthand for --source_path")
	fs.StringVar(&o.imagePath, "img_path", "", "image directory (default <source_path>/input)")
	fs.StringVar(&o.imagePath, "img", "", "shorthand for --img_path")
	fs.StringVar(&o.camera, "camera", config.DefaultCamera, "camera model")
	fs.StringVar(&o.colmap, "colmap_executable", "", "reconstruction tool (default colmap on PATH)")
	fs.StringVar(&o.magick, "magick_executable", "", "image tool (default magick on PATH)")
	fs.BoolVar(&o.noGPU, "no_gpu", false, "disable GPU feature extraction and matching")
	fs.BoolVar(&o.skipMatching, "skip_matching", false, "skip extraction, matching and mapping")
	fs.BoolVar(&o.seqMatcher, "sequential_matcher", false, "use the sequential matcher for video frames")
	fs.BoolVar(&o.seqMatcher, "seq_matcher", false, "shorthand for --sequential_matcher")
	fs.BoolVar(&o.resize, "resize", false, "also produce images_2, images_4 and images_8")
	fs.IntVar(&o.resizeWorkers, "resize_workers", config.DefaultResizeWorkers, "images resized concurrently")
	fs.StringVar(&o.configPath, "config", "", "JSON or HCL settings file")
	fs.StringVar(&o.historyDB, "history-db", "", "sqlite run ledger (disabled when empty)")
	fs.BoolVar(&o.debug, "debug", false, "log every command line")
	fs.BoolVar(&o.showVersion, "version", false, "print version and exit")
	return o
}

// resolveConfig loads the optional config file and applies every flag that
// was set explicitly on top of it.
func resolveConfig(fs *flag.FlagSet, o *cliOptions) (*config.PipelineConfig, error) {
	cfg := &config.PipelineConfig{}
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	set := &config.PipelineConfig{}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "source_path", "s":
			set.SourcePath = &o.sourcePath
		case "img_path", "img":
			set.ImagePath = &o.imagePath
		case "camera":
			set.Camera = &o.camera
		case "colmap_executable":
			set.ColmapExecutable = &o.colmap
		case "magick_executable":
			set.MagickExecutable = &o.magick
		case "no_gpu":
			set.NoGPU = &o.noGPU
		case "skip_matching":
			set.SkipMatching = &o.skipMatching
		case "sequential_matcher", "seq_matcher":
			set.SequentialMatcher = &o.seqMatcher
		case "resize":
			set.Resize = &o.resize
		case "resize_workers":
			set.ResizeWorkers = &o.resizeWorkers
		case "history-db":
			set.HistoryDB = &o.historyDB
		}
	})
	cfg.Overlay(set)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
