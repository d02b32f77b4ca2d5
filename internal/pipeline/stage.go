// Package pipeline sequences the reconstruction stages of a dataset
// conversion and orchestrates a complete run around them.
package pipeline

import (
	"fmt"

	"github.com/banshee-data/splatprep/internal/invoke"
	"github.com/banshee-data/splatprep/internal/layout"
)

// Stage identifies one reconstruction step.
type Stage int

const (
	FeatureExtraction Stage = iota + 1
	FeatureMatching
	BundleAdjustment
	ModelAlignment
	Undistortion
)

var stageNames = map[Stage]string{
	FeatureExtraction: "feature_extraction",
	FeatureMatching:   "feature_matching",
	BundleAdjustment:  "bundle_adjustment",
	ModelAlignment:    "model_alignment",
	Undistortion:      "undistortion",
}

// Labels used in failure diagnostics.
var stageLabels = map[Stage]string{
	FeatureExtraction: "Feature extraction",
	FeatureMatching:   "Feature matching",
	BundleAdjustment:  "Mapper",
	ModelAlignment:    "Model aligner",
	Undistortion:      "Image undistortion",
}

func (s Stage) String() string {
	if n, ok := stageNames[s]; ok {
		return n
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Label is the human-readable stage name.
func (s Stage) Label() string {
	if l, ok := stageLabels[s]; ok {
		return l
	}
	return s.String()
}

// Matching reports whether s belongs to the skippable group of extraction,
// matching and mapping.
func (s Stage) Matching() bool {
	return s >= FeatureExtraction && s <= BundleAdjustment
}

// Plan returns the stages to run in order. The matching group is included or
// excluded as a whole; alignment and undistortion always run.
func Plan(skipMatching bool) []Stage {
	if skipMatching {
		return []Stage{ModelAlignment, Undistortion}
	}
	return []Stage{FeatureExtraction, FeatureMatching, BundleAdjustment, ModelAlignment, Undistortion}
}

// Matcher is the feature matching strategy.
type Matcher string

const (
	ExhaustiveMatcher Matcher = "exhaustive_matcher"
	SequentialMatcher Matcher = "sequential_matcher"
)

// DefaultColmap and DefaultCamera apply when Options leaves them empty.
const (
	DefaultColmap = "colmap"
	DefaultCamera = "OPENCV"
)

// mapperTolerance is tighter than the tool default, which speeds up global
// bundle adjustment.
const mapperTolerance = "0.000001"

// Options are the tool parameters shared by every stage.
type Options struct {
	Colmap    string
	Camera    string
	UseGPU    bool
	Matcher   Matcher
	ImagePath string
	Layout    layout.Layout
}

func (o Options) colmap() string {
	if o.Colmap == "" {
		return DefaultColmap
	}
	return o.Colmap
}

func (o Options) camera() string {
	if o.Camera == "" {
		return DefaultCamera
	}
	return o.Camera
}

func (o Options) matcher() Matcher {
	if o.Matcher == "" {
		return ExhaustiveMatcher
	}
	return o.Matcher
}

func (o Options) gpu() string {
	if o.UseGPU {
		return "1"
	}
	return "0"
}

// Command builds the tool invocation for stage s.
func (o Options) Command(s Stage) invoke.Command {
	l := o.Layout
	switch s {
	case FeatureExtraction:
		return invoke.NewCommand(o.colmap(), "feature_extractor",
			"--database_path", l.Database(),
			"--image_path", o.ImagePath,
			"--ImageReader.single_camera", "1",
			"--ImageReader.camera_model", o.camera(),
			"--SiftExtraction.use_gpu", o.gpu())
	case FeatureMatching:
		return invoke.NewCommand(o.colmap(), string(o.matcher()),
			"--database_path", l.Database(),
			"--SiftMatching.use_gpu", o.gpu())
	case BundleAdjustment:
		return invoke.NewCommand(o.colmap(), "mapper",
			"--database_path", l.Database(),
			"--image_path", o.ImagePath,
			"--output_path", l.DistortedSparse(),
			"--Mapper.ba_global_function_tolerance="+mapperTolerance)
	case ModelAlignment:
		return invoke.NewCommand(o.colmap(), "model_aligner",
			"--input_path", l.DistortedModel(),
			"--database_path", l.Database(),
			"--robust_alignment_max_error", "0.1",
			"--alignment_type", "plane",
			"--output_path", l.DistortedModel())
	case Undistortion:
		return invoke.NewCommand(o.colmap(), "image_undistorter",
			"--image_path", o.ImagePath,
			"--input_path", l.DistortedModel(),
			"--output_path", l.Root,
			"--output_type", "COLMAP")
	}
	panic(fmt.Sprintf("pipeline: unknown stage %d", int(s)))
}
