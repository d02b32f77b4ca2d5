// Package config loads optional run settings from a JSON or HCL file. Every
// field is a pointer so that a partial file leaves the rest to the Get*
// defaults and to command-line flags.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/hclsimple"
)

// Defaults shared with the command-line surface.
const (
	DefaultCamera        = "OPENCV"
	DefaultColmap        = "colmap"
	DefaultMagick        = "magick"
	DefaultResizeWorkers = 1
)

const maxFileSize = 1 * 1024 * 1024 // 1MB

// PipelineConfig holds the settings of a conversion run.
type PipelineConfig struct {
	SourcePath        *string `json:"source_path,omitempty" hcl:"source_path,optional"`
	ImagePath         *string `json:"img_path,omitempty" hcl:"img_path,optional"`
	Camera            *string `json:"camera,omitempty" hcl:"camera,optional"`
	ColmapExecutable  *string `json:"colmap_executable,omitempty" hcl:"colmap_executable,optional"`
	MagickExecutable  *string `json:"magick_executable,omitempty" hcl:"magick_executable,optional"`
	NoGPU             *bool   `json:"no_gpu,omitempty" hcl:"no_gpu,optional"`
	SkipMatching      *bool   `json:"skip_matching,omitempty" hcl:"skip_matching,optional"`
	SequentialMatcher *bool   `json:"sequential_matcher,omitempty" hcl:"sequential_matcher,optional"`
	Resize            *bool   `json:"resize,omitempty" hcl:"resize,optional"`
	ResizeWorkers     *int    `json:"resize_workers,omitempty" hcl:"resize_workers,optional"`
	HistoryDB         *string `json:"history_db,omitempty" hcl:"history_db,optional"`
}

// Load reads a config file. The format is chosen by extension: .json or .hcl.
// Fields omitted from the file stay nil.
func Load(path string) (*PipelineConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".hcl" {
		return nil, fmt.Errorf("config file must have .json or .hcl extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &PipelineConfig{}
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	case ".hcl":
		if err := hclsimple.Decode(cleanPath, data, nil, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config HCL: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the values that are set.
func (c *PipelineConfig) Validate() error {
	if c.SourcePath != nil && *c.SourcePath == "" {
		return fmt.Errorf("source_path must not be empty")
	}
	if c.Camera != nil && strings.TrimSpace(*c.Camera) == "" {
		return fmt.Errorf("camera must not be empty")
	}
	if c.ResizeWorkers != nil && *c.ResizeWorkers < 1 {
		return fmt.Errorf("resize_workers must be at least 1, got %d", *c.ResizeWorkers)
	}
	return nil
}

// Overlay copies every field set in o onto c.
func (c *PipelineConfig) Overlay(o *PipelineConfig) {
	if o == nil {
		return
	}
	overlay(&c.SourcePath, o.SourcePath)
	overlay(&c.ImagePath, o.ImagePath)
	overlay(&c.Camera, o.Camera)
	overlay(&c.ColmapExecutable, o.ColmapExecutable)
	overlay(&c.MagickExecutable, o.MagickExecutable)
	overlay(&c.NoGPU, o.NoGPU)
	overlay(&c.SkipMatching, o.SkipMatching)
	overlay(&c.SequentialMatcher, o.SequentialMatcher)
	overlay(&c.Resize, o.Resize)
	overlay(&c.ResizeWorkers, o.ResizeWorkers)
	overlay(&c.HistoryDB, o.HistoryDB)
}

func overlay[T any](dst **T, src *T) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

func str(p *string, def string) string {
	if p == nil || *p == "" {
		return def
	}
	return *p
}

func isSet(p *bool) bool { return p != nil && *p }

// GetSourcePath returns the dataset root, or "" when unset.
func (c *PipelineConfig) GetSourcePath() string { return str(c.SourcePath, "") }

// GetImagePath returns the image directory override, or "" for <root>/input.
func (c *PipelineConfig) GetImagePath() string { return str(c.ImagePath, "") }

// GetCamera returns the camera model or the default.
func (c *PipelineConfig) GetCamera() string { return str(c.Camera, DefaultCamera) }

// GetColmapExecutable returns the reconstruction tool or the default.
func (c *PipelineConfig) GetColmapExecutable() string {
	return str(c.ColmapExecutable, DefaultColmap)
}

// GetMagickExecutable returns the image tool or the default.
func (c *PipelineConfig) GetMagickExecutable() string {
	return str(c.MagickExecutable, DefaultMagick)
}

// GetUseGPU reports whether GPU extraction and matching are enabled.
func (c *PipelineConfig) GetUseGPU() bool { return !isSet(c.NoGPU) }

func (c *PipelineConfig) GetSkipMatching() bool      { return isSet(c.SkipMatching) }
func (c *PipelineConfig) GetSequentialMatcher() bool { return isSet(c.SequentialMatcher) }
func (c *PipelineConfig) GetResize() bool            { return isSet(c.Resize) }

// GetResizeWorkers returns the pyramid parallelism or the default.
func (c *PipelineConfig) GetResizeWorkers() int {
	if c.ResizeWorkers == nil {
		return DefaultResizeWorkers
	}
	return *c.ResizeWorkers
}

// GetHistoryDB returns the run ledger path, or "" when history is disabled.
func (c *PipelineConfig) GetHistoryDB() string { return str(c.HistoryDB, "") }
