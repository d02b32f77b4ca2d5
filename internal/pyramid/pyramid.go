// Package pyramid builds the downsampled image sets images_2, images_4 and
// images_8 from the undistorted images.
//
// Each source image is copied into every scale directory and then resized in
// place by the image tool. A failed resize aborts generation with the tool's
// exit code; outputs already produced are left on disk.
package pyramid

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/splatprep/internal/fsutil"
	"github.com/banshee-data/splatprep/internal/invoke"
	"github.com/banshee-data/splatprep/internal/layout"
	"github.com/banshee-data/splatprep/internal/monitoring"
)

// Scale is one pyramid level.
type Scale struct {
	Factor  int
	Percent string
}

// Scales lists the levels in the order they are produced for each image.
var Scales = []Scale{
	{Factor: 2, Percent: "50%"},
	{Factor: 4, Percent: "25%"},
	{Factor: 8, Percent: "12.5%"},
}

// DefaultMagick is the image tool used when none is configured.
const DefaultMagick = "magick"

// Entry is one produced pyramid image.
type Entry struct {
	Source string
	Dest   string
	Scale  Scale
}

// ResizeError reports a nonzero exit from the resize tool.
type ResizeError struct {
	Percent  string
	File     string
	ExitCode int
}

func (e *ResizeError) Error() string {
	return fmt.Sprintf("%s resize failed with code %d", e.Percent, e.ExitCode)
}

// Generator produces the pyramid for a dataset.
type Generator struct {
	FS      fsutil.FileSystem
	Invoker *invoke.Invoker
	Layout  layout.Layout
	// Magick is the image tool executable; DefaultMagick when empty.
	Magick string
	// Workers bounds the number of images processed concurrently. Values
	// below 2 process images one at a time.
	Workers int
}

// Run generates every scale for every file in the images directory and
// returns the entries produced. After a failure no further image is started.
func (g *Generator) Run(parent context.Context) ([]Entry, error) {
	monitoring.Logf("Copying and resizing...")

	for _, s := range Scales {
		dir := g.Layout.ScaledImages(s.Factor)
		if err := g.FS.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	src := g.Layout.Images()
	entries, err := g.FS.ReadDir(src)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", src, err)
	}

	workers := g.Workers
	if workers < 1 {
		workers = 1
	}

	var (
		mu  sync.Mutex
		out []Entry
	)
	eg, ctx := errgroup.WithContext(parent)
	eg.SetLimit(workers)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		name := e.Name()
		eg.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			done, err := g.resizeImage(name)
			mu.Lock()
			out = append(out, done...)
			mu.Unlock()
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return out, err
	}
	return out, parent.Err()
}

// resizeImage produces all scales of one image, stopping at the first failure.
func (g *Generator) resizeImage(name string) ([]Entry, error) {
	source := filepath.Join(g.Layout.Images(), name)
	var done []Entry
	for _, s := range Scales {
		dest := filepath.Join(g.Layout.ScaledImages(s.Factor), name)
		if err := fsutil.CopyFile(g.FS, source, dest); err != nil {
			return done, fmt.Errorf("copy %s: %w", source, err)
		}

		res := g.Invoker.Invoke(invoke.NewCommand(g.magick(), "mogrify", "-resize", s.Percent, dest))
		if !res.OK() {
			return done, &ResizeError{Percent: s.Percent, File: dest, ExitCode: res.ExitCode}
		}
		done = append(done, Entry{Source: source, Dest: dest, Scale: s})
	}
	return done, nil
}

func (g *Generator) magick() string {
	if g.Magick == "" {
		return DefaultMagick
	}
	return g.Magick
}
