// Package layout owns the directory tree under a dataset root: where each
// reconstruction stage reads and writes, and the post-undistortion move of
// the sparse model into sparse/0.
package layout

import (
	"fmt"
	"path/filepath"

	"github.com/banshee-data/splatprep/internal/fsutil"
	"github.com/banshee-data/splatprep/internal/monitoring"
)

// ModelDirName is the name of the sparse model subdirectory that downstream
// consumers read from. An entry with this name is never relocated.
const ModelDirName = "0"

// LogFileName is the run report written at the dataset root.
const LogFileName = "log.txt"

// Layout resolves every path the pipeline touches under a dataset root.
type Layout struct {
	Root string
}

// New returns the layout for a dataset root.
func New(root string) Layout {
	return Layout{Root: root}
}

// ImagesInput returns the raw image directory: override when non-empty,
// otherwise <root>/input.
func (l Layout) ImagesInput(override string) string {
	if override != "" {
		return override
	}
	return filepath.Join(l.Root, "input")
}

// Distorted is the working directory for the distorted reconstruction.
func (l Layout) Distorted() string { return filepath.Join(l.Root, "distorted") }

// Database is the feature database written by extraction.
func (l Layout) Database() string { return filepath.Join(l.Distorted(), "database.db") }

// DistortedSparse is where the mapper writes numbered models.
func (l Layout) DistortedSparse() string { return filepath.Join(l.Distorted(), "sparse") }

// DistortedModel is the first mapper model, aligned in place.
func (l Layout) DistortedModel() string { return filepath.Join(l.DistortedSparse(), ModelDirName) }

// Sparse is the undistorted sparse model directory.
func (l Layout) Sparse() string { return filepath.Join(l.Root, "sparse") }

// SparseModel is the final model directory read by training.
func (l Layout) SparseModel() string { return filepath.Join(l.Sparse(), ModelDirName) }

// Images is the undistorted image directory.
func (l Layout) Images() string { return filepath.Join(l.Root, "images") }

// ScaledImages is the pyramid directory for a downsampling factor, e.g. images_2.
func (l Layout) ScaledImages(factor int) string {
	return filepath.Join(l.Root, fmt.Sprintf("images_%d", factor))
}

// LogFile is the run report path.
func (l Layout) LogFile() string { return filepath.Join(l.Root, LogFileName) }

// PreconditionError reports a missing image directory. It is raised before
// any external command runs or any directory is created.
type PreconditionError struct {
	Path string
	Err  error
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("image folder %s does not exist", e.Path)
}

func (e *PreconditionError) Unwrap() error { return e.Err }

// Manager performs the filesystem side of the pipeline.
type Manager struct {
	FS     fsutil.FileSystem
	Layout Layout
}

// NewManager creates a Manager over the OS filesystem.
func NewManager(l Layout) *Manager {
	return &Manager{FS: fsutil.OSFileSystem{}, Layout: l}
}

// CheckImages verifies the image directory exists and is a directory.
func (m *Manager) CheckImages(dir string) error {
	info, err := m.FS.Stat(dir)
	if err != nil {
		return &PreconditionError{Path: dir, Err: err}
	}
	if !info.IsDir() {
		return &PreconditionError{Path: dir, Err: fmt.Errorf("%s is not a directory", dir)}
	}
	return nil
}

// PrepareDistorted creates distorted/sparse ahead of feature extraction.
func (m *Manager) PrepareDistorted() error {
	if err := m.FS.MkdirAll(m.Layout.DistortedSparse(), 0755); err != nil {
		return fmt.Errorf("create %s: %w", m.Layout.DistortedSparse(), err)
	}
	return nil
}

// RelocateSparse moves every entry of <root>/sparse except "0" into
// <root>/sparse/0, creating it if needed. Existing files of the same name in
// sparse/0 are replaced without warning. It returns the names moved.
func (m *Manager) RelocateSparse() ([]string, error) {
	sparse := m.Layout.Sparse()
	entries, err := m.FS.ReadDir(sparse)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", sparse, err)
	}

	model := m.Layout.SparseModel()
	if err := m.FS.MkdirAll(model, 0755); err != nil {
		return nil, fmt.Errorf("create %s: %w", model, err)
	}

	var moved []string
	for _, e := range entries {
		if e.Name() == ModelDirName {
			continue
		}
		src := filepath.Join(sparse, e.Name())
		dst := filepath.Join(model, e.Name())
		if err := m.FS.Rename(src, dst); err != nil {
			return moved, fmt.Errorf("move %s: %w", src, err)
		}
		moved = append(moved, e.Name())
	}

	monitoring.Debugf("relocated %d entries into %s", len(moved), model)
	return moved, nil
}
