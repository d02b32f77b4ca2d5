// Package security guards filesystem paths built from user input.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrEscapes is wrapped by ValidateWithin when a path leaves its root.
var ErrEscapes = errors.New("path escapes root")

// ValidateWithin reports an error when path, after cleaning and resolving any
// existing symlinked ancestor, lies outside root. Neither path needs to exist.
func ValidateWithin(path, root string) error {
	absRoot, err := canonical(root)
	if err != nil {
		return fmt.Errorf("resolve root %s: %w", root, err)
	}
	absPath, err := canonical(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%s: %w %s", path, ErrEscapes, root)
	}
	return nil
}

// JoinWithin joins name onto root and validates the result. A name that
// resolves to root itself is rejected.
func JoinWithin(root, name string) (string, error) {
	p := filepath.Join(root, name)
	if filepath.Clean(p) == filepath.Clean(root) {
		return "", fmt.Errorf("%q: %w %s", name, ErrEscapes, root)
	}
	if err := ValidateWithin(p, root); err != nil {
		return "", err
	}
	return p, nil
}

// canonical returns the absolute form of p with the longest existing prefix
// passed through EvalSymlinks.
func canonical(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	rest := ""
	for dir := abs; ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(resolved, rest), nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		rest = filepath.Join(filepath.Base(dir), rest)
	}
}
