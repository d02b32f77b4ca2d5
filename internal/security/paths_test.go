package security

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateWithin(t *testing.T) {
	root := t.TempDir()
	tests := []struct {
		name string
		path string
		ok   bool
	}{
		{"child", filepath.Join(root, "scene"), true},
		{"nested missing", filepath.Join(root, "a", "b", "c"), true},
		{"root itself", root, true},
		{"dotdot", filepath.Join(root, "..", "other"), false},
		{"sibling prefix", root + "-evil", false},
		{"unrelated", "/", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateWithin(tc.path, root)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, ErrEscapes), "got %v", err)
			}
		})
	}
}

func TestValidateWithin_Symlink(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	link := filepath.Join(root, "link")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	err := ValidateWithin(filepath.Join(link, "scene"), root)
	assert.ErrorIs(t, err, ErrEscapes)
}

func TestJoinWithin(t *testing.T) {
	root := t.TempDir()

	p, err := JoinWithin(root, "garden")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "garden"), p)

	for _, bad := range []string{"..", "../x", ".", ""} {
		_, err := JoinWithin(root, bad)
		assert.ErrorIs(t, err, ErrEscapes, bad)
	}
}
