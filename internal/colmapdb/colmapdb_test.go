package colmapdb

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const schema = `
CREATE TABLE cameras (camera_id INTEGER PRIMARY KEY, model INTEGER, width INTEGER, height INTEGER, params BLOB);
CREATE TABLE images (image_id INTEGER PRIMARY KEY, name TEXT, camera_id INTEGER);
CREATE TABLE keypoints (image_id INTEGER PRIMARY KEY, rows INTEGER, cols INTEGER, data BLOB);
CREATE TABLE two_view_geometries (pair_id INTEGER PRIMARY KEY, rows INTEGER, cols INTEGER, data BLOB, config INTEGER);
`

func newFeatureDB(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "database.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(schema)
	require.NoError(t, err)
	return path
}

func TestInspect(t *testing.T) {
	path := newFeatureDB(t, t.TempDir())
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`
		INSERT INTO cameras (camera_id, model) VALUES (1, 4);
		INSERT INTO images (image_id, name, camera_id) VALUES (1, 'a.jpg', 1), (2, 'b.jpg', 1), (3, 'c.jpg', 1);
		INSERT INTO keypoints (image_id, rows, cols) VALUES (1, 1200, 6), (2, 800, 6), (3, 0, 6);
		INSERT INTO two_view_geometries (pair_id, rows, cols) VALUES (10, 150, 2), (11, 0, 2), (12, 42, 2);
	`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	stats, err := Inspect(path)
	require.NoError(t, err)
	assert.Equal(t, Stats{Cameras: 1, Images: 3, Keypoints: 2000, VerifiedPairs: 2}, stats)
	assert.Equal(t, "1 cameras, 3 images, 2000 keypoints, 2 verified pairs", stats.String())
}

func TestInspect_Empty(t *testing.T) {
	path := newFeatureDB(t, t.TempDir())

	stats, err := Inspect(path)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
}

func TestInspect_PathWithSpaces(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "my scene", "distorted")
	require.NoError(t, os.MkdirAll(dir, 0755))
	path := newFeatureDB(t, dir)

	_, err := Inspect(path)
	assert.NoError(t, err)
}

func TestInspect_MissingDoesNotCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "database.db")

	_, err := Inspect(path)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestInspect_NotAFeatureDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE unrelated (id INTEGER)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Inspect(path)
	assert.Error(t, err)
}

func TestInspect_ReadOnly(t *testing.T) {
	path := newFeatureDB(t, t.TempDir())
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	_, err = Inspect(path)
	require.NoError(t, err)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestInspect_ReservedCharactersInPath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "take?2#final", "distorted")
	require.NoError(t, os.MkdirAll(dir, 0755))
	path := filepath.Join(dir, "database.db")
	require.NoError(t, os.Rename(newFeatureDB(t, t.TempDir()), path))

	_, err := Inspect(path)
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Dir(dir))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no stray database created beside the real one")
}

func TestInspect_RelativePath(t *testing.T) {
	dir := t.TempDir()
	newFeatureDB(t, dir)
	chdir(t, dir)

	_, err := Inspect("database.db")
	assert.NoError(t, err)
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains: it changes
// the working directory and restores it when the test finishes.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
