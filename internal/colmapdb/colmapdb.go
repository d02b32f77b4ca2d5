// Package colmapdb reads summary counts from a feature database produced by
// extraction and matching. The database is opened read-only and never
// modified.
package colmapdb

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// Stats summarises a feature database.
type Stats struct {
	Cameras       int64
	Images        int64
	Keypoints     int64
	VerifiedPairs int64
}

func (s Stats) String() string {
	return fmt.Sprintf("%d cameras, %d images, %d keypoints, %d verified pairs",
		s.Cameras, s.Images, s.Keypoints, s.VerifiedPairs)
}

// Inspect opens the database at path read-only and counts its contents.
// A missing file is an error; the database is never created.
func Inspect(path string) (Stats, error) {
	if _, err := os.Stat(path); err != nil {
		return Stats{}, err
	}

	name, err := dsn(path)
	if err != nil {
		return Stats{}, err
	}
	db, err := sql.Open("sqlite", name)
	if err != nil {
		return Stats{}, fmt.Errorf("open feature database: %w", err)
	}
	defer db.Close()

	var s Stats
	queries := []struct {
		dst   *int64
		query string
	}{
		{&s.Cameras, `SELECT COUNT(*) FROM cameras`},
		{&s.Images, `SELECT COUNT(*) FROM images`},
		{&s.Keypoints, `SELECT COALESCE(SUM(rows), 0) FROM keypoints`},
		{&s.VerifiedPairs, `SELECT COUNT(*) FROM two_view_geometries WHERE rows > 0`},
	}
	for _, q := range queries {
		if err := db.QueryRow(q.query).Scan(q.dst); err != nil {
			return s, fmt.Errorf("query %q: %w", q.query, err)
		}
	}
	return s, nil
}

// dsn returns a read-only file: URI. Relative paths are made absolute since
// a URI path without a leading slash would be read as a host.
func dsn(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve feature database path: %w", err)
	}
	abs = filepath.ToSlash(abs)
	if !strings.HasPrefix(abs, "/") {
		abs = "/" + abs
	}
	u := url.URL{Scheme: "file", Path: abs, RawQuery: "mode=ro"}
	return u.String(), nil
}
