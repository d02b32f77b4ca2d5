// Package history keeps an optional sqlite ledger of conversion runs: one row
// per run with its outcome and timing, plus the stages it started.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/splatprep/internal/colmapdb"
)

// Status is the final state of a run.
type Status string

const (
	StatusSucceeded          Status = "succeeded"
	StatusStageFailed        Status = "stage_failed"
	StatusPreconditionFailed Status = "precondition_failed"
	StatusError              Status = "error"
)

// Stage is one started stage of a run.
type Stage struct {
	Name     string
	ExitCode int
	Duration time.Duration
}

// Run is one ledger entry.
type Run struct {
	ID           string
	Dataset      string
	ImagePath    string
	Matcher      string
	SkipMatching bool
	Resize       bool
	Status       Status
	ExitCode     int
	FailedStage  string
	Elapsed      time.Duration
	StartedAt    time.Time
	// Features is nil when the feature database was not inspected.
	Features *colmapdb.Stats
	Stages   []Stage
}

// timeLayout is fixed-width so that started_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is a run ledger backed by sqlite.
type Store struct {
	db *sql.DB
}

// Open opens or creates the ledger at path and applies pending migrations.
func Open(path string) (*Store, error) {
	name, err := dsn(path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", name)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// dsn builds a file: URI for path. Pragmas ride in the query so that every
// pooled connection applies them.
func dsn(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve ledger path: %w", err)
	}
	abs = filepath.ToSlash(abs)
	if !strings.HasPrefix(abs, "/") {
		abs = "/" + abs
	}
	q := url.Values{"_pragma": {"foreign_keys(1)", "busy_timeout(5000)"}}
	u := url.URL{Scheme: "file", Path: abs, RawQuery: q.Encode()}
	return u.String(), nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts r and its stages in one transaction. An empty ID is replaced
// by a new UUID; the ID used is returned.
func (s *Store) Record(ctx context.Context, r *Run) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var cameras, images, keypoints, pairs sql.NullInt64
	if f := r.Features; f != nil {
		cameras = sql.NullInt64{Int64: f.Cameras, Valid: true}
		images = sql.NullInt64{Int64: f.Images, Valid: true}
		keypoints = sql.NullInt64{Int64: f.Keypoints, Valid: true}
		pairs = sql.NullInt64{Int64: f.VerifiedPairs, Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, dataset, image_path, matcher, skip_matching, resize,
			status, exit_code, failed_stage, elapsed_seconds, started_at,
			cameras, images, keypoints, verified_pairs
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Dataset, r.ImagePath, r.Matcher, r.SkipMatching, r.Resize,
		string(r.Status), r.ExitCode, nullString(r.FailedStage), r.Elapsed.Seconds(),
		r.StartedAt.UTC().Format(timeLayout),
		cameras, images, keypoints, pairs,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for i, st := range r.Stages {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_stages (run_id, seq, stage, exit_code, duration_seconds)
			VALUES (?, ?, ?, ?, ?)`,
			r.ID, i+1, st.Name, st.ExitCode, st.Duration.Seconds(),
		)
		if err != nil {
			return "", fmt.Errorf("insert stage %s: %w", st.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return r.ID, nil
}

// Recent returns up to limit runs, newest first, with their stages.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, dataset, image_path, matcher, skip_matching, resize,
		       status, exit_code, failed_stage, elapsed_seconds, started_at,
		       cameras, images, keypoints, verified_pairs
		FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                                Run
			status, startedAt                string
			failed                           sql.NullString
			elapsed                          float64
			cameras, images, keypoints, pair sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.Dataset, &r.ImagePath, &r.Matcher, &r.SkipMatching, &r.Resize,
			&status, &r.ExitCode, &failed, &elapsed, &startedAt,
			&cameras, &images, &keypoints, &pair); err != nil {
			return nil, err
		}
		r.Status = Status(status)
		r.FailedStage = failed.String
		r.Elapsed = seconds(elapsed)
		if r.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
			return nil, fmt.Errorf("run %s: bad started_at %q: %w", r.ID, startedAt, err)
		}
		if cameras.Valid {
			r.Features = &colmapdb.Stats{
				Cameras:       cameras.Int64,
				Images:        images.Int64,
				Keypoints:     keypoints.Int64,
				VerifiedPairs: pair.Int64,
			}
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range runs {
		if runs[i].Stages, err = s.stages(ctx, runs[i].ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (s *Store) stages(ctx context.Context, runID string) ([]Stage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT stage, exit_code, duration_seconds
		FROM run_stages WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Stage
	for rows.Next() {
		var st Stage
		var d float64
		if err := rows.Scan(&st.Name, &st.ExitCode, &d); err != nil {
			return nil, err
		}
		st.Duration = seconds(d)
		out = append(out, st)
	}
	return out, rows.Err()
}

// Summary aggregates the ledger.
type Summary struct {
	Runs      int
	Succeeded int
	// MeanElapsed and StdDevElapsed cover succeeded runs only. StdDevElapsed
	// is zero with fewer than two succeeded runs.
	MeanElapsed   time.Duration
	StdDevElapsed time.Duration
}

// Summarize computes run counts and the elapsed-time distribution of
// succeeded runs.
func (s *Store) Summarize(ctx context.Context) (Summary, error) {
	var sum Summary
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&sum.Runs); err != nil {
		return sum, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT elapsed_seconds FROM runs WHERE status = ?`, string(StatusSucceeded))
	if err != nil {
		return sum, err
	}
	defer rows.Close()

	var elapsed []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return sum, err
		}
		elapsed = append(elapsed, v)
	}
	if err := rows.Err(); err != nil {
		return sum, err
	}

	sum.Succeeded = len(elapsed)
	switch len(elapsed) {
	case 0:
	case 1:
		sum.MeanElapsed = seconds(elapsed[0])
	default:
		mean, std := stat.MeanStdDev(elapsed, nil)
		sum.MeanElapsed = seconds(mean)
		sum.StdDevElapsed = seconds(std)
	}
	return sum, nil
}

func seconds(v float64) time.Duration {
	return time.Duration(math.Round(v * float64(time.Second)))
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
