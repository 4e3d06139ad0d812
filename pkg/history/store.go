// Package history records completed scoring runs in SQLite.
package history

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/hed1ad/gasguard/pkg/anomaly"
)

// FileName is the database file created inside the history directory.
const FileName = "history.db"

// Run is one recorded scoring run.
type Run struct {
	ID             string
	FileName       string
	Rows           int
	Anomalies      int
	FeatureColumns []string
	CreatedAt      time.Time
}

// Store provides SQLite-backed storage for scoring runs.
type Store struct {
	db    *sql.DB
	path  string
	clock clock.Clock
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source used for CreatedAt.
func WithClock(c clock.Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

// Open opens or creates the history database in dir.
func Open(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrap(err, "create history directory")
	}
	path := filepath.Join(dir, FileName)

	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, errors.Wrap(err, "open history database")
	}
	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, path: path, clock: clock.New()}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create history tables")
	}
	return s, nil
}

func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		file_name TEXT NOT NULL,
		rows INTEGER NOT NULL,
		anomalies INTEGER NOT NULL,
		feature_columns TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
	`
	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores a summary of res.
func (s *Store) Record(ctx context.Context, res *anomaly.Result) (*Run, error) {
	run := &Run{
		ID:             res.RunID,
		FileName:       res.FileName,
		Rows:           res.Rows,
		Anomalies:      res.Counts.Anomaly,
		FeatureColumns: res.FeatureColumns,
		CreatedAt:      s.clock.Now().UTC().Truncate(time.Millisecond),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, file_name, rows, anomalies, feature_columns, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.FileName, run.Rows, run.Anomalies, strings.Join(run.FeatureColumns, ","), run.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "insert run")
	}
	return run, nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, file_name, rows, anomalies, feature_columns, created_at FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "query runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r       Run
			columns string
			created int64
		)
		if err := rows.Scan(&r.ID, &r.FileName, &r.Rows, &r.Anomalies, &columns, &created); err != nil {
			return nil, errors.Wrap(err, "scan run")
		}
		if columns != "" {
			r.FeatureColumns = strings.Split(columns, ",")
		}
		r.CreatedAt = time.UnixMilli(created).UTC()
		runs = append(runs, r)
	}
	return runs, errors.Wrap(rows.Err(), "iterate runs")
}
