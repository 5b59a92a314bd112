package orchestrator

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const runsSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	source      TEXT NOT NULL,
	browser     TEXT NOT NULL DEFAULT '',
	out_root    TEXT NOT NULL,
	status      TEXT NOT NULL,
	path        TEXT NOT NULL DEFAULT '',
	stage       TEXT NOT NULL DEFAULT '',
	base_name   TEXT NOT NULL DEFAULT '',
	target_dir  TEXT NOT NULL DEFAULT '',
	artifact    TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT '',
	segments    INTEGER NOT NULL DEFAULT 0,
	bytes       INTEGER NOT NULL DEFAULT 0,
	playlist    TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL,
	started_at  INTEGER,
	finished_at INTEGER
)`

const runColumns = `id, source, browser, out_root, status, path, stage, base_name, target_dir,
	artifact, error, segments, bytes, playlist, created_at, started_at, finished_at`

// SQLiteStore is a Store backed by a SQLite database, so run records
// survive restarts of the server.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dsn and ensures the schema.
// Use ":memory:" for a private in-memory database.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(runsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create runs schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// GetRun implements Store.GetRun.
func (s *SQLiteStore) GetRun(id RunID) (Run, bool, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, string(id))
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, fmt.Errorf("get run %s: %w", id, err)
	}
	return r, true, nil
}

// SaveRun implements Store.SaveRun.
func (s *SQLiteStore) SaveRun(r Run) error {
	_, err := s.db.Exec(`INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source = excluded.source,
			browser = excluded.browser,
			out_root = excluded.out_root,
			status = excluded.status,
			path = excluded.path,
			stage = excluded.stage,
			base_name = excluded.base_name,
			target_dir = excluded.target_dir,
			artifact = excluded.artifact,
			error = excluded.error,
			segments = excluded.segments,
			bytes = excluded.bytes,
			playlist = excluded.playlist,
			created_at = excluded.created_at,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at`,
		string(r.ID), r.Source, r.Browser, r.OutRoot, string(r.Status), string(r.Path), string(r.Stage),
		r.BaseName, r.TargetDir, r.Artifact, r.Error, r.Segments, r.Bytes, r.Playlist,
		r.CreatedAt.UnixNano(), nullTime(r.StartedAt), nullTime(r.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", r.ID, err)
	}
	return nil
}

// ListRuns implements Store.ListRuns. Runs are ordered by creation time.
func (s *SQLiteStore) ListRuns() ([]Run, error) {
	rows, err := s.db.Query(`SELECT ` + runColumns + ` FROM runs ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Close implements Store.Close.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(sc rowScanner) (Run, error) {
	var (
		r                   Run
		id, status          string
		path, stage         string
		createdAt           int64
		startedAt, finished sql.NullInt64
	)
	err := sc.Scan(&id, &r.Source, &r.Browser, &r.OutRoot, &status, &path, &stage,
		&r.BaseName, &r.TargetDir, &r.Artifact, &r.Error, &r.Segments, &r.Bytes, &r.Playlist,
		&createdAt, &startedAt, &finished)
	if err != nil {
		return Run{}, err
	}
	r.ID = RunID(id)
	r.Status = Status(status)
	r.Path = AcquisitionPath(path)
	r.Stage = Stage(stage)
	r.CreatedAt = time.Unix(0, createdAt).UTC()
	r.StartedAt = timeOrNil(startedAt)
	r.FinishedAt = timeOrNil(finished)
	return r, nil
}

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func timeOrNil(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(0, n.Int64).UTC()
	return &t
}
