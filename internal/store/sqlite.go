package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS decode_runs (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	ruleset_dir TEXT NOT NULL,
	input_path  TEXT NOT NULL,
	rows        INTEGER NOT NULL DEFAULT 0,
	decoded     INTEGER NOT NULL DEFAULT 0,
	tallies     TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_decode_runs_kind ON decode_runs(kind);
CREATE INDEX IF NOT EXISTS idx_decode_runs_created_at ON decode_runs(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) RecordRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	talliesJSON, err := json.Marshal(run.Tallies)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal tallies")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO decode_runs (id, kind, ruleset_dir, input_path, rows, decoded, tallies, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Kind), run.RulesetDir, run.InputPath,
		run.Rows, run.Decoded, string(talliesJSON), run.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert run")
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, kind, ruleset_dir, input_path, rows, decoded, tallies, created_at
		 FROM decode_runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := `SELECT id, kind, ruleset_dir, input_path, rows, decoded, tallies, created_at
	          FROM decode_runs WHERE 1=1`
	var args []any

	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(filter.Kind))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*Run, error) {
	var r Run
	var kind string
	var talliesJSON sql.NullString

	err := row.Scan(&r.ID, &kind, &r.RulesetDir, &r.InputPath, &r.Rows, &r.Decoded, &talliesJSON, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	r.Kind = RunKind(kind)

	if talliesJSON.Valid && talliesJSON.String != "" && talliesJSON.String != "null" {
		if err := json.Unmarshal([]byte(talliesJSON.String), &r.Tallies); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal tallies")
		}
	}
	return &r, nil
}
