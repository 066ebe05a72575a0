package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Register driver

	"github.com/forPelevin/recapcut/internal/types"
)

// Fixed width so that text order is time order.
const timeFormat = "2006-01-02 15:04:05.000000"

// Store keeps the history of render runs.
type Store struct {
	db *sql.DB
}

// Open opens the database at path and runs migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=30000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	// Single connection avoids SQLITE_BUSY on concurrent writes.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			title TEXT,
			mode TEXT,
			status TEXT,
			error TEXT,
			outputs TEXT,
			started_at TEXT,
			finished_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS segments (
			run_id TEXT NOT NULL,
			idx INTEGER NOT NULL,
			label TEXT,
			status TEXT,
			error_kind TEXT,
			stage TEXT,
			duration_sec REAL,
			target_sec REAL,
			clips INTEGER,
			filler_clips INTEGER,
			PRIMARY KEY (run_id, idx)
		)`,
		`CREATE TABLE IF NOT EXISTS gap_warnings (
			run_id TEXT NOT NULL,
			label TEXT,
			idx INTEGER,
			gap_sec REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,
	}
	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// SaveReport records a finished run, replacing any earlier record with the same id.
func (s *Store) SaveReport(ctx context.Context, r *types.RunReport) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (id, title, mode, status, error, outputs, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Title, r.Mode, r.Status, r.Error, strings.Join(r.Outputs, "\n"),
		r.StartedAt.UTC().Format(timeFormat), r.FinishedAt.UTC().Format(timeFormat),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	for _, q := range []string{`DELETE FROM segments WHERE run_id = ?`, `DELETE FROM gap_warnings WHERE run_id = ?`} {
		if _, err := tx.ExecContext(ctx, q, r.RunID); err != nil {
			return err
		}
	}
	for _, seg := range r.Segments {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO segments (run_id, idx, label, status, error_kind, stage, duration_sec, target_sec, clips, filler_clips)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.RunID, seg.Index, seg.Label, seg.Status, seg.ErrorKind, seg.Stage, seg.DurationSec, seg.TargetSec, seg.Clips, seg.FillerClips,
		); err != nil {
			return fmt.Errorf("insert segment %q: %w", seg.Label, err)
		}
		for _, g := range seg.GapWarnings {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO gap_warnings (run_id, label, idx, gap_sec) VALUES (?, ?, ?, ?)`,
				r.RunID, seg.Label, g.Index, g.GapSec,
			); err != nil {
				return fmt.Errorf("insert gap warning: %w", err)
			}
		}
	}
	return tx.Commit()
}

// RunSummary is one row of the run history.
type RunSummary struct {
	ID          string
	Title       string
	Mode        string
	Status      string
	Error       string
	Outputs     []string
	StartedAt   time.Time
	FinishedAt  time.Time
	Segments    int
	Processed   int
	GapWarnings int
}

// RecentRuns lists the latest runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.title, r.mode, r.status, COALESCE(r.error, ''), COALESCE(r.outputs, ''), r.started_at, r.finished_at,
			(SELECT COUNT(*) FROM segments s WHERE s.run_id = r.id),
			(SELECT COUNT(*) FROM segments s WHERE s.run_id = r.id AND s.status = ?),
			(SELECT COUNT(*) FROM gap_warnings g WHERE g.run_id = r.id)
		FROM runs r
		ORDER BY r.started_at DESC
		LIMIT ?`, types.SegmentProcessed, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var rs RunSummary
		var outputs, started, finished string
		if err := rows.Scan(&rs.ID, &rs.Title, &rs.Mode, &rs.Status, &rs.Error, &outputs, &started, &finished,
			&rs.Segments, &rs.Processed, &rs.GapWarnings); err != nil {
			return nil, err
		}
		if outputs != "" {
			rs.Outputs = strings.Split(outputs, "\n")
		}
		rs.StartedAt, _ = time.Parse(timeFormat, started)
		rs.FinishedAt, _ = time.Parse(timeFormat, finished)
		out = append(out, rs)
	}
	return out, rows.Err()
}
