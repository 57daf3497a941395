package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/project-89/89-sub004/internal/platform/storage/sqlitemigrate"
	"github.com/project-89/89-sub004/internal/services/worker/storage"
	"github.com/project-89/89-sub004/internal/services/worker/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed sweep run persistence.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a worker SQLite store and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if _, err := sqlitemigrate.Apply(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// RecordSweepRun persists one sweep pass.
func (s *Store) RecordSweepRun(ctx context.Context, run storage.SweepRun) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	run.Consumer = strings.TrimSpace(run.Consumer)
	run.LastError = strings.TrimSpace(run.LastError)
	if run.Consumer == "" {
		return fmt.Errorf("consumer is required")
	}
	if run.StartedAt.IsZero() {
		return fmt.Errorf("started at is required")
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO sweep_runs (
	consumer,
	started_at,
	finished_at,
	due,
	finalized,
	failed,
	lore_retried,
	lore_synced,
	last_error
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		run.Consumer,
		run.StartedAt.UTC().UnixMilli(),
		run.FinishedAt.UTC().UnixMilli(),
		run.Due,
		run.Finalized,
		run.Failed,
		run.LoreRetried,
		run.LoreSynced,
		run.LastError,
	)
	if err != nil {
		return fmt.Errorf("record sweep run: %w", err)
	}
	return nil
}

// ListSweepRuns lists newest-first sweep runs.
func (s *Store) ListSweepRuns(ctx context.Context, limit int) ([]storage.SweepRun, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT
	id,
	consumer,
	started_at,
	finished_at,
	due,
	finalized,
	failed,
	lore_retried,
	lore_synced,
	last_error
FROM sweep_runs
ORDER BY started_at DESC, id DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sweep runs: %w", err)
	}
	defer rows.Close()

	runs := make([]storage.SweepRun, 0, limit)
	for rows.Next() {
		var run storage.SweepRun
		var startedAt, finishedAt int64
		if err := rows.Scan(
			&run.ID,
			&run.Consumer,
			&startedAt,
			&finishedAt,
			&run.Due,
			&run.Finalized,
			&run.Failed,
			&run.LoreRetried,
			&run.LoreSynced,
			&run.LastError,
		); err != nil {
			return nil, fmt.Errorf("scan sweep run: %w", err)
		}
		run.StartedAt = time.UnixMilli(startedAt).UTC()
		run.FinishedAt = time.UnixMilli(finishedAt).UTC()
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sweep runs: %w", err)
	}
	return runs, nil
}

var _ storage.SweepRunStore = (*Store)(nil)
