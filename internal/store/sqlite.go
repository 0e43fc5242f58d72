package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hardwarehavoc/fractile/internal/model"

	_ "modernc.org/sqlite"
)

const createRunsTable = `
CREATE TABLE IF NOT EXISTS runs (
    id              TEXT PRIMARY KEY,
    mode            TEXT NOT NULL,
    status          TEXT NOT NULL,
    width           INTEGER NOT NULL,
    height          INTEGER NOT NULL,
    tile_w          INTEGER NOT NULL,
    tile_h          INTEGER NOT NULL,
    max_iter        INTEGER NOT NULL,
    time_limit_ms   INTEGER NOT NULL,
    num_workers     INTEGER NOT NULL,
    tiles_total     INTEGER NOT NULL,
    tiles_completed INTEGER NOT NULL,
    time_limited    INTEGER NOT NULL,
    error           TEXT,
    duration_ms     INTEGER,
    created_at      DATETIME NOT NULL,
    started_at      DATETIME,
    finished_at     DATETIME
)`

const createTaskRecordsTable = `
CREATE TABLE IF NOT EXISTS task_records (
    run_id          TEXT NOT NULL,
    task_id         INTEGER NOT NULL,
    tile_x          INTEGER NOT NULL,
    tile_y          INTEGER NOT NULL,
    tile_w          INTEGER NOT NULL,
    tile_h          INTEGER NOT NULL,
    duration_ms     INTEGER NOT NULL,
    pixels_computed INTEGER NOT NULL,
    PRIMARY KEY (run_id, task_id)
)`

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite supports one writer at a time, and an in-memory database
	// exists per connection, so the pool must stay at a single connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	for _, stmt := range []string{createRunsTable, createTaskRecordsTable} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create table: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateRun inserts a new run record.
func (s *SQLiteStore) CreateRun(ctx context.Context, r *model.Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (
			id, mode, status, width, height, tile_w, tile_h, max_iter,
			time_limit_ms, num_workers, tiles_total, tiles_completed,
			time_limited, error, duration_ms, created_at, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Mode, r.Status, r.Width, r.Height, r.TileW, r.TileH, r.MaxIter,
		r.TimeLimitMS, r.NumWorkers, r.TilesTotal, r.TilesCompleted,
		r.TimeLimited, r.Error, r.DurationMS, r.CreatedAt, r.StartedAt, r.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	r := &model.Run{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, mode, status, width, height, tile_w, tile_h, max_iter,
			time_limit_ms, num_workers, tiles_total, tiles_completed,
			time_limited, error, duration_ms, created_at, started_at, finished_at
		FROM runs WHERE id = ?`, id,
	).Scan(
		&r.ID, &r.Mode, &r.Status, &r.Width, &r.Height, &r.TileW, &r.TileH, &r.MaxIter,
		&r.TimeLimitMS, &r.NumWorkers, &r.TilesTotal, &r.TilesCompleted,
		&r.TimeLimited, &r.Error, &r.DurationMS, &r.CreatedAt, &r.StartedAt, &r.FinishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListRuns returns a paginated list of runs ordered by created_at DESC,
// along with the total count of all runs.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit, offset int) ([]*model.Run, int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM runs").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count runs: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id, mode, status, width, height, tile_w, tile_h, max_iter,
			time_limit_ms, num_workers, tiles_total, tiles_completed,
			time_limited, error, duration_ms, created_at, started_at, finished_at
		FROM runs ORDER BY created_at DESC LIMIT ? OFFSET ?`, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*model.Run
	for rows.Next() {
		r := &model.Run{}
		if err := rows.Scan(
			&r.ID, &r.Mode, &r.Status, &r.Width, &r.Height, &r.TileW, &r.TileH, &r.MaxIter,
			&r.TimeLimitMS, &r.NumWorkers, &r.TilesTotal, &r.TilesCompleted,
			&r.TimeLimited, &r.Error, &r.DurationMS, &r.CreatedAt, &r.StartedAt, &r.FinishedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate runs: %w", err)
	}

	return runs, total, nil
}

// UpdateRunStatus updates the status of a run after checking the transition
// is allowed. Terminal statuses (completed, failed) also set finished_at.
func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, id, status string) error {
	current, err := s.GetRun(ctx, id)
	if err != nil {
		return err
	}
	if !model.ValidTransition(current.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, status)
	}

	var result sql.Result
	if status == model.StatusCompleted || status == model.StatusFailed {
		result, err = s.db.ExecContext(ctx,
			"UPDATE runs SET status = ?, finished_at = ? WHERE id = ?",
			status, time.Now().UTC(), id,
		)
	} else {
		result, err = s.db.ExecContext(ctx,
			"UPDATE runs SET status = ? WHERE id = ?",
			status, id,
		)
	}
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// UpdateRun writes the outcome fields of a finished run: status, summary
// counters, error, duration, and timestamps.
func (s *SQLiteStore) UpdateRun(ctx context.Context, r *model.Run) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE runs SET
			status = ?, tiles_total = ?, tiles_completed = ?, time_limited = ?,
			error = ?, duration_ms = ?, started_at = ?, finished_at = ?
		WHERE id = ?`,
		r.Status, r.TilesTotal, r.TilesCompleted, r.TimeLimited,
		r.Error, r.DurationMS, r.StartedAt, r.FinishedAt, r.ID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// GetRunStats returns aggregate statistics across all runs.
func (s *SQLiteStore) GetRunStats(ctx context.Context) (*RunStats, error) {
	stats := &RunStats{
		CountByStatus: make(map[string]int),
		CountByMode:   make(map[string]int),
	}

	rows, err := s.db.QueryContext(ctx, "SELECT status, mode FROM runs")
	if err != nil {
		return nil, fmt.Errorf("query run stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status, mode string
		if err := rows.Scan(&status, &mode); err != nil {
			return nil, fmt.Errorf("scan run stats: %w", err)
		}
		stats.Total++
		stats.CountByStatus[status]++
		stats.CountByMode[mode]++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run stats: %w", err)
	}

	var avg sql.NullFloat64
	err = s.db.QueryRowContext(ctx,
		"SELECT AVG(duration_ms) FROM runs WHERE duration_ms IS NOT NULL",
	).Scan(&avg)
	if err != nil {
		return nil, fmt.Errorf("average duration: %w", err)
	}
	if avg.Valid {
		stats.AvgDurationMS = avg.Float64
	}

	return stats, nil
}

// InsertTaskRecords bulk-inserts the task records for a run in a single
// transaction.
func (s *SQLiteStore) InsertTaskRecords(ctx context.Context, runID string, records []model.TaskRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO task_records (
			run_id, task_id, tile_x, tile_y, tile_w, tile_h,
			duration_ms, pixels_computed
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx,
			runID, rec.TaskID, rec.Tile.X, rec.Tile.Y, rec.Tile.W, rec.Tile.H,
			rec.DurationMS, rec.PixelsComputed,
		); err != nil {
			return fmt.Errorf("insert task record %d: %w", rec.TaskID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit task records: %w", err)
	}
	return nil
}

// GetTaskRecords returns the task records for a run in ascending task_id order.
func (s *SQLiteStore) GetTaskRecords(ctx context.Context, runID string) ([]model.TaskRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT task_id, tile_x, tile_y, tile_w, tile_h, duration_ms, pixels_computed
		FROM task_records WHERE run_id = ? ORDER BY task_id ASC`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("get task records: %w", err)
	}
	defer rows.Close()

	var records []model.TaskRecord
	for rows.Next() {
		var rec model.TaskRecord
		if err := rows.Scan(
			&rec.TaskID, &rec.Tile.X, &rec.Tile.Y, &rec.Tile.W, &rec.Tile.H,
			&rec.DurationMS, &rec.PixelsComputed,
		); err != nil {
			return nil, fmt.Errorf("scan task record: %w", err)
		}
		rec.Tile.Index = rec.TaskID
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task records: %w", err)
	}

	return records, nil
}
