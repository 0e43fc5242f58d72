package store

import (
	"context"
	"errors"

	"github.com/hardwarehavoc/fractile/internal/model"
)

// ErrNotFound is returned when a run is not found.
var ErrNotFound = errors.New("run not found")

// ErrInvalidTransition is returned when a run status transition is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// RunStats holds aggregate execution statistics.
type RunStats struct {
	Total         int            `json:"total"`
	CountByStatus map[string]int `json:"count_by_status"`
	CountByMode   map[string]int `json:"count_by_mode"`
	AvgDurationMS float64        `json:"avg_duration_ms"`
}

// Store defines the persistence operations for runs and their task records.
type Store interface {
	CreateRun(ctx context.Context, r *model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context, limit, offset int) ([]*model.Run, int, error)
	UpdateRunStatus(ctx context.Context, id, status string) error
	UpdateRun(ctx context.Context, r *model.Run) error
	GetRunStats(ctx context.Context) (*RunStats, error)
	InsertTaskRecords(ctx context.Context, runID string, records []model.TaskRecord) error
	GetTaskRecords(ctx context.Context, runID string) ([]model.TaskRecord, error)
	Close() error
}
