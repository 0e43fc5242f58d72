package model

import "time"

// Run status constants.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Execution mode constants.
const (
	ModeSequential = "sequential"
	ModeConcurrent = "concurrent"
)

// validTransitions maps each status to the set of statuses it may transition to.
var validTransitions = map[string]map[string]bool{
	StatusPending: {
		StatusRunning: true,
		StatusFailed:  true,
	},
	StatusRunning: {
		StatusCompleted: true,
		StatusFailed:    true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// ValidMode reports whether the given execution mode is recognized.
func ValidMode(mode string) bool {
	return mode == ModeSequential || mode == ModeConcurrent
}

// Run represents one rendering job submitted to the service: its parameters,
// lifecycle status, and summary of what was computed before it finished.
type Run struct {
	ID             string     `json:"id"`
	Mode           string     `json:"mode"`
	Status         string     `json:"status"`
	Width          int        `json:"width"`
	Height         int        `json:"height"`
	TileW          int        `json:"tile_w"`
	TileH          int        `json:"tile_h"`
	MaxIter        int        `json:"max_iter"`
	TimeLimitMS    int64      `json:"time_limit_ms"`
	NumWorkers     int        `json:"num_threads,omitempty"`
	TilesTotal     int        `json:"tiles_total"`
	TilesCompleted int        `json:"tiles_completed"`
	TimeLimited    bool       `json:"time_limited"`
	Error          string     `json:"error,omitempty"`
	DurationMS     *int64     `json:"duration_ms,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}
