package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hardwarehavoc/fractile/internal/model"
	"github.com/hardwarehavoc/fractile/internal/render"
	"github.com/hardwarehavoc/fractile/internal/store"
)

// Engine orchestrates asynchronous render run execution.
type Engine struct {
	store  store.Store
	logger *slog.Logger
	wg     sync.WaitGroup
	broker *TileBroker
}

// NewEngine creates a new execution engine.
func NewEngine(s store.Store, logger *slog.Logger) *Engine {
	return &Engine{
		store:  s,
		logger: logger,
		broker: NewTileBroker(),
	}
}

// Broker returns the engine's tile broker for stream subscription.
func (e *Engine) Broker() *TileBroker {
	return e.broker
}

// Submit creates a run record and launches asynchronous execution in a
// goroutine. The run is stored with status "pending" before returning.
// The goroutine operates on a copy of the run to avoid data races with
// the caller.
func (e *Engine) Submit(ctx context.Context, r *model.Run) error {
	if p := runParams(r); p.Validate() == nil {
		r.TilesTotal = p.TileCount()
	}

	if err := e.store.CreateRun(ctx, r); err != nil {
		return fmt.Errorf("create run: %w", err)
	}

	rCopy := *r
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.execute(&rCopy)
	}()

	return nil
}

// Wait blocks until all in-flight run goroutines complete.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// runParams builds executor parameters from a run's stored fields.
func runParams(r *model.Run) render.Params {
	return render.Params{
		Width:     r.Width,
		Height:    r.Height,
		TileW:     r.TileW,
		TileH:     r.TileH,
		MaxIter:   r.MaxIter,
		TimeLimit: time.Duration(r.TimeLimitMS) * time.Millisecond,
	}
}

// execute runs the render lifecycle in a goroutine: pending -> running ->
// completed/failed. Completed tiles are published to the broker as they are
// emitted; task records are persisted in bulk on success.
func (e *Engine) execute(r *model.Run) {
	// Close the tile stream when execution finishes, regardless of outcome.
	defer e.broker.Close(r.ID)

	// Transition to running.
	if err := e.store.UpdateRunStatus(context.Background(), r.ID, model.StatusRunning); err != nil {
		e.logger.Error("failed to transition to running", "run_id", r.ID, "error", err)
		e.finishFailed(r, nil, fmt.Sprintf("failed to start: %v", err))
		return
	}

	// Capture start time immediately after the running transition so that
	// started_at stays consistent across success and failure paths.
	start := time.Now()

	sink := func(u model.TileUpdate) error {
		e.broker.Publish(r.ID, u)
		return nil
	}

	var (
		records []model.TaskRecord
		err     error
	)
	switch r.Mode {
	case model.ModeConcurrent:
		records, err = render.RunParallel(runParams(r), r.NumWorkers, sink)
	default:
		records, err = render.RunSequential(runParams(r), sink)
	}
	durationMS := time.Since(start).Milliseconds()

	if err != nil {
		e.finishFailed(r, &start, err.Error())
		return
	}

	if err := e.store.InsertTaskRecords(context.Background(), r.ID, records); err != nil {
		e.logger.Error("failed to persist task records", "run_id", r.ID, "error", err)
		e.finishFailed(r, &start, fmt.Sprintf("persist task records: %v", err))
		return
	}

	now := time.Now().UTC()
	completed := &model.Run{
		ID:             r.ID,
		Status:         model.StatusCompleted,
		TilesTotal:     r.TilesTotal,
		TilesCompleted: len(records),
		TimeLimited:    len(records) < r.TilesTotal,
		DurationMS:     &durationMS,
		StartedAt:      &start,
		FinishedAt:     &now,
	}

	if err := e.store.UpdateRun(context.Background(), completed); err != nil {
		e.logger.Error("failed to update completed run", "run_id", r.ID, "error", err)
		return
	}

	runsTotal.WithLabelValues(r.Mode, model.StatusCompleted).Inc()
	e.logger.Info("run completed",
		"run_id", r.ID,
		"mode", r.Mode,
		"tiles_completed", len(records),
		"tiles_total", r.TilesTotal,
		"time_limited", completed.TimeLimited,
		"duration_ms", durationMS,
	)
}

// finishFailed marks a run as failed with the given error message.
// startedAt may be nil if execution never started.
func (e *Engine) finishFailed(r *model.Run, startedAt *time.Time, errMsg string) {
	now := time.Now().UTC()
	var durationMS int64
	if startedAt != nil {
		durationMS = time.Since(*startedAt).Milliseconds()
	}

	failed := &model.Run{
		ID:         r.ID,
		Status:     model.StatusFailed,
		TilesTotal: r.TilesTotal,
		Error:      errMsg,
		DurationMS: &durationMS,
		StartedAt:  startedAt,
		FinishedAt: &now,
	}

	if err := e.store.UpdateRun(context.Background(), failed); err != nil {
		e.logger.Error("failed to update failed run", "run_id", r.ID, "error", err)
	}

	runsTotal.WithLabelValues(r.Mode, model.StatusFailed).Inc()
}
