package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hardwarehavoc/fractile/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func makeTestRun() *model.Run {
	return &model.Run{
		ID:          model.NewID(),
		Mode:        model.ModeConcurrent,
		Status:      model.StatusPending,
		Width:       800,
		Height:      600,
		TileW:       64,
		TileH:       64,
		MaxIter:     256,
		TimeLimitMS: 2000,
		NumWorkers:  4,
		TilesTotal:  130,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}
}

func TestCreateAndGetRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := makeTestRun()

	if err := s.CreateRun(ctx, r); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	got, err := s.GetRun(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}

	if got.ID != r.ID {
		t.Errorf("ID = %q, want %q", got.ID, r.ID)
	}
	if got.Mode != r.Mode {
		t.Errorf("Mode = %q, want %q", got.Mode, r.Mode)
	}
	if got.Status != model.StatusPending {
		t.Errorf("Status = %q, want pending", got.Status)
	}
	if got.Width != 800 || got.Height != 600 {
		t.Errorf("dimensions = %dx%d, want 800x600", got.Width, got.Height)
	}
	if got.TileW != 64 || got.TileH != 64 {
		t.Errorf("tile size = %dx%d, want 64x64", got.TileW, got.TileH)
	}
	if got.MaxIter != 256 {
		t.Errorf("MaxIter = %d, want 256", got.MaxIter)
	}
	if got.TimeLimitMS != 2000 {
		t.Errorf("TimeLimitMS = %d, want 2000", got.TimeLimitMS)
	}
	if got.NumWorkers != 4 {
		t.Errorf("NumWorkers = %d, want 4", got.NumWorkers)
	}
	if got.TilesTotal != 130 {
		t.Errorf("TilesTotal = %d, want 130", got.TilesTotal)
	}
	if got.TimeLimited {
		t.Error("TimeLimited = true, want false")
	}
}

func TestGetRunNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetRun(context.Background(), "nonexistent")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListRunsPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		r := makeTestRun()
		// Stagger created_at so ordering is deterministic.
		r.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Second)
		if err := s.CreateRun(ctx, r); err != nil {
			t.Fatalf("CreateRun: %v", err)
		}
	}

	runs, total, err := s.ListRuns(ctx, 2, 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(runs) != 2 {
		t.Errorf("page size = %d, want 2", len(runs))
	}
	if len(runs) == 2 && runs[0].CreatedAt.Before(runs[1].CreatedAt) {
		t.Error("runs not ordered by created_at DESC")
	}

	runs, _, err = s.ListRuns(ctx, 10, 4)
	if err != nil {
		t.Fatalf("ListRuns offset: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("offset page size = %d, want 1", len(runs))
	}
}

func TestUpdateRunStatusTransitions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := makeTestRun()
	if err := s.CreateRun(ctx, r); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	if err := s.UpdateRunStatus(ctx, r.ID, model.StatusRunning); err != nil {
		t.Fatalf("pending -> running: %v", err)
	}

	// Skipping running is not allowed.
	r2 := makeTestRun()
	if err := s.CreateRun(ctx, r2); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if err := s.UpdateRunStatus(ctx, r2.ID, model.StatusCompleted); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("pending -> completed err = %v, want ErrInvalidTransition", err)
	}

	if err := s.UpdateRunStatus(ctx, r.ID, model.StatusCompleted); err != nil {
		t.Fatalf("running -> completed: %v", err)
	}

	got, err := s.GetRun(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != model.StatusCompleted {
		t.Errorf("Status = %q, want completed", got.Status)
	}
	if got.FinishedAt == nil {
		t.Error("FinishedAt not set on terminal transition")
	}

	if err := s.UpdateRunStatus(ctx, "nonexistent", model.StatusRunning); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing run err = %v, want ErrNotFound", err)
	}
}

func TestUpdateRunOutcome(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := makeTestRun()
	if err := s.CreateRun(ctx, r); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	started := now.Add(-2 * time.Second)
	dur := int64(1850)
	r.Status = model.StatusCompleted
	r.TilesCompleted = 97
	r.TimeLimited = true
	r.DurationMS = &dur
	r.StartedAt = &started
	r.FinishedAt = &now

	if err := s.UpdateRun(ctx, r); err != nil {
		t.Fatalf("UpdateRun: %v", err)
	}

	got, err := s.GetRun(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != model.StatusCompleted {
		t.Errorf("Status = %q, want completed", got.Status)
	}
	if got.TilesCompleted != 97 {
		t.Errorf("TilesCompleted = %d, want 97", got.TilesCompleted)
	}
	if !got.TimeLimited {
		t.Error("TimeLimited = false, want true")
	}
	if got.DurationMS == nil || *got.DurationMS != 1850 {
		t.Errorf("DurationMS = %v, want 1850", got.DurationMS)
	}
	if got.StartedAt == nil || got.FinishedAt == nil {
		t.Error("StartedAt/FinishedAt not persisted")
	}

	r.ID = "nonexistent"
	if err := s.UpdateRun(ctx, r); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing run err = %v, want ErrNotFound", err)
	}
}

func TestTaskRecordsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	r := makeTestRun()
	if err := s.CreateRun(ctx, r); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	records := []model.TaskRecord{
		{TaskID: 2, Tile: model.Tile{Index: 2, X: 0, Y: 2, W: 2, H: 2}, DurationMS: 3, PixelsComputed: 4},
		{TaskID: 0, Tile: model.Tile{Index: 0, X: 0, Y: 0, W: 2, H: 2}, DurationMS: 5, PixelsComputed: 4},
		{TaskID: 1, Tile: model.Tile{Index: 1, X: 2, Y: 0, W: 2, H: 2}, DurationMS: 1, PixelsComputed: 2},
	}
	if err := s.InsertTaskRecords(ctx, r.ID, records); err != nil {
		t.Fatalf("InsertTaskRecords: %v", err)
	}

	got, err := s.GetTaskRecords(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetTaskRecords: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("records = %d, want 3", len(got))
	}
	// Returned in ascending task_id order regardless of insert order.
	for i, rec := range got {
		if rec.TaskID != uint32(i) {
			t.Errorf("records[%d].TaskID = %d, want %d", i, rec.TaskID, i)
		}
		if rec.Tile.Index != rec.TaskID {
			t.Errorf("records[%d].Tile.Index = %d, want %d", i, rec.Tile.Index, rec.TaskID)
		}
	}
	if got[1].PixelsComputed != 2 {
		t.Errorf("records[1].PixelsComputed = %d, want 2", got[1].PixelsComputed)
	}
}

func TestInsertTaskRecordsEmpty(t *testing.T) {
	s := newTestStore(t)
	if err := s.InsertTaskRecords(context.Background(), "any", nil); err != nil {
		t.Errorf("InsertTaskRecords(nil) = %v, want nil", err)
	}
}

func TestGetRunStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	durations := []int64{100, 300}
	for i := range durations {
		r := makeTestRun()
		if i == 0 {
			r.Mode = model.ModeSequential
		}
		r.Status = model.StatusCompleted
		r.DurationMS = &durations[i]
		if err := s.CreateRun(ctx, r); err != nil {
			t.Fatalf("CreateRun: %v", err)
		}
	}
	pending := makeTestRun()
	if err := s.CreateRun(ctx, pending); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	stats, err := s.GetRunStats(ctx)
	if err != nil {
		t.Fatalf("GetRunStats: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("Total = %d, want 3", stats.Total)
	}
	if stats.CountByStatus[model.StatusCompleted] != 2 {
		t.Errorf("completed count = %d, want 2", stats.CountByStatus[model.StatusCompleted])
	}
	if stats.CountByStatus[model.StatusPending] != 1 {
		t.Errorf("pending count = %d, want 1", stats.CountByStatus[model.StatusPending])
	}
	if stats.CountByMode[model.ModeSequential] != 1 {
		t.Errorf("sequential count = %d, want 1", stats.CountByMode[model.ModeSequential])
	}
	if stats.CountByMode[model.ModeConcurrent] != 2 {
		t.Errorf("concurrent count = %d, want 2", stats.CountByMode[model.ModeConcurrent])
	}
	if stats.AvgDurationMS != 200 {
		t.Errorf("AvgDurationMS = %v, want 200", stats.AvgDurationMS)
	}
}
