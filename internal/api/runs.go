package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hardwarehavoc/fractile/internal/model"
	"github.com/hardwarehavoc/fractile/internal/store"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxBodySize      = 1 << 20 // 1 MB
)

// createRunRequest is the JSON body for POST /api/runs. Omitted fields take
// the same defaults as the synchronous compute endpoints.
type createRunRequest struct {
	Mode        string `json:"mode"`
	Width       *int   `json:"width"`
	Height      *int   `json:"height"`
	TileW       *int   `json:"tile_w"`
	TileH       *int   `json:"tile_h"`
	MaxIter     *int   `json:"max_iter"`
	TimeLimitMS *int64 `json:"time_limit_ms"`
	NumWorkers  *int   `json:"num_threads"`
}

// listRunsResponse wraps the paginated list response.
type listRunsResponse struct {
	Runs   []*model.Run `json:"runs"`
	Total  int          `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

// runRecordsResponse is the JSON response for GET /api/runs/{id}/records.
type runRecordsResponse struct {
	RunID   string             `json:"run_id"`
	Records []model.TaskRecord `json:"records"`
}

func intOr(v *int, fallback int) int {
	if v != nil {
		return *v
	}
	return fallback
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Mode == "" {
		req.Mode = model.ModeSequential
	}
	if !model.ValidMode(req.Mode) {
		s.writeError(w, http.StatusBadRequest, "mode must be sequential or concurrent")
		return
	}

	timeLimitMS := int64(defaultTimeLimitMS)
	if req.TimeLimitMS != nil {
		timeLimitMS = *req.TimeLimitMS
	}

	run := &model.Run{
		ID:          model.NewID(),
		Mode:        req.Mode,
		Status:      model.StatusPending,
		Width:       intOr(req.Width, defaultWidth),
		Height:      intOr(req.Height, defaultHeight),
		TileW:       intOr(req.TileW, defaultTileW),
		TileH:       intOr(req.TileH, defaultTileH),
		MaxIter:     intOr(req.MaxIter, defaultMaxIter),
		TimeLimitMS: timeLimitMS,
		NumWorkers:  intOr(req.NumWorkers, defaultNumWorkers),
		CreatedAt:   time.Now().UTC(),
	}

	if run.Width <= 0 || run.Height <= 0 {
		s.writeError(w, http.StatusBadRequest, "width and height must be positive")
		return
	}
	if run.TileW <= 0 || run.TileH <= 0 {
		s.writeError(w, http.StatusBadRequest, "tile dimensions must be positive")
		return
	}
	if run.MaxIter <= 0 {
		s.writeError(w, http.StatusBadRequest, "max_iter must be positive")
		return
	}
	if run.TimeLimitMS < 0 {
		s.writeError(w, http.StatusBadRequest, "time_limit_ms must not be negative")
		return
	}
	if run.Mode == model.ModeConcurrent && run.NumWorkers <= 0 {
		s.writeError(w, http.StatusBadRequest, "num_threads must be positive")
		return
	}

	if err := s.engine.Submit(r.Context(), run); err != nil {
		s.logger.Error("submit run", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to submit run")
		return
	}

	s.writeJSON(w, http.StatusAccepted, run)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := s.store.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.logger.Error("get run", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}

	s.writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", defaultListLimit)
	offset := parseIntQuery(r, "offset", 0)

	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	runs, total, err := s.store.ListRuns(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list runs", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	if runs == nil {
		runs = []*model.Run{}
	}

	s.writeJSON(w, http.StatusOK, listRunsResponse{
		Runs:   runs,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

func (s *Server) handleGetRunRecords(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// Verify the run exists.
	if _, err := s.store.GetRun(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "run not found")
			return
		}
		s.logger.Error("get run for records", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}

	records, err := s.store.GetTaskRecords(r.Context(), id)
	if err != nil {
		s.logger.Error("get task records", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get task records")
		return
	}

	if records == nil {
		records = []model.TaskRecord{}
	}

	s.writeJSON(w, http.StatusOK, runRecordsResponse{
		RunID:   id,
		Records: records,
	})
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
