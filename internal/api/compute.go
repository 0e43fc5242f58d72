package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/hardwarehavoc/fractile/internal/model"
	"github.com/hardwarehavoc/fractile/internal/render"
)

// Default render parameters for the synchronous compute endpoints.
const (
	defaultWidth       = 800
	defaultHeight      = 600
	defaultTileW       = 64
	defaultTileH       = 64
	defaultMaxIter     = 256
	defaultTimeLimitMS = 2000
	defaultNumWorkers  = 4
)

// computeParams echoes the effective parameters back in the response.
type computeParams struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	TileW       int    `json:"tile_w"`
	TileH       int    `json:"tile_h"`
	MaxIter     int    `json:"max_iter"`
	TimeLimitMS int64  `json:"time_limit_ms"`
	NumWorkers  int    `json:"num_threads,omitempty"`
	Mode        string `json:"mode"`
}

// computeResponse is the JSON body for the synchronous compute endpoints.
type computeResponse struct {
	Data   []model.TaskRecord `json:"data"`
	Params computeParams      `json:"params"`
}

// parseComputeQuery reads the shared render parameters from the query
// string, applying the documented defaults.
func parseComputeQuery(r *http.Request) (render.Params, int64) {
	timeLimitMS := int64(parseIntQuery(r, "time_limit_ms", defaultTimeLimitMS))
	p := render.Params{
		Width:     parseIntQuery(r, "width", defaultWidth),
		Height:    parseIntQuery(r, "height", defaultHeight),
		TileW:     parseIntQuery(r, "tile_w", defaultTileW),
		TileH:     parseIntQuery(r, "tile_h", defaultTileH),
		MaxIter:   parseIntQuery(r, "max_iter", defaultMaxIter),
		TimeLimit: time.Duration(timeLimitMS) * time.Millisecond,
	}
	return p, timeLimitMS
}

// noopSink discards tile updates; the synchronous endpoints return only the
// timing records, never the pixel data.
func noopSink(model.TileUpdate) error { return nil }

func (s *Server) handleComputeSequential(w http.ResponseWriter, r *http.Request) {
	p, timeLimitMS := parseComputeQuery(r)

	records, err := render.RunSequential(p, noopSink)
	if errors.Is(err, render.ErrInvalidParams) {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("sequential compute", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to execute sequential render")
		return
	}

	s.writeJSON(w, http.StatusOK, computeResponse{
		Data: records,
		Params: computeParams{
			Width:       p.Width,
			Height:      p.Height,
			TileW:       p.TileW,
			TileH:       p.TileH,
			MaxIter:     p.MaxIter,
			TimeLimitMS: timeLimitMS,
			Mode:        model.ModeSequential,
		},
	})
}

func (s *Server) handleComputeConcurrent(w http.ResponseWriter, r *http.Request) {
	p, timeLimitMS := parseComputeQuery(r)
	workers := parseIntQuery(r, "num_threads", defaultNumWorkers)

	records, err := render.RunParallel(p, workers, noopSink)
	if errors.Is(err, render.ErrInvalidParams) {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("concurrent compute", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to execute concurrent render")
		return
	}

	s.writeJSON(w, http.StatusOK, computeResponse{
		Data: records,
		Params: computeParams{
			Width:       p.Width,
			Height:      p.Height,
			TileW:       p.TileW,
			TileH:       p.TileH,
			MaxIter:     p.MaxIter,
			TimeLimitMS: timeLimitMS,
			NumWorkers:  workers,
			Mode:        model.ModeConcurrent,
		},
	})
}
