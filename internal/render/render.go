package render

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/hardwarehavoc/fractile/internal/model"
)

// ErrInvalidParams is returned when render parameters fail validation.
// It is detected before any tile work begins; no partial results exist.
var ErrInvalidParams = errors.New("invalid render parameters")

// ErrWorkerFailed is returned when a rendering worker terminates abnormally.
var ErrWorkerFailed = errors.New("render worker failed")

// Sink receives one TileUpdate per completed, in-budget tile, strictly in
// ascending task_id order. A non-nil error aborts the whole call. Sinks are
// never invoked concurrently.
type Sink func(model.TileUpdate) error

// Params holds the inputs common to both executors.
type Params struct {
	Width, Height int           // image dimensions in pixels
	TileW, TileH  int           // tile dimensions in pixels
	MaxIter       int           // escape-time iteration cap, 1..65535
	TimeLimit     time.Duration // wall-clock budget; 0 stops before the first tile
}

// Validate checks the parameters, wrapping ErrInvalidParams with the
// offending field.
func (p Params) Validate() error {
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("%w: image dimensions must be positive", ErrInvalidParams)
	}
	if p.TileW <= 0 || p.TileH <= 0 {
		return fmt.Errorf("%w: tile dimensions must be positive", ErrInvalidParams)
	}
	if p.MaxIter <= 0 || p.MaxIter > math.MaxUint16 {
		return fmt.Errorf("%w: max_iter must be in 1..%d", ErrInvalidParams, math.MaxUint16)
	}
	if p.TimeLimit < 0 {
		return fmt.Errorf("%w: time limit must not be negative", ErrInvalidParams)
	}
	return nil
}

// TileCount returns the number of tiles the partitioner will produce.
func (p Params) TileCount() int {
	cols := (p.Width + p.TileW - 1) / p.TileW
	rows := (p.Height + p.TileH - 1) / p.TileH
	return cols * rows
}
