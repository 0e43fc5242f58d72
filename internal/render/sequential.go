package render

import (
	"fmt"
	"time"

	"github.com/hardwarehavoc/fractile/internal/model"
)

// RunSequential walks the tile sequence on the calling goroutine, checking
// the time budget before each tile. Every completed tile is emitted to the
// sink immediately and recorded. Budget exhaustion is a normal return: the
// records are a strict prefix of the full tile sequence. A sink error
// aborts the whole call; no records are returned in that case.
func RunSequential(p Params, sink Sink) ([]model.TaskRecord, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	tiles := Partition(p.Width, p.Height, p.TileW, p.TileH)
	maxIter := uint16(p.MaxIter)

	records := make([]model.TaskRecord, 0, len(tiles))
	overallStart := time.Now()

	for _, tile := range tiles {
		if time.Since(overallStart) >= p.TimeLimit {
			break
		}

		start := time.Now()
		data := RenderTile(p.Width, p.Height, tile.X, tile.Y, tile.W, tile.H, maxIter)
		elapsed := time.Since(start)
		observeTile(model.ModeSequential, elapsed)

		update := model.TileUpdate{
			TaskID:     tile.Index,
			Tile:       tile,
			Data:       data,
			DurationMS: elapsed.Milliseconds(),
		}
		if err := sink(update); err != nil {
			return nil, fmt.Errorf("emit tile %d: %w", tile.Index, err)
		}

		records = append(records, update.Record())
	}

	return records, nil
}
