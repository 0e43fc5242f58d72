package render

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hardwarehavoc/fractile/internal/model"
)

// RunParallel splits the tile sequence into contiguous chunks of size
// ceil(n/workers) and renders one chunk per goroutine. Workers share a
// single start instant and an advisory cancellation flag: the first worker
// to observe the budget exceeded sets it, and the rest stop before their
// next tile. A tile, once started, always finishes; the flag trades at
// most one extra tile per worker for a cheap relaxed check.
//
// Each worker accumulates results locally; after all workers join, the
// coordinator merges and sorts them by task_id and drives the sink on the
// calling goroutine only, since sinks are not assumed safe for concurrent
// invocation. Records carry the tile's partition-time index, never a
// position recomputed from the worker's chunk.
func RunParallel(p Params, workers int, sink Sink) ([]model.TaskRecord, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if workers < 1 {
		return nil, fmt.Errorf("%w: worker count must be at least 1", ErrInvalidParams)
	}

	tiles := Partition(p.Width, p.Height, p.TileW, p.TileH)
	maxIter := uint16(p.MaxIter)
	chunkSize := (len(tiles) + workers - 1) / workers

	var chunks [][]model.Tile
	for start := 0; start < len(tiles); start += chunkSize {
		end := min(start+chunkSize, len(tiles))
		chunks = append(chunks, tiles[start:end])
	}

	overallStart := time.Now()
	var timeExceeded atomic.Bool

	// Per-worker accumulation; merged after the join, so no lock is held
	// during computation.
	updates := make([][]model.TileUpdate, len(chunks))
	errs := make([]error, len(chunks))

	var wg sync.WaitGroup
	for k, chunk := range chunks {
		k, chunk := k, chunk
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[k] = fmt.Errorf("%w: worker %d: %v", ErrWorkerFailed, k, r)
				}
			}()

			local := make([]model.TileUpdate, 0, len(chunk))
			for _, tile := range chunk {
				if timeExceeded.Load() {
					break
				}
				if time.Since(overallStart) >= p.TimeLimit {
					timeExceeded.Store(true)
					break
				}

				start := time.Now()
				data := RenderTile(p.Width, p.Height, tile.X, tile.Y, tile.W, tile.H, maxIter)
				elapsed := time.Since(start)
				observeTile(model.ModeConcurrent, elapsed)

				local = append(local, model.TileUpdate{
					TaskID:     tile.Index,
					Tile:       tile,
					Data:       data,
					DurationMS: elapsed.Milliseconds(),
				})
			}
			updates[k] = local
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	var merged []model.TileUpdate
	for _, local := range updates {
		merged = append(merged, local...)
	}

	// Restore deterministic order after out-of-order completion.
	sort.Slice(merged, func(i, j int) bool { return merged[i].TaskID < merged[j].TaskID })

	records := make([]model.TaskRecord, 0, len(merged))
	for _, update := range merged {
		if err := sink(update); err != nil {
			return nil, fmt.Errorf("emit tile %d: %w", update.TaskID, err)
		}
		records = append(records, update.Record())
	}

	return records, nil
}
