package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hardwarehavoc/fractile/internal/model"
	"github.com/hardwarehavoc/fractile/internal/store"
)

// tileEvent is the payload of one streamed tile, mirroring the shape the
// original realtime clients consumed: the update itself plus coarse
// progress.
type tileEvent struct {
	Task     model.TileUpdate `json:"task"`
	Progress progress         `json:"progress"`
}

type progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// completeEvent closes a tile stream with a summary of the run.
type completeEvent struct {
	TotalTasks     int  `json:"total_tasks"`
	CompletedTasks int  `json:"completed_tasks"`
	WasTimeLimited bool `json:"was_time_limited"`
}

func (s *Server) handleStreamTiles(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := s.store.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.logger.Error("get run for stream", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}

	// Set SSE headers.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// If already in a terminal state, return an immediate done event; the
	// records endpoint serves history.
	if run.Status == model.StatusCompleted || run.Status == model.StatusFailed {
		w.WriteHeader(http.StatusOK)
		_ = s.writeSSEDone(w, run)
		return
	}

	// Disable write timeout for long-lived SSE connections.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Error("set write deadline for SSE", "error", err)
	}

	// Subscribe to the tile stream. This is safe even if the run completed
	// between the status check above and this call — Subscribe on a closed
	// topic returns a closed channel, causing the loop below to exit
	// immediately.
	ch, unsub := s.engine.Broker().Subscribe(id)
	defer unsub()

	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)
	if canFlush {
		flusher.Flush()
	}

	total := run.TilesTotal
	for {
		select {
		case u, ok := <-ch:
			if !ok {
				// Run finished; re-read it for the final summary.
				final, err := s.store.GetRun(r.Context(), id)
				if err != nil {
					final = run
				}
				_ = s.writeSSEDone(w, final)
				if canFlush {
					flusher.Flush()
				}
				return
			}
			if err := writeSSEEvent(w, "tile", tileEvent{
				Task:     u,
				Progress: progress{Current: int(u.TaskID) + 1, Total: total},
			}); err != nil {
				return // Write failed (e.g. client gone).
			}
			if canFlush {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return // Client disconnected.
		}
	}
}

// writeSSEDone emits the terminal "done" event for a run.
func (s *Server) writeSSEDone(w http.ResponseWriter, run *model.Run) error {
	return writeSSEEvent(w, "done", completeEvent{
		TotalTasks:     run.TilesTotal,
		CompletedTasks: run.TilesCompleted,
		WasTimeLimited: run.TimeLimited,
	})
}

// writeSSEEvent writes a named SSE event with a JSON payload
// (event: <type>\ndata: <json>\n\n). json.Marshal never emits newlines,
// so the data fits a single SSE data line.
func writeSSEEvent(w http.ResponseWriter, eventType string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}
