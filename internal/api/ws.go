package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/hardwarehavoc/fractile/internal/model"
	"github.com/hardwarehavoc/fractile/internal/store"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// The chi cors middleware already allows all origins for this API.
		return true
	},
}

// wsMessage is the envelope for every message sent on a tile socket.
// Type is "task_update" for per-tile events and "complete" for the
// terminal summary.
type wsMessage struct {
	Type     string            `json:"type"`
	Task     *model.TileUpdate `json:"task,omitempty"`
	Progress *progress         `json:"progress,omitempty"`
	Complete *completeEvent    `json:"complete,omitempty"`
}

func (s *Server) handleTileSocket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := s.store.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.logger.Error("get run for socket", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get run")
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error to the client.
		s.logger.Error("websocket upgrade", "run_id", id, "error", err)
		return
	}
	defer conn.Close()

	// Drain incoming frames so control messages are processed and client
	// disconnects are noticed even while we only write.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ch, unsub := s.engine.Broker().Subscribe(id)
	defer unsub()

	total := run.TilesTotal
	for {
		select {
		case u, ok := <-ch:
			if !ok {
				final, err := s.store.GetRun(r.Context(), id)
				if err != nil {
					final = run
				}
				_ = conn.WriteJSON(wsMessage{
					Type: "complete",
					Complete: &completeEvent{
						TotalTasks:     final.TilesTotal,
						CompletedTasks: final.TilesCompleted,
						WasTimeLimited: final.TimeLimited,
					},
				})
				return
			}
			if err := conn.WriteJSON(wsMessage{
				Type:     "task_update",
				Task:     &u,
				Progress: &progress{Current: int(u.TaskID) + 1, Total: total},
			}); err != nil {
				return // Write failed (e.g. client gone).
			}
		case <-closed:
			return // Client disconnected.
		}
	}
}
