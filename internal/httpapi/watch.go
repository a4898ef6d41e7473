package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/inkfold/inkfold/internal/loader"
	"github.com/inkfold/inkfold/internal/state"
)

// watchPollInterval is how often a watch connection runs the freshness
// check against the log.
const watchPollInterval = 2 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// watchMessage is one websocket frame: the reconciled snapshot, sent
// only when the freshness check found newer log entries.
type watchMessage struct {
	State      *state.Snapshot `json:"state"`
	HadUpdates bool            `json:"had_updates"`
}

// handleWatch streams freshness updates for one entity. The server
// polls the log on an interval and pushes a frame whenever replay
// produced a newer snapshot; watchers do not persist, so a thousand
// watchers cost a thousand reads, not a thousand writes.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	result, err := s.loads.LoadState(r.Context(), id)
	if err != nil {
		s.internalError(w, r, "watch load", err)
		return
	}
	if result.State == nil {
		writeError(w, http.StatusNotFound, "not_found", "entity not yet created")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		s.logger.Warn("watch upgrade failed",
			slog.String("id", id), slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	// Reads are discarded; their only job is surfacing the close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Initial frame so the client starts from a known snapshot.
	if err := conn.WriteJSON(watchMessage{State: result.State, HadUpdates: false}); err != nil {
		return
	}

	snap, rec := result.State, result.Record
	ticker := time.NewTicker(watchPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		fresh, err := s.loads.ApplyFreshnessUpdate(r.Context(), snap, rec, loader.FreshnessOptions{})
		if err != nil {
			s.logger.Warn("watch freshness check failed",
				slog.String("id", id), slog.String("error", err.Error()))
			continue
		}
		if !fresh.HadUpdates {
			continue
		}
		snap, rec = fresh.State, fresh.Record
		if err := conn.WriteJSON(watchMessage{State: snap, HadUpdates: true}); err != nil {
			return
		}
	}
}
