// Package httpapi exposes the read and append paths over HTTP.
//
// The surface is small: load a snapshot (optionally freshness-checked),
// append an event, read the site index, and watch an entity for
// updates over a websocket. Everything speaks the same JSON shapes the
// stores persist; there is no separate wire schema.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/inkfold/inkfold/internal/eo"
	"github.com/inkfold/inkfold/internal/loader"
	"github.com/inkfold/inkfold/internal/logstore"
	"github.com/inkfold/inkfold/internal/schema"
	"github.com/inkfold/inkfold/internal/state"
)

// Server handles the /v1 API.
type Server struct {
	loads     *loader.Loader
	log       logstore.Store
	validator *schema.Validator
	logger    *slog.Logger

	maxBodyBytes int64
}

// Config tunes the server.
type Config struct {
	MaxBodyBytes int64
}

// NewServer wires the API handlers. logger may be nil for slog's
// default.
func NewServer(loads *loader.Loader, log logstore.Store, validator *schema.Validator, logger *slog.Logger, cfg Config) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return &Server{
		loads:        loads,
		log:          log,
		validator:    validator,
		logger:       logger,
		maxBodyBytes: cfg.MaxBodyBytes,
	}
}

// Handler returns the routed http.Handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/state/{id}", s.handleState)
	mux.HandleFunc("POST /v1/events", s.handleAppend)
	mux.HandleFunc("GET /v1/index", s.handleIndex)
	mux.HandleFunc("GET /v1/watch/{id}", s.handleWatch)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// stateResponse is the GET /v1/state payload. State is null for
// entities that do not exist yet; that is a 200, not a 404, since "not
// yet created" is a valid answer in an event-sourced read path.
type stateResponse struct {
	State      *state.Snapshot `json:"state"`
	Source     loader.Source   `json:"source"`
	HadUpdates bool            `json:"had_updates,omitempty"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	result, err := s.loads.LoadState(r.Context(), id)
	if err != nil {
		s.internalError(w, r, "load state", err)
		return
	}

	resp := stateResponse{State: result.State, Source: result.Source}
	if result.State != nil && r.URL.Query().Get("fresh") == "1" {
		fresh, err := s.loads.ApplyFreshnessUpdate(r.Context(), result.State, result.Record, loader.FreshnessOptions{
			Persist: result.Source == loader.SourceSnapshot,
		})
		if err != nil {
			s.internalError(w, r, "freshness check", err)
			return
		}
		resp.State = fresh.State
		resp.HadUpdates = fresh.HadUpdates
	}
	writeJSON(w, http.StatusOK, resp)
}

// appendResponse is the POST /v1/events payload.
type appendResponse struct {
	EventID        string `json:"event_id"`
	OriginServerTS int64  `json:"origin_server_ts"`
}

func (s *Server) handleAppend(w http.ResponseWriter, r *http.Request) {
	var ev eo.Event
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("decode event: %v", err))
		return
	}

	if err := s.validator.Validate(ev); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid_operand", err.Error())
		return
	}

	entry, err := s.log.Append(r.Context(), ev)
	if err != nil {
		if errors.Is(err, logstore.ErrInvalidEvent) {
			writeError(w, http.StatusBadRequest, "invalid_event", err.Error())
			return
		}
		s.internalError(w, r, "append event", err)
		return
	}

	writeJSON(w, http.StatusOK, appendResponse{
		EventID:        entry.EventID,
		OriginServerTS: entry.OriginServerTS,
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	result, err := s.loads.LoadState(r.Context(), eo.RootIndex)
	if err != nil {
		s.internalError(w, r, "load index", err)
		return
	}
	if result.State == nil || result.State.Index == nil {
		writeJSON(w, http.StatusOK, state.IndexState{SlugMap: map[string]string{}})
		return
	}
	writeJSON(w, http.StatusOK, result.State.Index)
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.logger.Error(op+" failed",
		slog.String("path", r.URL.Path), slog.String("error", err.Error()))
	writeError(w, http.StatusInternalServerError, "internal", op+" failed")
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"code":    code,
		"message": message,
	})
}
