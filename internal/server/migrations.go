package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/desertthunder/ang2spot/internal/models"
	"github.com/desertthunder/ang2spot/internal/shared"
	"github.com/go-chi/chi/v5"
)

const defaultHistoryLimit = 50

type migrateRequest struct {
	PlaylistIDs []string `json:"playlist_ids" validate:"required,min=1,max=100,dive,required"`
	UserID      string   `json:"user_id" validate:"required"`
}

type migrateResponse struct {
	SessionID string `json:"sessionId"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

type archivedSession struct {
	*models.MigrationSession
	FinishedAt time.Time `json:"finishedAt"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "healthy", Timestamp: s.now().UTC(), Version: Version})
}

// startMigration queues a session and runs it in the background.
func (s *Server) startMigration(w http.ResponseWriter, r *http.Request) {
	var req migrateRequest
	if err := s.decode(r, &req); err != nil {
		s.respondErr(w, r, err)
		return
	}

	if s.accounts != nil {
		if err := s.accounts.Authorized(req.UserID); err != nil {
			s.respondErr(w, r, err)
			return
		}
	}

	id, err := s.orchestrator.Start(s.sessionContext(), req.UserID, req.PlaylistIDs, nil)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	s.logger.Info("migration queued", "session", id, "user", req.UserID, "playlists", len(req.PlaylistIDs))
	writeJSON(w, http.StatusAccepted, migrateResponse{SessionID: id})
}

// migrationStatus returns the live snapshot, falling back to the archive for sessions already pruned from memory.
func (s *Server) migrationStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	snap, err := s.orchestrator.Store().Get(id)
	if errors.Is(err, shared.ErrSessionNotFound) && s.history != nil {
		var rec *models.MigrationRecord
		if rec, err = s.history.GetBySessionID(id); err == nil {
			snap = rec.Snapshot()
		}
	}
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// stopMigration is a no-op for finished sessions, including archived ones no longer held in memory.
func (s *Server) stopMigration(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	err := s.orchestrator.Stop(id)
	if errors.Is(err, shared.ErrSessionNotFound) && s.history != nil {
		_, err = s.history.GetBySessionID(id)
	}
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// sessionSocket streams snapshots of a session until it reaches a terminal status.
func (s *Server) sessionSocket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	store := s.orchestrator.Store()
	if _, err := store.Get(id); err != nil {
		s.respondErr(w, r, err)
		return
	}
	if err := s.hub.Serve(w, r, id, func() (*models.MigrationSession, error) { return store.Get(id) }); err != nil {
		s.logger.Warn("websocket session failed", "session", id, "error", err)
	}
}

// migrationHistory lists archived sessions, newest first.
//
// Query parameters: user_id, status, limit (default 50).
func (s *Server) migrationHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.respondErr(w, r, fmt.Errorf("%w: migration history is not configured", shared.ErrServiceUnavailable))
		return
	}

	q := r.URL.Query()
	criteria := map[string]any{"limit": defaultHistoryLimit}
	if v := q.Get("user_id"); v != "" {
		criteria["user_id"] = v
	}
	if v := q.Get("status"); v != "" {
		status, err := models.ParseStatus(v)
		if err != nil {
			s.respondErr(w, r, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
			return
		}
		criteria["status"] = status
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.respondErr(w, r, fmt.Errorf("%w: limit must be a positive integer", shared.ErrInvalidInput))
			return
		}
		criteria["limit"] = n
	}

	records, err := s.history.List(criteria)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	out := make([]archivedSession, 0, len(records))
	for _, rec := range records {
		out = append(out, archivedSession{MigrationSession: rec.Snapshot(), FinishedAt: rec.FinishedAt()})
	}
	writeJSON(w, http.StatusOK, out)
}
