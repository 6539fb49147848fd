package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/ang2spot/internal/shared"
	"github.com/go-chi/chi/v5"
)

type createUserRequest struct {
	SpotifyClientID     string `json:"spotify_client_id" validate:"required,len=32,alphanum"`
	SpotifyClientSecret string `json:"spotify_client_secret" validate:"required,len=32,alphanum"`
	DisplayName         string `json:"display_name" validate:"max=100"`
}

type userResponse struct {
	ID              string    `json:"id"`
	DisplayName     string    `json:"display_name"`
	SpotifyClientID string    `json:"spotify_client_id"`
	Authorized      bool      `json:"authorized"`
	CreatedAt       time.Time `json:"created_at"`
}

func (s *Server) accountsConfigured(w http.ResponseWriter, r *http.Request) bool {
	if s.accounts == nil {
		s.respondErr(w, r, fmt.Errorf("%w: user accounts are not configured", shared.ErrServiceUnavailable))
		return false
	}
	return true
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	if !s.accountsConfigured(w, r) {
		return
	}

	var req createUserRequest
	if err := s.decode(r, &req); err != nil {
		s.respondErr(w, r, err)
		return
	}

	user, err := s.accounts.Register(req.DisplayName, req.SpotifyClientID, req.SpotifyClientSecret)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, userResponse{
		ID:              user.ID(),
		DisplayName:     user.DisplayName(),
		SpotifyClientID: user.SpotifyClientID(),
		Authorized:      user.HasTokens(),
		CreatedAt:       user.CreatedAt(),
	})
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	if !s.accountsConfigured(w, r) {
		return
	}

	if err := s.accounts.Remove(chi.URLParam(r, "userID")); err != nil {
		s.respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "User deleted successfully"})
}

// authorizeSpotify redirects the browser to the Spotify consent page for the user's application.
func (s *Server) authorizeSpotify(w http.ResponseWriter, r *http.Request) {
	if !s.accountsConfigured(w, r) {
		return
	}

	userID := chi.URLParam(r, "userID")
	state, err := shared.GenerateState()
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	url, err := s.accounts.AuthURL(r.Context(), userID, state)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	s.states.put(state, userID)
	http.Redirect(w, r, url, http.StatusFound)
}

// spotifyCallback completes a flow started by authorizeSpotify.
func (s *Server) spotifyCallback(w http.ResponseWriter, r *http.Request) {
	if !s.accountsConfigured(w, r) {
		return
	}

	q := r.URL.Query()
	userID, ok := s.states.take(q.Get("state"))
	if !ok {
		writeAuthPage(w, http.StatusBadRequest, false, "Invalid or expired state parameter. Start the authorization again.")
		return
	}

	code := q.Get("code")
	if code == "" {
		s.logger.Warn("spotify authorization denied", "user", userID, "error", q.Get("error"))
		writeAuthPage(w, http.StatusBadRequest, false, "Authorization was denied.")
		return
	}

	if err := s.accounts.CompleteAuth(r.Context(), userID, code); err != nil {
		s.logger.Error("spotify authorization failed", "user", userID, "error", err)
		writeAuthPage(w, statusFor(err), false, "Could not complete Spotify authorization.")
		return
	}

	s.logger.Info("spotify authorized", "user", userID)
	writeAuthPage(w, http.StatusOK, true, "Spotify is connected. You can close this window.")
}
