package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/desertthunder/ang2spot/internal/models"
	"github.com/desertthunder/ang2spot/internal/shared"
	"github.com/go-chi/chi/v5"
)

type profileRequest struct {
	ProfileURL string `json:"profile_url" validate:"required,url"`
}

type profileHistoryItem struct {
	ID string `json:"id"`
	models.ProfileData
	UsageCount int       `json:"usage_count"`
	LastUsed   time.Time `json:"last_used"`
}

// lookupProfile validates a profile page. Extraction failures are folded into an invalid [models.ProfileData]
// so the caller can show the message.
func (s *Server) lookupProfile(r *http.Request, profileURL string) (*models.ProfileData, error) {
	if s.extractor == nil {
		return nil, fmt.Errorf("%w: Anghami extractor is not configured", shared.ErrServiceUnavailable)
	}

	data, err := s.extractor.ValidateProfile(r.Context(), profileURL)
	if err != nil {
		s.logger.Warn("profile validation failed", "profile_url", profileURL, "error", err)
		return &models.ProfileData{ProfileURL: profileURL, ErrorMessage: err.Error()}, nil
	}
	return data, nil
}

func (s *Server) validateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := s.decode(r, &req); err != nil {
		s.respondErr(w, r, err)
		return
	}

	data, err := s.lookupProfile(r, req.ProfileURL)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// confirmProfile validates the profile and records it in the history when valid.
func (s *Server) confirmProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := s.decode(r, &req); err != nil {
		s.respondErr(w, r, err)
		return
	}

	data, err := s.lookupProfile(r, req.ProfileURL)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	if data.IsValid && s.profiles != nil {
		if _, err := s.profiles.Record(*data); err != nil {
			s.respondErr(w, r, err)
			return
		}
		s.logger.Info("profile confirmed", "profile_id", data.ProfileID, "name", data.DisplayName)
	}
	writeJSON(w, http.StatusOK, data)
}

func (s *Server) profileHistory(w http.ResponseWriter, r *http.Request) {
	if s.profiles == nil {
		s.respondErr(w, r, fmt.Errorf("%w: profile history is not configured", shared.ErrServiceUnavailable))
		return
	}

	entries, err := s.profiles.Recent()
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	out := make([]profileHistoryItem, 0, len(entries))
	for _, e := range entries {
		data := e.Profile()
		data.IsValid = true
		out = append(out, profileHistoryItem{
			ID:          e.ID(),
			ProfileData: data,
			UsageCount:  e.UsageCount(),
			LastUsed:    e.LastUsed(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) deleteProfile(w http.ResponseWriter, r *http.Request) {
	if s.profiles == nil {
		s.respondErr(w, r, fmt.Errorf("%w: profile history is not configured", shared.ErrServiceUnavailable))
		return
	}

	if err := s.profiles.Delete(chi.URLParam(r, "profileID")); err != nil {
		s.respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Profile deleted from history"})
}
