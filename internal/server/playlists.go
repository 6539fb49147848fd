package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/desertthunder/ang2spot/internal/models"
	"github.com/desertthunder/ang2spot/internal/services"
	"github.com/desertthunder/ang2spot/internal/shared"
	"github.com/go-chi/chi/v5"
)

type refreshRequest struct {
	ProfileURL  string   `json:"profile_url" validate:"required,url"`
	PlaylistIDs []string `json:"playlist_ids" validate:"omitempty,max=100,dive,required"`
}

type refreshFailure struct {
	PlaylistID string `json:"playlist_id"`
	Error      string `json:"error"`
}

type refreshResponse struct {
	Total     int              `json:"total"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Errors    []refreshFailure `json:"errors"`
}

// canonicalProfile normalizes a profile URL so cache entries share one key.
func canonicalProfile(raw string) (string, error) {
	id, err := services.ParseProfileURL(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	return services.ProfileURL(id), nil
}

// listPlaylists returns the Anghami playlists linked from a profile.
//
// Cached listings are served unless refresh=true; a miss fetches the profile page and fills the cache.
func (s *Server) listPlaylists(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	raw := q.Get("profile_url")
	if raw == "" {
		s.respondErr(w, r, fmt.Errorf("%w: profile_url query parameter", shared.ErrMissingArgument))
		return
	}
	profileURL, err := canonicalProfile(raw)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	refresh, _ := strconv.ParseBool(q.Get("refresh"))

	if s.playlists != nil && !refresh {
		cached, err := s.playlists.List(map[string]any{"profile_url": profileURL, "source": models.SourceAnghami})
		if err != nil {
			s.respondErr(w, r, err)
			return
		}
		if len(cached) > 0 {
			out := make([]models.PlaylistRecord, 0, len(cached))
			for _, p := range cached {
				out = append(out, p.Record())
			}
			writeJSON(w, http.StatusOK, out)
			return
		}
	}

	if s.extractor == nil {
		s.respondErr(w, r, fmt.Errorf("%w: Anghami extractor is not configured", shared.ErrServiceUnavailable))
		return
	}
	records, err := s.extractor.GetPlaylists(r.Context(), profileURL)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	if s.playlists != nil {
		for _, rec := range records {
			if _, err := s.playlists.Upsert(profileURL, rec); err != nil {
				s.logger.Warn("failed to cache playlist", "playlist", rec.ID, "error", err)
			}
		}
	}
	if records == nil {
		records = []models.PlaylistRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) playlistDetails(w http.ResponseWriter, r *http.Request) {
	if s.extractor == nil {
		s.respondErr(w, r, fmt.Errorf("%w: Anghami extractor is not configured", shared.ErrServiceUnavailable))
		return
	}

	pl, err := s.extractor.GetPlaylist(r.Context(), chi.URLParam(r, "playlistID"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pl)
}

// refreshPlaylists extracts playlists concurrently and refreshes their cached metadata and track counts.
// Without playlist_ids every playlist on the profile is refreshed.
func (s *Server) refreshPlaylists(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := s.decode(r, &req); err != nil {
		s.respondErr(w, r, err)
		return
	}
	if s.extractor == nil {
		s.respondErr(w, r, fmt.Errorf("%w: Anghami extractor is not configured", shared.ErrServiceUnavailable))
		return
	}

	profileURL, err := canonicalProfile(req.ProfileURL)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	ids := req.PlaylistIDs
	if len(ids) == 0 {
		records, err := s.extractor.GetPlaylists(r.Context(), profileURL)
		if err != nil {
			s.respondErr(w, r, err)
			return
		}
		for _, rec := range records {
			ids = append(ids, rec.ID)
		}
	}

	opts := s.prefetch
	opts.ProfileURL = profileURL

	summary, err := s.orchestrator.Prefetch(r.Context(), nil, s.playlists, ids, opts)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}

	resp := refreshResponse{
		Total:     summary.TotalPlaylists,
		Succeeded: summary.Succeeded,
		Failed:    summary.Failed,
		Errors:    []refreshFailure{},
	}
	for _, res := range summary.Results {
		if res.Error != nil {
			resp.Errors = append(resp.Errors, refreshFailure{PlaylistID: res.PlaylistID, Error: res.Error.Error()})
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
