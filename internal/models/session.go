package models

import (
	"fmt"
	"time"
)

// Status is the state of a migration session.
//
//	idle → extracting → matching → creating → completed
//
// error is reachable from any non-terminal state; stopped is reached through a stop request.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusExtracting Status = "extracting"
	StatusMatching   Status = "matching"
	StatusCreating   Status = "creating"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
	StatusStopped    Status = "stopped"
)

// IsTerminal reports whether no further transitions can happen.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusStopped
}

// ParseStatus validates a status name.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusIdle, StatusExtracting, StatusMatching, StatusCreating, StatusCompleted, StatusError, StatusStopped:
		return st, nil
	}
	return "", fmt.Errorf("unknown session status: %q", s)
}

// MissingTrack is a source track that produced no acceptable match.
type MissingTrack struct {
	Playlist  string      `json:"playlist"`
	Track     SourceTrack `json:"track"`
	BestScore float64     `json:"bestScore"`
	Query     string      `json:"query,omitempty"`
	Reason    string      `json:"reason"`
}

// CreatedPlaylist links a source playlist to the Spotify playlist created for it.
type CreatedPlaylist struct {
	SourceID    string `json:"sourceId"`
	Name        string `json:"name"`
	SpotifyID   string `json:"spotifyId"`
	URL         string `json:"url,omitempty"`
	TracksAdded int    `json:"tracksAdded"`
}

// MigrationSession is the observable state of one migration run.
//
// Only the orchestrator goroutine that owns a session mutates it; everyone else works on a [MigrationSession.Clone].
type MigrationSession struct {
	SessionID          string            `json:"sessionId"`
	UserID             string            `json:"userId,omitempty"`
	Status             Status            `json:"status"`
	Progress           int               `json:"progress"`
	CurrentPlaylist    string            `json:"currentPlaylist"`
	TotalPlaylists     int               `json:"totalPlaylists"`
	CompletedPlaylists int               `json:"completedPlaylists"`
	TotalTracks        int               `json:"totalTracks"`
	MatchedTracks      int               `json:"matchedTracks"`
	CreatedPlaylists   int               `json:"createdPlaylists"`
	Errors             []string          `json:"errors"`
	Message            string            `json:"message"`
	MissingTracks      []MissingTrack    `json:"missingTracks"`
	Playlists          []CreatedPlaylist `json:"playlists"`
	StartedAt          time.Time         `json:"startedAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
}

// NewMigrationSession creates an idle session for the given number of playlists.
func NewMigrationSession(sessionID, userID string, totalPlaylists int) *MigrationSession {
	now := time.Now().UTC()
	return &MigrationSession{
		SessionID:      sessionID,
		UserID:         userID,
		Status:         StatusIdle,
		TotalPlaylists: totalPlaylists,
		Errors:         []string{},
		MissingTracks:  []MissingTrack{},
		Playlists:      []CreatedPlaylist{},
		StartedAt:      now,
		UpdatedAt:      now,
	}
}

// Clone returns a deep copy.
func (s *MigrationSession) Clone() *MigrationSession {
	if s == nil {
		return nil
	}
	c := *s
	c.Errors = append([]string{}, s.Errors...)
	c.Playlists = append([]CreatedPlaylist{}, s.Playlists...)
	c.MissingTracks = make([]MissingTrack, len(s.MissingTracks))
	for i, m := range s.MissingTracks {
		m.Track.Artists = append([]string(nil), m.Track.Artists...)
		c.MissingTracks[i] = m
	}
	return &c
}

// MissingCount is the number of tracks that were searched but not matched.
func (s *MigrationSession) MissingCount() int { return len(s.MissingTracks) }

// Validate checks the count invariants that hold for every published snapshot.
func (s *MigrationSession) Validate() error {
	switch {
	case s.SessionID == "":
		return fmt.Errorf("session id is required")
	case s.Progress < 0 || s.Progress > 100:
		return fmt.Errorf("progress %d out of range", s.Progress)
	case s.CompletedPlaylists > s.TotalPlaylists:
		return fmt.Errorf("completed playlists %d exceeds total %d", s.CompletedPlaylists, s.TotalPlaylists)
	case s.MatchedTracks > s.TotalTracks:
		return fmt.Errorf("matched tracks %d exceeds total %d", s.MatchedTracks, s.TotalTracks)
	case s.CreatedPlaylists > s.TotalPlaylists:
		return fmt.Errorf("created playlists %d exceeds total %d", s.CreatedPlaylists, s.TotalPlaylists)
	}
	if _, err := ParseStatus(string(s.Status)); err != nil {
		return err
	}
	return nil
}
