package models

import (
	"testing"
	"time"
)

func TestMigrationSession(t *testing.T) {
	t.Run("Clone is deep", func(t *testing.T) {
		s := NewMigrationSession("s1", "u1", 2)
		s.Errors = append(s.Errors, "first")
		s.MissingTracks = append(s.MissingTracks, MissingTrack{Track: SourceTrack{Title: "a", Artists: []string{"x"}}})

		c := s.Clone()
		c.Errors[0] = "changed"
		c.MissingTracks[0].Track.Artists[0] = "y"
		c.Progress = 50

		if s.Errors[0] != "first" {
			t.Error("errors slice shared with clone")
		}
		if s.MissingTracks[0].Track.Artists[0] != "x" {
			t.Error("missing track artists shared with clone")
		}
		if s.Progress != 0 {
			t.Error("scalar field shared with clone")
		}
	})

	t.Run("Validate", func(t *testing.T) {
		tc := []struct {
			name    string
			mutate  func(*MigrationSession)
			wantErr bool
		}{
			{"fresh session", func(*MigrationSession) {}, false},
			{"completed exceeds total", func(s *MigrationSession) { s.CompletedPlaylists = 3 }, true},
			{"matched exceeds total", func(s *MigrationSession) { s.MatchedTracks = 1 }, true},
			{"progress above 100", func(s *MigrationSession) { s.Progress = 101 }, true},
			{"unknown status", func(s *MigrationSession) { s.Status = "paused" }, true},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				s := NewMigrationSession("s1", "", 2)
				tt.mutate(s)
				if err := s.Validate(); (err != nil) != tt.wantErr {
					t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
				}
			})
		}
	})

	t.Run("terminal statuses", func(t *testing.T) {
		for _, s := range []Status{StatusCompleted, StatusError, StatusStopped} {
			if !s.IsTerminal() {
				t.Errorf("%s should be terminal", s)
			}
		}
		for _, s := range []Status{StatusIdle, StatusExtracting, StatusMatching, StatusCreating} {
			if s.IsTerminal() {
				t.Errorf("%s should not be terminal", s)
			}
		}
	})
}

func TestMigrationRecord(t *testing.T) {
	s := NewMigrationSession("s1", "u1", 1)
	if err := NewMigrationRecord(0, s).Validate(); err == nil {
		t.Error("non-terminal session should not be archivable")
	}

	s.Status = StatusCompleted
	s.UpdatedAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r := NewMigrationRecord(0, s)
	if err := r.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.FinishedAt().Equal(s.UpdatedAt) {
		t.Errorf("expected finished at %v, got %v", s.UpdatedAt, r.FinishedAt())
	}

	s.Status = StatusError
	if r.Status() != StatusCompleted {
		t.Error("record should hold its own copy of the snapshot")
	}
}

func TestSourceTrack(t *testing.T) {
	tr := SourceTrack{Title: "Song", Artists: []string{"A", "B"}}
	if tr.PrimaryArtist() != "A" {
		t.Errorf("expected primary artist A, got %s", tr.PrimaryArtist())
	}
	if tr.String() != "A, B - Song" {
		t.Errorf("unexpected String(): %s", tr.String())
	}
	if (SourceTrack{Title: "Solo"}).PrimaryArtist() != "" {
		t.Error("expected empty primary artist")
	}

	m := MatchCandidate{SpotifyTrackID: "abc"}
	if m.URI() != "spotify:track:abc" {
		t.Errorf("unexpected uri %s", m.URI())
	}
}

func TestEntities(t *testing.T) {
	if err := NewUser(1, "me", "").Validate(); err == nil {
		t.Error("user without client id should be invalid")
	}
	if err := NewPersistedPlaylist(1, "", PlaylistRecord{ID: "1", Name: "x", Source: "deezer"}).Validate(); err == nil {
		t.Error("playlist with unknown source should be invalid")
	}

	p := NewPersistedPlaylist(1, "", PlaylistRecord{ID: "1", Name: "x", Source: SourceAnghami})
	p.SetRecord(PlaylistRecord{ID: "other", Name: "renamed", TrackCount: 4})
	if p.SourceID() != "1" || p.Source() != SourceAnghami || p.Name() != "renamed" {
		t.Errorf("SetRecord should keep identity: %+v", p.Record())
	}

	if err := NewProfileEntry(1, ProfileData{}).Validate(); err == nil {
		t.Error("profile entry without url should be invalid")
	}
}
