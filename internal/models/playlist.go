package models

import (
	"fmt"
	"strings"
)

// Source names the service a playlist was read from.
type Source string

const (
	SourceAnghami Source = "anghami"
	SourceSpotify Source = "spotify"
)

// ParseSource validates a source name.
func ParseSource(s string) (Source, error) {
	switch Source(strings.ToLower(s)) {
	case SourceAnghami:
		return SourceAnghami, nil
	case SourceSpotify:
		return SourceSpotify, nil
	}
	return "", fmt.Errorf("unknown playlist source: %q", s)
}

// PlaylistRecord is playlist metadata as returned by the extractor or the Spotify API.
type PlaylistRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Source      Source `json:"source"`
	Owner       string `json:"owner,omitempty"`
	Description string `json:"description,omitempty"`
	TrackCount  int    `json:"trackCount"`
	IsOwned     bool   `json:"isOwned"`
	IsFollowed  bool   `json:"isFollowed"`
	CoverArtURL string `json:"coverArtUrl,omitempty"`
	URL         string `json:"url,omitempty"`
}

// SourcePlaylist is a playlist with its extracted tracks.
type SourcePlaylist struct {
	PlaylistRecord
	Tracks []SourceTrack `json:"tracks"`
}

// PersistedPlaylist is a cached [PlaylistRecord] belonging to the profile it was listed from.
type PersistedPlaylist struct {
	entity
	profileURL string
	record     PlaylistRecord
}

// NewPersistedPlaylist wraps rec for storage.
func NewPersistedPlaylist(sequence int, profileURL string, rec PlaylistRecord) *PersistedPlaylist {
	return &PersistedPlaylist{entity: newEntity(sequence), profileURL: profileURL, record: rec}
}

func (p *PersistedPlaylist) ProfileURL() string { return p.profileURL }
func (p *PersistedPlaylist) Source() Source { return p.record.Source }
func (p *PersistedPlaylist) SourceID() string { return p.record.ID }
func (p *PersistedPlaylist) Name() string { return p.record.Name }
func (p *PersistedPlaylist) TrackCount() int { return p.record.TrackCount }
func (p *PersistedPlaylist) Record() PlaylistRecord { return p.record }

// SetRecord replaces the cached metadata, keeping source and source id.
func (p *PersistedPlaylist) SetRecord(rec PlaylistRecord) {
	rec.Source, rec.ID = p.record.Source, p.record.ID
	p.record = rec
}

// SetProfileURL records which profile listed the playlist.
func (p *PersistedPlaylist) SetProfileURL(u string) { p.profileURL = u }

// Validate checks required fields.
func (p *PersistedPlaylist) Validate() error {
	if _, err := ParseSource(string(p.record.Source)); err != nil {
		return err
	}
	if p.record.ID == "" {
		return fmt.Errorf("playlist source id is required")
	}
	if p.record.Name == "" {
		return fmt.Errorf("playlist name is required")
	}
	if p.record.TrackCount < 0 {
		return fmt.Errorf("track count must not be negative")
	}
	return nil
}
