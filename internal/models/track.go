package models

import (
	"fmt"
	"strings"
)

// SourceTrack is a track read from an Anghami playlist. It is not modified after extraction.
type SourceTrack struct {
	ID              string   `json:"id,omitempty"`
	Title           string   `json:"title"`
	Artists         []string `json:"artists"`
	Album           string   `json:"album,omitempty"`
	DurationSeconds int      `json:"durationSeconds,omitempty"`
}

// PrimaryArtist returns the first credited artist or an empty string.
func (t SourceTrack) PrimaryArtist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0]
}

// ArtistString joins all artists with ", ".
func (t SourceTrack) ArtistString() string {
	return strings.Join(t.Artists, ", ")
}

func (t SourceTrack) String() string {
	if a := t.ArtistString(); a != "" {
		return fmt.Sprintf("%s - %s", a, t.Title)
	}
	return t.Title
}

// DestinationTrack is a Spotify catalog track returned by search.
type DestinationTrack struct {
	ID              string   `json:"id"`
	URI             string   `json:"uri"`
	Title           string   `json:"title"`
	Artists         []string `json:"artists"`
	Album           string   `json:"album,omitempty"`
	DurationSeconds int      `json:"durationSeconds,omitempty"`
}

// PrimaryArtist returns the first credited artist or an empty string.
func (t DestinationTrack) PrimaryArtist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0]
}

// MatchCandidate pairs a source track with the Spotify track chosen for it.
//
// ConfidenceScore is in [0, 1].
type MatchCandidate struct {
	SourceTrack     SourceTrack      `json:"sourceTrack"`
	SpotifyTrackID  string           `json:"spotifyTrackId"`
	Track           DestinationTrack `json:"track"`
	ConfidenceScore float64          `json:"confidenceScore"`
	SearchQueryUsed string           `json:"searchQueryUsed"`
}

// URI returns the spotify:track URI used when adding the match to a playlist.
func (m MatchCandidate) URI() string {
	if m.Track.URI != "" {
		return m.Track.URI
	}
	return "spotify:track:" + m.SpotifyTrackID
}
