// package services defines the clients ang2spot uses to reach remote music services
//
// Anghami (scraped web player pages), Spotify (Web API)
package services

import (
	"context"

	"github.com/desertthunder/ang2spot/internal/models"
)

// Extractor reads profiles and playlists from the source service.
type Extractor interface {
	// ValidateProfile fetches a profile page and reports whether it is a usable public profile.
	ValidateProfile(ctx context.Context, profileURL string) (*models.ProfileData, error)

	// GetPlaylists lists the playlists linked from a profile page.
	GetPlaylists(ctx context.Context, profileURL string) ([]models.PlaylistRecord, error)

	// GetPlaylist fetches a playlist with its tracks.
	GetPlaylist(ctx context.Context, playlistID string) (*models.SourcePlaylist, error)
}

// Destination is the part of the Spotify API a migration writes to.
type Destination interface {
	// SearchTrack runs a catalog search and returns up to limit tracks.
	SearchTrack(ctx context.Context, query string, limit int) ([]models.DestinationTrack, error)

	// CreatePlaylist creates an empty playlist owned by the authenticated user.
	CreatePlaylist(ctx context.Context, name, description string, public bool) (*models.PlaylistRecord, error)

	// AddTracks appends track URIs to a playlist in batches and returns how many were added.
	AddTracks(ctx context.Context, playlistID string, uris []string) (int, error)
}

var (
	_ Extractor   = (*AnghamiService)(nil)
	_ Destination = (*SpotifyService)(nil)
)
