package models

import (
	"fmt"
	"time"
)

// User owns a Spotify application used to create playlists.
//
// The client secret and OAuth tokens are only ever held as vault ciphertext.
type User struct {
	entity
	displayName           string
	spotifyClientID       string
	encryptedSecret       string
	encryptedAccessToken  string
	encryptedRefreshToken string
	tokenExpiresAt        *time.Time
	spotifyVerified       bool
	lastUsed              *time.Time
}

// NewUser creates a user for the given Spotify client id.
func NewUser(sequence int, displayName, spotifyClientID string) *User {
	return &User{entity: newEntity(sequence), displayName: displayName, spotifyClientID: spotifyClientID}
}

func (u *User) DisplayName() string { return u.displayName }
func (u *User) SpotifyClientID() string { return u.spotifyClientID }
func (u *User) EncryptedSecret() string { return u.encryptedSecret }
func (u *User) EncryptedAccessToken() string { return u.encryptedAccessToken }
func (u *User) EncryptedRefreshToken() string { return u.encryptedRefreshToken }
func (u *User) TokenExpiresAt() *time.Time { return u.tokenExpiresAt }
func (u *User) SpotifyVerified() bool { return u.spotifyVerified }
func (u *User) LastUsed() *time.Time { return u.lastUsed }

// HasTokens reports whether the user completed the Spotify consent flow.
func (u *User) HasTokens() bool { return u.encryptedRefreshToken != "" }

func (u *User) SetDisplayName(name string) { u.displayName = name }
func (u *User) SetSpotifyClientID(id string) { u.spotifyClientID = id }
func (u *User) SetEncryptedSecret(ct string) { u.encryptedSecret = ct }
func (u *User) SetSpotifyVerified(verified bool) { u.spotifyVerified = verified }
func (u *User) SetLastUsed(t *time.Time) { u.lastUsed = t }
func (u *User) SetTokenExpiresAt(t *time.Time) { u.tokenExpiresAt = t }

// SetEncryptedTokens stores the access and refresh token ciphertext along with the access token expiry.
func (u *User) SetEncryptedTokens(access, refresh string, expiresAt *time.Time) {
	u.encryptedAccessToken = access
	u.encryptedRefreshToken = refresh
	u.tokenExpiresAt = expiresAt
}

// Validate checks required fields.
func (u *User) Validate() error {
	if u.spotifyClientID == "" {
		return fmt.Errorf("spotify client id is required")
	}
	if len(u.displayName) > 100 {
		return fmt.Errorf("display name must be at most 100 characters")
	}
	return nil
}
