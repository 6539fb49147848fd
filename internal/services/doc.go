// Package services implements the clients for the two music services a migration spans.
//
// # Anghami
//
// [AnghamiService] implements [Extractor]. Anghami has no public API, so profile and playlist pages are
// fetched through [APIService] (optionally carrying browser headers imported from a cURL command) and
// parsed with goquery:
//   - Profiles: display name from the page title, avatar from the CDN image, follower count from the stats text
//   - Profile playlists: created rows (sectionId=5) and followed cards (sectionId=10)
//   - Playlists: metadata plus `.table-row` track rows (title, artists, album, duration)
//
// # Spotify
//
// [SpotifyService] implements [Destination] on the Web API using OAuth2 with automatic token refresh.
// Refreshed tokens are reported through [SpotifyService.SetTokenRefreshCallback] so they can be re-sealed
// and persisted.
//
// # Error Handling
//
// Services wrap sentinel errors from the shared package:
//   - [shared.ErrNotAuthenticated] : no token installed
//   - [shared.ErrAuthentication] : 401, rejected code exchange or refresh
//   - [shared.ErrRateLimited] : 429 after the single Retry-After retry
//   - [shared.ErrNotFound] : 404 from either service
//   - [shared.ErrAPIRequest] : other Spotify failures
//   - [shared.ErrServiceUnavailable] : the Spotify circuit breaker is open
//   - [shared.ErrExtraction] : Anghami page could not be fetched or had no tracks
package services
