// Spotify Web API client
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ang2spot/internal/models"
	"github.com/desertthunder/ang2spot/internal/shared"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// MaxBatchSize is the most track URIs Spotify accepts per add-items call.
	MaxBatchSize = 100
	// DefaultSearchLimit is the number of candidates requested per search.
	DefaultSearchLimit = 10

	maxDescriptionLength = 300
	maxRetryAfter        = 30 * time.Second
	breakerName          = "spotify-api"
)

// errUpstream marks failures that count against the circuit breaker.
var errUpstream = errors.New("upstream failure")

// SpotifyScopes are requested during authorization.
var SpotifyScopes = []string{
	"playlist-modify-public",
	"playlist-modify-private",
	"playlist-read-private",
	"playlist-read-collaborative",
	"user-read-private",
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Product     string         `json:"product"` // premium, free, etc.
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	URI        string          `json:"uri"`
}

// SpotifyArtist represents a simplified Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a simplified Spotify album.
type SpotifyAlbum struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Images []SpotifyImage `json:"images"`
	URI    string         `json:"uri"`
}

type Owner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type simplePlaylistTrack struct {
	Total int `json:"total"`
}

// SpotifySimplePlaylist represents a simplified playlist object (used in lists and on create).
type SpotifySimplePlaylist struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Description  string              `json:"description"`
	Owner        Owner               `json:"owner"`
	Public       bool                `json:"public"`
	Tracks       simplePlaylistTrack `json:"tracks"`
	Images       []SpotifyImage      `json:"images"`
	URI          string              `json:"uri"`
	ExternalURLs externalURLs        `json:"external_urls"`
}

// SpotifyPaginatedPlaylists represents a paginated response of playlists.
type SpotifyPaginatedPlaylists struct {
	Items  []SpotifySimplePlaylist `json:"items"`
	Total  int                     `json:"total"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
	Next   *string                 `json:"next"`
}

type searchResponse struct {
	Tracks struct {
		Items []SpotifyTrack `json:"items"`
	} `json:"tracks"`
}

type snapshotResponse struct {
	SnapshotID string `json:"snapshot_id"`
}

type apiErrorBody struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// rateLimitError is returned for a 429 so the caller can honour Retry-After once.
type rateLimitError struct {
	wait time.Duration
}

func (e *rateLimitError) Error() string {
	return fmt.Sprintf("%v: retry after %s", shared.ErrRateLimited, e.wait)
}

// Unwrap also reports errUpstream so that 429s count against the circuit breaker.
func (e *rateLimitError) Unwrap() []error { return []error{shared.ErrRateLimited, errUpstream} }

// SpotifyOption configures a [SpotifyService].
type SpotifyOption func(*SpotifyService)

// WithSpotifyBaseURL points API calls at another host.
func WithSpotifyBaseURL(baseURL string) SpotifyOption {
	return func(s *SpotifyService) { s.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithSpotifyEndpoint overrides the OAuth2 endpoints.
func WithSpotifyEndpoint(ep oauth2.Endpoint) SpotifyOption {
	return func(s *SpotifyService) { s.config.Endpoint = ep }
}

// WithSpotifyHTTPClient sets the client used for token exchange and as the base transport for API calls.
func WithSpotifyHTTPClient(c *http.Client) SpotifyOption {
	return func(s *SpotifyService) { s.baseClient = c }
}

// WithSpotifyLogger sets the logger.
func WithSpotifyLogger(l *log.Logger) SpotifyOption {
	return func(s *SpotifyService) { s.logger = shared.WithLogger(l, "service", "spotify") }
}

// WithSpotifyRateLimit paces API calls. A non-positive limit disables pacing.
func WithSpotifyRateLimit(perSecond float64, burst int) SpotifyOption {
	return func(s *SpotifyService) {
		if perSecond <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), max(1, burst))
	}
}

// WithBreakerThreshold sets how many consecutive upstream failures open the circuit.
func WithBreakerThreshold(n uint32) SpotifyOption {
	return func(s *SpotifyService) {
		if n > 0 {
			s.breakerThreshold = n
		}
	}
}

// SpotifyService is a Spotify Web API client authenticated with [oauth2].
//
// Responses are mapped onto the shared error taxonomy: 401 is [shared.ErrAuthentication], 404 is
// [shared.ErrNotFound], a 429 is retried once after Retry-After before surfacing [shared.ErrRateLimited],
// and 5xx or transport failures are [shared.ErrAPIRequest]. Repeated upstream failures, 429s included, open
// a circuit breaker, after which calls fail fast with [shared.ErrServiceUnavailable].
type SpotifyService struct {
	config           *oauth2.Config
	baseURL          string
	baseClient       *http.Client
	limiter          *rate.Limiter
	logger           *log.Logger
	breakerThreshold uint32
	breaker          *gobreaker.CircuitBreaker[struct{}]

	mu             sync.RWMutex
	token          *oauth2.Token
	httpClient     *http.Client
	userID         string
	onTokenRefresh func(*oauth2.Token)
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
//
// Recognised keys: client_id, client_secret (required) and redirect_uri.
func NewSpotifyService(credentials map[string]string, opts ...SpotifyOption) (*SpotifyService, error) {
	clientID := credentials["client_id"]
	if clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret := credentials["client_secret"]
	if clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI := credentials["redirect_uri"]
	if redirectURI == "" {
		redirectURI = "http://127.0.0.1:8888/callback"
	}

	s := &SpotifyService{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       SpotifyScopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   spotifyAuthURL,
				TokenURL:  spotifyTokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		baseURL:          spotifyBaseURL,
		baseClient:       &http.Client{Timeout: 30 * time.Second},
		limiter:          rate.NewLimiter(rate.Limit(10), 5),
		logger:           shared.WithLogger(shared.NewLogger(nil), "service", "spotify"),
		breakerThreshold: 5,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.breaker = s.newBreaker()
	return s, nil
}

func (s *SpotifyService) newBreaker() *gobreaker.CircuitBreaker[struct{}] {
	threshold := s.breakerThreshold
	return gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, errUpstream)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// Authenticate installs a token for API calls.
//
// Expects either "access_token" (with optional "refresh_token" and RFC 3339 "expires_at") or an "auth_code"
// to exchange.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if accessToken := credentials["access_token"]; accessToken != "" {
		token := &oauth2.Token{
			AccessToken:  accessToken,
			RefreshToken: credentials["refresh_token"],
			TokenType:    "Bearer",
		}
		if exp := credentials["expires_at"]; exp != "" {
			t, err := time.Parse(time.RFC3339, exp)
			if err != nil {
				return fmt.Errorf("%w: expires_at: %v", shared.ErrInvalidArgument, err)
			}
			token.Expiry = t
		}
		s.UseToken(ctx, token)
		return nil
	}

	if authCode := credentials["auth_code"]; authCode != "" {
		_, err := s.ExchangeCodeForTokens(ctx, authCode)
		return err
	}

	return fmt.Errorf("%w: missing access_token or auth_code", shared.ErrMissingCredentials)
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// ExchangeCodeForTokens trades an authorization code for tokens and starts using them.
func (s *SpotifyService) ExchangeCodeForTokens(ctx context.Context, code string) (*oauth2.Token, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: authorization code", shared.ErrMissingArgument)
	}

	token, err := s.config.Exchange(s.oauthContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to exchange auth code: %v", shared.ErrAuthentication, err)
	}

	s.UseToken(ctx, token)
	return token, nil
}

// RefreshToken forces a refresh with the stored refresh token and notifies the refresh callback.
func (s *SpotifyService) RefreshToken(ctx context.Context) (*oauth2.Token, error) {
	current := s.Token()
	if current == nil {
		return nil, shared.ErrNotAuthenticated
	}
	if current.RefreshToken == "" {
		return nil, shared.ErrNoRefreshToken
	}

	expired := &oauth2.Token{RefreshToken: current.RefreshToken, Expiry: time.Unix(1, 0)}
	token, err := s.config.TokenSource(s.oauthContext(ctx), expired).Token()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to refresh token: %v", shared.ErrAuthentication, err)
	}
	if token.RefreshToken == "" {
		token.RefreshToken = current.RefreshToken
	}

	s.UseToken(ctx, token)
	s.tokenRefreshed(token)
	return token, nil
}

// UseToken installs token. Expired tokens with a refresh token are refreshed transparently on the next call.
func (s *SpotifyService) UseToken(ctx context.Context, token *oauth2.Token) {
	octx := s.oauthContext(context.WithoutCancel(ctx))
	source := &refreshableTokenSource{
		source:   s.config.TokenSource(octx, token),
		callback: s.tokenRefreshed,
		last:     token.AccessToken,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.httpClient = oauth2.NewClient(octx, source)
}

// Token returns the token currently in use, or nil.
func (s *SpotifyService) Token() *oauth2.Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// SetTokenRefreshCallback registers fn to receive tokens obtained by refresh so they can be persisted.
func (s *SpotifyService) SetTokenRefreshCallback(fn func(*oauth2.Token)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTokenRefresh = fn
}

func (s *SpotifyService) tokenRefreshed(token *oauth2.Token) {
	s.mu.Lock()
	if s.token != nil && token.RefreshToken == "" {
		token.RefreshToken = s.token.RefreshToken
	}
	s.token = token
	fn := s.onTokenRefresh
	s.mu.Unlock()

	s.logger.Debug("access token refreshed", "expires_at", token.Expiry)
	if fn != nil {
		fn(token)
	}
}

func (s *SpotifyService) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.baseClient)
}

// refreshableTokenSource reports new access tokens from source to callback.
type refreshableTokenSource struct {
	source   oauth2.TokenSource
	callback func(*oauth2.Token)

	mu   sync.Mutex
	last string
}

func (r *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := r.source.Token()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	changed := token.AccessToken != r.last
	r.last = token.AccessToken
	r.mu.Unlock()

	if changed && r.callback != nil {
		r.notify(token)
	}
	return token, nil
}

func (r *refreshableTokenSource) notify(token *oauth2.Token) {
	defer func() { _ = recover() }()
	r.callback(token)
}

// doRequest performs an authenticated request, retrying a single time after a 429.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint string, body any, result any) error {
	s.mu.RLock()
	client := s.httpClient
	s.mu.RUnlock()
	if client == nil {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	var limited *rateLimitError
	for attempt := 0; attempt < 2; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}

		err := s.send(ctx, client, method, endpoint, payload, result)
		if !errors.As(err, &limited) {
			return err
		}

		s.logger.Warn("rate limited", "endpoint", endpoint, "retry_after", limited.wait)
		if attempt == 0 {
			timer := time.NewTimer(limited.wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return fmt.Errorf("%w: %s %s", shared.ErrRateLimited, method, endpoint)
}

func (s *SpotifyService) send(ctx context.Context, client *http.Client, method, endpoint string, payload []byte, result any) error {
	_, err := s.breaker.Execute(func() (struct{}, error) {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, reader)
		if err != nil {
			return struct{}{}, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := client.Do(req)
		if err != nil {
			return struct{}{}, transportError(ctx, err)
		}
		defer resp.Body.Close()

		if err := statusError(resp, method, endpoint); err != nil {
			return struct{}{}, err
		}

		if result != nil {
			if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
				return struct{}{}, fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
			}
		}
		return struct{}{}, nil
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: spotify API unreachable: %v", shared.ErrServiceUnavailable, err)
	}
	return err
}

func transportError(ctx context.Context, err error) error {
	var retrieve *oauth2.RetrieveError
	switch {
	case errors.As(err, &retrieve):
		return fmt.Errorf("%w: token refresh rejected: %v", shared.ErrAuthentication, err)
	case ctx.Err() != nil:
		return ctx.Err()
	}
	return fmt.Errorf("%w: %w: %v", shared.ErrAPIRequest, errUpstream, err)
}

func statusError(resp *http.Response, method, endpoint string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var body apiErrorBody
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body)
	msg := body.Error.Message
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s (%s %s)", shared.ErrAuthentication, msg, method, endpoint)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s (%s %s)", shared.ErrNotFound, msg, method, endpoint)
	case resp.StatusCode == http.StatusTooManyRequests:
		return &rateLimitError{wait: retryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %w: status %d: %s", shared.ErrAPIRequest, errUpstream, resp.StatusCode, msg)
	}
	return fmt.Errorf("%w: status %d: %s (%s %s)", shared.ErrAPIRequest, resp.StatusCode, msg, method, endpoint)
}

// retryAfter parses a Retry-After header in seconds, defaulting to one second and capped at [maxRetryAfter].
func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return time.Second
	}
	if d := time.Duration(secs) * time.Second; d < maxRetryAfter {
		return d
	}
	return maxRetryAfter
}

// CurrentUser retrieves the authenticated user's profile.
func (s *SpotifyService) CurrentUser(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.userID = user.ID
	s.mu.Unlock()
	return &user, nil
}

func (s *SpotifyService) currentUserID(ctx context.Context) (string, error) {
	s.mu.RLock()
	id := s.userID
	s.mu.RUnlock()
	if id != "" {
		return id, nil
	}

	user, err := s.CurrentUser(ctx)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

// SearchTrack searches the catalog and returns up to limit tracks. A non-positive limit uses [DefaultSearchLimit].
func (s *SpotifyService) SearchTrack(ctx context.Context, query string, limit int) ([]models.DestinationTrack, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: search query", shared.ErrMissingArgument)
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > 50 {
		limit = 50
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "track")
	params.Set("limit", strconv.Itoa(limit))

	var response searchResponse
	if err := s.doRequest(ctx, http.MethodGet, "/search?"+params.Encode(), nil, &response); err != nil {
		return nil, err
	}

	tracks := make([]models.DestinationTrack, 0, len(response.Tracks.Items))
	for _, item := range response.Tracks.Items {
		if item.ID == "" {
			continue
		}
		tracks = append(tracks, item.destination())
	}
	return tracks, nil
}

func (t SpotifyTrack) destination() models.DestinationTrack {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
	}
	uri := t.URI
	if uri == "" {
		uri = "spotify:track:" + t.ID
	}
	return models.DestinationTrack{
		ID:              t.ID,
		URI:             uri,
		Title:           t.Name,
		Artists:         artists,
		Album:           t.Album.Name,
		DurationSeconds: t.DurationMS / 1000,
	}
}

// CreatePlaylist creates an empty playlist for the authenticated user.
//
// Descriptions longer than Spotify's limit are truncated.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, name, description string, public bool) (*models.PlaylistRecord, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: playlist name", shared.ErrMissingArgument)
	}

	userID, err := s.currentUserID(ctx)
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"name":        name,
		"description": truncateRunes(description, maxDescriptionLength),
		"public":      public,
	}

	var created SpotifySimplePlaylist
	endpoint := "/users/" + url.PathEscape(userID) + "/playlists"
	if err := s.doRequest(ctx, http.MethodPost, endpoint, body, &created); err != nil {
		return nil, err
	}

	rec := created.record(userID)
	s.logger.Info("created playlist", "playlist_id", rec.ID, "name", rec.Name)
	return &rec, nil
}

// AddTracks appends uris to a playlist in one add-items call. Callers split larger lists into batches of at
// most [MaxBatchSize].
func (s *SpotifyService) AddTracks(ctx context.Context, playlistID string, uris []string) (int, error) {
	switch {
	case playlistID == "":
		return 0, fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	case len(uris) > MaxBatchSize:
		return 0, fmt.Errorf("%w: %d tracks exceeds the add limit of %d", shared.ErrInvalidInput, len(uris), MaxBatchSize)
	case len(uris) == 0:
		return 0, nil
	}

	var snap snapshotResponse
	endpoint := "/playlists/" + url.PathEscape(playlistID) + "/tracks"
	if err := s.doRequest(ctx, http.MethodPost, endpoint, map[string]any{"uris": uris}, &snap); err != nil {
		return 0, fmt.Errorf("failed to add %d tracks: %w", len(uris), err)
	}
	return len(uris), nil
}

// GetUserPlaylists retrieves all playlists of the authenticated user.
func (s *SpotifyService) GetUserPlaylists(ctx context.Context) ([]models.PlaylistRecord, error) {
	userID, err := s.currentUserID(ctx)
	if err != nil {
		return nil, err
	}

	var all []models.PlaylistRecord
	limit, offset := 50, 0
	for {
		var page SpotifyPaginatedPlaylists
		endpoint := fmt.Sprintf("/me/playlists?limit=%d&offset=%d", limit, offset)
		if err := s.doRequest(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}

		for _, p := range page.Items {
			all = append(all, p.record(userID))
		}

		if page.Next == nil || len(page.Items) == 0 {
			break
		}
		offset += limit
	}
	return all, nil
}

func (p SpotifySimplePlaylist) record(userID string) models.PlaylistRecord {
	rec := models.PlaylistRecord{
		ID:          p.ID,
		Name:        p.Name,
		Source:      models.SourceSpotify,
		Owner:       p.Owner.DisplayName,
		Description: p.Description,
		TrackCount:  p.Tracks.Total,
		IsOwned:     p.Owner.ID == userID,
		IsFollowed:  p.Owner.ID != userID,
		URL:         p.ExternalURLs.Spotify,
	}
	if rec.URL == "" && p.ID != "" {
		rec.URL = "https://open.spotify.com/playlist/" + p.ID
	}
	if len(p.Images) > 0 {
		rec.CoverArtURL = p.Images[0].URL
	}
	return rec
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
