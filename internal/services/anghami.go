// Anghami web player extraction
//
// Pages are parsed with goquery. Selectors follow the markup served by play.anghami.com.
package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/ang2spot/internal/models"
	"github.com/desertthunder/ang2spot/internal/shared"
)

const (
	createdSection  = "5"
	followedSection = "10"
	fallbackName    = "Anghami User"
)

var (
	profilePathPattern = regexp.MustCompile(`^/profile/([A-Za-z0-9_-]+)/?$`)
	followersPattern   = regexp.MustCompile(`(?i)([\d.,]+\s*[km]?)\s*(?:followers|متابع)`)
	backgroundPattern  = regexp.MustCompile(`background-image:\s*url\(\s*["']?([^"')]+)["']?\s*\)`)
	numberPattern      = regexp.MustCompile(`\d+`)
	genericNames       = []string{"anghami", "most played songs", "followed artists"}
)

// AnghamiService implements [Extractor] by scraping the Anghami web player.
type AnghamiService struct {
	api    *APIService
	logger *log.Logger
}

// NewAnghamiService creates an extractor that fetches pages through api.
func NewAnghamiService(api *APIService, logger *log.Logger) *AnghamiService {
	if api == nil {
		api = NewAnghamiAPI()
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &AnghamiService{api: api, logger: shared.WithLogger(logger, "service", "anghami")}
}

// NewAnghamiAPI creates a page client for the public web player.
func NewAnghamiAPI() *APIService {
	return NewAnghamiAPIWith(anghamiBaseURL, nil)
}

// NewAnghamiAPIWith creates a page client for baseURL that sends the given browser headers.
func NewAnghamiAPIWith(baseURL string, headers *shared.BrowserHeaders) *APIService {
	api := NewAPIService(baseURL, nil)
	api.SetHeaders(headers)
	return api
}

// ParseProfileURL validates an Anghami profile URL and returns the profile id.
func ParseProfileURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: not a URL: %q", shared.ErrInvalidInput, raw)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return "", fmt.Errorf("%w: unsupported scheme %q", shared.ErrInvalidInput, u.Scheme)
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host != "play.anghami.com" && host != "anghami.com" {
		return "", fmt.Errorf("%w: not an Anghami URL: %q", shared.ErrInvalidInput, raw)
	}

	m := profilePathPattern.FindStringSubmatch(u.Path)
	if m == nil {
		return "", fmt.Errorf("%w: expected https://play.anghami.com/profile/<id>, got %q", shared.ErrInvalidInput, raw)
	}
	return m[1], nil
}

// ProfileURL builds the canonical profile URL for id.
func ProfileURL(id string) string {
	return anghamiBaseURL + "/profile/" + id
}

// PlaylistIDFromHref extracts the playlist id from a link such as /playlist/123?ref=x.
func PlaylistIDFromHref(href string) string {
	_, rest, ok := strings.Cut(href, "/playlist/")
	if !ok {
		return ""
	}
	rest, _, _ = strings.Cut(rest, "?")
	rest, _, _ = strings.Cut(rest, "#")
	return strings.Trim(rest, "/")
}

// ValidateProfile fetches the profile page.
//
// Malformed URLs and unknown profiles are reported with IsValid false and an ErrorMessage rather than an error.
// Transport and parsing failures are returned as errors.
func (s *AnghamiService) ValidateProfile(ctx context.Context, profileURL string) (*models.ProfileData, error) {
	data := &models.ProfileData{ProfileURL: strings.TrimSpace(profileURL)}

	id, err := ParseProfileURL(profileURL)
	if err != nil {
		data.ErrorMessage = "Invalid Anghami profile URL. Expected https://play.anghami.com/profile/<id>"
		return data, nil
	}
	data.ProfileID = id
	data.ProfileURL = ProfileURL(id)

	doc, err := s.fetch(ctx, "/profile/"+id)
	if errors.Is(err, shared.ErrNotFound) {
		data.ErrorMessage = "Profile not found"
		return data, nil
	}
	if err != nil {
		return nil, err
	}

	data.DisplayName = profileName(doc)
	data.AvatarURL = profileAvatar(doc)
	data.FollowerCount = profileFollowers(doc)
	data.IsValid = true

	s.logger.Info("validated profile", "profile_id", id, "name", data.DisplayName, "followers", data.FollowerCount)
	return data, nil
}

// GetPlaylists lists created and followed playlists for a profile.
//
// Created playlists come first; a playlist listed in both sections is reported once as owned.
func (s *AnghamiService) GetPlaylists(ctx context.Context, profileURL string) ([]models.PlaylistRecord, error) {
	id, err := ParseProfileURL(profileURL)
	if err != nil {
		return nil, err
	}
	path := "/profile/" + id

	created, err := s.fetch(ctx, path+"?sectionId="+createdSection)
	if err != nil {
		return nil, err
	}
	followed, err := s.fetch(ctx, path+"?sectionId="+followedSection)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	seen := map[string]bool{}
	var playlists []models.PlaylistRecord
	add := func(rec models.PlaylistRecord) {
		if rec.ID == "" || rec.Name == "" || seen[rec.ID] {
			return
		}
		seen[rec.ID] = true
		playlists = append(playlists, rec)
	}

	for _, rec := range createdPlaylists(created) {
		add(rec)
	}
	if followed != nil {
		for _, rec := range followedPlaylists(followed) {
			add(rec)
		}
	}

	// Profiles rendered without sections still link their playlists.
	if len(playlists) == 0 {
		for _, rec := range linkedPlaylists(created) {
			add(rec)
		}
	}

	s.logger.Info("listed playlists", "profile_id", id, "count", len(playlists))
	return playlists, nil
}

// GetPlaylist fetches a playlist page and extracts its metadata and tracks.
//
// A page without track rows is an [shared.ErrExtraction].
func (s *AnghamiService) GetPlaylist(ctx context.Context, playlistID string) (*models.SourcePlaylist, error) {
	playlistID = strings.TrimSpace(playlistID)
	if playlistID == "" {
		return nil, fmt.Errorf("%w: playlist id is required", shared.ErrInvalidInput)
	}

	doc, err := s.fetch(ctx, "/playlist/"+url.PathEscape(playlistID))
	if err != nil {
		return nil, err
	}

	tracks := playlistTracks(doc)
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: no tracks found on playlist %s", shared.ErrExtraction, playlistID)
	}

	rec := models.PlaylistRecord{
		ID:          playlistID,
		Source:      models.SourceAnghami,
		Name:        firstText(doc, "h1", `[class*="playlist-title"]`, `[data-testid="playlist-title"]`),
		Description: firstText(doc, `[class*="info-description"] p`, `[class*="description"]`),
		Owner:       firstText(doc, `a[href*="/profile/"]`, `[class*="creator"]`),
		CoverArtURL: firstAttr(doc, "src", "img.collection-cover-img", `img[class*="collection-cover"]`),
		TrackCount:  playlistTrackCount(doc),
		URL:         anghamiBaseURL + "/playlist/" + playlistID,
	}
	if rec.Name == "" {
		rec.Name = trimSiteSuffix(metaContent(doc, "og:title"))
	}
	if rec.Description == "" {
		rec.Description = metaContent(doc, "og:description", "description")
	}
	if rec.Owner == "" {
		rec.Owner = metaContent(doc, "author")
	}
	if rec.CoverArtURL == "" {
		rec.CoverArtURL = metaContent(doc, "og:image")
	}
	if rec.Name == "" {
		rec.Name = "Anghami Playlist " + playlistID
	}
	if rec.TrackCount < len(tracks) {
		rec.TrackCount = len(tracks)
	}

	s.logger.Debug("extracted playlist", "playlist_id", playlistID, "name", rec.Name, "tracks", len(tracks))
	return &models.SourcePlaylist{PlaylistRecord: rec, Tracks: tracks}, nil
}

func (s *AnghamiService) fetch(ctx context.Context, path string) (*goquery.Document, error) {
	resp, err := s.api.Get(ctx, path)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse %s: %v", shared.ErrExtraction, resp.URL, err)
	}
	return doc, nil
}

// playlistTracks reads track rows. Rows without a title are skipped.
func playlistTracks(doc *goquery.Document) []models.SourceTrack {
	var tracks []models.SourceTrack
	doc.Find(".table-row").Each(func(i int, row *goquery.Selection) {
		title := cleanText(row.Find(".cell-title span").First().Text())
		if title == "" {
			return
		}

		var artists []string
		row.Find(".cell-artist a").Each(func(_ int, a *goquery.Selection) {
			if name := cleanText(a.Text()); name != "" {
				artists = append(artists, name)
			}
		})
		if len(artists) == 0 {
			for _, name := range strings.Split(row.Find(".cell-artist").First().Text(), ",") {
				if name = cleanText(name); name != "" {
					artists = append(artists, name)
				}
			}
		}

		href, _ := row.Attr("href")
		tracks = append(tracks, models.SourceTrack{
			ID:              songIDFromHref(href),
			Title:           title,
			Artists:         artists,
			Album:           cleanText(row.Find(".cell-album a").First().Text()),
			DurationSeconds: parseDuration(cleanText(row.Find(".cell-duration").First().Text())),
		})
	})
	return tracks
}

func createdPlaylists(doc *goquery.Document) []models.PlaylistRecord {
	var out []models.PlaylistRecord
	doc.Find(`a.table-row[href*="/playlist/"]`).Each(func(_ int, row *goquery.Selection) {
		href, _ := row.Attr("href")
		style, _ := row.Find(".cell-coverart .list-item-image").Attr("style")
		out = append(out, models.PlaylistRecord{
			ID:          PlaylistIDFromHref(href),
			Name:        cleanText(row.Find(".cell-title span").First().Text()),
			Source:      models.SourceAnghami,
			Description: cleanText(row.Find(".cell .cell-type-text.no-text-transform").First().Text()),
			CoverArtURL: backgroundURL(style),
			IsOwned:     true,
			URL:         absoluteURL(href),
		})
	})
	return out
}

func followedPlaylists(doc *goquery.Document) []models.PlaylistRecord {
	var out []models.PlaylistRecord
	doc.Find(`card-item a.card-item-image-container[href*="/playlist/"]`).Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		card := link.Closest("card-item")
		style, _ := link.Find(".card-item-image").Attr("style")
		out = append(out, models.PlaylistRecord{
			ID:          PlaylistIDFromHref(href),
			Name:        cleanText(card.Find("a.card-item-title").First().Text()),
			Source:      models.SourceAnghami,
			Description: cleanText(card.Find(".card-item-subtitle").First().Text()),
			CoverArtURL: backgroundURL(style),
			IsFollowed:  true,
			URL:         absoluteURL(href),
		})
	})
	return out
}

func linkedPlaylists(doc *goquery.Document) []models.PlaylistRecord {
	var out []models.PlaylistRecord
	doc.Find(`a[href*="/playlist/"]`).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		name := cleanText(a.Find(".cell-title span").First().Text())
		if name == "" {
			name = cleanText(a.Text())
		}
		out = append(out, models.PlaylistRecord{
			ID:     PlaylistIDFromHref(href),
			Name:   name,
			Source: models.SourceAnghami,
			URL:    absoluteURL(href),
		})
	})
	return out
}

func profileName(doc *goquery.Document) string {
	candidates := []string{
		trimSiteSuffix(doc.Find("title").First().Text()),
		trimSiteSuffix(metaContent(doc, "og:title", "twitter:title")),
		firstText(doc, ".profile-info h1", ".profile-header h1", ".user-info h1"),
	}
	for _, name := range candidates {
		if name != "" && !isGenericName(name) {
			return name
		}
	}
	return fallbackName
}

func profileAvatar(doc *goquery.Document) string {
	for _, sel := range []string{
		"img.shadow-borders",
		`img[src*="artwork.anghcdn.co/user/"]`,
		`img[class*="profile"]`,
		`img[class*="avatar"]`,
	} {
		if src, ok := doc.Find(sel).First().Attr("src"); ok && strings.HasPrefix(src, "http") {
			return src
		}
	}
	return ""
}

func profileFollowers(doc *goquery.Document) int {
	texts := []string{doc.Find(".section-details").Text(), doc.Find("body").Text()}
	for _, text := range texts {
		if m := followersPattern.FindStringSubmatch(text); m != nil {
			if n := ParseFollowerCount(m[1]); n > 0 {
				return n
			}
		}
	}
	return 0
}

// ParseFollowerCount parses counts such as "18", "1.3K" or "2.5M". Unparseable input yields 0.
func ParseFollowerCount(s string) int {
	s = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), ",", ""))
	s = strings.ReplaceAll(s, " ", "")
	multiplier := 1.0
	switch {
	case strings.HasSuffix(s, "k"):
		multiplier, s = 1_000, strings.TrimSuffix(s, "k")
	case strings.HasSuffix(s, "m"):
		multiplier, s = 1_000_000, strings.TrimSuffix(s, "m")
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0
	}
	return int(math.Round(f * multiplier))
}

func playlistTrackCount(doc *goquery.Document) int {
	text := firstText(doc, "div.font-weight-bold.value", `[class*="track-count"]`, `[class*="song-count"]`)
	if n := numberPattern.FindString(text); n != "" {
		v, _ := strconv.Atoi(n)
		return v
	}
	return 0
}

// parseDuration converts "m:ss" or "h:mm:ss" into seconds.
func parseDuration(s string) int {
	if s == "" {
		return 0
	}
	total := 0
	for _, part := range strings.Split(s, ":") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			return 0
		}
		total = total*60 + n
	}
	return total
}

func songIDFromHref(href string) string {
	_, rest, ok := strings.Cut(href, "/song/")
	if !ok {
		return ""
	}
	rest, _, _ = strings.Cut(rest, "?")
	return strings.Trim(rest, "/")
}

func firstText(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if text := cleanText(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

func firstAttr(doc *goquery.Document, attr string, selectors ...string) string {
	for _, sel := range selectors {
		if v, ok := doc.Find(sel).First().Attr(attr); ok && v != "" {
			return v
		}
	}
	return ""
}

// metaContent returns the first non-empty content of a meta tag matched by property or name.
func metaContent(doc *goquery.Document, keys ...string) string {
	for _, key := range keys {
		for _, attr := range []string{"property", "name"} {
			if v, ok := doc.Find(fmt.Sprintf(`meta[%s=%q]`, attr, key)).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
	}
	return ""
}

func trimSiteSuffix(title string) string {
	for _, sep := range []string{" | Anghami", " - Anghami"} {
		if before, _, ok := strings.Cut(title, sep); ok {
			return cleanText(before)
		}
	}
	return cleanText(title)
}

func isGenericName(name string) bool {
	lower := strings.ToLower(name)
	for _, g := range genericNames {
		if lower == g {
			return true
		}
	}
	return false
}

func backgroundURL(style string) string {
	if m := backgroundPattern.FindStringSubmatch(style); m != nil {
		return m[1]
	}
	return ""
}

func absoluteURL(href string) string {
	if strings.HasPrefix(href, "/") {
		return anghamiBaseURL + href
	}
	return href
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
