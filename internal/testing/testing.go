// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/ang2spot/internal/models"
	"github.com/desertthunder/ang2spot/internal/shared"
)

// MockExtractor is an in-memory Anghami double. Only profiles listed in Profiles validate.
type MockExtractor struct {
	Profiles  map[string]models.ProfileData
	Listings  map[string][]models.PlaylistRecord
	Playlists map[string]*models.SourcePlaylist

	mu    sync.Mutex
	calls []string
}

func (m *MockExtractor) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

// Calls returns the operations performed so far, e.g. "playlist:p1".
func (m *MockExtractor) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockExtractor) ValidateProfile(ctx context.Context, profileURL string) (*models.ProfileData, error) {
	m.record("profile:" + profileURL)
	if p, ok := m.Profiles[profileURL]; ok {
		p.ProfileURL, p.IsValid = profileURL, true
		return &p, nil
	}
	return &models.ProfileData{ProfileURL: profileURL, ErrorMessage: "Profile not found"}, nil
}

func (m *MockExtractor) GetPlaylists(ctx context.Context, profileURL string) ([]models.PlaylistRecord, error) {
	m.record("playlists:" + profileURL)
	listing, ok := m.Listings[profileURL]
	if !ok {
		return nil, fmt.Errorf("%w: no playlists for %s", shared.ErrExtraction, profileURL)
	}
	return append([]models.PlaylistRecord(nil), listing...), nil
}

func (m *MockExtractor) GetPlaylist(ctx context.Context, playlistID string) (*models.SourcePlaylist, error) {
	m.record("playlist:" + playlistID)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pl, ok := m.Playlists[playlistID]
	if !ok {
		return nil, fmt.Errorf("%w: playlist %s", shared.ErrNotFound, playlistID)
	}
	cp := *pl
	cp.Tracks = append([]models.SourceTrack(nil), pl.Tracks...)
	return &cp, nil
}

// MockDestination is an in-memory Spotify double. Catalog is keyed by search query.
type MockDestination struct {
	Catalog map[string][]models.DestinationTrack

	mu      sync.Mutex
	created []models.PlaylistRecord
	added   map[string][]string
}

func (m *MockDestination) SearchTrack(ctx context.Context, query string, limit int) ([]models.DestinationTrack, error) {
	results := m.Catalog[query]
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (m *MockDestination) CreatePlaylist(ctx context.Context, name, description string, public bool) (*models.PlaylistRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := fmt.Sprintf("sp%d", len(m.created)+1)
	rec := models.PlaylistRecord{
		ID:          id,
		Name:        name,
		Source:      models.SourceSpotify,
		Description: description,
		URL:         "https://open.spotify.com/playlist/" + id,
		IsOwned:     true,
	}
	m.created = append(m.created, rec)
	return &rec, nil
}

func (m *MockDestination) AddTracks(ctx context.Context, playlistID string, uris []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.added == nil {
		m.added = make(map[string][]string)
	}
	m.added[playlistID] = append(m.added[playlistID], uris...)
	return len(uris), nil
}

// Created returns the playlists created so far.
func (m *MockDestination) Created() []models.PlaylistRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.PlaylistRecord(nil), m.created...)
}

// Added returns the track URIs added to playlistID.
func (m *MockDestination) Added(playlistID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.added[playlistID]...)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
