package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/ang2spot/internal/matcher"
	"github.com/desertthunder/ang2spot/internal/models"
	"github.com/desertthunder/ang2spot/internal/services"
	"github.com/desertthunder/ang2spot/internal/shared"
	"go.uber.org/goleak"
)

type mockExtractor struct {
	mu        sync.Mutex
	playlists map[string]*models.SourcePlaylist
	errs      map[string]error
	calls     []string
}

func (m *mockExtractor) ValidateProfile(ctx context.Context, profileURL string) (*models.ProfileData, error) {
	return nil, shared.ErrNotImplemented
}

func (m *mockExtractor) GetPlaylists(ctx context.Context, profileURL string) ([]models.PlaylistRecord, error) {
	return nil, shared.ErrNotImplemented
}

func (m *mockExtractor) GetPlaylist(ctx context.Context, playlistID string) (*models.SourcePlaylist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, playlistID)
	if err, ok := m.errs[playlistID]; ok {
		return nil, err
	}
	if pl, ok := m.playlists[playlistID]; ok {
		cp := *pl
		cp.Tracks = append([]models.SourceTrack(nil), pl.Tracks...)
		return &cp, nil
	}
	return nil, fmt.Errorf("%w: playlist %s", shared.ErrNotFound, playlistID)
}

func (m *mockExtractor) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

type mockDestination struct {
	mu           sync.Mutex
	catalog      map[string][]models.DestinationTrack
	searchErr    func(query string) error
	createErr    error
	addErr       error
	created      []string
	descriptions []string
	addSizes     []int
	added        map[string][]string
}

func newMockDestination() *mockDestination {
	return &mockDestination{
		catalog: make(map[string][]models.DestinationTrack),
		added:   make(map[string][]string),
	}
}

func (m *mockDestination) SearchTrack(ctx context.Context, query string, limit int) ([]models.DestinationTrack, error) {
	if m.searchErr != nil {
		if err := m.searchErr(query); err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.catalog[query], nil
}

func (m *mockDestination) CreatePlaylist(ctx context.Context, name, description string, public bool) (*models.PlaylistRecord, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.created = append(m.created, name)
	m.descriptions = append(m.descriptions, description)
	id := fmt.Sprintf("sp%d", len(m.created))
	return &models.PlaylistRecord{
		ID:     id,
		Name:   name,
		Source: models.SourceSpotify,
		URL:    "https://open.spotify.com/playlist/" + id,
	}, nil
}

func (m *mockDestination) AddTracks(ctx context.Context, playlistID string, uris []string) (int, error) {
	if m.addErr != nil {
		return 0, m.addErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.addSizes = append(m.addSizes, len(uris))
	m.added[playlistID] = append(m.added[playlistID], uris...)
	return len(uris), nil
}

// scoredMatcher accepts the candidate with the highest preset score.
type scoredMatcher struct {
	threshold float64
	scores    map[string]float64
}

func (m *scoredMatcher) BuildQuery(src models.SourceTrack) string { return src.Title }

func (m *scoredMatcher) FindBestMatch(src models.SourceTrack, candidates []models.DestinationTrack) (models.MatchCandidate, bool) {
	result := models.MatchCandidate{SourceTrack: src}
	best := -1.0
	for _, c := range candidates {
		if s := m.scores[c.ID]; s > best {
			best = s
			result.Track = c
			result.SpotifyTrackID = c.ID
			result.ConfidenceScore = s
		}
	}
	return result, best >= m.threshold
}

type mockArchive struct {
	mu    sync.Mutex
	snaps []*models.MigrationSession
}

func (m *mockArchive) Archive(snap *models.MigrationSession) (*models.MigrationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps = append(m.snaps, snap.Clone())
	return models.NewMigrationRecord(len(m.snaps), snap), nil
}

type mockCounts map[string]int

func (m mockCounts) TrackCounts(source models.Source, ids []string) (map[string]int, error) {
	return m, nil
}

// recorder captures every published snapshot.
type recorder struct {
	mu    sync.Mutex
	snaps []*models.MigrationSession
}

func (r *recorder) publish(snap *models.MigrationSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, snap)
}

func (r *recorder) Snapshots() []*models.MigrationSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.MigrationSession(nil), r.snaps...)
}

func playlistFixture(id, name string, titles ...string) *models.SourcePlaylist {
	pl := &models.SourcePlaylist{
		PlaylistRecord: models.PlaylistRecord{
			ID:          id,
			Name:        name,
			Source:      models.SourceAnghami,
			Description: "Anghami mix",
			TrackCount:  len(titles),
		},
	}
	for i, title := range titles {
		pl.Tracks = append(pl.Tracks, models.SourceTrack{
			ID:              fmt.Sprintf("%s-%d", id, i),
			Title:           title,
			Artists:         []string{"Amr Diab"},
			DurationSeconds: 200 + i,
		})
	}
	return pl
}

// stockCatalog makes every track of pls findable under the query m builds for it.
func stockCatalog(dest *mockDestination, m TrackMatcher, pls ...*models.SourcePlaylist) {
	for _, pl := range pls {
		for _, tr := range pl.Tracks {
			dest.catalog[m.BuildQuery(tr)] = []models.DestinationTrack{{
				ID:              "sp-" + tr.ID,
				URI:             "spotify:track:sp-" + tr.ID,
				Title:           tr.Title,
				Artists:         tr.Artists,
				DurationSeconds: tr.DurationSeconds,
			}}
		}
	}
}

func destinationOf(d services.Destination) DestinationFactory {
	return func(ctx context.Context, userID string) (services.Destination, error) { return d, nil }
}

func newTestOrchestrator(ex services.Extractor, dest services.Destination, m TrackMatcher, opts ...Option) *Orchestrator {
	opts = append([]Option{WithLogger(shared.NewLogger(io.Discard))}, opts...)
	o := NewOrchestrator(ex, destinationOf(dest), m, opts...)
	o.now = func() time.Time { return time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC) }
	return o
}

func runSession(t *testing.T, o *Orchestrator, ids ...string) (*models.MigrationSession, error) {
	t.Helper()
	snap, err := o.Create("user-1", ids)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	return o.Run(context.Background(), snap.SessionID, ids, nil)
}

func assertSnapshotInvariants(t *testing.T, snaps []*models.MigrationSession) {
	t.Helper()
	if len(snaps) == 0 {
		t.Fatal("expected published snapshots")
	}
	last := 0
	for i, s := range snaps {
		if err := s.Validate(); err != nil {
			t.Errorf("snapshot %d violates invariants: %v", i, err)
		}
		if s.Status != models.StatusError && s.Progress < last {
			t.Errorf("progress decreased from %d to %d at snapshot %d", last, s.Progress, i)
		}
		last = max(last, s.Progress)
	}
}

func TestOrchestrator_Run(t *testing.T) {
	t.Run("all tracks matched", func(t *testing.T) {
		p1 := playlistFixture("p1", "Road Trip", "Tamally Maak", "Nour El Ain", "Habibi Ya Nour El Ain")
		p2 := playlistFixture("p2", "Focus", "Wala Ala Baloh", "Aktar Wahed", "Kol Ma Nqarrab")
		ex := &mockExtractor{playlists: map[string]*models.SourcePlaylist{"p1": p1, "p2": p2}}
		m := matcher.New(matcher.DefaultOptions())
		dest := newMockDestination()
		stockCatalog(dest, m, p1, p2)
		archive := &mockArchive{}

		o := newTestOrchestrator(ex, dest, m, WithArchive(archive))
		rec := &recorder{}
		defer o.Store().Subscribe(rec.publish)()

		final, err := runSession(t, o, "p1", "p2")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if final.Status != models.StatusCompleted {
			t.Errorf("expected completed, got %s (%s)", final.Status, final.Message)
		}
		if final.MatchedTracks != 6 || final.TotalTracks != 6 {
			t.Errorf("expected 6/6 tracks matched, got %d/%d", final.MatchedTracks, final.TotalTracks)
		}
		if final.CreatedPlaylists != 2 || final.CompletedPlaylists != 2 {
			t.Errorf("expected 2 created and completed, got %d and %d", final.CreatedPlaylists, final.CompletedPlaylists)
		}
		if len(final.Errors) != 0 || len(final.MissingTracks) != 0 {
			t.Errorf("expected no errors or missing tracks, got %v %v", final.Errors, final.MissingTracks)
		}
		if final.Progress != 100 {
			t.Errorf("expected progress 100, got %d", final.Progress)
		}
		if final.Message != "Successfully migrated 2 playlists!" {
			t.Errorf("unexpected message %q", final.Message)
		}
		if len(final.Playlists) != 2 || final.Playlists[1].SpotifyID != "sp2" || final.Playlists[1].TracksAdded != 3 {
			t.Errorf("unexpected created playlists %+v", final.Playlists)
		}
		if got := dest.added["sp1"]; len(got) != 3 || got[0] != "spotify:track:sp-p1-0" {
			t.Errorf("unexpected uris added to first playlist: %v", got)
		}

		assertSnapshotInvariants(t, rec.Snapshots())

		if len(archive.snaps) != 1 || archive.snaps[0].Status != models.StatusCompleted {
			t.Errorf("expected the completed session to be archived once, got %d", len(archive.snaps))
		}

		stored, err := o.Store().Get(final.SessionID)
		if err != nil || stored.Status != models.StatusCompleted {
			t.Errorf("expected completed session in store, got %v %v", stored, err)
		}
	})

	t.Run("low confidence track is missing", func(t *testing.T) {
		p1 := playlistFixture("p1", "Road Trip", "One", "Two", "Three")
		ex := &mockExtractor{playlists: map[string]*models.SourcePlaylist{"p1": p1}}
		m := &scoredMatcher{threshold: 0.8, scores: map[string]float64{"sp-p1-0": 0.95, "sp-p1-1": 0.5, "sp-p1-2": 0.9}}
		dest := newMockDestination()
		stockCatalog(dest, m, p1)

		o := newTestOrchestrator(ex, dest, m)
		final, err := runSession(t, o, "p1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if final.Status != models.StatusCompleted {
			t.Fatalf("expected completed, got %s", final.Status)
		}
		if final.MatchedTracks != 2 || final.TotalTracks != 3 {
			t.Errorf("expected 2 of 3 matched, got %d of %d", final.MatchedTracks, final.TotalTracks)
		}
		if len(final.MissingTracks) != 1 {
			t.Fatalf("expected 1 missing track, got %d", len(final.MissingTracks))
		}
		missing := final.MissingTracks[0]
		if missing.Track.Title != "Two" || missing.BestScore != 0.5 || missing.Playlist != "Road Trip" {
			t.Errorf("unexpected missing track %+v", missing)
		}
		if !strings.Contains(missing.Reason, "below threshold") {
			t.Errorf("unexpected reason %q", missing.Reason)
		}
		if final.CreatedPlaylists != 1 {
			t.Errorf("expected playlist to be created, got %d", final.CreatedPlaylists)
		}
		if got := dest.added["sp1"]; len(got) != 2 {
			t.Errorf("expected 2 tracks added, got %v", got)
		}
		if len(final.Errors) != 0 {
			t.Errorf("missing tracks must not be reported as errors, got %v", final.Errors)
		}
	})

	t.Run("rate limited search marks the track missing", func(t *testing.T) {
		p1 := playlistFixture("p1", "First", "One", "Two", "Three")
		p2 := playlistFixture("p2", "Second", "Four", "Five", "Six")
		ex := &mockExtractor{playlists: map[string]*models.SourcePlaylist{"p1": p1, "p2": p2}}
		m := matcher.New(matcher.DefaultOptions())
		dest := newMockDestination()
		stockCatalog(dest, m, p1, p2)
		limited := m.BuildQuery(p1.Tracks[1])
		dest.searchErr = func(query string) error {
			if query == limited {
				return fmt.Errorf("%w: GET /search", shared.ErrRateLimited)
			}
			return nil
		}

		o := newTestOrchestrator(ex, dest, m)
		rec := &recorder{}
		defer o.Store().Subscribe(rec.publish)()

		final, err := runSession(t, o, "p1", "p2")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if final.Status != models.StatusCompleted {
			t.Fatalf("expected completed, got %s (%s)", final.Status, final.Message)
		}
		if final.CreatedPlaylists != 2 || final.CompletedPlaylists != 2 {
			t.Errorf("expected both playlists created, got %d created and %d completed", final.CreatedPlaylists, final.CompletedPlaylists)
		}
		if final.MatchedTracks != 5 || final.TotalTracks != 6 {
			t.Errorf("expected 5 of 6 matched, got %d of %d", final.MatchedTracks, final.TotalTracks)
		}
		if len(final.MissingTracks) != 1 {
			t.Fatalf("expected 1 missing track, got %d", len(final.MissingTracks))
		}
		missing := final.MissingTracks[0]
		if missing.Track.Title != "Two" || missing.Playlist != "First" {
			t.Errorf("unexpected missing track %+v", missing)
		}
		if !strings.HasPrefix(missing.Reason, "search failed: rate limited") {
			t.Errorf("unexpected reason %q", missing.Reason)
		}
		assertSnapshotInvariants(t, rec.Snapshots())
	})

	t.Run("token expires during second playlist", func(t *testing.T) {
		p1 := playlistFixture("p1", "First", "One", "Two", "Three")
		p2 := playlistFixture("p2", "Second", "Four", "Five", "Six")
		ex := &mockExtractor{playlists: map[string]*models.SourcePlaylist{"p1": p1, "p2": p2}}
		m := matcher.New(matcher.DefaultOptions())
		dest := newMockDestination()
		stockCatalog(dest, m, p1, p2)
		expired := m.BuildQuery(p2.Tracks[0])
		dest.searchErr = func(query string) error {
			if query == expired {
				return fmt.Errorf("%w: The access token expired", shared.ErrAuthentication)
			}
			return nil
		}

		o := newTestOrchestrator(ex, dest, m)
		rec := &recorder{}
		defer o.Store().Subscribe(rec.publish)()

		final, err := runSession(t, o, "p1", "p2")
		if !errors.Is(err, shared.ErrAuthentication) {
			t.Fatalf("expected ErrAuthentication, got %v", err)
		}

		if final.Status != models.StatusError {
			t.Errorf("expected error status, got %s", final.Status)
		}
		if !strings.Contains(strings.ToLower(final.Message), "authentication") {
			t.Errorf("expected authentication message, got %q", final.Message)
		}
		if final.CreatedPlaylists != 1 || len(final.Playlists) != 1 || final.Playlists[0].SpotifyID != "sp1" {
			t.Errorf("expected the first playlist to be kept, got %+v", final.Playlists)
		}
		if final.CompletedPlaylists != 1 {
			t.Errorf("expected 1 completed playlist, got %d", final.CompletedPlaylists)
		}
		if len(dest.created) != 1 {
			t.Errorf("expected no second playlist, got %v", dest.created)
		}
		assertSnapshotInvariants(t, rec.Snapshots())
	})

	t.Run("stop after first playlist", func(t *testing.T) {
		p1 := playlistFixture("p1", "First", "One", "Two")
		p2 := playlistFixture("p2", "Second", "Three")
		ex := &mockExtractor{playlists: map[string]*models.SourcePlaylist{"p1": p1, "p2": p2}}
		m := matcher.New(matcher.DefaultOptions())
		dest := newMockDestination()
		stockCatalog(dest, m, p1, p2)

		o := newTestOrchestrator(ex, dest, m)
		snap, err := o.Create("user-1", []string{"p1", "p2"})
		if err != nil {
			t.Fatalf("failed to create session: %v", err)
		}

		defer o.Store().Subscribe(func(s *models.MigrationSession) {
			if s.SessionID == snap.SessionID && s.CompletedPlaylists == 1 && !s.Status.IsTerminal() {
				if err := o.Stop(s.SessionID); err != nil {
					t.Errorf("stop failed: %v", err)
				}
			}
		})()

		final, err := o.Run(context.Background(), snap.SessionID, []string{"p1", "p2"}, nil)
		if err != nil {
			t.Fatalf("expected no error for a stopped session, got %v", err)
		}

		if final.Status != models.StatusStopped || final.Message != "Migration stopped by user" {
			t.Errorf("expected stopped session, got %s %q", final.Status, final.Message)
		}
		if final.CompletedPlaylists != 1 {
			t.Errorf("expected 1 completed playlist, got %d", final.CompletedPlaylists)
		}
		if calls := ex.Calls(); len(calls) != 1 || calls[0] != "p1" {
			t.Errorf("second playlist must not be started, extractor calls: %v", calls)
		}
	})

	t.Run("extraction failure does not abort the batch", func(t *testing.T) {
		p2 := playlistFixture("p2", "Second", "One", "Two")
		ex := &mockExtractor{
			playlists: map[string]*models.SourcePlaylist{"p2": p2},
			errs:      map[string]error{"p1": fmt.Errorf("%w: page had no tracks", shared.ErrExtraction)},
		}
		m := matcher.New(matcher.DefaultOptions())
		dest := newMockDestination()
		stockCatalog(dest, m, p2)

		final, err := runSession(t, newTestOrchestrator(ex, dest, m), "p1", "p2")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if final.Status != models.StatusCompleted {
			t.Errorf("expected completed, got %s", final.Status)
		}
		if final.CompletedPlaylists != 2 || final.CreatedPlaylists != 1 {
			t.Errorf("expected 2 completed and 1 created, got %d and %d", final.CompletedPlaylists, final.CreatedPlaylists)
		}
		if len(final.Errors) != 1 || !strings.Contains(final.Errors[0], "p1") {
			t.Errorf("expected one extraction error, got %v", final.Errors)
		}
		if !strings.HasPrefix(final.Message, "Migrated 1 of 2 playlists") {
			t.Errorf("unexpected message %q", final.Message)
		}
	})

	t.Run("playlist without matches is not created", func(t *testing.T) {
		p1 := playlistFixture("p1", "Obscure", "Unknown Song")
		ex := &mockExtractor{playlists: map[string]*models.SourcePlaylist{"p1": p1}}
		dest := newMockDestination()

		final, err := runSession(t, newTestOrchestrator(ex, dest, matcher.New(matcher.DefaultOptions())), "p1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if final.CreatedPlaylists != 0 || len(dest.created) != 0 {
			t.Errorf("expected no playlist, got %v", dest.created)
		}
		if len(final.MissingTracks) != 1 || final.MissingTracks[0].Reason != "no search results" {
			t.Errorf("unexpected missing tracks %+v", final.MissingTracks)
		}
		if final.CompletedPlaylists != 1 || len(final.Errors) != 1 {
			t.Errorf("expected completed playlist with one error, got %d %v", final.CompletedPlaylists, final.Errors)
		}
	})

	t.Run("search failure records missing track", func(t *testing.T) {
		p1 := playlistFixture("p1", "Road Trip", "One", "Two")
		ex := &mockExtractor{playlists: map[string]*models.SourcePlaylist{"p1": p1}}
		m := matcher.New(matcher.DefaultOptions())
		dest := newMockDestination()
		stockCatalog(dest, m, p1)
		bad := m.BuildQuery(p1.Tracks[1])
		dest.searchErr = func(query string) error {
			if query == bad {
				return fmt.Errorf("%w: status 400", shared.ErrAPIRequest)
			}
			return nil
		}

		final, err := runSession(t, newTestOrchestrator(ex, dest, m), "p1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if final.MatchedTracks != 1 || len(final.MissingTracks) != 1 {
			t.Errorf("expected 1 matched and 1 missing, got %d and %d", final.MatchedTracks, len(final.MissingTracks))
		}
		if !strings.HasPrefix(final.MissingTracks[0].Reason, "search failed") {
			t.Errorf("unexpected reason %q", final.MissingTracks[0].Reason)
		}
	})

	t.Run("circuit breaker open ends the session", func(t *testing.T) {
		p1 := playlistFixture("p1", "Road Trip", "One")
		ex := &mockExtractor{playlists: map[string]*models.SourcePlaylist{"p1": p1}}
		dest := newMockDestination()
		dest.searchErr = func(string) error { return fmt.Errorf("%w: circuit open", shared.ErrServiceUnavailable) }

		final, err := runSession(t, newTestOrchestrator(ex, dest, matcher.New(matcher.DefaultOptions())), "p1")
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Fatalf("expected ErrServiceUnavailable, got %v", err)
		}
		if final.Status != models.StatusError || !strings.Contains(final.Message, "lost connection") {
			t.Errorf("unexpected final state %s %q", final.Status, final.Message)
		}
	})

	t.Run("create failure is recorded per playlist", func(t *testing.T) {
		p1 := playlistFixture("p1", "Road Trip", "One")
		ex := &mockExtractor{playlists: map[string]*models.SourcePlaylist{"p1": p1}}
		m := matcher.New(matcher.DefaultOptions())
		dest := newMockDestination()
		stockCatalog(dest, m, p1)
		dest.createErr = fmt.Errorf("%w: status 400", shared.ErrAPIRequest)

		final, err := runSession(t, newTestOrchestrator(ex, dest, m), "p1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if final.Status != models.StatusCompleted || final.CreatedPlaylists != 0 || len(final.Errors) != 1 {
			t.Errorf("unexpected final state %+v", final)
		}
	})

	t.Run("missing spotify authorization", func(t *testing.T) {
		ex := &mockExtractor{}
		o := NewOrchestrator(ex, func(ctx context.Context, userID string) (services.Destination, error) {
			return nil, fmt.Errorf("%w: user %s has not connected Spotify", shared.ErrNotAuthenticated, userID)
		}, matcher.New(matcher.DefaultOptions()), WithLogger(shared.NewLogger(io.Discard)))

		final, err := runSession(t, o, "p1")
		if !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Fatalf("expected ErrNotAuthenticated, got %v", err)
		}
		if final.Status != models.StatusError || len(ex.Calls()) != 0 {
			t.Errorf("expected error before extraction, got %s with calls %v", final.Status, ex.Calls())
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		p1 := playlistFixture("p1", "Road Trip", "One")
		ex := &mockExtractor{playlists: map[string]*models.SourcePlaylist{"p1": p1}}
		o := newTestOrchestrator(ex, newMockDestination(), matcher.New(matcher.DefaultOptions()))

		snap, err := o.Create("user-1", []string{"p1"})
		if err != nil {
			t.Fatalf("failed to create session: %v", err)
		}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		final, err := o.Run(ctx, snap.SessionID, []string{"p1"}, nil)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if final.Status != models.StatusStopped || final.Message != "Migration cancelled" {
			t.Errorf("unexpected final state %s %q", final.Status, final.Message)
		}
	})

	t.Run("session runs once", func(t *testing.T) {
		p1 := playlistFixture("p1", "Road Trip", "One")
		ex := &mockExtractor{playlists: map[string]*models.SourcePlaylist{"p1": p1}}
		m := matcher.New(matcher.DefaultOptions())
		dest := newMockDestination()
		stockCatalog(dest, m, p1)
		o := newTestOrchestrator(ex, dest, m)

		final, err := runSession(t, o, "p1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if _, err := o.Run(context.Background(), final.SessionID, []string{"p1"}, nil); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if _, err := o.Run(context.Background(), "nope", []string{"p1"}, nil); !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})
}

func TestOrchestrator_Stop(t *testing.T) {
	p1 := playlistFixture("p1", "Road Trip", "One")
	ex := &mockExtractor{playlists: map[string]*models.SourcePlaylist{"p1": p1}}
	m := matcher.New(matcher.DefaultOptions())
	dest := newMockDestination()
	stockCatalog(dest, m, p1)
	o := newTestOrchestrator(ex, dest, m)

	t.Run("after completion is a no-op", func(t *testing.T) {
		final, err := runSession(t, o, "p1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		for range 2 {
			if err := o.Stop(final.SessionID); err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		}

		after, _ := o.Store().Get(final.SessionID)
		if after.Status != models.StatusCompleted || after.Message != final.Message {
			t.Errorf("stop changed a finished session: %s %q", after.Status, after.Message)
		}
		if o.Store().stopRequested(final.SessionID) {
			t.Error("stop flag must not be set on a finished session")
		}
	})

	t.Run("after error is a no-op", func(t *testing.T) {
		failing := NewOrchestrator(ex, func(context.Context, string) (services.Destination, error) {
			return nil, shared.ErrAuthentication
		}, m, WithLogger(shared.NewLogger(io.Discard)))

		final, _ := runSession(t, failing, "p1")
		if err := failing.Stop(final.SessionID); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		after, _ := failing.Store().Get(final.SessionID)
		if after.Status != models.StatusError {
			t.Errorf("expected error status to be kept, got %s", after.Status)
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		if err := o.Stop("missing"); !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("before the first playlist", func(t *testing.T) {
		snap, err := o.Create("user-1", []string{"p1"})
		if err != nil {
			t.Fatalf("failed to create session: %v", err)
		}
		if err := o.Stop(snap.SessionID); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		final, err := o.Run(context.Background(), snap.SessionID, []string{"p1"}, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if final.Status != models.StatusStopped || final.CompletedPlaylists != 0 {
			t.Errorf("unexpected final state %s %d", final.Status, final.CompletedPlaylists)
		}
	})
}

func TestOrchestrator_Start(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	p1 := playlistFixture("p1", "Road Trip", "One", "Two")
	p2 := playlistFixture("p2", "Focus", "Three")
	ex := &mockExtractor{playlists: map[string]*models.SourcePlaylist{"p1": p1, "p2": p2}}
	m := matcher.New(matcher.DefaultOptions())
	dest := newMockDestination()
	stockCatalog(dest, m, p1, p2)
	o := newTestOrchestrator(ex, dest, m)

	progress := make(chan ProgressUpdate, 100)
	id, err := o.Start(context.Background(), "user-1", []string{"p1", "p2"}, progress)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if id == "" {
		t.Fatal("expected a session id")
	}

	o.Wait()
	close(progress)

	final, err := o.Store().Get(id)
	if err != nil {
		t.Fatalf("expected session in store, got %v", err)
	}
	if final.Status != models.StatusCompleted || final.MatchedTracks != 3 {
		t.Errorf("unexpected final state %s matched=%d", final.Status, final.MatchedTracks)
	}

	var phases []Phase
	var last ProgressUpdate
	for u := range progress {
		phases = append(phases, u.Phase)
		last = u
	}
	if len(phases) == 0 || phases[0] != Extracting {
		t.Errorf("expected updates starting with extraction, got %v", phases)
	}
	if last.Phase != Finished {
		t.Errorf("expected final update to be %s, got %s", Finished, last.Phase)
	}
	if snap, ok := last.Data.(*models.MigrationSession); !ok || snap.Status != models.StatusCompleted {
		t.Errorf("expected final snapshot in update data, got %T", last.Data)
	}

	t.Run("rejects empty selection", func(t *testing.T) {
		if _, err := o.Start(context.Background(), "user-1", nil, nil); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
		if _, err := o.Start(context.Background(), "user-1", []string{" "}, nil); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestOrchestrator_Batching(t *testing.T) {
	p1 := playlistFixture("p1", "Long", "A1", "B2", "C3", "D4", "E5")
	ex := &mockExtractor{playlists: map[string]*models.SourcePlaylist{"p1": p1}}
	m := matcher.New(matcher.DefaultOptions())
	dest := newMockDestination()
	stockCatalog(dest, m, p1)

	final, err := runSession(t, newTestOrchestrator(ex, dest, m, WithBatchSize(2)), "p1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	want := []int{2, 2, 1}
	if len(dest.addSizes) != len(want) {
		t.Fatalf("expected batches %v, got %v", want, dest.addSizes)
	}
	for i := range want {
		if dest.addSizes[i] != want[i] {
			t.Errorf("batch %d: expected %d, got %d", i, want[i], dest.addSizes[i])
		}
	}
	if final.Playlists[0].TracksAdded != 5 {
		t.Errorf("expected 5 tracks added, got %d", final.Playlists[0].TracksAdded)
	}

	t.Run("batch size is capped", func(t *testing.T) {
		o := NewOrchestrator(ex, destinationOf(dest), m, WithBatchSize(500))
		if o.batchSize != services.MaxBatchSize {
			t.Errorf("expected batch size %d, got %d", services.MaxBatchSize, o.batchSize)
		}
	})
}

func TestOrchestrator_Description(t *testing.T) {
	o := newTestOrchestrator(&mockExtractor{}, newMockDestination(), matcher.New(matcher.DefaultOptions()))

	pl := playlistFixture("p1", "Road Trip", "One", "Two")
	pl.TrackCount = 40

	got := o.description(pl)
	want := "Anghami mix | Migrated from Anghami with ang2spot on 2025-03-14 | Original playlist had 40 tracks"
	if got != want {
		t.Errorf("description = %q, want %q", got, want)
	}

	pl.Description = "  "
	if got := o.description(pl); strings.HasPrefix(got, " |") || !strings.HasPrefix(got, "Migrated from Anghami") {
		t.Errorf("blank description should be omitted, got %q", got)
	}
}

func TestRun_SetProgress(t *testing.T) {
	tests := []struct {
		name      string
		expected  []int
		processed int
		previous  int
		want      int
	}{
		{name: "known counts", expected: []int{10, 10}, processed: 5, want: 25},
		{name: "unknown counts use known average", expected: []int{4, -1}, processed: 2, want: 25},
		{name: "nothing known", expected: []int{-1, -1}, processed: 1, want: 50},
		{name: "never reaches 100 while running", expected: []int{2}, processed: 2, want: 99},
		{name: "never decreases", expected: []int{10, 30}, processed: 10, previous: 40, want: 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &run{
				snap:      &models.MigrationSession{Progress: tt.previous, TotalPlaylists: len(tt.expected)},
				expected:  tt.expected,
				processed: tt.processed,
			}
			r.setProgress()
			if r.snap.Progress != tt.want {
				t.Errorf("progress = %d, want %d", r.snap.Progress, tt.want)
			}
		})
	}

	t.Run("cached counts feed the estimate", func(t *testing.T) {
		o := newTestOrchestrator(&mockExtractor{}, newMockDestination(), matcher.New(matcher.DefaultOptions()),
			WithTrackCounts(mockCounts{"p1": 12}))
		got := o.expectedCounts([]string{"p1", "p2"})
		if got[0] != 12 || got[1] != -1 {
			t.Errorf("unexpected expected counts %v", got)
		}
	})
}

func TestFailureMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("%w: expired", shared.ErrAuthentication), "authentication"},
		{shared.ErrNoRefreshToken, "authentication"},
		{shared.ErrServiceUnavailable, "lost connection"},
		{errors.New("boom"), "Migration failed: boom"},
	}
	for _, tt := range tests {
		if got := failureMessage(tt.err); !strings.Contains(got, tt.want) {
			t.Errorf("failureMessage(%v) = %q, want it to contain %q", tt.err, got, tt.want)
		}
	}
}
