package ui

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/ang2spot/internal/models"
	"github.com/desertthunder/ang2spot/internal/tasks"
)

type fakeLister struct {
	playlists []models.PlaylistRecord
	err       error
}

func (f *fakeLister) GetPlaylists(ctx context.Context, profileURL string) ([]models.PlaylistRecord, error) {
	return f.playlists, f.err
}

// fakeMigrator completes every session immediately unless gate is set, in which case Run waits for Stop.
type fakeMigrator struct {
	mu      sync.Mutex
	gate    chan struct{}
	ran     []string
	stopped []string
	created *models.MigrationSession
}

func (f *fakeMigrator) Create(userID string, ids []string) (*models.MigrationSession, error) {
	if len(ids) == 0 {
		return nil, errors.New("no playlists")
	}
	f.created = models.NewMigrationSession("sess-1", userID, len(ids))
	return f.created.Clone(), nil
}

func (f *fakeMigrator) Run(ctx context.Context, sessionID string, ids []string, progress chan<- tasks.ProgressUpdate) (*models.MigrationSession, error) {
	f.mu.Lock()
	f.ran = append(f.ran, ids...)
	gate := f.gate
	f.mu.Unlock()

	progress <- tasks.ProgressUpdate{Phase: tasks.Extracting, Step: 1, Total: len(ids), Message: "Extracting " + ids[0]}

	final := f.created.Clone()
	if gate != nil {
		<-gate
		final.Status = models.StatusStopped
		final.Message = "Migration stopped by user"
		return final, nil
	}

	progress <- tasks.ProgressUpdate{Phase: tasks.Matching, Step: 1, Total: 2, Message: "matched Kifak Inta"}
	final.Status = models.StatusCompleted
	final.Progress = 100
	final.CompletedPlaylists = len(ids)
	final.CreatedPlaylists = len(ids)
	final.TotalTracks, final.MatchedTracks = 2, 1
	final.Message = "Migration completed"
	final.Playlists = []models.CreatedPlaylist{{Name: "Road Trip", SpotifyID: "sp1", TracksAdded: 1}}
	final.MissingTracks = []models.MissingTrack{{
		Playlist: "Road Trip",
		Track:    models.SourceTrack{Title: "Shadi", Artists: []string{"Fairuz"}},
		Reason:   "no search results",
	}}
	return final, nil
}

func (f *fakeMigrator) Stop(sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, sessionID)
	if f.gate != nil {
		close(f.gate)
		f.gate = nil
	}
	return nil
}

type fakeSnapshots struct{ progress int }

func (f *fakeSnapshots) Get(id string) (*models.MigrationSession, error) {
	s := models.NewMigrationSession(id, "u1", 2)
	s.Status, s.Progress = models.StatusMatching, f.progress
	return s, nil
}

func keyRune(r rune) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}} }

var (
	keySpace = tea.KeyMsg{Type: tea.KeySpace}
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
)

func newTestModel(t *testing.T, m *fakeMigrator) *Model {
	t.Helper()
	model := NewModel(context.Background(), Options{
		Playlists: &fakeLister{playlists: []models.PlaylistRecord{
			{ID: "p1", Name: "Road Trip", TrackCount: 2},
			{ID: "p2", Name: "Evening", Owner: "Layla"},
		}},
		Migrator:   m,
		Sessions:   &fakeSnapshots{progress: 40},
		ProfileURL: "https://play.anghami.com/profile/42",
		UserID:     "u1",
		ReportDir:  t.TempDir(),
	})
	model.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	model.Update(model.Init()())
	return model
}

// drain runs cmd and feeds its messages back into the model until no command is returned.
func drain(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	for i := 0; cmd != nil; i++ {
		if i > 20 {
			t.Fatal("model did not settle")
		}
		_, cmd = m.Update(cmd())
	}
}

func TestModel(t *testing.T) {
	t.Run("select and migrate", func(t *testing.T) {
		mig := &fakeMigrator{}
		m := newTestModel(t, mig)

		if out := m.View(); !strings.Contains(out, "[ ] Road Trip") || !strings.Contains(out, "by Layla") {
			t.Fatalf("expected playlist list, got:\n%s", out)
		}

		m.Update(keySpace)
		m.Update(keyRune('j'))
		m.Update(keySpace)
		if got := m.selectedIDs(); len(got) != 2 {
			t.Fatalf("expected two marked playlists, got %v", got)
		}

		m.Update(keyEnter)
		if m.view != ConfirmView {
			t.Fatalf("expected confirm view, got %v", m.view)
		}
		if out := m.View(); !strings.Contains(out, "Migrate 2 playlists") || !strings.Contains(out, "Evening") {
			t.Errorf("unexpected confirm view:\n%s", out)
		}

		_, cmd := m.Update(keyRune('y'))
		if m.view != MigrationView {
			t.Fatalf("expected migration view, got %v", m.view)
		}

		_, cmd = m.Update(cmd())
		if m.session.Progress != 40 {
			t.Errorf("expected snapshot refresh on progress, got %d", m.session.Progress)
		}
		if out := m.View(); !strings.Contains(out, "Extracting p1") {
			t.Errorf("expected event log in migration view:\n%s", out)
		}

		drain(t, m, cmd)
		if m.view != ResultView {
			t.Fatalf("expected result view, got %v", m.view)
		}
		out := m.View()
		for _, want := range []string{"Migration completed", "Road Trip (1 tracks)", "1 tracks not found on Spotify", "Fairuz - Shadi"} {
			if !strings.Contains(out, want) {
				t.Errorf("result view missing %q:\n%s", want, out)
			}
		}
		if strings.Join(mig.ran, ",") != "p1,p2" {
			t.Errorf("expected playlists in listing order, got %v", mig.ran)
		}

		_, cmd = m.Update(keyRune('e'))
		drain(t, m, cmd)
		if m.reportPath == "" {
			t.Fatal("expected report path")
		}
		if _, err := os.Stat(m.reportPath); err != nil {
			t.Errorf("expected report file: %v", err)
		}

		m.Update(keyRune('r'))
		if m.view != PlaylistListView || len(m.selectedIDs()) != 0 || m.session != nil {
			t.Error("expected restart to clear the selection")
		}
	})

	t.Run("enter without marks migrates the current playlist", func(t *testing.T) {
		m := newTestModel(t, &fakeMigrator{})
		m.Update(keyEnter)
		if ids := m.selectedIDs(); len(ids) != 1 || ids[0] != "p1" {
			t.Errorf("expected current playlist to be marked, got %v", ids)
		}
		m.Update(keyRune('n'))
		if m.view != PlaylistListView {
			t.Error("expected n to return to the list")
		}
	})

	t.Run("mark all toggles", func(t *testing.T) {
		m := newTestModel(t, &fakeMigrator{})
		m.Update(keyRune('a'))
		if len(m.selectedIDs()) != 2 {
			t.Error("expected every playlist marked")
		}
		m.Update(keyRune('a'))
		if len(m.selectedIDs()) != 0 {
			t.Error("expected every playlist unmarked")
		}
	})

	t.Run("stop during migration", func(t *testing.T) {
		mig := &fakeMigrator{gate: make(chan struct{})}
		m := newTestModel(t, mig)

		m.Update(keyEnter)
		_, cmd := m.Update(keyRune('y'))
		_, cmd = m.Update(cmd())

		m.Update(keyRune('s'))
		m.Update(keyRune('s'))
		if len(mig.stopped) != 1 || mig.stopped[0] != "sess-1" {
			t.Errorf("expected a single stop request, got %v", mig.stopped)
		}

		drain(t, m, cmd)
		if m.view != ResultView || m.session.Status != models.StatusStopped {
			t.Fatalf("expected stopped result, got %v %+v", m.view, m.session)
		}
		if !strings.Contains(m.View(), "Migration stopped") {
			t.Errorf("unexpected result view:\n%s", m.View())
		}
	})

	t.Run("fetch error", func(t *testing.T) {
		m := NewModel(context.Background(), Options{
			Playlists: &fakeLister{err: errors.New("profile page unavailable")},
			Migrator:  &fakeMigrator{},
		})
		m.Update(m.Init()())
		if out := m.View(); !strings.Contains(out, "profile page unavailable") {
			t.Errorf("expected error view, got %q", out)
		}

		m.Update(keySpace)
		if len(m.marked) != 0 {
			t.Error("expected keys to be ignored after a fetch error")
		}
		if _, cmd := m.Update(keyRune('q')); cmd == nil {
			t.Error("expected quit command")
		}
	})

	t.Run("keys before playlists load are ignored", func(t *testing.T) {
		m := NewModel(context.Background(), Options{Playlists: &fakeLister{}, Migrator: &fakeMigrator{}})
		m.Update(keyRune('a'))
		m.Update(keyEnter)
		if m.view != PlaylistListView {
			t.Error("expected to stay on the list view")
		}
		if !strings.Contains(m.View(), "Loading playlists") {
			t.Errorf("expected loading view, got %q", m.View())
		}
	})
}
