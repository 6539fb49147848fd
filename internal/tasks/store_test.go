package tasks

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/ang2spot/internal/models"
	"github.com/desertthunder/ang2spot/internal/shared"
)

func TestSessionStore(t *testing.T) {
	t.Run("Create and Get", func(t *testing.T) {
		s := NewSessionStore()
		snap := models.NewMigrationSession("s1", "u1", 2)

		if err := s.Create(snap); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := s.Create(snap); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected duplicate to fail with ErrInvalidInput, got %v", err)
		}

		got, err := s.Get("s1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got.TotalPlaylists != 2 || got.Status != models.StatusIdle {
			t.Errorf("unexpected snapshot %+v", got)
		}

		if _, err := s.Get("missing"); !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("Create validates", func(t *testing.T) {
		s := NewSessionStore()
		bad := models.NewMigrationSession("", "u1", 1)
		if err := s.Create(bad); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("readers get copies", func(t *testing.T) {
		s := NewSessionStore()
		snap := models.NewMigrationSession("s1", "u1", 1)
		if err := s.Create(snap); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		got, _ := s.Get("s1")
		got.Errors = append(got.Errors, "mutated")
		got.Status = models.StatusError

		again, _ := s.Get("s1")
		if len(again.Errors) != 0 || again.Status != models.StatusIdle {
			t.Errorf("store was mutated through a returned snapshot: %+v", again)
		}

		snap.Message = "changed after create"
		if again, _ := s.Get("s1"); again.Message == "changed after create" {
			t.Error("store must not alias the created snapshot")
		}
	})

	t.Run("update replaces and publishes", func(t *testing.T) {
		s := NewSessionStore()
		snap := models.NewMigrationSession("s1", "u1", 1)
		_ = s.Create(snap)

		rec := &recorder{}
		unsubscribe := s.Subscribe(rec.publish)

		snap.Status = models.StatusMatching
		snap.Progress = 40
		s.update(snap)

		got, _ := s.Get("s1")
		if got.Status != models.StatusMatching || got.Progress != 40 {
			t.Errorf("unexpected snapshot %+v", got)
		}
		if got.UpdatedAt.Before(got.StartedAt) {
			t.Error("expected UpdatedAt to be refreshed")
		}

		unsubscribe()
		snap.Progress = 50
		s.update(snap)

		snaps := rec.Snapshots()
		if len(snaps) != 1 || snaps[0].Progress != 40 {
			t.Errorf("expected exactly one published snapshot before unsubscribe, got %d", len(snaps))
		}
	})

	t.Run("List is ordered by start time", func(t *testing.T) {
		s := NewSessionStore()
		later := models.NewMigrationSession("later", "u1", 1)
		earlier := models.NewMigrationSession("earlier", "u1", 1)
		earlier.StartedAt = later.StartedAt.Add(-time.Minute)
		_ = s.Create(later)
		_ = s.Create(earlier)

		list := s.List()
		if len(list) != 2 || list[0].SessionID != "earlier" {
			t.Errorf("unexpected order %v", list)
		}

		s.Remove("earlier")
		if len(s.List()) != 1 {
			t.Error("expected session to be removed")
		}
	})

	t.Run("Prune drops only old finished sessions", func(t *testing.T) {
		s := NewSessionStore()
		for _, id := range []string{"done", "running"} {
			if err := s.Create(models.NewMigrationSession(id, "u1", 1)); err != nil {
				t.Fatalf("failed to create %s: %v", id, err)
			}
		}
		done, _ := s.Get("done")
		done.Status = models.StatusCompleted
		s.update(done)

		if pruned := s.Prune(time.Now().Add(-time.Hour)); len(pruned) != 0 {
			t.Errorf("recent sessions must be kept, pruned %v", pruned)
		}

		pruned := s.Prune(time.Now().Add(time.Second))
		if len(pruned) != 1 || pruned[0] != "done" {
			t.Fatalf("expected only the finished session to be pruned, got %v", pruned)
		}
		if _, err := s.Get("done"); !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected pruned session to be gone, got %v", err)
		}
		if _, err := s.Get("running"); err != nil {
			t.Errorf("running session must survive pruning, got %v", err)
		}
	})

	t.Run("stop flag", func(t *testing.T) {
		s := NewSessionStore()
		snap := models.NewMigrationSession("s1", "u1", 1)
		_ = s.Create(snap)

		ok, err := s.requestStop("s1")
		if err != nil || !ok || !s.stopRequested("s1") {
			t.Errorf("expected stop to be requested, got %v %v", ok, err)
		}

		snap.Status = models.StatusCompleted
		s.update(snap)
		done := models.NewMigrationSession("s2", "u1", 1)
		done.Status = models.StatusCompleted
		_ = s.Create(done)

		if ok, err := s.requestStop("s2"); ok || err != nil {
			t.Errorf("expected no-op on terminal session, got %v %v", ok, err)
		}
		if _, err := s.requestStop("missing"); !errors.Is(err, shared.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("concurrent readers", func(t *testing.T) {
		s := NewSessionStore()
		snap := models.NewMigrationSession("s1", "u1", 10)
		_ = s.Create(snap)

		var wg sync.WaitGroup
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 100 {
					if got, err := s.Get("s1"); err != nil || got.Validate() != nil {
						t.Errorf("unexpected read %v %v", got, err)
						return
					}
				}
			}()
		}
		for i := range 10 {
			snap.CompletedPlaylists = i + 1
			snap.Errors = append(snap.Errors, "e")
			s.update(snap)
		}
		wg.Wait()
	})
}
