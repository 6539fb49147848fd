package server

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/ang2spot/internal/models"
	"github.com/desertthunder/ang2spot/internal/shared"
	"github.com/gorilla/websocket"
	"go.uber.org/goleak"
)

func wsURL(httpURL, path string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + path
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial %s: %v", url, err)
	}
	resp.Body.Close()
	return conn
}

func readSnapshot(t *testing.T, conn *websocket.Conn) *models.MigrationSession {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var snap models.MigrationSession
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("failed to read snapshot: %v", err)
	}
	return &snap
}

func expectClosed(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	var ce *websocket.CloseError
	if !errors.As(err, &ce) || ce.Code != websocket.CloseNormalClosure {
		t.Fatalf("expected normal close, got %v", err)
	}
}

func latest(snap *models.MigrationSession) func() (*models.MigrationSession, error) {
	return func() (*models.MigrationSession, error) { return snap.Clone(), nil }
}

func snapshot(id string, status models.Status, progress int) *models.MigrationSession {
	s := models.NewMigrationSession(id, "u1", 1)
	s.Status, s.Progress = status, progress
	return s
}

func TestHub(t *testing.T) {
	t.Run("streams until terminal", func(t *testing.T) {
		defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

		hub := NewHub(0, shared.NewLogger(io.Discard))
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := hub.Serve(w, r, "s1", latest(snapshot("s1", models.StatusIdle, 0))); err != nil {
				t.Errorf("serve failed: %v", err)
			}
		}))
		defer srv.Close()
		defer hub.Close()

		conn := dial(t, wsURL(srv.URL, "/"))
		defer conn.Close()

		if snap := readSnapshot(t, conn); snap.Status != models.StatusIdle || snap.SessionID != "s1" {
			t.Fatalf("expected initial idle snapshot, got %+v", snap)
		}
		if n := hub.Count("s1"); n != 1 {
			t.Fatalf("expected one client, got %d", n)
		}

		hub.Publish(snapshot("other", models.StatusMatching, 10))
		hub.Publish(snapshot("s1", models.StatusMatching, 40))
		if snap := readSnapshot(t, conn); snap.Status != models.StatusMatching || snap.Progress != 40 {
			t.Fatalf("expected matching snapshot at 40, got %+v", snap)
		}

		hub.Publish(snapshot("s1", models.StatusCompleted, 100))
		if n := hub.Count("s1"); n != 0 {
			t.Errorf("expected terminal snapshot to detach the client, got %d", n)
		}
		if snap := readSnapshot(t, conn); snap.Status != models.StatusCompleted {
			t.Fatalf("expected completed snapshot, got %+v", snap)
		}
		expectClosed(t, conn)
	})

	t.Run("session finished before the client registered", func(t *testing.T) {
		defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

		var (
			mu      sync.Mutex
			current = snapshot("s5", models.StatusMatching, 60)
		)
		get := func() (*models.MigrationSession, error) {
			mu.Lock()
			defer mu.Unlock()
			return current.Clone(), nil
		}

		hub := NewHub(0, shared.NewLogger(io.Discard))
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if stale, _ := get(); stale.Status.IsTerminal() {
				t.Errorf("expected a running session before the upgrade, got %s", stale.Status)
			}

			mu.Lock()
			current = snapshot("s5", models.StatusCompleted, 100)
			mu.Unlock()
			hub.Publish(current)

			if err := hub.Serve(w, r, "s5", get); err != nil {
				t.Errorf("serve failed: %v", err)
			}
		}))
		defer srv.Close()
		defer hub.Close()

		conn := dial(t, wsURL(srv.URL, "/"))
		defer conn.Close()

		if snap := readSnapshot(t, conn); snap.Status != models.StatusCompleted || snap.Progress != 100 {
			t.Fatalf("expected the completed snapshot, got %+v", snap)
		}
		expectClosed(t, conn)
		if n := hub.Count("s5"); n != 0 {
			t.Errorf("expected the client to be detached, got %d", n)
		}
	})

	t.Run("unknown session closes the connection", func(t *testing.T) {
		hub := NewHub(0, shared.NewLogger(io.Discard))
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := hub.Serve(w, r, "gone", func() (*models.MigrationSession, error) {
				return nil, shared.ErrSessionNotFound
			})
			if !errors.Is(err, shared.ErrSessionNotFound) {
				t.Errorf("expected ErrSessionNotFound, got %v", err)
			}
		}))
		defer srv.Close()
		defer hub.Close()

		conn := dial(t, wsURL(srv.URL, "/"))
		defer conn.Close()

		expectClosed(t, conn)
		if n := hub.Count("gone"); n != 0 {
			t.Errorf("expected no clients, got %d", n)
		}
	})

	t.Run("push interval repeats the latest snapshot", func(t *testing.T) {
		hub := NewHub(20*time.Millisecond, shared.NewLogger(io.Discard))
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = hub.Serve(w, r, "s2", latest(snapshot("s2", models.StatusExtracting, 5)))
		}))
		defer srv.Close()
		defer hub.Close()

		conn := dial(t, wsURL(srv.URL, "/"))
		defer conn.Close()

		for i := range 3 {
			if snap := readSnapshot(t, conn); snap.Progress != 5 {
				t.Fatalf("read %d: expected repeated snapshot, got %+v", i, snap)
			}
		}
	})

	t.Run("slow client keeps only the latest", func(t *testing.T) {
		hub := NewHub(0, shared.NewLogger(io.Discard))
		c := &client{sessionID: "s3", hub: hub, send: make(chan *models.MigrationSession, 1)}
		hub.sessions["s3"] = map[*client]struct{}{c: {}}

		for p := 1; p <= 3; p++ {
			hub.Publish(snapshot("s3", models.StatusMatching, p*10))
		}
		if snap := <-c.send; snap.Progress != 30 {
			t.Errorf("expected latest progress 30, got %d", snap.Progress)
		}

		hub.Publish(snapshot("s3", models.StatusMatching, 50))
		hub.Publish(snapshot("s3", models.StatusStopped, 50))
		if snap, ok := <-c.send; !ok || snap.Status != models.StatusStopped {
			t.Fatalf("expected terminal snapshot to replace the queued one, got %+v", snap)
		}
		if _, ok := <-c.send; ok {
			t.Error("expected send channel to be closed after terminal snapshot")
		}

		hub.Publish(snapshot("s3", models.StatusMatching, 60))
		if hub.Count("s3") != 0 {
			t.Error("expected no clients after terminal snapshot")
		}
	})

	t.Run("published snapshots are copies", func(t *testing.T) {
		hub := NewHub(0, shared.NewLogger(io.Discard))
		c := &client{sessionID: "s4", hub: hub, send: make(chan *models.MigrationSession, 1)}
		hub.sessions["s4"] = map[*client]struct{}{c: {}}

		snap := snapshot("s4", models.StatusMatching, 10)
		snap.Errors = append(snap.Errors, "first")
		hub.Publish(snap)
		snap.Errors[0] = "mutated"

		if got := <-c.send; got.Errors[0] != "first" {
			t.Errorf("expected queued snapshot to be isolated, got %q", got.Errors[0])
		}
	})
}

func TestSessionSocket(t *testing.T) {
	for _, prefix := range []string{"/ws/", "/migrate/ws/"} {
		t.Run(prefix, func(t *testing.T) {
			env := newTestEnv(t, defaultConfig())
			gate := make(chan struct{})
			env.dest.gate = gate
			released := false
			defer func() {
				if !released {
					close(gate)
				}
			}()

			resp := env.do(t, http.MethodPost, "/migrate", migrateRequest{PlaylistIDs: []string{"p1", "p2"}, UserID: "authorized"})
			expectStatus(t, resp, http.StatusAccepted)
			started := decodeBody[migrateResponse](t, resp)

			conn := dial(t, wsURL(env.http.URL, prefix+started.SessionID))
			defer conn.Close()

			first := readSnapshot(t, conn)
			if first.SessionID != started.SessionID || first.Status.IsTerminal() {
				t.Fatalf("expected a running snapshot, got %+v", first)
			}

			close(gate)
			released = true

			var last *models.MigrationSession
			for last == nil || !last.Status.IsTerminal() {
				next := readSnapshot(t, conn)
				if last != nil && next.Progress < last.Progress {
					t.Errorf("progress went backwards: %d -> %d", last.Progress, next.Progress)
				}
				last = next
			}
			if last.Status != models.StatusCompleted || last.Progress != 100 || last.MatchedTracks != 3 {
				t.Errorf("unexpected final snapshot %+v", last)
			}
			expectClosed(t, conn)
		})
	}
}
