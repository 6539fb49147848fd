package tasks

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/desertthunder/ang2spot/internal/models"
	"github.com/desertthunder/ang2spot/internal/shared"
)

// Publisher receives every snapshot written to a [SessionStore]. It runs on the orchestrator's
// goroutine and must not block.
type Publisher func(snap *models.MigrationSession)

type sessionEntry struct {
	snap          *models.MigrationSession
	stopRequested bool
}

// SessionStore holds the live migration sessions of this process.
//
// Each record has a single writer, the orchestrator run that owns it. Writers replace the whole record and
// readers always receive deep copies.
type SessionStore struct {
	mu          sync.RWMutex
	sessions    map[string]*sessionEntry
	subscribers map[int]Publisher
	nextSub     int
}

// NewSessionStore creates an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions:    make(map[string]*sessionEntry),
		subscribers: make(map[int]Publisher),
	}
}

// Create adds a new session. Session ids must be unique.
func (s *SessionStore) Create(snap *models.MigrationSession) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	s.mu.Lock()
	if _, ok := s.sessions[snap.SessionID]; ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: session %s already exists", shared.ErrInvalidInput, snap.SessionID)
	}
	s.sessions[snap.SessionID] = &sessionEntry{snap: snap.Clone()}
	s.mu.Unlock()

	s.publish(snap)
	return nil
}

// Get returns a copy of the current snapshot.
func (s *SessionStore) Get(id string) (*models.MigrationSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrSessionNotFound, id)
	}
	return e.snap.Clone(), nil
}

// List returns copies of all sessions, oldest first.
func (s *SessionStore) List() []*models.MigrationSession {
	s.mu.RLock()
	out := make([]*models.MigrationSession, 0, len(s.sessions))
	for _, e := range s.sessions {
		out = append(out, e.snap.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// Remove forgets a session. Unknown ids are ignored.
func (s *SessionStore) Remove(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Prune forgets terminal sessions last updated before cutoff and returns their ids. Running sessions are
// never pruned.
func (s *SessionStore) Prune(cutoff time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pruned []string
	for id, e := range s.sessions {
		if e.snap.Status.IsTerminal() && e.snap.UpdatedAt.Before(cutoff) {
			delete(s.sessions, id)
			pruned = append(pruned, id)
		}
	}
	sort.Strings(pruned)
	return pruned
}

// Subscribe registers fn for every future snapshot and returns a function that removes it.
func (s *SessionStore) Subscribe(fn Publisher) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

// update replaces the stored record with a copy of snap and publishes it.
func (s *SessionStore) update(snap *models.MigrationSession) {
	snap.UpdatedAt = time.Now().UTC()
	cp := snap.Clone()

	s.mu.Lock()
	if e, ok := s.sessions[snap.SessionID]; ok {
		e.snap = cp
	} else {
		s.sessions[snap.SessionID] = &sessionEntry{snap: cp}
	}
	s.mu.Unlock()

	s.publish(cp)
}

func (s *SessionStore) publish(snap *models.MigrationSession) {
	s.mu.RLock()
	subs := make([]Publisher, 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subs = append(subs, fn)
	}
	s.mu.RUnlock()

	for _, fn := range subs {
		fn(snap.Clone())
	}
}

// requestStop flags a running session. It reports false when the session is already terminal.
func (s *SessionStore) requestStop(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok {
		return false, fmt.Errorf("%w: %s", shared.ErrSessionNotFound, id)
	}
	if e.snap.Status.IsTerminal() {
		return false, nil
	}
	e.stopRequested = true
	return true, nil
}

func (s *SessionStore) stopRequested(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.sessions[id]
	return ok && e.stopRequested
}
