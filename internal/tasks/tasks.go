// package tasks implements playlist migration from Anghami to Spotify.
//
// The core abstraction is Orchestrator, which drives migration sessions and keeps their state in a SessionStore.
// Operations emit progress updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ang2spot/internal/models"
	"github.com/desertthunder/ang2spot/internal/services"
	"github.com/desertthunder/ang2spot/internal/shared"
)

const (
	// DefaultBatchSize is the number of tracks sent per add-tracks call.
	DefaultBatchSize = 100

	stoppedMessage   = "Migration stopped by user"
	cancelledMessage = "Migration cancelled"
)

// TrackMatcher chooses the Spotify track for a source track. Implemented by matcher.Matcher.
type TrackMatcher interface {
	BuildQuery(src models.SourceTrack) string
	FindBestMatch(src models.SourceTrack, candidates []models.DestinationTrack) (models.MatchCandidate, bool)
}

// DestinationFactory returns the Spotify client authorized for userID.
type DestinationFactory func(ctx context.Context, userID string) (services.Destination, error)

// Archiver persists terminal session snapshots. Implemented by repositories.MigrationRepository.
type Archiver interface {
	Archive(snap *models.MigrationSession) (*models.MigrationRecord, error)
}

// TrackCounter looks up cached track counts used to estimate progress before extraction.
// Implemented by repositories.PlaylistRepository.
type TrackCounter interface {
	TrackCounts(source models.Source, sourceIDs []string) (map[string]int, error)
}

// Orchestrator runs migration sessions.
//
// Each session runs on its own goroutine and is the only writer of its record in the [SessionStore].
type Orchestrator struct {
	extractor    services.Extractor
	destinations DestinationFactory
	matcher      TrackMatcher
	store        *SessionStore
	archive      Archiver
	counts       TrackCounter
	logger       *log.Logger
	batchSize    int
	searchLimit  int
	public       bool
	now          func() time.Time
	wg           sync.WaitGroup
}

// Option configures an [Orchestrator].
type Option func(*Orchestrator)

// WithStore shares an existing session store.
func WithStore(s *SessionStore) Option {
	return func(o *Orchestrator) { o.store = s }
}

// WithArchive archives every finished session.
func WithArchive(a Archiver) Option {
	return func(o *Orchestrator) { o.archive = a }
}

// WithTrackCounts estimates progress from cached playlist sizes.
func WithTrackCounts(c TrackCounter) Option {
	return func(o *Orchestrator) { o.counts = c }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithBatchSize sets the number of tracks per add call, clamped to 1..100.
func WithBatchSize(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.batchSize = min(n, services.MaxBatchSize)
		}
	}
}

// WithSearchLimit sets the number of Spotify search results considered per track.
func WithSearchLimit(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.searchLimit = n
		}
	}
}

// WithPublicPlaylists creates public playlists instead of private ones.
func WithPublicPlaylists(public bool) Option {
	return func(o *Orchestrator) { o.public = public }
}

// NewOrchestrator creates an Orchestrator with its own [SessionStore] unless [WithStore] is given.
func NewOrchestrator(extractor services.Extractor, destinations DestinationFactory, matcher TrackMatcher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		extractor:    extractor,
		destinations: destinations,
		matcher:      matcher,
		batchSize:    DefaultBatchSize,
		searchLimit:  services.DefaultSearchLimit,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.store == nil {
		o.store = NewSessionStore()
	}
	if o.logger == nil {
		o.logger = shared.NewLogger(nil)
	}
	return o
}

// Store returns the session store read by the status endpoints.
func (o *Orchestrator) Store() *SessionStore { return o.store }

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Create registers an idle session for playlistIDs and returns its first snapshot.
func (o *Orchestrator) Create(userID string, playlistIDs []string) (*models.MigrationSession, error) {
	if len(playlistIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one playlist id is required", shared.ErrMissingArgument)
	}
	for _, id := range playlistIDs {
		if strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("%w: playlist ids must not be blank", shared.ErrInvalidInput)
		}
	}

	snap := models.NewMigrationSession(shared.GenerateID(), userID, len(playlistIDs))
	snap.Message = fmt.Sprintf("Migration of %d playlists queued", len(playlistIDs))
	if err := o.store.Create(snap); err != nil {
		return nil, err
	}
	return snap.Clone(), nil
}

// Start creates a session and runs it in the background. It returns as soon as the session is registered.
//
// ctx bounds the whole run, so callers pass a process-lifetime context rather than a request context.
func (o *Orchestrator) Start(ctx context.Context, userID string, playlistIDs []string, progress chan<- ProgressUpdate) (string, error) {
	snap, err := o.Create(userID, playlistIDs)
	if err != nil {
		return "", err
	}

	ids := append([]string(nil), playlistIDs...)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		_, _ = o.Run(ctx, snap.SessionID, ids, progress)
	}()
	return snap.SessionID, nil
}

// Wait blocks until every session started with [Orchestrator.Start] has finished.
func (o *Orchestrator) Wait() { o.wg.Wait() }

// Stop asks a running session to halt before its next playlist.
//
// Stopping a finished session is a no-op. Unknown ids wrap [shared.ErrSessionNotFound].
func (o *Orchestrator) Stop(sessionID string) error {
	requested, err := o.store.requestStop(sessionID)
	if err != nil {
		return err
	}
	if requested {
		o.logger.Info("stop requested", "session", sessionID)
	}
	return nil
}

// Run migrates playlistIDs in order for an idle session created with [Orchestrator.Create].
//
// Per-track and per-playlist failures are recorded on the session and the run continues. The returned
// error is the session-wide failure that ended the run, if any. The final snapshot is always returned for
// a known session.
func (o *Orchestrator) Run(ctx context.Context, sessionID string, playlistIDs []string, progress chan<- ProgressUpdate) (*models.MigrationSession, error) {
	snap, err := o.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if snap.Status != models.StatusIdle {
		return snap, fmt.Errorf("%w: session %s has already run", shared.ErrInvalidInput, sessionID)
	}

	ActiveSessions.Inc()
	defer ActiveSessions.Dec()

	r := &run{
		o:        o,
		snap:     snap,
		ids:      playlistIDs,
		progress: progress,
		logger:   shared.WithLogger(o.logger, "session", sessionID),
		expected: o.expectedCounts(playlistIDs),
	}
	r.logger.Info("migration started", "playlists", len(playlistIDs), "user", snap.UserID)

	err = r.execute(ctx)
	r.finish(err)

	if errors.Is(err, shared.ErrSessionStopped) {
		err = nil
	}
	return r.snap.Clone(), err
}

// expectedCounts returns the cached track count per playlist, -1 where unknown.
func (o *Orchestrator) expectedCounts(ids []string) []int {
	expected := make([]int, len(ids))
	for i := range expected {
		expected[i] = -1
	}
	if o.counts == nil {
		return expected
	}

	counts, err := o.counts.TrackCounts(models.SourceAnghami, ids)
	if err != nil {
		o.logger.Warn("could not read cached track counts", "error", err)
		return expected
	}
	for i, id := range ids {
		if n, ok := counts[id]; ok {
			expected[i] = n
		}
	}
	return expected
}

// description builds the Spotify playlist description:
//
//	<anghami description> | Migrated from Anghami with ang2spot on YYYY-MM-DD | Original playlist had N tracks
func (o *Orchestrator) description(pl *models.SourcePlaylist) string {
	var parts []string
	if d := strings.TrimSpace(pl.Description); d != "" {
		parts = append(parts, d)
	}
	parts = append(parts,
		fmt.Sprintf("Migrated from Anghami with ang2spot on %s", o.now().Format("2006-01-02")),
		fmt.Sprintf("Original playlist had %d tracks", max(pl.TrackCount, len(pl.Tracks))),
	)
	return strings.Join(parts, " | ")
}

// run is the state of one session owned by its orchestrator goroutine.
type run struct {
	o        *Orchestrator
	snap     *models.MigrationSession
	ids      []string
	progress chan<- ProgressUpdate
	logger   *log.Logger
	dest     services.Destination

	expected  []int
	processed int
}

func (r *run) execute(ctx context.Context) error {
	dest, err := r.o.destinations(ctx, r.snap.UserID)
	if err != nil {
		return err
	}
	r.dest = dest

	for i, id := range r.ids {
		if r.o.store.stopRequested(r.snap.SessionID) {
			return shared.ErrSessionStopped
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.migratePlaylist(ctx, i, id); err != nil {
			return err
		}
	}
	return nil
}

// migratePlaylist extracts, matches, and recreates one playlist. Only session-wide failures are returned.
func (r *run) migratePlaylist(ctx context.Context, idx int, id string) error {
	step, total := idx+1, len(r.ids)

	r.snap.Status = models.StatusExtracting
	r.snap.CurrentPlaylist = id
	r.snap.Message = fmt.Sprintf("Extracting playlist %d of %d", step, total)
	r.commit()
	r.send(extractingUpdate(step, total, id))

	pl, err := r.o.extractor.GetPlaylist(ctx, id)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.logger.Warn("playlist extraction failed", "playlist", id, "error", err)
		r.expected[idx] = 0
		r.snap.Errors = append(r.snap.Errors, fmt.Sprintf("Failed to extract playlist %s: %v", id, err))
		r.completePlaylist()
		r.send(extractFailedUpdate(step, total, id, err))
		return nil
	}

	name := strings.TrimSpace(pl.Name)
	if name == "" {
		name = "Anghami playlist " + id
	}
	r.expected[idx] = len(pl.Tracks)
	r.snap.TotalTracks += len(pl.Tracks)
	r.snap.CurrentPlaylist = name
	r.snap.Status = models.StatusMatching
	r.snap.Message = fmt.Sprintf("Matching tracks in: %s", name)
	r.setProgress()
	r.commit()

	uris := make([]string, 0, len(pl.Tracks))
	for j, tr := range pl.Tracks {
		if err := ctx.Err(); err != nil {
			return err
		}

		match, ok, err := r.matchTrack(ctx, name, tr)
		if err != nil {
			return err
		}
		r.processed++
		if ok {
			r.snap.MatchedTracks++
			uris = append(uris, match.URI())
			TracksTotal.WithLabelValues("matched").Inc()
		} else {
			TracksTotal.WithLabelValues("missing").Inc()
		}

		r.snap.Message = fmt.Sprintf("Matching tracks in: %s (%d/%d)", name, j+1, len(pl.Tracks))
		r.setProgress()
		r.commit()
		r.send(matchTrackUpdate(j+1, len(pl.Tracks), tr, ok))
	}

	if len(uris) == 0 {
		r.logger.Warn("no tracks matched, skipping playlist", "playlist", name)
		r.snap.Errors = append(r.snap.Errors, fmt.Sprintf("No tracks matched in %s; playlist not created", name))
		r.completePlaylist()
		return nil
	}

	r.snap.Status = models.StatusCreating
	r.snap.Message = fmt.Sprintf("Creating Spotify playlist: %s", name)
	r.commit()
	r.send(creatingUpdate(step, total, name))

	created, err := r.dest.CreatePlaylist(ctx, name, r.o.description(pl), r.o.public)
	if err != nil {
		if isSessionFatal(ctx, err) {
			return err
		}
		r.logger.Warn("playlist creation failed", "playlist", name, "error", err)
		r.snap.Errors = append(r.snap.Errors, fmt.Sprintf("Failed to create playlist %s: %v", name, err))
		r.completePlaylist()
		return nil
	}
	r.snap.CreatedPlaylists++
	PlaylistsCreated.Inc()

	added, err := r.addTracks(ctx, created.ID, uris)
	result := models.CreatedPlaylist{
		SourceID:    id,
		Name:        name,
		SpotifyID:   created.ID,
		URL:         created.URL,
		TracksAdded: added,
	}
	r.snap.Playlists = append(r.snap.Playlists, result)
	if err != nil {
		if isSessionFatal(ctx, err) {
			r.commit()
			return err
		}
		r.snap.Errors = append(r.snap.Errors, fmt.Sprintf("Failed to add tracks to %s: %v", name, err))
	}

	r.logger.Info("playlist migrated", "playlist", name, "spotify_id", created.ID, "tracks", added, "missing", len(pl.Tracks)-len(uris))
	r.completePlaylist()
	r.send(createdUpdate(step, total, result))
	return nil
}

// matchTrack searches Spotify for tr. Misses are recorded on the session; only session-wide failures are returned.
func (r *run) matchTrack(ctx context.Context, playlist string, tr models.SourceTrack) (models.MatchCandidate, bool, error) {
	query := r.o.matcher.BuildQuery(tr)

	results, err := r.dest.SearchTrack(ctx, query, r.o.searchLimit)
	if err != nil {
		if isSessionFatal(ctx, err) {
			return models.MatchCandidate{}, false, err
		}
		r.addMissing(playlist, tr, 0, query, fmt.Sprintf("search failed: %v", err))
		return models.MatchCandidate{}, false, nil
	}

	best, ok := r.o.matcher.FindBestMatch(tr, results)
	if ok {
		best.SearchQueryUsed = query
		return best, true, nil
	}

	reason := "no search results"
	if len(results) > 0 {
		reason = fmt.Sprintf("best candidate scored %.2f, below threshold", best.ConfidenceScore)
	}
	r.addMissing(playlist, tr, best.ConfidenceScore, query, reason)
	return best, false, nil
}

func (r *run) addMissing(playlist string, tr models.SourceTrack, score float64, query, reason string) {
	r.logger.Debug("track not matched", "track", tr.String(), "reason", reason)
	r.snap.MissingTracks = append(r.snap.MissingTracks, models.MissingTrack{
		Playlist:  playlist,
		Track:     tr,
		BestScore: score,
		Query:     query,
		Reason:    reason,
	})
}

// addTracks adds uris in batches and returns how many were added before any error.
func (r *run) addTracks(ctx context.Context, playlistID string, uris []string) (int, error) {
	added := 0
	for start := 0; start < len(uris); start += r.o.batchSize {
		end := min(start+r.o.batchSize, len(uris))
		n, err := r.dest.AddTracks(ctx, playlistID, uris[start:end])
		added += n
		if err != nil {
			return added, err
		}
	}
	return added, nil
}

func (r *run) completePlaylist() {
	r.snap.CompletedPlaylists++
	r.setProgress()
	r.commit()
}

// setProgress recomputes progress from tracks processed over the expected total. Playlists not yet
// extracted count with their cached size, or the average known size when uncached. Progress never
// decreases and stays below 100 until the session completes.
func (r *run) setProgress() {
	total, known := 0, 0
	for _, n := range r.expected {
		if n >= 0 {
			total += n
			known++
		}
	}
	if unknown := len(r.expected) - known; unknown > 0 {
		avg := 1
		if known > 0 && total > 0 {
			avg = max(1, total/known)
		}
		total += unknown * avg
	}

	// a playlist that produced no work still moves the bar
	done := r.processed
	if total == 0 {
		done, total = r.snap.CompletedPlaylists, r.snap.TotalPlaylists
	}
	if total == 0 {
		return
	}

	p := min(done*100/total, 99)
	if p > r.snap.Progress {
		r.snap.Progress = p
	}
}

func (r *run) commit() { r.o.store.update(r.snap) }

func (r *run) send(update ProgressUpdate) { sendProgress(r.progress, update) }

func (r *run) finish(err error) {
	switch {
	case err == nil:
		r.snap.Status = models.StatusCompleted
		r.snap.Progress = 100
		r.snap.CurrentPlaylist = ""
		r.snap.Message = completedMessage(r.snap)
	case errors.Is(err, shared.ErrSessionStopped):
		r.snap.Status = models.StatusStopped
		r.snap.Message = stoppedMessage
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		r.snap.Status = models.StatusStopped
		r.snap.Message = cancelledMessage
	default:
		r.snap.Status = models.StatusError
		r.snap.Errors = append(r.snap.Errors, err.Error())
		r.snap.Message = failureMessage(err)
	}
	r.commit()
	SessionsTotal.WithLabelValues(string(r.snap.Status)).Inc()

	if r.o.archive != nil {
		if _, aerr := r.o.archive.Archive(r.snap); aerr != nil {
			r.logger.Warn("failed to archive session", "error", aerr)
		}
	}

	logFn := r.logger.Info
	if r.snap.Status == models.StatusError {
		logFn = r.logger.Error
	}
	logFn("migration finished",
		"status", r.snap.Status,
		"created", r.snap.CreatedPlaylists,
		"matched", r.snap.MatchedTracks,
		"missing", r.snap.MissingCount(),
	)
	r.send(finishedUpdate(r.snap.Clone()))
}

func completedMessage(s *models.MigrationSession) string {
	if len(s.Errors) == 0 && s.MissingCount() == 0 {
		return fmt.Sprintf("Successfully migrated %d playlists!", s.CreatedPlaylists)
	}
	return fmt.Sprintf("Migrated %d of %d playlists: %d tracks matched, %d missing",
		s.CreatedPlaylists, s.TotalPlaylists, s.MatchedTracks, s.MissingCount())
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, shared.ErrAuthentication),
		errors.Is(err, shared.ErrNotAuthenticated),
		errors.Is(err, shared.ErrNoRefreshToken):
		return fmt.Sprintf("Migration failed: Spotify authentication failed, reconnect your Spotify account (%v)", err)
	case errors.Is(err, shared.ErrServiceUnavailable):
		return fmt.Sprintf("Migration failed: lost connection to Spotify (%v)", err)
	default:
		return fmt.Sprintf("Migration failed: %v", err)
	}
}

// isSessionFatal reports whether err ends the whole session rather than one track or playlist.
func isSessionFatal(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	for _, target := range []error{
		shared.ErrAuthentication,
		shared.ErrNotAuthenticated,
		shared.ErrNoRefreshToken,
		shared.ErrServiceUnavailable,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
