// package server contains the HTTP API, websocket push, and OAuth callback handling for ang2spot
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ang2spot/internal/models"
	"github.com/desertthunder/ang2spot/internal/services"
	"github.com/desertthunder/ang2spot/internal/shared"
	"github.com/desertthunder/ang2spot/internal/tasks"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

const (
	shutdownTimeout = 10 * time.Second
	pruneInterval   = time.Minute
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Handler is an [http.Handler] that knows the paths it serves.
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the path patterns this handler serves
}

// Accounts manages users and their Spotify authorization. Implemented by accounts.Manager.
type Accounts interface {
	Register(displayName, clientID, clientSecret string) (*models.User, error)
	Remove(userID string) error
	Authorized(userID string) error
	AuthURL(ctx context.Context, userID, state string) (string, error)
	CompleteAuth(ctx context.Context, userID, code string) error
}

// ProfileHistory records recently used Anghami profiles. Implemented by repositories.ProfileRepository.
type ProfileHistory interface {
	Record(p models.ProfileData) (*models.ProfileEntry, error)
	Recent() ([]*models.ProfileEntry, error)
	Delete(id string) error
}

// PlaylistCache stores playlist listings per profile. Implemented by repositories.PlaylistRepository.
type PlaylistCache interface {
	tasks.PlaylistCache
	List(criteria map[string]any) ([]*models.PersistedPlaylist, error)
}

// MigrationHistory lists archived sessions. Implemented by repositories.MigrationRepository.
type MigrationHistory interface {
	List(criteria map[string]any) ([]*models.MigrationRecord, error)
	GetBySessionID(sessionID string) (*models.MigrationRecord, error)
}

// Options wires a [Server] to its collaborators.
type Options struct {
	Config       shared.ServerConfig
	Orchestrator *tasks.Orchestrator
	Extractor    services.Extractor
	Accounts     Accounts
	Profiles     ProfileHistory
	Playlists    PlaylistCache
	History      MigrationHistory
	Prefetch     tasks.PrefetchOpts
	Logger       *log.Logger
}

// Server is the ang2spot HTTP API.
type Server struct {
	cfg          shared.ServerConfig
	orchestrator *tasks.Orchestrator
	extractor    services.Extractor
	accounts     Accounts
	profiles     ProfileHistory
	playlists    PlaylistCache
	history      MigrationHistory
	prefetch     tasks.PrefetchOpts

	hub      *Hub
	states   *stateStore
	validate *validator.Validate
	logger   *log.Logger
	now      func() time.Time

	pruneEvery time.Duration

	mu      sync.RWMutex
	baseCtx context.Context
}

// New creates a server. Nil repositories disable the routes that need them.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	logger = shared.WithLogger(logger, "component", "server")

	return &Server{
		cfg:          opts.Config,
		orchestrator: opts.Orchestrator,
		extractor:    opts.Extractor,
		accounts:     opts.Accounts,
		profiles:     opts.Profiles,
		playlists:    opts.Playlists,
		history:      opts.History,
		prefetch:     opts.Prefetch,
		hub:          NewHub(time.Duration(opts.Config.PushInterval)*time.Second, logger),
		states:       newStateStore(stateTTL),
		validate:     newValidator(),
		logger:       logger,
		now:          time.Now,
		pruneEvery:   pruneInterval,
		baseCtx:      context.Background(),
	}
}

// Hub returns the websocket hub that pushes session snapshots.
func (s *Server) Hub() *Hub { return s.hub }

// sessionContext is the context migrations started over HTTP run under. It outlives the request.
func (s *Server) sessionContext() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.baseCtx
}

// Run serves the API on the configured address until ctx is cancelled, then shuts down gracefully and waits
// for running migrations to observe the cancellation.
func (s *Server) Run(ctx context.Context) error {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	unsubscribe := s.orchestrator.Store().Subscribe(s.hub.Publish)
	defer unsubscribe()

	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		s.pruneSessions(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		s.hub.Close()
		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	s.orchestrator.Wait()
	return err
}

// pruneSessions drops finished sessions from the in-memory store once they are older than the configured
// retention. Archived copies keep serving status requests.
func (s *Server) pruneSessions(ctx context.Context) {
	ttl := s.cfg.SessionRetention()
	if ttl <= 0 {
		return
	}

	ticker := time.NewTicker(min(ttl, s.pruneEvery))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ids := s.orchestrator.Store().Prune(s.now().Add(-ttl)); len(ids) > 0 {
				s.logger.Debug("pruned finished sessions", "count", len(ids))
			}
		}
	}
}
