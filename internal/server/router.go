package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler builds the API router.
//
// Middleware is applied in order: request id, real ip, panic recovery, logging, metrics, CORS, then the per-IP
// rate limit. Health, metrics, and websocket routes are not rate limited.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(s.logger))
	r.Use(instrument)
	r.Use(corsMiddleware(s.cfg.AllowedOrigins))

	r.Get("/health", s.health)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/ws/{sessionID}", s.sessionSocket)
	r.Get("/migrate/ws/{sessionID}", s.sessionSocket)

	r.Group(func(r chi.Router) {
		r.Use(rateLimit(s.cfg.RateLimitRequests, s.cfg.Window()))

		r.Route("/migrate", func(r chi.Router) {
			r.Post("/", s.startMigration)
			r.Get("/status/{sessionID}", s.migrationStatus)
			r.Post("/{sessionID}/stop", s.stopMigration)
			r.Get("/history", s.migrationHistory)
		})

		r.Route("/profiles", func(r chi.Router) {
			r.Post("/validate", s.validateProfile)
			r.Get("/history", s.profileHistory)
			r.Post("/confirm", s.confirmProfile)
			r.Delete("/{profileID}", s.deleteProfile)
		})

		r.Route("/playlists", func(r chi.Router) {
			r.Get("/", s.listPlaylists)
			r.Post("/refresh", s.refreshPlaylists)
			r.Get("/{playlistID}", s.playlistDetails)
		})

		r.Route("/users", func(r chi.Router) {
			r.Post("/", s.createUser)
			r.Delete("/{userID}", s.deleteUser)
		})

		r.Get("/auth/spotify/{userID}", s.authorizeSpotify)
		r.Get("/callback", s.spotifyCallback)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found", r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", r.Method+" "+r.URL.Path)
	})

	return r
}

// NewCallbackServer serves h on addr for a one-off OAuth callback.
func NewCallbackServer(addr string, h Handler, middleware ...Middleware) *http.Server {
	r := chi.NewRouter()
	for _, m := range middleware {
		r.Use(m)
	}
	for _, route := range h.Routes() {
		r.Handle(route, h)
	}
	return &http.Server{Addr: addr, Handler: r}
}
