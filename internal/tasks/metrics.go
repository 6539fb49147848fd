package tasks

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsTotal counts finished migration sessions by final status.
	SessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ang2spot",
			Name:      "migration_sessions_total",
			Help:      "Migration sessions by final status",
		},
		[]string{"status"},
	)

	// ActiveSessions is the number of migrations currently running.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ang2spot",
			Name:      "migration_sessions_active",
			Help:      "Migration sessions currently running",
		},
	)

	// TracksTotal counts searched tracks by result (matched, missing).
	TracksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ang2spot",
			Name:      "migration_tracks_total",
			Help:      "Source tracks searched on Spotify by match result",
		},
		[]string{"result"},
	)

	// PlaylistsCreated counts playlists created on Spotify.
	PlaylistsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ang2spot",
			Name:      "migration_playlists_created_total",
			Help:      "Playlists created on Spotify",
		},
	)

	// PrefetchTotal counts Anghami playlist prefetches by outcome.
	PrefetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ang2spot",
			Name:      "prefetch_playlists_total",
			Help:      "Anghami playlists fetched into the cache by outcome",
		},
		[]string{"outcome"},
	)
)
