// Package tasks migrates Anghami playlists to Spotify with real-time progress reporting.
//
// # Migration
//
// [Orchestrator.Run] drives one session through the selected playlists in order:
//
//  1. extracting : fetch the playlist and its tracks from Anghami
//  2. matching   : one Spotify search per track, scored by the [TrackMatcher]
//     - below-threshold or empty results are recorded as missing tracks, never retried
//  3. creating   : create the Spotify playlist and add matched tracks in batches
//
// Extraction, creation, and search failures are recorded per playlist and the run continues.
// Authentication failures, an open Spotify circuit breaker, and exhausted rate-limit retries end the
// session in the error state. Playlists already created are kept.
//
// [Orchestrator.Start] runs a session in the background and [Orchestrator.Stop] asks it to halt before its
// next playlist.
//
// # Session State
//
// The [SessionStore] holds one record per session. Only the owning run writes it, replacing the whole record
// after every track and playlist; readers and subscribers receive copies. Progress is tracks processed over
// the expected total and never decreases.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Prefetch
//
// [Orchestrator.Prefetch] extracts many playlists with a rate-limited worker pool and refreshes the playlist cache.
package tasks
