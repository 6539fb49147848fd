// Package server exposes migrations over HTTP and handles Spotify OAuth callbacks.
//
// # API
//
// [Server.Handler] builds a chi router serving JSON endpoints for migrations, Anghami profiles and playlists,
// users, and Spotify authorization. Request bodies are decoded into structs validated with go-playground
// validator. Errors are written as [ErrorResponse] with the status derived from the wrapped sentinel error.
//
// Global middleware adds request ids, panic recovery, request logging, Prometheus metrics, and CORS. API
// routes are rate limited per client IP; /health, /metrics, and the websocket routes are not.
//
// # Progress Push
//
// The [Hub] follows [tasks.SessionStore] and writes every snapshot of a session to the websockets opened on
// /ws/{sessionID}. Delivery never blocks the migration: a slow client may miss intermediate snapshots but
// always receives the latest, and the connection closes after the terminal snapshot.
//
// # OAuth Callback Handler
//
// [OAuthHandler] serves a single CLI authorization on a temporary server built with [NewCallbackServer].
// The state parameter is checked, the code is exchanged, and the result is sent through a channel. Only the
// first callback is processed.
//
// The API server runs its own callback at /callback for flows started from /auth/spotify/{userID}; pending
// states expire after ten minutes and can be used once.
package server
