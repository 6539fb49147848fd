// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI walks through a single migration:
//  1. [PlaylistListView] : Browse the Anghami playlists of a profile and mark the ones to migrate
//  2. [ConfirmView] : Confirm the selection
//  3. [MigrationView] : Monitor the session with a progress bar and the latest events
//  4. [ResultView] : Created playlists, missing tracks, and an optional report export
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the Orchestrator and each update refreshes the session snapshot,
// so the bar always reflects the same counters the HTTP API reports.
//
// Keyboard navigation uses vim-style bindings (j/k, space, enter, esc, y/n, s, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
