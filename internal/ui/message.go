package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/ang2spot/internal/models"
	"github.com/desertthunder/ang2spot/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgPlaylistsFetched MsgKind = iota
	MsgProgressUpdate
	MsgMigrationComplete
	MsgReportWritten
)

type playlistsPayload struct {
	playlists []models.PlaylistRecord
	err       error
}

type migrationPayload struct {
	session *models.MigrationSession
	err     error
}

type reportPayload struct {
	path string
	err  error
}

// playlistsFetchedMsg is the constructor for [MsgPlaylistsFetched]
func playlistsFetchedMsg(playlists []models.PlaylistRecord, err error) Msg {
	return Msg{kind: MsgPlaylistsFetched, data: playlistsPayload{playlists, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// migrationCompleteMsg is the constructor for [MsgMigrationComplete]
func migrationCompleteMsg(session *models.MigrationSession, err error) Msg {
	return Msg{kind: MsgMigrationComplete, data: migrationPayload{session, err}}
}

// reportWrittenMsg is the constructor for [MsgReportWritten]
func reportWrittenMsg(path string, err error) Msg {
	return Msg{kind: MsgReportWritten, data: reportPayload{path, err}}
}
