package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/ang2spot/internal/formatter"
	"github.com/desertthunder/ang2spot/internal/models"
	"github.com/desertthunder/ang2spot/internal/tasks"
)

const (
	logLines       = 6
	missingPreview = 10
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PlaylistListView ViewState = iota
	ConfirmView
	MigrationView
	ResultView
)

// PlaylistLister lists the playlists linked from an Anghami profile.
type PlaylistLister interface {
	GetPlaylists(ctx context.Context, profileURL string) ([]models.PlaylistRecord, error)
}

// Migrator runs a session in the foreground. Implemented by tasks.Orchestrator.
type Migrator interface {
	Create(userID string, playlistIDs []string) (*models.MigrationSession, error)
	Run(ctx context.Context, sessionID string, playlistIDs []string, progress chan<- tasks.ProgressUpdate) (*models.MigrationSession, error)
	Stop(sessionID string) error
}

// Snapshots reads the latest session snapshot. Implemented by tasks.SessionStore.
type Snapshots interface {
	Get(sessionID string) (*models.MigrationSession, error)
}

// Options configures a [Model].
type Options struct {
	Playlists  PlaylistLister
	Migrator   Migrator
	Sessions   Snapshots
	ProfileURL string
	UserID     string
	ReportDir  string
}

type migrationResult struct {
	session *models.MigrationSession
	err     error
}

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	opts         Options
	view         ViewState
	width        int
	height       int
	playlistList list.Model
	playlists    []models.PlaylistRecord
	marked       map[string]bool
	session      *models.MigrationSession
	progressChan <-chan tasks.ProgressUpdate
	done         <-chan migrationResult
	events       []string
	bar          progress.Model
	stopping     bool
	reportPath   string
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, opts Options) *Model {
	return &Model{
		ctx:    ctx,
		opts:   opts,
		view:   PlaylistListView,
		marked: make(map[string]bool),
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(50)),
		help:   help.New(),
		keys:   newKeyMap(),
	}
}

// Init initializes the TUI by fetching the profile's playlists.
func (m *Model) Init() tea.Cmd {
	return m.fetchPlaylists()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.playlists != nil {
			m.playlistList.SetSize(msg.Width-4, msg.Height-8)
		}
		if w := msg.Width - 8; w > 10 {
			m.bar.Width = min(w, 80)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case PlaylistListView:
			return m.handlePlaylistListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case MigrationView:
			return m.handleMigrationKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateList(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPlaylistsFetched:
		data := msg.data.(playlistsPayload)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		m.playlists = data.playlists
		if m.playlists == nil {
			m.playlists = []models.PlaylistRecord{}
		}
		m.playlistList = list.New(m.items(), list.NewDefaultDelegate(), 0, 0)
		m.playlistList.Title = "Anghami Playlists"
		if m.width > 0 {
			m.playlistList.SetSize(m.width-4, m.height-8)
		}
		return m, nil

	case MsgProgressUpdate:
		update := msg.data.(tasks.ProgressUpdate)
		m.pushEvent(update.Message)
		if m.opts.Sessions != nil && m.session != nil {
			if snap, err := m.opts.Sessions.Get(m.session.SessionID); err == nil {
				m.session = snap
			}
		}
		return m, waitForProgress(m.progressChan, m.done)

	case MsgMigrationComplete:
		data := msg.data.(migrationPayload)
		if data.session != nil {
			m.session = data.session
		}
		m.err = data.err
		m.progressChan, m.done = nil, nil
		m.view = ResultView
		return m, nil

	case MsgReportWritten:
		data := msg.data.(reportPayload)
		if data.err != nil {
			m.pushEvent(fmt.Sprintf("report failed: %v", data.err))
			return m, nil
		}
		m.reportPath = data.path
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view == PlaylistListView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case PlaylistListView:
		return m.renderPlaylistList()
	case ConfirmView:
		return m.renderConfirm()
	case MigrationView:
		return m.renderMigration()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handlePlaylistListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.playlistList.FilterState() == list.Filtering {
		return m.updateList(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case m.err != nil, m.playlists == nil:
		return m, nil
	case key.Matches(msg, m.keys.toggle):
		if pl, ok := m.playlistList.SelectedItem().(playlistItem); ok {
			m.marked[pl.playlist.ID] = !m.marked[pl.playlist.ID]
			return m, m.playlistList.SetItems(m.items())
		}
		return m, nil
	case key.Matches(msg, m.keys.all):
		all := len(m.selectedIDs()) < len(m.playlists)
		for _, pl := range m.playlists {
			m.marked[pl.ID] = all
		}
		return m, m.playlistList.SetItems(m.items())
	case key.Matches(msg, m.keys.enter):
		if len(m.selectedIDs()) == 0 {
			pl, ok := m.playlistList.SelectedItem().(playlistItem)
			if !ok {
				return m, nil
			}
			m.marked[pl.playlist.ID] = true
			m.playlistList.SetItems(m.items())
		}
		m.view = ConfirmView
		return m, nil
	}

	return m.updateList(msg)
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit), key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.back):
		m.view = PlaylistListView
		return m, nil
	case key.Matches(msg, m.keys.yes):
		return m, m.startMigration()
	}
	return m, nil
}

func (m *Model) handleMigrationKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.stop):
		m.requestStop()
		return m, nil
	case key.Matches(msg, m.keys.quit):
		m.requestStop()
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.export):
		return m, m.writeReport()
	case key.Matches(msg, m.keys.restart):
		m.view = PlaylistListView
		m.session = nil
		m.events = nil
		m.reportPath = ""
		m.stopping = false
		m.err = nil
		m.marked = make(map[string]bool)
		return m, m.playlistList.SetItems(m.items())
	}
	return m, nil
}

func (m *Model) updateList(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.view != PlaylistListView || m.playlists == nil {
		return m, nil
	}
	var cmd tea.Cmd
	m.playlistList, cmd = m.playlistList.Update(msg)
	return m, cmd
}

func (m *Model) items() []list.Item {
	items := make([]list.Item, len(m.playlists))
	for i, pl := range m.playlists {
		items[i] = playlistItem{playlist: pl, marked: m.marked[pl.ID]}
	}
	return items
}

// selectedIDs returns the marked playlists in listing order.
func (m *Model) selectedIDs() []string {
	var ids []string
	for _, pl := range m.playlists {
		if m.marked[pl.ID] {
			ids = append(ids, pl.ID)
		}
	}
	return ids
}

func (m *Model) selectedNames() []string {
	var names []string
	for _, pl := range m.playlists {
		if m.marked[pl.ID] {
			names = append(names, pl.Name)
		}
	}
	return names
}

func (m *Model) pushEvent(s string) {
	if s == "" {
		return
	}
	m.events = append(m.events, s)
	if len(m.events) > logLines {
		m.events = m.events[len(m.events)-logLines:]
	}
}

func (m *Model) requestStop() {
	if m.session == nil || m.stopping {
		return
	}
	m.stopping = true
	if err := m.opts.Migrator.Stop(m.session.SessionID); err != nil {
		m.pushEvent(fmt.Sprintf("stop failed: %v", err))
		return
	}
	m.pushEvent("Stop requested, finishing the current playlist...")
}

func (m *Model) fetchPlaylists() tea.Cmd {
	lister, ctx, profileURL := m.opts.Playlists, m.ctx, m.opts.ProfileURL
	return func() tea.Msg {
		playlists, err := lister.GetPlaylists(ctx, profileURL)
		return playlistsFetchedMsg(playlists, err)
	}
}

// startMigration creates the session synchronously so its id is known before the first update arrives.
func (m *Model) startMigration() tea.Cmd {
	ids := m.selectedIDs()
	snap, err := m.opts.Migrator.Create(m.opts.UserID, ids)
	if err != nil {
		m.session, m.err = nil, err
		m.view = ResultView
		return nil
	}

	updates := make(chan tasks.ProgressUpdate, 100)
	done := make(chan migrationResult, 1)
	m.session = snap
	m.progressChan, m.done = updates, done
	m.events = nil
	m.view = MigrationView

	migrator, ctx := m.opts.Migrator, m.ctx
	go func() {
		final, err := migrator.Run(ctx, snap.SessionID, ids, updates)
		done <- migrationResult{session: final, err: err}
		close(updates)
	}()

	return waitForProgress(updates, done)
}

func waitForProgress(updates <-chan tasks.ProgressUpdate, done <-chan migrationResult) tea.Cmd {
	return func() tea.Msg {
		if update, ok := <-updates; ok {
			return progressUpdateMsg(update)
		}
		res := <-done
		return migrationCompleteMsg(res.session, res.err)
	}
}

func (m *Model) writeReport() tea.Cmd {
	if m.session == nil {
		return nil
	}
	report, dir := formatter.NewReport(m.session), m.opts.ReportDir
	return func() tea.Msg {
		path, err := formatter.WriteReport(report, formatter.FormatMarkdown, dir, "")
		return reportWrittenMsg(path, err)
	}
}

func (m *Model) renderPlaylistList() string {
	if m.playlists == nil {
		return styles.muted.Render(fmt.Sprintf("Loading playlists from %s...", m.opts.ProfileURL))
	}
	helpKeys := []key.Binding{m.keys.toggle, m.keys.all, m.keys.enter, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.playlistList.View(), helpView)
}

func (m *Model) renderConfirm() string {
	names := m.selectedNames()
	title := styles.title.Render(fmt.Sprintf("Migrate %d playlists to Spotify?", len(names)))

	var b strings.Builder
	for _, n := range names {
		fmt.Fprintf(&b, "  • %s\n", n)
	}

	helpKeys := []key.Binding{m.keys.yes, m.keys.no}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n%s", title, b.String(), helpView)
}

func (m *Model) renderMigration() string {
	title := styles.title.Render("Migrating to Spotify")
	s := m.session
	if s == nil {
		return title
	}

	status := fmt.Sprintf("%s • playlists %d/%d • tracks matched %d/%d",
		s.Status, s.CompletedPlaylists, s.TotalPlaylists, s.MatchedTracks, s.TotalTracks)
	if s.CurrentPlaylist != "" {
		status += "\nCurrent: " + s.CurrentPlaylist
	}

	events := styles.muted.Render(strings.Join(m.events, "\n"))

	helpKeys := []key.Binding{m.keys.stop, m.keys.quit}
	if m.stopping {
		helpKeys = []key.Binding{m.keys.quit}
	}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n\n%s\n\n%s\n\n%s",
		title, m.bar.ViewAs(float64(s.Progress)/100), status, events, helpView)
}

func (m *Model) renderResult() string {
	s := m.session
	if s == nil {
		return styles.err.Render(fmt.Sprintf("Migration failed: %v\n\nPress r to restart, q to quit", m.err))
	}

	heading := fmt.Sprintf("Migration %s", s.Status)
	title := styles.status(heading, s.Status == models.StatusError, s.Status == models.StatusStopped)

	var b strings.Builder
	if s.Message != "" {
		fmt.Fprintf(&b, "%s\n", s.Message)
	}
	fmt.Fprintf(&b, "\nPlaylists: %d/%d • Tracks matched: %d/%d\n",
		s.CompletedPlaylists, s.TotalPlaylists, s.MatchedTracks, s.TotalTracks)

	for _, p := range s.Playlists {
		fmt.Fprintf(&b, "  ✓ %s (%d tracks) %s\n", p.Name, p.TracksAdded, styles.muted.Render(p.URL))
	}

	if n := len(s.MissingTracks); n > 0 {
		b.WriteString("\n" + styles.warn.Render(fmt.Sprintf("%d tracks not found on Spotify:", n)) + "\n")
		for i, mt := range s.MissingTracks {
			if i == missingPreview {
				fmt.Fprintf(&b, "  … and %d more\n", n-missingPreview)
				break
			}
			fmt.Fprintf(&b, "  • %s (%s)\n", mt.Track, mt.Playlist)
		}
	}
	for _, e := range s.Errors {
		b.WriteString(styles.err.Render("  ✗ "+e) + "\n")
	}

	if m.reportPath != "" {
		fmt.Fprintf(&b, "\nReport written to %s\n", m.reportPath)
	}

	helpKeys := []key.Binding{m.keys.export, m.keys.restart, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n%s", title, b.String(), helpView)
}
