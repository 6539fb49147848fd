package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/adrg/xdg"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/ang2spot/internal/services"
	"github.com/desertthunder/ang2spot/internal/shared"
	"github.com/desertthunder/ang2spot/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI for picking and migrating playlists.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	userID := cmd.String("user")
	profileURL := cmd.String("profile")
	if _, err := services.ParseProfileURL(profileURL); err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	logPath, err := xdg.StateFile(filepath.Join(shared.AppName, "tui.log"))
	if err != nil {
		return fmt.Errorf("failed to resolve log path: %w", err)
	}
	fileLogger, err := shared.NewFileLogger(logPath)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	if err := r.open(); err != nil {
		return err
	}
	if r.destinations == nil {
		if err := r.accounts.Authorized(userID); err != nil {
			return err
		}
	}

	model := ui.NewModel(ctx, ui.Options{
		Playlists:  r.extractor,
		Migrator:   r.orchestrator,
		Sessions:   r.orchestrator.Store(),
		ProfileURL: profileURL,
		UserID:     userID,
		ReportDir:  cmd.String("reports"),
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
