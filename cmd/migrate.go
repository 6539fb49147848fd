package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/ang2spot/internal/formatter"
	"github.com/desertthunder/ang2spot/internal/models"
	"github.com/desertthunder/ang2spot/internal/shared"
	"github.com/desertthunder/ang2spot/internal/tasks"
	"github.com/urfave/cli/v3"
)

// historyView is one line of migration history.
type historyView struct {
	SessionID     string        `json:"session_id"`
	UserID        string        `json:"user_id"`
	Status        models.Status `json:"status"`
	Playlists     int           `json:"playlists"`
	Created       int           `json:"created"`
	TotalTracks   int           `json:"total_tracks"`
	MatchedTracks int           `json:"matched_tracks"`
	MissingTracks int           `json:"missing_tracks"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    time.Time     `json:"finished_at"`
}

// MigrateRun migrates the selected playlists in the foreground, printing progress as it goes.
func (r *Runner) MigrateRun(ctx context.Context, cmd *cli.Command) error {
	userID := cmd.String("user")
	ids := cmd.StringSlice("playlist")
	profileURL := cmd.String("profile")

	var format formatter.Format
	if f := cmd.String("report"); f != "" {
		var err error
		if format, err = formatter.ParseFormat(f); err != nil {
			return err
		}
	}

	if err := r.open(); err != nil {
		return err
	}
	if r.destinations == nil {
		if err := r.accounts.Authorized(userID); err != nil {
			return err
		}
	}

	if len(ids) == 0 && profileURL != "" {
		playlists, err := r.extractor.GetPlaylists(ctx, profileURL)
		if err != nil {
			return err
		}
		for _, p := range playlists {
			ids = append(ids, p.ID)
		}
	}
	if len(ids) == 0 {
		return fmt.Errorf("%w: --playlist or --profile with at least one playlist", shared.ErrMissingArgument)
	}

	snap, err := r.orchestrator.Create(userID, ids)
	if err != nil {
		return err
	}

	r.logger.Info("starting migration", "session", snap.SessionID, "playlists", len(ids))
	r.writePlain("Starting migration %s...\n", snap.SessionID)
	r.writePlain("Playlists: %d\n", len(ids))

	progressCh := make(chan tasks.ProgressUpdate, 100)
	printed := r.printProgress(progressCh)

	final, runErr := r.orchestrator.Run(ctx, snap.SessionID, ids, progressCh)
	close(progressCh)
	<-printed

	if final == nil {
		return runErr
	}

	r.writePlain("\n")
	r.printSummary(final)

	if format != "" {
		path, err := formatter.WriteReport(formatter.NewReport(final), format, cmd.String("output"), "")
		if err != nil {
			return err
		}
		r.writePlain("\nReport written to %s\n", path)
	}
	return runErr
}

func (r *Runner) printSummary(s *models.MigrationSession) {
	r.writePlainHeader(fmt.Sprintf("Migration %s", s.Status))
	if s.Message != "" {
		r.writePlain("%s\n", s.Message)
	}
	r.writePlain("Playlists: %d/%d created\n", s.CreatedPlaylists, s.TotalPlaylists)

	rate := 0.0
	if s.TotalTracks > 0 {
		rate = float64(s.MatchedTracks) / float64(s.TotalTracks) * 100
	}
	r.writePlain("Tracks matched: %d/%d (%.1f%%)\n", s.MatchedTracks, s.TotalTracks, rate)

	for _, p := range s.Playlists {
		r.writePlain("  ✓ %s (%d tracks) %s\n", p.Name, p.TracksAdded, p.URL)
	}

	if len(s.MissingTracks) > 0 {
		r.writePlain("\nNot found on Spotify (%d):\n", len(s.MissingTracks))
		for _, mt := range s.MissingTracks {
			r.writePlain("  - %s (%s)\n", mt.Track, mt.Playlist)
		}
	}
	if len(s.Errors) > 0 {
		r.writePlain("\nErrors:\n")
		for _, e := range s.Errors {
			r.writePlain("  ✗ %s\n", e)
		}
	}
}

// MigrateHistory lists archived migrations, newest first.
func (r *Runner) MigrateHistory(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	records, err := r.migrations.List(map[string]any{
		"user_id": cmd.String("user"),
		"status":  cmd.String("status"),
		"limit":   cmd.Int("limit"),
	})
	if err != nil {
		return err
	}

	views := make([]historyView, 0, len(records))
	for _, rec := range records {
		s := rec.Snapshot()
		views = append(views, historyView{
			SessionID:     s.SessionID,
			UserID:        s.UserID,
			Status:        s.Status,
			Playlists:     s.TotalPlaylists,
			Created:       s.CreatedPlaylists,
			TotalTracks:   s.TotalTracks,
			MatchedTracks: s.MatchedTracks,
			MissingTracks: len(s.MissingTracks),
			StartedAt:     s.StartedAt,
			FinishedAt:    rec.FinishedAt(),
		})
	}

	if cmd.Bool("json") {
		return r.writeJSON(views, true)
	}

	if len(views) == 0 {
		return r.writePlain("No migrations found.\n")
	}
	for _, v := range views {
		r.writePlain("%s  %-9s  %s  playlists %d/%d  tracks %d/%d\n",
			v.FinishedAt.Local().Format("2006-01-02 15:04"), v.Status, v.SessionID,
			v.Created, v.Playlists, v.MatchedTracks, v.TotalTracks)
	}
	return nil
}

// MigrateReport exports the missing tracks report of an archived migration.
func (r *Runner) MigrateReport(ctx context.Context, cmd *cli.Command) error {
	sessionID := cmd.StringArg("session")
	if sessionID == "" {
		return fmt.Errorf("%w: session id", shared.ErrMissingArgument)
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	if err := r.open(); err != nil {
		return err
	}

	rec, err := r.migrations.GetBySessionID(sessionID)
	if err != nil {
		return err
	}
	report := formatter.NewReportFromRecord(rec)

	if dir := cmd.String("output"); dir != "" {
		path, err := formatter.WriteReport(report, format, dir, "")
		if err != nil {
			return err
		}
		return r.writePlain("✓ Report written to %s\n", path)
	}

	data, err := formatter.Export(report, format)
	if err != nil {
		return err
	}
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
