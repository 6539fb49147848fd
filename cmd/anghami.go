package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/ang2spot/internal/models"
	"github.com/desertthunder/ang2spot/internal/services"
	"github.com/desertthunder/ang2spot/internal/shared"
	"github.com/desertthunder/ang2spot/internal/tasks"
	"github.com/urfave/cli/v3"
)

// AnghamiProfile validates a profile URL and records it in the profile history.
func (r *Runner) AnghamiProfile(ctx context.Context, cmd *cli.Command) error {
	profileURL := cmd.StringArg("url")
	if profileURL == "" {
		return fmt.Errorf("%w: profile url", shared.ErrMissingArgument)
	}
	if err := r.open(); err != nil {
		return err
	}

	profile, err := r.extractor.ValidateProfile(ctx, profileURL)
	if err != nil {
		return err
	}
	if profile.IsValid {
		if _, err := r.profiles.Record(*profile); err != nil {
			r.logger.Warn("failed to record profile", "url", profile.ProfileURL, "error", err)
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(profile, true)
	}

	if !profile.IsValid {
		return fmt.Errorf("%w: %s", shared.ErrInvalidInput, profile.ErrorMessage)
	}

	r.writePlain("✓ %s\n", profile.DisplayName)
	r.writePlain("   URL: %s\n", profile.ProfileURL)
	if profile.FollowerCount > 0 {
		r.writePlain("   Followers: %d\n", profile.FollowerCount)
	}
	return nil
}

// AnghamiProfiles lists recently used profiles, most recent first.
func (r *Runner) AnghamiProfiles(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	entries, err := r.profiles.Recent()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		profiles := make([]models.ProfileData, 0, len(entries))
		for _, e := range entries {
			profiles = append(profiles, e.Profile())
		}
		return r.writeJSON(profiles, true)
	}

	if len(entries) == 0 {
		return r.writePlain("No profiles used yet.\n")
	}
	for i, e := range entries {
		p := e.Profile()
		r.writePlain("%d. %s\n", i+1, p.DisplayName)
		r.writePlain("   URL: %s\n", p.ProfileURL)
		r.writePlain("   Used: %d times, last %s\n", e.UsageCount(), e.LastUsed().Format("2006-01-02 15:04"))
	}
	return nil
}

// AnghamiPlaylists lists a profile's playlists and refreshes the playlist cache.
func (r *Runner) AnghamiPlaylists(ctx context.Context, cmd *cli.Command) error {
	profileURL := cmd.StringArg("url")
	if profileURL == "" {
		return fmt.Errorf("%w: profile url", shared.ErrMissingArgument)
	}
	if err := r.open(); err != nil {
		return err
	}

	r.logger.Info("listing anghami playlists", "profile", profileURL)
	playlists, err := r.extractor.GetPlaylists(ctx, profileURL)
	if err != nil {
		return err
	}

	for _, p := range playlists {
		if _, err := r.playlists.Upsert(profileURL, p); err != nil {
			r.logger.Warn("failed to cache playlist", "id", p.ID, "error", err)
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, cmd.Bool("pretty"))
	}

	if len(playlists) == 0 {
		return r.writePlain("No public playlists found on this profile.\n")
	}

	r.writePlain("Found %d playlists:\n\n", len(playlists))
	for i, p := range playlists {
		r.writePlain("%d. %s\n", i+1, p.Name)
		r.writePlain("   ID: %s\n", p.ID)
		if p.TrackCount > 0 {
			r.writePlain("   Tracks: %d\n", p.TrackCount)
		}
		if p.Owner != "" {
			r.writePlain("   Owner: %s\n", p.Owner)
		}
		if p.IsFollowed {
			r.writePlain("   Followed\n")
		}
		r.writePlain("\n")
	}
	return nil
}

// AnghamiPlaylist prints a playlist's tracks.
func (r *Runner) AnghamiPlaylist(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}
	if err := r.open(); err != nil {
		return err
	}

	playlist, err := r.extractor.GetPlaylist(ctx, id)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlist, cmd.Bool("pretty"))
	}

	r.writePlain("Playlist: %s\n", playlist.Name)
	if playlist.Description != "" {
		r.writePlain("Description: %s\n", playlist.Description)
	}
	r.writePlain("Tracks: %d\n\n", len(playlist.Tracks))
	for i, t := range playlist.Tracks {
		r.writePlain("%d. %s [%s]\n", i+1, t, shared.FormatDuration(t.DurationSeconds))
		if t.Album != "" {
			r.writePlain("   Album: %s\n", t.Album)
		}
	}
	return nil
}

// AnghamiSync extracts every playlist of a profile with a worker pool and refreshes cached track counts.
func (r *Runner) AnghamiSync(ctx context.Context, cmd *cli.Command) error {
	profileURL := cmd.StringArg("url")
	if profileURL == "" {
		return fmt.Errorf("%w: profile url", shared.ErrMissingArgument)
	}
	if _, err := services.ParseProfileURL(profileURL); err != nil {
		return err
	}
	if err := r.open(); err != nil {
		return err
	}

	playlists, err := r.extractor.GetPlaylists(ctx, profileURL)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(playlists))
	for _, p := range playlists {
		ids = append(ids, p.ID)
	}

	opts := r.prefetchOpts(profileURL)
	if n := cmd.Int("workers"); n > 0 {
		opts.NumWorkers = n
	}

	r.writePlain("Syncing %d playlists...\n", len(ids))
	progressCh := make(chan tasks.ProgressUpdate, 100)
	printed := r.printProgress(progressCh)

	summary, err := r.orchestrator.Prefetch(ctx, progressCh, r.playlists, ids, opts)
	close(progressCh)
	<-printed

	if summary != nil {
		r.writePlain("\n")
		r.writePlainHeader("Sync Complete")
		r.writePlain("Playlists: %d/%d extracted\n", summary.Succeeded, summary.TotalPlaylists)
		if summary.Failed > 0 {
			r.writePlain("\nFailed:\n")
			for _, res := range summary.Results {
				if res.Error != nil {
					r.writePlain("  - %s: %v\n", res.PlaylistID, res.Error)
				}
			}
		}
	}
	return err
}
