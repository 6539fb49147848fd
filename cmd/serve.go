package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/ang2spot/internal/server"
	"github.com/urfave/cli/v3"
)

// Serve runs the HTTP API until interrupted. Running migrations are cancelled on shutdown and archived
// with their partial results.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.open(); err != nil {
		return err
	}

	cfg := r.config.Server
	if host := cmd.String("host"); host != "" {
		cfg.Host = host
	}
	if port := cmd.Int("port"); port > 0 {
		cfg.Port = port
	}

	srv := server.New(server.Options{
		Config:       cfg,
		Orchestrator: r.orchestrator,
		Extractor:    r.extractor,
		Accounts:     r.accounts,
		Profiles:     r.profiles,
		Playlists:    r.playlists,
		History:      r.migrations,
		Prefetch:     r.prefetchOpts(""),
		Logger:       r.logger,
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r.writePlain("→ Serving ang2spot API on http://%s\n", cfg.Addr())
	return srv.Run(ctx)
}
