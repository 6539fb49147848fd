// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

// setupCommand handles first-run configuration.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a config.toml template to the --config path",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize the database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:  "anghami",
				Usage: "Import browser headers for Anghami from a cURL command",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "curl",
						Usage: "cURL command copied from the browser's network tab",
					},
					&cli.StringFlag{
						Name:  "curl-file",
						Usage: "File containing the cURL command",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Headers file path (default: anghami.headers_file or the data directory)",
					},
				},
				Action: r.SetupAnghami,
			},
		},
	}
}

// userCommand manages users and their Spotify applications.
func userCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "user",
		Aliases: []string{"users"},
		Usage:   "Manage users and Spotify authorization",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Register a Spotify application for a user",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "name",
						Usage: "Display name",
					},
					&cli.StringFlag{
						Name:    "client-id",
						Usage:   "Spotify client id (default: credentials.spotify.client_id)",
						Sources: cli.EnvVars("ANG2SPOT_SPOTIFY_CLIENT_ID"),
					},
					&cli.StringFlag{
						Name:    "client-secret",
						Usage:   "Spotify client secret (default: credentials.spotify.client_secret)",
						Sources: cli.EnvVars("ANG2SPOT_SPOTIFY_CLIENT_SECRET"),
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.UserCreate,
			},
			{
				Name:  "list",
				Usage: "List registered users",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.UserList,
			},
			{
				Name:  "remove",
				Usage: "Remove a user and their sealed credentials",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Action: r.UserRemove,
			},
			{
				Name:  "auth",
				Usage: "Authorize Spotify for a user using OAuth2",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the browser callback",
						Value: 2 * time.Minute,
					},
				},
				Action: r.UserAuth,
			},
		},
	}
}

// anghamiCommand reads profiles and playlists from Anghami.
func anghamiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "anghami",
		Aliases: []string{"ang"},
		Usage:   "Anghami profile and playlist operations",
		Commands: []*cli.Command{
			{
				Name:  "profile",
				Usage: "Validate a public profile URL",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "url"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.AnghamiProfile,
			},
			{
				Name:  "profiles",
				Usage: "List recently used profiles",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.AnghamiProfiles,
			},
			{
				Name:  "playlists",
				Usage: "List the playlists linked from a profile",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "url"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				},
				Action: r.AnghamiPlaylists,
			},
			{
				Name:  "playlist",
				Usage: "Show the tracks of a playlist",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "id"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.AnghamiPlaylist,
			},
			{
				Name:  "sync",
				Usage: "Extract every playlist of a profile concurrently and refresh the cache",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "url"},
				},
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent extractions (default: migration.prefetch_workers)",
					},
				},
				Action: r.AnghamiSync,
			},
		},
	}
}

// migrateCommand runs and inspects migrations.
func migrateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Migrate Anghami playlists to Spotify",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Migrate playlists in the foreground",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "user",
						Aliases:  []string{"u"},
						Usage:    "User id whose Spotify account receives the playlists",
						Required: true,
					},
					&cli.StringSliceFlag{
						Name:    "playlist",
						Aliases: []string{"p"},
						Usage:   "Anghami playlist id (repeatable)",
					},
					&cli.StringFlag{
						Name:  "profile",
						Usage: "Migrate every playlist linked from this profile",
					},
					&cli.StringFlag{
						Name:  "report",
						Usage: "Write a missing tracks report in this format (json, csv, markdown, txt)",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Report directory",
						Value:   ".",
					},
				},
				Action: r.MigrateRun,
			},
			{
				Name:  "history",
				Usage: "List finished migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "user",
						Usage: "Only show this user's migrations",
					},
					&cli.StringFlag{
						Name:  "status",
						Usage: "Only show migrations with this final status",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of migrations to return",
						Value: 20,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.MigrateHistory,
			},
			{
				Name:  "report",
				Usage: "Export the missing tracks report of a finished migration",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "session"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Report format (json, csv, markdown, txt)",
						Value:   "markdown",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Directory to write the report to; prints to stdout when empty",
					},
				},
				Action: r.MigrateReport,
			},
		},
	}
}

// serveCommand runs the HTTP API.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API with websocket progress",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (default: server.host)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Listen port (default: server.port)",
			},
		},
		Action: r.Serve,
	}
}

// tuiCommand launches the interactive migration UI.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tui",
		Usage: "Pick playlists and watch the migration in an interactive terminal UI",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "user",
				Aliases:  []string{"u"},
				Usage:    "User id whose Spotify account receives the playlists",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "profile",
				Usage:    "Anghami profile URL",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "reports",
				Usage: "Directory for exported reports",
				Value: ".",
			},
		},
		Action: r.TUI,
	}
}
