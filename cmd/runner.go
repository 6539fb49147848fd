package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ang2spot/internal/accounts"
	"github.com/desertthunder/ang2spot/internal/matcher"
	"github.com/desertthunder/ang2spot/internal/repositories"
	"github.com/desertthunder/ang2spot/internal/services"
	"github.com/desertthunder/ang2spot/internal/shared"
	"github.com/desertthunder/ang2spot/internal/tasks"
	"github.com/desertthunder/ang2spot/internal/vault"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Storage and services are opened lazily by [Runner.open] so that `setup config` works before a
// configuration or database exists.
type Runner struct {
	config       *shared.Config
	configPath   string
	db           *sql.DB
	extractor    services.Extractor
	destinations tasks.DestinationFactory
	logger       *log.Logger
	output       io.Writer

	users        *repositories.UserRepository
	playlists    *repositories.PlaylistRepository
	profiles     *repositories.ProfileRepository
	migrations   *repositories.MigrationRepository
	accounts     *accounts.Manager
	orchestrator *tasks.Orchestrator
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config       *shared.Config
	ConfigPath   string
	DB           *sql.DB
	Extractor    services.Extractor
	Destinations tasks.DestinationFactory // overrides the per-user Spotify clients from accounts
	Logger       *log.Logger
	Output       io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:       opts.Config,
		configPath:   opts.ConfigPath,
		db:           opts.DB,
		extractor:    opts.Extractor,
		destinations: opts.Destinations,
		logger:       opts.Logger,
		output:       opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, userCommand, anghamiCommand, migrateCommand, serveCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before loads the configuration named by the root --config flag. Missing files fall back to defaults.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}
	if cmd.IsSet("config") || r.configPath == "" {
		r.configPath = cmd.String("config")
	}
	if r.config != nil {
		return ctx, nil
	}

	config, err := shared.LoadConfig(r.configPath)
	switch {
	case errors.Is(err, shared.ErrMissingConfig):
		r.logger.Debug("config file not found, using defaults", "path", r.configPath)
		config = shared.DefaultConfig()
	case err != nil:
		return ctx, err
	default:
		r.logger.Debug("loaded config", "path", r.configPath)
	}

	if err := config.ResolvePaths(); err != nil {
		return ctx, err
	}
	r.config = config
	return ctx, nil
}

// After releases the database handle.
func (r *Runner) After(ctx context.Context, cmd *cli.Command) error {
	return r.Close()
}

// Close closes the database if it was opened. A later command opens it again.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db, r.orchestrator = nil, nil
	return err
}

// SetLogger replaces the logger. Call before the first command opens its dependencies.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// open connects storage, the vault, and the services a command needs. It is idempotent.
func (r *Runner) open() error {
	if r.orchestrator != nil {
		return nil
	}
	if r.config == nil {
		r.config = shared.DefaultConfig()
		if err := r.config.ResolvePaths(); err != nil {
			return err
		}
	}
	config := r.config

	if r.db == nil {
		db, err := shared.OpenDatabase(config.Database)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		r.db = db
	}

	r.users = repositories.NewUserRepository(r.db)
	r.playlists = repositories.NewPlaylistRepository(r.db)
	r.profiles = repositories.NewProfileRepository(r.db)
	r.migrations = repositories.NewMigrationRepository(r.db)

	v, err := vault.Open(config.Vault.KeyFile, r.users)
	if err != nil {
		return fmt.Errorf("failed to open vault: %w", err)
	}
	r.accounts = accounts.New(r.users, v, config.Credentials.Spotify.RedirectURI, r.logger)

	if r.extractor == nil {
		headers, err := shared.LoadHeaders(config.Anghami.HeadersFile)
		if err != nil {
			return err
		}
		api := services.NewAPIService(config.Anghami.BaseURL, &http.Client{
			Timeout: time.Duration(config.Anghami.Timeout) * time.Second,
		})
		api.SetHeaders(headers)
		r.extractor = services.NewAnghamiService(api, r.logger)
	}

	destinations := r.destinations
	if destinations == nil {
		destinations = r.accounts.Destination
	}

	m := matcher.New(matcher.Options{
		Threshold:    config.Matching.Threshold,
		TieEpsilon:   config.Matching.TieEpsilon,
		IncludeAlbum: config.Matching.IncludeAlbum,
	})

	r.orchestrator = tasks.NewOrchestrator(r.extractor, destinations, m,
		tasks.WithArchive(r.migrations),
		tasks.WithTrackCounts(r.playlists),
		tasks.WithBatchSize(config.Migration.BatchSize),
		tasks.WithSearchLimit(config.Matching.SearchLimit),
		tasks.WithPublicPlaylists(config.Migration.PublicPlaylists),
		tasks.WithLogger(r.logger),
	)
	return nil
}

func (r *Runner) prefetchOpts(profileURL string) tasks.PrefetchOpts {
	return tasks.PrefetchOpts{
		ProfileURL: profileURL,
		NumWorkers: r.config.Migration.PrefetchWorkers,
		RateLimit:  r.config.Migration.PrefetchRate,
	}
}

// printProgress writes updates until the channel is closed, then closes the returned channel.
func (r *Runner) printProgress(updates <-chan tasks.ProgressUpdate) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range updates {
			switch update.Phase {
			case tasks.Extracting:
				r.writePlain("\n📥 %s\n", update.Message)
			case tasks.Matching:
				r.writePlain("   %s\n", update.Message)
			case tasks.Creating:
				r.writePlain("📝 %s\n", update.Message)
			case tasks.Prefetch:
				r.writePlain("%s\n", update.Message)
			}
		}
	}()
	return done
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
