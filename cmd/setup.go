package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/desertthunder/ang2spot/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the config template to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("creating config file", "path", r.configPath)
	if err := shared.CreateConfigFile(r.configPath); err != nil {
		return err
	}

	r.writePlain("✓ Config written to %s\n", r.configPath)
	r.writePlainln("Next steps:")
	r.writePlain("1. Set credentials.spotify.client_id and client_secret\n")
	r.writePlain("2. Run 'ang2spot setup database'\n")
	return nil
}

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("initializing database", "path", r.config.Database.Path)
	if err := r.open(); err != nil {
		return err
	}

	version, _, err := shared.CurrentVersion(r.db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	r.logger.Infof("setup complete for database: %v", r.config.Database.Path)
	r.writePlain("✓ Database ready at %s (schema version %d)\n", r.config.Database.Path, version)
	return nil
}

// SetupAnghami stores browser headers used for Anghami page requests.
//
// Accepts a cURL command copied from the browser and writes the headers as JSON.
func (r *Runner) SetupAnghami(ctx context.Context, cmd *cli.Command) error {
	curlCmd := cmd.String("curl")
	curlFile := cmd.String("curl-file")
	outputPath := cmd.String("output")

	if curlCmd == "" && curlFile == "" {
		return fmt.Errorf("%w: either --curl or --curl-file must be provided", shared.ErrMissingArgument)
	}

	if curlCmd != "" && curlFile != "" {
		return fmt.Errorf("%w: cannot specify both --curl and --curl-file", shared.ErrInvalidArgument)
	}

	var headers *shared.BrowserHeaders
	var err error

	if curlFile != "" {
		if headers, err = shared.ParseCurlFile(curlFile); err != nil {
			return fmt.Errorf("failed to parse cURL file: %w", err)
		}
		r.logger.Info("parsed cURL from file", "file", curlFile)
	} else {
		if headers, err = shared.ParseCurlCommand(curlCmd); err != nil {
			return fmt.Errorf("failed to parse cURL command: %w", err)
		}
		r.logger.Info("parsed cURL command")
	}

	if outputPath == "" {
		outputPath = r.config.Anghami.HeadersFile
	}
	if outputPath == "" {
		if outputPath, err = xdg.DataFile(filepath.Join(shared.AppName, "anghami_headers.json")); err != nil {
			return fmt.Errorf("failed to resolve headers path: %w", err)
		}
	}

	if err := shared.SaveHeaders(outputPath, headers); err != nil {
		return err
	}

	r.logger.Info("anghami headers saved", "path", outputPath)
	r.writePlain("✓ Anghami headers saved to %s\n", outputPath)
	if outputPath != r.config.Anghami.HeadersFile {
		r.writePlainln("Next steps:")
		r.writePlain("Update config.toml with: anghami.headers_file = \"%s\"\n", outputPath)
	}
	return nil
}
