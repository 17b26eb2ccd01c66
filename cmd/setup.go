package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/tidal-mcp/internal/shared"
	"github.com/desertthunder/tidal-mcp/internal/ui"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the embedded example config to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if err := shared.CreateConfigFile(configPath); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", configPath)

	r.writePlain("%s\n", ui.Success("✓ Config written to "+configPath))
	r.writePlainln("Next steps:")
	r.writePlain("1. Set tidal.client_id (and client_secret) in %s\n", configPath)
	r.writePlain("2. Run 'tidal-mcp setup database'\n")
	return r.writePlain("3. Run 'tidal-mcp auth login'\n")
}

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := r.openDatabase(config)
	if err != nil {
		return err
	}
	defer db.Close()

	version, err := shared.CurrentVersion(db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	return r.writePlain("%s\n", ui.Success(fmt.Sprintf("✓ Database ready at %s (schema version %d)", config.Database.Path, version)))
}
