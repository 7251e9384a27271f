package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/cuefix/internal/formatter"
	"github.com/desertthunder/cuefix/internal/shared"
)

// Setup creates the config file when missing, then initializes the database and runs migrations.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	var config *shared.Config
	if _, err := os.Stat(configPath); err == nil {
		if config, err = shared.LoadConfig(configPath); err != nil {
			r.logger.Warn("failed to load config, using defaults", "error", err)
			config = shared.DefaultConfig()
		}
	} else {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateConfigFile(configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
			config = shared.DefaultConfig()
		} else {
			r.logger.Info("config file created", "path", configPath)
			if config, err = shared.LoadConfig(configPath); err != nil {
				r.logger.Warn("failed to load created config, using defaults", "error", err)
				config = shared.DefaultConfig()
			}
		}
	}

	if err := r.Close(); err != nil {
		r.logger.Warn("failed to close previous database", "error", err)
	}
	r.config = config

	r.logger.Info("initializing database", "path", config.Database.Path)
	if err := r.openLibrary(); err != nil {
		return err
	}

	lock := shared.NewFileLock(config.LibraryLockPath())
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrLockFailed, err)
	}
	if ok {
		if err := lock.Unlock(); err != nil {
			return fmt.Errorf("%w: %v", shared.ErrLockFailed, err)
		}
	} else {
		r.logger.Warn("library lock is held by another process", "path", lock.Path())
	}

	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	r.writePlain("%s Library ready at %s\n", formatter.OK("✓"), config.Database.Path)
	r.writePlain("Next: cuefix playlist create NAME && cuefix playlist add NAME PATH...\n")
	return nil
}
