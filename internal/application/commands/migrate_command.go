package commands

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/bravo68web/qadeck/pkg/logger"
)

func MigrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create or update the token and note tables",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			initLogger(ctx, cfg)
			defer logger.Close()

			db, err := openDatabase(ctx, cfg, true)
			if err != nil {
				return err
			}
			defer db.Close()

			logger.Info("Database migrated", logger.String("driver", cfg.Database.Driver))
			return nil
		},
	}
}
