package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/bravo68web/qadeck/internal/injectable"
	"github.com/bravo68web/qadeck/internal/server"
	"github.com/bravo68web/qadeck/internal/transport/http/router"
	"github.com/bravo68web/qadeck/pkg/logger"
)

func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API and the proactive token refresher",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "migrate",
				Usage: "Apply database migrations before serving",
				Value: true,
			},
		},
		Action: serve,
	}
}

func serve(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log := initLogger(ctx, cfg).WithFields(logger.Component("serve"))
	defer logger.Close()

	db, err := openDatabase(ctx, cfg, cmd.Bool("migrate"))
	if err != nil {
		return err
	}
	defer db.Close()

	deps, err := injectable.LoadDependencies(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer deps.Close()

	if err := deps.LoadAuth(ctx, cfg.Auth); err != nil {
		return err
	}

	if cfg.Refresher.Enabled {
		if err := deps.TokenRefreshCron.Start(); err != nil {
			return err
		}
		defer deps.TokenRefreshCron.Stop()
	}

	s := server.New(cfg, db)
	router.NewRouter(s, deps).RegisterRoutes()

	log.Info("qadeck starting",
		logger.String("version", version),
		logger.String("addr", cfg.ServerAddress()),
		logger.Bool("refresher", cfg.Refresher.Enabled),
		logger.Bool("redis", cfg.Redis.Enabled),
	)
	if err := s.Run(ctx); err != nil {
		log.Error("HTTP server stopped", logger.Error(err))
		return err
	}
	log.Info("qadeck stopped")
	return nil
}
