package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap/zapcore"

	"github.com/bravo68web/qadeck/internal/config"
	"github.com/bravo68web/qadeck/internal/infrastructure/database"
	"github.com/bravo68web/qadeck/internal/infrastructure/otel"
	"github.com/bravo68web/qadeck/pkg/logger"
)

// version is stamped at build time with -ldflags "-X ...commands.version=..."
var version = "dev"

// loadConfig reads the file named by the root --config flag
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, cli.Exit(err.Error(), 2)
	}
	return cfg, nil
}

// initLogger installs the global logger. When OTLP export is enabled the
// exporter is tee'd next to the console and closed with the logger.
func initLogger(ctx context.Context, cfg *config.Config) *logger.Logger {
	logCfg := &logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Development: cfg.Logging.Development,
		AddCaller:   true,
	}

	if !cfg.OTEL.Enabled {
		return logger.Init(logCfg)
	}

	provider, err := otel.NewProvider(ctx, otel.Config{
		Enabled:        true,
		Endpoint:       cfg.OTEL.Endpoint,
		ServiceName:    cfg.OTEL.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.OTEL.Environment,
		Insecure:       cfg.OTEL.Insecure,
		UseHTTP:        cfg.OTEL.UseHTTP,
		Headers:        cfg.OTEL.Headers,
	})
	if err != nil {
		l := logger.Init(logCfg)
		l.Warn("OTLP export disabled", logger.Error(err))
		return l
	}

	level := zapcore.InfoLevel
	_ = level.UnmarshalText([]byte(cfg.Logging.Level))
	return logger.Init(logCfg, otel.NewZapCore(provider, level)).AttachClosers(provider)
}

// openDatabase connects and, when migrate is set, brings the schema up to date
func openDatabase(ctx context.Context, cfg *config.Config, migrate bool) (*database.Database, error) {
	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if migrate {
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}
	return db, nil
}
