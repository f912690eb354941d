package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bravo68web/qadeck/internal/config"
	"github.com/bravo68web/qadeck/internal/infrastructure/database"
	"github.com/bravo68web/qadeck/pkg/logger"
)

// Server is the gin engine plus what Run needs to serve and shut down
type Server struct {
	*gin.Engine

	Config *config.Config
	DB     *database.Database
}

// New creates the gin engine. Middleware is attached by the router so the
// engine starts bare.
func New(cfg *config.Config, db *database.Database) *Server {
	switch cfg.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	return &Server{
		Engine: gin.New(),
		Config: cfg,
		DB:     db,
	}
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests for
// at most Server.ShutdownGrace.
func (s *Server) Run(ctx context.Context) error {
	log := logger.Get().WithFields(logger.Component("http-server"))

	srv := &http.Server{
		Addr:              s.Config.ServerAddress(),
		Handler:           s.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	grace := s.Config.Server.ShutdownGrace
	if grace <= 0 {
		grace = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	log.Info("Shutting down HTTP server", logger.Duration("grace", grace))
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
