package router

import (
	"github.com/bravo68web/qadeck/internal/injectable"
	"github.com/bravo68web/qadeck/internal/server"
	"github.com/bravo68web/qadeck/internal/transport/http/middleware"
)

// Router binds handlers built from Deps onto the server
type Router struct {
	server *server.Server
	Deps   *injectable.Dependencies
}

// NewRouter creates a new Router instance. deps must have Auth loaded.
func NewRouter(s *server.Server, deps *injectable.Dependencies) *Router {
	return &Router{
		server: s,
		Deps:   deps,
	}
}

// RegisterRoutes sets up the routes and middleware for the server.
func (r *Router) RegisterRoutes() {
	r.server.Use(
		middleware.LoggerMiddleware(),
		middleware.RecoveryMiddleware(),
		middleware.CORSMiddleware(r.server.Config.Server.AllowedOrigins),
	)

	r.healthRouter()
	r.basecampRouter()
	r.noteRouter()
}
