package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bravo68web/qadeck/internal/transport/http/handler"
)

func (r *Router) healthRouter() {
	r.server.GET("/healthz", handler.HealthHandler(r.Deps.DB))
	r.server.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
