package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/medisync/registry/internal/handler/health"
	"github.com/medisync/registry/internal/handler/registry"
	"github.com/medisync/registry/internal/middleware"
)

type Router struct {
	engine    *gin.Engine
	registryH *registry.Handler
	healthH   *health.Handler
}

func NewRouter(registryH *registry.Handler, healthH *health.Handler) *Router {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(middleware.Logger())
	engine.Use(middleware.Recovery())

	return &Router{
		engine:    engine,
		registryH: registryH,
		healthH:   healthH,
	}
}

func (r *Router) Setup() {
	r.healthH.RegisterRoutes(r.engine)
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.engine.Group("/api/v1")
	r.registryH.RegisterRoutes(api)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
