// Package server wires the gin engine, middleware and route handlers.
package server

import (
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/luwill/Claude-Code-Model-Router/internal/registry"
	"github.com/luwill/Claude-Code-Model-Router/internal/router"
	"github.com/luwill/Claude-Code-Model-Router/internal/server/middleware"
	"github.com/luwill/Claude-Code-Model-Router/internal/server/validator"
)

const serviceName = "claude-code-model-router"

type Server struct {
	engine   *gin.Engine
	logger   *zap.Logger
	registry *registry.Registry
	router   *router.Router
}

func New(reg *registry.Registry, rt *router.Router, logger *zap.Logger) *Server {
	settings := reg.Settings()
	if settings.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	validator.Init()

	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(middleware.CORS())
	if settings.EnableLogging {
		engine.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	}
	engine.Use(ginzap.RecoveryWithZap(logger, true))
	if settings.EnableTracing {
		engine.Use(middleware.Tracing(serviceName))
	}
	engine.Use(middleware.ErrorHandler(logger))
	engine.NoRoute(middleware.NotFound)

	s := &Server{
		engine:   engine,
		logger:   logger,
		registry: reg,
		router:   rt,
	}
	s.setupRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}
