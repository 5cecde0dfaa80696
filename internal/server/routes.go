package server

import (
	v1 "github.com/luwill/Claude-Code-Model-Router/internal/server/v1"
)

func (s *Server) setupRoutes() {
	healthHandler := v1.NewHealthHandler(s.registry)
	s.engine.GET("/health", healthHandler.Health)

	api := s.engine.Group("/v1")
	{
		messagesHandler := v1.NewMessagesHandler(s.router, s.registry)
		api.POST("/messages", messagesHandler.CreateMessage)
		api.POST("/messages/count_tokens", messagesHandler.CountTokens)

		modelsHandler := v1.NewModelsHandler(s.registry)
		api.GET("/models", modelsHandler.ListModels)
	}
}
