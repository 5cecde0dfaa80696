package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/luwill/Claude-Code-Model-Router/internal/registry"
	"github.com/luwill/Claude-Code-Model-Router/internal/version"
)

type HealthHandler struct {
	registry *registry.Registry
}

func NewHealthHandler(reg *registry.Registry) *HealthHandler {
	return &HealthHandler{registry: reg}
}

// Health handles GET /health.
func (h *HealthHandler) Health(c *gin.Context) {
	models := make(map[string]string)
	for _, info := range h.registry.ListModels() {
		if info.Available {
			models[info.Name] = "available"
		} else {
			models[info.Name] = "no_api_key"
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        "healthy",
		"version":       version.AppVersion,
		"default_model": h.registry.DefaultModel(),
		"models":        models,
	})
}
