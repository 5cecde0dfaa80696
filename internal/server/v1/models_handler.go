package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/luwill/Claude-Code-Model-Router/internal/registry"
)

type ModelsHandler struct {
	registry *registry.Registry
}

func NewModelsHandler(reg *registry.Registry) *ModelsHandler {
	return &ModelsHandler{registry: reg}
}

// ListModels handles GET /v1/models.
func (h *ModelsHandler) ListModels(c *gin.Context) {
	infos := h.registry.ListModels()

	data := make([]gin.H, 0, len(infos))
	for _, info := range infos {
		data = append(data, gin.H{
			"id":           info.Name,
			"object":       "model",
			"display_name": info.DisplayName,
			"provider":     info.Provider,
			"model_id":     info.ModelID,
			"available":    info.Available,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"object": "list",
		"data":   data,
	})
}
