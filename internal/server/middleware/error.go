package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/luwill/Claude-Code-Model-Router/internal/core/domain"
	"github.com/luwill/Claude-Code-Model-Router/pkg/anthropic"
)

// ErrorHandler converts errors attached by handlers into the wire error
// shape. This is the non-streaming half of the error mapping; streaming
// handlers serialize errors in-band before the response commits here.
func ErrorHandler(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		re := domain.AsRouterError(err)
		if re.Log != nil {
			logger.Error("Request failed",
				zap.String("kind", re.Kind),
				zap.Int("status", re.Status),
				zap.Error(re.Log),
			)
		}
		c.JSON(re.Status, re.Response())
		c.Abort()
	}
}

// NotFound serves the standard error shape for unknown routes.
func NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, anthropic.NewErrorResponse("not_found_error", "The requested resource was not found."))
}
