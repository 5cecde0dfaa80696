package v1

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/luwill/Claude-Code-Model-Router/internal/core/domain"
	"github.com/luwill/Claude-Code-Model-Router/internal/registry"
	"github.com/luwill/Claude-Code-Model-Router/internal/router"
	"github.com/luwill/Claude-Code-Model-Router/internal/server/validator"
	"github.com/luwill/Claude-Code-Model-Router/pkg/anthropic"
)

// modelHeader tells callers which configured model served the request.
const modelHeader = "X-Model-Router"

type MessagesHandler struct {
	router   *router.Router
	registry *registry.Registry
}

func NewMessagesHandler(rt *router.Router, reg *registry.Registry) *MessagesHandler {
	return &MessagesHandler{router: rt, registry: reg}
}

// CreateMessage handles POST /v1/messages, the main gateway endpoint.
func (h *MessagesHandler) CreateMessage(c *gin.Context) {
	var req anthropic.MessagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(domain.InvalidRequestError(validator.Describe(err)))
		return
	}

	if req.Model == "" {
		req.Model = h.registry.DefaultModel()
	}

	if req.Stream {
		h.streamMessage(c, &req)
		return
	}

	resp, err := h.router.Forward(c.Request.Context(), &req, c.Request.Header)
	if err != nil {
		_ = c.Error(err)
		return
	}

	if h.registry.Settings().IncludeModelHeader {
		c.Header(modelHeader, req.Model)
	}
	c.JSON(http.StatusOK, resp)
}

// streamMessage relays the upstream event stream. Routing and key failures
// happen before any byte is written and surface as HTTP errors; once the
// event-stream content type is committed, failures arrive as in-band error
// events on the channel.
func (h *MessagesHandler) streamMessage(c *gin.Context, req *anthropic.MessagesRequest) {
	ch, err := h.router.ForwardStream(c.Request.Context(), req, c.Request.Header)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	if h.registry.Settings().IncludeModelHeader {
		c.Header(modelHeader, req.Model)
	}
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		result, ok := <-ch
		if !ok {
			return false
		}
		if result.Err != nil {
			_, _ = io.WriteString(w, domain.AsRouterError(result.Err).SSEEvent())
			return false
		}
		_, _ = io.WriteString(w, result.Event)
		return true
	})
}

// CountTokens handles POST /v1/messages/count_tokens. Not served yet; the
// upstreams disagree on support, so the gateway is explicit about it.
func (h *MessagesHandler) CountTokens(c *gin.Context) {
	_ = c.Error(domain.NotImplementedError("Token counting is not yet implemented in the model router"))
}
