package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/luwill/Claude-Code-Model-Router/internal/analytics"
	"github.com/luwill/Claude-Code-Model-Router/internal/core/domain"
	"github.com/luwill/Claude-Code-Model-Router/pkg/anthropic"
)

// Forward executes a non-streaming call against the backend resolved from
// req.Model. All failures come back as *domain.RouterError; transport errors
// never reach the caller raw.
func (r *Router) Forward(ctx context.Context, req *anthropic.MessagesRequest, inbound http.Header) (*anthropic.MessagesResponse, error) {
	resolved, mc, err := r.Resolve(req.Model)
	if err != nil {
		return nil, err
	}
	env, err := r.buildEnvelope(resolved, mc, req, inbound, false)
	if err != nil {
		return nil, err
	}
	httpReq, err := env.newRequest(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := r.httpClient().Do(httpReq)
	if err != nil {
		return nil, r.classifyTransportError(err, mc)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	latency := time.Since(start)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return nil, domain.UpstreamAPIError(resp.StatusCode, fmt.Sprintf(
			"Upstream API error (%s): %s", mc.Provider, anthropic.ExtractErrorMessage(raw),
		))
	}

	var out anthropic.MessagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, domain.InternalError(fmt.Sprintf("failed to decode upstream response: %v", err), err)
	}

	if r.registry.Settings().EnableLogging {
		r.logger.Info("Request completed",
			zap.String("model", resolved),
			zap.Duration("latency", latency),
			zap.Int("input_tokens", out.Usage.InputTokens),
			zap.Int("output_tokens", out.Usage.OutputTokens),
		)
	}
	r.record(&analytics.RequestLog{
		ID:              out.ID,
		Model:           resolved,
		Provider:        mc.Provider,
		UpstreamModelID: mc.ModelID,
		StatusCode:      http.StatusOK,
		LatencyMS:       latency.Milliseconds(),
		InputTokens:     out.Usage.InputTokens,
		OutputTokens:    out.Usage.OutputTokens,
	})

	return &out, nil
}

// classifyTransportError maps a transport failure onto the timeout or
// connection kind. Deadline and net timeouts are 504s; everything else on
// the wire is a 502.
func (r *Router) classifyTransportError(err error, mc domain.ModelConfig) *domain.RouterError {
	timeout := r.registry.Settings().Timeout
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return domain.TimeoutError(fmt.Sprintf(
			"Request to %s timed out after %ds", mc.Provider, timeout,
		), err)
	}
	return domain.ConnectionError(fmt.Sprintf(
		"Failed to connect to %s: %v", mc.Provider, err,
	), err)
}
