package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/luwill/Claude-Code-Model-Router/internal/core/domain"
	"github.com/luwill/Claude-Code-Model-Router/pkg/anthropic"
)

// defaultMaxTokens is used when the caller omits max_tokens entirely.
const defaultMaxTokens = 4096

// envelope is the outbound (URL, headers, body) triple. Built fresh per
// request and never reused: headers embed the API key and the body embeds
// the concrete upstream model identifier.
type envelope struct {
	url     string
	headers map[string]string
	body    []byte
}

func (r *Router) buildEnvelope(resolved string, mc domain.ModelConfig, req *anthropic.MessagesRequest, inbound http.Header, stream bool) (*envelope, error) {
	headers, err := r.buildHeaders(resolved, mc, inbound)
	if err != nil {
		return nil, err
	}
	if stream {
		headers["Accept"] = "text/event-stream"
	}
	body, err := buildBody(req, mc, stream)
	if err != nil {
		return nil, err
	}
	return &envelope{
		url:     buildURL(mc),
		headers: headers,
		body:    body,
	}, nil
}

// buildHeaders assembles the outbound header set. The API key is looked up
// by the resolved model name, which maps to that model's configured
// environment variable. For the native provider the protocol version header
// is set and the caller's anthropic-beta header is forwarded verbatim.
// Configured extra headers merge last and may override anything above.
func (r *Router) buildHeaders(resolved string, mc domain.ModelConfig, inbound http.Header) (map[string]string, error) {
	apiKey, ok := r.registry.APIKey(resolved)
	if !ok {
		return nil, domain.AuthenticationError(fmt.Sprintf(
			"API key not configured for model '%s'. Please set the %s environment variable.",
			mc.DisplayName, mc.APIKeyEnv,
		))
	}

	headers := map[string]string{
		"Content-Type": "application/json",
		"Accept":       "application/json",
		mc.AuthHeader:  apiKey,
	}

	if mc.Provider == domain.ProviderAnthropic {
		headers["anthropic-version"] = mc.APIVersion
		if beta := inbound.Get("anthropic-beta"); beta != "" {
			headers["anthropic-beta"] = beta
		}
	}

	for k, v := range mc.ExtraHeaders {
		headers[k] = v
	}

	return headers, nil
}

// buildBody copies the inbound request, overwrites the model with the
// upstream identifier, clamps max_tokens down to the model's ceiling (never
// up) and forces the stream flag to match the call mode. Unknown fields ride
// along untouched.
func buildBody(req *anthropic.MessagesRequest, mc domain.ModelConfig, stream bool) ([]byte, error) {
	out := *req
	out.Model = mc.ModelID
	if out.MaxTokens <= 0 {
		out.MaxTokens = defaultMaxTokens
	}
	if out.MaxTokens > mc.MaxTokens {
		out.MaxTokens = mc.MaxTokens
	}
	out.Stream = stream

	body, err := json.Marshal(out)
	if err != nil {
		return nil, domain.InternalError(fmt.Sprintf("failed to serialize request body: %v", err), err)
	}
	return body, nil
}

// buildURL joins the base URL and the model's endpoint path.
func buildURL(mc domain.ModelConfig) string {
	return strings.TrimRight(mc.BaseURL, "/") + mc.EndpointPath
}

func (e *envelope) newRequest(ctx context.Context) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(e.body))
	if err != nil {
		return nil, domain.InternalError(fmt.Sprintf("failed to create upstream request: %v", err), err)
	}
	for k, v := range e.headers {
		req.Header.Set(k, v)
	}
	return req, nil
}
