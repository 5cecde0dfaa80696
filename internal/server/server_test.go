package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/luwill/Claude-Code-Model-Router/internal/core/domain"
	"github.com/luwill/Claude-Code-Model-Router/internal/registry"
	"github.com/luwill/Claude-Code-Model-Router/internal/router"
)

const upstreamResponse = `{
	"id": "msg_01",
	"type": "message",
	"role": "assistant",
	"content": [{"type":"text","text":"Hello"}],
	"model": "claude-sonnet-4-20250514",
	"stop_reason": "end_turn",
	"usage": {"input_tokens": 10, "output_tokens": 5}
}`

const upstreamStream = "event: message_start\ndata: {\"type\":\"message_start\"}\n\n" +
	"event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n"

// newTestGateway stands up a mock upstream plus a fully wired gateway on top
// of it and returns the gateway's handler for httptest requests.
func newTestGateway(t *testing.T, upstreamHandler http.HandlerFunc) http.Handler {
	t.Helper()
	t.Setenv("TEST_SONNET_KEY", "sk-sonnet")

	upstream := httptest.NewServer(upstreamHandler)
	t.Cleanup(upstream.Close)

	cfg := &domain.RouterConfig{
		DefaultModel: "sonnet",
		Models: map[string]domain.ModelConfig{
			"sonnet": {
				DisplayName:  "Claude Sonnet 4",
				Provider:     "anthropic",
				ModelID:      "claude-sonnet-4-20250514",
				BaseURL:      upstream.URL,
				APIKeyEnv:    "TEST_SONNET_KEY",
				APIVersion:   "2023-06-01",
				AuthHeader:   "x-api-key",
				MaxTokens:    8192,
				EndpointPath: "/v1/messages",
			},
			"haiku": {
				DisplayName:  "Claude Haiku 3.5",
				Provider:     "anthropic",
				ModelID:      "claude-3-5-haiku-20241022",
				BaseURL:      upstream.URL,
				APIKeyEnv:    "TEST_HAIKU_KEY_UNSET",
				APIVersion:   "2023-06-01",
				AuthHeader:   "x-api-key",
				MaxTokens:    8192,
				EndpointPath: "/v1/messages",
			},
		},
		Aliases: map[string]string{"fast": "sonnet"},
		Gateway: domain.GatewayConfig{
			Timeout:            5,
			ConnectTimeout:     2,
			IncludeModelHeader: true,
		},
	}

	reg, err := registry.New(cfg, zap.NewNop())
	require.NoError(t, err)
	rt := router.New(reg, zap.NewNop(), nil)
	return New(reg, rt, zap.NewNop()).Handler()
}

func defaultUpstream(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Accept") == "text/event-stream" {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, upstreamStream)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, upstreamResponse)
}

// closeNotifyRecorder adds the http.CloseNotifier method gin's Context.Stream
// requires; httptest.ResponseRecorder alone does not implement it.
type closeNotifyRecorder struct {
	*httptest.ResponseRecorder
}

func (c *closeNotifyRecorder) CloseNotify() <-chan bool { return make(chan bool) }

func postMessages(handler http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(&closeNotifyRecorder{rec}, req)
	return rec
}

func decodeError(t *testing.T, body []byte) (kind, message string) {
	t.Helper()
	var resp struct {
		Type  string `json:"type"`
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	require.Equal(t, "error", resp.Type)
	return resp.Error.Type, resp.Error.Message
}

func TestCreateMessage_Success(t *testing.T) {
	handler := newTestGateway(t, defaultUpstream)

	rec := postMessages(handler, `{"model":"sonnet","max_tokens":100,"messages":[{"role":"user","content":"hi"}]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sonnet", rec.Header().Get("X-Model-Router"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var resp map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.JSONEq(t, `"msg_01"`, string(resp["id"]))
	assert.JSONEq(t, `{"input_tokens":10,"output_tokens":5}`, string(resp["usage"]))
}

func TestCreateMessage_DefaultModelWhenOmitted(t *testing.T) {
	handler := newTestGateway(t, defaultUpstream)

	rec := postMessages(handler, `{"max_tokens":100,"messages":[{"role":"user","content":"hi"}]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sonnet", rec.Header().Get("X-Model-Router"))
}

func TestCreateMessage_AliasReported(t *testing.T) {
	handler := newTestGateway(t, defaultUpstream)

	rec := postMessages(handler, `{"model":"fast","max_tokens":100,"messages":[{"role":"user","content":"hi"}]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	// The header reports the name the caller asked for.
	assert.Equal(t, "fast", rec.Header().Get("X-Model-Router"))
}

func TestCreateMessage_UnknownModel(t *testing.T) {
	handler := newTestGateway(t, defaultUpstream)

	rec := postMessages(handler, `{"model":"gpt-9","max_tokens":100,"messages":[{"role":"user","content":"hi"}]}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	kind, message := decodeError(t, rec.Body.Bytes())
	assert.Equal(t, "invalid_model", kind)
	assert.Contains(t, message, "gpt-9")
	assert.Contains(t, message, "haiku, sonnet")
}

func TestCreateMessage_MissingAPIKey(t *testing.T) {
	handler := newTestGateway(t, defaultUpstream)

	rec := postMessages(handler, `{"model":"haiku","max_tokens":100,"messages":[{"role":"user","content":"hi"}]}`)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	kind, message := decodeError(t, rec.Body.Bytes())
	assert.Equal(t, "authentication_error", kind)
	assert.Contains(t, message, "TEST_HAIKU_KEY_UNSET")
}

func TestCreateMessage_BindingFailures(t *testing.T) {
	handler := newTestGateway(t, defaultUpstream)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"model":`},
		{"missing messages", `{"model":"sonnet","max_tokens":100}`},
		{"empty messages", `{"model":"sonnet","max_tokens":100,"messages":[]}`},
		{"bad role", `{"model":"sonnet","max_tokens":100,"messages":[{"role":"system","content":"hi"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postMessages(handler, tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			kind, _ := decodeError(t, rec.Body.Bytes())
			assert.Equal(t, "invalid_request_error", kind)
		})
	}
}

func TestCreateMessage_UpstreamErrorPassthrough(t *testing.T) {
	handler := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"rate_limit_error","message":"rate limited"}}`)
	})

	rec := postMessages(handler, `{"model":"sonnet","max_tokens":100,"messages":[{"role":"user","content":"hi"}]}`)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	kind, message := decodeError(t, rec.Body.Bytes())
	assert.Equal(t, "api_error", kind)
	assert.Contains(t, message, "rate limited")
}

func TestCreateMessage_Streaming(t *testing.T) {
	handler := newTestGateway(t, defaultUpstream)

	rec := postMessages(handler, `{"model":"sonnet","max_tokens":100,"stream":true,"messages":[{"role":"user","content":"hi"}]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "sonnet", rec.Header().Get("X-Model-Router"))
	assert.Equal(t, upstreamStream, rec.Body.String())
}

func TestCreateMessage_StreamingUpstreamFailureInBand(t *testing.T) {
	handler := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(529)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)
	})

	rec := postMessages(handler, `{"model":"sonnet","max_tokens":100,"stream":true,"messages":[{"role":"user","content":"hi"}]}`)

	// The stream is already committed; the failure arrives as an SSE event.
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "event: error\ndata: "))
	assert.Contains(t, body, `"api_error"`)
	assert.Contains(t, body, "Overloaded")
}

func TestCreateMessage_StreamingUnknownModelIsHTTPError(t *testing.T) {
	handler := newTestGateway(t, defaultUpstream)

	rec := postMessages(handler, `{"model":"gpt-9","max_tokens":100,"stream":true,"messages":[{"role":"user","content":"hi"}]}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	kind, _ := decodeError(t, rec.Body.Bytes())
	assert.Equal(t, "invalid_model", kind)
}

func TestCountTokens_NotImplemented(t *testing.T) {
	handler := newTestGateway(t, defaultUpstream)

	req := httptest.NewRequest(http.MethodPost, "/v1/messages/count_tokens", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	out := httptest.NewRecorder()
	handler.ServeHTTP(out, req)

	require.Equal(t, http.StatusNotImplemented, out.Code)
	kind, _ := decodeError(t, out.Body.Bytes())
	assert.Equal(t, "not_implemented", kind)
}

func TestListModels(t *testing.T) {
	handler := newTestGateway(t, defaultUpstream)

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Object string `json:"object"`
		Data   []struct {
			ID        string `json:"id"`
			Object    string `json:"object"`
			Available bool   `json:"available"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "list", resp.Object)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "haiku", resp.Data[0].ID)
	assert.False(t, resp.Data[0].Available)
	assert.Equal(t, "sonnet", resp.Data[1].ID)
	assert.True(t, resp.Data[1].Available)
}

func TestHealth(t *testing.T) {
	handler := newTestGateway(t, defaultUpstream)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status       string            `json:"status"`
		DefaultModel string            `json:"default_model"`
		Models       map[string]string `json:"models"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "sonnet", resp.DefaultModel)
	assert.Equal(t, "available", resp.Models["sonnet"])
	assert.Equal(t, "no_api_key", resp.Models["haiku"])
}

func TestUnknownRoute(t *testing.T) {
	handler := newTestGateway(t, defaultUpstream)

	req := httptest.NewRequest(http.MethodGet, "/v2/unknown", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	kind, _ := decodeError(t, rec.Body.Bytes())
	assert.Equal(t, "not_found_error", kind)
}

func TestRequestID_CallerValueEchoed(t *testing.T) {
	handler := newTestGateway(t, defaultUpstream)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "caller-id-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "caller-id-123", rec.Header().Get("X-Request-ID"))
}

func TestCORSPreflight(t *testing.T) {
	handler := newTestGateway(t, defaultUpstream)

	req := httptest.NewRequest(http.MethodOptions, "/v1/messages", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
