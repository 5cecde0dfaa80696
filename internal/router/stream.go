package router

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/luwill/Claude-Code-Model-Router/internal/analytics"
	"github.com/luwill/Claude-Code-Model-Router/internal/core/domain"
	"github.com/luwill/Claude-Code-Model-Router/pkg/anthropic"
)

// StreamResult is one item of the relayed event sequence: either a complete
// SSE event (original text plus its blank-line separator) or a terminal
// error. After a result with Err the channel closes; events already emitted
// are never revoked.
type StreamResult struct {
	Event string
	Err   error
}

// ForwardStream executes a streaming call against the backend resolved from
// req.Model and relays the upstream's SSE events over the returned channel.
//
// An error return means the request failed before the stream could open
// (unknown model, missing key) and should surface as an HTTP error. Once the
// channel is returned the caller is expected to have committed to the
// event-stream content type, so all later failures arrive in-band as a
// single error event. Cancelling ctx tears down the upstream connection.
func (r *Router) ForwardStream(ctx context.Context, req *anthropic.MessagesRequest, inbound http.Header) (<-chan StreamResult, error) {
	resolved, mc, err := r.Resolve(req.Model)
	if err != nil {
		return nil, err
	}
	env, err := r.buildEnvelope(resolved, mc, req, inbound, true)
	if err != nil {
		return nil, err
	}

	ch := make(chan StreamResult)
	go r.relay(ctx, ch, env, resolved, mc)
	return ch, nil
}

func (r *Router) relay(ctx context.Context, ch chan<- StreamResult, env *envelope, resolved string, mc domain.ModelConfig) {
	defer close(ch)

	httpReq, err := env.newRequest(ctx)
	if err != nil {
		emit(ctx, ch, StreamResult{Err: err})
		return
	}

	start := time.Now()
	resp, err := r.httpClient().Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		emit(ctx, ch, StreamResult{Err: r.classifyTransportError(err, mc)})
		return
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		emit(ctx, ch, StreamResult{Err: domain.UpstreamAPIError(resp.StatusCode, fmt.Sprintf(
			"Upstream API error (%s): %s", mc.Provider, anthropic.ExtractErrorMessage(raw),
		))})
		return
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	scanner.Split(SplitSSEEvents)

	for scanner.Scan() {
		event := scanner.Text()
		if strings.TrimSpace(event) == "" {
			continue
		}
		if !emit(ctx, ch, StreamResult{Event: event + "\n\n"}) {
			return
		}
	}

	if err := scanner.Err(); err != nil {
		// The caller going away is not an upstream failure.
		if ctx.Err() != nil {
			return
		}
		emit(ctx, ch, StreamResult{Err: r.classifyTransportError(err, mc)})
		return
	}

	latency := time.Since(start)
	if r.registry.Settings().EnableLogging {
		r.logger.Info("Stream completed",
			zap.String("model", resolved),
			zap.Duration("latency", latency),
		)
	}
	r.record(&analytics.RequestLog{
		Model:           resolved,
		Provider:        mc.Provider,
		UpstreamModelID: mc.ModelID,
		StatusCode:      http.StatusOK,
		Stream:          true,
		LatencyMS:       latency.Milliseconds(),
	})
}

func emit(ctx context.Context, ch chan<- StreamResult, res StreamResult) bool {
	select {
	case ch <- res:
		return true
	case <-ctx.Done():
		return false
	}
}

var eventSeparator = []byte("\n\n")

// SplitSSEEvents is a bufio.SplitFunc that tokenizes an SSE byte stream into
// complete events. An event boundary is a blank line; the separator is
// consumed but not included in the token, so an event's own newline
// structure is preserved exactly no matter how the transport chunked the
// bytes. A trailing partial event with no closing blank line is returned as
// a final token once input ends.
func SplitSSEEvents(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if i := bytes.Index(data, eventSeparator); i >= 0 {
		return i + len(eventSeparator), data[:i], nil
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}
