// Package router implements the routing and forwarding engine: it resolves a
// requested model name to a backend configuration, builds the outbound
// request, executes it and relays the result.
package router

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/luwill/Claude-Code-Model-Router/internal/analytics"
	"github.com/luwill/Claude-Code-Model-Router/internal/core/domain"
	"github.com/luwill/Claude-Code-Model-Router/internal/registry"
)

type Router struct {
	registry *registry.Registry
	logger   *zap.Logger
	ingestor analytics.Ingestor

	mu     sync.Mutex
	client *http.Client
}

// New builds a Router on top of a registry snapshot. The ingestor may be nil
// when analytics is disabled.
func New(reg *registry.Registry, logger *zap.Logger, ingestor analytics.Ingestor) *Router {
	return &Router{registry: reg, logger: logger, ingestor: ingestor}
}

// Resolve turns a requested model name into its resolved name and backend
// configuration. An empty name falls back to the configured default; an
// alias is substituted before lookup. Resolution is a pure lookup over the
// registry snapshot.
func (r *Router) Resolve(name string) (string, domain.ModelConfig, error) {
	if name == "" {
		name = r.registry.DefaultModel()
	}
	resolved := r.registry.ResolveAlias(name)
	mc, ok := r.registry.GetModel(resolved)
	if !ok {
		return "", domain.ModelConfig{}, domain.InvalidModelError(fmt.Sprintf(
			"Model '%s' not found. Available models: %s",
			name, strings.Join(r.registry.ModelNames(), ", "),
		))
	}
	return resolved, mc, nil
}

// httpClient returns the shared outbound client, creating it on first use.
// One client per router: it is safe for concurrent use and owns the
// connection pool. The overall timeout covers the entire exchange; the
// connect timeout applies to dialing only.
func (r *Router) httpClient() *http.Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == nil {
		settings := r.registry.Settings()
		dialer := &net.Dialer{Timeout: time.Duration(settings.ConnectTimeout) * time.Second}
		r.client = &http.Client{
			Timeout: time.Duration(settings.Timeout) * time.Second,
			Transport: &http.Transport{
				DialContext:       dialer.DialContext,
				ForceAttemptHTTP2: true,
			},
		}
	}
	return r.client
}

// CloseIdleConnections releases pooled connections; the client itself is
// recreated lazily if forwarding continues afterwards.
func (r *Router) CloseIdleConnections() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client != nil {
		r.client.CloseIdleConnections()
		r.client = nil
	}
}

func (r *Router) record(log *analytics.RequestLog) {
	if r.ingestor == nil {
		return
	}
	log.CreatedAt = time.Now()
	r.ingestor.Log(log)
}
