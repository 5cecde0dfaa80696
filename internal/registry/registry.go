// Package registry exposes a read-only snapshot of the configured models,
// aliases and API keys. It is built once at startup and shared by every
// in-flight request without locking.
package registry

import (
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"

	"github.com/luwill/Claude-Code-Model-Router/internal/core/domain"
)

type Registry struct {
	cfg     *domain.RouterConfig
	apiKeys map[string]string
	logger  *zap.Logger
}

// ModelInfo is the listing shape served by /v1/models and /health.
type ModelInfo struct {
	Name              string `json:"name"`
	DisplayName       string `json:"display_name"`
	Provider          string `json:"provider"`
	ModelID           string `json:"model_id"`
	Available         bool   `json:"available"`
	SupportsStreaming bool   `json:"supports_streaming"`
	SupportsTools     bool   `json:"supports_tools"`
}

// New builds a registry snapshot from cfg. Aliases pointing at models that do
// not exist fail construction: surfacing a broken alias table at startup
// beats a misleading lookup miss at request time. API keys are pre-resolved
// from each model's configured environment variable; a missing key is only a
// warning, since the model may never be requested.
func New(cfg *domain.RouterConfig, logger *zap.Logger) (*Registry, error) {
	for alias, target := range cfg.Aliases {
		if _, ok := cfg.Models[target]; !ok {
			return nil, fmt.Errorf("alias '%s' references unknown model '%s'", alias, target)
		}
	}
	if _, ok := cfg.Models[cfg.DefaultModel]; !ok {
		if _, ok := cfg.Aliases[cfg.DefaultModel]; !ok {
			return nil, fmt.Errorf("default model '%s' is not a configured model or alias", cfg.DefaultModel)
		}
	}

	keys := make(map[string]string, len(cfg.Models))
	for name, m := range cfg.Models {
		if key := os.Getenv(m.APIKeyEnv); key != "" {
			keys[name] = key
		} else {
			logger.Warn("API key not found for model",
				zap.String("model", name),
				zap.String("env", m.APIKeyEnv),
			)
		}
	}

	return &Registry{cfg: cfg, apiKeys: keys, logger: logger}, nil
}

// ResolveAlias maps an alias to its target model name. Non-aliases come back
// unchanged, so resolution is idempotent.
func (r *Registry) ResolveAlias(name string) string {
	if target, ok := r.cfg.Aliases[name]; ok {
		return target
	}
	return name
}

// GetModel returns the configuration for a resolved model name.
func (r *Registry) GetModel(name string) (domain.ModelConfig, bool) {
	m, ok := r.cfg.Models[name]
	return m, ok
}

// APIKey returns the key for a resolved model name. Keys absent at startup
// are retried against the environment, so exporting a key does not require a
// restart.
func (r *Registry) APIKey(name string) (string, bool) {
	if key, ok := r.apiKeys[name]; ok {
		return key, true
	}
	m, ok := r.cfg.Models[name]
	if !ok {
		return "", false
	}
	if key := os.Getenv(m.APIKeyEnv); key != "" {
		return key, true
	}
	return "", false
}

func (r *Registry) DefaultModel() string { return r.cfg.DefaultModel }

func (r *Registry) Settings() domain.GatewayConfig { return r.cfg.Gateway }

// ModelNames lists the configured model names, sorted for stable diagnostics.
func (r *Registry) ModelNames() []string {
	names := make([]string, 0, len(r.cfg.Models))
	for name := range r.cfg.Models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListModels reports every configured model with its key availability.
func (r *Registry) ListModels() []ModelInfo {
	infos := make([]ModelInfo, 0, len(r.cfg.Models))
	for _, name := range r.ModelNames() {
		m := r.cfg.Models[name]
		_, hasKey := r.APIKey(name)
		infos = append(infos, ModelInfo{
			Name:              name,
			DisplayName:       m.DisplayName,
			Provider:          m.Provider,
			ModelID:           m.ModelID,
			Available:         hasKey,
			SupportsStreaming: m.SupportsStreaming,
			SupportsTools:     m.SupportsTools,
		})
	}
	return infos
}
