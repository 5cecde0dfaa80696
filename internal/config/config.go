// Package config loads the gateway configuration from models.yaml, layering
// environment-variable overrides on top.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/luwill/Claude-Code-Model-Router/internal/core/domain"
)

// Per-model defaults applied when the YAML omits a field.
const (
	defaultAPIVersion    = "2023-06-01"
	defaultAuthHeader    = "x-api-key"
	defaultMaxTokens     = 8192
	defaultContextWindow = 128000
	defaultEndpointPath  = "/v1/messages"
)

// rawModel mirrors domain.ModelConfig with pointer fields so absent values
// are distinguishable from explicit zero values.
type rawModel struct {
	DisplayName       string            `mapstructure:"display_name"`
	Provider          string            `mapstructure:"provider"`
	ModelID           string            `mapstructure:"model_id"`
	BaseURL           string            `mapstructure:"base_url"`
	APIKeyEnv         string            `mapstructure:"api_key_env"`
	APIVersion        string            `mapstructure:"api_version"`
	AuthHeader        string            `mapstructure:"auth_header"`
	SupportsStreaming *bool             `mapstructure:"supports_streaming"`
	SupportsTools     *bool             `mapstructure:"supports_tools"`
	MaxTokens         int               `mapstructure:"max_tokens"`
	ContextWindow     int               `mapstructure:"context_window"`
	EndpointPath      string            `mapstructure:"endpoint_path"`
	ExtraHeaders      map[string]string `mapstructure:"extra_headers"`
}

type rawConfig struct {
	DefaultModel string               `mapstructure:"default_model"`
	Models       map[string]rawModel  `mapstructure:"models"`
	Aliases      map[string]string    `mapstructure:"aliases"`
	Gateway      domain.GatewayConfig `mapstructure:"gateway"`
}

// Load reads the configuration file at path. When path is empty the usual
// locations (./config/models.yaml, ./models.yaml) are searched. A .env file
// in the working directory is loaded first so api_key_env variables and
// overrides declared there are visible.
func Load(path string) (*domain.RouterConfig, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("models")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetDefault("default_model", "sonnet")
	v.SetDefault("gateway.host", "0.0.0.0")
	v.SetDefault("gateway.port", 8080)
	v.SetDefault("gateway.timeout", 300)
	v.SetDefault("gateway.connect_timeout", 30)
	v.SetDefault("gateway.enable_logging", true)
	v.SetDefault("gateway.log_level", "info")
	v.SetDefault("gateway.include_model_header", true)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var raw rawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if len(raw.Models) == 0 {
		return nil, fmt.Errorf("no models configured in %s", v.ConfigFileUsed())
	}

	cfg := &domain.RouterConfig{
		DefaultModel: raw.DefaultModel,
		Models:       make(map[string]domain.ModelConfig, len(raw.Models)),
		Aliases:      raw.Aliases,
		Gateway:      raw.Gateway,
	}
	for name, m := range raw.Models {
		mc, err := normalizeModel(m)
		if err != nil {
			return nil, fmt.Errorf("invalid model configuration for '%s': %w", name, err)
		}
		cfg.Models[name] = mc
	}

	applyEnvOverrides(v, cfg)

	return cfg, nil
}

func normalizeModel(m rawModel) (domain.ModelConfig, error) {
	if m.Provider == "" {
		return domain.ModelConfig{}, fmt.Errorf("provider is required")
	}
	if m.ModelID == "" {
		return domain.ModelConfig{}, fmt.Errorf("model_id is required")
	}
	if m.BaseURL == "" {
		return domain.ModelConfig{}, fmt.Errorf("base_url is required")
	}
	if m.APIKeyEnv == "" {
		return domain.ModelConfig{}, fmt.Errorf("api_key_env is required")
	}

	mc := domain.ModelConfig{
		DisplayName:       m.DisplayName,
		Provider:          strings.ToLower(m.Provider),
		ModelID:           m.ModelID,
		BaseURL:           m.BaseURL,
		APIKeyEnv:         m.APIKeyEnv,
		APIVersion:        m.APIVersion,
		AuthHeader:        m.AuthHeader,
		SupportsStreaming: true,
		SupportsTools:     true,
		MaxTokens:         m.MaxTokens,
		ContextWindow:     m.ContextWindow,
		EndpointPath:      m.EndpointPath,
		ExtraHeaders:      m.ExtraHeaders,
	}
	if mc.DisplayName == "" {
		mc.DisplayName = m.ModelID
	}
	if mc.APIVersion == "" {
		mc.APIVersion = defaultAPIVersion
	}
	if mc.AuthHeader == "" {
		mc.AuthHeader = defaultAuthHeader
	}
	if m.SupportsStreaming != nil {
		mc.SupportsStreaming = *m.SupportsStreaming
	}
	if m.SupportsTools != nil {
		mc.SupportsTools = *m.SupportsTools
	}
	if mc.MaxTokens <= 0 {
		mc.MaxTokens = defaultMaxTokens
	}
	if mc.ContextWindow <= 0 {
		mc.ContextWindow = defaultContextWindow
	}
	if mc.EndpointPath == "" {
		mc.EndpointPath = defaultEndpointPath
	}
	return mc, nil
}

// applyEnvOverrides layers process environment variables over the file
// values. Explicit names rather than AutomaticEnv: the override surface is
// part of the contract.
func applyEnvOverrides(v *viper.Viper, cfg *domain.RouterConfig) {
	v.AutomaticEnv()
	if port := v.GetInt("GATEWAY_PORT"); port != 0 {
		cfg.Gateway.Port = port
	}
	if level := v.GetString("LOG_LEVEL"); level != "" {
		cfg.Gateway.LogLevel = strings.ToLower(level)
	}
	if timeout := v.GetInt("REQUEST_TIMEOUT"); timeout != 0 {
		cfg.Gateway.Timeout = timeout
	}
	if def := v.GetString("DEFAULT_MODEL"); def != "" {
		cfg.DefaultModel = def
	}
}
