package domain

// ProviderAnthropic is the provider whose wire protocol the gateway natively
// speaks. Models from other providers are expected to expose an
// Anthropic-compatible messages endpoint under their configured base URL.
const ProviderAnthropic = "anthropic"

// ModelConfig is the static configuration for a single routable model. It is
// loaded once at startup and read-only afterwards.
type ModelConfig struct {
	DisplayName       string            `json:"display_name" yaml:"display_name" mapstructure:"display_name"`
	Provider          string            `json:"provider" yaml:"provider" mapstructure:"provider"`
	ModelID           string            `json:"model_id" yaml:"model_id" mapstructure:"model_id"`
	BaseURL           string            `json:"base_url" yaml:"base_url" mapstructure:"base_url"`
	APIKeyEnv         string            `json:"api_key_env" yaml:"api_key_env" mapstructure:"api_key_env"`
	APIVersion        string            `json:"api_version" yaml:"api_version" mapstructure:"api_version"`
	AuthHeader        string            `json:"auth_header" yaml:"auth_header" mapstructure:"auth_header"`
	SupportsStreaming bool              `json:"supports_streaming" yaml:"supports_streaming" mapstructure:"supports_streaming"`
	SupportsTools     bool              `json:"supports_tools" yaml:"supports_tools" mapstructure:"supports_tools"`
	MaxTokens         int               `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`
	ContextWindow     int               `json:"context_window" yaml:"context_window" mapstructure:"context_window"`
	// EndpointPath is appended to the trimmed BaseURL when building the
	// upstream URL. Explicit per model so compatible gateways with odd path
	// layouts are configured, not guessed at.
	EndpointPath string            `json:"endpoint_path" yaml:"endpoint_path" mapstructure:"endpoint_path"`
	ExtraHeaders map[string]string `json:"extra_headers" yaml:"extra_headers" mapstructure:"extra_headers"`
}

// GatewayConfig holds server-level settings.
type GatewayConfig struct {
	Host               string `json:"host" yaml:"host" mapstructure:"host"`
	Port               int    `json:"port" yaml:"port" mapstructure:"port"`
	Timeout            int    `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
	ConnectTimeout     int    `json:"connect_timeout" yaml:"connect_timeout" mapstructure:"connect_timeout"`
	EnableLogging      bool   `json:"enable_logging" yaml:"enable_logging" mapstructure:"enable_logging"`
	LogLevel           string `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
	IncludeModelHeader bool   `json:"include_model_header" yaml:"include_model_header" mapstructure:"include_model_header"`
	EnableTracing      bool   `json:"enable_tracing" yaml:"enable_tracing" mapstructure:"enable_tracing"`
	// AnalyticsDSN enables the request-log store when set,
	// e.g. "file:router.db?_journal_mode=WAL".
	AnalyticsDSN string `json:"analytics_dsn" yaml:"analytics_dsn" mapstructure:"analytics_dsn"`
}

// RouterConfig is the root configuration: the full set of models, the alias
// table, the default model and the gateway settings. A reload replaces the
// whole structure; entries are never mutated in place.
type RouterConfig struct {
	DefaultModel string                 `json:"default_model" yaml:"default_model" mapstructure:"default_model"`
	Models       map[string]ModelConfig `json:"models" yaml:"models" mapstructure:"models"`
	Aliases      map[string]string      `json:"aliases" yaml:"aliases" mapstructure:"aliases"`
	Gateway      GatewayConfig          `json:"gateway" yaml:"gateway" mapstructure:"gateway"`
}
