package config

import (
	"fmt"
	"time"
)

// Config is the main Luca configuration
type Config struct {
	// Providers
	Providers ProvidersConfig `json:"providers" mapstructure:"providers"`

	// Router
	Router RouterConfig `json:"router" mapstructure:"router"`

	// Executor
	Executor ExecutorConfig `json:"executor" mapstructure:"executor"`

	// Server
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Audit
	Audit AuditConfig `json:"audit" mapstructure:"audit"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// ProvidersConfig holds LLM provider credentials and model choices
type ProvidersConfig struct {
	Completion ProviderConfig `json:"completion" mapstructure:"completion"`
	Embedding  ProviderConfig `json:"embedding" mapstructure:"embedding"`
}

// ProviderConfig identifies one provider account
type ProviderConfig struct {
	Provider string `json:"provider" mapstructure:"provider"` // openai, anthropic
	APIKey   string `json:"api_key" mapstructure:"api_key"`
	Model    string `json:"model" mapstructure:"model"`
}

// RouterConfig holds routing thresholds and storage paths
type RouterConfig struct {
	FallbackAgent     string  `json:"fallback_agent" mapstructure:"fallback_agent"`
	RuleThreshold     float64 `json:"rule_threshold" mapstructure:"rule_threshold"`
	SemanticThreshold float64 `json:"semantic_threshold" mapstructure:"semantic_threshold"`
	CachePath         string  `json:"cache_path" mapstructure:"cache_path"`
	FeedbackPath      string  `json:"feedback_path" mapstructure:"feedback_path"`
}

// ExecutorConfig holds execution timeouts
type ExecutorConfig struct {
	DefaultTimeout time.Duration            `json:"default_timeout" mapstructure:"default_timeout"`
	AgentTimeouts  map[string]time.Duration `json:"agent_timeouts" mapstructure:"agent_timeouts"`
	EnableFallback bool                     `json:"enable_fallback" mapstructure:"enable_fallback"`
}

// ServerConfig holds the HTTP surface configuration
type ServerConfig struct {
	Host        string `json:"host" mapstructure:"host"`
	Port        int    `json:"port" mapstructure:"port"`
	MetricsPath string `json:"metrics_path" mapstructure:"metrics_path"`
}

// AuditConfig holds audit event delivery settings
type AuditConfig struct {
	Enabled      bool   `json:"enabled" mapstructure:"enabled"`
	WebSocketURL string `json:"websocket_url" mapstructure:"websocket_url"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Providers: ProvidersConfig{
			Completion: ProviderConfig{Provider: "openai", Model: "gpt-4o-mini"},
			Embedding:  ProviderConfig{Provider: "openai", Model: "text-embedding-3-small"},
		},
		Router: RouterConfig{
			FallbackAgent:     "general",
			RuleThreshold:     0.7,
			SemanticThreshold: 0.75,
		},
		Executor: ExecutorConfig{
			DefaultTimeout: 30 * time.Second,
			EnableFallback: true,
		},
		Server: ServerConfig{
			Host:        "127.0.0.1",
			Port:        8321,
			MetricsPath: "/metrics",
		},
		Audit: AuditConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
	}
}

// Validate checks cross-field constraints the schema cannot express
func (c *Config) Validate() error {
	if c.Router.RuleThreshold < 0 || c.Router.RuleThreshold > 1 {
		return fmt.Errorf("router.rule_threshold must be in [0,1], got %v", c.Router.RuleThreshold)
	}
	if c.Router.SemanticThreshold < 0 || c.Router.SemanticThreshold > 1 {
		return fmt.Errorf("router.semantic_threshold must be in [0,1], got %v", c.Router.SemanticThreshold)
	}
	if c.Router.FallbackAgent == "" {
		return fmt.Errorf("router.fallback_agent is required")
	}
	if c.Executor.DefaultTimeout <= 0 {
		return fmt.Errorf("executor.default_timeout must be positive")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}

	for _, p := range []struct {
		name string
		cfg  ProviderConfig
	}{
		{"providers.completion", c.Providers.Completion},
		{"providers.embedding", c.Providers.Embedding},
	} {
		switch p.cfg.Provider {
		case "openai", "anthropic", "":
		default:
			return fmt.Errorf("%s.provider must be openai or anthropic, got %q", p.name, p.cfg.Provider)
		}
	}

	return nil
}
