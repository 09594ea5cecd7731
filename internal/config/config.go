// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Validator ValidatorConfig `mapstructure:"validator"`
	Extract   ExtractConfig   `mapstructure:"extract"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Research  ResearchConfig  `mapstructure:"research"`
	Search    SearchConfig    `mapstructure:"search"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Cache     CacheConfig     `mapstructure:"cache"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// ValidatorConfig governs URL liveness probing.
type ValidatorConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
}

// ExtractConfig controls per-page extraction retries and fan-out.
type ExtractConfig struct {
	MaxAttempts        int `mapstructure:"max_attempts"`
	BackoffBaseSeconds int `mapstructure:"backoff_base_seconds"`
	BackoffMaxSeconds  int `mapstructure:"backoff_max_seconds"`
	TimeoutSeconds     int `mapstructure:"timeout_seconds"`
	Concurrency        int `mapstructure:"concurrency"`
}

// BrowserConfig configures the page rendering subsystem.
type BrowserConfig struct {
	UserAgent         string   `mapstructure:"user_agent"`
	NavTimeoutSeconds int      `mapstructure:"nav_timeout_seconds"`
	MaxParallel       int      `mapstructure:"max_parallel"`
	DomainQPS         float64  `mapstructure:"domain_qps"`
	MinHTMLBytes      int      `mapstructure:"min_html_bytes"`
	JSKeywords        []string `mapstructure:"js_keywords"`
	MaxTextChars      int      `mapstructure:"max_text_chars"`
}

// LLMConfig points at the OpenAI-compatible chat-completion endpoint used for
// extraction and translation.
type LLMConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	MaxTokens      int    `mapstructure:"max_tokens"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// ResearchConfig points at the dedicated company-research model endpoint.
// Tokens is a pool of bearer tokens; TokenStrategy selects how one is picked
// per call (random, round_robin, or static).
type ResearchConfig struct {
	BaseURL        string   `mapstructure:"base_url"`
	Tokens         []string `mapstructure:"tokens"`
	TokenStrategy  string   `mapstructure:"token_strategy"`
	Model          string   `mapstructure:"model"`
	FilterKeywords []string `mapstructure:"filter_keywords"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds"`
}

// SearchConfig configures the web-search capability.
type SearchConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// DiscoveryConfig bounds the discovery fan-out.
type DiscoveryConfig struct {
	DefaultListingURLs  []string `mapstructure:"default_listing_urls"`
	DefaultMaxCompanies int      `mapstructure:"default_max_companies"`
	Concurrency         int      `mapstructure:"concurrency"`
}

// CacheConfig selects the memoization backend.
type CacheConfig struct {
	Backend   string `mapstructure:"backend"` // file, memory, gcs, postgres
	Dir       string `mapstructure:"dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	GCSPrefix string `mapstructure:"gcs_prefix"`
	DSN       string `mapstructure:"dsn"`
	Table     string `mapstructure:"table"`
}

// PubSubConfig holds metadata for discovery event notifications.
type PubSubConfig struct {
	Provider  string `mapstructure:"provider"` // none, memory, pubsub
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("INTEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 600)
	v.SetDefault("logging.development", true)

	v.SetDefault("validator.timeout_seconds", 10)
	v.SetDefault("validator.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	v.SetDefault("extract.max_attempts", 3)
	v.SetDefault("extract.backoff_base_seconds", 4)
	v.SetDefault("extract.backoff_max_seconds", 10)
	v.SetDefault("extract.timeout_seconds", 90)
	v.SetDefault("extract.concurrency", 4)

	v.SetDefault("browser.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("browser.nav_timeout_seconds", 25)
	v.SetDefault("browser.max_parallel", 2)
	v.SetDefault("browser.domain_qps", 0.5)
	v.SetDefault("browser.min_html_bytes", 2000)
	v.SetDefault("browser.js_keywords", []string{
		"__NEXT_DATA__",
		"data-reactroot",
		"ng-app",
		"window.__APOLLO_STATE__",
	})
	v.SetDefault("browser.max_text_chars", 24000)

	v.SetDefault("llm.base_url", "https://api.openai.com")
	v.SetDefault("llm.model", "gpt-3.5-turbo-0125")
	v.SetDefault("llm.max_tokens", 4000)
	v.SetDefault("llm.timeout_seconds", 30)

	v.SetDefault("research.token_strategy", "random")
	v.SetDefault("research.model", "research")
	v.SetDefault("research.filter_keywords", []string{})
	v.SetDefault("research.timeout_seconds", 30)

	v.SetDefault("search.base_url", "https://google.serper.dev")
	v.SetDefault("search.timeout_seconds", 15)

	v.SetDefault("discovery.default_listing_urls", []string{
		"https://www.ycombinator.com/companies/industry/crypto-web3",
		"https://startups.gallery/categories/industries/web3",
		"https://wellfound.com/startups/industry/web3-4",
	})
	v.SetDefault("discovery.default_max_companies", 30)
	v.SetDefault("discovery.concurrency", 4)

	v.SetDefault("cache.backend", "file")
	v.SetDefault("cache.dir", "cache")
	v.SetDefault("cache.table", "cache_entries")

	v.SetDefault("pubsub.provider", "none")
	v.SetDefault("pubsub.topic", "company-discoveries")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Extract.MaxAttempts <= 0 {
		return fmt.Errorf("extract.max_attempts must be > 0")
	}
	if c.Extract.BackoffBaseSeconds <= 0 || c.Extract.BackoffMaxSeconds < c.Extract.BackoffBaseSeconds {
		return fmt.Errorf("extract backoff must satisfy 0 < base <= max")
	}
	if c.Validator.TimeoutSeconds <= 0 {
		return fmt.Errorf("validator.timeout_seconds must be > 0")
	}
	switch c.Cache.Backend {
	case "file":
		if c.Cache.Dir == "" {
			return fmt.Errorf("cache.dir is required for the file backend")
		}
	case "memory":
	case "gcs":
		if c.Cache.GCSBucket == "" {
			return fmt.Errorf("cache.gcs_bucket is required for the gcs backend")
		}
	case "postgres":
		if c.Cache.DSN == "" {
			return fmt.Errorf("cache.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	switch c.PubSub.Provider {
	case "none", "memory":
	case "pubsub":
		if c.PubSub.ProjectID == "" || c.PubSub.Topic == "" {
			return fmt.Errorf("pubsub.project_id and pubsub.topic are required for the pubsub provider")
		}
	default:
		return fmt.Errorf("unknown pubsub provider %q", c.PubSub.Provider)
	}
	switch c.Research.TokenStrategy {
	case "random", "round_robin", "static":
	default:
		return fmt.Errorf("unknown research.token_strategy %q", c.Research.TokenStrategy)
	}
	return nil
}

// ValidatorTimeout converts the probe timeout into a duration.
func (c Config) ValidatorTimeout() time.Duration {
	return time.Duration(c.Validator.TimeoutSeconds) * time.Second
}

// RequestTimeout bounds one API request end to end.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}
