package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the curation service
type Config struct {
	General  GeneralConfig  `mapstructure:"general"`
	Server   ServerConfig   `mapstructure:"server"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Search   SearchConfig   `mapstructure:"search"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	CodeHost CodeHostConfig `mapstructure:"codehost"`
	Feeds    FeedsConfig    `mapstructure:"feeds"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Curation CurationConfig `mapstructure:"curation"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

func (s ServerConfig) Validate() error {
	if strings.TrimSpace(s.Address) == "" {
		return fmt.Errorf("server.address is required")
	}
	return nil
}

// LLMConfig contains LLM provider configurations
type LLMConfig struct {
	Providers map[string]LLMProvider `mapstructure:"providers"`
	Routing   LLMRoutingConfig       `mapstructure:"routing"`
}

// Configured reports whether any provider carries an API key.
func (l LLMConfig) Configured() bool {
	for _, p := range l.Providers {
		if strings.TrimSpace(p.APIKey) != "" {
			return true
		}
	}
	return false
}

// LLMProvider represents a single LLM provider configuration
type LLMProvider struct {
	Type    string              `mapstructure:"type"` // openai or an openai-compatible endpoint
	APIKey  string              `mapstructure:"api_key"`
	BaseURL string              `mapstructure:"base_url"`
	Models  map[string]LLMModel `mapstructure:"models"`
	Timeout time.Duration       `mapstructure:"timeout"`
}

// LLMModel represents a specific model configuration
type LLMModel struct {
	Name        string  `mapstructure:"name"`
	APIName     string  `mapstructure:"api_name"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

// LLMRoutingConfig defines which model to use for different tasks
type LLMRoutingConfig struct {
	Clustering string `mapstructure:"clustering"` // identity clustering and merge proposals
	Synthesis  string `mapstructure:"synthesis"`  // profile synthesis and augmentation
	Planning   string `mapstructure:"planning"`   // per-source query planning
	Ranking    string `mapstructure:"ranking"`    // feed selection and explanations
	Deepen     string `mapstructure:"deepen"`     // per-item digests
	Fallback   string `mapstructure:"fallback"`   // used when a task has no explicit route
}

// Model resolves a routed model key, falling back to the fallback route.
func (r LLMRoutingConfig) Model(route string) string {
	if strings.TrimSpace(route) != "" {
		return route
	}
	return r.Fallback
}

// SearchConfig selects the web search provider used for identity discovery
type SearchConfig struct {
	Provider   string `mapstructure:"provider"` // serper or brave
	APIKey     string `mapstructure:"api_key"`
	MaxResults int    `mapstructure:"max_results"`
}

// Configured reports whether search can be used.
func (s SearchConfig) Configured() bool {
	return strings.TrimSpace(s.APIKey) != ""
}

func (s SearchConfig) Validate() error {
	if !s.Configured() {
		return nil
	}
	switch s.Provider {
	case "serper", "brave":
		return nil
	default:
		return fmt.Errorf("search.provider must be serper or brave, got %q", s.Provider)
	}
}

// FetchConfig controls the page fetcher used for evidence harvesting
type FetchConfig struct {
	Type     string        `mapstructure:"type"` // http or chromedp
	Timeout  time.Duration `mapstructure:"timeout"`
	MaxChars int           `mapstructure:"max_chars"`
}

func (f FetchConfig) Validate() error {
	switch f.Type {
	case "", "http", "chromedp":
		return nil
	default:
		return fmt.Errorf("fetch.type must be http or chromedp, got %q", f.Type)
	}
}

// CodeHostConfig holds GitHub API access settings
type CodeHostConfig struct {
	Token   string        `mapstructure:"token"` // optional, raises rate limits
	Timeout time.Duration `mapstructure:"timeout"`
}

// FeedsConfig controls the public feed collectors
type FeedsConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	NewsWindow   time.Duration `mapstructure:"news_window"`   // recency window for news evidence about the person
	GatherWindow time.Duration `mapstructure:"gather_window"` // recency window for feed content gathering
}

// CacheConfig selects the deepen-context cache backend
type CacheConfig struct {
	Backend string        `mapstructure:"backend"` // memory or redis
	TTL     time.Duration `mapstructure:"ttl"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

func (c CacheConfig) Validate() error {
	if c.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be > 0")
	}
	switch c.Backend {
	case "", "memory":
		return nil
	case "redis":
		return c.Redis.Validate()
	default:
		return fmt.Errorf("cache.backend must be memory or redis, got %q", c.Backend)
	}
}

// RedisConfig holds connection settings for the redis cache backend
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("cache.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("cache.redis.port required")
	}
	return nil
}

// Addr returns host:port for the redis client.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// CurationConfig contains pipeline-level settings
type CurationConfig struct {
	CollaboratorTimeout time.Duration `mapstructure:"collaborator_timeout"` // per external call, no retries
}

func (c CurationConfig) Validate() error {
	if c.CollaboratorTimeout <= 0 {
		return fmt.Errorf("curation.collaborator_timeout must be > 0")
	}
	return nil
}

// LoadConfig reads configuration from the given file path, or from a config
// file on the default search path when path is empty, with PERSONAFEED_*
// environment variables layered on top. A missing config file is fine; the
// defaults plus environment are enough to run with every collaborator in
// fallback mode.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("json")   // REQUIRED if the config file does not have the extension in the name

	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("search.max_results", 12)
	viper.SetDefault("fetch.type", "http")
	viper.SetDefault("fetch.timeout", "8s")
	viper.SetDefault("fetch.max_chars", 20000)
	viper.SetDefault("codehost.timeout", "8s")
	viper.SetDefault("feeds.timeout", "8s")
	viper.SetDefault("feeds.news_window", "4320h")  // ~6 months
	viper.SetDefault("feeds.gather_window", "168h") // 7 days
	viper.SetDefault("cache.backend", "memory")
	viper.SetDefault("cache.ttl", "15m")
	viper.SetDefault("curation.collaborator_timeout", "8s")

	if path == "" {
		viper.AddConfigPath("./config") // path to look for the config file in
		viper.AddConfigPath(".")        // optionally look for config in the working directory
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("PERSONAFEED")
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)

	viper.AutomaticEnv() // read in environment variables that match (PERSONAFEED_*)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	// unmarshal config
	var config Config

	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.Server.Validate(); err != nil {
		panic(err)
	}
	if err := config.Search.Validate(); err != nil {
		panic(err)
	}
	if err := config.Fetch.Validate(); err != nil {
		panic(err)
	}
	if err := config.Cache.Validate(); err != nil {
		panic(err)
	}
	if err := config.Curation.Validate(); err != nil {
		panic(err)
	}
	return &config
}
