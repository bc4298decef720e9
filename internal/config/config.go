package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Quality   QualityConfig   `yaml:"quality" mapstructure:"quality"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Browser   BrowserConfig   `yaml:"browser" mapstructure:"browser"`
	Search    SearchConfig    `yaml:"search" mapstructure:"search"`
	Scrape    ScrapeConfig    `yaml:"scrape" mapstructure:"scrape"`
	Jobs      JobsConfig      `yaml:"jobs" mapstructure:"jobs"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// QualityConfig configures the website quality gate and its external API.
type QualityConfig struct {
	APIKey             string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL            string  `yaml:"base_url" mapstructure:"base_url"`
	ProspectThreshold  float64 `yaml:"prospect_threshold" mapstructure:"prospect_threshold"`
	InitialDelayMillis int     `yaml:"initial_delay_millis" mapstructure:"initial_delay_millis"`
	MaxAttempts        int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	BackoffMillis      int     `yaml:"backoff_millis" mapstructure:"backoff_millis"`
	CacheTTLHours      int     `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	RatePerSecond      float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	TimeoutSecs        int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AnthropicConfig holds Anthropic API settings for the enrichment oracle.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// BrowserConfig configures the headless browser used for listing searches.
type BrowserConfig struct {
	ExecutablePath string `yaml:"executable_path" mapstructure:"executable_path"`
	Headless       bool   `yaml:"headless" mapstructure:"headless"`
	TagPrefix      string `yaml:"tag_prefix" mapstructure:"tag_prefix"`
	DebugPortBase  int    `yaml:"debug_port_base" mapstructure:"debug_port_base"`
}

// SearchConfig configures the map-listing search source.
type SearchConfig struct {
	BaseURL      string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs  int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxPerSearch int    `yaml:"max_per_search" mapstructure:"max_per_search"`
}

// ScrapeConfig configures the enrichment fan-out sub-tasks.
type ScrapeConfig struct {
	TimeoutSecs       int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	SearchBaseURL     string `yaml:"search_base_url" mapstructure:"search_base_url"`
	SearchKey         string `yaml:"search_key" mapstructure:"search_key"`
	MaxContentLength  int    `yaml:"max_content_length" mapstructure:"max_content_length"`
	MaxSearchSnippets int    `yaml:"max_search_snippets" mapstructure:"max_search_snippets"`
}

// JobsConfig configures job orchestration.
type JobsConfig struct {
	LogBufferSize     int `yaml:"log_buffer_size" mapstructure:"log_buffer_size"`
	DispatchPollSecs  int `yaml:"dispatch_poll_secs" mapstructure:"dispatch_poll_secs"`
	MaxConcurrentJobs int `yaml:"max_concurrent_jobs" mapstructure:"max_concurrent_jobs"`
}

// ServerConfig configures the job-control HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "leadgen.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("quality.base_url", "https://www.googleapis.com/pagespeedonline/v5")
	v.SetDefault("quality.prospect_threshold", 60)
	v.SetDefault("quality.initial_delay_millis", 1000)
	v.SetDefault("quality.max_attempts", 3)
	v.SetDefault("quality.backoff_millis", 2000)
	v.SetDefault("quality.cache_ttl_hours", 24)
	v.SetDefault("quality.rate_per_second", 1)
	v.SetDefault("quality.timeout_secs", 30)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 2048)
	v.SetDefault("browser.executable_path", "chromium")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.tag_prefix", "leadgen")
	v.SetDefault("browser.debug_port_base", 9222)
	v.SetDefault("search.timeout_secs", 60)
	v.SetDefault("search.max_per_search", 20)
	v.SetDefault("scrape.timeout_secs", 20)
	v.SetDefault("scrape.search_base_url", "https://s.jina.ai")
	v.SetDefault("scrape.max_content_length", 20000)
	v.SetDefault("scrape.max_search_snippets", 5)
	v.SetDefault("jobs.log_buffer_size", 500)
	v.SetDefault("jobs.dispatch_poll_secs", 15)
	v.SetDefault("jobs.max_concurrent_jobs", 3)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
