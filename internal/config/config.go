package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Pause modes applied between batch chunks.
const (
	PausePrompt = "prompt"
	PauseDelay  = "delay"
	PauseNone   = "none"
)

// Config holds the full application configuration.
type Config struct {
	List      ListConfig      `yaml:"list" mapstructure:"list"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Aggregate AggregateConfig `yaml:"aggregate" mapstructure:"aggregate"`
	Careers   CareersConfig   `yaml:"careers" mapstructure:"careers"`
	Browser   BrowserConfig   `yaml:"browser" mapstructure:"browser"`
	Search    SearchConfig    `yaml:"search" mapstructure:"search"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// SourceConfig describes one listing page to scrape company names from.
type SourceConfig struct {
	URL                string   `yaml:"url" mapstructure:"url"`
	NameSelector       string   `yaml:"name_selector" mapstructure:"name_selector"`
	LinkSelector       string   `yaml:"link_selector" mapstructure:"link_selector"`
	LinkOffset         int      `yaml:"link_offset" mapstructure:"link_offset"`
	PaginationSelector string   `yaml:"pagination_selector" mapstructure:"pagination_selector"`
	NumberPrefix       bool     `yaml:"number_prefix" mapstructure:"number_prefix"`
	ExcludeURLs        []string `yaml:"exclude_urls" mapstructure:"exclude_urls"`
}

// ListConfig configures the listing scrape.
type ListConfig struct {
	OutputPath  string         `yaml:"output_path" mapstructure:"output_path"`
	MaxPages    int            `yaml:"max_pages" mapstructure:"max_pages"`
	Concurrency int            `yaml:"concurrency" mapstructure:"concurrency"`
	Sources     []SourceConfig `yaml:"sources" mapstructure:"sources"`
}

// BatchConfig configures the chunked Glassdoor enrichment run.
type BatchConfig struct {
	InputPath        string `yaml:"input_path" mapstructure:"input_path"`
	OutputPath       string `yaml:"output_path" mapstructure:"output_path"`
	ChunkSize        int    `yaml:"chunk_size" mapstructure:"chunk_size"`
	ConcurrencyLimit int    `yaml:"concurrency_limit" mapstructure:"concurrency_limit"`
	TimeoutMs        int    `yaml:"timeout_ms" mapstructure:"timeout_ms"`
	PersistEmpty     bool   `yaml:"persist_empty" mapstructure:"persist_empty"`
	Pause            string `yaml:"pause" mapstructure:"pause"`
	PauseDelaySecs   int    `yaml:"pause_delay_secs" mapstructure:"pause_delay_secs"`
}

// Timeout returns the per-fetch timeout.
func (b BatchConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutMs) * time.Millisecond
}

// PauseDelay returns the fixed inter-chunk delay.
func (b BatchConfig) PauseDelay() time.Duration {
	return time.Duration(b.PauseDelaySecs) * time.Second
}

// AggregateConfig configures the max-fusion pass.
type AggregateConfig struct {
	InputPath       string  `yaml:"input_path" mapstructure:"input_path"`
	OutputPath      string  `yaml:"output_path" mapstructure:"output_path"`
	RatingThreshold float64 `yaml:"rating_threshold" mapstructure:"rating_threshold"`
	Locale          string  `yaml:"locale" mapstructure:"locale"`
}

// CareersConfig configures the careers-site lookup stage.
type CareersConfig struct {
	InputPath        string `yaml:"input_path" mapstructure:"input_path"`
	OutputPath       string `yaml:"output_path" mapstructure:"output_path"`
	ConcurrencyLimit int    `yaml:"concurrency_limit" mapstructure:"concurrency_limit"`
	PersistEmpty     bool   `yaml:"persist_empty" mapstructure:"persist_empty"`
}

// BrowserConfig configures the headless browser used for rendered fetches.
type BrowserConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	Headless  bool   `yaml:"headless" mapstructure:"headless"`
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`
	ExecPath  string `yaml:"exec_path" mapstructure:"exec_path"`
}

// SearchConfig configures the search-engine lookup channel.
type SearchConfig struct {
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimitRPS   float64 `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	GlassdoorQuery string  `yaml:"glassdoor_query" mapstructure:"glassdoor_query"`
	CareersQuery   string  `yaml:"careers_query" mapstructure:"careers_query"`
}

// RetryConfig configures retries for listing-page fetches.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36"

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RATINGS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("list.output_path", "builtinCompanies.csv")
	v.SetDefault("list.max_pages", 0)
	v.SetDefault("list.concurrency", 4)
	v.SetDefault("batch.input_path", "builtinCompanies.csv")
	v.SetDefault("batch.output_path", "builtinCompaniesWithDetails.csv")
	v.SetDefault("batch.chunk_size", 50)
	v.SetDefault("batch.concurrency_limit", 0)
	v.SetDefault("batch.timeout_ms", 30000)
	v.SetDefault("batch.persist_empty", true)
	v.SetDefault("batch.pause", PausePrompt)
	v.SetDefault("batch.pause_delay_secs", 30)
	v.SetDefault("aggregate.input_path", "builtinCompaniesWithDetails.csv")
	v.SetDefault("aggregate.output_path", "builtinCompaniesWithDetailsDistinct.csv")
	v.SetDefault("aggregate.rating_threshold", 0.0)
	v.SetDefault("aggregate.locale", "en")
	v.SetDefault("careers.input_path", "builtinCompaniesWithDetailsDistinct.csv")
	v.SetDefault("careers.output_path", "builtinCompaniesWithCareersURLs.csv")
	v.SetDefault("careers.concurrency_limit", 10)
	v.SetDefault("careers.persist_empty", false)
	v.SetDefault("browser.enabled", true)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent", defaultUserAgent)
	v.SetDefault("search.base_url", "https://www.google.com/search")
	v.SetDefault("search.rate_limit_rps", 2.0)
	v.SetDefault("search.glassdoor_query", "%s company size site:glassdoor.com")
	v.SetDefault("search.careers_query", "%s view job openings")
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 10000)

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

	// A zero concurrency limit means "the whole chunk at once".
	if cfg.Batch.ConcurrencyLimit <= 0 {
		cfg.Batch.ConcurrencyLimit = cfg.Batch.ChunkSize
	}

	return &cfg, nil
}

// Validate checks the values the pipeline cannot run without.
func (c *Config) Validate() error {
	if c.Batch.ChunkSize <= 0 {
		return eris.Errorf("config: batch.chunk_size must be positive, got %d", c.Batch.ChunkSize)
	}
	if c.Batch.ConcurrencyLimit <= 0 {
		return eris.Errorf("config: batch.concurrency_limit must be positive, got %d", c.Batch.ConcurrencyLimit)
	}
	if c.Batch.Timeout() < time.Second {
		return eris.Errorf("config: batch.timeout_ms must be at least 1000, got %d", c.Batch.TimeoutMs)
	}
	switch c.Batch.Pause {
	case PausePrompt, PauseDelay, PauseNone:
	default:
		return eris.Errorf("config: unknown batch.pause mode %q", c.Batch.Pause)
	}
	if c.Aggregate.RatingThreshold < 0 || c.Aggregate.RatingThreshold > 5 {
		return eris.Errorf("config: aggregate.rating_threshold must be within [0,5], got %g", c.Aggregate.RatingThreshold)
	}
	if c.Careers.ConcurrencyLimit <= 0 {
		return eris.Errorf("config: careers.concurrency_limit must be positive, got %d", c.Careers.ConcurrencyLimit)
	}
	return nil
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
