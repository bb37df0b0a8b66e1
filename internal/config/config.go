package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Fetch       FetchConfig       `yaml:"fetch" mapstructure:"fetch"`
	ScrapingBee ScrapingBeeConfig `yaml:"scrapingbee" mapstructure:"scrapingbee"`
	Zyte        ZyteConfig        `yaml:"zyte" mapstructure:"zyte"`
	Browser     BrowserConfig     `yaml:"browser" mapstructure:"browser"`
	Classifier  ClassifierConfig  `yaml:"classifier" mapstructure:"classifier"`
	Anthropic   AnthropicConfig   `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI      OpenAIConfig      `yaml:"openai" mapstructure:"openai"`
	BizFile     BizFileConfig     `yaml:"bizfile" mapstructure:"bizfile"`
	People      PeopleConfig      `yaml:"people" mapstructure:"people"`
	Enrich      EnrichConfig      `yaml:"enrich" mapstructure:"enrich"`
	Columns     ColumnsConfig     `yaml:"columns" mapstructure:"columns"`
	Slack       SlackConfig       `yaml:"slack" mapstructure:"slack"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the job store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the upload API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// FetchConfig configures the page fetcher shared by all crawl phases.
type FetchConfig struct {
	Backend           string  `yaml:"backend" mapstructure:"backend"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	MinDelayMs        int     `yaml:"min_delay_ms" mapstructure:"min_delay_ms"`
	MaxDelayMs        int     `yaml:"max_delay_ms" mapstructure:"max_delay_ms"`
	FailureDelayMs    int     `yaml:"failure_delay_ms" mapstructure:"failure_delay_ms"`
	BreakerThreshold  int     `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs  int     `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	// FallbackHTTP retries a failed backend fetch once over plain HTTP.
	FallbackHTTP      bool    `yaml:"fallback_http" mapstructure:"fallback_http"`
}

// ScrapingBeeConfig holds ScrapingBee API settings.
type ScrapingBeeConfig struct {
	Key      string `yaml:"key" mapstructure:"key"`
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	RenderJS bool   `yaml:"render_js" mapstructure:"render_js"`
	WaitMs   int    `yaml:"wait_ms" mapstructure:"wait_ms"`
}

// ZyteConfig holds Zyte API settings.
type ZyteConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// BrowserConfig configures the headless Chrome backend.
type BrowserConfig struct {
	Headless    bool `yaml:"headless" mapstructure:"headless"`
	WaitMs      int  `yaml:"wait_ms" mapstructure:"wait_ms"`
	TimeoutSecs int  `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ClassifierConfig selects the LLM provider used for phone typing and
// name splitting.
type ClassifierConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// BizFileConfig holds California BizFile settings.
type BizFileConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// PeopleConfig configures the people-search site.
type PeopleConfig struct {
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	MaxPages int    `yaml:"max_pages" mapstructure:"max_pages"`
}

// EnrichConfig configures row enrichment.
type EnrichConfig struct {
	RowConcurrency      int      `yaml:"row_concurrency" mapstructure:"row_concurrency"`
	RelativeConcurrency int      `yaml:"relative_concurrency" mapstructure:"relative_concurrency"`
	MaxRelatives        int      `yaml:"max_relatives" mapstructure:"max_relatives"`
	RelativeDelayMs     int      `yaml:"relative_delay_ms" mapstructure:"relative_delay_ms"`
	IgnoreLLCPatterns   []string `yaml:"ignore_llc_patterns" mapstructure:"ignore_llc_patterns"`
	FundPatterns        []string `yaml:"fund_patterns" mapstructure:"fund_patterns"`
}

// ColumnsConfig points at an optional YAML column-mapping override.
type ColumnsConfig struct {
	MappingFile string `yaml:"mapping_file" mapstructure:"mapping_file"`
}

// SlackConfig holds the incoming webhook used for job notices.
type SlackConfig struct {
	WebhookURL   string `yaml:"webhook_url" mapstructure:"webhook_url"`
	NotifyErrors bool   `yaml:"notify_errors" mapstructure:"notify_errors"`
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
	v.SetEnvPrefix("SKIPTRACE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "skiptrace.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("fetch.backend", "scrapingbee")
	v.SetDefault("fetch.requests_per_second", 5.0)
	v.SetDefault("fetch.min_delay_ms", 4000)
	v.SetDefault("fetch.max_delay_ms", 7000)
	v.SetDefault("fetch.failure_delay_ms", 3000)
	v.SetDefault("fetch.breaker_threshold", 10)
	v.SetDefault("fetch.breaker_reset_secs", 60)
	v.SetDefault("fetch.timeout_secs", 90)
	v.SetDefault("fetch.fallback_http", false)
	v.SetDefault("scrapingbee.base_url", "https://app.scrapingbee.com/api/v1")
	v.SetDefault("scrapingbee.render_js", true)
	v.SetDefault("scrapingbee.wait_ms", 2000)
	v.SetDefault("zyte.base_url", "https://api.zyte.com/v1")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.wait_ms", 1500)
	v.SetDefault("browser.timeout_secs", 45)
	v.SetDefault("classifier.provider", "anthropic")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("bizfile.base_url", "https://bizfileonline.sos.ca.gov")
	v.SetDefault("people.base_url", "https://www.cyberbackgroundchecks.com")
	v.SetDefault("people.max_pages", 25)
	v.SetDefault("enrich.row_concurrency", 10)
	v.SetDefault("enrich.relative_concurrency", 10)
	v.SetDefault("enrich.max_relatives", 5)
	v.SetDefault("enrich.relative_delay_ms", 20)
	v.SetDefault("enrich.ignore_llc_patterns", []string{})
	v.SetDefault("enrich.fund_patterns", []string{"fund", "funds", "family"})

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

// Validate checks the settings required by a command mode ("run" or "serve").
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "run":
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		switch c.Store.Driver {
		case "sqlite", "postgres":
		default:
			problems = append(problems, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
		}
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Fetch.Backend {
	case "scrapingbee":
		if c.ScrapingBee.Key == "" {
			problems = append(problems, "scrapingbee.key is required")
		}
	case "zyte":
		if c.Zyte.Key == "" {
			problems = append(problems, "zyte.key is required")
		}
	case "browser", "http":
	default:
		problems = append(problems, fmt.Sprintf("fetch.backend %q is not supported", c.Fetch.Backend))
	}

	switch c.Classifier.Provider {
	case "anthropic":
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
	case "openai":
		if c.OpenAI.Key == "" {
			problems = append(problems, "openai.key is required")
		}
	default:
		problems = append(problems, fmt.Sprintf("classifier.provider %q is not supported", c.Classifier.Provider))
	}

	if c.Enrich.RowConcurrency < 1 || c.Enrich.RowConcurrency > 50 {
		problems = append(problems, "enrich.row_concurrency must be between 1 and 50")
	}
	if c.Enrich.RelativeConcurrency < 1 {
		problems = append(problems, "enrich.relative_concurrency must be > 0")
	}
	if c.Enrich.MaxRelatives < 0 {
		problems = append(problems, "enrich.max_relatives must be >= 0")
	}
	if c.Fetch.MaxDelayMs < c.Fetch.MinDelayMs {
		problems = append(problems, "fetch.max_delay_ms must be >= fetch.min_delay_ms")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
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
