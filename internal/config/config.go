package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/shopping-cli/internal/cost"
)

// Config holds the full application configuration.
type Config struct {
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI     OpenAIConfig     `yaml:"openai" mapstructure:"openai"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Tavily     TavilyConfig     `yaml:"tavily" mapstructure:"tavily"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Firecrawl  FirecrawlConfig  `yaml:"firecrawl" mapstructure:"firecrawl"`
	Backends   BackendsConfig   `yaml:"backends" mapstructure:"backends"`
	Profiles   ProfilesConfig   `yaml:"profiles" mapstructure:"profiles"`
	Scrape     ScrapeConfig     `yaml:"scrape" mapstructure:"scrape"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Pricing    cost.Rates       `yaml:"pricing" mapstructure:"pricing"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key      string `yaml:"key" mapstructure:"key"`
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	CacheTTL string `yaml:"cache_ttl" mapstructure:"cache_ttl"`
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// TavilyConfig holds Tavily search settings.
type TavilyConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// JinaConfig holds Jina AI Reader and Search settings.
type JinaConfig struct {
	Key           string  `yaml:"key" mapstructure:"key"`
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL string  `yaml:"search_base_url" mapstructure:"search_base_url"`
	RateLimit     float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// FirecrawlConfig holds Firecrawl API settings.
type FirecrawlConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// BackendsConfig selects the generator, search backend and scraper order.
type BackendsConfig struct {
	Generator string   `yaml:"generator" mapstructure:"generator"`
	Search    string   `yaml:"search" mapstructure:"search"`
	Scrapers  []string `yaml:"scrapers" mapstructure:"scrapers"`
}

// ProfilesConfig points at an optional profile file and names the default profile.
type ProfilesConfig struct {
	File    string `yaml:"file" mapstructure:"file"`
	Default string `yaml:"default" mapstructure:"default"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// ScrapeConfig configures page scraping.
type ScrapeConfig struct {
	ExcludePaths []string `yaml:"exclude_paths" mapstructure:"exclude_paths"`
	UserAgent    string   `yaml:"user_agent" mapstructure:"user_agent"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Backend names accepted in the backends section.
const (
	GeneratorAnthropic  = "anthropic"
	GeneratorOpenAI     = "openai"
	GeneratorPerplexity = "perplexity"

	SearchTavily = "tavily"
	SearchJina   = "jina"

	ScraperLocal     = "local"
	ScraperJina      = "jina"
	ScraperFirecrawl = "firecrawl"
)

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SHOPPING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without defaults are invisible to Unmarshal unless bound.
	for _, key := range []string{"anthropic.key", "openai.key", "openai.base_url", "perplexity.key", "tavily.key", "jina.key", "firecrawl.key", "profiles.file", "profiles.model"} {
		if err := v.BindEnv(key); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("backends.generator", GeneratorOpenAI)
	v.SetDefault("backends.search", SearchTavily)
	v.SetDefault("backends.scrapers", []string{ScraperFirecrawl, ScraperLocal})
	v.SetDefault("profiles.default", ProfileDefault)
	v.SetDefault("scrape.exclude_paths", []string{"/login*", "/member/*", "/cart*", "/cart/*", "/order/*", "/checkout/*", "/mypage/*", "/*.pdf"})
	v.SetDefault("anthropic.cache_ttl", "5m")
	v.SetDefault("tavily.base_url", "https://api.tavily.com")
	v.SetDefault("tavily.rate_limit", 5)
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("jina.rate_limit", 2)
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v1")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	cfg := Config{Pricing: cost.DefaultRates()}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the settings required by the given mode are present.
// Modes: "ask" and "serve".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "ask", "serve":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Backends.Generator {
	case GeneratorAnthropic:
		if c.Anthropic.Key == "" {
			errs = append(errs, "anthropic.key is required")
		}
	case GeneratorOpenAI:
		if c.OpenAI.Key == "" {
			errs = append(errs, "openai.key is required")
		}
	case GeneratorPerplexity:
		if c.Perplexity.Key == "" {
			errs = append(errs, "perplexity.key is required")
		}
	default:
		errs = append(errs, "backends.generator must be one of anthropic, openai, perplexity")
	}

	switch c.Backends.Search {
	case SearchTavily:
		if c.Tavily.Key == "" {
			errs = append(errs, "tavily.key is required")
		}
	case SearchJina:
		if c.Jina.Key == "" {
			errs = append(errs, "jina.key is required")
		}
	default:
		errs = append(errs, "backends.search must be one of tavily, jina")
	}

	if len(c.Backends.Scrapers) == 0 {
		errs = append(errs, "backends.scrapers must list at least one scraper")
	}
	for _, s := range c.Backends.Scrapers {
		switch s {
		case ScraperLocal, ScraperJina:
		case ScraperFirecrawl:
			if c.Firecrawl.Key == "" {
				errs = append(errs, "firecrawl.key is required for the firecrawl scraper")
			}
		default:
			errs = append(errs, "backends.scrapers: unknown scraper "+s)
		}
	}

	if mode == "serve" && c.Server.Port <= 0 {
		errs = append(errs, "server.port must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
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
