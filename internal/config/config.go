// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/gradcafe-etl/internal/gradcafe"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Crawler     CrawlerConfig     `mapstructure:"crawler"`
	DB          DBConfig          `mapstructure:"db"`
	Standardize StandardizeConfig `mapstructure:"standardize"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int `mapstructure:"port"`
	RequestTimeout int `mapstructure:"request_timeout_seconds"`
}

// CrawlerConfig governs the fetch pipeline and its politeness settings.
type CrawlerConfig struct {
	UserAgent      string `mapstructure:"user_agent"`
	DelaySeconds   int    `mapstructure:"delay_seconds"`
	RespectRobots  bool   `mapstructure:"respect_robots"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	DefaultPages   int    `mapstructure:"default_pages"`
}

// DBConfig controls access to the Postgres pool.
type DBConfig struct {
	DSN             string `mapstructure:"dsn"`
	MaxConns        int    `mapstructure:"max_conns"`
	MinConns        int    `mapstructure:"min_conns"`
	ConnLifetimeMin int    `mapstructure:"conn_lifetime_minutes"`
}

// StandardizeConfig controls name standardization. When the API key is
// empty the LLM pass is skipped and only the rule fallback runs.
type StandardizeConfig struct {
	OpenAIKey      string `mapstructure:"openai_api_key"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("GRADETL")
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
	v.SetDefault("crawler.user_agent", "gradcafe-etl-bot/0.1")
	v.SetDefault("crawler.delay_seconds", 1)
	v.SetDefault("crawler.respect_robots", true)
	v.SetDefault("crawler.timeout_seconds", 15)
	v.SetDefault("crawler.default_pages", 100)
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("db.conn_lifetime_minutes", 30)
	v.SetDefault("standardize.model", "gpt-4o-mini")
	v.SetDefault("standardize.timeout_seconds", 20)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.TimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.timeout_seconds must be > 0")
	}
	if c.Crawler.DelaySeconds < 0 {
		return fmt.Errorf("crawler.delay_seconds must be >= 0")
	}
	if c.Crawler.DefaultPages < 0 || c.Crawler.DefaultPages > gradcafe.MaxRequestedPages {
		return fmt.Errorf("crawler.default_pages must be in [0, %d]", gradcafe.MaxRequestedPages)
	}
	return nil
}

// CrawlDelay converts the configured politeness delay into a duration.
func (c Config) CrawlDelay() time.Duration {
	return time.Duration(c.Crawler.DelaySeconds) * time.Second
}

// FetchTimeout converts the per-request timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Crawler.TimeoutSeconds) * time.Second
}
