// Package config loads finmesh settings from defaults, an optional config
// file, a .env file, FINMESH_ prefixed environment variables and command line
// flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "FINMESH"

// Supported model providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderMock      = "mock"
)

// Config is the complete application configuration.
type Config struct {
	Env      string         `mapstructure:"env"`
	Log      LogConfig      `mapstructure:"log"`
	Model    ModelConfig    `mapstructure:"model"`
	Search   SearchConfig   `mapstructure:"search"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Database DatabaseConfig `mapstructure:"database"`
	Sentry   SentryConfig   `mapstructure:"sentry"`
	Server   ServerConfig   `mapstructure:"server"`
	Advisor  AdvisorConfig  `mapstructure:"advisor"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ModelConfig selects the reasoning backend. APIKey falls back to the
// provider's conventional environment variable.
type ModelConfig struct {
	Provider string `mapstructure:"provider"`
	Name     string `mapstructure:"name"`
	APIKey   string `mapstructure:"api_key"`
}

// SearchConfig configures the market research backend. An empty APIKey
// disables research.
type SearchConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	APIKey        string        `mapstructure:"api_key"`
	Limit         int           `mapstructure:"limit"`
	Lang          string        `mapstructure:"lang"`
	Timeout       time.Duration `mapstructure:"timeout"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	RatePerMinute float64       `mapstructure:"rate_per_minute"`
	Burst         int           `mapstructure:"burst"`
}

// RedisConfig enables the Redis search cache when Addr is set.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DatabaseConfig selects the portfolio store. An empty Driver keeps
// portfolios in memory.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type SentryConfig struct {
	DSN     string `mapstructure:"dsn"`
	Release string `mapstructure:"release"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type AdvisorConfig struct {
	// DefinitionsFile is an optional TOML file overriding agent personas and
	// task prompts.
	DefinitionsFile   string `mapstructure:"definitions_file"`
	MaxConcurrentRuns int    `mapstructure:"max_concurrent_runs"`
}

// LoadOptions controls where Load looks for settings.
type LoadOptions struct {
	// ConfigFile is an explicit config file (toml, yaml or json). Empty
	// searches for finmesh.* in the working directory.
	ConfigFile string
	// EnvFiles are dotenv files loaded into the process environment. Empty
	// loads .env when it exists.
	EnvFiles []string
	// Flags are bound by name: a set flag overrides every other source.
	Flags *pflag.FlagSet
}

// flagKeys maps command line flag names to config keys.
var flagKeys = map[string]string{
	"config-file":    "",
	"log-level":      "log.level",
	"log-format":     "log.format",
	"provider":       "model.provider",
	"model":          "model.name",
	"addr":           "server.addr",
	"definitions":    "advisor.definitions_file",
	"db-driver":      "database.driver",
	"db-dsn":         "database.dsn",
	"max-concurrent": "advisor.max_concurrent_runs",
}

var providerKeyEnv = map[string]string{
	ProviderOpenAI:    "OPENAI_API_KEY",
	ProviderAnthropic: "ANTHROPIC_API_KEY",
	ProviderGemini:    "GEMINI_API_KEY",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "production")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("model.provider", ProviderGemini)
	v.SetDefault("model.name", "gemini-2.0-flash")
	v.SetDefault("model.api_key", "")

	v.SetDefault("search.base_url", "https://api.firecrawl.dev")
	v.SetDefault("search.api_key", "")
	v.SetDefault("search.limit", 5)
	v.SetDefault("search.lang", "en")
	v.SetDefault("search.timeout", 60*time.Second)
	v.SetDefault("search.cache_ttl", 15*time.Minute)
	v.SetDefault("search.rate_per_minute", 30.0)
	v.SetDefault("search.burst", 5)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("database.driver", "")
	v.SetDefault("database.dsn", "")

	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.release", "")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Minute)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("advisor.definitions_file", "")
	v.SetDefault("advisor.max_concurrent_runs", 4)
}

// Load resolves the configuration and validates it.
func Load(opts LoadOptions) (*Config, error) {
	if err := loadEnvFiles(opts.EnvFiles); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		if f := opts.Flags.Lookup("config-file"); f != nil && opts.ConfigFile == "" {
			opts.ConfigFile = f.Value.String()
		}

		for name, key := range flagKeys {
			f := opts.Flags.Lookup(name)
			if f == nil || key == "" {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("finmesh")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Model.APIKey == "" {
		if env, ok := providerKeyEnv[cfg.Model.Provider]; ok {
			cfg.Model.APIKey = os.Getenv(env)
		}
	}

	if cfg.Search.APIKey == "" {
		cfg.Search.APIKey = os.Getenv("FIRECRAWL_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func loadEnvFiles(files []string) error {
	if len(files) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		return nil
	}

	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}

	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Model.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderGemini, ProviderMock:
	default:
		return fmt.Errorf("unknown model provider %q", c.Model.Provider)
	}

	if c.Model.Name == "" && c.Model.Provider != ProviderMock {
		return errors.New("model name is required")
	}

	switch c.Database.Driver {
	case "":
	case "postgres", "sqlite3":
		if c.Database.DSN == "" {
			return fmt.Errorf("database dsn is required for driver %s", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.Search.Limit <= 0 {
		return fmt.Errorf("search limit must be positive, got %d", c.Search.Limit)
	}

	if c.Search.Timeout <= 0 {
		return fmt.Errorf("search timeout must be positive, got %s", c.Search.Timeout)
	}

	if c.Advisor.MaxConcurrentRuns < 0 {
		return fmt.Errorf("max concurrent runs must not be negative, got %d", c.Advisor.MaxConcurrentRuns)
	}

	return nil
}

// Development reports whether the process runs in a development environment.
func (c *Config) Development() bool { return c.Env == "development" }
