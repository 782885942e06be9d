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
	Sources   []SourceConfig  `yaml:"sources" mapstructure:"sources"`
	Resolver  ResolverConfig  `yaml:"resolver" mapstructure:"resolver"`
	Reconcile ReconcileConfig `yaml:"reconcile" mapstructure:"reconcile"`
	Enrich    EnrichConfig    `yaml:"enrich" mapstructure:"enrich"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`

	// TaxonomyFile optionally points at a YAML category override file.
	TaxonomyFile string `yaml:"taxonomy_file" mapstructure:"taxonomy_file"`
}

// SourceConfig names one input file and the trust tier its records carry.
// Sources are listed in the config file; there is no env form for them.
type SourceConfig struct {
	Name string `yaml:"name" mapstructure:"name"`
	Path string `yaml:"path" mapstructure:"path"`
	Tier int    `yaml:"tier" mapstructure:"tier"`
}

// ResolverConfig holds the fuzzy-match thresholds.
type ResolverConfig struct {
	HighThreshold   float64 `yaml:"high_threshold" mapstructure:"high_threshold"`
	ReviewThreshold float64 `yaml:"review_threshold" mapstructure:"review_threshold"`
}

// ReconcileConfig configures field arbitration.
type ReconcileConfig struct {
	// CombinableTier bounds which tiers may contribute to set-field unions.
	CombinableTier int `yaml:"combinable_tier" mapstructure:"combinable_tier"`
}

// EnrichConfig configures the model enrichment pass.
type EnrichConfig struct {
	Enabled           bool    `yaml:"enabled" mapstructure:"enabled"`
	MaxTokens         int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature       float64 `yaml:"temperature" mapstructure:"temperature"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Concurrency       int     `yaml:"concurrency" mapstructure:"concurrency"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	AcceptThreshold   float64 `yaml:"accept_threshold" mapstructure:"accept_threshold"`
	CacheEntries      int     `yaml:"cache_entries" mapstructure:"cache_entries"`
	CacheTTLHours     int     `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	AssessQuality     bool    `yaml:"assess_quality" mapstructure:"assess_quality"`

	Retry   RetryConfig   `yaml:"retry" mapstructure:"retry"`
	Breaker BreakerConfig `yaml:"breaker" mapstructure:"breaker"`
}

// RetryConfig holds retry backoff knobs for model calls.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMS int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMS     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// BreakerConfig holds circuit breaker knobs for model calls.
type BreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// StoreConfig configures the persistence backend.
type StoreConfig struct {
	Driver      string     `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string     `yaml:"database_url" mapstructure:"database_url"`
	Pool        PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// PoolConfig tunes the postgres connection pool.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
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
	v.SetEnvPrefix("RESOLVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "resolve.db")
	v.SetDefault("store.pool.max_conns", 10)
	v.SetDefault("store.pool.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("resolver.high_threshold", 0.90)
	v.SetDefault("resolver.review_threshold", 0.75)
	v.SetDefault("reconcile.combinable_tier", 3)
	v.SetDefault("enrich.enabled", true)
	v.SetDefault("enrich.max_tokens", 1024)
	v.SetDefault("enrich.temperature", 0.0)
	v.SetDefault("enrich.timeout_secs", 30)
	v.SetDefault("enrich.concurrency", 4)
	v.SetDefault("enrich.requests_per_second", 2.0)
	v.SetDefault("enrich.accept_threshold", 0.4)
	v.SetDefault("enrich.cache_entries", 1024)
	v.SetDefault("enrich.cache_ttl_hours", 24)
	v.SetDefault("enrich.assess_quality", false)
	v.SetDefault("enrich.retry.max_attempts", 3)
	v.SetDefault("enrich.retry.initial_backoff_ms", 500)
	v.SetDefault("enrich.retry.max_backoff_ms", 15000)
	v.SetDefault("enrich.breaker.failure_threshold", 5)
	v.SetDefault("enrich.breaker.reset_timeout_secs", 30)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")

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

// Validate checks the configuration for the given command mode. Modes:
// "run" requires sources; "report" and "review" only need a readable store.
func (c *Config) Validate(mode string) error {
	var problems []string

	check := func(cond bool, msg string) {
		if !cond {
			problems = append(problems, msg)
		}
	}

	check(c.Store.Driver == "memory" || c.Store.Driver == "sqlite" || c.Store.Driver == "postgres",
		"store.driver must be one of memory, sqlite, postgres")
	if c.Store.Driver != "memory" {
		check(c.Store.DatabaseURL != "", "store.database_url is required")
	}

	check(c.Resolver.HighThreshold > 0 && c.Resolver.HighThreshold <= 1,
		"resolver.high_threshold must be in (0, 1]")
	check(c.Resolver.ReviewThreshold > 0 && c.Resolver.ReviewThreshold <= 1,
		"resolver.review_threshold must be in (0, 1]")
	check(c.Resolver.ReviewThreshold <= c.Resolver.HighThreshold,
		"resolver.review_threshold must not exceed resolver.high_threshold")

	switch mode {
	case "run":
		check(len(c.Sources) > 0, "at least one source is required")
		for _, s := range c.Sources {
			check(s.Name != "", "source name is required")
			check(s.Path != "", "source path is required for "+s.Name)
			check(s.Tier >= 1 && s.Tier <= 6, "source tier must be between 1 and 6 for "+s.Name)
		}
		if c.Enrich.Enabled {
			check(c.Anthropic.Key != "", "anthropic.key is required when enrich.enabled")
			check(c.Enrich.Concurrency >= 1 && c.Enrich.Concurrency <= 32,
				"enrich.concurrency must be between 1 and 32")
			check(c.Enrich.AcceptThreshold >= 0 && c.Enrich.AcceptThreshold <= 1,
				"enrich.accept_threshold must be between 0 and 1")
			check(c.Enrich.RequestsPerSecond > 0, "enrich.requests_per_second must be > 0")
		}
	case "report", "review":
		check(c.Store.Driver != "memory", "store.driver memory has nothing to read back")
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
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
