// Package config provides configuration management for the trade analysis service.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	apperrors "tradecoach/internal/errors"
	"tradecoach/internal/logging"
	"tradecoach/internal/narrative"
	"tradecoach/internal/resilience"
	"tradecoach/internal/security"
	"tradecoach/pkg/utils"
)

// Config holds all application configuration.
type Config struct {
	Generator   GeneratorConfig `mapstructure:"generator" yaml:"generator"`
	API         APIConfig       `mapstructure:"api" yaml:"api"`
	Store       StoreConfig     `mapstructure:"store" yaml:"store"`
	Logging     LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Credentials Credentials     `mapstructure:"-" yaml:"credentials"` // Environment only
	Dir         string          `mapstructure:"-" yaml:"-"`
}

// GeneratorConfig holds narrative generation settings.
type GeneratorConfig struct {
	Models         []string             `mapstructure:"models" yaml:"models"`
	Strategy       string               `mapstructure:"strategy" yaml:"strategy"` // primary, sequential
	Temperature    float64              `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens      int                  `mapstructure:"max_tokens" yaml:"max_tokens"`
	Timeout        time.Duration        `mapstructure:"timeout" yaml:"timeout"`
	RetryAttempts  int                  `mapstructure:"retry_attempts" yaml:"retry_attempts"` // per model, rate limits only
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker" yaml:"circuit_breaker"`
}

// CircuitBreakerConfig holds per-model circuit breaker settings.
type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled" yaml:"enabled"`
	FailureThreshold int           `mapstructure:"failure_threshold" yaml:"failure_threshold"`
	Cooldown         time.Duration `mapstructure:"cooldown" yaml:"cooldown"`
}

// APIConfig holds HTTP server settings.
type APIConfig struct {
	Addr      string  `mapstructure:"addr" yaml:"addr"`
	AuthToken string  `mapstructure:"auth_token" yaml:"auth_token"`
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit"` // requests per second, 0 = off
	RateBurst int     `mapstructure:"rate_burst" yaml:"rate_burst"`
}

// StoreConfig holds analysis journal settings.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Console    bool   `mapstructure:"console" yaml:"console"`
	File       bool   `mapstructure:"file" yaml:"file"`
	FilePath   string `mapstructure:"file_path" yaml:"file_path"`
	MaxSize    int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age"`
}

// Credentials holds provider API keys.
type Credentials struct {
	OpenAIKey    string `yaml:"openai_api_key"`
	AnthropicKey string `yaml:"anthropic_api_key"`
}

// Default generator models, tried in order.
var DefaultModels = []string{"gpt-4o-mini", "claude-3-5-haiku-latest"}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/tradecoach"
	}
	return filepath.Join(home, ".config", "tradecoach")
}

// ConfigFile returns the path of config.toml inside configDir.
func ConfigFile(configDir string) string {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	return filepath.Join(configDir, "config.toml")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing
// config.toml is created from the template and defaults are used.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	// A .env file in the working directory is optional
	_ = godotenv.Load()

	cfg := &Config{Dir: configDir}
	if err := loadConfigFile(configDir, "config", cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, configDir string) {
	v.SetDefault("generator.models", DefaultModels)
	v.SetDefault("generator.strategy", string(narrative.StrategyPrimary))
	v.SetDefault("generator.temperature", narrative.DefaultTemperature)
	v.SetDefault("generator.max_tokens", narrative.DefaultMaxTokens)
	v.SetDefault("generator.timeout", "45s")
	v.SetDefault("generator.retry_attempts", 1)
	v.SetDefault("generator.circuit_breaker.enabled", false)
	v.SetDefault("generator.circuit_breaker.failure_threshold", 5)
	v.SetDefault("generator.circuit_breaker.cooldown", "30s")

	v.SetDefault("api.addr", ":8080")
	v.SetDefault("api.auth_token", "")
	v.SetDefault("api.rate_limit", 0.0)
	v.SetDefault("api.rate_burst", 10)

	v.SetDefault("store.path", filepath.Join(configDir, "analyses.db"))

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.file", false)
	v.SetDefault("logging.file_path", filepath.Join(configDir, "logs", "tradecoach.log"))
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 7)
	v.SetDefault("logging.max_age", 30)
}

func loadConfigFile(configDir, name string, target *Config) error {
	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	setDefaults(v, configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
		if err := createTemplateConfig(configDir, name); err != nil {
			return err
		}
	}

	return v.Unmarshal(target)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Credentials.OpenAIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Credentials.AnthropicKey = v
	}
	if v := os.Getenv("TRADECOACH_API_TOKEN"); v != "" {
		cfg.API.AuthToken = v
	}
	if v := os.Getenv("TRADECOACH_MODELS"); v != "" {
		var models []string
		for _, m := range strings.Split(v, ",") {
			if m = strings.TrimSpace(m); m != "" {
				models = append(models, m)
			}
		}
		cfg.Generator.Models = models
	}
	if v := os.Getenv("TRADECOACH_STRATEGY"); v != "" {
		cfg.Generator.Strategy = v
	}
	if v := os.Getenv("TRADECOACH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TRADECOACH_API_ADDR"); v != "" {
		cfg.API.Addr = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Generator.Temperature < 0 || c.Generator.Temperature > 2 {
		return apperrors.Wrapf(apperrors.ErrConfigInvalid, "temperature must be between 0 and 2, got %v", c.Generator.Temperature)
	}
	if c.Generator.MaxTokens <= 0 {
		return apperrors.Wrap(apperrors.ErrConfigInvalid, "max_tokens must be positive")
	}
	if c.Generator.Timeout <= 0 {
		return apperrors.Wrap(apperrors.ErrConfigInvalid, "timeout must be positive")
	}
	if _, err := narrative.ParseStrategy(c.Generator.Strategy); err != nil {
		return apperrors.Wrap(apperrors.ErrConfigInvalid, err.Error())
	}
	if c.Generator.RetryAttempts < 0 {
		return apperrors.Wrap(apperrors.ErrConfigInvalid, "retry_attempts must be non-negative")
	}
	if c.Generator.CircuitBreaker.Enabled && c.Generator.CircuitBreaker.FailureThreshold <= 0 {
		return apperrors.Wrap(apperrors.ErrConfigInvalid, "circuit_breaker.failure_threshold must be positive")
	}
	if c.API.RateLimit < 0 {
		return apperrors.Wrap(apperrors.ErrConfigInvalid, "rate_limit must be non-negative")
	}
	return nil
}

// HasProviderKeys reports whether any narrative provider is configured.
func (c *Config) HasProviderKeys() bool {
	return c.Credentials.OpenAIKey != "" || c.Credentials.AnthropicKey != ""
}

// LogConfig converts the logging section into a logger configuration.
func (c *Config) LogConfig() logging.LogConfig {
	return logging.LogConfig{
		Level:      c.Logging.Level,
		Console:    c.Logging.Console,
		File:       c.Logging.File,
		FilePath:   c.Logging.FilePath,
		MaxSize:    c.Logging.MaxSize,
		MaxBackups: c.Logging.MaxBackups,
		MaxAge:     c.Logging.MaxAge,
	}
}

// BreakerConfig converts the circuit breaker section.
func (c *Config) BreakerConfig() resilience.CircuitBreakerConfig {
	cfg := resilience.DefaultCircuitBreakerConfig()
	cfg.FailureThreshold = c.Generator.CircuitBreaker.FailureThreshold
	if c.Generator.CircuitBreaker.Cooldown > 0 {
		cfg.Cooldown = c.Generator.CircuitBreaker.Cooldown
	}
	return cfg
}

// RetryConfig converts the retry setting into a backoff configuration.
func (c *Config) RetryConfig() utils.RetryConfig {
	cfg := utils.DefaultRetryConfig()
	cfg.MaxAttempts = c.Generator.RetryAttempts
	cfg.InitialDelay = 500 * time.Millisecond
	return cfg
}

// Redacted returns a copy safe to print, with secrets masked.
func (c *Config) Redacted() Config {
	out := *c
	out.Generator.Models = append([]string(nil), c.Generator.Models...)
	out.Credentials = Credentials{
		OpenAIKey:    security.MaskCredential(c.Credentials.OpenAIKey),
		AnthropicKey: security.MaskCredential(c.Credentials.AnthropicKey),
	}
	out.API.AuthToken = security.MaskCredential(c.API.AuthToken)
	return out
}
