package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Nate-Smithline/LedgerTerminal/internal/common"
	"github.com/Nate-Smithline/LedgerTerminal/internal/llm"
)

// EnvPrefix is prepended to every environment override, so llm.api_key is
// read from LEDGER_LLM_API_KEY.
const EnvPrefix = "LEDGER"

// Known LLM providers. The mock provider classifies with fixed keyword rules
// and needs no key.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderMock      = "mock"
)

// Config is the full application configuration.
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Log        LogConfig        `mapstructure:"log"`
	AMQP       AMQPConfig       `mapstructure:"amqp"`
	Server     ServerConfig     `mapstructure:"server"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Categorize CategorizeConfig `mapstructure:"categorize"`
}

// DatabaseConfig locates the SQLite file.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig selects the slog level and handler.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LLMConfig configures the classification model.
type LLMConfig struct {
	Provider     string        `mapstructure:"provider"`
	APIKey       string        `mapstructure:"api_key"`
	Model        string        `mapstructure:"model"`
	BaseURL      string        `mapstructure:"base_url"`
	MaxTokens    int           `mapstructure:"max_tokens"`
	Temperature  float64       `mapstructure:"temperature"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
}

// CategorizeConfig tunes the batch orchestrator.
type CategorizeConfig struct {
	BatchSize   int `mapstructure:"batch_size"`
	Concurrency int `mapstructure:"concurrency"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr   string        `mapstructure:"addr"`
	Tokens []TokenConfig `mapstructure:"tokens"`
}

// TokenConfig maps one bearer token to the user it authenticates.
type TokenConfig struct {
	Token  string `mapstructure:"token"`
	UserID string `mapstructure:"user_id"`
}

// AMQPConfig configures event notifications. An empty URL disables them.
type AMQPConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

// SetDefaults registers every default on v. Keys without a meaningful
// default are still registered so AutomaticEnv can fill them on Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "~/.local/share/ledger/ledger.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("llm.provider", ProviderAnthropic)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("llm.timeout", llm.DefaultTimeout)
	v.SetDefault("llm.max_attempts", 3)
	v.SetDefault("llm.initial_delay", time.Second)
	v.SetDefault("llm.max_delay", 30*time.Second)

	v.SetDefault("categorize.batch_size", 25)
	v.SetDefault("categorize.concurrency", 4)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("amqp.url", "")
	v.SetDefault("amqp.exchange", "ledger.events")
}

// Load reads configuration from cfgFile (or the default search path), a .env
// file in the working directory, and LEDGER_* environment variables. A
// missing config file is not an error.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(ExpandPath(cfgFile))
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "ledger"))
		}
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Database.Path = ExpandPath(cfg.Database.Path)
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	return &cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	switch c.LLM.Provider {
	case ProviderAnthropic, ProviderOpenAI, ProviderMock:
	default:
		errs = append(errs, fmt.Errorf("llm.provider must be anthropic, openai or mock, got %q", c.LLM.Provider))
	}
	if c.LLM.MaxAttempts < 1 {
		errs = append(errs, errors.New("llm.max_attempts must be at least 1"))
	}
	if c.LLM.Timeout <= 0 {
		errs = append(errs, errors.New("llm.timeout must be positive"))
	}
	if c.Categorize.BatchSize < 1 || c.Categorize.BatchSize > 25 {
		errs = append(errs, fmt.Errorf("categorize.batch_size must be between 1 and 25, got %d", c.Categorize.BatchSize))
	}
	if c.Categorize.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("categorize.concurrency must be at least 1, got %d", c.Categorize.Concurrency))
	}

	seen := make(map[string]bool, len(c.Server.Tokens))
	for i, tok := range c.Server.Tokens {
		if tok.Token == "" || tok.UserID == "" {
			errs = append(errs, fmt.Errorf("server.tokens[%d] needs both token and user_id", i))
			continue
		}
		if seen[tok.Token] {
			errs = append(errs, fmt.Errorf("server.tokens[%d] repeats a token", i))
		}
		seen[tok.Token] = true
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w:\n%w", common.ErrInvalidConfig, errors.Join(errs...))
}

// ValidateLLM checks that a real provider has credentials. Commands that
// categorize call it in addition to Validate.
func (c *Config) ValidateLLM() error {
	if c.LLM.Provider != ProviderMock && c.LLM.APIKey == "" {
		return fmt.Errorf("%w: llm.api_key is required for provider %q (set %s_LLM_API_KEY)", common.ErrMissingConfig, c.LLM.Provider, EnvPrefix)
	}
	return nil
}

// UserTokens returns the bearer token to user id map.
func (c *Config) UserTokens() map[string]string {
	out := make(map[string]string, len(c.Server.Tokens))
	for _, tok := range c.Server.Tokens {
		out[tok.Token] = tok.UserID
	}
	return out
}

// ClassifierConfig converts the LLM settings for llm.NewClassifier.
func (c LLMConfig) ClassifierConfig() llm.Config {
	return llm.Config{
		Provider:     c.Provider,
		APIKey:       c.APIKey,
		Model:        c.Model,
		BaseURL:      c.BaseURL,
		MaxTokens:    c.MaxTokens,
		Temperature:  c.Temperature,
		Timeout:      c.Timeout,
		MaxAttempts:  c.MaxAttempts,
		InitialDelay: c.InitialDelay,
		MaxDelay:     c.MaxDelay,
	}
}
