// Package config loads coursesched settings from flags, environment,
// .env files and an optional YAML config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/jmylchreest/coursesched/internal/logger"
	"github.com/jmylchreest/coursesched/pkg/extractor"
	"github.com/jmylchreest/coursesched/pkg/llm"
)

// EnvPrefix is prepended to every environment override, e.g.
// COURSESCHED_RETRY_MAX_ATTEMPTS.
const EnvPrefix = "COURSESCHED"

// Config is the resolved runtime configuration.
type Config struct {
	DataDir       string                    `mapstructure:"data_dir" validate:"required"`
	Checkpoint    CheckpointConfig          `mapstructure:"checkpoint"`
	Retry         RetryConfig               `mapstructure:"retry"`
	FallbackOrder []string                  `mapstructure:"fallback_order" validate:"required,min=1,dive,required"`
	Extraction    ExtractionConfig          `mapstructure:"extraction"`
	Providers     map[string]ProviderConfig `mapstructure:"providers" validate:"dive"`
	Database      DatabaseConfig            `mapstructure:"database"`
	Load          LoadConfig                `mapstructure:"load"`
	Server        ServerConfig              `mapstructure:"server"`
	Metrics       MetricsConfig             `mapstructure:"metrics"`
	Output        OutputConfig              `mapstructure:"output"`
}

// CheckpointConfig controls resumable extraction.
type CheckpointConfig struct {
	// Path defaults to <data_dir>/processed_courses.json.
	Path       string `mapstructure:"path"`
	FlushEvery int    `mapstructure:"flush_every" validate:"min=1"`
}

// RetryConfig is the per-provider backoff schedule.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" validate:"min=1"`
	Initial     time.Duration `mapstructure:"initial"`
	Multiplier  float64       `mapstructure:"multiplier" validate:"gte=1"`
	Max         time.Duration `mapstructure:"max"`
}

// ExtractionConfig holds settings shared by every provider.
type ExtractionConfig struct {
	Temperature    float64       `mapstructure:"temperature" validate:"gt=0,lte=2"`
	MaxTokens      int           `mapstructure:"max_tokens" validate:"min=1"`
	MaxContentSize string        `mapstructure:"max_content_size"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// ProviderConfig overrides settings for one provider.
type ProviderConfig struct {
	Model   string        `mapstructure:"model"`
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url" validate:"omitempty,url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DatabaseConfig selects the relational store.
type DatabaseConfig struct {
	DSN          string `mapstructure:"dsn"`
	Debug        bool   `mapstructure:"debug"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"min=0"`
}

// LoadConfig controls the database loader.
type LoadConfig struct {
	CommitEvery     int `mapstructure:"commit_every" validate:"min=1"`
	TestCommitEvery int `mapstructure:"test_commit_every" validate:"min=1"`
	// FailureReport defaults to <data_dir>/errors/failed_courses.json.
	FailureReport string `mapstructure:"failure_report"`
}

// ServerConfig configures the read API.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// MetricsConfig configures the standalone metrics listener used by batch
// commands. Empty disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// OutputConfig controls rendered query results.
type OutputConfig struct {
	// Timezone anchors calendar events; empty means local time.
	Timezone string `mapstructure:"timezone"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	policy := extractor.DefaultRetryPolicy()
	llmCfg := extractor.DefaultLLMConfig()
	return Config{
		DataDir:       "data",
		Checkpoint:    CheckpointConfig{FlushEvery: 10},
		Retry:         RetryConfig{MaxAttempts: policy.MaxAttempts, Initial: policy.Initial, Multiplier: policy.Multiplier, Max: policy.Max},
		FallbackOrder: []string{"cerebras", "cohere"},
		Extraction: ExtractionConfig{
			Temperature:    llmCfg.Temperature,
			MaxTokens:      llmCfg.MaxTokens,
			MaxContentSize: "32kB",
			Timeout:        llmCfg.Timeout,
		},
		Providers: map[string]ProviderConfig{},
		Load:      LoadConfig{CommitEvery: 100, TestCommitEvery: 5},
		Server:    ServerConfig{Addr: ":8080", ShutdownTimeout: 10 * time.Second},
	}
}

// SetDefaults registers DefaultConfig values on v so that env overrides of
// nested keys are visible to Unmarshal.
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("checkpoint.path", d.Checkpoint.Path)
	v.SetDefault("checkpoint.flush_every", d.Checkpoint.FlushEvery)
	v.SetDefault("retry.max_attempts", d.Retry.MaxAttempts)
	v.SetDefault("retry.initial", d.Retry.Initial)
	v.SetDefault("retry.multiplier", d.Retry.Multiplier)
	v.SetDefault("retry.max", d.Retry.Max)
	v.SetDefault("fallback_order", d.FallbackOrder)
	v.SetDefault("extraction.temperature", d.Extraction.Temperature)
	v.SetDefault("extraction.max_tokens", d.Extraction.MaxTokens)
	v.SetDefault("extraction.max_content_size", d.Extraction.MaxContentSize)
	v.SetDefault("extraction.timeout", d.Extraction.Timeout)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.debug", false)
	v.SetDefault("database.max_open_conns", 0)
	v.SetDefault("load.commit_every", d.Load.CommitEvery)
	v.SetDefault("load.test_commit_every", d.Load.TestCommitEvery)
	v.SetDefault("load.failure_report", "")
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("output.timezone", "")
}

// Setup prepares v: defaults, environment binding and the config file.
// A missing default config file is not an error; an explicit file that
// cannot be read is.
func Setup(v *viper.Viper, cfgFile string) error {
	LoadDotEnv()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("database.dsn", EnvPrefix+"_DATABASE_DSN", "DATABASE_URL")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", cfgFile, err)
		}
		logger.Debug("config file loaded", "path", cfgFile)
		return nil
	}

	v.SetConfigName(".coursesched")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
		return nil
	}
	logger.Debug("config file loaded", "path", v.ConfigFileUsed())
	return nil
}

// LoadDotEnv reads .env from the working directory when present. Variables
// already set in the environment win.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err == nil {
			logger.Debug("loaded env file", "path", f)
		}
	}
}

// Load decodes v into a Config, fills derived paths and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Providers == nil {
		cfg.Providers = map[string]ProviderConfig{}
	}
	for i, name := range cfg.FallbackOrder {
		cfg.FallbackOrder[i] = strings.ToLower(strings.TrimSpace(name))
	}
	if cfg.Checkpoint.Path == "" {
		cfg.Checkpoint.Path = filepath.Join(cfg.DataDir, "processed_courses.json")
	}
	if cfg.Load.FailureReport == "" {
		cfg.Load.FailureReport = filepath.Join(cfg.DataDir, "errors", "failed_courses.json")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and that every provider in the
// fallback order is known.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	for _, name := range c.FallbackOrder {
		if !llm.IsRegistered(name) {
			return fmt.Errorf("invalid config: unknown provider %q in fallback_order (available: %s)",
				name, strings.Join(llm.AvailableProviders(), ", "))
		}
	}
	if c.Retry.Max > 0 && c.Retry.Initial > c.Retry.Max {
		return fmt.Errorf("invalid config: retry.initial %s exceeds retry.max %s", c.Retry.Initial, c.Retry.Max)
	}
	return nil
}

// CorpusDir is where per-course JSON files live.
func (c *Config) CorpusDir() string {
	return filepath.Join(c.DataDir, "course_data")
}

// QueryResultsDir is the default destination of query output.
func (c *Config) QueryResultsDir() string {
	return filepath.Join(c.DataDir, "query_results")
}

// RetryPolicy converts the retry settings.
func (c *Config) RetryPolicy() extractor.RetryPolicy {
	return extractor.RetryPolicy{
		MaxAttempts: c.Retry.MaxAttempts,
		Initial:     c.Retry.Initial,
		Multiplier:  c.Retry.Multiplier,
		Max:         c.Retry.Max,
	}
}

// Location resolves output.timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Output.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Output.Timezone)
	if err != nil {
		return nil, fmt.Errorf("output.timezone: %w", err)
	}
	return loc, nil
}

// MaxContentBytes parses extraction.max_content_size ("32kB", "1 MiB",
// "0" for unlimited).
func (c *Config) MaxContentBytes() (int, error) {
	if strings.TrimSpace(c.Extraction.MaxContentSize) == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(c.Extraction.MaxContentSize)
	if err != nil {
		return 0, fmt.Errorf("extraction.max_content_size: %w", err)
	}
	return int(n), nil
}

// LLMConfig builds the extractor settings for provider name, applying any
// per-provider overrides.
func (c *Config) LLMConfig(name string) (extractor.LLMConfig, error) {
	out := extractor.DefaultLLMConfig()
	size, err := c.MaxContentBytes()
	if err != nil {
		return out, err
	}
	out.Temperature = c.Extraction.Temperature
	out.MaxTokens = c.Extraction.MaxTokens
	out.MaxContentSize = size
	out.Timeout = c.Extraction.Timeout
	if p, ok := c.Providers[name]; ok {
		out.Model = p.Model
		out.APIKey = p.APIKey
		out.BaseURL = p.BaseURL
		if p.Timeout > 0 {
			out.Timeout = p.Timeout
		}
	}
	return out, nil
}
