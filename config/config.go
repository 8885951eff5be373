// Package config loads settings from defaults, an optional YAML file and
// CINE_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	EnvPrefix     = "CINE_"
	ConfigPathEnv = "CINE_CONFIG"
)

// DefaultConfigPaths are tried in order when no path is given
var DefaultConfigPaths = []string{
	"cine-journey.yaml",
	"config/cine-journey.yaml",
	"/etc/cine-journey/config.yaml",
}

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Encoder   EncoderConfig   `koanf:"encoder"`
	Sources   SourcesConfig   `koanf:"sources"`
	Planner   PlannerConfig   `koanf:"planner"`
	Storage   StorageConfig   `koanf:"storage"`
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Email     EmailConfig     `koanf:"email"`
	Logging   LoggingConfig   `koanf:"logging"`
}

type ServerConfig struct {
	Host           string        `koanf:"host"`
	Port           int           `koanf:"port"`
	RateLimit      int           `koanf:"rate_limit"` // requests per minute per IP
	CORSOrigins    []string      `koanf:"cors_origins"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

type EncoderConfig struct {
	Provider  string        `koanf:"provider"` // hash, openai or gemini
	Model     string        `koanf:"model"`
	APIKey    string        `koanf:"api_key"`
	BaseURL   string        `koanf:"base_url"`
	Dimension int           `koanf:"dimension"`
	Timeout   time.Duration `koanf:"timeout"`
}

type SourcesConfig struct {
	WikipediaURL    string        `koanf:"wikipedia_url"`
	OMDbURL         string        `koanf:"omdb_url"`
	OMDbAPIKey      string        `koanf:"omdb_api_key"`
	UserAgent       string        `koanf:"user_agent"`
	LookupTimeout   time.Duration `koanf:"lookup_timeout"`
	Concurrency     int           `koanf:"concurrency"`
	BreakerFailures uint32        `koanf:"breaker_failures"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`
}

type PlannerConfig struct {
	PoolSize     int    `koanf:"pool_size"`
	DefaultQuery string `koanf:"default_query"`
}

type StorageConfig struct {
	Enabled  bool   `koanf:"enabled"`
	DataPath string `koanf:"data_path"`
}

type SchedulerConfig struct {
	Enabled      bool     `koanf:"enabled"`
	Spec         string   `koanf:"spec"`
	Queries      []string `koanf:"queries"`
	Limit        int      `koanf:"limit"`
	RunAtStartup bool     `koanf:"run_at_startup"`
	ResetIndex   bool     `koanf:"reset_index"`
}

type EmailConfig struct {
	Enabled   bool   `koanf:"enabled"`
	SMTPHost  string `koanf:"smtp_host"`
	SMTPPort  int    `koanf:"smtp_port"`
	Username  string `koanf:"username"`
	Sender    string `koanf:"sender"`
	Password  string `koanf:"password"`
	Recipient string `koanf:"recipient"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8000,
			RateLimit:      120,
			CORSOrigins:    []string{"*"},
			RequestTimeout: 60 * time.Second,
		},
		Encoder: EncoderConfig{
			Provider:  "hash",
			Dimension: 384,
			Timeout:   30 * time.Second,
		},
		Sources: SourcesConfig{
			WikipediaURL:    "https://en.wikipedia.org",
			OMDbURL:         "https://www.omdbapi.com",
			UserAgent:       "cine-journey/1.0 (+https://github.com/cine-journey)",
			LookupTimeout:   10 * time.Second,
			Concurrency:     4,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		Planner: PlannerConfig{
			PoolSize:     20,
			DefaultQuery: "popular movies",
		},
		Storage: StorageConfig{
			Enabled:  true,
			DataPath: "./data",
		},
		Scheduler: SchedulerConfig{
			Enabled:      false,
			Spec:         "0 */6 * * *",
			Queries:      []string{"popular movies", "acclaimed television series"},
			Limit:        10,
			RunAtStartup: true,
		},
		Email: EmailConfig{
			SMTPPort: 587,
			Username: "api",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads .env, then layers defaults, the YAML file at path (or the first
// default path found) and CINE_* environment variables.
func Load(path string) (*Config, error) {
	// a missing .env is normal
	_ = godotenv.Load()

	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := splitLists(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnv); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envTransform maps CINE_SOURCES_LOOKUP_TIMEOUT to sources.lookup_timeout
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	if key == "config" {
		return ""
	}
	section, rest, ok := strings.Cut(key, "_")
	if !ok || rest == "" {
		return ""
	}
	return section + "." + rest
}

var listPaths = []string{
	"server.cors_origins",
	"scheduler.queries",
}

// splitLists turns comma-separated env values into slices
func splitLists(k *koanf.Koanf) error {
	for _, path := range listPaths {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		var items []string
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				items = append(items, part)
			}
		}
		if err := k.Set(path, items); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, errors.New("server.rate_limit must not be negative"))
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, errors.New("server.request_timeout must be positive"))
	}

	switch strings.ToLower(c.Encoder.Provider) {
	case "", "hash", "openai", "gemini":
	default:
		errs = append(errs, fmt.Errorf("encoder.provider %q is not one of hash, openai, gemini", c.Encoder.Provider))
	}
	if c.Encoder.Dimension <= 0 {
		errs = append(errs, errors.New("encoder.dimension must be positive"))
	}

	if c.Sources.LookupTimeout <= 0 {
		errs = append(errs, errors.New("sources.lookup_timeout must be positive"))
	}
	if c.Sources.Concurrency <= 0 {
		errs = append(errs, errors.New("sources.concurrency must be positive"))
	}

	if c.Planner.PoolSize <= 0 {
		errs = append(errs, errors.New("planner.pool_size must be positive"))
	}

	if c.Storage.Enabled && c.Storage.DataPath == "" {
		errs = append(errs, errors.New("storage.data_path is required when storage is enabled"))
	}

	if c.Scheduler.Enabled {
		if c.Scheduler.Spec == "" {
			errs = append(errs, errors.New("scheduler.spec is required when the scheduler is enabled"))
		}
		if len(c.Scheduler.Queries) == 0 {
			errs = append(errs, errors.New("scheduler.queries must not be empty"))
		}
	}

	if c.Email.Enabled && (c.Email.SMTPHost == "" || c.Email.Recipient == "") {
		errs = append(errs, errors.New("email.smtp_host and email.recipient are required when email is enabled"))
	}

	return errors.Join(errs...)
}

// Addr is the listen address of the HTTP server
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
