// Package config loads runtime configuration from file and environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type LLM struct {
	APIKey        string  `mapstructure:"api_key"`
	BaseURL       string  `mapstructure:"base_url"`
	Model         string  `mapstructure:"model"`
	MaxTokens     int     `mapstructure:"max_tokens"`
	Temperature   float32 `mapstructure:"temperature"`
	HistoryBudget int     `mapstructure:"history_budget"`
}

type Server struct {
	Addr string `mapstructure:"addr"`
}

type ClientCredential struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

type ToolService struct {
	Addr          string             `mapstructure:"addr"`
	BaseURL       string             `mapstructure:"base_url"`
	ClientID      string             `mapstructure:"client_id"`
	ClientSecret  string             `mapstructure:"client_secret"`
	Credentials   []ClientCredential `mapstructure:"credentials"`
	JWTSecret     string             `mapstructure:"jwt_secret"`
	TokenTTL      time.Duration      `mapstructure:"token_ttl"`
	CacheTTL      time.Duration      `mapstructure:"cache_ttl"`
	RatePerSecond float64            `mapstructure:"rate_per_second"`
	RateBurst     int                `mapstructure:"rate_burst"`
	SearchBaseURL string             `mapstructure:"search_base_url"`
}

type Orchestrator struct {
	MaxIterations       int           `mapstructure:"max_iterations"`
	TurnTimeout         time.Duration `mapstructure:"turn_timeout"`
	DispatchConcurrency int           `mapstructure:"dispatch_concurrency"`
	MaxConcurrentTurns  int64         `mapstructure:"max_concurrent_turns"`
}

type Session struct {
	IdleTTL         time.Duration `mapstructure:"idle_ttl"`
	JanitorSchedule string        `mapstructure:"janitor_schedule"`
}

type Config struct {
	DataDir      string       `mapstructure:"data_dir"`
	LogLevel     string       `mapstructure:"log_level"`
	LLM          LLM          `mapstructure:"llm"`
	Server       Server       `mapstructure:"server"`
	ToolService  ToolService  `mapstructure:"tool_service"`
	Orchestrator Orchestrator `mapstructure:"orchestrator"`
	Session      Session      `mapstructure:"session"`
}

// Load reads config.yaml from the given path (or the working directory)
// with WATTWISE_-prefixed environment overrides. A missing file is fine;
// defaults plus environment carry a dev setup.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("WATTWISE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// An explicitly named file must exist; the default search may
		// come up empty.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// The conventional variable wins over nothing; an explicit config
	// value still takes precedence.
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "./data")
	v.SetDefault("log_level", "info")

	v.SetDefault("llm.model", "gpt-4o")
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.history_budget", 8000)

	v.SetDefault("server.addr", ":8080")

	v.SetDefault("tool_service.addr", ":8081")
	v.SetDefault("tool_service.base_url", "http://localhost:8081")
	v.SetDefault("tool_service.client_id", "wattwise-host")
	v.SetDefault("tool_service.client_secret", "")
	v.SetDefault("tool_service.jwt_secret", "")
	v.SetDefault("tool_service.token_ttl", 15*time.Minute)
	v.SetDefault("tool_service.cache_ttl", 5*time.Minute)
	v.SetDefault("tool_service.rate_per_second", 20.0)
	v.SetDefault("tool_service.rate_burst", 10)
	v.SetDefault("tool_service.search_base_url", "https://html.duckduckgo.com/html/")

	v.SetDefault("orchestrator.max_iterations", 5)
	v.SetDefault("orchestrator.turn_timeout", 2*time.Minute)
	v.SetDefault("orchestrator.dispatch_concurrency", 4)
	v.SetDefault("orchestrator.max_concurrent_turns", int64(8))

	v.SetDefault("session.idle_ttl", 2*time.Hour)
	v.SetDefault("session.janitor_schedule", "*/10 * * * *")
}

// SlogLevel maps the configured level name to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
