package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the planweave service.
type Config struct {
	General GeneralConfig `mapstructure:"general"`
	Server  ServerConfig  `mapstructure:"server"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Agent   AgentConfig   `mapstructure:"agent"`
	Search  SearchConfig  `mapstructure:"search"`
	Storage StorageConfig `mapstructure:"storage"`
	Logs    LogsConfig    `mapstructure:"logs"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// ServerConfig contains HTTP server and auth settings.
type ServerConfig struct {
	Address   string `mapstructure:"address"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// LLMConfig contains LLM provider configurations.
type LLMConfig struct {
	Providers map[string]LLMProvider `mapstructure:"providers"`
	Routing   LLMRoutingConfig       `mapstructure:"routing"`
}

// LLMProvider represents a single LLM provider configuration.
type LLMProvider struct {
	Type    string              `mapstructure:"type"` // openai
	APIKey  string              `mapstructure:"api_key"`
	BaseURL string              `mapstructure:"base_url"`
	Models  map[string]LLMModel `mapstructure:"models"`
	Timeout time.Duration       `mapstructure:"timeout"`
}

// LLMModel represents a specific model configuration.
type LLMModel struct {
	Name            string  `mapstructure:"name"`
	APIName         string  `mapstructure:"api_name"`
	MaxTokens       int     `mapstructure:"max_tokens"`
	Temperature     float64 `mapstructure:"temperature"`
	CostPer1K       float64 `mapstructure:"cost_per_1k_input"`
	CostPer1KOutput float64 `mapstructure:"cost_per_1k_output"`
}

// LLMRoutingConfig defines which model to use for each stage of a run.
type LLMRoutingConfig struct {
	Planning   string `mapstructure:"planning"`   // plan and replan steps
	Execution  string `mapstructure:"execution"`  // tool-calling sub-agent
	Assessment string `mapstructure:"assessment"` // goal assessment
	Decision   string `mapstructure:"decision"`   // choice-node true/false calls
	Fallback   string `mapstructure:"fallback"`
}

// Route returns the model configured for a stage, falling back when unset.
func (r LLMRoutingConfig) Route(model string) string {
	if model != "" {
		return model
	}
	return r.Fallback
}

// AgentConfig bounds the plan-execute-assess loop.
type AgentConfig struct {
	RecursionLimit    int `mapstructure:"recursion_limit"`     // global per-run transition ceiling
	MaxResultChars    int `mapstructure:"max_result_chars"`    // hard truncation for step results in context
	RecentDetailSteps int `mapstructure:"recent_detail_steps"` // steps shown in full once history is long
	SummaryThreshold  int `mapstructure:"summary_threshold"`   // history length above which summaries kick in
}

// SearchConfig selects and configures the web search tool.
type SearchConfig struct {
	Provider      string        `mapstructure:"provider"` // serper or brave
	SerperAPIKey  string        `mapstructure:"serper_api_key"`
	BraveAPIKey   string        `mapstructure:"brave_api_key"`
	MaxResults    int           `mapstructure:"max_results"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxSnippetLen int           `mapstructure:"max_snippet_len"`
}

// StorageConfig selects the workflow store backend.
type StorageConfig struct {
	Driver   string         `mapstructure:"driver"` // postgres, redis or memory
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

// PostgresConfig contains Postgres connection settings.
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// DSN builds a postgres connection string from the configured fields.
func (p PostgresConfig) DSN() (string, error) {
	if p.URL != "" {
		return p.URL, nil
	}
	if p.Host == "" || p.DBName == "" {
		return "", fmt.Errorf("postgres not configured (storage.postgres.host/dbname or url)")
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl), nil
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// LogsConfig controls execution log files and their search index.
type LogsConfig struct {
	Dir           string `mapstructure:"dir"`
	SearchEnabled bool   `mapstructure:"search_enabled"`
	IndexPath     string `mapstructure:"index_path"`
}

// LoadConfig reads configuration from file and environment. A missing config
// file is not fatal: defaults plus PLANWEAVE_* environment variables apply.
func LoadConfig(path string) *Config {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.default_timeout", "2m")
	v.SetDefault("server.address", ":10011")
	v.SetDefault("agent.recursion_limit", 50)
	v.SetDefault("agent.max_result_chars", 2000)
	v.SetDefault("agent.recent_detail_steps", 3)
	v.SetDefault("agent.summary_threshold", 5)
	v.SetDefault("search.provider", "serper")
	v.SetDefault("search.max_results", 5)
	v.SetDefault("search.timeout", "20s")
	v.SetDefault("storage.driver", "memory")
	v.SetDefault("logs.dir", "logs")
	v.SetDefault("logs.search_enabled", false)

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		v.AddConfigPath(exeDir)
		v.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("PLANWEAVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	if config.LLM.Providers == nil {
		config.LLM.Providers = defaultProviders()
	}
	if config.LLM.Routing.Fallback == "" {
		config.LLM.Routing.Fallback = firstModel(config.LLM.Providers)
	}
	return &config
}

// defaultProviders builds a single OpenAI provider from the environment so
// the CLI works without a config file.
func defaultProviders() map[string]LLMProvider {
	model := os.Getenv("PLANWEAVE_LLM_MODEL")
	if model == "" {
		model = "gpt-4o"
	}
	return map[string]LLMProvider{
		"openai": {
			Type:    "openai",
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			Timeout: 60 * time.Second,
			Models: map[string]LLMModel{
				model: {Name: model, MaxTokens: 4000, Temperature: 0.3},
			},
		},
	}
}

func firstModel(providers map[string]LLMProvider) string {
	for _, p := range providers {
		for name := range p.Models {
			return name
		}
	}
	return ""
}
