package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Provider kinds accepted by llm.provider.
const (
	ProviderOpenAI         = "openai"
	ProviderOpenAITemplate = "openai_template"
	ProviderAzure          = "azure"
	ProviderAzureSearch    = "azure_search"
)

// Config holds the application configuration
type Config struct {
	Server  ServerConfig
	Log     LogConfig
	LLM     LLMConfig
	Session SessionConfig
	History HistoryConfig
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

// LogConfig holds the logger configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LLMConfig is the process-wide provider record. It is read once at startup
// and never mutated afterwards.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	// Endpoint is the Azure resource URL. OPENAI_ENDPOINT feeds it.
	Endpoint    string        `mapstructure:"endpoint"`
	// BaseURL overrides the OpenAI API root for the openai kinds only.
	BaseURL     string        `mapstructure:"base_url"`
	Deployment  string        `mapstructure:"deployment"`
	APIVersion  string        `mapstructure:"api_version"`
	Temperature float32       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Search      SearchConfig  `mapstructure:"search"`
}

// SearchConfig holds the document index used by retrieval-augmented completions.
type SearchConfig struct {
	Endpoint    string        `mapstructure:"endpoint"`
	Key      string `mapstructure:"key"`
	Index    string `mapstructure:"index"`
}

// Complete reports whether every retrieval field is set.
func (s SearchConfig) Complete() bool {
	return s.Endpoint != "" && s.Key != "" && s.Index != ""
}

// SessionConfig controls the student session store.
type SessionConfig struct {
	// TTL of zero keeps sessions until they are explicitly ended.
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval string        `mapstructure:"sweep_interval"`
}

// HistoryConfig holds the lesson history database settings.
type HistoryConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// legacyEnv maps config keys to the variable names the deployment already uses.
var legacyEnv = map[string]string{
	"llm.provider":        "LLM_PROVIDER",
	"llm.api_key":         "OPENAI_API_KEY",
	"llm.model":           "OPENAI_MODEL",
	"llm.endpoint":        "OPENAI_ENDPOINT",
	"llm.deployment":      "OPENAI_DEPLOYMENT",
	"llm.search.endpoint": "SEARCH_ENDPOINT",
	"llm.search.key":      "SEARCH_KEY",
	"llm.search.index":    "SEARCH_INDEX",
	"history.db_path":     "HISTORY_DB_PATH",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8000")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("llm.provider", ProviderAzure)
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.api_version", "2023-06-01-preview")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.timeout", 5*time.Minute)
	v.SetDefault("session.ttl", 0)
	v.SetDefault("session.sweep_interval", "@every 1m")
	v.SetDefault("history.db_path", "history.db")
}

// Load loads the configuration from config.yaml (or CONFIG_PATH) and the environment.
// A missing config file is not an error.
func Load() (*Config, error) {
	return LoadFile(os.Getenv("CONFIG_PATH"))
}

// LoadFile is Load with an explicit config file; an empty path searches for
// config.yaml in the working directory.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("EDURA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, "EDURA_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the process cannot start with. Missing provider
// credentials are reported per request instead.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderOpenAITemplate, ProviderAzure, ProviderAzureSearch:
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format %q", c.Log.Format)
	}
	if c.LLM.Timeout < 0 {
		return fmt.Errorf("llm timeout must not be negative")
	}
	if c.Session.TTL < 0 {
		return fmt.Errorf("session ttl must not be negative")
	}
	return nil
}
