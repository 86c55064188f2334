// Package app wires configuration, logging, backends and storage together
// for the brandium command.
package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/TristanHourtoulle/brandium-backend-sub002/internal/generation"
	"github.com/TristanHourtoulle/brandium-backend-sub002/internal/ratelimit"
	"github.com/TristanHourtoulle/brandium-backend-sub002/internal/storage"
	"gopkg.in/yaml.v3"
)

var (
	ErrConfigNotFound = errors.New("configuration file not found")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// Provider names understood by NewProvider.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderLocal  = "local"
)

// Rate limit backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config is the user-wide configuration at ~/.config/brandium/config.yaml.
type Config struct {
	Version      int                        `yaml:"version"`
	Providers    map[string]*ProviderConfig `yaml:"providers"`
	Defaults     DefaultsConfig             `yaml:"defaults"`
	Logging      LoggingConfig              `yaml:"logging"`
	RateLimit    RateLimitConfig            `yaml:"rate_limit"`
	Generation   generation.Config          `yaml:"generation"`
	DatabasePath string                     `yaml:"database_path"`
}

// ProviderConfig holds API configuration for an LLM provider.
type ProviderConfig struct {
	APIKey       string        `yaml:"api_key"`
	DefaultModel string        `yaml:"default_model"`
	BaseURL      string        `yaml:"base_url,omitempty"`
	Organization string        `yaml:"organization,omitempty"`
	Timeout      time.Duration `yaml:"timeout,omitempty"`
}

// DefaultsConfig specifies default settings.
type DefaultsConfig struct {
	Provider string `yaml:"provider"`
}

// LoggingConfig specifies logging settings.
type LoggingConfig struct {
	Mode  string `yaml:"mode"`
	Level string `yaml:"level"`
}

// RateLimitConfig selects and sizes the generation rate limiter.
type RateLimitConfig struct {
	ratelimit.Config `yaml:",inline"`
	Backend          string `yaml:"backend"`
	RedisAddr        string `yaml:"redis_addr,omitempty"`
	RedisKey         string `yaml:"redis_key,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version:   1,
		Providers: make(map[string]*ProviderConfig),
		Defaults: DefaultsConfig{
			Provider: ProviderOpenAI,
		},
		Logging: LoggingConfig{
			Mode:  "development",
			Level: "warn",
		},
		RateLimit: RateLimitConfig{
			Config:  ratelimit.DefaultConfig(),
			Backend: BackendMemory,
		},
		Generation:   generation.DefaultConfig(),
		DatabasePath: "~/.local/share/brandium/brandium.db",
	}
}

// apiKeyEnv is consulted when a provider has no api_key configured.
var apiKeyEnv = map[string]string{
	ProviderOpenAI: "OPENAI_API_KEY",
	ProviderGemini: "GEMINI_API_KEY",
}

// Validate checks the settings that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.Defaults.Provider {
	case ProviderOpenAI, ProviderGemini, ProviderLocal:
	default:
		return fmt.Errorf("%w: unknown default provider %q", ErrInvalidConfig, c.Defaults.Provider)
	}

	switch c.RateLimit.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.RateLimit.RedisAddr == "" {
			return fmt.Errorf("%w: rate_limit.redis_addr is required for the redis backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown rate limit backend %q", ErrInvalidConfig, c.RateLimit.Backend)
	}

	if c.RateLimit.MaxRequests < 0 || c.RateLimit.MaxTokens < 0 || c.RateLimit.Window < 0 {
		return fmt.Errorf("%w: rate limits must not be negative", ErrInvalidConfig)
	}
	return nil
}

// ConfigManager loads and saves the configuration file.
type ConfigManager struct {
	path   string
	config *Config
}

// NewConfigManager creates a manager for the default config location.
func NewConfigManager() (*ConfigManager, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	return NewConfigManagerAt(filepath.Join(configDir, "config.yaml")), nil
}

// NewConfigManagerAt creates a manager for an explicit config file.
func NewConfigManagerAt(path string) *ConfigManager {
	return &ConfigManager{path: expandPath(path)}
}

// getConfigDir returns $XDG_CONFIG_HOME/brandium or ~/.config/brandium.
func getConfigDir() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "brandium"), nil
}

// Path returns the config file path.
func (cm *ConfigManager) Path() string {
	return cm.path
}

// Load reads the configuration. A missing file yields the defaults. Values
// of the form ${VAR} are replaced by the environment variable, and unset
// fields keep their default.
func (cm *ConfigManager) Load() (*Config, error) {
	if cm.config != nil {
		return cm.config, nil
	}

	config := DefaultConfig()

	data, err := os.ReadFile(cm.path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, cm.path, err)
		}
	}

	if config.Providers == nil {
		config.Providers = make(map[string]*ProviderConfig)
	}
	for name, provider := range config.Providers {
		if provider == nil {
			provider = &ProviderConfig{}
			config.Providers[name] = provider
		}
		provider.APIKey = expandEnv(provider.APIKey)
		provider.BaseURL = expandEnv(provider.BaseURL)
	}
	for name, env := range apiKeyEnv {
		if key := os.Getenv(env); key != "" {
			provider, ok := config.Providers[name]
			if !ok {
				provider = &ProviderConfig{}
				config.Providers[name] = provider
			}
			if provider.APIKey == "" {
				provider.APIKey = key
			}
		}
	}

	config.RateLimit.RedisAddr = expandEnv(config.RateLimit.RedisAddr)
	config.DatabasePath = expandPath(config.DatabasePath)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	cm.config = config
	return config, nil
}

// Save writes config atomically with owner-only permissions, since it may
// hold API keys.
func (cm *ConfigManager) Save(config *Config) error {
	if err := config.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := storage.WriteFileAtomic(cm.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	cm.config = config
	return nil
}

// ProviderConfig returns the configuration for a provider.
func (cm *ConfigManager) ProviderConfig(name string) (*ProviderConfig, error) {
	config, err := cm.Load()
	if err != nil {
		return nil, err
	}

	provider, ok := config.Providers[name]
	if !ok {
		if name == ProviderLocal {
			return &ProviderConfig{}, nil
		}
		return nil, fmt.Errorf("provider %q not configured", name)
	}
	return provider, nil
}

// expandEnv replaces a whole-value ${VAR} reference.
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}
	return s
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
