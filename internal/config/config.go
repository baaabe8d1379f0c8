// Package config handles todochat configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/todochat/config.yaml, /etc/todochat/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "todochat", "config.yaml"))
	}

	paths = append(paths, "/etc/todochat/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all todochat configuration.
type Config struct {
	Listen       ListenConfig     `yaml:"listen"`
	OpenRouter   OpenRouterConfig `yaml:"openrouter"`
	Auth         AuthConfig       `yaml:"auth"`
	DatabasePath string           `yaml:"database_path"`
	LogLevel     string           `yaml:"log_level"`
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// OpenRouterConfig defines the completion provider settings.
type OpenRouterConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"` // defaults to the public OpenRouter endpoint
	Model   string `yaml:"model"`    // defaults to openrouter/auto
}

// AuthConfig defines token signing settings.
type AuthConfig struct {
	// Secret signs and verifies session tokens (HS256). Required for serve.
	Secret string `yaml:"secret"`
	// TokenTTLHours is the token lifetime in hours (default 168 = 7 days).
	TokenTTLHours int `yaml:"token_ttl_hours"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Listen:       ListenConfig{Port: 8080},
		DatabasePath: "todochat.db",
		OpenRouter: OpenRouterConfig{
			Model: "openrouter/auto",
		},
		Auth: AuthConfig{
			TokenTTLHours: 168,
		},
	}
}
