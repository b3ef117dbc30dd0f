// Package config loads Incrementum's assistant configuration from a
// YAML file with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"incrementum/internal/mcp"
)

// Config holds the assistant configuration.
type Config struct {
	// AI provider settings
	AI AIConfig `yaml:"ai"`

	// External MCP servers to connect at startup
	MCPServers []MCPServerConfig `yaml:"mcp_servers"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// AIConfig configures the chat-completion provider.
type AIConfig struct {
	Provider    string  `yaml:"provider"` // openai, anthropic, openrouter, ollama
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	OllamaURL   string  `yaml:"ollama_url"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	Timeout     string  `yaml:"timeout"`
}

// MCPServerConfig describes one external MCP server process.
type MCPServerConfig struct {
	Name    string            `yaml:"name"`
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		AI: AIConfig{
			Provider:    "openai",
			Temperature: 0.7,
			MaxTokens:   4096,
			OllamaURL:   "http://localhost:11434",
			Timeout:     "2m",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns the per-user config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "incrementum.yaml"
	}
	return filepath.Join(home, ".incrementum", "config.yaml")
}

// Load reads configuration from a YAML file. A missing file yields the
// defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file, creating the directory
// as needed.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
// OPENAI_API_KEY fills in a missing key; the anthropic and openrouter
// keys apply only when that provider is selected. INCREMENTUM_PROVIDER
// and INCREMENTUM_MODEL always win over the file.
func (c *Config) applyEnvOverrides() {
	if p := os.Getenv("INCREMENTUM_PROVIDER"); p != "" {
		c.AI.Provider = p
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" && c.AI.APIKey == "" {
		c.AI.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" && c.AI.Provider == "anthropic" {
		c.AI.APIKey = key
	}
	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" && c.AI.Provider == "openrouter" {
		c.AI.APIKey = key
	}

	if m := os.Getenv("INCREMENTUM_MODEL"); m != "" {
		c.AI.Model = m
	}
	if url := os.Getenv("OLLAMA_URL"); url != "" {
		c.AI.OllamaURL = url
	}
}

// GetTimeout parses the AI request timeout, falling back to two
// minutes.
func (c *Config) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.AI.Timeout)
	if err != nil || d <= 0 {
		return 2 * time.Minute
	}
	return d
}

// MCPServerConfigs converts the config entries into the mcp package's
// server descriptions.
func (c *Config) MCPServerConfigs() []mcp.ServerConfig {
	out := make([]mcp.ServerConfig, 0, len(c.MCPServers))
	for _, s := range c.MCPServers {
		out = append(out, mcp.ServerConfig{
			Name:    s.Name,
			Command: s.Command,
			Args:    s.Args,
			Env:     s.Env,
		})
	}
	return out
}
