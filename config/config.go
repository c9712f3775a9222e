// Package config loads the application configuration: defaults, then an
// optional YAML file, then REAGENT_* environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/BaSui01/reagent/llm"
)

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// ProviderConfig holds the upstream API connection settings.
type ProviderConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// LoopConfig holds the reasoning loop settings.
type LoopConfig struct {
	MaxIterations int    `yaml:"max_iterations"`
	Instruction   string `yaml:"instruction"`
}

// MCPConfig holds the remote tool universe settings. ServersConfig is
// the raw JSON server map.
type MCPConfig struct {
	ServersConfig    string `yaml:"servers_config"`
	ResourcesAsTools bool   `yaml:"resources_as_tools"`
	PromptsAsTools   bool   `yaml:"prompts_as_tools"`
}

// Config is the full application configuration.
type Config struct {
	Log      LogConfig       `yaml:"log"`
	Provider ProviderConfig  `yaml:"provider"`
	Model    llm.ModelConfig `yaml:"model"`
	Loop     LoopConfig      `yaml:"loop"`
	MCP      MCPConfig       `yaml:"mcp"`
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Provider: ProviderConfig{
			BaseURL: "https://api.openai.com/v1",
		},
		Model: llm.ModelConfig{
			Provider:                "openai",
			Model:                   "gpt-4o-mini",
			SupportsObservationStop: true,
			Params: llm.CompletionParams{
				Temperature: 0.2,
			},
		},
		Loop: LoopConfig{
			MaxIterations: 3,
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path
// (skipped when path is empty), and environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("REAGENT_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("REAGENT_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	if v := os.Getenv("REAGENT_BASE_URL"); v != "" {
		c.Provider.BaseURL = v
	}
	if v := os.Getenv("REAGENT_API_KEY"); v != "" {
		c.Provider.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && c.Provider.APIKey == "" {
		c.Provider.APIKey = v
	}
	if v := os.Getenv("REAGENT_MODEL"); v != "" {
		c.Model.Model = v
	}
	if v := os.Getenv("REAGENT_MAX_ITERATIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Loop.MaxIterations = n
		}
	}
	if v := os.Getenv("REAGENT_MCP_SERVERS"); v != "" {
		c.MCP.ServersConfig = v
	}
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	if c.Model.Model == "" {
		return fmt.Errorf("model.model is required")
	}
	if c.Loop.MaxIterations < 0 {
		return fmt.Errorf("loop.max_iterations must not be negative")
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	return nil
}

// BuildLogger constructs the zap logger described by the Log section.
func (c *Config) BuildLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}

	zapCfg := zap.NewProductionConfig()
	if strings.ToLower(c.Log.Format) == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}
