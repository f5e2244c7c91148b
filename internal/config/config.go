// Package config provides centralized configuration management using Viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration values for dispatchr.
type Config struct {
	AgentCmd           string `mapstructure:"agent_cmd" yaml:"agent_cmd"`
	Model              string `mapstructure:"model" yaml:"model"`
	DataDir            string `mapstructure:"data_dir" yaml:"data_dir"`
	LogLevel           string `mapstructure:"log_level" yaml:"log_level"`
	LogFile            string `mapstructure:"log_file" yaml:"log_file"`
	Iterations         int    `mapstructure:"iterations" yaml:"iterations"`
	SingleTool         bool   `mapstructure:"single_tool" yaml:"single_tool"`
	WaitTimeoutMs      int    `mapstructure:"wait_timeout_ms" yaml:"wait_timeout_ms"`
	SyncShellTimeoutMs int    `mapstructure:"sync_shell_timeout_ms" yaml:"sync_shell_timeout_ms"`
	LongOutputLimit    int    `mapstructure:"long_output_limit" yaml:"long_output_limit"`
	Template           string `mapstructure:"template" yaml:"template"`
}

// Load loads configuration with full precedence:
// CLI flags > ENV vars > project config > XDG global config > defaults
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigName("dispatchr")

	// Defaults (agent_cmd has no default - it's required for run)
	v.SetDefault("model", "")
	v.SetDefault("data_dir", ".dispatchr")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("iterations", 25)
	v.SetDefault("single_tool", false)
	v.SetDefault("wait_timeout_ms", 60000)
	v.SetDefault("sync_shell_timeout_ms", 10000)
	v.SetDefault("long_output_limit", 4000)
	v.SetDefault("template", "")

	// ENV binding with DISPATCHR_ prefix
	v.SetEnvPrefix("DISPATCHR")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Explicit ENV bindings for better bool/int parsing.
	// BindEnv errors are rare (invalid key names only) but checked anyway.
	bindings := [][2]string{
		{"agent_cmd", "DISPATCHR_AGENT_CMD"},
		{"model", "DISPATCHR_MODEL"},
		{"data_dir", "DISPATCHR_DATA_DIR"},
		{"log_level", "DISPATCHR_LOG_LEVEL"},
		{"log_file", "DISPATCHR_LOG_FILE"},
		{"iterations", "DISPATCHR_ITERATIONS"},
		{"single_tool", "DISPATCHR_SINGLE_TOOL"},
		{"wait_timeout_ms", "DISPATCHR_WAIT_TIMEOUT_MS"},
		{"sync_shell_timeout_ms", "DISPATCHR_SYNC_SHELL_TIMEOUT_MS"},
		{"long_output_limit", "DISPATCHR_LONG_OUTPUT_LIMIT"},
		{"template", "DISPATCHR_TEMPLATE"},
	}
	for _, b := range bindings {
		if err := v.BindEnv(b[0], b[1]); err != nil {
			return nil, fmt.Errorf("binding %s env: %w", b[0], err)
		}
	}

	// Load global config first (if exists)
	globalPath := GlobalPath()
	if fileExists(globalPath) {
		v.SetConfigFile(globalPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading global config: %w", err)
		}
	}

	// Merge project config on top (if exists)
	projectPath := ProjectPath()
	if fileExists(projectPath) {
		v.SetConfigFile(projectPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Exists returns true if any config file exists (global or project).
func Exists() bool {
	return fileExists(GlobalPath()) || fileExists(ProjectPath())
}

// GlobalPath returns the XDG global config path.
// Returns ~/.config/dispatchr/dispatchr.yml or $XDG_CONFIG_HOME/dispatchr/dispatchr.yml.
func GlobalPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "dispatchr", "dispatchr.yml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "dispatchr", "dispatchr.yml")
}

// ProjectPath returns the project-local config path.
// Returns ./dispatchr.yml in the current working directory.
func ProjectPath() string {
	return "dispatchr.yml"
}

// WriteGlobal writes the config to the XDG global location.
func WriteGlobal(cfg *Config) error {
	path := GlobalPath()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// WriteProject writes the config to the project-local location.
func WriteProject(cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(ProjectPath(), data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// fileExists checks if a file exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
