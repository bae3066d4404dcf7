// Package config handles configuration loading for gauntlet.
// It supports XDG config paths, project-level overrides, .env files and
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ShayCichocki/gauntlet/pkg/models"
)

// ProjectConfigName is the per-project override file.
const ProjectConfigName = ".gauntlet.yaml"

// Config holds all configuration for gauntlet.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Checks    ChecksConfig    `mapstructure:"checks"`
	TDD       TDDConfig       `mapstructure:"tdd"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Watch     WatchConfig     `mapstructure:"watch"`
	Debug     DebugConfig     `mapstructure:"debug"`

	// ProjectRoot is the directory holding the project config, or the start
	// directory when there is none. Not read from any file.
	ProjectRoot string `mapstructure:"-"`
}

// AnthropicConfig holds settings for the AI criteria verifier.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// ChecksConfig overrides detected check commands and controls execution.
type ChecksConfig struct {
	Test      string        `mapstructure:"test"`
	Typecheck string        `mapstructure:"typecheck"`
	Lint      string        `mapstructure:"lint"`
	Build     string        `mapstructure:"build"`
	E2E       string        `mapstructure:"e2e"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Parallel  bool          `mapstructure:"parallel"`
}

// TDDConfig overrides the feature list's TDD mode when set.
type TDDConfig struct {
	Mode string `mapstructure:"mode"`
}

// RiskConfig extends the built-in high-risk file patterns.
type RiskConfig struct {
	Patterns []string `mapstructure:"patterns"`
	Ignore   []string `mapstructure:"ignore"`
}

// WatchConfig holds watch-mode settings.
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// DebugConfig controls the debug log file.
type DebugConfig struct {
	Log bool `mapstructure:"log"`
}

// TDDMode returns the configured mode, or "" when unset or invalid.
func (c *Config) TDDMode() models.TDDMode {
	m := models.TDDMode(c.TDD.Mode)
	if !m.Valid() {
		return ""
	}
	return m
}

// Load loads configuration for the project containing startDir.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, GAUNTLET_*)
// 2. .env in the project root
// 3. Project config (.gauntlet.yaml in startDir or a parent)
// 4. User config (~/.config/gauntlet/config.yaml)
// 5. Built-in defaults
func Load(startDir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectRoot := startDir
	if projectConfig := findProjectConfig(startDir); projectConfig != "" {
		projectRoot = filepath.Dir(projectConfig)
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config: %w", err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	// .env never overrides variables already set in the environment.
	if err := godotenv.Load(filepath.Join(projectRoot, ".env")); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	bindEnv(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	cfg.ProjectRoot = projectRoot
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	cfg.ProjectRoot = filepath.Dir(path)
	return cfg, nil
}

// Settings returns the effective key/value settings for display, with the
// API key masked.
func (c *Config) Settings() map[string]interface{} {
	return map[string]interface{}{
		"anthropic.api_key":     MaskAPIKey(c.Anthropic.APIKey),
		"anthropic.model":       c.Anthropic.Model,
		"anthropic.use_bedrock": c.Anthropic.UseBedrock,
		"anthropic.aws_region":  c.Anthropic.AWSRegion,
		"anthropic.aws_profile": c.Anthropic.AWSProfile,
		"checks.test":           c.Checks.Test,
		"checks.typecheck":      c.Checks.Typecheck,
		"checks.lint":           c.Checks.Lint,
		"checks.build":          c.Checks.Build,
		"checks.e2e":            c.Checks.E2E,
		"checks.timeout":        c.Checks.Timeout.String(),
		"checks.parallel":       c.Checks.Parallel,
		"tdd.mode":              c.TDD.Mode,
		"risk.patterns":         c.Risk.Patterns,
		"risk.ignore":           c.Risk.Ignore,
		"watch.debounce":        c.Watch.Debounce.String(),
		"debug.log":             c.Debug.Log,
	}
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the project config found from startDir, or "".
func GetProjectConfigPath(startDir string) string {
	return findProjectConfig(startDir)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("anthropic.use_bedrock", false)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")

	v.SetDefault("checks.test", "")
	v.SetDefault("checks.typecheck", "")
	v.SetDefault("checks.lint", "")
	v.SetDefault("checks.build", "")
	v.SetDefault("checks.e2e", "")
	v.SetDefault("checks.timeout", "10m")
	v.SetDefault("checks.parallel", false)

	v.SetDefault("tdd.mode", "")
	v.SetDefault("risk.patterns", []string{})
	v.SetDefault("risk.ignore", []string{})
	v.SetDefault("watch.debounce", "500ms")
	v.SetDefault("debug.log", false)
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("GAUNTLET")
	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY", "GAUNTLET_ANTHROPIC_API_KEY")
	v.BindEnv("anthropic.model", "GAUNTLET_MODEL")
	v.BindEnv("anthropic.use_bedrock", "GAUNTLET_USE_BEDROCK")
	v.BindEnv("anthropic.aws_region", "GAUNTLET_AWS_REGION", "AWS_REGION")
	v.BindEnv("anthropic.aws_profile", "GAUNTLET_AWS_PROFILE", "AWS_PROFILE")
	v.BindEnv("checks.timeout", "GAUNTLET_CHECK_TIMEOUT")
	v.BindEnv("checks.parallel", "GAUNTLET_PARALLEL")
	v.BindEnv("tdd.mode", "GAUNTLET_TDD_MODE")
	v.BindEnv("debug.log", "GAUNTLET_DEBUG")
}

// getUserConfigDir returns the XDG config directory for gauntlet.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "gauntlet")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "gauntlet")
	}
	return filepath.Join(home, ".config", "gauntlet")
}

// findProjectConfig searches for .gauntlet.yaml in dir and its parents.
func findProjectConfig(dir string) string {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(dir, ProjectConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Checks: ChecksConfig{
			Timeout: 10 * time.Minute,
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
	}
}
