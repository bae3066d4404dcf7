package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ShayCichocki/gauntlet/pkg/models"
)

// SetValue validates value for key and writes it to the config file at path,
// keeping every other setting already in the file.
func SetValue(path, key, value string) error {
	key = strings.ToLower(key)
	parsed, err := parseValue(key, value)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
	}
	v.Set(key, parsed)
	return v.WriteConfigAs(path)
}

// parseValue converts a command-line string to the type stored under key.
func parseValue(key, value string) (interface{}, error) {
	switch key {
	case "anthropic.api_key":
		if err := ValidateAPIKey(value); err != nil {
			return nil, err
		}
		return value, nil
	case "anthropic.model", "anthropic.aws_region", "anthropic.aws_profile",
		"checks.test", "checks.typecheck", "checks.lint", "checks.build", "checks.e2e":
		return value, nil
	case "anthropic.use_bedrock", "checks.parallel", "debug.log":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("invalid boolean for %s: %w", key, err)
		}
		return b, nil
	case "checks.timeout", "watch.debounce":
		d, err := time.ParseDuration(value)
		if err != nil {
			return nil, fmt.Errorf("invalid duration for %s: %w", key, err)
		}
		return d.String(), nil
	case "tdd.mode":
		if !models.TDDMode(value).Valid() {
			return nil, fmt.Errorf("invalid tdd.mode %q: want strict, recommended or disabled", value)
		}
		return value, nil
	case "risk.patterns", "risk.ignore":
		var items []string
		for _, s := range strings.Split(value, ",") {
			if s = strings.TrimSpace(s); s != "" {
				items = append(items, s)
			}
		}
		return items, nil
	default:
		return nil, fmt.Errorf("unknown configuration key: %s", key)
	}
}
