package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// config is the command-level configuration.
// Priority: Environment variables (TOOLHOST_*) > config file > defaults.
type config struct {
	Name               string        `mapstructure:"name"`
	LogLevel           string        `mapstructure:"log_level"`
	MaxRequestBytes    int           `mapstructure:"max_request_bytes"`
	GracePeriod        time.Duration `mapstructure:"grace_period"`
	MaxConcurrentCalls int           `mapstructure:"max_concurrent_calls"`
	AllowedRoots       []string      `mapstructure:"allowed_roots"`
}

// loadConfig reads toolhost.yaml from the working directory or
// ~/.toolhost/, then applies TOOLHOST_* environment overrides. A missing
// config file is not an error.
func loadConfig() (*config, error) {
	viper.SetConfigName("toolhost")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".toolhost"))
	}

	viper.SetEnvPrefix("TOOLHOST")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("name", "toolhost")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("max_request_bytes", 1024*1024)
	viper.SetDefault("grace_period", "5s")
	viper.SetDefault("max_concurrent_calls", 32)
	viper.SetDefault("allowed_roots", defaultRoots())
}

// defaultRoots allows the working directory and the system temp directory,
// matching what the bundled filesystem tools are useful for out of the box.
func defaultRoots() []string {
	roots := []string{os.TempDir()}

	if cwd, err := os.Getwd(); err == nil {
		roots = append([]string{cwd}, roots...)
	}

	return roots
}

func (c *config) validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}

	if c.MaxRequestBytes < 0 {
		return fmt.Errorf("max_request_bytes must not be negative")
	}

	if c.GracePeriod < 0 {
		return fmt.Errorf("grace_period must not be negative")
	}

	return nil
}
