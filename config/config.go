// Package config the configuration
package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the configuration file is looked up.
const DefaultPath = "~/.config/mdeno/config.yml"

type configKey struct{}

// NewContext returns a context that contains the given Config.
func NewContext(ctx context.Context, config Config) context.Context {
	return context.WithValue(ctx, configKey{}, config)
}

// FromContext returns the Config stored in ctx by NewContext, or the default
// Config if there is none.
func FromContext(ctx context.Context) Config {
	if config, ok := ctx.Value(configKey{}).(Config); ok {
		return config
	}
	return Default()
}

// Config The mdeno configuration
type Config struct {
	// LogLevel is one of debug, info, warn, error
	LogLevel string `yaml:"log-level"`
	NoColor  bool   `yaml:"no-color"`

	Cache Cache `yaml:"cache"`
	Test  Test  `yaml:"test"`
}

// Cache the compile cache
type Cache struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	// TTL of a compiled bundle, such as "720h". Zero keeps bundles forever.
	TTL time.Duration `yaml:"ttl"`
}

// Test the test runner
type Test struct {
	// Include are the doublestar patterns of test files
	Include []string `yaml:"include"`
}

// Default The default configuration
func Default() Config {
	return Config{
		LogLevel: "info",
		Cache: Cache{
			Enabled: true,
			Path:    "~/.cache/mdeno",
			TTL:     30 * 24 * time.Hour,
		},
		Test: Test{
			Include: []string{"**/{*_test,*.test,test}.{js,mjs}"},
		},
	}
}

// Read read configuration from the file. Values missing from the file keep
// their defaults; a missing file yields the default configuration.
func Read(path string) (config Config, err error) {
	config = Default()
	file, err := ExpandPath(path)
	if err != nil {
		return config, err
	}
	data, err := os.ReadFile(file) //nolint:gosec
	if errors.Is(err, os.ErrNotExist) {
		return config, nil
	}
	if err != nil {
		return config, err
	}
	if err = yaml.Unmarshal(data, &config); err != nil {
		return config, err
	}
	return config, nil
}

// Marshal returns the YAML form of config.
func (c Config) Marshal() ([]byte, error) { return yaml.Marshal(c) }

// ExpandPath expands path "." or "~"
func ExpandPath(path string) (string, error) {
	// expand local directory
	if path == "." || strings.HasPrefix(path, "./") {
		cwd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		return filepath.Join(cwd, path[1:]), nil
	}
	// expand ~ as shortcut for home directory
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}
