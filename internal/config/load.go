package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in the standard locations.
const FileName = "gomesh.yaml"

// Overrides are command line values applied on top of the config file.
// Zero values leave the loaded setting alone.
type Overrides struct {
	Debug    bool
	LogLevel string
	LogFile  string
	Strategy string
	Workers  int
	Catalog  string
	Port     int
	Root     string
}

// Load loads configuration with priority: defaults < file < overrides.
// An empty path searches the standard locations; a missing file there is
// not an error.
func Load(path string, overrides Overrides) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
	}

	overrides.apply(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (o Overrides) apply(cfg *Config) {
	if o.LogLevel != "" {
		cfg.Logging.Level = o.LogLevel
	}
	if o.Debug {
		cfg.Logging.Level = "debug"
	}
	if o.LogFile != "" {
		cfg.Logging.LogFile = o.LogFile
	}
	if o.Strategy != "" {
		cfg.Parser.Strategy = o.Strategy
	}
	if o.Workers > 0 {
		cfg.Parser.Workers = o.Workers
	}
	if o.Catalog != "" {
		cfg.Catalog.Path = o.Catalog
	}
	if o.Port > 0 {
		cfg.Server.Port = o.Port
	}
	if o.Root != "" {
		cfg.Server.Root = o.Root
	}
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	candidates := []string{
		filepath.Join(".", FileName),
		filepath.Join(ConfigDir(), FileName),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "gomesh")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "gomesh")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "gomesh")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "gomesh")
	}
}

// loadFromFile merges a YAML file into cfg. ${VAR} references are
// expanded from the environment first.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg)
}
