// Package config holds the application's file locations, environment
// variable names, and the optional profiles file. Profiles carry
// connection parameters only; secret values live exclusively in the
// encrypted store.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables understood by duck-rage. Explicit flags beat the
// environment; the environment beats defaults.
const (
	EnvSecretsFile  = "RAGE_SECRETS_FILE"
	EnvIdentityFile = "RAGE_IDENTITY_FILE"
	EnvConfig       = "RAGE_CONFIG"
	EnvLogLevel     = "RAGE_LOG_LEVEL"
	EnvDuckDB       = "RAGE_DUCKDB"
)

// Well-known names under the user's configuration directory.
const (
	AppDirName       = "duck-rage"
	SecretsFileName  = "secrets.age"
	IdentityFileName = "identity.txt"
	configFileName   = "config.yaml"
)

// Dir returns the duck-rage directory under the user's configuration
// directory (e.g. ~/.config/duck-rage on Linux).
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating user config dir: %w", err)
	}
	return filepath.Join(base, AppDirName), nil
}

// DefaultPath returns the default profiles file location.
func DefaultPath() string {
	dir, err := Dir()
	if err != nil {
		return configFileName // fallback for environments without a config dir
	}
	return filepath.Join(dir, configFileName)
}

// ExpandPath expands a leading ~ to the user's home directory and
// makes the path absolute.
func ExpandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") || path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}
	return filepath.Abs(path)
}

// Profile is one named set of connection parameters. SecretsFile and
// IdentityFile, when set, feed the explicit-override tier of location
// resolution for that profile.
type Profile struct {
	Kind         string `json:"db_type" yaml:"db_type"`
	Host         string `json:"host" yaml:"host"`
	Port         int    `json:"port" yaml:"port"`
	Database     string `json:"database" yaml:"database"`
	User         string `json:"user" yaml:"user"`
	SecretKey    string `json:"secret_key" yaml:"secret_key"`
	SecretsFile  string `json:"secrets_file,omitempty" yaml:"secrets_file,omitempty"`
	IdentityFile string `json:"identity_file,omitempty" yaml:"identity_file,omitempty"`
}

// Config is the profiles file.
type Config struct {
	Profiles map[string]Profile `json:"profiles" yaml:"profiles"`
}

// Load reads and validates a profiles file. The extension selects the
// parser: .yml/.yaml is YAML, anything else is JSON.
func Load(path string) (*Config, error) {
	resolved, err := ExpandPath(path)
	if err != nil {
		return nil, fmt.Errorf("resolving config path %s: %w", path, err)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", resolved, err)
	}

	var cfg Config
	switch ext := strings.ToLower(filepath.Ext(resolved)); ext {
	case ".yml", ".yaml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML config %s: %w", resolved, err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing JSON config %s: %w", resolved, err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", resolved, err)
	}

	return &cfg, nil
}

// Profile returns the named profile.
func (c *Config) Profile(name string) (Profile, error) {
	p, ok := c.Profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("profile %q not found (have: %s)", name, strings.Join(c.Names(), ", "))
	}
	return p, nil
}

// Names returns all profile names, sorted.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Config) validate() error {
	for name, p := range c.Profiles {
		if p.Kind == "" {
			return fmt.Errorf("profile %q: db_type is required", name)
		}
		if p.Host == "" {
			return fmt.Errorf("profile %q: host is required", name)
		}
		if p.Port < 0 || p.Port > 65535 {
			return fmt.Errorf("profile %q: port %d out of range", name, p.Port)
		}
		if p.Database == "" {
			return fmt.Errorf("profile %q: database is required", name)
		}
		if p.User == "" {
			return fmt.Errorf("profile %q: user is required", name)
		}
		if p.SecretKey == "" {
			return fmt.Errorf("profile %q: secret_key is required", name)
		}
	}
	return nil
}
