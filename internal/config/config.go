// Package config handles configuration loading from YAML files and environment variables.
// Configuration precedence: CLI flags > environment variables > config file > embedded > defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/valet-linux/caddyd/internal/logging"
	"github.com/valet-linux/caddyd/internal/setup"
	"github.com/valet-linux/caddyd/internal/systemd"
)

// Service backends.
const (
	BackendSystemctl = "systemctl"
	BackendDBus      = "dbus"
)

// Config holds all caddyd configuration.
type Config struct {
	Paths   PathsConfig    `yaml:"paths"`
	Service ServiceConfig  `yaml:"service"`
	Logging logging.Config `yaml:"logging"`
}

// PathsConfig holds host locations. Empty Home and Install are resolved at
// startup from the invoking user and the running executable.
type PathsConfig struct {
	Home         string `yaml:"home"`
	Install      string `yaml:"install"`
	Stubs        string `yaml:"stubs"`
	ResolverConf string `yaml:"resolver_conf"`
	Lock         string `yaml:"lock"`
}

// ServiceConfig holds systemd settings.
type ServiceConfig struct {
	Name    string            `yaml:"name"`
	Backend string            `yaml:"backend"`
	UnitKey string            `yaml:"unit_key"`
	FPMKey  string            `yaml:"fpm_key"`
	Keys    map[string]string `yaml:"keys"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			ResolverConf: "/etc/dnsmasq.conf",
			Lock:         "/run/caddyd.lock",
		},
		Service: ServiceConfig{
			Name:    "caddy",
			Backend: BackendSystemctl,
			UnitKey: systemd.KeyCaddyUnit,
			FPMKey:  systemd.KeyCaddyFPM,
			Keys:    systemd.DefaultKeys(),
		},
		Logging: logging.DefaultConfig(),
	}
}

// ConfigRoot returns the directory generated files go to: Paths.Home when
// set, otherwise ~/.valet of the given user.
func (c *Config) ConfigRoot(user setup.Identity) string {
	if c.Paths.Home != "" {
		return c.Paths.Home
	}
	return filepath.Join(user.Home, ".valet")
}

// CLIOverrides holds values from command-line flags.
// Empty strings are treated as "not set" and skipped.
type CLIOverrides struct {
	LogLevel string
	Backend  string
}

// Locate searches standard config file paths and returns the first one found.
// userHome is the home directory of the user who invoked caddyd; empty means
// the current process user. Returns empty string if no config file exists.
func Locate(userHome string) string {
	for _, p := range configSearchPaths(userHome) {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// LoadLayered loads configuration with the full precedence chain:
// CLI flags > env vars > external YAML file > embedded bytes > defaults.
//
// An optional configPath argument controls external-file discovery:
//   - omitted        → auto-discover via Locate("")
//   - explicit value  → use that path ("" means no external file)
//
// An explicit path that cannot be read is an error; a discovered one that
// vanished is skipped.
func LoadLayered(cli CLIOverrides, embedded []byte, configPath ...string) (*Config, error) {
	cfg := DefaultConfig()

	// Layer 1: embedded config (lowest priority data layer)
	if len(embedded) > 0 {
		if err := yaml.Unmarshal(embedded, cfg); err != nil {
			return nil, fmt.Errorf("parsing embedded config: %w", err)
		}
	}

	// Layer 2: external YAML file
	explicit := len(configPath) > 0
	var filePath string
	if explicit {
		filePath = configPath[0]
	} else {
		filePath = Locate("")
	}
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", filePath, err)
			}
		case explicit:
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	// Layer 3: environment variables
	applyEnvOverrides(cfg)

	// Layer 4: CLI flags (highest priority)
	if cli.LogLevel != "" {
		cfg.Logging.Level = cli.LogLevel
	}
	if cli.Backend != "" {
		cfg.Service.Backend = cli.Backend
	}

	return cfg, nil
}

// WriteConfig serializes the config to a YAML file at the given path.
// Creates parent directories if needed.
func WriteConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func applyEnvOverrides(cfg *Config) {
	if home := os.Getenv("VALET_HOME"); home != "" {
		cfg.Paths.Home = home
	}
	if install := os.Getenv("VALET_PATH"); install != "" {
		cfg.Paths.Install = install
	}
	if level := os.Getenv("CADDYD_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if backend := os.Getenv("CADDYD_BACKEND"); backend != "" {
		cfg.Service.Backend = backend
	}
}

// Validate checks that the configuration can drive the daemon.
func (c *Config) Validate() error {
	switch c.Service.Backend {
	case BackendSystemctl, BackendDBus:
	default:
		return fmt.Errorf("unknown service backend %q (want %s or %s)",
			c.Service.Backend, BackendSystemctl, BackendDBus)
	}
	if c.Service.Name == "" {
		return fmt.Errorf("service name is required")
	}
	if c.Service.UnitKey == "" || c.Service.FPMKey == "" {
		return fmt.Errorf("service unit_key and fpm_key are required")
	}
	if c.Paths.Lock == "" {
		return fmt.Errorf("lock path is required")
	}
	for name, p := range map[string]string{"home": c.Paths.Home, "install": c.Paths.Install, "stubs": c.Paths.Stubs} {
		if p != "" && !filepath.IsAbs(p) {
			return fmt.Errorf("paths.%s must be absolute (got: %s)", name, p)
		}
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}
