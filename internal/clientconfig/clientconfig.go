// Package clientconfig loads the imtti CLI configuration from
// ~/.config/imtti/config.yaml and keeps the saved login session beside it.
package clientconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultAPIURL       = "http://localhost:3000/api"
	DefaultTimeout      = 30 * time.Second
	DefaultProbeTimeout = 10 * time.Second
)

// Config is the client configuration file.
type Config struct {
	APIURL       string `yaml:"api_url"`
	StorePath    string `yaml:"store_path"`
	Timeout      string `yaml:"timeout,omitempty"`       // duration string, default "30s"
	ProbeTimeout string `yaml:"probe_timeout,omitempty"` // duration string, default "10s"
	LogLevel     string `yaml:"log_level,omitempty"`     // debug, info, warn, error (default)
	LogFormat    string `yaml:"log_format,omitempty"`    // text (default) or json
}

// Session is the identity saved by a successful login.
type Session struct {
	Role       string `yaml:"role"`
	ID         string `yaml:"id"`
	Identifier string `yaml:"identifier"`
	Name       string `yaml:"name,omitempty"`
	APIURL     string `yaml:"api_url"`
	LoggedInAt string `yaml:"logged_in_at"`
}

// ConfigDir returns ~/.config/imtti, creating it if necessary.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	dir := filepath.Join(home, ".config", "imtti")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return dir, nil
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the config file at path, or the default location when path is
// empty, and applies environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := &Config{}
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist) && !explicit:
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		expanded, err := ExpandEnvStrict(string(raw))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// LoadFile reads the config file as written, without ${VAR} expansion or
// environment overrides, so it can be edited and saved back. A missing file
// yields an empty config.
func LoadFile(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	cfg := &Config{}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Keys lists the settable config keys in file order.
var Keys = []string{"api_url", "store_path", "timeout", "probe_timeout", "log_level", "log_format"}

// Get returns the raw value of key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api_url":
		return c.APIURL, nil
	case "store_path":
		return c.StorePath, nil
	case "timeout":
		return c.Timeout, nil
	case "probe_timeout":
		return c.ProbeTimeout, nil
	case "log_level":
		return c.LogLevel, nil
	case "log_format":
		return c.LogFormat, nil
	}
	return "", fmt.Errorf("unknown config key %q (valid: %s)", key, strings.Join(Keys, ", "))
}

// Set validates value and stores it under key. An empty value resets the key
// to its default.
func (c *Config) Set(key, value string) error {
	switch key {
	case "api_url":
		c.APIURL = value
	case "store_path":
		c.StorePath = value
	case "timeout", "probe_timeout":
		if value != "" {
			d, err := time.ParseDuration(value)
			if err != nil || d < 0 {
				return fmt.Errorf("%s: invalid duration %q", key, value)
			}
		}
		if key == "timeout" {
			c.Timeout = value
		} else {
			c.ProbeTimeout = value
		}
	case "log_level":
		switch strings.ToLower(value) {
		case "", "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("log_level: %q is not one of debug, info, warn, error", value)
		}
		c.LogLevel = value
	case "log_format":
		switch strings.ToLower(value) {
		case "", "text", "json":
		default:
			return fmt.Errorf("log_format: %q is not one of text, json", value)
		}
		c.LogFormat = value
	default:
		return fmt.Errorf("unknown config key %q (valid: %s)", key, strings.Join(Keys, ", "))
	}
	return nil
}

// Save writes cfg to path, or to the default location when path is empty.
func Save(path string, cfg *Config) error {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) applyEnv() {
	if v := os.Getenv("IMTTI_API_URL"); v != "" {
		c.APIURL = v
	}
	if v := os.Getenv("IMTTI_STORE_PATH"); v != "" {
		c.StorePath = v
	}
	if v := os.Getenv("IMTTI_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// ExpandEnvStrict expands ${VAR} references and fails if any is unset.
func ExpandEnvStrict(s string) (string, error) {
	for _, m := range envRef.FindAllStringSubmatch(s, -1) {
		if _, ok := os.LookupEnv(m[1]); !ok {
			return "", fmt.Errorf("environment variable %s is not set", m[1])
		}
	}
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		return os.Getenv(envRef.FindStringSubmatch(ref)[1])
	}), nil
}

// BaseURL returns the API base URL with any trailing slash removed.
func (c *Config) BaseURL() string {
	if c.APIURL == "" {
		return DefaultAPIURL
	}
	return strings.TrimRight(c.APIURL, "/")
}

// ResolveStorePath returns the local store database path.
// Default: ~/.config/imtti/local.db.
func (c *Config) ResolveStorePath() (string, error) {
	if c.StorePath != "" {
		return expandHome(c.StorePath)
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "local.db"), nil
}

// RequestTimeout returns the per-command deadline.
func (c *Config) RequestTimeout() time.Duration {
	return parseDuration(c.Timeout, DefaultTimeout)
}

// ProbeTimeoutDuration bounds the startup reachability probe.
func (c *Config) ProbeTimeoutDuration() time.Duration {
	return parseDuration(c.ProbeTimeout, DefaultProbeTimeout)
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return def
	}
	return d
}

func expandHome(p string) (string, error) {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~")), nil
}

// LoadSession reads the saved session. It returns nil when nobody is logged in.
func LoadSession() (*Session, error) {
	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "session.yaml"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var s Session
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SaveSession writes the session to ~/.config/imtti/session.yaml (0600 perms).
func SaveSession(s *Session) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "session.yaml"), data, 0600)
}

// ClearSession removes the saved session.
func ClearSession() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(dir, "session.yaml"))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
