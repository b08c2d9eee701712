package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no --config flag is given. A missing file is not
// an error; defaults apply.
const DefaultPath = "checklist.yaml"

// Storage backends.
const (
	BackendJSON   = "json"
	BackendSQL    = "sql"
	BackendMemory = "memory"
)

// Config holds all checklist configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	HTTP    HTTPConfig    `yaml:"http"`
	Logging LoggingConfig `yaml:"logging"`
	Notify  NotifyConfig  `yaml:"notify"`
	UI      UIConfig      `yaml:"ui"`
}

type StorageConfig struct {
	Backend string   `yaml:"backend"` // json, sql, memory
	Path    string   `yaml:"path"`    // json file, or sqlite database file
	Driver  string   `yaml:"driver"`  // sqlite, mysql
	DSN     string   `yaml:"dsn"`     // overrides path for the sql backend
	Timeout Duration `yaml:"timeout"`
}

type HTTPConfig struct {
	Addr            string   `yaml:"addr"`
	RateLimit       float64  `yaml:"rate_limit"` // requests per second per client, 0 disables
	Burst           int      `yaml:"burst"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	Development bool   `yaml:"development"`
	File        string `yaml:"file"`
}

type NotifyConfig struct {
	Buffer int `yaml:"buffer"`
}

type UIConfig struct {
	Theme string `yaml:"theme"` // classic, neon, mono
}

// Duration accepts "5s"-style strings in YAML.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: BackendJSON,
			Path:    ".check_list.json",
			Driver:  "sqlite",
			Timeout: Duration(5 * time.Second),
		},
		HTTP: HTTPConfig{
			Addr:            "127.0.0.1:8123",
			RateLimit:       20,
			Burst:           40,
			ShutdownTimeout: Duration(5 * time.Second),
		},
		Logging: LoggingConfig{Level: "info"},
		Notify:  NotifyConfig{Buffer: 64},
		UI:      UIConfig{Theme: "classic"},
	}
}

// Load reads path over the defaults and then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate rejects settings the composition root cannot act on.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendJSON, BackendMemory:
	case BackendSQL:
		switch c.Storage.Driver {
		case "sqlite", "mysql":
		default:
			return fmt.Errorf("storage.driver: unsupported %q", c.Storage.Driver)
		}
		if c.Storage.Driver == "mysql" && c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for mysql")
		}
	default:
		return fmt.Errorf("storage.backend: unsupported %q", c.Storage.Backend)
	}
	if c.HTTP.RateLimit < 0 || c.HTTP.Burst < 0 {
		return fmt.Errorf("http.rate_limit and http.burst must not be negative")
	}
	return nil
}

// applyEnvOverrides applies CHECKLIST_* environment variables.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("CHECKLIST_STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("CHECKLIST_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("CHECKLIST_STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("CHECKLIST_STORAGE_DSN"); v != "" {
		c.Storage.DSN = v
	}
	if v := os.Getenv("CHECKLIST_HTTP_ADDR"); v != "" {
		c.HTTP.Addr = v
	}
	if v := os.Getenv("CHECKLIST_HTTP_RATE_LIMIT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("CHECKLIST_HTTP_RATE_LIMIT: %w", err)
		}
		c.HTTP.RateLimit = f
	}
	if v := os.Getenv("CHECKLIST_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}
