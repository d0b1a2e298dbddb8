package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tgienger/smartpm/internal/models"
)

// Store backends
const (
	StoreSQLite    = "sqlite"
	StorePostgREST = "postgrest"
)

const (
	defaultAPIURL  = "http://localhost:8000"
	defaultTimeout = 30 * time.Second
	localUser      = "local"
)

// StoreConfig selects where projects and tasks are read from
type StoreConfig struct {
	Kind   string `yaml:"kind"`
	URL    string `yaml:"url,omitempty"`
	Key    string `yaml:"key,omitempty"`
	DBPath string `yaml:"db_path,omitempty"`
}

// Config represents the application configuration
type Config struct {
	APIURL         string               `yaml:"api_url"`
	Store          StoreConfig          `yaml:"store"`
	UserID         string               `yaml:"user_id"`
	Token          string               `yaml:"token,omitempty"`
	Model          models.ModelSelector `yaml:"model"`
	DownloadDir    string               `yaml:"download_dir"`
	RequestTimeout time.Duration        `yaml:"request_timeout"`
	LastProjectID  string               `yaml:"last_project_id,omitempty"`

	path string
}

// Load loads config from the user's config directory, then applies
// environment overrides. Returns default config if the file doesn't exist.
func Load() (*Config, error) {
	configPath, err := getConfigPath()
	if err != nil {
		cfg := &Config{}
		cfg.applyEnv()
		cfg.applyDefaults()
		return cfg, cfg.Validate()
	}
	return LoadFrom(configPath)
}

// LoadFrom loads config from path
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{path: path}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path returns the file the config was loaded from
func (c *Config) Path() string {
	return c.path
}

// Save saves the config to the file it was loaded from
func (c *Config) Save() error {
	configPath := c.path
	if configPath == "" {
		p, err := getConfigPath()
		if err != nil {
			return err
		}
		configPath = p
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	// the file may hold a token
	return os.WriteFile(configPath, data, 0o600)
}

// Validate checks the settings that cannot be defaulted
func (c *Config) Validate() error {
	switch c.Store.Kind {
	case StoreSQLite:
	case StorePostgREST:
		if c.Store.URL == "" {
			return fmt.Errorf("store url is required for the %s store", StorePostgREST)
		}
	default:
		return fmt.Errorf("unknown store kind %q", c.Store.Kind)
	}
	switch c.Model {
	case models.ModelOpenAI, models.ModelGemini:
	default:
		return fmt.Errorf("unknown model %q", c.Model)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout must not be negative")
	}
	return nil
}

// applyEnv overrides file values with SMARTPM_* variables
func (c *Config) applyEnv() {
	c.APIURL = EnvOrDefault("SMARTPM_API_URL", c.APIURL)
	c.Store.Kind = EnvOrDefault("SMARTPM_STORE", c.Store.Kind)
	c.Store.URL = EnvOrDefault("SMARTPM_STORE_URL", c.Store.URL)
	c.Store.Key = EnvOrDefault("SMARTPM_STORE_KEY", c.Store.Key)
	c.Store.DBPath = EnvOrDefault("SMARTPM_DB_PATH", c.Store.DBPath)
	c.UserID = EnvOrDefault("SMARTPM_USER_ID", c.UserID)
	c.Token = EnvOrDefault("SMARTPM_TOKEN", c.Token)
	c.Model = models.ModelSelector(EnvOrDefault("SMARTPM_MODEL", string(c.Model)))
	c.DownloadDir = EnvOrDefault("SMARTPM_DOWNLOAD_DIR", c.DownloadDir)
}

// applyDefaults fills in missing configuration with defaults
func (c *Config) applyDefaults() {
	if c.APIURL == "" {
		c.APIURL = defaultAPIURL
	}
	if c.Store.Kind == "" {
		c.Store.Kind = StoreSQLite
	}
	if c.Store.Kind == StoreSQLite {
		if c.Store.DBPath == "" {
			if dir, err := DataDir(); err == nil {
				c.Store.DBPath = filepath.Join(dir, "smartpm.db")
			}
		}
		// the local store has a single user
		if c.UserID == "" {
			c.UserID = localUser
		}
	}
	if c.Model == "" {
		c.Model = models.DefaultModel
	}
	if c.DownloadDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.DownloadDir = filepath.Join(home, "Downloads")
		}
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = defaultTimeout
	}
}

// getConfigPath returns the path to the config file
func getConfigPath() (string, error) {
	// Try XDG_CONFIG_HOME first
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "smartpm", "config.yaml"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", "smartpm", "config.yaml"), nil
}

// DataDir returns the directory for the local database and logs
func DataDir() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "smartpm"), nil
}
