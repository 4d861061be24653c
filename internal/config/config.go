package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
)

type StorageType string

const (
	StorageTypeSQLite StorageType = "sqlite"
	StorageTypeMemory StorageType = "memory"
	StorageTypeRedis  StorageType = "redis"
)

// Config holds the configuration for the parley client.
type Config struct {
	// Backend holds the chat backend configuration.
	Backend *BackendConfig `yaml:"backend" mapstructure:"backend"`
	// Storage holds the configuration of the persisted session token.
	Storage *StorageConfig `yaml:"storage" mapstructure:"storage"`
	// Web holds the configuration of the browser UI.
	Web *WebConfig `yaml:"web" mapstructure:"web"`
	// Refresh holds the polling intervals.
	Refresh *RefreshConfig `yaml:"refresh" mapstructure:"refresh"`
	// Avatar holds the configuration for identicon avatars.
	Avatar *AvatarConfig `yaml:"avatar" mapstructure:"avatar"`
}

// BackendConfig holds the configuration for the chat backend.
type BackendConfig struct {
	// URL is the base URL of the chat backend.
	URL string `yaml:"url" mapstructure:"url"`
	// Timeout is the timeout for a single request to the backend.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// RemoteLogout also revokes the token on the backend when logging out.
	RemoteLogout bool `yaml:"remote_logout" mapstructure:"remote_logout"`
}

// StorageConfig holds the configuration of the token store.
type StorageConfig struct {
	// Type is the storage backend (sqlite, memory, redis).
	Type StorageType `yaml:"type" mapstructure:"type"`
	// Path is the path to the sqlite database file.
	Path string `yaml:"path" mapstructure:"path"`
	// RedisURL is the address of the redis server if using redis.
	RedisURL string `yaml:"redis_url" mapstructure:"redis_url"`
	// Key is the well-known key the token is stored under.
	Key string `yaml:"key" mapstructure:"key"`
}

// WebConfig holds the configuration of the browser UI.
type WebConfig struct {
	// Listen is the address the browser UI listens on.
	Listen string `yaml:"listen" mapstructure:"listen"`
	// SessionKey is the key used to sign the flash message cookie.
	// A random key is generated on startup if empty.
	SessionKey string `yaml:"session_key" mapstructure:"session_key"`
	// SessionMaxAge is the maximum age of the flash message cookie in seconds.
	SessionMaxAge int `yaml:"session_max_age" mapstructure:"session_max_age"`
}

// RefreshConfig holds the polling intervals.
type RefreshConfig struct {
	// Interval is how often a followed conversation is refetched.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
	// Revalidate is how often the browser UI revalidates its session token.
	Revalidate time.Duration `yaml:"revalidate" mapstructure:"revalidate"`
}

// AvatarConfig holds the configuration for identicon avatars.
type AvatarConfig struct {
	// Enabled indicates whether avatars are shown.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// DefaultImage is the generated image style.
	// Valid values: "identicon", "monsterid", "wavatar", "retro", "robohash"
	DefaultImage string `yaml:"default_image" mapstructure:"default_image"`
	// Rating is the maximum rating for avatar images.
	// Valid values: "g", "pg", "r", "x"
	Rating string `yaml:"rating" mapstructure:"rating"`
	// Size is the size of the avatar in pixels (1-2048).
	Size int `yaml:"size" mapstructure:"size"`
}

// Load reads the configuration from the specified path and returns a Config struct.
// If path is empty, it will use default search paths for config files.
// If no config file is found, defaults and environment variables are used.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigType("yaml")
	v.SetEnvPrefix("PARLEY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var configFileFound bool
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.parley")
		v.AddConfigPath("/etc/parley")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		configFileFound = true
	}

	if configFileFound {
		log.Debug("Using config file", "file", v.ConfigFileUsed())
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	sanitizeConfig(&c)

	if err := validateConfig(&c); err != nil {
		return nil, err
	}

	return &c, nil
}

// setDefaults sets default values for the configuration.
func setDefaults(v *viper.Viper) {
	// Backend defaults
	v.SetDefault("backend.url", "http://localhost:5000")
	v.SetDefault("backend.timeout", 30*time.Second)
	v.SetDefault("backend.remote_logout", false)

	// Storage defaults
	v.SetDefault("storage.type", StorageTypeSQLite)
	v.SetDefault("storage.path", defaultDatabasePath())
	v.SetDefault("storage.redis_url", "")
	v.SetDefault("storage.key", "token")

	// Web defaults
	v.SetDefault("web.listen", "127.0.0.1:3003")
	v.SetDefault("web.session_key", "")
	v.SetDefault("web.session_max_age", 3600)

	// Refresh defaults
	v.SetDefault("refresh.interval", 5*time.Second)
	v.SetDefault("refresh.revalidate", 5*time.Minute)

	// Avatar defaults
	v.SetDefault("avatar.enabled", false)
	v.SetDefault("avatar.default_image", "identicon")
	v.SetDefault("avatar.rating", "g")
	v.SetDefault("avatar.size", 32)
}

func defaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data/parley.db"
	}
	return filepath.Join(home, ".parley", "parley.db")
}

// validateConfig validates the configuration.
func validateConfig(c *Config) error {
	if c == nil {
		return fmt.Errorf("missing parley config")
	}

	if c.Backend == nil || c.Backend.URL == "" {
		return fmt.Errorf("backend URL is required")
	}
	if !strings.HasPrefix(c.Backend.URL, "http://") && !strings.HasPrefix(c.Backend.URL, "https://") {
		return fmt.Errorf("backend URL must start with http:// or https://")
	}
	if c.Backend.Timeout < 0 {
		return fmt.Errorf("backend timeout must not be negative")
	}

	if c.Storage == nil {
		return fmt.Errorf("missing storage config")
	}
	if c.Storage.Key == "" {
		return fmt.Errorf("storage key is required")
	}
	switch c.Storage.Type {
	case StorageTypeSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage path is required when sqlite storage is used")
		}
	case StorageTypeRedis:
		if c.Storage.RedisURL == "" {
			return fmt.Errorf("Redis URL is required when redis storage is used") //nolint:staticcheck
		}
	case StorageTypeMemory:
	default:
		return fmt.Errorf("unknown storage type %q", c.Storage.Type)
	}

	if c.Web == nil {
		c.Web = &WebConfig{Listen: "127.0.0.1:3003", SessionMaxAge: 3600}
	}
	if c.Web.Listen == "" {
		return fmt.Errorf("web listen address is required")
	}

	if c.Refresh == nil {
		c.Refresh = &RefreshConfig{Interval: 5 * time.Second, Revalidate: 5 * time.Minute}
	}
	if c.Refresh.Interval <= 0 {
		return fmt.Errorf("refresh interval must be greater than 0")
	}

	return nil
}

// sanitizeConfig sanitizes the configuration values.
func sanitizeConfig(c *Config) {
	if c == nil {
		return
	}

	if c.Backend != nil {
		c.Backend.URL = urlSanitize(c.Backend.URL)
	}

	if c.Storage != nil {
		c.Storage.Path = strings.TrimSpace(c.Storage.Path)
		c.Storage.Type = StorageType(strings.ToLower(strings.TrimSpace(string(c.Storage.Type))))
	}

	if c.Web != nil {
		c.Web.Listen = strings.TrimSpace(c.Web.Listen)
	}
}

func urlSanitize(url string) string {
	return strings.TrimSuffix(strings.TrimSpace(url), "/")
}
