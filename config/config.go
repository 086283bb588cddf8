// Package config loads client settings from an optional YAML file and
// CITIZEN_* environment variables.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"citizen-card-cli/service"
	"citizen-card-cli/store"
)

const (
	EnvPrefix      = "CITIZEN"
	configFileName = "config.yaml"

	DriverFile  = "file"
	DriverRedis = "redis"
)

type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Log     LogConfig     `mapstructure:"log"`
	Storage StorageConfig `mapstructure:"storage"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Dev     DevConfig     `mapstructure:"dev"`
}

type APIConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	ClientVersion string        `mapstructure:"client_version"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	// File receives log output while the TUI owns the terminal.
	File string `mapstructure:"file"`
}

type StorageConfig struct {
	Driver        string        `mapstructure:"driver"`
	Dir           string        `mapstructure:"dir"`
	RedisURL      string        `mapstructure:"redis_url"`
	RedisPrefix   string        `mapstructure:"redis_prefix"`
	SnapshotDelay time.Duration `mapstructure:"snapshot_delay"`
	SnapshotLimit int           `mapstructure:"snapshot_limit"`
}

type MetricsConfig struct {
	// Addr enables the /metrics endpoint when set, e.g. ":9090".
	Addr string `mapstructure:"addr"`
}

// DevConfig configures the in-memory backend started by dev-server.
type DevConfig struct {
	Addr     string        `mapstructure:"addr"`
	Seed     string        `mapstructure:"seed"`
	Envelope bool          `mapstructure:"envelope"`
	Secret   string        `mapstructure:"secret"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", service.DefaultBaseURL)
	v.SetDefault("api.timeout", service.DefaultTimeout)
	v.SetDefault("api.client_version", "dev")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")

	v.SetDefault("storage.driver", DriverFile)
	v.SetDefault("storage.dir", "")
	v.SetDefault("storage.redis_url", "redis://localhost:6379/0")
	v.SetDefault("storage.redis_prefix", "citizen-card:")
	v.SetDefault("storage.snapshot_delay", store.DefaultSnapshotDelay)
	v.SetDefault("storage.snapshot_limit", store.DefaultSnapshotLimit)

	v.SetDefault("metrics.addr", "")

	v.SetDefault("dev.addr", "127.0.0.1:8080")
	v.SetDefault("dev.seed", "")
	v.SetDefault("dev.envelope", false)
	v.SetDefault("dev.secret", "")
	v.SetDefault("dev.token_ttl", 2*time.Hour)
}

// LoadConfig reads path when given. Otherwise config.yaml in the user config
// directory is read if it exists.
func LoadConfig(path string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		return v, nil
	}

	defaultPath, err := store.ConfigPath(configFileName)
	if err != nil {
		return v, nil
	}
	v.AddConfigPath(filepath.Dir(defaultPath))
	v.SetConfigName(strings.TrimSuffix(configFileName, filepath.Ext(configFileName)))
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

func ParseConfig(v *viper.Viper) (*Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load is LoadConfig followed by ParseConfig.
func Load(path string) (*Config, error) {
	v, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(v)
}

func (c *Config) Validate() error {
	var errs []error
	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("api.base_url is required"))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("api.timeout must be positive"))
	}
	switch c.Storage.Driver {
	case DriverFile:
	case DriverRedis:
		if c.Storage.RedisURL == "" {
			errs = append(errs, errors.New("storage.redis_url is required for the redis driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be %q or %q, got %q", DriverFile, DriverRedis, c.Storage.Driver))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
