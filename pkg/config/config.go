package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "BANDLINK_"

// Config holds application configuration
type Config struct {
	LogLevel string `yaml:"log_level" default:"info"`

	Scan struct {
		Duration time.Duration `yaml:"duration" default:"10s"`
	} `yaml:"scan"`

	Connect struct {
		Timeout time.Duration `yaml:"timeout" default:"10s"`
	} `yaml:"connect"`

	Device struct {
		Service    string `yaml:"service" default:"fff0"`
		WriteChar  string `yaml:"write_char" default:"fff6"`
		NotifyChar string `yaml:"notify_char" default:"fff7"`
	} `yaml:"device"`

	Bus struct {
		BufferSize uint32 `yaml:"buffer_size" default:"256"`
	} `yaml:"bus"`

	Bridge struct {
		Listen string `yaml:"listen" default:":8765"`
	} `yaml:"bridge"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load builds a Config from defaults, the optional YAML file at path, the
// optional .env file at envPath and BANDLINK_* environment variables, in
// that order. Empty paths are skipped; missing files are ignored.
func Load(path, envPath string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	if envPath != "" {
		if err := loadDotEnv(envPath); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv loads environment variables from path. Missing files are ignored.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s%s %q: %w", EnvPrefix, key, v, err)
		}
		*dst = d
		return nil
	}

	str("LOG_LEVEL", &c.LogLevel)
	str("SERVICE", &c.Device.Service)
	str("WRITE_CHAR", &c.Device.WriteChar)
	str("NOTIFY_CHAR", &c.Device.NotifyChar)
	str("LISTEN", &c.Bridge.Listen)

	if err := dur("SCAN_DURATION", &c.Scan.Duration); err != nil {
		return err
	}
	if err := dur("CONNECT_TIMEOUT", &c.Connect.Timeout); err != nil {
		return err
	}

	if v, ok := lookup(EnvPrefix + "BUFFER_SIZE"); ok && v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid %sBUFFER_SIZE %q: %w", EnvPrefix, v, err)
		}
		c.Bus.BufferSize = uint32(n)
	}
	return nil
}

// Level returns the parsed log level, falling back to info.
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.Level())

	// Use structured logging format
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}
