// Package config loads the streamclient command's YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cyberinferno/asyncstream/logger"
	"github.com/cyberinferno/asyncstream/resolver"
	"github.com/cyberinferno/asyncstream/streamclient"
	"github.com/cyberinferno/asyncstream/utils"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Cache backends for resolved addresses.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// defaultPayload is longer than one read buffer so the reply takes several
// read rounds.
var defaultPayload = strings.TrimSpace(strings.Repeat("This is a test of the asynchronous stream client. ", 24))

// Config holds the streamclient command configuration. Durations are Go
// duration strings such as "1s" or "50ms".
type Config struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	Payload      string        `yaml:"payload"`
	EndMarker    string        `yaml:"end_marker"`
	StartupDelay time.Duration `yaml:"startup_delay"`
	WaitForInput bool          `yaml:"wait_for_input"`
	Strict       bool          `yaml:"strict"`

	BufferSize         int           `yaml:"buffer_size"`
	ConnectionTimeout  time.Duration `yaml:"connection_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	ReadTimeout        time.Duration `yaml:"read_timeout"`
	StageTimeout       time.Duration `yaml:"stage_timeout"`
	AvailabilityWindow time.Duration `yaml:"availability_window"`
	Termination        string        `yaml:"termination"`
	Delimiter          string        `yaml:"delimiter"`
	Extractor          string        `yaml:"extractor"`

	Log   LogConfig   `yaml:"log"`
	Cache CacheConfig `yaml:"cache"`
}

// LogConfig selects log verbosity and destination.
type LogConfig struct {
	Level string `yaml:"level"`
	// Dir enables daily rotated log files under this directory.
	Dir string `yaml:"dir"`
}

// CacheConfig selects where resolved addresses are cached.
type CacheConfig struct {
	Backend   string        `yaml:"backend"`
	RedisAddr string        `yaml:"redis_addr"`
	TTL       time.Duration `yaml:"ttl"`
}

// Default returns the built-in configuration.
func Default() *Config {
	sc := streamclient.DefaultConfig(streamclient.DefaultHost, streamclient.DefaultPort)

	return &Config{
		Host:               sc.Host,
		Port:               sc.Port,
		Payload:            defaultPayload,
		EndMarker:          "<EOF>",
		StartupDelay:       time.Second,
		WaitForInput:       true,
		BufferSize:         sc.BufferSize,
		ConnectionTimeout:  sc.ConnectionTimeout,
		WriteTimeout:       sc.WriteTimeout,
		ReadTimeout:        sc.ReadTimeout,
		StageTimeout:       sc.StageTimeout,
		AvailabilityWindow: sc.AvailabilityWindow,
		Termination:        sc.Termination.String(),
		Extractor:          "first-line",
		Log: LogConfig{
			Level: "info",
		},
		Cache: CacheConfig{
			Backend: CacheMemory,
			TTL:     5 * time.Minute,
		},
	}
}

// DefaultPath returns the default config file path: ~/.asyncstream/config.yaml
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".asyncstream", "config.yaml")
	}
	return filepath.Join(home, ".asyncstream", "config.yaml")
}

// Load reads the configuration from the given YAML file path. Keys missing
// from the file keep their defaults. If the file does not exist, it returns
// Default() with no error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the settings that Session does not.
func (c *Config) Validate() error {
	if _, err := c.LogLevel(); err != nil {
		return err
	}

	switch c.Cache.Backend {
	case CacheNone, CacheMemory:
	case CacheRedis:
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("cache backend %q needs redis_addr", CacheRedis)
		}
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}

	if _, err := streamclient.ParseTermination(c.Termination); err != nil {
		return err
	}

	if _, err := streamclient.ParseExtractor(c.Extractor, []byte(c.delimiter())); err != nil {
		return err
	}

	return nil
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (zerolog.Level, error) {
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("log level: %w", err)
	}

	return level, nil
}

// PayloadBytes returns the ASCII payload with the end marker appended.
func (c *Config) PayloadBytes() []byte {
	return utils.EncodeASCII(c.Payload + c.EndMarker)
}

// Session builds the session settings. log and r may be nil.
func (c *Config) Session(log logger.Logger, r resolver.Resolver) (streamclient.Config, error) {
	termination, err := streamclient.ParseTermination(c.Termination)
	if err != nil {
		return streamclient.Config{}, err
	}

	delim := []byte(c.delimiter())
	extractor, err := streamclient.ParseExtractor(c.Extractor, delim)
	if err != nil {
		return streamclient.Config{}, err
	}

	sc := streamclient.DefaultConfig(c.Host, c.Port)
	sc.BufferSize = c.BufferSize
	sc.ConnectionTimeout = c.ConnectionTimeout
	sc.WriteTimeout = c.WriteTimeout
	sc.ReadTimeout = c.ReadTimeout
	sc.StageTimeout = c.StageTimeout
	sc.AvailabilityWindow = c.AvailabilityWindow
	sc.Termination = termination
	sc.Delimiter = delim
	sc.Extractor = extractor
	sc.Logger = log
	if r != nil {
		sc.Resolver = r
	}

	if err := sc.Validate(); err != nil {
		return streamclient.Config{}, err
	}

	return sc, nil
}

// delimiter falls back to the end marker, which is what a cooperating peer
// echoes at the end of a reply.
func (c *Config) delimiter() string {
	if c.Delimiter != "" {
		return c.Delimiter
	}

	return c.EndMarker
}
