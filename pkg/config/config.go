// Package config loads server settings from an optional YAML file and the
// environment.
package config

import (
	"bytes"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/carterli0407-cell/line-sampler/pkg/protocol"
)

// Environment variables that override the file.
const (
	EnvSocket    = "LINESAMPLER_SOCKET"
	EnvStatsAddr = "LINESAMPLER_STATS_ADDR"
)

// Config holds server configuration.
type Config struct {
	// Socket is the Unix socket path to listen on.
	Socket string `yaml:"socket"`
	// SocketMode is the octal permission set on the socket file, e.g. "0660".
	SocketMode string `yaml:"socket_mode"`
	// MaxFrameBytes bounds a single request line.
	MaxFrameBytes int `yaml:"max_frame_bytes"`
	// IdleTimeout drops silent connections. Zero disables it.
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	// WatchDir, when set, is a spool directory whose files are loaded
	// into the pool as they appear.
	WatchDir string `yaml:"watch_dir"`
	// StatsAddr, when set, is the TCP address of the stats HTTP endpoint.
	StatsAddr string `yaml:"stats_addr"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Socket:        protocol.DefaultSocketPath,
		SocketMode:    "0666",
		MaxFrameBytes: protocol.DefaultMaxFrameBytes,
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "reading config")
		}
		if err := cfg.decode(data); err != nil {
			return nil, errors.Wrapf(err, "parsing %s", path)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	// an empty file leaves the defaults alone
	if err := dec.Decode(c); err != nil && err != io.EOF {
		return err
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Socket = getEnv(EnvSocket, c.Socket)
	c.StatsAddr = getEnv(EnvStatsAddr, c.StatsAddr)
}

// Validate checks that the configuration can be served.
func (c *Config) Validate() error {
	if c.Socket == "" {
		return errors.New("socket path is required")
	}
	if c.MaxFrameBytes <= 0 {
		return errors.Errorf("max_frame_bytes must be positive, got %d", c.MaxFrameBytes)
	}
	if c.IdleTimeout < 0 {
		return errors.Errorf("idle_timeout must not be negative, got %v", c.IdleTimeout)
	}
	if _, err := c.FileMode(); err != nil {
		return err
	}
	return nil
}

// FileMode parses SocketMode.
func (c *Config) FileMode() (os.FileMode, error) {
	mode, err := strconv.ParseUint(c.SocketMode, 8, 32)
	if err != nil || mode > 0o777 {
		return 0, errors.Errorf("socket_mode %q is not an octal permission", c.SocketMode)
	}
	return os.FileMode(mode), nil
}

// getEnv returns environment variable value or default
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
