package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/opd-ai/udpqueue"
	"github.com/opd-ai/udpqueue/limits"
	"github.com/opd-ai/udpqueue/transport"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Validation bounds.
const (
	// MinFrameDuration is the shortest accepted tick interval.
	MinFrameDuration = time.Millisecond
	// MaxFrameDuration is the longest accepted tick interval.
	MaxFrameDuration = time.Second
	// MaxBufferDuration bounds the per-key backlog.
	MaxBufferDuration = time.Minute
	// MaxPoolSize bounds the number of pacer goroutines.
	MaxPoolSize = 1024
	// MaxDSCP is the largest six-bit code point.
	MaxDSCP = 63
)

// Config holds the pacing settings read from a file and the environment.
type Config struct {
	// Enabled turns pacing on. When false, callers are expected to send
	// directly.
	Enabled        bool          `yaml:"enabled"`
	BufferDuration time.Duration `yaml:"buffer-duration"`
	FrameDuration  time.Duration `yaml:"frame-duration"`
	// PoolSize of zero means twice the number of CPUs.
	PoolSize      int           `yaml:"pool-size"`
	MaxPacketSize int           `yaml:"max-packet-size"`
	SendTimeout   time.Duration `yaml:"send-timeout"`
	DSCP          int           `yaml:"dscp"`
	IdleTickLimit int           `yaml:"idle-tick-limit"`
	TickBudget    int           `yaml:"tick-budget"`
	LogLevel      string        `yaml:"log-level"`
}

// Default returns the built-in configuration: pacing on, a 400ms buffer of
// 20ms frames and voice traffic marking.
func Default() *Config {
	return &Config{
		Enabled:        true,
		BufferDuration: limits.DefaultBufferDuration,
		FrameDuration:  limits.FrameDuration,
		PoolSize:       0,
		MaxPacketSize:  limits.MaxPacketSize,
		SendTimeout:    transport.DefaultWriteTimeout,
		DSCP:           transport.DSCPExpedited,
		IdleTickLimit:  0,
		TickBudget:     0,
		LogLevel:       "info",
	}
}

// Load reads a YAML file over the defaults. Unknown keys are errors so that
// typos do not silently fall back to defaults. Environment overrides are
// applied after the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	ApplyEnvironmentOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logConfiguration(path, cfg)
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	return decoder.Decode(c)
}

// Validate checks every field against its bounds.
func (c *Config) Validate() error {
	if c.FrameDuration < MinFrameDuration || c.FrameDuration > MaxFrameDuration {
		return fmt.Errorf("frame-duration %v outside [%v, %v]", c.FrameDuration, MinFrameDuration, MaxFrameDuration)
	}
	if c.BufferDuration < c.FrameDuration || c.BufferDuration > MaxBufferDuration {
		return fmt.Errorf("buffer-duration %v outside [%v, %v]", c.BufferDuration, c.FrameDuration, MaxBufferDuration)
	}
	if c.PoolSize < 0 || c.PoolSize > MaxPoolSize {
		return fmt.Errorf("pool-size %d outside [0, %d]", c.PoolSize, MaxPoolSize)
	}
	if c.MaxPacketSize <= 0 || c.MaxPacketSize > limits.MaxUDPPayload {
		return fmt.Errorf("max-packet-size %d outside (0, %d]", c.MaxPacketSize, limits.MaxUDPPayload)
	}
	if c.SendTimeout < 0 {
		return fmt.Errorf("send-timeout cannot be negative, got %v", c.SendTimeout)
	}
	if c.DSCP < 0 || c.DSCP > MaxDSCP {
		return fmt.Errorf("dscp %d outside [0, %d]", c.DSCP, MaxDSCP)
	}
	if c.IdleTickLimit < 0 {
		return fmt.Errorf("idle-tick-limit cannot be negative, got %d", c.IdleTickLimit)
	}
	if c.TickBudget < 0 {
		return fmt.Errorf("tick-budget cannot be negative, got %d", c.TickBudget)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log-level: %w", err)
	}
	return nil
}

// PoolOptions converts the configuration into pool options. The caller
// still sets a transport.
func (c *Config) PoolOptions() *udpqueue.Options {
	options := udpqueue.NewOptions()
	options.BufferDuration = c.BufferDuration
	options.FrameDuration = c.FrameDuration
	if c.PoolSize > 0 {
		options.PoolSize = c.PoolSize
	}
	options.MaxPacketSize = c.MaxPacketSize
	options.TickBudget = c.TickBudget
	options.IdleTickLimit = c.IdleTickLimit
	return options
}

// TransportOptions converts the configuration into UDP transport options.
func (c *Config) TransportOptions() []transport.UDPOption {
	return []transport.UDPOption{
		transport.WithWriteTimeout(c.SendTimeout),
		transport.WithDSCP(c.DSCP),
	}
}

// Level returns the configured log level, or info if it does not parse.
func (c *Config) Level() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

func logConfiguration(path string, c *Config) {
	logrus.WithFields(logrus.Fields{
		"function":        "Load",
		"path":            path,
		"enabled":         c.Enabled,
		"buffer_duration": c.BufferDuration,
		"frame_duration":  c.FrameDuration,
		"pool_size":       c.PoolSize,
		"max_packet_size": c.MaxPacketSize,
		"send_timeout":    c.SendTimeout,
		"dscp":            c.DSCP,
		"idle_tick_limit": c.IdleTickLimit,
		"tick_budget":     c.TickBudget,
	}).Info("Loaded pacing configuration")
}
