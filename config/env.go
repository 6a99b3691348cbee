package config

import (
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// Environment variables read by ApplyEnvironmentOverrides.
const (
	EnvBufferDuration = "UDPQUEUE_BUFFER_DURATION"
	EnvPoolSize       = "UDPQUEUE_POOL_SIZE"
	EnvDSCP           = "UDPQUEUE_DSCP"
	EnvLogLevel       = "UDPQUEUE_LOG_LEVEL"
)

// ApplyEnvironmentOverrides updates cfg from UDPQUEUE_* environment
// variables. A value that does not parse or is out of bounds is logged and
// ignored, keeping the current setting.
func ApplyEnvironmentOverrides(cfg *Config) {
	parseBufferDuration(cfg)
	parsePoolSize(cfg)
	parseDSCP(cfg)
	parseLogLevel(cfg)
}

// parseBufferDuration accepts a Go duration ("400ms") or a bare number of
// milliseconds ("400").
func parseBufferDuration(cfg *Config) {
	value := os.Getenv(EnvBufferDuration)
	if value == "" {
		return
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		ms, msErr := strconv.Atoi(value)
		if msErr != nil {
			warnInvalid(EnvBufferDuration, value, err, cfg.BufferDuration)
			return
		}
		d = time.Duration(ms) * time.Millisecond
	}
	if d < cfg.FrameDuration || d > MaxBufferDuration {
		warnOutOfBounds(EnvBufferDuration, d, cfg.FrameDuration, MaxBufferDuration, cfg.BufferDuration)
		return
	}
	cfg.BufferDuration = d
}

func parsePoolSize(cfg *Config) {
	value := os.Getenv(EnvPoolSize)
	if value == "" {
		return
	}

	size, err := strconv.Atoi(value)
	if err != nil {
		warnInvalid(EnvPoolSize, value, err, cfg.PoolSize)
		return
	}
	if size < 0 || size > MaxPoolSize {
		warnOutOfBounds(EnvPoolSize, size, 0, MaxPoolSize, cfg.PoolSize)
		return
	}
	cfg.PoolSize = size
}

func parseDSCP(cfg *Config) {
	value := os.Getenv(EnvDSCP)
	if value == "" {
		return
	}

	dscp, err := strconv.Atoi(value)
	if err != nil {
		warnInvalid(EnvDSCP, value, err, cfg.DSCP)
		return
	}
	if dscp < 0 || dscp > MaxDSCP {
		warnOutOfBounds(EnvDSCP, dscp, 0, MaxDSCP, cfg.DSCP)
		return
	}
	cfg.DSCP = dscp
}

func parseLogLevel(cfg *Config) {
	value := os.Getenv(EnvLogLevel)
	if value == "" {
		return
	}

	if _, err := logrus.ParseLevel(value); err != nil {
		warnInvalid(EnvLogLevel, value, err, cfg.LogLevel)
		return
	}
	cfg.LogLevel = value
}

func warnInvalid(envVar, value string, err error, using interface{}) {
	logrus.WithFields(logrus.Fields{
		"function":    "ApplyEnvironmentOverrides",
		"env_var":     envVar,
		"value":       value,
		"error":       err.Error(),
		"using_value": using,
	}).Warn("Failed to parse environment variable, using default")
}

func warnOutOfBounds(envVar string, value, lo, hi, using interface{}) {
	logrus.WithFields(logrus.Fields{
		"function":    "ApplyEnvironmentOverrides",
		"env_var":     envVar,
		"value":       value,
		"min":         lo,
		"max":         hi,
		"using_value": using,
	}).Warn("Environment variable out of bounds, using default")
}
