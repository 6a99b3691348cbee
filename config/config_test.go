package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opd-ai/udpqueue/transport"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "udpqueue.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.True(t, cfg.Enabled)
	assert.Equal(t, 400*time.Millisecond, cfg.BufferDuration)
	assert.Equal(t, 20*time.Millisecond, cfg.FrameDuration)
	assert.Equal(t, 4096, cfg.MaxPacketSize)
	assert.Equal(t, transport.DSCPExpedited, cfg.DSCP)
	assert.Equal(t, logrus.InfoLevel, cfg.Level())
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
enabled: true
buffer-duration: 200ms
frame-duration: 10ms
pool-size: 4
max-packet-size: 1500
send-timeout: 2ms
dscp: 34
idle-tick-limit: 50
tick-budget: 100
log-level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 200*time.Millisecond, cfg.BufferDuration)
	assert.Equal(t, 10*time.Millisecond, cfg.FrameDuration)
	assert.Equal(t, 4, cfg.PoolSize)
	assert.Equal(t, 1500, cfg.MaxPacketSize)
	assert.Equal(t, 2*time.Millisecond, cfg.SendTimeout)
	assert.Equal(t, 34, cfg.DSCP)
	assert.Equal(t, 50, cfg.IdleTickLimit)
	assert.Equal(t, 100, cfg.TickBudget)
	assert.Equal(t, logrus.DebugLevel, cfg.Level())
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "pool-size: 3\n"))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.PoolSize)
	assert.Equal(t, 400*time.Millisecond, cfg.BufferDuration)
	assert.True(t, cfg.Enabled)
}

func TestLoadEmptyFileAndPath(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown key", "buffer-duraton: 200ms\n"},
		{"bad duration", "buffer-duration: soon\n"},
		{"out of bounds", "dscp: 99\n"},
		{"buffer below frame", "buffer-duration: 5ms\n"},
		{"bad log level", "log-level: loud\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"frame too short", func(c *Config) { c.FrameDuration = time.Microsecond }},
		{"frame too long", func(c *Config) { c.FrameDuration = 2 * time.Second }},
		{"buffer too long", func(c *Config) { c.BufferDuration = time.Hour }},
		{"negative pool", func(c *Config) { c.PoolSize = -1 }},
		{"zero packet size", func(c *Config) { c.MaxPacketSize = 0 }},
		{"packet above udp", func(c *Config) { c.MaxPacketSize = 70000 }},
		{"negative timeout", func(c *Config) { c.SendTimeout = -time.Millisecond }},
		{"negative dscp", func(c *Config) { c.DSCP = -1 }},
		{"negative idle limit", func(c *Config) { c.IdleTickLimit = -1 }},
		{"negative budget", func(c *Config) { c.TickBudget = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv(EnvBufferDuration, "100ms")
	t.Setenv(EnvPoolSize, "6")
	t.Setenv(EnvDSCP, "0")
	t.Setenv(EnvLogLevel, "warn")

	cfg, err := Load(writeConfig(t, "buffer-duration: 200ms\npool-size: 2\n"))
	require.NoError(t, err)

	assert.Equal(t, 100*time.Millisecond, cfg.BufferDuration)
	assert.Equal(t, 6, cfg.PoolSize)
	assert.Equal(t, 0, cfg.DSCP)
	assert.Equal(t, logrus.WarnLevel, cfg.Level())
}

func TestEnvironmentBufferMilliseconds(t *testing.T) {
	t.Setenv(EnvBufferDuration, "240")

	cfg := Default()
	ApplyEnvironmentOverrides(cfg)
	assert.Equal(t, 240*time.Millisecond, cfg.BufferDuration)
}

func TestEnvironmentInvalidValuesKeepDefaults(t *testing.T) {
	tests := []struct {
		envVar string
		value  string
	}{
		{EnvBufferDuration, "forever"},
		{EnvBufferDuration, "1ms"},
		{EnvPoolSize, "many"},
		{EnvPoolSize, "-3"},
		{EnvDSCP, "ef"},
		{EnvDSCP, "64"},
		{EnvLogLevel, "chatty"},
	}

	for _, tt := range tests {
		t.Run(tt.envVar+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.envVar, tt.value)
			cfg := Default()
			ApplyEnvironmentOverrides(cfg)
			assert.Equal(t, Default(), cfg)
		})
	}
}

func TestPoolOptions(t *testing.T) {
	cfg := Default()
	cfg.PoolSize = 5
	cfg.TickBudget = 10
	cfg.IdleTickLimit = 25
	cfg.MaxPacketSize = 1200

	options := cfg.PoolOptions()
	assert.Equal(t, 5, options.PoolSize)
	assert.Equal(t, 10, options.TickBudget)
	assert.Equal(t, 25, options.IdleTickLimit)
	assert.Equal(t, 1200, options.MaxPacketSize)
	assert.Equal(t, uint32(20), options.Capacity())
	assert.Nil(t, options.Transport)

	cfg.PoolSize = 0
	assert.Greater(t, cfg.PoolOptions().PoolSize, 0)
}

func TestTransportOptions(t *testing.T) {
	cfg := Default()
	cfg.DSCP = 0
	cfg.SendTimeout = 3 * time.Millisecond

	udp, err := transport.NewUDPTransport("udp4", "127.0.0.1:0", cfg.TransportOptions()...)
	require.NoError(t, err)
	defer udp.Close()
	assert.NotNil(t, udp.LocalAddr())
}
