package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, HostWebSocket, cfg.Host.Kind)
	assert.Equal(t, 16, cfg.Host.QueueSize)
	assert.Equal(t, "/ws", cfg.Bridge.Path)
	assert.Empty(t, cfg.Bridge.OriginPatterns, "only same-host browser origins by default")
	assert.Equal(t, 64<<10, cfg.Bridge.ReadLimit)
	assert.Zero(t, cfg.Relay.SendTimeout, "relay waits for the host by default")
	assert.Empty(t, cfg.Telemetry.Endpoint)
	require.NoError(t, validate(&cfg))
}

func TestLoadYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "test.yaml")

	content := `
server:
  port: "9090"
host:
  kind: nats
nats:
  url: "nats://bus:4222"
relay:
  send_timeout: 15s
logging:
  level: "debug"
`
	require.NoError(t, os.WriteFile(yamlPath, []byte(content), 0o644))

	cfg := Defaults()
	require.NoError(t, loadYAML(&cfg, yamlPath))

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, HostNATS, cfg.Host.Kind)
	assert.Equal(t, "nats://bus:4222", cfg.NATS.URL)
	assert.Equal(t, 15*time.Second, cfg.Relay.SendTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Unchanged fields keep defaults
	assert.Equal(t, "simpledigital-relay", cfg.NATS.Durable)
	assert.Equal(t, "/ws", cfg.Bridge.Path)
}

func TestLoadYAMLMissing(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, loadYAML(&cfg, "/nonexistent/path.yaml"))
}

func TestLoadYAMLInvalid(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("server: [unclosed"), 0o644))

	cfg := Defaults()
	assert.Error(t, loadYAML(&cfg, yamlPath))
}

func TestEnvOverride(t *testing.T) {
	cfg := Defaults()

	t.Setenv("SIMPLEDIGITAL_PORT", "7070")
	t.Setenv("SIMPLEDIGITAL_HOST", "nats")
	t.Setenv("SIMPLEDIGITAL_QUEUE_SIZE", "4")
	t.Setenv("NATS_URL", "nats://test:4222")
	t.Setenv("SIMPLEDIGITAL_LOG_LEVEL", "warn")
	t.Setenv("SIMPLEDIGITAL_SEND_TIMEOUT", "1m")
	t.Setenv("SIMPLEDIGITAL_OTEL_INSECURE", "false")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("SIMPLEDIGITAL_BRIDGE_RATE_LIMIT", "0.5")
	t.Setenv("SIMPLEDIGITAL_BRIDGE_RATE_BURST", "2")
	t.Setenv("SIMPLEDIGITAL_BRIDGE_ORIGIN_PATTERNS", "config.example.com, ,*.msl.re")
	t.Setenv("SIMPLEDIGITAL_BRIDGE_READ_LIMIT", "131072")

	loadEnv(&cfg)

	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, HostNATS, cfg.Host.Kind)
	assert.Equal(t, 4, cfg.Host.QueueSize)
	assert.Equal(t, "nats://test:4222", cfg.NATS.URL)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, time.Minute, cfg.Relay.SendTimeout)
	assert.False(t, cfg.Telemetry.Insecure)
	assert.Equal(t, "collector:4317", cfg.Telemetry.Endpoint)
	assert.InDelta(t, 0.5, cfg.Bridge.RateLimit, 1e-9)
	assert.Equal(t, 2, cfg.Bridge.RateBurst)
	assert.Equal(t, []string{"config.example.com", "*.msl.re"}, cfg.Bridge.OriginPatterns)
	assert.Equal(t, 131072, cfg.Bridge.ReadLimit)
}

func TestEnvOverrideIgnoresGarbage(t *testing.T) {
	cfg := Defaults()

	t.Setenv("SIMPLEDIGITAL_QUEUE_SIZE", "many")
	t.Setenv("SIMPLEDIGITAL_SEND_TIMEOUT", "soon")

	loadEnv(&cfg)

	assert.Equal(t, 16, cfg.Host.QueueSize)
	assert.Zero(t, cfg.Relay.SendTimeout)
}

func TestValidateRequired(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{
			name:   "empty port",
			modify: func(c *Config) { c.Server.Port = "" },
			errMsg: "server.port is required",
		},
		{
			name:   "unknown host",
			modify: func(c *Config) { c.Host.Kind = "bluetooth" },
			errMsg: `host.kind must be "ws" or "nats"`,
		},
		{
			name:   "relative bridge path",
			modify: func(c *Config) { c.Bridge.Path = "ws" },
			errMsg: "bridge.path must start with /",
		},
		{
			name:   "negative rate limit",
			modify: func(c *Config) { c.Bridge.RateLimit = -1 },
			errMsg: "bridge.rate_limit must be >= 0",
		},
		{
			name:   "rate limit without burst",
			modify: func(c *Config) { c.Bridge.RateBurst = 0 },
			errMsg: "bridge.rate_burst must be >= 1",
		},
		{
			name:   "zero read limit",
			modify: func(c *Config) { c.Bridge.ReadLimit = 0 },
			errMsg: "bridge.read_limit must be >= 1",
		},
		{
			name: "nats without url",
			modify: func(c *Config) {
				c.Host.Kind = HostNATS
				c.NATS.URL = ""
			},
			errMsg: "nats.url is required",
		},
		{
			name: "nats without durable",
			modify: func(c *Config) {
				c.Host.Kind = HostNATS
				c.NATS.Durable = ""
			},
			errMsg: "nats.durable is required",
		},
		{
			name:   "zero queue",
			modify: func(c *Config) { c.Host.QueueSize = 0 },
			errMsg: "host.queue_size must be >= 1",
		},
		{
			name:   "negative send timeout",
			modify: func(c *Config) { c.Relay.SendTimeout = -time.Second },
			errMsg: "relay.send_timeout must be >= 0",
		},
		{
			name: "telemetry without interval",
			modify: func(c *Config) {
				c.Telemetry.Endpoint = "collector:4317"
				c.Telemetry.MetricInterval = 0
			},
			errMsg: "telemetry.metric_interval must be > 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(&cfg)
			assert.EqualError(t, validate(&cfg), tt.errMsg)
		})
	}
}

func TestLoadFrom(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "simpledigital.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("server:\n  port: \"9000\"\n"), 0o644))

	t.Setenv("SIMPLEDIGITAL_PORT", "9100")

	cfg, err := LoadFrom(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "9100", cfg.Server.Port, "env wins over yaml")
}

func TestLoadFromInvalid(t *testing.T) {
	t.Setenv("SIMPLEDIGITAL_HOST", "carrier-pigeon")

	_, err := LoadFrom("/nonexistent/path.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config validate")
}
