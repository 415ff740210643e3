// Package config provides hierarchical configuration loading for the
// companion relay.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Host kinds.
const (
	HostWebSocket = "ws"
	HostNATS      = "nats"
)

// Config holds all runtime configuration for the relay service.
type Config struct {
	Server    Server    `yaml:"server"`
	Host      Host      `yaml:"host"`
	Bridge    Bridge    `yaml:"bridge"`
	NATS      NATS      `yaml:"nats"`
	Relay     Relay     `yaml:"relay"`
	Logging   Logging   `yaml:"logging"`
	Telemetry Telemetry `yaml:"telemetry"`
}

// Server holds HTTP server configuration.
type Server struct {
	Port            string        `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Host selects the companion host adapter.
type Host struct {
	Kind      string `yaml:"kind"`       // "ws" | "nats" (default: "ws")
	QueueSize int    `yaml:"queue_size"` // Pending lifecycle events before drops (default: 16)
}

// Bridge holds WebSocket phone bridge configuration.
// OriginPatterns lists browser origins allowed besides the relay's own host;
// native bridges send no Origin header and are not affected.
type Bridge struct {
	Path           string        `yaml:"path"`
	TokenHash      string        `yaml:"token_hash"` // bcrypt hash; empty disables auth
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RateLimit      float64       `yaml:"rate_limit"` // Upgrade attempts per second per IP; 0 disables
	RateBurst      int           `yaml:"rate_burst"`
	OriginPatterns []string      `yaml:"origin_patterns"`
	ReadLimit      int           `yaml:"read_limit"` // Max inbound frame size in bytes
}

// NATS holds NATS JetStream configuration.
type NATS struct {
	URL     string `yaml:"url"`
	Durable string `yaml:"durable"`
}

// Relay holds configuration relay behaviour.
type Relay struct {
	SendTimeout time.Duration `yaml:"send_timeout"` // 0 waits for the host indefinitely
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
	Format  string `yaml:"format"` // "json" | "text" | "auto"
}

// Telemetry holds OpenTelemetry export configuration.
type Telemetry struct {
	Endpoint       string        `yaml:"endpoint"` // OTLP gRPC endpoint; empty disables export
	Insecure       bool          `yaml:"insecure"`
	MetricInterval time.Duration `yaml:"metric_interval"`
}

// Defaults returns a Config with sensible default values for local development.
func Defaults() Config {
	return Config{
		Server: Server{
			Port:            "8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Host: Host{
			Kind:      HostWebSocket,
			QueueSize: 16,
		},
		Bridge: Bridge{
			Path:         "/ws",
			WriteTimeout: 5 * time.Second,
			RateLimit:    1,
			RateBurst:    5,
			ReadLimit:    64 << 10,
		},
		NATS: NATS{
			URL:     "nats://localhost:4222",
			Durable: "simpledigital-relay",
		},
		Logging: Logging{
			Level:   "info",
			Service: "simpledigital-relay",
			Format:  "json",
		},
		Telemetry: Telemetry{
			Insecure:       true,
			MetricInterval: 30 * time.Second,
		},
	}
}
