package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "simpledigital.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "SIMPLEDIGITAL_PORT")
	setDuration(&cfg.Server.ShutdownTimeout, "SIMPLEDIGITAL_SHUTDOWN_TIMEOUT")

	setString(&cfg.Host.Kind, "SIMPLEDIGITAL_HOST")
	setInt(&cfg.Host.QueueSize, "SIMPLEDIGITAL_QUEUE_SIZE")

	setString(&cfg.Bridge.Path, "SIMPLEDIGITAL_BRIDGE_PATH")
	setString(&cfg.Bridge.TokenHash, "SIMPLEDIGITAL_BRIDGE_TOKEN_HASH")
	setDuration(&cfg.Bridge.WriteTimeout, "SIMPLEDIGITAL_BRIDGE_WRITE_TIMEOUT")
	setFloat(&cfg.Bridge.RateLimit, "SIMPLEDIGITAL_BRIDGE_RATE_LIMIT")
	setInt(&cfg.Bridge.RateBurst, "SIMPLEDIGITAL_BRIDGE_RATE_BURST")
	setList(&cfg.Bridge.OriginPatterns, "SIMPLEDIGITAL_BRIDGE_ORIGIN_PATTERNS")
	setInt(&cfg.Bridge.ReadLimit, "SIMPLEDIGITAL_BRIDGE_READ_LIMIT")

	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.NATS.Durable, "SIMPLEDIGITAL_NATS_DURABLE")

	setDuration(&cfg.Relay.SendTimeout, "SIMPLEDIGITAL_SEND_TIMEOUT")

	setString(&cfg.Logging.Level, "SIMPLEDIGITAL_LOG_LEVEL")
	setString(&cfg.Logging.Service, "SIMPLEDIGITAL_LOG_SERVICE")
	setString(&cfg.Logging.Format, "SIMPLEDIGITAL_LOG_FORMAT")

	setString(&cfg.Telemetry.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setBool(&cfg.Telemetry.Insecure, "SIMPLEDIGITAL_OTEL_INSECURE")
	setDuration(&cfg.Telemetry.MetricInterval, "SIMPLEDIGITAL_OTEL_METRIC_INTERVAL")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	switch cfg.Host.Kind {
	case HostWebSocket:
		if !strings.HasPrefix(cfg.Bridge.Path, "/") {
			return errors.New("bridge.path must start with /")
		}
		if cfg.Bridge.RateLimit < 0 {
			return errors.New("bridge.rate_limit must be >= 0")
		}
		if cfg.Bridge.RateLimit > 0 && cfg.Bridge.RateBurst < 1 {
			return errors.New("bridge.rate_burst must be >= 1")
		}
		if cfg.Bridge.ReadLimit < 1 {
			return errors.New("bridge.read_limit must be >= 1")
		}
	case HostNATS:
		if cfg.NATS.URL == "" {
			return errors.New("nats.url is required")
		}
		if cfg.NATS.Durable == "" {
			return errors.New("nats.durable is required")
		}
	default:
		return fmt.Errorf("host.kind must be %q or %q", HostWebSocket, HostNATS)
	}
	if cfg.Host.QueueSize < 1 {
		return errors.New("host.queue_size must be >= 1")
	}
	if cfg.Relay.SendTimeout < 0 {
		return errors.New("relay.send_timeout must be >= 0")
	}
	if cfg.Telemetry.Endpoint != "" && cfg.Telemetry.MetricInterval <= 0 {
		return errors.New("telemetry.metric_interval must be > 0")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// setList splits a comma-separated value, dropping empty entries.
func setList(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
