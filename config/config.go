package config

import (
	"time"

	"github.com/jonwraymond/agenthealth/health"
)

// Rate sources.
const (
	SourceLocal      = "local"
	SourcePrometheus = "prometheus"
)

// Config is the complete process configuration.
type Config struct {
	Admin   AdminConfig   `yaml:"admin"`
	Rate    RateConfig    `yaml:"rate"`
	Watch   WatchConfig   `yaml:"watch"`
	Observe ObserveConfig `yaml:"observe"`
}

// AdminConfig configures the admin HTTP server serving health probes.
type AdminConfig struct {
	Listen          string        `yaml:"listen"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	Auth            AuthConfig    `yaml:"auth"`
}

// AuthConfig guards the supervisor event endpoint. Probes are never
// authenticated. With nothing configured the endpoint is open.
type AuthConfig struct {
	// APIKeys maps a principal to the SHA-256 hex digest of its key.
	APIKeys map[string]string `yaml:"api_keys"`
	JWT     JWTConfig         `yaml:"jwt"`
}

// JWTConfig configures HMAC bearer token validation.
type JWTConfig struct {
	Secret   string `yaml:"secret"`
	Issuer   string `yaml:"issuer"`
	Audience string `yaml:"audience"`
}

// Enabled reports whether any authenticator is configured.
func (a AuthConfig) Enabled() bool {
	return len(a.APIKeys) > 0 || a.JWT.Secret != ""
}

// RateConfig configures the docker rate checker.
type RateConfig struct {
	LowWatermark  float64       `yaml:"low_watermark"`
	HighWatermark float64       `yaml:"high_watermark"`
	Interval      time.Duration `yaml:"interval"`

	// Source selects where rates come from: local or prometheus.
	Source     string           `yaml:"source"`
	Prometheus PrometheusConfig `yaml:"prometheus"`
}

// PrometheusConfig configures the remote rate source.
type PrometheusConfig struct {
	URL             string        `yaml:"url"`
	Refresh         time.Duration `yaml:"refresh"`
	Timeout         time.Duration `yaml:"timeout"`
	TimeoutsQuery   string        `yaml:"timeouts_query"`
	ExceptionsQuery string        `yaml:"exceptions_query"`
	RunsQuery       string        `yaml:"runs_query"`
}

// WatchConfig configures the coordination store connectivity checker.
type WatchConfig struct {
	Enabled bool        `yaml:"enabled"`
	Path    string      `yaml:"path"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig configures the Redis connection backing the watch.
type RedisConfig struct {
	Addr                   string        `yaml:"addr"`
	DB                     int           `yaml:"db"`
	Password               string        `yaml:"password"`
	PingInterval           time.Duration `yaml:"ping_interval"`
	LostAfter              int           `yaml:"lost_after"`
	ConfigureNotifications bool          `yaml:"configure_notifications"`
}

// ObserveConfig configures logging, tracing and metrics export.
type ObserveConfig struct {
	ServiceName string        `yaml:"service_name"`
	Host        string        `yaml:"host"` // host.name resource attribute; default hostname
	LogLevel    string        `yaml:"log_level"`
	Tracing     TracingConfig `yaml:"tracing"`
	Metrics     MetricsConfig `yaml:"metrics"`
}

// TracingConfig configures span export.
type TracingConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Exporter  string  `yaml:"exporter"`
	SamplePct float64 `yaml:"sample_pct"`
}

// MetricsConfig configures metric export.
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Admin: AdminConfig{
			Listen:          ":5804",
			ShutdownTimeout: 10 * time.Second,
		},
		Rate: RateConfig{
			LowWatermark:  health.DefaultLowWatermark,
			HighWatermark: health.DefaultHighWatermark,
			Interval:      30 * time.Second,
			Source:        SourceLocal,
			Prometheus: PrometheusConfig{
				Refresh: 15 * time.Second,
				Timeout: 5 * time.Second,
			},
		},
		Watch: WatchConfig{
			Enabled: true,
			Path:    "/status/hosts",
			Redis: RedisConfig{
				Addr:         "localhost:6379",
				PingInterval: 5 * time.Second,
				LostAfter:    3,
			},
		},
		Observe: ObserveConfig{
			ServiceName: "agenthealth",
			LogLevel:    "info",
			Tracing: TracingConfig{
				Exporter:  "stdout",
				SamplePct: 1.0,
			},
			Metrics: MetricsConfig{
				Enabled:  true,
				Exporter: "prometheus",
			},
		},
	}
}

// ApplyDefaults fills empty fields from Default. Booleans and the
// watermarks, where zero is meaningful, are left alone unless both
// watermarks are zero.
func (c *Config) ApplyDefaults() {
	d := Default()

	if c.Admin.Listen == "" {
		c.Admin.Listen = d.Admin.Listen
	}
	if c.Admin.ShutdownTimeout == 0 {
		c.Admin.ShutdownTimeout = d.Admin.ShutdownTimeout
	}

	if c.Rate.LowWatermark == 0 && c.Rate.HighWatermark == 0 {
		c.Rate.LowWatermark = d.Rate.LowWatermark
		c.Rate.HighWatermark = d.Rate.HighWatermark
	}
	if c.Rate.Interval == 0 {
		c.Rate.Interval = d.Rate.Interval
	}
	if c.Rate.Source == "" {
		c.Rate.Source = d.Rate.Source
	}
	if c.Rate.Prometheus.Refresh == 0 {
		c.Rate.Prometheus.Refresh = d.Rate.Prometheus.Refresh
	}
	if c.Rate.Prometheus.Timeout == 0 {
		c.Rate.Prometheus.Timeout = d.Rate.Prometheus.Timeout
	}

	if c.Watch.Path == "" {
		c.Watch.Path = d.Watch.Path
	}
	if c.Watch.Redis.Addr == "" {
		c.Watch.Redis.Addr = d.Watch.Redis.Addr
	}
	if c.Watch.Redis.PingInterval == 0 {
		c.Watch.Redis.PingInterval = d.Watch.Redis.PingInterval
	}
	if c.Watch.Redis.LostAfter == 0 {
		c.Watch.Redis.LostAfter = d.Watch.Redis.LostAfter
	}

	if c.Observe.ServiceName == "" {
		c.Observe.ServiceName = d.Observe.ServiceName
	}
	if c.Observe.LogLevel == "" {
		c.Observe.LogLevel = d.Observe.LogLevel
	}
	if c.Observe.Tracing.Exporter == "" {
		c.Observe.Tracing.Exporter = d.Observe.Tracing.Exporter
	}
	if c.Observe.Metrics.Exporter == "" {
		c.Observe.Metrics.Exporter = d.Observe.Metrics.Exporter
	}
}
