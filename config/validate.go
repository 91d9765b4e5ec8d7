package config

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/jonwraymond/agenthealth/observe"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid configuration")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...)
}

// Validate checks the configuration without modifying it. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.Admin.Listen == "" {
		errs = append(errs, invalid("admin.listen is required"))
	}
	if c.Admin.ShutdownTimeout < 0 {
		errs = append(errs, invalid("admin.shutdown_timeout must not be negative"))
	}
	for principal, hash := range c.Admin.Auth.APIKeys {
		if b, err := hex.DecodeString(hash); err != nil || len(b) != 32 {
			errs = append(errs, invalid("admin.auth.api_keys[%s] must be a sha256 hex digest", principal))
		}
	}
	if c.Admin.Auth.JWT.Secret == "" && (c.Admin.Auth.JWT.Issuer != "" || c.Admin.Auth.JWT.Audience != "") {
		errs = append(errs, invalid("admin.auth.jwt.secret is required when issuer or audience is set"))
	}

	low, high := c.Rate.LowWatermark, c.Rate.HighWatermark
	if low < 0 || low >= high || high > 1 {
		errs = append(errs, invalid("rate watermarks must satisfy 0 <= low < high <= 1, got low=%v high=%v", low, high))
	}
	if c.Rate.Interval <= 0 {
		errs = append(errs, invalid("rate.interval must be positive"))
	}
	switch c.Rate.Source {
	case SourceLocal:
	case SourcePrometheus:
		p := c.Rate.Prometheus
		if p.URL == "" {
			errs = append(errs, invalid("rate.prometheus.url is required when rate.source is prometheus"))
		}
		if p.Refresh <= 0 || p.Timeout <= 0 {
			errs = append(errs, invalid("rate.prometheus refresh and timeout must be positive"))
		}
	default:
		errs = append(errs, invalid("rate.source must be %q or %q, got %q", SourceLocal, SourcePrometheus, c.Rate.Source))
	}

	if c.Watch.Enabled {
		if c.Watch.Path == "" || c.Watch.Path[0] != '/' {
			errs = append(errs, invalid("watch.path must be absolute, got %q", c.Watch.Path))
		}
		r := c.Watch.Redis
		if r.Addr == "" {
			errs = append(errs, invalid("watch.redis.addr is required"))
		}
		if r.DB < 0 {
			errs = append(errs, invalid("watch.redis.db must not be negative"))
		}
		if r.PingInterval <= 0 {
			errs = append(errs, invalid("watch.redis.ping_interval must be positive"))
		}
		if r.LostAfter < 1 {
			errs = append(errs, invalid("watch.redis.lost_after must be at least 1"))
		}
	}

	oc := c.ObserverConfig("")
	if err := oc.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalid, err))
	}

	return errors.Join(errs...)
}

// ObserverConfig converts the observe section for observe.NewObserver.
func (c *Config) ObserverConfig(version string) observe.Config {
	return observe.Config{
		ServiceName: c.Observe.ServiceName,
		Version:     version,
		Host:        c.Observe.Host,
		Tracing: observe.TracingConfig{
			Enabled:   c.Observe.Tracing.Enabled,
			Exporter:  c.Observe.Tracing.Exporter,
			SamplePct: c.Observe.Tracing.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  c.Observe.Metrics.Enabled,
			Exporter: c.Observe.Metrics.Exporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   c.Observe.LogLevel,
		},
	}
}
