package observe

import (
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
)

// Config holds all configuration for the Observer.
type Config struct {
	ServiceName string
	Version     string

	// Host is recorded as host.name on every span and metric. Empty uses
	// the machine hostname.
	Host string

	Tracing TracingConfig
	Metrics MetricsConfig
	Logging LoggingConfig
}

// TracingConfig configures span export.
type TracingConfig struct {
	Enabled   bool
	Exporter  string  // otlp|jaeger|stdout|none
	SamplePct float64 // 0.0-1.0
}

// MetricsConfig configures metric export.
type MetricsConfig struct {
	Enabled  bool
	Exporter string // otlp|prometheus|stdout|none

	// Registerer receives the prometheus exporter's collector. Nil uses
	// prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Enabled bool
	Level   string // debug|info|warn|error

	// Output defaults to os.Stderr.
	Output io.Writer
}

var (
	tracingExporters = set("otlp", "jaeger", "stdout", "none", "")
	metricsExporters = set("otlp", "prometheus", "stdout", "none", "")
	logLevels        = set("debug", "info", "warn", "error", "")
)

func set(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// Validate checks the configuration. Settings of disabled subsystems are not
// checked. Every problem is reported.
func (c *Config) Validate() error {
	var errs []error

	if c.ServiceName == "" {
		errs = append(errs, ErrMissingServiceName)
	}

	if c.Tracing.Enabled {
		if !tracingExporters[c.Tracing.Exporter] {
			errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidTracingExporter, c.Tracing.Exporter))
		}
		if c.Tracing.SamplePct < 0 || c.Tracing.SamplePct > 1 {
			errs = append(errs, fmt.Errorf("%w, got %v", ErrInvalidSamplePct, c.Tracing.SamplePct))
		}
	}

	if c.Metrics.Enabled && !metricsExporters[c.Metrics.Exporter] {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidMetricsExporter, c.Metrics.Exporter))
	}

	if c.Logging.Enabled && !logLevels[c.Logging.Level] {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level))
	}

	return errors.Join(errs...)
}
