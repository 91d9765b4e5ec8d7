// Package exporters builds the OpenTelemetry exporters selected by name in
// the observe configuration.
package exporters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Exporter errors.
var (
	ErrUnknownExporter = errors.New("exporters: unknown exporter")
	ErrNoEndpoint      = errors.New("exporters: endpoint not configured")
)

// Options tune exporter construction.
type Options struct {
	// Writer receives stdout exporter output. Default os.Stdout.
	Writer io.Writer

	// Registerer receives the prometheus collector. Default
	// prometheus.DefaultRegisterer.
	Registerer promclient.Registerer
}

func (o Options) writer(name string) io.Writer {
	switch {
	case name == "none" || name == "":
		return io.Discard
	case o.Writer != nil:
		return o.Writer
	default:
		return os.Stdout
	}
}

// requireEnv fails unless one of keys is set. The otlp exporters read their
// endpoint from the standard OTEL_EXPORTER_OTLP_* variables.
func requireEnv(keys ...string) error {
	for _, k := range keys {
		if os.Getenv(k) != "" {
			return nil
		}
	}
	return fmt.Errorf("%w: set one of %v", ErrNoEndpoint, keys)
}

// NewTracingExporter returns the span exporter for name: stdout, otlp, jaeger
// or none. Jaeger is reached over OTLP.
func NewTracingExporter(ctx context.Context, name string, opts Options) (sdktrace.SpanExporter, error) {
	switch name {
	case "stdout", "none", "":
		return stdouttrace.New(stdouttrace.WithWriter(opts.writer(name)))
	case "otlp":
		if err := requireEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"); err != nil {
			return nil, err
		}
		return otlptracegrpc.New(ctx)
	case "jaeger":
		if err := requireEnv("OTEL_EXPORTER_JAEGER_ENDPOINT"); err != nil {
			return nil, err
		}
		return otlptracegrpc.New(ctx, otlptracegrpc.WithEndpointURL(os.Getenv("OTEL_EXPORTER_JAEGER_ENDPOINT")))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownExporter, name)
	}
}

// NewMetricsReader returns the metric reader for name: stdout, otlp,
// prometheus or none. The prometheus reader is pull based; serve its
// registry with promhttp.
func NewMetricsReader(ctx context.Context, name string, opts Options) (sdkmetric.Reader, error) {
	var (
		exp sdkmetric.Exporter
		err error
	)
	switch name {
	case "stdout", "none", "":
		exp, err = stdoutmetric.New(stdoutmetric.WithWriter(opts.writer(name)))
	case "otlp":
		if err := requireEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"); err != nil {
			return nil, err
		}
		exp, err = otlpmetricgrpc.New(ctx)
	case "prometheus":
		var promOpts []prometheus.Option
		if opts.Registerer != nil {
			promOpts = append(promOpts, prometheus.WithRegisterer(opts.Registerer))
		}
		reader, err := prometheus.New(promOpts...)
		if err != nil {
			return nil, fmt.Errorf("prometheus exporter: %w", err)
		}
		return reader, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownExporter, name)
	}
	if err != nil {
		return nil, fmt.Errorf("%s exporter: %w", name, err)
	}
	return sdkmetric.NewPeriodicReader(exp), nil
}
