// Package telemetry sets up OpenTelemetry tracing for one contributions run.
// Finished spans are written to the run's zap logger.
package telemetry

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// TraceMode selects which spans a run records.
type TraceMode string

const (
	// ModeOff records nothing.
	ModeOff TraceMode = "off"
	// ModeErrors records every span but only logs the failed ones.
	ModeErrors TraceMode = "errors"
	// ModeSampled records a ratio of user collections.
	ModeSampled TraceMode = "sampled"
	// ModeDetailed records everything, including one span per GitHub request.
	ModeDetailed TraceMode = "detailed"
)

// DefaultServiceName is the service.name resource attribute when none is configured.
const DefaultServiceName = "oss-contributions"

// RunIDKey carries the run id shared with the run's log entries.
const RunIDKey = attribute.Key("oss_contributions.run_id")

const instrumentationPrefix = "github.com/cam3ron2/oss-contributions/internal/"

var detailed atomic.Bool

// ParseTraceMode normalizes raw and reports whether it names a trace mode.
func ParseTraceMode(raw string) (TraceMode, bool) {
	mode := TraceMode(strings.ToLower(strings.TrimSpace(raw)))
	switch mode {
	case ModeOff, ModeErrors, ModeSampled, ModeDetailed:
		return mode, true
	default:
		return "", false
	}
}

// ValidTraceMode reports whether raw is one of the accepted trace modes.
func ValidTraceMode(raw string) bool {
	_, ok := ParseTraceMode(raw)
	return ok
}

// Tracer returns the global tracer for an internal package, e.g. "githubapi".
func Tracer(component string) trace.Tracer {
	return otel.Tracer(instrumentationPrefix + component)
}

// DetailedTracing reports whether per-request GitHub spans should be emitted.
func DetailedTracing() bool {
	return detailed.Load()
}

// Config configures tracing for one run.
type Config struct {
	Enabled          bool
	ServiceName      string
	RunID            string
	TraceMode        string
	TraceSampleRatio float64
	// SpanLogger receives finished spans at debug level. Nil discards them.
	SpanLogger *zap.Logger
}

// Runtime owns the run's tracer provider.
type Runtime struct {
	provider *sdktrace.TracerProvider
}

// Setup installs a global tracer provider for the run. Disabled tracing, or an
// unknown mode, never fails: the former records nothing and the latter samples.
func Setup(cfg Config) (*Runtime, error) {
	mode := ModeOff
	if cfg.Enabled {
		parsed, ok := ParseTraceMode(cfg.TraceMode)
		if !ok {
			parsed = ModeSampled
		}
		mode = parsed
	}
	detailed.Store(mode == ModeDetailed)

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = DefaultServiceName
	}
	attrs := []attribute.KeyValue{semconv.ServiceNameKey.String(serviceName)}
	if cfg.RunID != "" {
		attrs = append(attrs, RunIDKey.String(cfg.RunID))
	}
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(attrs...))
	if err != nil {
		return nil, fmt.Errorf("build trace resource: %w", err)
	}

	options := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(samplerFor(mode, cfg.TraceSampleRatio)),
		sdktrace.WithResource(res),
	}
	if mode != ModeOff && cfg.SpanLogger != nil {
		exporter := NewLogExporter(cfg.SpanLogger)
		exporter.ErrorsOnly = mode == ModeErrors
		options = append(options, sdktrace.WithSyncer(exporter))
	}

	provider := sdktrace.NewTracerProvider(options...)
	otel.SetTracerProvider(provider)
	return &Runtime{provider: provider}, nil
}

// Tracer returns the run's tracer for an internal package.
func (r *Runtime) Tracer(component string) trace.Tracer {
	return r.provider.Tracer(instrumentationPrefix + component)
}

// Shutdown flushes pending spans and stops the provider.
func (r *Runtime) Shutdown(ctx context.Context) error {
	if err := r.provider.ForceFlush(ctx); err != nil {
		return fmt.Errorf("flush spans: %w", err)
	}
	return r.provider.Shutdown(ctx)
}

func samplerFor(mode TraceMode, ratio float64) sdktrace.Sampler {
	switch mode {
	case ModeOff:
		return sdktrace.NeverSample()
	case ModeDetailed, ModeErrors:
		return sdktrace.AlwaysSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(clampRatio(ratio)))
	}
}

func clampRatio(ratio float64) float64 {
	if ratio < 0 {
		return 0
	}
	if ratio > 1 {
		return 1
	}
	return ratio
}
