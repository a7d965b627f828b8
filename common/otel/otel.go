package otel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"minicrm.app/pipeline/core/config"
)

const (
	serviceNamespace = "minicrm"

	attrRole    = attribute.Key("minicrm.pipeline.role")
	attrStreams = attribute.Key("minicrm.pipeline.streams")
)

// Telemetry owns the installed providers. Shutdown flushes them in reverse
// order of installation.
type Telemetry struct {
	shutdowns []func(context.Context) error
}

func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	for i := len(t.shutdowns) - 1; i >= 0; i-- {
		if err := t.shutdowns[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Setup exports pipeline traces and logs over OTLP/HTTP. Without an endpoint
// it installs nothing and returns nil.
func Setup(ctx context.Context, cfg config.Config, role config.ServiceType) (*Telemetry, error) {
	if !cfg.OTel.Enabled() {
		return nil, nil
	}

	res, err := resource.Merge(resource.Default(), PipelineResource(cfg, role))
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}
	headers := ParseHeaders(cfg.OTel.Headers)

	t := &Telemetry{}

	tp, err := newTracerProvider(ctx, cfg.OTel, headers, res)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	t.shutdowns = append(t.shutdowns, func(ctx context.Context) error {
		if err := tp.Shutdown(ctx); err != nil {
			return fmt.Errorf("tracer shutdown: %w", err)
		}
		return nil
	})

	lp, err := newLoggerProvider(ctx, cfg.OTel, headers, res)
	if err != nil {
		_ = t.Shutdown(ctx)
		return nil, err
	}
	global.SetLoggerProvider(lp)
	t.shutdowns = append(t.shutdowns, func(ctx context.Context) error {
		if err := lp.Shutdown(ctx); err != nil {
			return fmt.Errorf("logger shutdown: %w", err)
		}
		return nil
	})

	return t, nil
}

// PipelineResource describes one pipeline process: which role it plays, which
// deployment it belongs to and, for workers, which streams it consumes.
func PipelineResource(cfg config.Config, role config.ServiceType) *resource.Resource {
	attrs := []attribute.KeyValue{
		semconv.ServiceNamespace(serviceNamespace),
		semconv.ServiceName(cfg.OTel.ServiceName + "-" + string(role)),
		semconv.ServiceVersion(cfg.OTel.ServiceVersion),
		semconv.ServiceInstanceID(instanceID(cfg)),
		semconv.DeploymentEnvironment(cfg.Env),
		attrRole.String(string(role)),
	}
	if role == config.ServiceTypeWorker {
		streams := make([]string, 0, 4)
		for _, s := range cfg.Streams.All() {
			streams = append(streams, s.Stream)
		}
		attrs = append(attrs, attrStreams.StringSlice(streams))
	}
	return resource.NewWithAttributes(semconv.SchemaURL, attrs...)
}

// instanceID prefers the configured consumer name, which already identifies
// this process within every consumer group.
func instanceID(cfg config.Config) string {
	if cfg.Redis.ConsumerName != "" {
		return cfg.Redis.ConsumerName
	}
	if host, err := os.Hostname(); err == nil {
		return host
	}
	return "unknown"
}

func newTracerProvider(ctx context.Context, cfg config.OTelConfig, headers map[string]string, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(strings.TrimSuffix(cfg.Endpoint, "/")+"/v1/traces"),
		otlptracehttp.WithHeaders(headers),
	)
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	), nil
}

func newLoggerProvider(ctx context.Context, cfg config.OTelConfig, headers map[string]string, res *resource.Resource) (*sdklog.LoggerProvider, error) {
	exporter, err := otlploghttp.New(ctx,
		otlploghttp.WithEndpointURL(strings.TrimSuffix(cfg.Endpoint, "/")+"/v1/logs"),
		otlploghttp.WithHeaders(headers),
	)
	if err != nil {
		return nil, fmt.Errorf("creating log exporter: %w", err)
	}
	return sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
		sdklog.WithResource(res),
	), nil
}

// ParseHeaders reads OTEL_EXPORTER_OTLP_HEADERS ("k1=v1,k2=v2"). Pairs
// without a key are dropped.
func ParseHeaders(s string) map[string]string {
	headers := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			continue
		}
		headers[k] = strings.TrimSpace(v)
	}
	return headers
}
