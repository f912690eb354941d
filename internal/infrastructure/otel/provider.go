package otel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Config controls OTLP log export.
type Config struct {
	Enabled        bool
	Endpoint       string
	ServiceName    string
	ServiceVersion string
	Environment    string
	Insecure       bool
	UseHTTP        bool
	Headers        map[string]string
	ExportTimeout  time.Duration
}

// Provider owns the OTLP log pipeline and the tracer provider whose span IDs
// are stamped on log lines by logger.WithContext.
type Provider struct {
	cfg    Config
	logs   *sdklog.LoggerProvider
	traces *sdktrace.TracerProvider
	logger log.Logger
}

// NewProvider builds the export pipeline. It returns an error when export is
// disabled so callers can fall back to console-only logging.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return nil, errors.New("otel export is disabled")
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		attribute.String("environment", cfg.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create otel resource: %w", err)
	}

	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
	}

	var batchOpts []sdklog.BatchProcessorOption
	if cfg.ExportTimeout > 0 {
		batchOpts = append(batchOpts, sdklog.WithExportTimeout(cfg.ExportTimeout))
	}

	logs := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter, batchOpts...)),
	)
	traces := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(traces)

	return &Provider{
		cfg:    cfg,
		logs:   logs,
		traces: traces,
		logger: logs.Logger(cfg.ServiceName),
	}, nil
}

func newExporter(ctx context.Context, cfg Config) (sdklog.Exporter, error) {
	if cfg.UseHTTP {
		opts := []otlploghttp.Option{otlploghttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlploghttp.WithInsecure())
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlploghttp.WithHeaders(cfg.Headers))
		}
		return otlploghttp.New(ctx, opts...)
	}

	if !cfg.Insecure {
		return otlploggrpc.New(ctx, otlploggrpc.WithEndpoint(cfg.Endpoint), otlploggrpc.WithHeaders(cfg.Headers))
	}
	conn, err := grpc.NewClient(cfg.Endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to dial collector: %w", err)
	}
	return otlploggrpc.New(ctx, otlploggrpc.WithGRPCConn(conn))
}

// ForceFlush pushes pending records to the collector
func (p *Provider) ForceFlush(ctx context.Context) error {
	return p.logs.ForceFlush(ctx)
}

// Close shuts both providers down. It satisfies io.Closer so the logger can own it.
func (p *Provider) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return errors.Join(p.traces.Shutdown(ctx), p.logs.Shutdown(ctx))
}
