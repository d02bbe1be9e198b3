// Package telemetry 初始化 OpenTelemetry 链路追踪（sdk TracerProvider + OTLP 导出）
package telemetry

import (
	"context"
	"errors"
	"time"

	"GomafiaSync/internal/config"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

type Telemetry struct {
	TracerProvider *trace.TracerProvider
	Exporting      bool // 是否配置了 OTLP 导出
}

// Shutdown 刷出未导出的 span 并关闭 provider
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil || t.TracerProvider == nil {
		return nil
	}
	return errors.Join(t.TracerProvider.ForceFlush(ctx), t.TracerProvider.Shutdown(ctx))
}

// Setup 创建 provider 并设为全局，服务启动时调用一次
func Setup(ctx context.Context, cfg config.TelemetryConfig, logger *logrus.Logger) (*Telemetry, error) {
	tel, err := New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(tel.TracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	logger.WithFields(logrus.Fields{
		"service":   cfg.ServiceName,
		"exporting": tel.Exporting,
	}).Info("链路追踪已初始化")
	return tel, nil
}

// New 只创建 provider，不动全局状态
func New(ctx context.Context, cfg config.TelemetryConfig) (*Telemetry, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	r, err := newResource(cfg.ServiceName)
	if err != nil {
		return nil, err
	}

	opts := []trace.TracerProviderOption{
		trace.WithResource(r),
		trace.WithSampler(trace.ParentBased(trace.TraceIDRatioBased(cfg.SampleRatio))),
	}
	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if exporter != nil {
		opts = append(opts, trace.WithBatcher(exporter))
	}
	return &Telemetry{
		TracerProvider: trace.NewTracerProvider(opts...),
		Exporting:      exporter != nil,
	}, nil
}

func newResource(serviceName string) (*resource.Resource, error) {
	if serviceName == "" {
		serviceName = "gomafia-sync"
	}
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
}

// newExporter gRPC 优先；都未配置时返回 nil
func newExporter(ctx context.Context, cfg config.TelemetryConfig) (trace.SpanExporter, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	switch {
	case cfg.GRPCEndpoint != "":
		return otlptracegrpc.New(
			ctx,
			otlptracegrpc.WithEndpointURL(cfg.GRPCEndpoint),
			otlptracegrpc.WithHeaders(cfg.Headers),
		)
	case cfg.HTTPEndpoint != "":
		return otlptracehttp.New(
			ctx,
			otlptracehttp.WithEndpointURL(cfg.HTTPEndpoint),
			otlptracehttp.WithHeaders(cfg.Headers),
		)
	}
	return nil, nil
}
