package tracing

import (
	"context"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the client-wide tracer, set by InitTracerProvider.
var Tracer trace.Tracer = otel.Tracer(TracerName)

const (
	defaultServiceName = "storefrontctl"
	TracerName         = "github.com/pilab-dev/cartbuilder"
)

// Config selects where spans go.
type Config struct {
	ServiceName string
	// Writer receives the exported spans. Nil disables export; spans are
	// still created so trace ids reach logs and outgoing headers.
	Writer io.Writer
	Pretty bool
}

// InitTracerProvider creates a TracerProvider exporting to cfg.Writer and
// registers it, along with the W3C propagators, globally.
func InitTracerProvider(cfg Config) (*sdktrace.TracerProvider, error) {
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = os.Getenv("OTEL_SERVICE_NAME")
	}
	if serviceName == "" {
		serviceName = defaultServiceName
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
		),
	)
	if err != nil {
		return nil, err
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}
	if cfg.Writer != nil {
		exporterOpts := []stdouttrace.Option{stdouttrace.WithWriter(cfg.Writer)}
		if cfg.Pretty {
			exporterOpts = append(exporterOpts, stdouttrace.WithPrettyPrint())
		}
		exporter, err := stdouttrace.New(exporterOpts...)
		if err != nil {
			return nil, err
		}
		// Syncer: the CLI exits right after a command and must not drop spans.
		opts = append(opts, sdktrace.WithSyncer(exporter))
	}

	tp := sdktrace.NewTracerProvider(opts...)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	Tracer = tp.Tracer(TracerName)

	return tp, nil
}
