package observability

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/signalsfoundry/antenna-tracker/internal/logging"
)

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{}, logging.Noop())
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	_, span := StartSpan(context.Background(), "tracker/step")
	if span.SpanContext().IsValid() {
		t.Fatal("disabled tracing produced a sampled span")
	}
	span.End()
}

func TestInitTracingRejectsUnknownExporter(t *testing.T) {
	_, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin", SampleRatio: 1}, logging.Noop())
	if err == nil {
		t.Fatal("expected unsupported exporter error")
	}
}

func TestStartSpanRecordsAttributes(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	_, span := StartSpan(context.Background(), "hamlib/set position", attribute.String("peer", "rotor"))
	span.End()

	ended := recorder.Ended()
	if len(ended) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(ended))
	}
	if ended[0].Name() != "hamlib/set position" {
		t.Fatalf("span name = %q", ended[0].Name())
	}
	found := false
	for _, kv := range ended[0].Attributes() {
		if kv.Key == "peer" && kv.Value.AsString() == "rotor" {
			found = true
		}
	}
	if !found {
		t.Fatalf("peer attribute missing: %v", ended[0].Attributes())
	}
}

func TestTracingConfigApplyDefaults(t *testing.T) {
	cfg := TracingConfig{SampleRatio: 2}.ApplyDefaults()
	if cfg.Exporter != "stdout" || cfg.ServiceName != "antenna-tracker" || cfg.SampleRatio != 1 {
		t.Fatalf("ApplyDefaults = %+v", cfg)
	}
}
