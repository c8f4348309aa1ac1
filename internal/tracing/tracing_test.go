package tracing

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestInit_Disabled(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{Enabled: false}, zap.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("unexpected shutdown error: %v", err)
	}
}

func TestTracer_NoopSpans(t *testing.T) {
	_, span := Tracer().Start(context.Background(), "health-check")
	defer span.End()

	if span.SpanContext().IsValid() {
		t.Error("expected no-op span without an installed provider")
	}
}
