package tracer

import (
	"context"
	"errors"
	"testing"
)

func TestSetupDisabledInstallsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown() error = %v", err)
	}

	_, span := StartSpan(context.Background(), "test")
	defer span.End()
	if span.SpanContext().IsValid() {
		t.Fatal("noop provider should produce invalid span contexts")
	}
	RecordError(span, errors.New("boom"))
	SetOK(span)
}

func TestSetupRejectsUnknownExporter(t *testing.T) {
	if _, err := Setup(context.Background(), Config{Enabled: true, Exporter: "zipkin"}); err == nil {
		t.Fatal("expected error for unsupported exporter")
	}
}
