package trace

import (
	"context"

	sdkTrace "go.opentelemetry.io/otel/sdk/trace"
)

// noOpSpanExporter drops every span. It is installed when TRACE_EXPORTER=none so that
// sampling and Sentry span processing still run without an OTLP collector.
type noOpSpanExporter struct{}

func NewNoOpSpanExporter() sdkTrace.SpanExporter {
	return noOpSpanExporter{}
}

func (noOpSpanExporter) ExportSpans(context.Context, []sdkTrace.ReadOnlySpan) error {
	return nil
}

func (noOpSpanExporter) Shutdown(context.Context) error {
	return nil
}
