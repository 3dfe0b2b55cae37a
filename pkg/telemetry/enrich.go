package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/phylaxai/phylax-oss/pkg/domain"
)

// RecordVerdictEvent attaches a coarse-grained verdict event to the provided
// span without leaking screened content.
func RecordVerdictEvent(span trace.Span, allowed bool, status domain.ComplianceStatus, triggeredCount int) {
	if span == nil || !span.IsRecording() {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.Bool("guardrail.allowed", allowed),
		attribute.String("guardrail.status", string(status)),
		attribute.Int("guardrail.triggered_policies.count", triggeredCount),
	}

	span.AddEvent("guardrail.verdict", trace.WithAttributes(attrs...))

	if !allowed {
		span.AddEvent("guardrail.blocked")
	}
}
