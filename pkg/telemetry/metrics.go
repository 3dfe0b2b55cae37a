package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/phylaxai/phylax-oss/pkg/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	metricsOnce          sync.Once
	metricsInitErr       error
	evaluationCounter    metric.Int64Counter
	blockedCounter       metric.Int64Counter
	failureCounter       metric.Int64Counter
	evalLatencyHistogram metric.Float64Histogram
)

// EvaluationMetrics captures the fields needed to record one guardrail
// evaluation.
type EvaluationMetrics struct {
	Backend  string
	Model    string
	Status   domain.ComplianceStatus
	Allowed  bool
	Failure  domain.FailureKind
	Duration time.Duration
}

// RecordEvaluation emits counters and histograms that describe evaluation
// behaviour.
func RecordEvaluation(ctx context.Context, m EvaluationMetrics) {
	if err := ensureMetrics(); err != nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("guardrail.backend", m.Backend),
		attribute.String("guardrail.model", m.Model),
		attribute.String("guardrail.status", string(m.Status)),
		attribute.Bool("guardrail.allowed", m.Allowed),
	}

	evaluationCounter.Add(ctx, 1, metric.WithAttributes(attrs...))

	if m.Duration > 0 {
		evalLatencyHistogram.Record(ctx, float64(m.Duration)/float64(time.Millisecond), metric.WithAttributes(attrs...))
	}

	if !m.Allowed {
		blockedCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	}

	if m.Failure != domain.FailureNone {
		failureCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("guardrail.backend", m.Backend),
			attribute.String("guardrail.failure", string(m.Failure)),
		))
	}
}

func ensureMetrics() error {
	metricsOnce.Do(func() {
		meter := otel.GetMeterProvider().Meter("phylax.guardrail")

		evaluationCounter, metricsInitErr = meter.Int64Counter(
			"phylax.guardrail.evaluations_total",
			metric.WithDescription("Guardrail evaluations partitioned by status and backend"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		blockedCounter, metricsInitErr = meter.Int64Counter(
			"phylax.guardrail.blocked_total",
			metric.WithDescription("Evaluations that denied the input, for any reason"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		failureCounter, metricsInitErr = meter.Int64Counter(
			"phylax.guardrail.failures_total",
			metric.WithDescription("Hard failures during evaluation, partitioned by failure kind"),
			metric.WithUnit("{count}"),
		)
		if metricsInitErr != nil {
			return
		}

		evalLatencyHistogram, metricsInitErr = meter.Float64Histogram(
			"phylax.guardrail.duration_ms",
			metric.WithDescription("Observed end-to-end evaluation latency"),
			metric.WithUnit("ms"),
		)
	})

	return metricsInitErr
}
