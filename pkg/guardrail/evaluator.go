package guardrail

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phylaxai/phylax-oss/pkg/domain"
	"github.com/phylaxai/phylax-oss/pkg/storage"
	"github.com/phylaxai/phylax-oss/pkg/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Outcome messages. The rejection and error variants carry a detail suffix;
// the other two are returned verbatim.
const (
	passedMessage       = "Input passed content policy checks."
	rejectedPrefix      = "Input rejected by policy enforcer: "
	unparseableMessage  = "Policy enforcer returned an unparseable or unexpected decision."
	invalidJSONPrefix   = "Policy enforcer output was not valid JSON. Error: "
	internalErrorPrefix = "An internal error occurred during policy check: "
)

// ModelBackend is the slice of a model client the evaluator needs: one
// blocking completion call per evaluation. Implementations must be safe for
// concurrent use; the evaluator adds no locking of its own.
type ModelBackend interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Evaluator screens inputs against the policy document through a model
// backend. It holds no per-call state, so one instance serves concurrent
// callers.
type Evaluator struct {
	prompt      *PolicyPrompt
	backend     ModelBackend
	logger      *slog.Logger
	store       storage.AuditStore
	now         func() time.Time
	backendName string
	modelName   string
}

// Option configures optional evaluator collaborators.
type Option func(*Evaluator)

// WithLogger sets the logger the evaluator emits checkpoint events through.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

// WithAuditStore enables audit capture: every evaluation appends one record.
func WithAuditStore(store storage.AuditStore) Option {
	return func(e *Evaluator) {
		e.store = store
	}
}

// WithModelName sets the model identifier recorded in audit entries and
// metrics. The evaluator has no other use for it.
func WithModelName(model string) Option {
	return func(e *Evaluator) {
		e.modelName = model
	}
}

// WithClock overrides the time source used for audit timestamps and duration
// measurement.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		e.now = now
	}
}

// NewEvaluator builds an evaluator around the given prompt and backend. The
// backend name for observability is taken from the backend itself when it
// exposes a Name method.
func NewEvaluator(prompt *PolicyPrompt, backend ModelBackend, opts ...Option) *Evaluator {
	e := &Evaluator{
		prompt:      prompt,
		backend:     backend,
		logger:      slog.Default(),
		now:         time.Now,
		backendName: "unknown",
	}
	if named, ok := backend.(interface{ Name() string }); ok {
		e.backendName = named.Name()
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "guardrail")
	return e
}

// screenResult carries one evaluation's outcome together with the raw
// backend output and failure detail needed by observability.
type screenResult struct {
	outcome domain.EvaluationOutcome
	raw     string
	failure domain.FailureKind
	err     error
}

// Evaluate runs one input through the full pipeline: compose, invoke, decode,
// classify. It always returns an outcome and never propagates an error;
// every failure path yields Allowed=false. Callers wanting bounded latency
// put a deadline on ctx, which the backend honors.
func (e *Evaluator) Evaluate(ctx context.Context, input string) domain.EvaluationOutcome {
	id := uuid.NewString()
	start := e.now()

	ctx, span := otel.Tracer("phylax.guardrail").Start(ctx, "guardrail.evaluate",
		trace.WithAttributes(attribute.String("guardrail.evaluation_id", id)))
	defer span.End()

	logger := e.logger.With("evaluation_id", id)
	logger.Info("screening input with policy enforcer", "input", input)

	res := e.screen(ctx, logger, id, input)
	e.emit(ctx, span, logger, input, res, start)

	return res.outcome
}

func (e *Evaluator) screen(ctx context.Context, logger *slog.Logger, id, input string) screenResult {
	raw, err := e.backend.Complete(ctx, e.prompt.Compose(input))
	if err != nil {
		logger.Error("policy enforcer call failed", "error", err)
		return screenResult{
			outcome: blocked(id, domain.StatusUnknown, internalErrorPrefix+err.Error(), nil),
			failure: domain.FailureBackend,
			err:     err,
		}
	}

	logger.Debug("policy enforcer raw output", "raw", raw)

	decision, err := decodeVerdict(raw)
	if err != nil {
		logger.Error("policy enforcer output was not valid JSON", "error", err, "raw", raw)
		return screenResult{
			outcome: blocked(id, domain.StatusUnknown, invalidJSONPrefix+err.Error(), nil),
			raw:     raw,
			failure: domain.FailureInvalidJSON,
			err:     err,
		}
	}

	switch decision.Status {
	case domain.StatusNonCompliant:
		logger.Warn("input rejected by policy enforcer",
			"summary", decision.Summary,
			"triggered_policies", decision.TriggeredPolicies)
		return screenResult{
			outcome: blocked(id, domain.StatusNonCompliant, rejectedPrefix+decision.Summary, decision.TriggeredPolicies),
			raw:     raw,
		}

	case domain.StatusCompliant:
		logger.Info("input passed content policy checks", "summary", decision.Summary)
		return screenResult{
			// Compliant inputs never report triggered policies, even when the
			// enforcer erroneously listed some.
			outcome: domain.EvaluationOutcome{
				ID:                id,
				Allowed:           true,
				Status:            domain.StatusCompliant,
				Message:           passedMessage,
				TriggeredPolicies: []string{},
			},
			raw: raw,
		}

	default:
		logger.Error("policy enforcer returned unexpected decision", "raw", raw)
		return screenResult{
			outcome: blocked(id, domain.StatusUnknown, unparseableMessage, nil),
			raw:     raw,
		}
	}
}

// emit records the evaluation on the active span, the process metrics, and
// the audit store. Observability failures are logged and swallowed; they
// never alter the outcome.
func (e *Evaluator) emit(ctx context.Context, span trace.Span, logger *slog.Logger, input string, res screenResult, start time.Time) {
	duration := e.now().Sub(start)

	if span.IsRecording() {
		attrs := []attribute.KeyValue{
			attribute.String("guardrail.status", string(res.outcome.Status)),
			attribute.Bool("guardrail.allowed", res.outcome.Allowed),
			attribute.Int64("guardrail.duration_ms", duration.Milliseconds()),
			attribute.String("guardrail.backend", e.backendName),
			attribute.String("guardrail.input", input),
		}
		span.SetAttributes(telemetry.SanitizeAttributes(attrs)...)
	}
	telemetry.RecordVerdictEvent(span, res.outcome.Allowed, res.outcome.Status, len(res.outcome.TriggeredPolicies))

	telemetry.RecordEvaluation(ctx, telemetry.EvaluationMetrics{
		Backend:  e.backendName,
		Model:    e.modelName,
		Status:   res.outcome.Status,
		Allowed:  res.outcome.Allowed,
		Failure:  res.failure,
		Duration: duration,
	})

	if e.store == nil {
		return
	}
	rec := domain.Record{
		ID:                res.outcome.ID,
		CreatedAt:         start,
		Input:             input,
		RawResponse:       res.raw,
		Status:            res.outcome.Status,
		Allowed:           res.outcome.Allowed,
		Message:           res.outcome.Message,
		TriggeredPolicies: res.outcome.TriggeredPolicies,
		Backend:           e.backendName,
		Model:             e.modelName,
		Duration:          duration,
	}
	if res.err != nil {
		rec.Err = res.err.Error()
	}
	if err := e.store.Append(ctx, rec); err != nil {
		logger.Warn("failed to append audit record", "error", err)
	}
}

// blocked builds a deny outcome. A nil policy slice normalizes to empty so
// callers always see a non-nil list.
func blocked(id string, status domain.ComplianceStatus, message string, policies []string) domain.EvaluationOutcome {
	if policies == nil {
		policies = []string{}
	}
	return domain.EvaluationOutcome{
		ID:                id,
		Allowed:           false,
		Status:            status,
		Message:           message,
		TriggeredPolicies: policies,
	}
}
