// Package guardrail implements the input screening pipeline: it composes a
// policy enforcement prompt for a candidate input, sends it to a model
// backend, extracts the structured verdict from the raw response, and maps it
// to a fail-closed allow/block outcome.
//
// The package never returns an error across its public boundary. Backend
// failures, malformed responses, and indeterminate verdicts all collapse into
// an EvaluationOutcome with Allowed=false; only an explicit compliant verdict
// allows an input through.
package guardrail
