package domain

import (
	"strings"
	"time"
)

// ComplianceStatus classifies the policy enforcer's judgment of one input.
type ComplianceStatus string

const (
	// StatusCompliant indicates the input adheres to every policy directive.
	StatusCompliant ComplianceStatus = "compliant"
	// StatusNonCompliant indicates at least one policy directive was violated.
	StatusNonCompliant ComplianceStatus = "non-compliant"
	// StatusUnknown indicates the enforcer's verdict was absent, empty, or not
	// one of the two recognized literals. Callers must treat it as a rejection.
	StatusUnknown ComplianceStatus = "unknown"
)

// ParseComplianceStatus normalizes a raw wire value into a typed status.
// Comparison is case-insensitive; anything unrecognized maps to StatusUnknown.
func ParseComplianceStatus(raw string) ComplianceStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(StatusCompliant):
		return StatusCompliant
	case string(StatusNonCompliant):
		return StatusNonCompliant
	default:
		return StatusUnknown
	}
}

// FailureKind labels the hard failure modes of an evaluation: the backend
// call raising, or its output failing to decode. Soft schema problems are
// not failures here; those default field by field.
type FailureKind string

const (
	FailureNone        FailureKind = ""
	FailureBackend     FailureKind = "backend_error"
	FailureInvalidJSON FailureKind = "invalid_json"
)

// PolicyDecision is the validated structured verdict extracted from the
// enforcer model's raw output. Summary and TriggeredPolicies carry whatever
// the model supplied after defaulting; Status is always one of the three
// typed values, never free-form text.
type PolicyDecision struct {
	Status            ComplianceStatus
	Summary           string
	TriggeredPolicies []string
}

// EvaluationOutcome is the caller-facing result of one guardrail evaluation
// and the only value returned across the evaluator's public boundary.
// Allowed is false for every failure mode, hard or soft: a caller must treat
// it as an unconditional block signal regardless of the root cause.
type EvaluationOutcome struct {
	ID                string           `json:"id"`
	Allowed           bool             `json:"allowed"`
	Status            ComplianceStatus `json:"status"`
	Message           string           `json:"message"`
	TriggeredPolicies []string         `json:"triggered_policies"`
}

// Record is the audit trail of one evaluation: the full input/raw-output pair
// plus the classified decision, kept for post-hoc review.
type Record struct {
	ID                string           `json:"id"`
	CreatedAt         time.Time        `json:"created_at"`
	Input             string           `json:"input"`
	RawResponse       string           `json:"raw_response,omitempty"`
	Status            ComplianceStatus `json:"status"`
	Allowed           bool             `json:"allowed"`
	Message           string           `json:"message"`
	TriggeredPolicies []string         `json:"triggered_policies,omitempty"`
	Backend           string           `json:"backend,omitempty"`
	Model             string           `json:"model,omitempty"`
	Duration          time.Duration    `json:"duration_ns"`
	Err               string           `json:"error,omitempty"`
}

// Clone returns a copy of the record with its own policy slice, so stored
// records cannot be mutated through shared backing arrays.
func (r Record) Clone() Record {
	clone := r
	if len(r.TriggeredPolicies) > 0 {
		clone.TriggeredPolicies = append([]string(nil), r.TriggeredPolicies...)
	}
	return clone
}
