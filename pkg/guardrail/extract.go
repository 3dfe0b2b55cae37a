package guardrail

import (
	"encoding/json"
	"strings"

	"github.com/phylaxai/phylax-oss/pkg/domain"
)

const (
	codeFence     = "```"
	jsonCodeFence = "```json"
)

// defaultSummary stands in when the enforcer omits evaluation_summary.
const defaultSummary = "No specific summary provided."

// wireDecision mirrors the JSON object the policy document instructs the
// enforcer to emit. EvaluationSummary is a pointer so an absent key can be
// told apart from a present-but-empty one; TriggeredPolicies stays raw so a
// malformed list degrades to empty instead of failing the whole decode.
type wireDecision struct {
	ComplianceStatus  string          `json:"compliance_status"`
	EvaluationSummary *string         `json:"evaluation_summary"`
	TriggeredPolicies json.RawMessage `json:"triggered_policies"`
}

// stripFences removes a markdown code fence wrapping the text, if present.
// Both the tagged ```json form and the bare ``` form are recognized; the
// fence is stripped only when the text starts with an opener and ends with a
// closer. Unfenced text passes through unchanged.
func stripFences(text string) string {
	switch {
	case strings.HasPrefix(text, jsonCodeFence) && strings.HasSuffix(text, codeFence):
		// No overlap possible: "```json" cannot end in "```", so the text is
		// at least len(jsonCodeFence)+len(codeFence) bytes long here.
		text = text[len(jsonCodeFence) : len(text)-len(codeFence)]
	case strings.HasPrefix(text, codeFence) && strings.HasSuffix(text, codeFence):
		if len(text) < 2*len(codeFence) {
			// Opener and closer overlap, e.g. a bare "```".
			return ""
		}
		text = text[len(codeFence) : len(text)-len(codeFence)]
	default:
		return text
	}
	return strings.TrimSpace(text)
}

// decodeVerdict parses the enforcer's raw response into a PolicyDecision.
// The text is whitespace-trimmed and fence-stripped, then decoded as one JSON
// object; there is no partial extraction from surrounding prose. A decode
// error is returned as-is for the caller to fold into a fail-closed outcome.
//
// Missing fields default rather than fail: an absent or unrecognized status
// becomes StatusUnknown, an absent summary becomes a fixed placeholder, and
// an absent or malformed policy list becomes empty.
func decodeVerdict(raw string) (domain.PolicyDecision, error) {
	text := stripFences(strings.TrimSpace(raw))

	var wire wireDecision
	if err := json.Unmarshal([]byte(text), &wire); err != nil {
		return domain.PolicyDecision{}, err
	}

	decision := domain.PolicyDecision{
		Status:            domain.ParseComplianceStatus(wire.ComplianceStatus),
		Summary:           defaultSummary,
		TriggeredPolicies: []string{},
	}
	if wire.EvaluationSummary != nil {
		decision.Summary = *wire.EvaluationSummary
	}
	if len(wire.TriggeredPolicies) > 0 {
		var policies []string
		if err := json.Unmarshal(wire.TriggeredPolicies, &policies); err == nil && policies != nil {
			decision.TriggeredPolicies = policies
		}
	}
	return decision, nil
}
