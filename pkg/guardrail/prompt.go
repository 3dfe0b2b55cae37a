package guardrail

import (
	_ "embed"
	"strings"
)

// policyText is the fixed policy enforcement document. It instructs the model
// to screen an "Input for Review" against four directives and to answer with
// a JSON object carrying compliance_status, evaluation_summary, and
// triggered_policies. The document text is the contract the decoder in
// extract.go relies on; change them together.
//
//go:embed policy.txt
var policyText string

// Placeholder entries in directive 4 of the policy document. They are swapped
// for deployment-specific names via PromptOptions.
const (
	defaultBrandList      = "Your Service A, Your Product B"
	defaultCompetitorList = "Rival Company X, Competing Solution Y"
)

// PromptOptions customizes the proprietary and competitive information
// directive. Empty slices keep the document's placeholder entries.
type PromptOptions struct {
	// BrandNames are the deployment's own brands and services that inputs
	// must not criticize or defame.
	BrandNames []string

	// CompetitorNames are rival companies and products that inputs must not
	// solicit comparisons or intelligence about.
	CompetitorNames []string
}

// PolicyPrompt is an immutable policy document plus composition logic. It is
// built once at startup and shared by every evaluation for the lifetime of
// the process.
type PolicyPrompt struct {
	text string
}

// NewPolicyPrompt renders the policy document with the given options.
func NewPolicyPrompt(opts PromptOptions) *PolicyPrompt {
	text := policyText
	if len(opts.BrandNames) > 0 {
		text = strings.Replace(text,
			"["+defaultBrandList+"]",
			"["+strings.Join(opts.BrandNames, ", ")+"]", 1)
	}
	if len(opts.CompetitorNames) > 0 {
		text = strings.Replace(text,
			"["+defaultCompetitorList+"]",
			"["+strings.Join(opts.CompetitorNames, ", ")+"]", 1)
	}
	return &PolicyPrompt{text: text}
}

// Text returns the rendered policy document without any input attached.
func (p *PolicyPrompt) Text() string {
	return p.text
}

// Compose appends the candidate input to the policy document, forming one
// complete evaluation request. The input is attached verbatim: no escaping,
// no truncation. An input that itself contains instructions is passed through
// untouched; resisting injection is the enforcer model's job, not this
// function's.
func (p *PolicyPrompt) Compose(input string) string {
	return p.text + "\n\nInput for Review: \"" + input + "\""
}
