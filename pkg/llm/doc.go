// Package llm contains the model backend adapters used to obtain policy
// judgments. Each adapter turns one opaque prompt string into one opaque text
// response over a concrete provider API and surfaces failures as typed errors.
//
// Adapters share a pooled, retrying HTTP base. The retry budget defaults to
// zero so that one guardrail evaluation performs exactly one backend call
// unless configuration opts in.
package llm
