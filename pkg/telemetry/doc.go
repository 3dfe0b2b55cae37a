// Package telemetry wires OpenTelemetry exporters and meters for the Phylax
// guardrail service.
//
// It centralises trace provider setup, applies service resource attributes,
// and offers enrichment helpers that attach evaluation verdicts to spans and
// metrics so operators can correlate blocked inputs with backend behaviour.
package telemetry
