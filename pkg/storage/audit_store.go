// Package storage provides audit persistence for guardrail evaluations.
// Every evaluation can be captured as a record pairing the screened input
// with the enforcer's raw output and the classified decision.
package storage

import (
	"context"
	"errors"

	"github.com/phylaxai/phylax-oss/pkg/domain"
)

// ErrNotFound is returned when a requested audit record does not exist in the store.
var ErrNotFound = errors.New("audit record not found")

// AuditStore exposes persistence operations for evaluation records.
type AuditStore interface {
	// Append stores one record. Implementations may evict old records to
	// honor a retention bound.
	Append(ctx context.Context, record domain.Record) error

	// Get retrieves a record by evaluation ID. Returns ErrNotFound when the
	// record does not exist or has been evicted.
	Get(ctx context.Context, id string) (domain.Record, error)

	// List returns records newest first, at most limit of them. A limit of
	// zero or less returns all retained records.
	List(ctx context.Context, limit int) ([]domain.Record, error)

	Close() error
}
