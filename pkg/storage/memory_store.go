package storage

import (
	"context"
	"sync"

	"github.com/phylaxai/phylax-oss/pkg/domain"
)

// MemoryAuditStore is an in-memory, bounded implementation of AuditStore.
// When the retention bound is reached the oldest records are evicted first.
type MemoryAuditStore struct {
	mu      sync.RWMutex
	max     int
	records []domain.Record
}

// NewMemoryAuditStore creates a store retaining at most maxRecords entries.
// A bound of zero or less falls back to 1000.
func NewMemoryAuditStore(maxRecords int) *MemoryAuditStore {
	if maxRecords <= 0 {
		maxRecords = 1000
	}
	return &MemoryAuditStore{max: maxRecords}
}

// Append stores a record, evicting the oldest entries beyond the bound.
func (s *MemoryAuditStore) Append(_ context.Context, record domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, record.Clone())
	if overflow := len(s.records) - s.max; overflow > 0 {
		// Copy instead of re-slicing so evicted records are released.
		s.records = append(s.records[:0:0], s.records[overflow:]...)
	}
	return nil
}

// Get retrieves a record by evaluation ID.
func (s *MemoryAuditStore) Get(_ context.Context, id string) (domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].ID == id {
			return s.records[i].Clone(), nil
		}
	}
	return domain.Record{}, ErrNotFound
}

// List returns up to limit records, newest first.
func (s *MemoryAuditStore) List(_ context.Context, limit int) ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.records)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.Record, 0, n)
	for i := len(s.records) - 1; i >= len(s.records)-n; i-- {
		out = append(out, s.records[i].Clone())
	}
	return out, nil
}

// Close is a no-op for the memory store.
func (s *MemoryAuditStore) Close() error {
	return nil
}
