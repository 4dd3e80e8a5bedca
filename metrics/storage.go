// Copyright 2025 TripWeaver
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Store is the storage boundary for performance records. Implementations
// may be in-memory or durable; the collector is agnostic.
type Store interface {
	// Store persists a single record.
	Store(ctx context.Context, record AgentPerformanceMetrics) error

	// StoreBatch persists a batch of records.
	StoreBatch(ctx context.Context, records []AgentPerformanceMetrics) error

	// Query returns records for an agent type within [start, end), newest
	// first. An empty agentType matches all agents.
	Query(ctx context.Context, agentType string, start, end time.Time) ([]AgentPerformanceMetrics, error)

	// Cleanup deletes records older than the cutoff, returning the count.
	Cleanup(ctx context.Context, before time.Time) (int64, error)
}

// MemoryStore is an in-memory Store for tests and single-node deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	records []AgentPerformanceMetrics
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Store(ctx context.Context, record AgentPerformanceMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *MemoryStore) StoreBatch(ctx context.Context, records []AgentPerformanceMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, agentType string, start, end time.Time) ([]AgentPerformanceMetrics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []AgentPerformanceMetrics
	for _, r := range s.records {
		if agentType != "" && r.AgentType != agentType {
			continue
		}
		if r.Timestamp.Before(start) || !r.Timestamp.Before(end) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

func (s *MemoryStore) Cleanup(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	var removed int64
	for _, r := range s.records {
		if r.Timestamp.Before(before) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
	return removed, nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
